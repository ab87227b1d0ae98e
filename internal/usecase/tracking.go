package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"phishaware/internal/domain"
)

// EventMeta carries the technical details of a tracking hit.
type EventMeta struct {
	IPAddress string
	UserAgent string
	Data      map[string]any
}

// RecordResult reports what recording a tracking event did. Accepted is
// false when the event was logged for audit but produced no state change
// (untrackable campaign, disabled tracking, duplicate report).
// PromotedFromPending is set when this event itself moved the simulation
// out of PENDING; the risk engine needs it to tell an out-of-band
// delivery apart from a bulk mark-sent.
type RecordResult struct {
	Event               domain.TrackingEvent
	Accepted            bool
	AlreadyReported     bool
	PromotedFromPending bool
	Simulation          *domain.EmailSimulation
}

// Tracker is the simulation state machine: it turns the tracking event
// stream into per-simulation flags and campaign-level rollups without
// double counting.
type Tracker struct {
	store     Store
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewTracker(store Store, publisher EventPublisher, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, publisher: publisher, logger: logger, now: time.Now}
}

// HandleOpen records an EMAIL_OPENED hit for a tracking-pixel token.
func (t *Tracker) HandleOpen(ctx context.Context, trackingToken string, meta EventMeta) (RecordResult, error) {
	sim, err := t.store.Simulations().GetByTrackingToken(ctx, trackingToken)
	if err != nil {
		return RecordResult{}, err
	}
	return t.record(ctx, sim, domain.EventEmailOpened, meta)
}

// HandleClick records a LINK_CLICKED hit for a lure-link token.
func (t *Tracker) HandleClick(ctx context.Context, linkToken string, meta EventMeta) (RecordResult, error) {
	sim, err := t.store.Simulations().GetByLinkToken(ctx, linkToken)
	if err != nil {
		return RecordResult{}, err
	}
	return t.record(ctx, sim, domain.EventLinkClicked, meta)
}

// LandingContext resolves a lure-link token to the educational landing
// content and records the LANDING_PAGE_VIEWED event.
type LandingContext struct {
	Simulation domain.EmailSimulation
	Campaign   domain.SimulationCampaign
	Template   domain.SimulationTemplate
}

func (t *Tracker) HandleLanding(ctx context.Context, linkToken string, meta EventMeta) (*LandingContext, error) {
	sim, err := t.store.Simulations().GetByLinkToken(ctx, linkToken)
	if err != nil {
		return nil, err
	}
	campaign, err := t.store.Campaigns().GetByID(ctx, sim.CampaignID)
	if err != nil {
		return nil, err
	}
	template, err := t.store.Templates().GetByID(ctx, campaign.TemplateID)
	if err != nil {
		return nil, err
	}
	if _, err := t.record(ctx, sim, domain.EventLandingPageViewed, meta); err != nil {
		return nil, err
	}
	return &LandingContext{Simulation: *sim, Campaign: *campaign, Template: *template}, nil
}

// HandleReport records an EMAIL_REPORTED submission. Reporting twice is
// acknowledged without a second event.
func (t *Tracker) HandleReport(ctx context.Context, linkToken, reason string, meta EventMeta) (RecordResult, error) {
	sim, err := t.store.Simulations().GetByLinkToken(ctx, linkToken)
	if err != nil {
		return RecordResult{}, err
	}
	if sim.WasReported {
		return RecordResult{AlreadyReported: true, Simulation: sim}, nil
	}
	if reason != "" {
		if meta.Data == nil {
			meta.Data = map[string]any{}
		}
		meta.Data["reason"] = reason
	}
	return t.record(ctx, sim, domain.EventEmailReported, meta)
}

// HandleCredentials records a CREDENTIALS_ENTERED submission. Only field
// presence booleans reach this boundary; submitted values never do.
func (t *Tracker) HandleCredentials(ctx context.Context, linkToken string, usernameFilled, passwordFilled bool, meta EventMeta) (RecordResult, error) {
	sim, err := t.store.Simulations().GetByLinkToken(ctx, linkToken)
	if err != nil {
		return RecordResult{}, err
	}
	campaign, err := t.store.Campaigns().GetByID(ctx, sim.CampaignID)
	if err != nil {
		return RecordResult{}, err
	}
	if !campaign.TrackCredentials {
		return RecordResult{}, fmt.Errorf("credential tracking disabled for campaign %s: %w", campaign.ID, domain.ErrInvalidState)
	}
	if meta.Data == nil {
		meta.Data = map[string]any{}
	}
	meta.Data["username_field_filled"] = usernameFilled
	meta.Data["password_field_filled"] = passwordFilled
	return t.record(ctx, sim, domain.EventCredentialsEntered, meta)
}

// RecordDispatch records an explicit delivery-pipeline event
// (EMAIL_SENT, EMAIL_DELIVERED, EMAIL_BOUNCED) for a simulation.
func (t *Tracker) RecordDispatch(ctx context.Context, simulationID string, eventType domain.EventType, meta EventMeta) (RecordResult, error) {
	switch eventType {
	case domain.EventEmailSent, domain.EventEmailDelivered, domain.EventEmailBounced:
	default:
		return RecordResult{}, fmt.Errorf("%s is not a dispatch event: %w", eventType, domain.ErrValidation)
	}
	sim, err := t.store.Simulations().GetByID(ctx, simulationID)
	if err != nil {
		return RecordResult{}, err
	}
	return t.record(ctx, sim, eventType, meta)
}

// record appends the event and, when the campaign is trackable, advances
// the simulation and recomputes the campaign rollup, all in one
// transaction. Ignored events still land in the log for audit, flagged
// unaccepted so they never feed the risk engine's dedupe.
func (t *Tracker) record(ctx context.Context, sim *domain.EmailSimulation, eventType domain.EventType, meta EventMeta) (RecordResult, error) {
	var result RecordResult
	err := t.store.WithTx(ctx, func(s Store) error {
		campaign, err := s.Campaigns().GetByID(ctx, sim.CampaignID)
		if err != nil {
			return err
		}
		accepted := t.accepts(*campaign, eventType)

		event, err := s.Events().Append(ctx, domain.TrackingEvent{
			SimulationID: sim.ID,
			CampaignID:   sim.CampaignID,
			EmployeeRef:  sim.EmployeeRef,
			EventType:    eventType,
			EventData:    meta.Data,
			IPAddress:    meta.IPAddress,
			UserAgent:    meta.UserAgent,
			Accepted:     accepted,
			CreatedAt:    t.now().UTC(),
		})
		if err != nil {
			return err
		}
		result.Event = event

		if !accepted {
			updated := *sim
			result.Simulation = &updated
			return nil
		}

		updated := *sim
		t.applySimulation(&updated, event)
		if err := s.Simulations().Update(ctx, updated); err != nil {
			return err
		}
		result.Simulation = &updated
		result.PromotedFromPending = sim.Status == domain.SimulationPending && updated.Status != domain.SimulationPending

		if err := t.recomputeCampaign(ctx, s, campaign, event); err != nil {
			return err
		}
		result.Accepted = true
		return nil
	})
	if err != nil {
		return RecordResult{}, err
	}

	if result.Accepted && t.publisher != nil {
		t.publisher.PublishTrackingEvent(ctx, result.Event)
	}
	if !result.Accepted {
		t.logger.Debug("tracking event ignored",
			zap.String("simulation_id", sim.ID),
			zap.String("event_type", string(eventType)))
	}
	return result, nil
}

func (t *Tracker) accepts(campaign domain.SimulationCampaign, eventType domain.EventType) bool {
	if !campaign.Status.Trackable() {
		return false
	}
	switch eventType {
	case domain.EventEmailOpened:
		return campaign.TrackEmailOpens
	case domain.EventLinkClicked:
		return campaign.TrackLinkClicks
	case domain.EventCredentialsEntered:
		return campaign.TrackCredentials
	default:
		return true
	}
}

// applySimulation advances the simulation for one event. Flags only flip
// false to true, and their timestamps are written exactly once (first
// event wins), so replayed or duplicated events are no-ops here.
func (t *Tracker) applySimulation(sim *domain.EmailSimulation, event domain.TrackingEvent) {
	at := event.CreatedAt

	// Behavioral events from a still-PENDING simulation mean the email
	// went out through an out-of-band path; promote it and backfill
	// sent_at from the event.
	if sim.Status == domain.SimulationPending && event.EventType.RiskRelevant() {
		sim.Status = domain.SimulationSent
		if sim.SentAt == nil {
			sim.SentAt = &at
		}
	}

	switch event.EventType {
	case domain.EventEmailSent:
		if sim.Status == domain.SimulationPending {
			sim.Status = domain.SimulationSent
			if sim.SentAt == nil {
				sim.SentAt = &at
			}
		}
	case domain.EventEmailDelivered:
		if sim.Status == domain.SimulationSent || sim.Status == domain.SimulationPending {
			sim.Status = domain.SimulationDelivered
			if sim.DeliveredAt == nil {
				sim.DeliveredAt = &at
			}
		}
	case domain.EventEmailBounced:
		if sim.Status == domain.SimulationSent || sim.Status == domain.SimulationPending {
			sim.Status = domain.SimulationBounced
		}
	case domain.EventEmailOpened:
		if !sim.WasOpened {
			sim.WasOpened = true
			sim.FirstOpenedAt = &at
		}
	case domain.EventLinkClicked:
		if !sim.WasClicked {
			sim.WasClicked = true
			sim.ClickedAt = &at
			sim.IPAddress = event.IPAddress
			sim.UserAgent = event.UserAgent
		}
	case domain.EventCredentialsEntered:
		if !sim.CredentialsEntered {
			sim.CredentialsEntered = true
			sim.CredentialsEnteredAt = &at
		}
	case domain.EventEmailReported:
		if !sim.WasReported {
			sim.WasReported = true
			sim.ReportedAt = &at
		}
	}
	sim.UpdatedAt = at
}

// recomputeCampaign recounts the rollup counters from the simulation rows
// instead of incrementing them, so the counters stay a faithful
// materialized view even under replay and reordering.
func (t *Tracker) recomputeCampaign(ctx context.Context, s Store, campaign *domain.SimulationCampaign, event domain.TrackingEvent) error {
	sims := s.Simulations()

	totalSent, err := sims.CountByCampaign(ctx, campaign.ID, SimulationFilter{
		StatusNotIn: []domain.SimulationStatus{domain.SimulationPending, domain.SimulationFailed},
	})
	if err != nil {
		return err
	}
	campaign.TotalSent = totalSent

	flag := true
	switch event.EventType {
	case domain.EventEmailOpened:
		campaign.TotalOpened, err = sims.CountByCampaign(ctx, campaign.ID, SimulationFilter{Opened: &flag})
	case domain.EventLinkClicked:
		campaign.TotalClicked, err = sims.CountByCampaign(ctx, campaign.ID, SimulationFilter{Clicked: &flag})
	case domain.EventCredentialsEntered:
		campaign.TotalCredentialsEntered, err = sims.CountByCampaign(ctx, campaign.ID, SimulationFilter{CredentialsEntered: &flag})
	case domain.EventEmailReported:
		campaign.TotalReported, err = sims.CountByCampaign(ctx, campaign.ID, SimulationFilter{Reported: &flag})
	case domain.EventEmailDelivered:
		campaign.TotalDelivered, err = sims.CountByCampaign(ctx, campaign.ID, SimulationFilter{
			StatusIn: []domain.SimulationStatus{domain.SimulationDelivered},
		})
	}
	if err != nil {
		return err
	}

	if (campaign.Status == domain.CampaignDraft || campaign.Status == domain.CampaignScheduled) && campaign.TotalSent > 0 {
		campaign.Status = domain.CampaignInProgress
		if campaign.SentAt == nil {
			at := event.CreatedAt
			campaign.SentAt = &at
		}
	}
	return s.Campaigns().Update(ctx, *campaign)
}
