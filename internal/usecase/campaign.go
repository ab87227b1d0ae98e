package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"phishaware/internal/domain"
)

// EmailPackage is one ready-to-send phishing email: the template rendered
// for a single employee with that employee's tracking URLs baked in. The
// platform never sends email itself; packages go to the operator.
type EmailPackage struct {
	SimulationID   string `json:"simulation_id"`
	EmployeeRef    string `json:"employee_ref"`
	EmployeeName   string `json:"employee_name"`
	RecipientEmail string `json:"recipient_email"`

	SenderName   string `json:"sender_name"`
	SenderEmail  string `json:"sender_email"`
	ReplyToEmail string `json:"reply_to_email,omitempty"`

	Subject   string `json:"subject"`
	BodyHTML  string `json:"body_html"`
	BodyPlain string `json:"body_plain"`

	TrackingPixelURL string `json:"tracking_pixel_url"`
	LureLinkURL      string `json:"lure_link_url"`
}

// CampaignService owns campaign administration: creation, per-employee
// package generation, dispatch bookkeeping and reporting.
type CampaignService struct {
	store     Store
	directory EmployeeDirectory
	engine    *RiskEngine
	logger    *zap.Logger
	now       func() time.Time

	// siteBaseURL prefixes every tracking URL written into a package.
	siteBaseURL string
}

func NewCampaignService(store Store, directory EmployeeDirectory, engine *RiskEngine, logger *zap.Logger, siteBaseURL string) *CampaignService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignService{
		store:       store,
		directory:   directory,
		engine:      engine,
		logger:      logger,
		now:         time.Now,
		siteBaseURL: strings.TrimRight(siteBaseURL, "/"),
	}
}

// Create validates and stores a new campaign in DRAFT.
func (cs *CampaignService) Create(ctx context.Context, c domain.SimulationCampaign, targetRefs []string) (*domain.SimulationCampaign, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("campaign name required: %w", domain.ErrValidation)
	}
	if c.CompanyRef == "" {
		return nil, fmt.Errorf("company_ref required: %w", domain.ErrValidation)
	}
	if _, err := cs.store.Templates().GetByID(ctx, c.TemplateID); err != nil {
		return nil, fmt.Errorf("template %s: %w", c.TemplateID, err)
	}
	if !c.TargetAllEmployees && len(targetRefs) == 0 {
		return nil, fmt.Errorf("campaign needs targets or target_all_employees: %w", domain.ErrValidation)
	}

	now := cs.now().UTC()
	c.ID = uuid.NewString()
	c.Status = domain.CampaignDraft
	c.CreatedAt = now
	c.UpdatedAt = now

	var created domain.SimulationCampaign
	err := cs.store.WithTx(ctx, func(s Store) error {
		var err error
		created, err = s.Campaigns().Create(ctx, c)
		if err != nil {
			return err
		}
		if len(targetRefs) > 0 {
			return s.Campaigns().AddTargets(ctx, created.ID, targetRefs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GeneratePackage renders one email package per target employee, lazily
// creating the simulation rows. Tokens are minted exactly once per
// (campaign, employee); regenerating returns the same URLs. The first
// generation moves a DRAFT campaign to SCHEDULED, since the emails now
// exist outside the platform.
func (cs *CampaignService) GeneratePackage(ctx context.Context, campaignID string) ([]EmailPackage, error) {
	campaign, err := cs.store.Campaigns().GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == domain.CampaignCompleted || campaign.Status == domain.CampaignCancelled {
		return nil, fmt.Errorf("campaign %s is %s: %w", campaignID, campaign.Status, domain.ErrInvalidState)
	}
	template, err := cs.store.Templates().GetByID(ctx, campaign.TemplateID)
	if err != nil {
		return nil, err
	}

	employees, err := cs.resolveTargets(ctx, campaign)
	if err != nil {
		return nil, err
	}
	if len(employees) == 0 {
		return nil, fmt.Errorf("campaign %s has no active targets: %w", campaignID, domain.ErrValidation)
	}

	packages := make([]EmailPackage, 0, len(employees))
	err = cs.store.WithTx(ctx, func(s Store) error {
		for _, emp := range employees {
			sim, err := cs.ensureSimulation(ctx, s, *campaign, emp)
			if err != nil {
				return err
			}
			packages = append(packages, cs.render(*template, *campaign, *sim, emp))
		}
		if campaign.Status == domain.CampaignDraft {
			campaign.Status = domain.CampaignScheduled
			campaign.UpdatedAt = cs.now().UTC()
			if err := s.Campaigns().Update(ctx, *campaign); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cs.logger.Info("email package generated",
		zap.String("campaign_id", campaignID),
		zap.Int("emails", len(packages)))
	return packages, nil
}

func (cs *CampaignService) resolveTargets(ctx context.Context, campaign *domain.SimulationCampaign) ([]domain.Employee, error) {
	if campaign.TargetAllEmployees {
		return cs.directory.ListActiveByCompany(ctx, campaign.CompanyRef)
	}
	refs, err := cs.store.Campaigns().ListTargets(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	employees := make([]domain.Employee, 0, len(refs))
	for _, ref := range refs {
		emp, err := cs.directory.Get(ctx, ref)
		if err != nil {
			if isNotFound(err) {
				cs.logger.Warn("campaign target not in directory", zap.String("employee_ref", ref))
				continue
			}
			return nil, err
		}
		if emp.Active {
			employees = append(employees, *emp)
		}
	}
	return employees, nil
}

func (cs *CampaignService) ensureSimulation(ctx context.Context, s Store, campaign domain.SimulationCampaign, emp domain.Employee) (*domain.EmailSimulation, error) {
	existing, err := s.Simulations().GetByCampaignAndEmployee(ctx, campaign.ID, emp.Ref)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	trackingToken, err := domain.NewLinkToken()
	if err != nil {
		return nil, err
	}
	linkToken, err := domain.NewLinkToken()
	if err != nil {
		return nil, err
	}
	now := cs.now().UTC()
	sim := domain.EmailSimulation{
		ID:             uuid.NewString(),
		CampaignID:     campaign.ID,
		EmployeeRef:    emp.Ref,
		RecipientEmail: emp.Email,
		TrackingToken:  trackingToken,
		LinkToken:      linkToken,
		Status:         domain.SimulationPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := s.Simulations().Create(ctx, sim)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (cs *CampaignService) render(template domain.SimulationTemplate, campaign domain.SimulationCampaign, sim domain.EmailSimulation, emp domain.Employee) EmailPackage {
	pixelURL := cs.siteBaseURL + "/track/open/" + sim.TrackingToken
	lureURL := cs.siteBaseURL + "/track/click/" + sim.LinkToken
	pixelTag := fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none">`, pixelURL)

	htmlRepl := strings.NewReplacer(
		"{TRACKING_PIXEL}", pixelTag,
		"{LURE_LINK}", lureURL,
		"{EMPLOYEE_NAME}", emp.FullName(),
		"{EMPLOYEE_FIRST_NAME}", emp.FirstName,
		"{EMPLOYEE_EMAIL}", emp.Email,
		"{COMPANY_NAME}", campaign.CompanyRef,
	)
	plainRepl := strings.NewReplacer(
		"{TRACKING_PIXEL}", "",
		"{LURE_LINK}", lureURL,
		"{EMPLOYEE_NAME}", emp.FullName(),
		"{EMPLOYEE_FIRST_NAME}", emp.FirstName,
		"{EMPLOYEE_EMAIL}", emp.Email,
		"{COMPANY_NAME}", campaign.CompanyRef,
	)

	bodyHTML := htmlRepl.Replace(template.BodyHTML)
	if !strings.Contains(template.BodyHTML, "{TRACKING_PIXEL}") {
		bodyHTML += pixelTag
	}

	return EmailPackage{
		SimulationID:     sim.ID,
		EmployeeRef:      emp.Ref,
		EmployeeName:     emp.FullName(),
		RecipientEmail:   emp.Email,
		SenderName:       template.SenderName,
		SenderEmail:      template.SenderEmail,
		ReplyToEmail:     template.ReplyToEmail,
		Subject:          plainRepl.Replace(template.Subject),
		BodyHTML:         bodyHTML,
		BodyPlain:        plainRepl.Replace(template.BodyPlain),
		TrackingPixelURL: pixelURL,
		LureLinkURL:      lureURL,
	}
}

// PackageCSV renders packages as CSV for operators sending by hand.
func PackageCSV(packages []EmailPackage) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{
		"recipient_email", "employee_name", "sender_name", "sender_email",
		"subject", "tracking_pixel_url", "lure_link_url",
	}); err != nil {
		return nil, err
	}
	for _, p := range packages {
		if err := w.Write([]string{
			p.RecipientEmail, p.EmployeeName, p.SenderName, p.SenderEmail,
			p.Subject, p.TrackingPixelURL, p.LureLinkURL,
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BulkMarkSent flips every PENDING simulation of the campaign to SENT
// with one shared timestamp and moves the campaign to IN_PROGRESS. No
// EMAIL_SENT events are written; the risk engine credits the received
// counters directly and its dedupe heuristic covers later events.
func (cs *CampaignService) BulkMarkSent(ctx context.Context, campaignID string) (int, error) {
	campaign, err := cs.store.Campaigns().GetByID(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if campaign.Status == domain.CampaignCompleted || campaign.Status == domain.CampaignCancelled {
		return 0, fmt.Errorf("campaign %s is %s: %w", campaignID, campaign.Status, domain.ErrInvalidState)
	}

	now := cs.now().UTC()
	var marked []domain.EmailSimulation
	err = cs.store.WithTx(ctx, func(s Store) error {
		marked, err = s.Simulations().MarkPendingSent(ctx, campaignID, now)
		if err != nil {
			return err
		}
		total, err := s.Simulations().CountByCampaign(ctx, campaignID, SimulationFilter{
			StatusNotIn: []domain.SimulationStatus{domain.SimulationPending, domain.SimulationFailed},
		})
		if err != nil {
			return err
		}
		campaign.TotalSent = total
		if campaign.Status == domain.CampaignDraft || campaign.Status == domain.CampaignScheduled {
			campaign.Status = domain.CampaignInProgress
		}
		if campaign.SentAt == nil {
			campaign.SentAt = &now
		}
		campaign.UpdatedAt = now
		return s.Campaigns().Update(ctx, *campaign)
	})
	if err != nil {
		return 0, err
	}

	if len(marked) > 0 {
		if err := cs.engine.ApplyBulkSent(ctx, campaign.CompanyRef, marked); err != nil {
			return len(marked), err
		}
	}
	cs.logger.Info("campaign marked sent",
		zap.String("campaign_id", campaignID),
		zap.Int("marked", len(marked)))
	return len(marked), nil
}

// Pause stops an in-progress campaign from accepting tracking events.
func (cs *CampaignService) Pause(ctx context.Context, campaignID string) (*domain.SimulationCampaign, error) {
	return cs.transition(ctx, campaignID, domain.CampaignPaused,
		domain.CampaignInProgress, domain.CampaignScheduled)
}

// Resume puts a paused campaign back in progress.
func (cs *CampaignService) Resume(ctx context.Context, campaignID string) (*domain.SimulationCampaign, error) {
	return cs.transition(ctx, campaignID, domain.CampaignInProgress, domain.CampaignPaused)
}

// Complete closes the campaign for good and stamps completed_at.
func (cs *CampaignService) Complete(ctx context.Context, campaignID string) (*domain.SimulationCampaign, error) {
	campaign, err := cs.transition(ctx, campaignID, domain.CampaignCompleted,
		domain.CampaignInProgress, domain.CampaignPaused)
	if err != nil {
		return nil, err
	}
	now := cs.now().UTC()
	campaign.CompletedAt = &now
	campaign.UpdatedAt = now
	if err := cs.store.Campaigns().Update(ctx, *campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

func (cs *CampaignService) transition(ctx context.Context, campaignID string, to domain.CampaignStatus, from ...domain.CampaignStatus) (*domain.SimulationCampaign, error) {
	campaign, err := cs.store.Campaigns().GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, f := range from {
		if campaign.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("cannot move campaign %s from %s to %s: %w",
			campaignID, campaign.Status, to, domain.ErrInvalidState)
	}
	campaign.Status = to
	campaign.UpdatedAt = cs.now().UTC()
	if err := cs.store.Campaigns().Update(ctx, *campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

// CampaignSummary is the per-campaign rollup served to admins.
type CampaignSummary struct {
	Campaign domain.SimulationCampaign `json:"campaign"`

	TotalSimulations int `json:"total_simulations"`
	Pending          int `json:"pending"`
	Dispatched       int `json:"dispatched"`

	Opened             int `json:"opened"`
	Clicked            int `json:"clicked"`
	Reported           int `json:"reported"`
	CredentialsEntered int `json:"credentials_entered"`

	EffectiveSent  int     `json:"effective_sent"`
	OpenRate       float64 `json:"open_rate"`
	ClickRate      float64 `json:"click_rate"`
	ReportRate     float64 `json:"report_rate"`
	CompromiseRate float64 `json:"compromise_rate"`
}

// Summary recounts the campaign's simulations and derives the rates over
// the effective-sent denominator.
func (cs *CampaignService) Summary(ctx context.Context, campaignID string) (*CampaignSummary, error) {
	campaign, err := cs.store.Campaigns().GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	sims, err := cs.store.Simulations().ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	s := CampaignSummary{Campaign: *campaign, TotalSimulations: len(sims)}
	for _, sim := range sims {
		if sim.Status == domain.SimulationPending {
			s.Pending++
		}
		if sim.Dispatched() {
			s.Dispatched++
		}
		if sim.WasOpened {
			s.Opened++
		}
		if sim.WasClicked {
			s.Clicked++
		}
		if sim.WasReported {
			s.Reported++
		}
		if sim.CredentialsEntered {
			s.CredentialsEntered++
		}
	}
	s.EffectiveSent = campaign.EffectiveSent(s.Dispatched, s.TotalSimulations)
	s.OpenRate = campaign.OpenRate(s.EffectiveSent)
	s.ClickRate = campaign.ClickRate(s.EffectiveSent)
	s.ReportRate = campaign.ReportRate(s.EffectiveSent)
	s.CompromiseRate = campaign.CompromiseRate(s.EffectiveSent)
	return &s, nil
}

// CampaignAnalytics extends the summary with the raw event feed.
type CampaignAnalytics struct {
	Summary CampaignSummary        `json:"summary"`
	Events  []domain.TrackingEvent `json:"events"`
}

func (cs *CampaignService) Analytics(ctx context.Context, campaignID string, eventLimit int) (*CampaignAnalytics, error) {
	summary, err := cs.Summary(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if eventLimit <= 0 {
		eventLimit = 100
	}
	events, err := cs.store.Events().ListByCampaign(ctx, campaignID, eventLimit)
	if err != nil {
		return nil, err
	}
	return &CampaignAnalytics{Summary: *summary, Events: events}, nil
}
