package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"phishaware/internal/domain"
)

// RiskEngine owns every mutation of employee risk scores. All score moves
// go through recordChange so the history trail stays complete, and all
// simulation-driven mutations are deduplicated against the event log so a
// replayed event can never move a score twice.
type RiskEngine struct {
	store     Store
	directory EmployeeDirectory
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time

	// remediationDueDays is the deadline window for auto-assigned
	// training.
	remediationDueDays int
}

func NewRiskEngine(store Store, directory EmployeeDirectory, publisher EventPublisher, logger *zap.Logger, dueDays int) *RiskEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dueDays <= 0 {
		dueDays = 7
	}
	return &RiskEngine{
		store:              store,
		directory:          directory,
		publisher:          publisher,
		logger:             logger,
		now:                time.Now,
		remediationDueDays: dueDays,
	}
}

// loadOrCreate fetches the employee's score row, creating it at the
// baseline on first touch. Must run inside the caller's transaction.
func (e *RiskEngine) loadOrCreate(ctx context.Context, s Store, employeeRef, companyRef string) (*domain.RiskScore, error) {
	rs, err := s.Risk().GetByEmployee(ctx, employeeRef)
	if err == nil {
		return rs, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	now := e.now().UTC()
	fresh := domain.RiskScore{
		ID:          uuid.NewString(),
		EmployeeRef: employeeRef,
		CompanyRef:  companyRef,
		Score:       domain.BaselineScore,
		RiskLevel:   domain.RiskLevelForScore(domain.BaselineScore),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.Risk().Create(ctx, fresh)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// recordChange persists the mutated score and appends the audit row.
// Event-driven mutations append history even when the clamped score did
// not move, so the trail shows the event was consumed.
func (e *RiskEngine) recordChange(ctx context.Context, s Store, rs *domain.RiskScore, prevScore int, prevLevel domain.RiskLevel, eventType domain.HistoryEventType, sourceType, sourceID, description string) (domain.RiskScoreHistory, error) {
	rs.UpdatedAt = e.now().UTC()
	if err := s.Risk().Update(ctx, *rs); err != nil {
		return domain.RiskScoreHistory{}, err
	}
	entry := domain.RiskScoreHistory{
		ID:                uuid.NewString(),
		RiskScoreID:       rs.ID,
		EmployeeRef:       rs.EmployeeRef,
		EventType:         eventType,
		PreviousScore:     prevScore,
		NewScore:          rs.Score,
		ScoreChange:       rs.Score - prevScore,
		PreviousRiskLevel: prevLevel,
		NewRiskLevel:      rs.RiskLevel,
		SourceType:        sourceType,
		SourceID:          sourceID,
		Description:       description,
		CreatedAt:         e.now().UTC(),
	}
	return s.History().Append(ctx, entry)
}

// ApplyQuizResult folds a completed quiz into the employee's cumulative
// counters and recomputes the score. A failed quiz additionally assigns
// targeted phishing-basics training.
func (e *RiskEngine) ApplyQuizResult(ctx context.Context, companyRef string, result domain.QuizResult) (*domain.RiskScore, error) {
	if result.TotalQuestions <= 0 {
		return nil, fmt.Errorf("quiz result has no questions: %w", domain.ErrValidation)
	}
	if result.CorrectAnswers < 0 || result.CorrectAnswers > result.TotalQuestions {
		return nil, fmt.Errorf("correct answers %d out of range: %w", result.CorrectAnswers, domain.ErrValidation)
	}
	if result.PhishingMissed < 0 || result.PhishingMissed > result.TotalQuestions {
		return nil, fmt.Errorf("phishing missed %d out of range: %w", result.PhishingMissed, domain.ErrValidation)
	}

	var (
		updated *domain.RiskScore
		history domain.RiskScoreHistory
	)
	err := e.store.WithTx(ctx, func(s Store) error {
		rs, err := e.loadOrCreate(ctx, s, result.EmployeeRef, companyRef)
		if err != nil {
			return err
		}
		prevScore, prevLevel := rs.Score, rs.RiskLevel

		rs.TotalQuizzesTaken++
		rs.TotalQuizQuestions += result.TotalQuestions
		rs.CorrectQuizAnswers += result.CorrectAnswers
		rs.PhishingEmailsMissed += result.PhishingMissed
		at := result.CompletedAt
		if at.IsZero() {
			at = e.now().UTC()
		}
		rs.LastQuizDate = &at
		rs.Recalculate()

		eventType := domain.HistoryQuizCompleted
		if !result.Passed() {
			eventType = domain.HistoryQuizFailed
		}
		history, err = e.recordChange(ctx, s, rs, prevScore, prevLevel, eventType,
			"quiz_result", result.ID,
			fmt.Sprintf("quiz scored %.0f%% (%d/%d correct, %d phishing missed)",
				result.Score, result.CorrectAnswers, result.TotalQuestions, result.PhishingMissed))
		if err != nil {
			return err
		}

		if !result.Passed() {
			if err := e.assignTargeted(ctx, s, rs, domain.CategoryPhishingBasics, domain.ReasonAutoQuizFail, "quiz_result", result.ID); err != nil {
				return err
			}
		}
		if rs.RequiresRemediation {
			if err := e.assignMandatory(ctx, s, rs, "quiz_result", result.ID); err != nil {
				return err
			}
		}
		updated = rs
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publishChange(ctx, history)
	return updated, nil
}

// ApplySimulationEvent folds one recorded tracking event into the
// employee's counters. Only accepted results move anything; ignored
// audit rows pass straight through. Dedupe is two-layered: a prior
// accepted event of the same type for the same simulation makes this one
// a no-op, and the received denominator moves at most once per
// simulation no matter which ingestion path counted it first.
func (e *RiskEngine) ApplySimulationEvent(ctx context.Context, res RecordResult) (bool, error) {
	if !res.Accepted {
		return false, nil
	}
	event := res.Event
	if event.EventType != domain.EventEmailSent && !event.EventType.RiskRelevant() {
		return false, nil
	}

	var (
		applied bool
		history domain.RiskScoreHistory
	)
	err := e.store.WithTx(ctx, func(s Store) error {
		duplicate, err := s.Events().HasEvent(ctx, event.SimulationID, []domain.EventType{event.EventType}, event.ID)
		if err != nil {
			return err
		}
		if duplicate {
			return nil
		}

		sim, err := s.Simulations().GetByID(ctx, event.SimulationID)
		if err != nil {
			return err
		}
		campaign, err := s.Campaigns().GetByID(ctx, sim.CampaignID)
		if err != nil {
			return err
		}

		rs, err := e.loadOrCreate(ctx, s, event.EmployeeRef, campaign.CompanyRef)
		if err != nil {
			return err
		}
		prevScore, prevLevel := rs.Score, rs.RiskLevel

		historyType := domain.HistoryScoreRecalculated
		switch event.EventType {
		case domain.EventEmailSent:
			// A sent_at that predates this event means a bulk mark-sent
			// already credited the simulation.
			if res.PromotedFromPending || sim.SentAt == nil {
				rs.TotalSimulationsReceived++
			}
		case domain.EventEmailOpened:
			if err := e.backfillReceived(ctx, s, rs, sim, event, res.PromotedFromPending); err != nil {
				return err
			}
			rs.SimulationsOpened++
			historyType = domain.HistorySimulationOpened
		case domain.EventLinkClicked:
			if err := e.backfillReceived(ctx, s, rs, sim, event, res.PromotedFromPending); err != nil {
				return err
			}
			rs.SimulationsClicked++
			historyType = domain.HistorySimulationClicked
		case domain.EventCredentialsEntered:
			if err := e.backfillReceived(ctx, s, rs, sim, event, res.PromotedFromPending); err != nil {
				return err
			}
			rs.CredentialsEntered++
			historyType = domain.HistoryCredentialsEntered
		case domain.EventEmailReported:
			if err := e.backfillReceived(ctx, s, rs, sim, event, res.PromotedFromPending); err != nil {
				return err
			}
			rs.SimulationsReported++
			historyType = domain.HistoryPhishingReported
		}
		at := event.CreatedAt
		if at.IsZero() {
			at = e.now().UTC()
		}
		rs.LastSimulationDate = &at
		rs.Recalculate()

		history, err = e.recordChange(ctx, s, rs, prevScore, prevLevel, historyType,
			"tracking_event", event.ID,
			fmt.Sprintf("simulation event %s", event.EventType))
		if err != nil {
			return err
		}

		if event.EventType == domain.EventLinkClicked || event.EventType == domain.EventCredentialsEntered {
			if err := e.assignForCompromise(ctx, s, rs, campaign, event); err != nil {
				return err
			}
		}
		if rs.RequiresRemediation {
			if err := e.assignMandatory(ctx, s, rs, "tracking_event", event.ID); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		e.publishChange(ctx, history)
	}
	return applied, nil
}

// backfillReceived adds the simulation to the received denominator when
// no other path has counted it yet: skip if any prior behavioral event
// already did, if an EMAIL_SENT event was applied at dispatch, or if a
// bulk mark-sent credited it (sent_at stamped by something other than
// this event, with no EMAIL_SENT event on record). What remains is the
// out-of-band case, where this very event promoted the simulation.
func (e *RiskEngine) backfillReceived(ctx context.Context, s Store, rs *domain.RiskScore, sim *domain.EmailSimulation, event domain.TrackingEvent, promoted bool) error {
	prior, err := s.Events().HasEvent(ctx, sim.ID, domain.RiskRelevantEvents, event.ID)
	if err != nil {
		return err
	}
	if prior {
		return nil
	}
	hasSent, err := s.Events().HasEvent(ctx, sim.ID, []domain.EventType{domain.EventEmailSent}, "")
	if err != nil {
		return err
	}
	if hasSent {
		return nil
	}
	if !promoted && sim.SentAt != nil {
		return nil
	}
	rs.TotalSimulationsReceived++
	return nil
}

// ApplyBulkSent credits the received denominator for every simulation a
// bulk mark-sent touched.
func (e *RiskEngine) ApplyBulkSent(ctx context.Context, companyRef string, sims []domain.EmailSimulation) error {
	return e.store.WithTx(ctx, func(s Store) error {
		for _, sim := range sims {
			rs, err := e.loadOrCreate(ctx, s, sim.EmployeeRef, companyRef)
			if err != nil {
				return err
			}
			prevScore, prevLevel := rs.Score, rs.RiskLevel
			rs.TotalSimulationsReceived++
			rs.Recalculate()
			if _, err := e.recordChange(ctx, s, rs, prevScore, prevLevel, domain.HistoryScoreRecalculated,
				"email_simulation", sim.ID, "simulation marked sent"); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyTrainingOutcome folds a finished training assignment into the
// score. A pass subtracts the module's configured reduction directly from
// the current score instead of recomputing from counters, so earned
// credit is visible immediately. Never triggers further assignment.
func (e *RiskEngine) ApplyTrainingOutcome(ctx context.Context, assignment domain.RemediationTraining, module domain.TrainingModule, passed bool) (*domain.RiskScore, error) {
	var (
		updated *domain.RiskScore
		history domain.RiskScoreHistory
	)
	err := e.store.WithTx(ctx, func(s Store) error {
		rs, err := e.loadOrCreate(ctx, s, assignment.EmployeeRef, assignment.CompanyRef)
		if err != nil {
			return err
		}
		prevScore, prevLevel := rs.Score, rs.RiskLevel

		rs.TrainingsCompleted++
		eventType := domain.HistoryTrainingFailed
		description := fmt.Sprintf("training %q failed", module.Title)
		if passed {
			rs.TrainingsPassed++
			rs.SetScore(rs.Score - module.ScoreReductionOnPass)
			eventType = domain.HistoryTrainingPassed
			description = fmt.Sprintf("training %q passed, score reduced by %d", module.Title, module.ScoreReductionOnPass)
		}
		at := e.now().UTC()
		rs.LastTrainingDate = &at

		history, err = e.recordChange(ctx, s, rs, prevScore, prevLevel, eventType,
			"remediation_training", assignment.ID, description)
		if err != nil {
			return err
		}
		updated = rs
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publishChange(ctx, history)
	return updated, nil
}

// NoteAssignment bumps the assigned counter for an assignment created
// outside the engine (manual admin assignment).
func (e *RiskEngine) NoteAssignment(ctx context.Context, assignment domain.RemediationTraining) error {
	return e.store.WithTx(ctx, func(s Store) error {
		rs, err := e.loadOrCreate(ctx, s, assignment.EmployeeRef, assignment.CompanyRef)
		if err != nil {
			return err
		}
		prevScore, prevLevel := rs.Score, rs.RiskLevel
		rs.TrainingsAssigned++
		_, err = e.recordChange(ctx, s, rs, prevScore, prevLevel, domain.HistoryTrainingAssigned,
			"remediation_training", assignment.ID, "training assigned")
		return err
	})
}

// Recalculate recomputes every score of the company (or all companies
// when companyRef is empty) from stored counters. History rows are
// appended only for scores that actually moved. Returns the number of
// scores changed.
func (e *RiskEngine) Recalculate(ctx context.Context, companyRef string) (int, error) {
	changed := 0
	err := e.store.WithTx(ctx, func(s Store) error {
		scores, err := s.Risk().List(ctx, companyRef)
		if err != nil {
			return err
		}
		for i := range scores {
			rs := scores[i]
			prevScore, prevLevel := rs.Score, rs.RiskLevel
			rs.Recalculate()
			if rs.Score == prevScore && rs.RiskLevel == prevLevel {
				continue
			}
			if _, err := e.recordChange(ctx, s, &rs, prevScore, prevLevel, domain.HistoryScoreRecalculated,
				"risk_score", rs.ID, "bulk recalculation"); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info("bulk recalculation finished",
		zap.String("company_ref", companyRef),
		zap.Int("changed", changed))
	return changed, nil
}

// AdjustScore applies a manual admin adjustment to an employee's score.
func (e *RiskEngine) AdjustScore(ctx context.Context, companyRef, employeeRef string, delta int, reason, adjustedBy string) (*domain.RiskScore, error) {
	if delta == 0 {
		return nil, fmt.Errorf("adjustment delta must be nonzero: %w", domain.ErrValidation)
	}
	var (
		updated *domain.RiskScore
		history domain.RiskScoreHistory
	)
	err := e.store.WithTx(ctx, func(s Store) error {
		rs, err := e.loadOrCreate(ctx, s, employeeRef, companyRef)
		if err != nil {
			return err
		}
		prevScore, prevLevel := rs.Score, rs.RiskLevel
		rs.SetScore(rs.Score + delta)
		history, err = e.recordChange(ctx, s, rs, prevScore, prevLevel, domain.HistoryManualAdjustment,
			"admin", adjustedBy, reason)
		if err != nil {
			return err
		}
		updated = rs
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publishChange(ctx, history)
	return updated, nil
}

// assignForCompromise maps the campaign's attack vector to a training
// category and assigns a module from it.
func (e *RiskEngine) assignForCompromise(ctx context.Context, s Store, rs *domain.RiskScore, campaign *domain.SimulationCampaign, event domain.TrackingEvent) error {
	template, err := s.Templates().GetByID(ctx, campaign.TemplateID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	category, ok := domain.CategoryForVector(template.AttackVector)
	if !ok {
		category = domain.CategoryGeneralAwareness
	}
	return e.assignTargeted(ctx, s, rs, category, domain.ReasonAutoSimulationFail, "tracking_event", event.ID)
}

// assignTargeted assigns one module from the category, skipping when the
// employee already has it open.
func (e *RiskEngine) assignTargeted(ctx context.Context, s Store, rs *domain.RiskScore, category domain.TrainingCategory, reason domain.AssignmentReason, sourceType, sourceID string) error {
	module, err := s.Modules().FirstActiveByCategory(ctx, rs.CompanyRef, category)
	if err != nil {
		if isNotFound(err) {
			e.logger.Warn("no active training module for category",
				zap.String("category", string(category)))
			return nil
		}
		return err
	}
	return e.createAssignment(ctx, s, rs, *module, reason, sourceType, sourceID)
}

// assignMandatory assigns every active mandatory module the employee does
// not already have open.
func (e *RiskEngine) assignMandatory(ctx context.Context, s Store, rs *domain.RiskScore, sourceType, sourceID string) error {
	modules, err := s.Modules().ListMandatory(ctx, rs.CompanyRef)
	if err != nil {
		return err
	}
	for _, m := range modules {
		if err := e.createAssignment(ctx, s, rs, m, domain.ReasonAutoHighRisk, sourceType, sourceID); err != nil {
			return err
		}
	}
	return nil
}

func (e *RiskEngine) createAssignment(ctx context.Context, s Store, rs *domain.RiskScore, module domain.TrainingModule, reason domain.AssignmentReason, sourceType, sourceID string) error {
	open, err := s.Assignments().HasOpen(ctx, rs.EmployeeRef, module.ID)
	if err != nil {
		return err
	}
	if open {
		return nil
	}

	now := e.now().UTC()
	due := now.AddDate(0, 0, e.remediationDueDays)
	before := rs.Score
	assignment := domain.RemediationTraining{
		ID:              uuid.NewString(),
		EmployeeRef:     rs.EmployeeRef,
		CompanyRef:      rs.CompanyRef,
		ModuleID:        module.ID,
		Status:          domain.AssignmentAssigned,
		Reason:          reason,
		AssignedBy:      "system",
		AssignedAt:      now,
		DueDate:         &due,
		RiskScoreBefore: &before,
		SourceType:      sourceType,
		SourceID:        sourceID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := s.Assignments().Create(ctx, assignment); err != nil {
		return err
	}

	module.TimesAssigned++
	module.UpdatedAt = now
	if err := s.Modules().Update(ctx, module); err != nil {
		return err
	}

	prevScore, prevLevel := rs.Score, rs.RiskLevel
	rs.TrainingsAssigned++
	if _, err := e.recordChange(ctx, s, rs, prevScore, prevLevel, domain.HistoryTrainingAssigned,
		"remediation_training", assignment.ID,
		fmt.Sprintf("assigned %q (%s)", module.Title, reason)); err != nil {
		return err
	}
	e.logger.Info("remediation training assigned",
		zap.String("employee_ref", rs.EmployeeRef),
		zap.String("module_id", module.ID),
		zap.String("reason", string(reason)))
	return nil
}

func (e *RiskEngine) publishChange(ctx context.Context, h domain.RiskScoreHistory) {
	if e.publisher == nil || h.ID == "" {
		return
	}
	e.publisher.PublishScoreChange(ctx, h)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
