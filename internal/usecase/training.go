package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"phishaware/internal/domain"
)

// TrainingService runs assigned remediation training end to end: content
// viewing, the post-training quiz and the resulting score credit.
type TrainingService struct {
	store  Store
	engine *RiskEngine
	logger *zap.Logger
	now    func() time.Time
}

func NewTrainingService(store Store, engine *RiskEngine, logger *zap.Logger) *TrainingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainingService{store: store, engine: engine, logger: logger, now: time.Now}
}

// Assign creates a manual admin assignment, honoring the one-open-
// assignment-per-(employee, module) rule.
func (ts *TrainingService) Assign(ctx context.Context, employeeRef, companyRef, moduleID, assignedBy string, dueDate *time.Time) (*domain.RemediationTraining, error) {
	module, err := ts.store.Modules().GetByID(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if !module.Active {
		return nil, fmt.Errorf("module %s is inactive: %w", moduleID, domain.ErrInvalidState)
	}

	var assignment domain.RemediationTraining
	err = ts.store.WithTx(ctx, func(s Store) error {
		open, err := s.Assignments().HasOpen(ctx, employeeRef, moduleID)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("employee %s already has %q open: %w", employeeRef, module.Title, domain.ErrInvalidState)
		}

		now := ts.now().UTC()
		assignment = domain.RemediationTraining{
			ID:          uuid.NewString(),
			EmployeeRef: employeeRef,
			CompanyRef:  companyRef,
			ModuleID:    moduleID,
			Status:      domain.AssignmentAssigned,
			Reason:      domain.ReasonManualAdmin,
			AssignedBy:  assignedBy,
			AssignedAt:  now,
			DueDate:     dueDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := s.Assignments().Create(ctx, assignment); err != nil {
			return err
		}

		module.TimesAssigned++
		module.UpdatedAt = now
		return s.Modules().Update(ctx, *module)
	})
	if err != nil {
		return nil, err
	}
	if err := ts.engine.NoteAssignment(ctx, assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Start moves an assignment to IN_PROGRESS.
func (ts *TrainingService) Start(ctx context.Context, assignmentID string) (*domain.RemediationTraining, error) {
	assignment, err := ts.store.Assignments().GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	switch assignment.Status {
	case domain.AssignmentInProgress:
		return assignment, nil
	case domain.AssignmentAssigned:
	default:
		return nil, fmt.Errorf("assignment %s is %s: %w", assignmentID, assignment.Status, domain.ErrInvalidState)
	}
	now := ts.now().UTC()
	assignment.Status = domain.AssignmentInProgress
	assignment.StartedAt = &now
	assignment.UpdatedAt = now
	if err := ts.store.Assignments().Update(ctx, *assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// MarkContentViewed records that the employee got through the module
// content, which gates the quiz.
func (ts *TrainingService) MarkContentViewed(ctx context.Context, assignmentID string) (*domain.RemediationTraining, error) {
	assignment, err := ts.store.Assignments().GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if !assignment.Status.Open() {
		return nil, fmt.Errorf("assignment %s is %s: %w", assignmentID, assignment.Status, domain.ErrInvalidState)
	}
	now := ts.now().UTC()
	if assignment.Status == domain.AssignmentAssigned {
		assignment.Status = domain.AssignmentInProgress
		assignment.StartedAt = &now
	}
	if !assignment.ContentViewed {
		assignment.ContentViewed = true
		assignment.ContentViewedAt = &now
	}
	assignment.UpdatedAt = now
	if err := ts.store.Assignments().Update(ctx, *assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// QuizSubmission maps question IDs to the 0-based index the employee
// picked.
type QuizSubmission map[string]int

// QuizOutcome is what SubmitQuiz hands back to the caller.
type QuizOutcome struct {
	Assignment domain.RemediationTraining
	Score      float64
	Passed     bool
	Correct    int
	Total      int
}

// SubmitQuiz grades a post-training quiz attempt. A pass closes the
// assignment and credits the risk score through the engine; a fail leaves
// the assignment open for another attempt but still counts as a completed
// attempt on the score and in the module stats.
func (ts *TrainingService) SubmitQuiz(ctx context.Context, assignmentID string, answers QuizSubmission) (*QuizOutcome, error) {
	assignment, err := ts.store.Assignments().GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if !assignment.Status.Open() {
		return nil, fmt.Errorf("assignment %s is %s: %w", assignmentID, assignment.Status, domain.ErrInvalidState)
	}
	if !assignment.ContentViewed {
		return nil, fmt.Errorf("content not viewed yet: %w", domain.ErrInvalidState)
	}

	module, err := ts.store.Modules().GetByID(ctx, assignment.ModuleID)
	if err != nil {
		return nil, err
	}
	questions, err := ts.store.Questions().ListByModule(ctx, module.ID)
	if err != nil {
		return nil, err
	}
	active := questions[:0]
	for _, q := range questions {
		if q.Active {
			active = append(active, q)
		}
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("module %s has no quiz questions: %w", module.ID, domain.ErrInvalidState)
	}
	if module.MinQuestionsRequired > 0 && len(answers) < module.MinQuestionsRequired {
		return nil, fmt.Errorf("at least %d answers required: %w", module.MinQuestionsRequired, domain.ErrValidation)
	}

	correct := 0
	for _, q := range active {
		if picked, ok := answers[q.ID]; ok && picked == q.CorrectIndex {
			correct++
		}
	}
	score := float64(correct) / float64(len(active)) * 100
	passed := score >= float64(module.PassingScore)

	now := ts.now().UTC()
	err = ts.store.WithTx(ctx, func(s Store) error {
		assignment.QuizAttempts++
		assignment.QuizScore = &score
		assignment.CorrectAnswers = correct
		assignment.TotalQuestions = len(active)
		assignment.UpdatedAt = now
		if passed {
			assignment.Status = domain.AssignmentPassed
			assignment.CompletedAt = &now
		}
		if err := s.Assignments().Update(ctx, *assignment); err != nil {
			return err
		}

		// Every graded attempt counts as a completion; only passes move
		// the pass counter.
		module.TimesCompleted++
		if passed {
			module.TimesPassed++
		}
		// Running mean over completions, cheap to maintain and good
		// enough for the admin dashboard.
		n := float64(module.TimesCompleted)
		module.AverageScore = module.AverageScore + (score-module.AverageScore)/n
		module.UpdatedAt = now
		return s.Modules().Update(ctx, *module)
	})
	if err != nil {
		return nil, err
	}

	rs, err := ts.engine.ApplyTrainingOutcome(ctx, *assignment, *module, passed)
	if err != nil {
		return nil, err
	}
	if passed {
		after := rs.Score
		assignment.RiskScoreAfter = &after
		assignment.UpdatedAt = ts.now().UTC()
		if err := ts.store.Assignments().Update(ctx, *assignment); err != nil {
			return nil, err
		}
		ts.logger.Info("training passed",
			zap.String("assignment_id", assignment.ID),
			zap.Float64("score", score),
			zap.Int("risk_score_after", after))
	} else {
		ts.logger.Info("training failed, assignment stays open",
			zap.String("assignment_id", assignment.ID),
			zap.Float64("score", score))
	}

	return &QuizOutcome{
		Assignment: *assignment,
		Score:      score,
		Passed:     passed,
		Correct:    correct,
		Total:      len(active),
	}, nil
}

// ExpireOverdue marks assignments past their due date EXPIRED and counts
// the failed completion against the employee's score. Returns how many it
// expired.
func (ts *TrainingService) ExpireOverdue(ctx context.Context) (int, error) {
	now := ts.now().UTC()
	overdue, err := ts.store.Assignments().ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, assignment := range overdue {
		if !assignment.Status.Open() {
			continue
		}
		module, err := ts.store.Modules().GetByID(ctx, assignment.ModuleID)
		if err != nil {
			return expired, err
		}
		assignment.Status = domain.AssignmentExpired
		assignment.UpdatedAt = now
		if err := ts.store.Assignments().Update(ctx, assignment); err != nil {
			return expired, err
		}
		if _, err := ts.engine.ApplyTrainingOutcome(ctx, assignment, *module, false); err != nil {
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		ts.logger.Info("expired overdue assignments", zap.Int("count", expired))
	}
	return expired, nil
}
