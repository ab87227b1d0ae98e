package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"phishaware/internal/domain"
)

// CalculateQuizResult grades a fully answered quiz. Pure: it reads the
// questions and produces the result record without touching storage.
//
// The risk tier is stricter than the pass mark: a perfect-looking score
// with missed phishing emails still lands in a higher tier, because a
// missed phish is the failure mode that matters.
func CalculateQuizResult(quiz domain.Quiz, questions []domain.QuizQuestion, completedAt time.Time) domain.QuizResult {
	result := domain.QuizResult{
		ID:          uuid.NewString(),
		QuizID:      quiz.ID,
		EmployeeRef: quiz.EmployeeRef,
		CampaignRef: quiz.CampaignRef,
		CompletedAt: completedAt,
	}

	for _, q := range questions {
		result.TotalQuestions++
		result.TimeTakenSeconds += q.TimeSpentSeconds

		correct := q.IsCorrect != nil && *q.IsCorrect
		if correct {
			result.CorrectAnswers++
		} else {
			result.IncorrectAnswers++
		}

		switch q.EmailType {
		case domain.EmailPhishing:
			if correct {
				result.PhishingIdentified++
			} else {
				result.PhishingMissed++
			}
		case domain.EmailLegitimate:
			if !correct {
				result.FalsePositives++
			}
		}
	}

	if result.TotalQuestions > 0 {
		result.Score = float64(result.CorrectAnswers) / float64(result.TotalQuestions) * 100
	}
	result.RiskLevel = quizRiskLevel(result.Score, result.PhishingMissed)
	return result
}

func quizRiskLevel(score float64, missed int) domain.RiskLevel {
	switch {
	case score >= 90 && missed == 0:
		return domain.RiskLow
	case score >= 70 && missed <= 1:
		return domain.RiskMedium
	case score >= 50 || missed <= 3:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

// QuizService runs awareness quizzes: answering questions, grading the
// completed quiz and handing the result to the risk engine.
type QuizService struct {
	store  Store
	engine *RiskEngine
	logger *zap.Logger
	now    func() time.Time
}

func NewQuizService(store Store, engine *RiskEngine, logger *zap.Logger) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{store: store, engine: engine, logger: logger, now: time.Now}
}

// Create stores a new quiz with one question per provided email
// classification, numbered in order.
func (qs *QuizService) Create(ctx context.Context, employeeRef, companyRef, campaignRef string, emails []domain.EmailType) (*domain.Quiz, []domain.QuizQuestion, error) {
	if employeeRef == "" || companyRef == "" {
		return nil, nil, fmt.Errorf("employee_ref and company_ref required: %w", domain.ErrValidation)
	}
	if len(emails) == 0 {
		return nil, nil, fmt.Errorf("quiz needs at least one email: %w", domain.ErrValidation)
	}
	for i, t := range emails {
		if t != domain.EmailPhishing && t != domain.EmailLegitimate {
			return nil, nil, fmt.Errorf("email %d has unknown type %q: %w", i+1, t, domain.ErrValidation)
		}
	}

	quiz := domain.Quiz{
		ID:          uuid.NewString(),
		CampaignRef: campaignRef,
		EmployeeRef: employeeRef,
		CompanyRef:  companyRef,
		Status:      domain.QuizNotStarted,
		CreatedAt:   qs.now().UTC(),
	}
	questions := make([]domain.QuizQuestion, 0, len(emails))
	err := qs.store.WithTx(ctx, func(s Store) error {
		created, err := s.Quizzes().Create(ctx, quiz)
		if err != nil {
			return err
		}
		quiz = created
		for i, t := range emails {
			q, err := s.Quizzes().CreateQuestion(ctx, domain.QuizQuestion{
				ID:        uuid.NewString(),
				QuizID:    quiz.ID,
				Number:    i + 1,
				EmailType: t,
			})
			if err != nil {
				return err
			}
			questions = append(questions, q)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &quiz, questions, nil
}

// Start moves a quiz to IN_PROGRESS. Starting an already completed quiz
// fails; restarting an in-progress quiz is a no-op.
func (qs *QuizService) Start(ctx context.Context, quizID string) (*domain.Quiz, error) {
	quiz, err := qs.store.Quizzes().GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	switch quiz.Status {
	case domain.QuizCompleted:
		return nil, fmt.Errorf("quiz %s already completed: %w", quizID, domain.ErrInvalidState)
	case domain.QuizInProgress:
		return quiz, nil
	}
	now := qs.now().UTC()
	quiz.Status = domain.QuizInProgress
	quiz.StartedAt = &now
	if err := qs.store.Quizzes().Update(ctx, *quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// Answer records the employee's classification for one question and
// grades it against the ground truth.
func (qs *QuizService) Answer(ctx context.Context, quizID, questionID string, answer domain.EmailType, timeSpentSeconds int) (*domain.QuizQuestion, error) {
	if answer != domain.EmailPhishing && answer != domain.EmailLegitimate {
		return nil, fmt.Errorf("unknown classification %q: %w", answer, domain.ErrValidation)
	}
	quiz, err := qs.store.Quizzes().GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status == domain.QuizCompleted {
		return nil, fmt.Errorf("quiz %s already completed: %w", quizID, domain.ErrInvalidState)
	}

	questions, err := qs.store.Quizzes().ListQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	var target *domain.QuizQuestion
	for i := range questions {
		if questions[i].ID == questionID {
			target = &questions[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("question %s not in quiz %s: %w", questionID, quizID, domain.ErrNotFound)
	}

	correct := answer == target.EmailType
	target.Answer = &answer
	target.IsCorrect = &correct
	if timeSpentSeconds > 0 {
		target.TimeSpentSeconds = timeSpentSeconds
	}
	if err := qs.store.Quizzes().UpdateQuestion(ctx, *target); err != nil {
		return nil, err
	}
	return target, nil
}

// Submit grades the quiz, stores the result and applies it to the
// employee's risk score. Every question must have an answer; submitting a
// completed quiz fails rather than double counting.
func (qs *QuizService) Submit(ctx context.Context, quizID string) (*domain.QuizResult, error) {
	quiz, err := qs.store.Quizzes().GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status == domain.QuizCompleted {
		return nil, fmt.Errorf("quiz %s already completed: %w", quizID, domain.ErrInvalidState)
	}

	questions, err := qs.store.Quizzes().ListQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("quiz %s has no questions: %w", quizID, domain.ErrValidation)
	}
	for _, q := range questions {
		if !q.Answered() {
			return nil, fmt.Errorf("question %d unanswered: %w", q.Number, domain.ErrValidation)
		}
	}

	now := qs.now().UTC()
	result := CalculateQuizResult(*quiz, questions, now)

	err = qs.store.WithTx(ctx, func(s Store) error {
		created, err := s.Results().Create(ctx, result)
		if err != nil {
			return err
		}
		result = created

		quiz.Status = domain.QuizCompleted
		quiz.CompletedAt = &now
		return s.Quizzes().Update(ctx, *quiz)
	})
	if err != nil {
		return nil, err
	}

	if _, err := qs.engine.ApplyQuizResult(ctx, quiz.CompanyRef, result); err != nil {
		return nil, fmt.Errorf("apply quiz result: %w", err)
	}
	qs.logger.Info("quiz submitted",
		zap.String("quiz_id", quiz.ID),
		zap.Float64("score", result.Score),
		zap.Int("phishing_missed", result.PhishingMissed))
	return &result, nil
}
