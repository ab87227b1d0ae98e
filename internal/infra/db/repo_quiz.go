package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"phishaware/internal/domain"
)

type QuizRepository struct {
	db *gorm.DB
}

func (r *QuizRepository) Create(ctx context.Context, q domain.Quiz) (domain.Quiz, error) {
	if r.db == nil {
		return domain.Quiz{}, errDBUnavailable
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	model := QuizModel{
		ID:          q.ID,
		CampaignRef: q.CampaignRef,
		EmployeeRef: q.EmployeeRef,
		CompanyRef:  q.CompanyRef,
		Status:      string(q.Status),
		StartedAt:   q.StartedAt,
		CompletedAt: q.CompletedAt,
		CreatedAt:   q.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Quiz{}, err
	}
	return q, nil
}

func (r *QuizRepository) GetByID(ctx context.Context, id string) (*domain.Quiz, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model QuizModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	q := domain.Quiz{
		ID:          model.ID,
		CampaignRef: model.CampaignRef,
		EmployeeRef: model.EmployeeRef,
		CompanyRef:  model.CompanyRef,
		Status:      domain.QuizStatus(model.Status),
		StartedAt:   model.StartedAt,
		CompletedAt: model.CompletedAt,
		CreatedAt:   model.CreatedAt,
	}
	return &q, nil
}

func (r *QuizRepository) Update(ctx context.Context, q domain.Quiz) error {
	if r.db == nil {
		return errDBUnavailable
	}
	result := r.db.WithContext(ctx).Model(&QuizModel{}).
		Where("id = ?", q.ID).
		Select("status", "started_at", "completed_at").
		Updates(map[string]any{
			"status":       string(q.Status),
			"started_at":   q.StartedAt,
			"completed_at": q.CompletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *QuizRepository) ListQuestions(ctx context.Context, quizID string) ([]domain.QuizQuestion, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []QuizQuestionModel
	err := r.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("number, id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.QuizQuestion, 0, len(models))
	for _, m := range models {
		out = append(out, quizQuestionFromModel(m))
	}
	return out, nil
}

func (r *QuizRepository) UpdateQuestion(ctx context.Context, q domain.QuizQuestion) error {
	if r.db == nil {
		return errDBUnavailable
	}
	var answer *string
	if q.Answer != nil {
		s := string(*q.Answer)
		answer = &s
	}
	result := r.db.WithContext(ctx).Model(&QuizQuestionModel{}).
		Where("id = ?", q.ID).
		Select("answer", "is_correct", "time_spent_seconds").
		Updates(map[string]any{
			"answer":             answer,
			"is_correct":         q.IsCorrect,
			"time_spent_seconds": q.TimeSpentSeconds,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *QuizRepository) CreateQuestion(ctx context.Context, q domain.QuizQuestion) (domain.QuizQuestion, error) {
	if r.db == nil {
		return domain.QuizQuestion{}, errDBUnavailable
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	var answer *string
	if q.Answer != nil {
		s := string(*q.Answer)
		answer = &s
	}
	model := QuizQuestionModel{
		ID:               q.ID,
		QuizID:           q.QuizID,
		Number:           q.Number,
		EmailType:        string(q.EmailType),
		Answer:           answer,
		IsCorrect:        q.IsCorrect,
		TimeSpentSeconds: q.TimeSpentSeconds,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.QuizQuestion{}, err
	}
	return q, nil
}

type QuizResultRepository struct {
	db *gorm.DB
}

func (r *QuizResultRepository) Create(ctx context.Context, res domain.QuizResult) (domain.QuizResult, error) {
	if r.db == nil {
		return domain.QuizResult{}, errDBUnavailable
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	model := QuizResultModel{
		ID:                 res.ID,
		QuizID:             res.QuizID,
		EmployeeRef:        res.EmployeeRef,
		CampaignRef:        res.CampaignRef,
		TotalQuestions:     res.TotalQuestions,
		CorrectAnswers:     res.CorrectAnswers,
		IncorrectAnswers:   res.IncorrectAnswers,
		Score:              res.Score,
		PhishingIdentified: res.PhishingIdentified,
		PhishingMissed:     res.PhishingMissed,
		FalsePositives:     res.FalsePositives,
		TimeTakenSeconds:   res.TimeTakenSeconds,
		RiskLevel:          string(res.RiskLevel),
		CompletedAt:        res.CompletedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.QuizResult{}, err
	}
	return res, nil
}

func (r *QuizResultRepository) GetByQuiz(ctx context.Context, quizID string) (*domain.QuizResult, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model QuizResultModel
	err := r.db.WithContext(ctx).First(&model, "quiz_id = ?", quizID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	res := domain.QuizResult{
		ID:                 model.ID,
		QuizID:             model.QuizID,
		EmployeeRef:        model.EmployeeRef,
		CampaignRef:        model.CampaignRef,
		TotalQuestions:     model.TotalQuestions,
		CorrectAnswers:     model.CorrectAnswers,
		IncorrectAnswers:   model.IncorrectAnswers,
		Score:              model.Score,
		PhishingIdentified: model.PhishingIdentified,
		PhishingMissed:     model.PhishingMissed,
		FalsePositives:     model.FalsePositives,
		TimeTakenSeconds:   model.TimeTakenSeconds,
		RiskLevel:          domain.RiskLevel(model.RiskLevel),
		CompletedAt:        model.CompletedAt,
	}
	return &res, nil
}

func quizQuestionFromModel(m QuizQuestionModel) domain.QuizQuestion {
	var answer *domain.EmailType
	if m.Answer != nil {
		t := domain.EmailType(*m.Answer)
		answer = &t
	}
	return domain.QuizQuestion{
		ID:               m.ID,
		QuizID:           m.QuizID,
		Number:           m.Number,
		EmailType:        domain.EmailType(m.EmailType),
		Answer:           answer,
		IsCorrect:        m.IsCorrect,
		TimeSpentSeconds: m.TimeSpentSeconds,
	}
}
