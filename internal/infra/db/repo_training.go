package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"phishaware/internal/domain"
)

type TrainingModuleRepository struct {
	db *gorm.DB
}

func (r *TrainingModuleRepository) Create(ctx context.Context, m domain.TrainingModule) (domain.TrainingModule, error) {
	if r.db == nil {
		return domain.TrainingModule{}, errDBUnavailable
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	model := moduleToModel(m)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.TrainingModule{}, err
	}
	return m, nil
}

func (r *TrainingModuleRepository) GetByID(ctx context.Context, id string) (*domain.TrainingModule, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model TrainingModuleModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	m := moduleFromModel(model)
	return &m, nil
}

func (r *TrainingModuleRepository) Update(ctx context.Context, m domain.TrainingModule) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := moduleToModel(m)
	result := r.db.WithContext(ctx).Model(&TrainingModuleModel{}).
		Where("id = ?", m.ID).
		Select("*").Omit("id", "created_at").
		Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TrainingModuleRepository) ListMandatory(ctx context.Context, companyRef string) ([]domain.TrainingModule, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []TrainingModuleModel
	err := r.db.WithContext(ctx).
		Where("active AND mandatory").
		Where("company_ref = '' OR company_ref = ?", companyRef).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.TrainingModule, 0, len(models))
	for _, m := range models {
		out = append(out, moduleFromModel(m))
	}
	return out, nil
}

func (r *TrainingModuleRepository) FirstActiveByCategory(ctx context.Context, companyRef string, category domain.TrainingCategory) (*domain.TrainingModule, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model TrainingModuleModel
	// Global modules sort ahead of company-specific ones.
	err := r.db.WithContext(ctx).
		Where("active AND category = ?", string(category)).
		Where("company_ref = '' OR company_ref = ?", companyRef).
		Order("company_ref, id").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	m := moduleFromModel(model)
	return &m, nil
}

type TrainingQuestionRepository struct {
	db *gorm.DB
}

func (r *TrainingQuestionRepository) Create(ctx context.Context, q domain.TrainingQuestion) (domain.TrainingQuestion, error) {
	if r.db == nil {
		return domain.TrainingQuestion{}, errDBUnavailable
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	options, err := marshalJSON(q.Options)
	if err != nil {
		return domain.TrainingQuestion{}, err
	}
	model := TrainingQuestionModel{
		ID:           q.ID,
		ModuleID:     q.ModuleID,
		Number:       q.Number,
		Text:         q.Text,
		Options:      options,
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
		Active:       q.Active,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.TrainingQuestion{}, err
	}
	return q, nil
}

func (r *TrainingQuestionRepository) ListByModule(ctx context.Context, moduleID string) ([]domain.TrainingQuestion, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []TrainingQuestionModel
	err := r.db.WithContext(ctx).
		Where("module_id = ?", moduleID).
		Order("number, id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.TrainingQuestion, 0, len(models))
	for _, m := range models {
		options := unmarshalStrings(m.Options)
		out = append(out, domain.TrainingQuestion{
			ID:           m.ID,
			ModuleID:     m.ModuleID,
			Number:       m.Number,
			Text:         m.Text,
			Options:      options,
			CorrectIndex: m.CorrectIndex,
			Explanation:  m.Explanation,
			Active:       m.Active,
		})
	}
	return out, nil
}

type RemediationRepository struct {
	db *gorm.DB
}

var openAssignmentStatuses = []string{
	string(domain.AssignmentAssigned),
	string(domain.AssignmentInProgress),
}

func (r *RemediationRepository) Create(ctx context.Context, t domain.RemediationTraining) (domain.RemediationTraining, error) {
	if r.db == nil {
		return domain.RemediationTraining{}, errDBUnavailable
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	model := remediationToModel(t)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.RemediationTraining{}, err
	}
	return t, nil
}

func (r *RemediationRepository) GetByID(ctx context.Context, id string) (*domain.RemediationTraining, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model RemediationTrainingModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	t := remediationFromModel(model)
	return &t, nil
}

func (r *RemediationRepository) Update(ctx context.Context, t domain.RemediationTraining) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := remediationToModel(t)
	result := r.db.WithContext(ctx).Model(&RemediationTrainingModel{}).
		Where("id = ?", t.ID).
		Select("*").Omit("id", "created_at").
		Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RemediationRepository) HasOpen(ctx context.Context, employeeRef, moduleID string) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&RemediationTrainingModel{}).
		Where("employee_ref = ? AND module_id = ?", employeeRef, moduleID).
		Where("status IN ?", openAssignmentStatuses).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RemediationRepository) ListByEmployee(ctx context.Context, employeeRef string) ([]domain.RemediationTraining, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []RemediationTrainingModel
	err := r.db.WithContext(ctx).
		Where("employee_ref = ?", employeeRef).
		Order("assigned_at DESC, id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return remediationsFromModels(models), nil
}

func (r *RemediationRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.RemediationTraining, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []RemediationTrainingModel
	err := r.db.WithContext(ctx).
		Where("due_date IS NOT NULL AND due_date < ?", now).
		Where("status IN ?", openAssignmentStatuses).
		Order("due_date, id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return remediationsFromModels(models), nil
}

func remediationsFromModels(models []RemediationTrainingModel) []domain.RemediationTraining {
	out := make([]domain.RemediationTraining, 0, len(models))
	for _, m := range models {
		out = append(out, remediationFromModel(m))
	}
	return out
}

func moduleToModel(m domain.TrainingModule) TrainingModuleModel {
	return TrainingModuleModel{
		ID:                   m.ID,
		CompanyRef:           m.CompanyRef,
		Title:                m.Title,
		Description:          m.Description,
		Category:             string(m.Category),
		ContentType:          m.ContentType,
		Difficulty:           m.Difficulty,
		ContentHTML:          m.ContentHTML,
		VideoURL:             m.VideoURL,
		DurationMinutes:      m.DurationMinutes,
		PassingScore:         m.PassingScore,
		MinQuestionsRequired: m.MinQuestionsRequired,
		ScoreReductionOnPass: m.ScoreReductionOnPass,
		Active:               m.Active,
		Mandatory:            m.Mandatory,
		TimesAssigned:        m.TimesAssigned,
		TimesCompleted:       m.TimesCompleted,
		TimesPassed:          m.TimesPassed,
		AverageScore:         m.AverageScore,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func moduleFromModel(m TrainingModuleModel) domain.TrainingModule {
	return domain.TrainingModule{
		ID:                   m.ID,
		CompanyRef:           m.CompanyRef,
		Title:                m.Title,
		Description:          m.Description,
		Category:             domain.TrainingCategory(m.Category),
		ContentType:          m.ContentType,
		Difficulty:           m.Difficulty,
		ContentHTML:          m.ContentHTML,
		VideoURL:             m.VideoURL,
		DurationMinutes:      m.DurationMinutes,
		PassingScore:         m.PassingScore,
		MinQuestionsRequired: m.MinQuestionsRequired,
		ScoreReductionOnPass: m.ScoreReductionOnPass,
		Active:               m.Active,
		Mandatory:            m.Mandatory,
		TimesAssigned:        m.TimesAssigned,
		TimesCompleted:       m.TimesCompleted,
		TimesPassed:          m.TimesPassed,
		AverageScore:         m.AverageScore,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func remediationToModel(t domain.RemediationTraining) RemediationTrainingModel {
	return RemediationTrainingModel{
		ID:              t.ID,
		EmployeeRef:     t.EmployeeRef,
		CompanyRef:      t.CompanyRef,
		ModuleID:        t.ModuleID,
		Status:          string(t.Status),
		Reason:          string(t.Reason),
		AssignedBy:      t.AssignedBy,
		AssignedAt:      t.AssignedAt,
		StartedAt:       t.StartedAt,
		CompletedAt:     t.CompletedAt,
		DueDate:         t.DueDate,
		QuizAttempts:    t.QuizAttempts,
		QuizScore:       t.QuizScore,
		CorrectAnswers:  t.CorrectAnswers,
		TotalQuestions:  t.TotalQuestions,
		ContentViewed:   t.ContentViewed,
		ContentViewedAt: t.ContentViewedAt,
		RiskScoreBefore: t.RiskScoreBefore,
		RiskScoreAfter:  t.RiskScoreAfter,
		SourceType:      t.SourceType,
		SourceID:        t.SourceID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func remediationFromModel(m RemediationTrainingModel) domain.RemediationTraining {
	return domain.RemediationTraining{
		ID:              m.ID,
		EmployeeRef:     m.EmployeeRef,
		CompanyRef:      m.CompanyRef,
		ModuleID:        m.ModuleID,
		Status:          domain.AssignmentStatus(m.Status),
		Reason:          domain.AssignmentReason(m.Reason),
		AssignedBy:      m.AssignedBy,
		AssignedAt:      m.AssignedAt,
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
		DueDate:         m.DueDate,
		QuizAttempts:    m.QuizAttempts,
		QuizScore:       m.QuizScore,
		CorrectAnswers:  m.CorrectAnswers,
		TotalQuestions:  m.TotalQuestions,
		ContentViewed:   m.ContentViewed,
		ContentViewedAt: m.ContentViewedAt,
		RiskScoreBefore: m.RiskScoreBefore,
		RiskScoreAfter:  m.RiskScoreAfter,
		SourceType:      m.SourceType,
		SourceID:        m.SourceID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
