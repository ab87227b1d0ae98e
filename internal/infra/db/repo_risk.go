package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"phishaware/internal/domain"
)

type RiskScoreRepository struct {
	db *gorm.DB
}

func (r *RiskScoreRepository) GetByEmployee(ctx context.Context, employeeRef string) (*domain.RiskScore, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model RiskScoreModel
	err := r.db.WithContext(ctx).First(&model, "employee_ref = ?", employeeRef).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rs := riskFromModel(model)
	return &rs, nil
}

func (r *RiskScoreRepository) Create(ctx context.Context, rs domain.RiskScore) (domain.RiskScore, error) {
	if r.db == nil {
		return domain.RiskScore{}, errDBUnavailable
	}
	model := riskToModel(rs)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.RiskScore{}, err
	}
	return rs, nil
}

func (r *RiskScoreRepository) Update(ctx context.Context, rs domain.RiskScore) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := riskToModel(rs)
	result := r.db.WithContext(ctx).Model(&RiskScoreModel{}).
		Where("id = ?", rs.ID).
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

func (r *RiskScoreRepository) List(ctx context.Context, companyRef string) ([]domain.RiskScore, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	q := r.db.WithContext(ctx).Order("employee_ref")
	if companyRef != "" {
		q = q.Where("company_ref = ?", companyRef)
	}
	var models []RiskScoreModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RiskScore, 0, len(models))
	for _, m := range models {
		out = append(out, riskFromModel(m))
	}
	return out, nil
}

type RiskHistoryRepository struct {
	db *gorm.DB
}

func (r *RiskHistoryRepository) Append(ctx context.Context, h domain.RiskScoreHistory) (domain.RiskScoreHistory, error) {
	if r.db == nil {
		return domain.RiskScoreHistory{}, errDBUnavailable
	}
	model := RiskScoreHistoryModel{
		ID:                h.ID,
		RiskScoreID:       h.RiskScoreID,
		EmployeeRef:       h.EmployeeRef,
		EventType:         string(h.EventType),
		PreviousScore:     h.PreviousScore,
		NewScore:          h.NewScore,
		ScoreChange:       h.ScoreChange,
		PreviousRiskLevel: string(h.PreviousRiskLevel),
		NewRiskLevel:      string(h.NewRiskLevel),
		SourceType:        h.SourceType,
		SourceID:          h.SourceID,
		Description:       h.Description,
		CreatedAt:         h.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.RiskScoreHistory{}, err
	}
	return h, nil
}

func (r *RiskHistoryRepository) ListByEmployee(ctx context.Context, employeeRef string, limit int) ([]domain.RiskScoreHistory, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	q := r.db.WithContext(ctx).
		Where("employee_ref = ?", employeeRef).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []RiskScoreHistoryModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RiskScoreHistory, 0, len(models))
	for _, m := range models {
		out = append(out, domain.RiskScoreHistory{
			ID:                m.ID,
			RiskScoreID:       m.RiskScoreID,
			EmployeeRef:       m.EmployeeRef,
			EventType:         domain.HistoryEventType(m.EventType),
			PreviousScore:     m.PreviousScore,
			NewScore:          m.NewScore,
			ScoreChange:       m.ScoreChange,
			PreviousRiskLevel: domain.RiskLevel(m.PreviousRiskLevel),
			NewRiskLevel:      domain.RiskLevel(m.NewRiskLevel),
			SourceType:        m.SourceType,
			SourceID:          m.SourceID,
			Description:       m.Description,
			CreatedAt:         m.CreatedAt,
		})
	}
	return out, nil
}

func riskToModel(rs domain.RiskScore) RiskScoreModel {
	return RiskScoreModel{
		ID:                       rs.ID,
		EmployeeRef:              rs.EmployeeRef,
		CompanyRef:               rs.CompanyRef,
		Score:                    rs.Score,
		RiskLevel:                string(rs.RiskLevel),
		TotalQuizzesTaken:        rs.TotalQuizzesTaken,
		TotalQuizQuestions:       rs.TotalQuizQuestions,
		CorrectQuizAnswers:       rs.CorrectQuizAnswers,
		PhishingEmailsMissed:     rs.PhishingEmailsMissed,
		TotalSimulationsReceived: rs.TotalSimulationsReceived,
		SimulationsOpened:        rs.SimulationsOpened,
		SimulationsClicked:       rs.SimulationsClicked,
		SimulationsReported:      rs.SimulationsReported,
		CredentialsEntered:       rs.CredentialsEntered,
		TrainingsAssigned:        rs.TrainingsAssigned,
		TrainingsCompleted:       rs.TrainingsCompleted,
		TrainingsPassed:          rs.TrainingsPassed,
		RequiresRemediation:      rs.RequiresRemediation,
		LastQuizDate:             rs.LastQuizDate,
		LastSimulationDate:       rs.LastSimulationDate,
		LastTrainingDate:         rs.LastTrainingDate,
		CreatedAt:                rs.CreatedAt,
		UpdatedAt:                rs.UpdatedAt,
	}
}

func riskFromModel(m RiskScoreModel) domain.RiskScore {
	return domain.RiskScore{
		ID:                       m.ID,
		EmployeeRef:              m.EmployeeRef,
		CompanyRef:               m.CompanyRef,
		Score:                    m.Score,
		RiskLevel:                domain.RiskLevel(m.RiskLevel),
		TotalQuizzesTaken:        m.TotalQuizzesTaken,
		TotalQuizQuestions:       m.TotalQuizQuestions,
		CorrectQuizAnswers:       m.CorrectQuizAnswers,
		PhishingEmailsMissed:     m.PhishingEmailsMissed,
		TotalSimulationsReceived: m.TotalSimulationsReceived,
		SimulationsOpened:        m.SimulationsOpened,
		SimulationsClicked:       m.SimulationsClicked,
		SimulationsReported:      m.SimulationsReported,
		CredentialsEntered:       m.CredentialsEntered,
		TrainingsAssigned:        m.TrainingsAssigned,
		TrainingsCompleted:       m.TrainingsCompleted,
		TrainingsPassed:          m.TrainingsPassed,
		RequiresRemediation:      m.RequiresRemediation,
		LastQuizDate:             m.LastQuizDate,
		LastSimulationDate:       m.LastSimulationDate,
		LastTrainingDate:         m.LastTrainingDate,
		CreatedAt:                m.CreatedAt,
		UpdatedAt:                m.UpdatedAt,
	}
}
