package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"phishaware/internal/domain"
	"phishaware/internal/usecase"
)

type SimulationRepository struct {
	db *gorm.DB
}

func (r *SimulationRepository) Create(ctx context.Context, sim domain.EmailSimulation) (domain.EmailSimulation, error) {
	if r.db == nil {
		return domain.EmailSimulation{}, errDBUnavailable
	}
	model := simulationToModel(sim)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.EmailSimulation{}, err
	}
	return sim, nil
}

func (r *SimulationRepository) GetByID(ctx context.Context, id string) (*domain.EmailSimulation, error) {
	return r.getBy(ctx, "id = ?", id)
}

func (r *SimulationRepository) GetByTrackingToken(ctx context.Context, token string) (*domain.EmailSimulation, error) {
	return r.getBy(ctx, "tracking_token = ?", token)
}

func (r *SimulationRepository) GetByLinkToken(ctx context.Context, token string) (*domain.EmailSimulation, error) {
	return r.getBy(ctx, "link_token = ?", token)
}

func (r *SimulationRepository) GetByCampaignAndEmployee(ctx context.Context, campaignID, employeeRef string) (*domain.EmailSimulation, error) {
	return r.getBy(ctx, "campaign_id = ? AND employee_ref = ?", campaignID, employeeRef)
}

func (r *SimulationRepository) getBy(ctx context.Context, query string, args ...any) (*domain.EmailSimulation, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model EmailSimulationModel
	err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	sim := simulationFromModel(model)
	return &sim, nil
}

func (r *SimulationRepository) Update(ctx context.Context, sim domain.EmailSimulation) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := simulationToModel(sim)
	result := r.db.WithContext(ctx).Model(&EmailSimulationModel{}).
		Where("id = ?", sim.ID).
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

func (r *SimulationRepository) ListByCampaign(ctx context.Context, campaignID string) ([]domain.EmailSimulation, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []EmailSimulationModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at, id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.EmailSimulation, 0, len(models))
	for _, m := range models {
		out = append(out, simulationFromModel(m))
	}
	return out, nil
}

func (r *SimulationRepository) CountByCampaign(ctx context.Context, campaignID string, f usecase.SimulationFilter) (int, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	q := r.db.WithContext(ctx).Model(&EmailSimulationModel{}).Where("campaign_id = ?", campaignID)
	if f.Opened != nil {
		q = q.Where("was_opened = ?", *f.Opened)
	}
	if f.Clicked != nil {
		q = q.Where("was_clicked = ?", *f.Clicked)
	}
	if f.Reported != nil {
		q = q.Where("was_reported = ?", *f.Reported)
	}
	if f.CredentialsEntered != nil {
		q = q.Where("credentials_entered = ?", *f.CredentialsEntered)
	}
	if len(f.StatusIn) > 0 {
		q = q.Where("status IN ?", statusStrings(f.StatusIn))
	}
	if len(f.StatusNotIn) > 0 {
		q = q.Where("status NOT IN ?", statusStrings(f.StatusNotIn))
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *SimulationRepository) MarkPendingSent(ctx context.Context, campaignID string, sentAt time.Time) ([]domain.EmailSimulation, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []EmailSimulationModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, string(domain.SimulationPending)).
		Order("created_at, id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	err = r.db.WithContext(ctx).Model(&EmailSimulationModel{}).
		Where("campaign_id = ? AND status = ?", campaignID, string(domain.SimulationPending)).
		Updates(map[string]any{
			"status":     string(domain.SimulationSent),
			"sent_at":    sentAt,
			"updated_at": sentAt,
		}).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.EmailSimulation, 0, len(models))
	for _, m := range models {
		sim := simulationFromModel(m)
		sim.Status = domain.SimulationSent
		at := sentAt
		sim.SentAt = &at
		sim.UpdatedAt = sentAt
		out = append(out, sim)
	}
	return out, nil
}

func statusStrings(in []domain.SimulationStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func simulationToModel(sim domain.EmailSimulation) EmailSimulationModel {
	return EmailSimulationModel{
		ID:                   sim.ID,
		CampaignID:           sim.CampaignID,
		EmployeeRef:          sim.EmployeeRef,
		RecipientEmail:       sim.RecipientEmail,
		TrackingToken:        sim.TrackingToken,
		LinkToken:            sim.LinkToken,
		Status:               string(sim.Status),
		WasOpened:            sim.WasOpened,
		WasClicked:           sim.WasClicked,
		WasReported:          sim.WasReported,
		CredentialsEntered:   sim.CredentialsEntered,
		SentAt:               sim.SentAt,
		DeliveredAt:          sim.DeliveredAt,
		FirstOpenedAt:        sim.FirstOpenedAt,
		ClickedAt:            sim.ClickedAt,
		ReportedAt:           sim.ReportedAt,
		CredentialsEnteredAt: sim.CredentialsEnteredAt,
		IPAddress:            sim.IPAddress,
		UserAgent:            sim.UserAgent,
		CreatedAt:            sim.CreatedAt,
		UpdatedAt:            sim.UpdatedAt,
	}
}

func simulationFromModel(m EmailSimulationModel) domain.EmailSimulation {
	return domain.EmailSimulation{
		ID:                   m.ID,
		CampaignID:           m.CampaignID,
		EmployeeRef:          m.EmployeeRef,
		RecipientEmail:       m.RecipientEmail,
		TrackingToken:        m.TrackingToken,
		LinkToken:            m.LinkToken,
		Status:               domain.SimulationStatus(m.Status),
		WasOpened:            m.WasOpened,
		WasClicked:           m.WasClicked,
		WasReported:          m.WasReported,
		CredentialsEntered:   m.CredentialsEntered,
		SentAt:               m.SentAt,
		DeliveredAt:          m.DeliveredAt,
		FirstOpenedAt:        m.FirstOpenedAt,
		ClickedAt:            m.ClickedAt,
		ReportedAt:           m.ReportedAt,
		CredentialsEnteredAt: m.CredentialsEnteredAt,
		IPAddress:            m.IPAddress,
		UserAgent:            m.UserAgent,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}
