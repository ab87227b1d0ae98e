package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"phishaware/internal/domain"
)

type CampaignRepository struct {
	db *gorm.DB
}

func (r *CampaignRepository) Create(ctx context.Context, c domain.SimulationCampaign) (domain.SimulationCampaign, error) {
	if r.db == nil {
		return domain.SimulationCampaign{}, errDBUnavailable
	}
	model := campaignToModel(c)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.SimulationCampaign{}, err
	}
	return c, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*domain.SimulationCampaign, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SimulationCampaignModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	c := campaignFromModel(model)
	return &c, nil
}

func (r *CampaignRepository) Update(ctx context.Context, c domain.SimulationCampaign) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := campaignToModel(c)
	result := r.db.WithContext(ctx).Model(&SimulationCampaignModel{}).
		Where("id = ?", c.ID).
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

func (r *CampaignRepository) ListTargets(ctx context.Context, campaignID string) ([]string, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var refs []string
	err := r.db.WithContext(ctx).Model(&CampaignTargetModel{}).
		Where("campaign_id = ?", campaignID).
		Order("id").
		Pluck("employee_ref", &refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *CampaignRepository) AddTargets(ctx context.Context, campaignID string, employeeRefs []string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if len(employeeRefs) == 0 {
		return nil
	}
	models := make([]CampaignTargetModel, 0, len(employeeRefs))
	for _, ref := range employeeRefs {
		models = append(models, CampaignTargetModel{CampaignID: campaignID, EmployeeRef: ref})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models).Error
}

func campaignToModel(c domain.SimulationCampaign) SimulationCampaignModel {
	return SimulationCampaignModel{
		ID:                      c.ID,
		CompanyRef:              c.CompanyRef,
		TemplateID:              c.TemplateID,
		Name:                    c.Name,
		Description:             c.Description,
		CreatedBy:               c.CreatedBy,
		Status:                  string(c.Status),
		SendDate:                c.SendDate,
		EndDate:                 c.EndDate,
		TargetAllEmployees:      c.TargetAllEmployees,
		TrackEmailOpens:         c.TrackEmailOpens,
		TrackLinkClicks:         c.TrackLinkClicks,
		TrackCredentials:        c.TrackCredentials,
		TotalSent:               c.TotalSent,
		TotalDelivered:          c.TotalDelivered,
		TotalOpened:             c.TotalOpened,
		TotalClicked:            c.TotalClicked,
		TotalReported:           c.TotalReported,
		TotalCredentialsEntered: c.TotalCredentialsEntered,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
		SentAt:                  c.SentAt,
		CompletedAt:             c.CompletedAt,
	}
}

func campaignFromModel(m SimulationCampaignModel) domain.SimulationCampaign {
	return domain.SimulationCampaign{
		ID:                      m.ID,
		CompanyRef:              m.CompanyRef,
		TemplateID:              m.TemplateID,
		Name:                    m.Name,
		Description:             m.Description,
		CreatedBy:               m.CreatedBy,
		Status:                  domain.CampaignStatus(m.Status),
		SendDate:                m.SendDate,
		EndDate:                 m.EndDate,
		TargetAllEmployees:      m.TargetAllEmployees,
		TrackEmailOpens:         m.TrackEmailOpens,
		TrackLinkClicks:         m.TrackLinkClicks,
		TrackCredentials:        m.TrackCredentials,
		TotalSent:               m.TotalSent,
		TotalDelivered:          m.TotalDelivered,
		TotalOpened:             m.TotalOpened,
		TotalClicked:            m.TotalClicked,
		TotalReported:           m.TotalReported,
		TotalCredentialsEntered: m.TotalCredentialsEntered,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
		SentAt:                  m.SentAt,
		CompletedAt:             m.CompletedAt,
	}
}
