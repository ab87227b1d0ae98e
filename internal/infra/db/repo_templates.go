package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"phishaware/internal/domain"
)

type TemplateRepository struct {
	db *gorm.DB
}

func (r *TemplateRepository) Create(ctx context.Context, t domain.SimulationTemplate) (domain.SimulationTemplate, error) {
	if r.db == nil {
		return domain.SimulationTemplate{}, errDBUnavailable
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	flags, err := marshalJSON(t.RedFlags)
	if err != nil {
		return domain.SimulationTemplate{}, err
	}
	model := SimulationTemplateModel{
		ID:                  t.ID,
		CompanyRef:          t.CompanyRef,
		Name:                t.Name,
		Description:         t.Description,
		SenderName:          t.SenderName,
		SenderEmail:         t.SenderEmail,
		ReplyToEmail:        t.ReplyToEmail,
		Subject:             t.Subject,
		BodyHTML:            t.BodyHTML,
		BodyPlain:           t.BodyPlain,
		AttackVector:        string(t.AttackVector),
		Difficulty:          t.Difficulty,
		RequiresLandingPage: t.RequiresLandingPage,
		LandingPageTitle:    t.LandingPageTitle,
		LandingPageMessage:  t.LandingPageMessage,
		RedFlags:            flags,
		Active:              t.Active,
		CreatedAt:           t.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.SimulationTemplate{}, err
	}
	return t, nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*domain.SimulationTemplate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SimulationTemplateModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	t := domain.SimulationTemplate{
		ID:                  model.ID,
		CompanyRef:          model.CompanyRef,
		Name:                model.Name,
		Description:         model.Description,
		SenderName:          model.SenderName,
		SenderEmail:         model.SenderEmail,
		ReplyToEmail:        model.ReplyToEmail,
		Subject:             model.Subject,
		BodyHTML:            model.BodyHTML,
		BodyPlain:           model.BodyPlain,
		AttackVector:        domain.AttackVector(model.AttackVector),
		Difficulty:          model.Difficulty,
		RequiresLandingPage: model.RequiresLandingPage,
		LandingPageTitle:    model.LandingPageTitle,
		LandingPageMessage:  model.LandingPageMessage,
		RedFlags:            unmarshalStrings(model.RedFlags),
		Active:              model.Active,
		CreatedAt:           model.CreatedAt,
	}
	return &t, nil
}
