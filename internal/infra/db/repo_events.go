package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"phishaware/internal/domain"
)

// TrackingEventRepository persists the append-only behavioral event log.
// Rows are never updated or deleted.
type TrackingEventRepository struct {
	db *gorm.DB
}

func (r *TrackingEventRepository) Append(ctx context.Context, event domain.TrackingEvent) (domain.TrackingEvent, error) {
	if r.db == nil {
		return domain.TrackingEvent{}, errDBUnavailable
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	data, err := marshalJSON(event.EventData)
	if err != nil {
		return domain.TrackingEvent{}, err
	}
	model := TrackingEventModel{
		ID:           event.ID,
		SimulationID: event.SimulationID,
		CampaignID:   event.CampaignID,
		EmployeeRef:  event.EmployeeRef,
		EventType:    string(event.EventType),
		EventData:    data,
		IPAddress:    event.IPAddress,
		UserAgent:    event.UserAgent,
		Accepted:     event.Accepted,
		CreatedAt:    event.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.TrackingEvent{}, err
	}
	return event, nil
}

func (r *TrackingEventRepository) HasEvent(ctx context.Context, simulationID string, types []domain.EventType, excludeID string) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	typeStrings := make([]string, len(types))
	for i, t := range types {
		typeStrings[i] = string(t)
	}
	q := r.db.WithContext(ctx).Model(&TrackingEventModel{}).
		Where("simulation_id = ? AND event_type IN ? AND accepted", simulationID, typeStrings)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *TrackingEventRepository) ListBySimulation(ctx context.Context, simulationID string) ([]domain.TrackingEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []TrackingEventModel
	err := r.db.WithContext(ctx).
		Where("simulation_id = ?", simulationID).
		Order("created_at, id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return eventsFromModels(models), nil
}

func (r *TrackingEventRepository) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.TrackingEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	q := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []TrackingEventModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	return eventsFromModels(models), nil
}

func eventsFromModels(models []TrackingEventModel) []domain.TrackingEvent {
	out := make([]domain.TrackingEvent, 0, len(models))
	for _, m := range models {
		out = append(out, domain.TrackingEvent{
			ID:           m.ID,
			SimulationID: m.SimulationID,
			CampaignID:   m.CampaignID,
			EmployeeRef:  m.EmployeeRef,
			EventType:    domain.EventType(m.EventType),
			EventData:    unmarshalMap(m.EventData),
			IPAddress:    m.IPAddress,
			UserAgent:    m.UserAgent,
			Accepted:     m.Accepted,
			CreatedAt:    m.CreatedAt,
		})
	}
	return out
}
