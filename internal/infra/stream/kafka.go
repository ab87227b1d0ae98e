package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"phishaware/internal/domain"
)

// Publisher mirrors tracking events and score changes onto Kafka for
// downstream consumers (SIEM export, dashboards). Publish failures are
// logged and swallowed; the write path never depends on the broker.
type Publisher struct {
	writer        *kafka.Writer
	trackingTopic string
	scoreTopic    string
	logger        *zap.Logger
}

type PublisherConfig struct {
	Brokers           []string
	TrackingTopic     string
	ScoreChangesTopic string
	Logger            *zap.Logger
}

// NewPublisher returns nil when no brokers are configured; callers treat
// a nil publisher as a disabled stream.
func NewPublisher(cfg PublisherConfig) *Publisher {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Publisher{
		writer:        writer,
		trackingTopic: cfg.TrackingTopic,
		scoreTopic:    cfg.ScoreChangesTopic,
		logger:        logger,
	}
}

func (p *Publisher) PublishTrackingEvent(ctx context.Context, event domain.TrackingEvent) {
	p.publish(ctx, p.trackingTopic, event.SimulationID, event)
}

func (p *Publisher) PublishScoreChange(ctx context.Context, h domain.RiskScoreHistory) {
	p.publish(ctx, p.scoreTopic, h.EmployeeRef, h)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, payload any) {
	if p == nil || p.writer == nil || topic == "" {
		return
	}
	value, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("marshal stream payload", zap.Error(err))
		return
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("write kafka message",
			zap.String("topic", topic),
			zap.Error(err))
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
