package main

import (
	"log"

	"github.com/joho/godotenv"

	"phishaware/internal/config"
	"phishaware/internal/infra/db"
	httpinfra "phishaware/internal/infra/http"
	"phishaware/internal/infra/stream"
	"phishaware/internal/logging"
	"phishaware/internal/usecase"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	publisher := stream.NewPublisher(stream.PublisherConfig{
		Brokers:           cfg.KafkaBrokers,
		TrackingTopic:     cfg.KafkaTrackingTopic,
		ScoreChangesTopic: cfg.KafkaScoreChangesTopic,
		Logger:            logger,
	})
	defer func() { _ = publisher.Close() }()

	// stream.Publisher is nil when no brokers are configured; keep the
	// interface value nil too so callers skip publishing entirely.
	var events usecase.EventPublisher
	if publisher != nil {
		events = publisher
	}

	directory := db.NewEmployeeDirectory(store.DB)
	engine := usecase.NewRiskEngine(store, directory, events, logger, cfg.RemediationDueDays)
	tracker := usecase.NewTracker(store, events, logger)
	campaigns := usecase.NewCampaignService(store, directory, engine, logger, cfg.SiteBaseURL)
	quizzes := usecase.NewQuizService(store, engine, logger)
	training := usecase.NewTrainingService(store, engine, logger)

	srv := httpinfra.NewServerWithDeps(cfg, httpinfra.ServerDeps{
		Tracker:    tracker,
		RiskEngine: engine,
		Campaigns:  campaigns,
		Quizzes:    quizzes,
		Training:   training,
		Store:      store,
		Logger:     logger,
	})
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
