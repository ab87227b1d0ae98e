package db

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"phishaware/internal/config"
	"phishaware/internal/usecase"
)

// Store is the gorm-backed implementation of usecase.Store. Every
// repository accessor returns a repo bound to the store's current
// *gorm.DB, which inside WithTx is the transaction handle.
type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{DB: gdb}, nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	return s.DB.AutoMigrate(
		&TrackingEventModel{},
		&EmailSimulationModel{},
		&SimulationCampaignModel{},
		&CampaignTargetModel{},
		&SimulationTemplateModel{},
		&RiskScoreModel{},
		&RiskScoreHistoryModel{},
		&TrainingModuleModel{},
		&TrainingQuestionModel{},
		&RemediationTrainingModel{},
		&QuizModel{},
		&QuizQuestionModel{},
		&QuizResultModel{},
		&EmployeeModel{},
	)
}

func (s *Store) Events() usecase.TrackingEventRepository   { return &TrackingEventRepository{db: s.DB} }
func (s *Store) Simulations() usecase.SimulationRepository { return &SimulationRepository{db: s.DB} }
func (s *Store) Campaigns() usecase.CampaignRepository     { return &CampaignRepository{db: s.DB} }
func (s *Store) Templates() usecase.TemplateRepository     { return &TemplateRepository{db: s.DB} }
func (s *Store) Risk() usecase.RiskScoreRepository         { return &RiskScoreRepository{db: s.DB} }
func (s *Store) History() usecase.RiskHistoryRepository    { return &RiskHistoryRepository{db: s.DB} }
func (s *Store) Modules() usecase.TrainingModuleRepository {
	return &TrainingModuleRepository{db: s.DB}
}
func (s *Store) Questions() usecase.TrainingQuestionRepository {
	return &TrainingQuestionRepository{db: s.DB}
}
func (s *Store) Assignments() usecase.RemediationRepository { return &RemediationRepository{db: s.DB} }
func (s *Store) Quizzes() usecase.QuizRepository            { return &QuizRepository{db: s.DB} }
func (s *Store) Results() usecase.QuizResultRepository      { return &QuizResultRepository{db: s.DB} }

// WithTx runs fn against a Store bound to one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(usecase.Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{DB: tx})
	})
}
