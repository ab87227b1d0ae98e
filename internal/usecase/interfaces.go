package usecase

import (
	"context"
	"time"

	"phishaware/internal/domain"
)

// Store bundles the repositories and scopes them to a transaction. WithTx
// runs fn against a Store bound to one transaction; dedupe reads and the
// writes that depend on them must share that transaction so concurrent
// duplicates cannot both observe "not yet recorded".
type Store interface {
	Events() TrackingEventRepository
	Simulations() SimulationRepository
	Campaigns() CampaignRepository
	Templates() TemplateRepository
	Risk() RiskScoreRepository
	History() RiskHistoryRepository
	Modules() TrainingModuleRepository
	Questions() TrainingQuestionRepository
	Assignments() RemediationRepository
	Quizzes() QuizRepository
	Results() QuizResultRepository

	WithTx(ctx context.Context, fn func(Store) error) error
}

type TrackingEventRepository interface {
	Append(ctx context.Context, event domain.TrackingEvent) (domain.TrackingEvent, error)
	// HasEvent reports whether the simulation already has an accepted
	// event whose type is in types, excluding the event with excludeID
	// (pass "" to exclude nothing). Unaccepted audit rows never match.
	HasEvent(ctx context.Context, simulationID string, types []domain.EventType, excludeID string) (bool, error)
	ListBySimulation(ctx context.Context, simulationID string) ([]domain.TrackingEvent, error)
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.TrackingEvent, error)
}

// SimulationFilter narrows CountByCampaign. Nil flag pointers are
// ignored; empty status slices are ignored.
type SimulationFilter struct {
	Opened             *bool
	Clicked            *bool
	Reported           *bool
	CredentialsEntered *bool
	StatusIn           []domain.SimulationStatus
	StatusNotIn        []domain.SimulationStatus
}

type SimulationRepository interface {
	Create(ctx context.Context, sim domain.EmailSimulation) (domain.EmailSimulation, error)
	GetByID(ctx context.Context, id string) (*domain.EmailSimulation, error)
	GetByTrackingToken(ctx context.Context, token string) (*domain.EmailSimulation, error)
	GetByLinkToken(ctx context.Context, token string) (*domain.EmailSimulation, error)
	GetByCampaignAndEmployee(ctx context.Context, campaignID, employeeRef string) (*domain.EmailSimulation, error)
	Update(ctx context.Context, sim domain.EmailSimulation) error
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.EmailSimulation, error)
	CountByCampaign(ctx context.Context, campaignID string, f SimulationFilter) (int, error)
	// MarkPendingSent flips every PENDING simulation of the campaign to
	// SENT with sentAt, returning the simulations it updated.
	MarkPendingSent(ctx context.Context, campaignID string, sentAt time.Time) ([]domain.EmailSimulation, error)
}

type CampaignRepository interface {
	Create(ctx context.Context, c domain.SimulationCampaign) (domain.SimulationCampaign, error)
	GetByID(ctx context.Context, id string) (*domain.SimulationCampaign, error)
	Update(ctx context.Context, c domain.SimulationCampaign) error
	ListTargets(ctx context.Context, campaignID string) ([]string, error)
	AddTargets(ctx context.Context, campaignID string, employeeRefs []string) error
}

type TemplateRepository interface {
	Create(ctx context.Context, t domain.SimulationTemplate) (domain.SimulationTemplate, error)
	GetByID(ctx context.Context, id string) (*domain.SimulationTemplate, error)
}

type RiskScoreRepository interface {
	GetByEmployee(ctx context.Context, employeeRef string) (*domain.RiskScore, error)
	Create(ctx context.Context, rs domain.RiskScore) (domain.RiskScore, error)
	Update(ctx context.Context, rs domain.RiskScore) error
	// List returns scores for one company, or all scores when companyRef
	// is empty.
	List(ctx context.Context, companyRef string) ([]domain.RiskScore, error)
}

type RiskHistoryRepository interface {
	Append(ctx context.Context, h domain.RiskScoreHistory) (domain.RiskScoreHistory, error)
	ListByEmployee(ctx context.Context, employeeRef string, limit int) ([]domain.RiskScoreHistory, error)
}

type TrainingModuleRepository interface {
	Create(ctx context.Context, m domain.TrainingModule) (domain.TrainingModule, error)
	GetByID(ctx context.Context, id string) (*domain.TrainingModule, error)
	Update(ctx context.Context, m domain.TrainingModule) error
	// ListMandatory returns active mandatory modules visible to the
	// company: global modules plus company-specific ones.
	ListMandatory(ctx context.Context, companyRef string) ([]domain.TrainingModule, error)
	// FirstActiveByCategory prefers a global module, then a
	// company-specific one. Returns ErrNotFound when neither exists.
	FirstActiveByCategory(ctx context.Context, companyRef string, category domain.TrainingCategory) (*domain.TrainingModule, error)
}

type TrainingQuestionRepository interface {
	Create(ctx context.Context, q domain.TrainingQuestion) (domain.TrainingQuestion, error)
	ListByModule(ctx context.Context, moduleID string) ([]domain.TrainingQuestion, error)
}

type RemediationRepository interface {
	Create(ctx context.Context, t domain.RemediationTraining) (domain.RemediationTraining, error)
	GetByID(ctx context.Context, id string) (*domain.RemediationTraining, error)
	Update(ctx context.Context, t domain.RemediationTraining) error
	// HasOpen reports whether the employee already has an ASSIGNED or
	// IN_PROGRESS assignment for the module.
	HasOpen(ctx context.Context, employeeRef, moduleID string) (bool, error)
	ListByEmployee(ctx context.Context, employeeRef string) ([]domain.RemediationTraining, error)
	ListOverdue(ctx context.Context, now time.Time) ([]domain.RemediationTraining, error)
}

type QuizRepository interface {
	Create(ctx context.Context, q domain.Quiz) (domain.Quiz, error)
	GetByID(ctx context.Context, id string) (*domain.Quiz, error)
	Update(ctx context.Context, q domain.Quiz) error
	ListQuestions(ctx context.Context, quizID string) ([]domain.QuizQuestion, error)
	UpdateQuestion(ctx context.Context, q domain.QuizQuestion) error
	CreateQuestion(ctx context.Context, q domain.QuizQuestion) (domain.QuizQuestion, error)
}

type QuizResultRepository interface {
	Create(ctx context.Context, r domain.QuizResult) (domain.QuizResult, error)
	GetByQuiz(ctx context.Context, quizID string) (*domain.QuizResult, error)
}

// EmployeeDirectory is the read-only view of the externally managed user
// store.
type EmployeeDirectory interface {
	Get(ctx context.Context, ref string) (*domain.Employee, error)
	ListActiveByCompany(ctx context.Context, companyRef string) ([]domain.Employee, error)
}

// EventPublisher mirrors normalized events onto an external stream for
// downstream consumers. Publishing failures are observability loss,
// never request failures.
type EventPublisher interface {
	PublishTrackingEvent(ctx context.Context, event domain.TrackingEvent)
	PublishScoreChange(ctx context.Context, h domain.RiskScoreHistory)
}
