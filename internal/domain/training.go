package domain

import "time"

type TrainingCategory string

const (
	CategoryPhishingBasics       TrainingCategory = "PHISHING_BASICS"
	CategoryEmailSecurity        TrainingCategory = "EMAIL_SECURITY"
	CategoryLinkSafety           TrainingCategory = "LINK_SAFETY"
	CategoryCredentialProtection TrainingCategory = "CREDENTIAL_PROTECTION"
	CategorySocialEngineering    TrainingCategory = "SOCIAL_ENGINEERING"
	CategoryReportingProcedures  TrainingCategory = "REPORTING_PROCEDURES"
	CategoryGeneralAwareness     TrainingCategory = "GENERAL_AWARENESS"
)

// vectorCategories maps a simulation's attack vector to the training
// category assigned after a compromise on that vector.
var vectorCategories = map[AttackVector]TrainingCategory{
	VectorLinkManipulation:        CategoryLinkSafety,
	VectorCredentialHarvesting:    CategoryCredentialProtection,
	VectorAttachmentMalware:       CategoryEmailSecurity,
	VectorUrgencyScam:             CategorySocialEngineering,
	VectorAuthorityImpersonation:  CategorySocialEngineering,
	VectorPrizeLottery:            CategoryPhishingBasics,
	VectorBusinessEmailCompromise: CategoryEmailSecurity,
}

// CategoryForVector returns the remediation category for an attack
// vector, if one is mapped.
func CategoryForVector(v AttackVector) (TrainingCategory, bool) {
	c, ok := vectorCategories[v]
	return c, ok
}

// TrainingModule is one unit of remediation content plus its post-training
// quiz configuration. CompanyRef empty means the module is global.
type TrainingModule struct {
	ID          string
	CompanyRef  string
	Title       string
	Description string

	Category    TrainingCategory
	ContentType string
	Difficulty  string
	ContentHTML string
	VideoURL    string

	DurationMinutes int

	PassingScore         int
	MinQuestionsRequired int

	// ScoreReductionOnPass is subtracted from the employee's risk score
	// when the post-training quiz is passed.
	ScoreReductionOnPass int

	Active    bool
	Mandatory bool

	TimesAssigned  int
	TimesCompleted int
	TimesPassed    int
	AverageScore   float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrainingQuestion is a multiple-choice question of a module's quiz.
// CorrectIndex is the 0-based index into Options.
type TrainingQuestion struct {
	ID       string
	ModuleID string
	Number   int

	Text         string
	Options      []string
	CorrectIndex int
	Explanation  string

	Active bool
}

type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "ASSIGNED"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted  AssignmentStatus = "COMPLETED"
	AssignmentPassed     AssignmentStatus = "PASSED"
	AssignmentFailed     AssignmentStatus = "FAILED"
	AssignmentExpired    AssignmentStatus = "EXPIRED"
)

// Open reports whether the assignment still counts against the one-open-
// assignment-per-(employee, module) invariant.
func (s AssignmentStatus) Open() bool {
	return s == AssignmentAssigned || s == AssignmentInProgress
}

type AssignmentReason string

const (
	ReasonAutoHighRisk       AssignmentReason = "AUTO_HIGH_RISK"
	ReasonAutoSimulationFail AssignmentReason = "AUTO_SIMULATION_FAIL"
	ReasonAutoQuizFail       AssignmentReason = "AUTO_QUIZ_FAIL"
	ReasonManualAdmin        AssignmentReason = "MANUAL_ADMIN"
	ReasonMandatory          AssignmentReason = "MANDATORY"
)

// RemediationTraining is one training assignment for one employee.
type RemediationTraining struct {
	ID          string
	EmployeeRef string
	CompanyRef  string
	ModuleID    string

	Status AssignmentStatus
	Reason AssignmentReason

	AssignedBy string

	AssignedAt  time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	DueDate     *time.Time

	QuizAttempts   int
	QuizScore      *float64
	CorrectAnswers int
	TotalQuestions int

	ContentViewed   bool
	ContentViewedAt *time.Time

	RiskScoreBefore *int
	RiskScoreAfter  *int

	SourceType string
	SourceID   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Overdue reports whether the assignment blew past its due date without
// being finished.
func (t RemediationTraining) Overdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	if t.Status == AssignmentPassed || t.Status == AssignmentCompleted {
		return false
	}
	return now.After(*t.DueDate)
}

// Employee is the narrow read-only view of the external directory that
// the engine needs for targeting and package generation.
type Employee struct {
	Ref        string
	CompanyRef string
	Email      string
	FirstName  string
	LastName   string
	Active     bool
}

func (e Employee) FullName() string {
	switch {
	case e.FirstName != "" && e.LastName != "":
		return e.FirstName + " " + e.LastName
	case e.FirstName != "":
		return e.FirstName
	case e.LastName != "":
		return e.LastName
	default:
		return ""
	}
}
