package db

import "time"

type TrackingEventModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	SimulationID string `gorm:"type:uuid;index;not null"`
	CampaignID   string `gorm:"type:uuid;index;not null"`
	EmployeeRef  string `gorm:"index;not null"`
	EventType    string `gorm:"index;not null"`
	EventData    []byte `gorm:"type:jsonb"`
	IPAddress    string
	UserAgent    string
	Accepted     bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"index;not null"`
}

func (TrackingEventModel) TableName() string { return "tracking_events" }

type EmailSimulationModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	CampaignID     string `gorm:"type:uuid;uniqueIndex:ux_campaign_employee;not null"`
	EmployeeRef    string `gorm:"uniqueIndex:ux_campaign_employee;not null"`
	RecipientEmail string `gorm:"not null"`

	TrackingToken string `gorm:"uniqueIndex;not null"`
	LinkToken     string `gorm:"uniqueIndex;not null"`

	Status string `gorm:"index;not null"`

	WasOpened          bool `gorm:"not null;default:false"`
	WasClicked         bool `gorm:"not null;default:false"`
	WasReported        bool `gorm:"not null;default:false"`
	CredentialsEntered bool `gorm:"not null;default:false"`

	SentAt               *time.Time
	DeliveredAt          *time.Time
	FirstOpenedAt        *time.Time
	ClickedAt            *time.Time
	ReportedAt           *time.Time
	CredentialsEnteredAt *time.Time

	IPAddress string
	UserAgent string

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (EmailSimulationModel) TableName() string { return "email_simulations" }

type SimulationCampaignModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	CompanyRef  string `gorm:"index;not null"`
	TemplateID  string `gorm:"type:uuid;not null"`
	Name        string `gorm:"not null"`
	Description string
	CreatedBy   string

	Status   string `gorm:"index;not null"`
	SendDate *time.Time
	EndDate  *time.Time

	TargetAllEmployees bool `gorm:"not null;default:false"`

	TrackEmailOpens  bool `gorm:"not null;default:true"`
	TrackLinkClicks  bool `gorm:"not null;default:true"`
	TrackCredentials bool `gorm:"not null;default:false"`

	TotalSent               int `gorm:"not null;default:0"`
	TotalDelivered          int `gorm:"not null;default:0"`
	TotalOpened             int `gorm:"not null;default:0"`
	TotalClicked            int `gorm:"not null;default:0"`
	TotalReported           int `gorm:"not null;default:0"`
	TotalCredentialsEntered int `gorm:"not null;default:0"`

	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	SentAt      *time.Time
	CompletedAt *time.Time
}

func (SimulationCampaignModel) TableName() string { return "simulation_campaigns" }

type CampaignTargetModel struct {
	ID          int64  `gorm:"primaryKey"`
	CampaignID  string `gorm:"type:uuid;uniqueIndex:ux_target;not null"`
	EmployeeRef string `gorm:"uniqueIndex:ux_target;not null"`
}

func (CampaignTargetModel) TableName() string { return "campaign_targets" }

type SimulationTemplateModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	CompanyRef  string `gorm:"index"`
	Name        string `gorm:"not null"`
	Description string

	SenderName   string
	SenderEmail  string
	ReplyToEmail string
	Subject      string `gorm:"not null"`
	BodyHTML     string `gorm:"type:text"`
	BodyPlain    string `gorm:"type:text"`

	AttackVector string `gorm:"index;not null"`
	Difficulty   string

	RequiresLandingPage bool `gorm:"not null;default:false"`
	LandingPageTitle    string
	LandingPageMessage  string `gorm:"type:text"`
	RedFlags            []byte `gorm:"type:jsonb"`

	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
}

func (SimulationTemplateModel) TableName() string { return "simulation_templates" }

type RiskScoreModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	EmployeeRef string `gorm:"uniqueIndex;not null"`
	CompanyRef  string `gorm:"index;not null"`

	Score     int    `gorm:"not null"`
	RiskLevel string `gorm:"index;not null"`

	TotalQuizzesTaken    int `gorm:"not null;default:0"`
	TotalQuizQuestions   int `gorm:"not null;default:0"`
	CorrectQuizAnswers   int `gorm:"not null;default:0"`
	PhishingEmailsMissed int `gorm:"not null;default:0"`

	TotalSimulationsReceived int `gorm:"not null;default:0"`
	SimulationsOpened        int `gorm:"not null;default:0"`
	SimulationsClicked       int `gorm:"not null;default:0"`
	SimulationsReported      int `gorm:"not null;default:0"`
	CredentialsEntered       int `gorm:"not null;default:0"`

	TrainingsAssigned  int `gorm:"not null;default:0"`
	TrainingsCompleted int `gorm:"not null;default:0"`
	TrainingsPassed    int `gorm:"not null;default:0"`

	RequiresRemediation bool `gorm:"not null;default:false"`

	LastQuizDate       *time.Time
	LastSimulationDate *time.Time
	LastTrainingDate   *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (RiskScoreModel) TableName() string { return "risk_scores" }

type RiskScoreHistoryModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	RiskScoreID string `gorm:"type:uuid;index;not null"`
	EmployeeRef string `gorm:"index;not null"`

	EventType string `gorm:"index;not null"`

	PreviousScore int `gorm:"not null"`
	NewScore      int `gorm:"not null"`
	ScoreChange   int `gorm:"not null"`

	PreviousRiskLevel string `gorm:"not null"`
	NewRiskLevel      string `gorm:"not null"`

	SourceType  string
	SourceID    string
	Description string

	CreatedAt time.Time `gorm:"index;not null"`
}

func (RiskScoreHistoryModel) TableName() string { return "risk_score_history" }

type TrainingModuleModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	CompanyRef  string `gorm:"index"`
	Title       string `gorm:"not null"`
	Description string

	Category    string `gorm:"index;not null"`
	ContentType string
	Difficulty  string
	ContentHTML string `gorm:"type:text"`
	VideoURL    string

	DurationMinutes int `gorm:"not null;default:0"`

	PassingScore         int `gorm:"not null;default:70"`
	MinQuestionsRequired int `gorm:"not null;default:0"`
	ScoreReductionOnPass int `gorm:"not null;default:0"`

	Active    bool `gorm:"not null;default:true"`
	Mandatory bool `gorm:"not null;default:false"`

	TimesAssigned  int     `gorm:"not null;default:0"`
	TimesCompleted int     `gorm:"not null;default:0"`
	TimesPassed    int     `gorm:"not null;default:0"`
	AverageScore   float64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (TrainingModuleModel) TableName() string { return "training_modules" }

type TrainingQuestionModel struct {
	ID       string `gorm:"type:uuid;primaryKey"`
	ModuleID string `gorm:"type:uuid;index;not null"`
	Number   int    `gorm:"not null"`

	Text         string `gorm:"type:text;not null"`
	Options      []byte `gorm:"type:jsonb;not null"`
	CorrectIndex int    `gorm:"not null"`
	Explanation  string `gorm:"type:text"`

	Active bool `gorm:"not null;default:true"`
}

func (TrainingQuestionModel) TableName() string { return "training_questions" }

type RemediationTrainingModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	EmployeeRef string `gorm:"index;not null"`
	CompanyRef  string `gorm:"index;not null"`
	ModuleID    string `gorm:"type:uuid;index;not null"`

	Status string `gorm:"index;not null"`
	Reason string `gorm:"not null"`

	AssignedBy string

	AssignedAt  time.Time `gorm:"not null"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	DueDate     *time.Time `gorm:"index"`

	QuizAttempts   int `gorm:"not null;default:0"`
	QuizScore      *float64
	CorrectAnswers int `gorm:"not null;default:0"`
	TotalQuestions int `gorm:"not null;default:0"`

	ContentViewed   bool `gorm:"not null;default:false"`
	ContentViewedAt *time.Time

	RiskScoreBefore *int
	RiskScoreAfter  *int

	SourceType string
	SourceID   string

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (RemediationTrainingModel) TableName() string { return "remediation_trainings" }

type QuizModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	CampaignRef string `gorm:"index"`
	EmployeeRef string `gorm:"index;not null"`
	CompanyRef  string `gorm:"index;not null"`

	Status string `gorm:"not null"`

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
}

func (QuizModel) TableName() string { return "quizzes" }

type QuizQuestionModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	QuizID    string `gorm:"type:uuid;index;not null"`
	Number    int    `gorm:"not null"`
	EmailType string `gorm:"not null"`

	Answer    *string
	IsCorrect *bool

	TimeSpentSeconds int `gorm:"not null;default:0"`
}

func (QuizQuestionModel) TableName() string { return "quiz_questions" }

type QuizResultModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	QuizID      string `gorm:"type:uuid;uniqueIndex;not null"`
	EmployeeRef string `gorm:"index;not null"`
	CampaignRef string

	TotalQuestions   int     `gorm:"not null"`
	CorrectAnswers   int     `gorm:"not null"`
	IncorrectAnswers int     `gorm:"not null"`
	Score            float64 `gorm:"not null"`

	PhishingIdentified int `gorm:"not null"`
	PhishingMissed     int `gorm:"not null"`
	FalsePositives     int `gorm:"not null"`

	TimeTakenSeconds int `gorm:"not null;default:0"`

	RiskLevel string `gorm:"not null"`

	CompletedAt time.Time `gorm:"not null"`
}

func (QuizResultModel) TableName() string { return "quiz_results" }

type EmployeeModel struct {
	Ref        string `gorm:"primaryKey"`
	CompanyRef string `gorm:"index;not null"`
	Email      string `gorm:"index;not null"`
	FirstName  string
	LastName   string
	Active     bool `gorm:"not null;default:true"`
}

func (EmployeeModel) TableName() string { return "employees" }
