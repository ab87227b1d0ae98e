package domain

import "time"

type EmailType string

const (
	EmailPhishing   EmailType = "PHISHING"
	EmailLegitimate EmailType = "LEGITIMATE"
)

type QuizStatus string

const (
	QuizNotStarted QuizStatus = "NOT_STARTED"
	QuizInProgress QuizStatus = "IN_PROGRESS"
	QuizCompleted  QuizStatus = "COMPLETED"
)

// Quiz is one employee's pass over a set of sample emails, each to be
// classified as phishing or legitimate.
type Quiz struct {
	ID          string
	CampaignRef string
	EmployeeRef string
	CompanyRef  string

	Status QuizStatus

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// QuizQuestion is a single email to classify. EmailType is the ground
// truth; Answer holds the employee's classification once given.
type QuizQuestion struct {
	ID        string
	QuizID    string
	Number    int
	EmailType EmailType

	Answer    *EmailType
	IsCorrect *bool

	TimeSpentSeconds int
}

func (q QuizQuestion) Answered() bool {
	return q.Answer != nil
}

// QuizResult is the scored outcome of a completed quiz, the record the
// risk engine consumes.
type QuizResult struct {
	ID          string
	QuizID      string
	EmployeeRef string
	CampaignRef string

	TotalQuestions   int
	CorrectAnswers   int
	IncorrectAnswers int
	Score            float64

	PhishingIdentified int
	PhishingMissed     int
	FalsePositives     int

	TimeTakenSeconds int

	RiskLevel RiskLevel

	CompletedAt time.Time
}

const QuizPassingScore = 70

// Passed reports whether the quiz met the fixed passing threshold,
// independent of the risk-tier classification.
func (r QuizResult) Passed() bool {
	return r.Score >= QuizPassingScore
}
