package domain

import "time"

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

const (
	// BaselineScore is where new employees start.
	BaselineScore = 50
	// RemediationThreshold marks the score above which remediation
	// training is auto-assigned.
	RemediationThreshold = 70
)

// RiskLevelForScore maps a score onto its fixed band.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score <= 30:
		return RiskLow
	case score <= 60:
		return RiskMedium
	case score <= 80:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RiskScore is the per-employee aggregate: cumulative behavioral counters
// plus the bounded [0,100] score derived from them. Mutated only by the
// risk engine; created lazily at the baseline on the first relevant event.
type RiskScore struct {
	ID          string
	EmployeeRef string
	CompanyRef  string

	Score     int
	RiskLevel RiskLevel

	TotalQuizzesTaken    int
	TotalQuizQuestions   int
	CorrectQuizAnswers   int
	PhishingEmailsMissed int

	TotalSimulationsReceived int
	SimulationsOpened        int
	SimulationsClicked       int
	SimulationsReported      int
	CredentialsEntered       int

	TrainingsAssigned  int
	TrainingsCompleted int
	TrainingsPassed    int

	RequiresRemediation bool

	LastQuizDate       *time.Time
	LastSimulationDate *time.Time
	LastTrainingDate   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recalculate recomputes score, level and the remediation flag from the
// cumulative counters. Deterministic and side-effect free.
//
//	base 50
//	quiz        (0.5 - accuracy) * 40          roughly -20..+20
//	missed      +5 each, capped at +25
//	clicks      click_rate * 30
//	credentials +15 each, capped at +20
//	reports     -5 each, capped at -15
//	trainings   -10 per pass, capped at -25
func (r *RiskScore) Recalculate() int {
	quizAdj := 0
	if r.TotalQuizQuestions > 0 {
		accuracy := float64(r.CorrectQuizAnswers) / float64(r.TotalQuizQuestions)
		quizAdj = int((0.5 - accuracy) * 40)
	}

	phishingPenalty := capInt(r.PhishingEmailsMissed*5, 25)

	simAdj := 0
	if r.TotalSimulationsReceived > 0 {
		clickRate := float64(r.SimulationsClicked) / float64(r.TotalSimulationsReceived)
		simAdj = int(clickRate * 30)
	}

	credentialPenalty := capInt(r.CredentialsEntered*15, 20)
	reportBonus := capInt(r.SimulationsReported*5, 15)
	trainingBonus := capInt(r.TrainingsPassed*10, 25)

	raw := BaselineScore + quizAdj + phishingPenalty + simAdj + credentialPenalty - reportBonus - trainingBonus

	r.SetScore(raw)
	return r.Score
}

// SetScore clamps and stores a score, keeping level and the remediation
// flag consistent with it.
func (r *RiskScore) SetScore(score int) {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	r.Score = score
	r.RiskLevel = RiskLevelForScore(score)
	r.RequiresRemediation = score > RemediationThreshold
}

func (r RiskScore) QuizAccuracy() float64 {
	return ratePct(r.CorrectQuizAnswers, r.TotalQuizQuestions)
}

func (r RiskScore) SimulationClickRate() float64 {
	return ratePct(r.SimulationsClicked, r.TotalSimulationsReceived)
}

func (r RiskScore) TrainingCompletionRate() float64 {
	return ratePct(r.TrainingsCompleted, r.TrainingsAssigned)
}

func (r RiskScore) TrainingPassRate() float64 {
	return ratePct(r.TrainingsPassed, r.TrainingsCompleted)
}

func capInt(v, max int) int {
	if v > max {
		return max
	}
	return v
}

type HistoryEventType string

const (
	HistoryQuizCompleted      HistoryEventType = "QUIZ_COMPLETED"
	HistoryQuizFailed         HistoryEventType = "QUIZ_FAILED"
	HistorySimulationOpened   HistoryEventType = "SIMULATION_OPENED"
	HistorySimulationClicked  HistoryEventType = "SIMULATION_CLICKED"
	HistoryCredentialsEntered HistoryEventType = "CREDENTIALS_ENTERED"
	HistoryPhishingReported   HistoryEventType = "PHISHING_REPORTED"
	HistoryTrainingAssigned   HistoryEventType = "TRAINING_ASSIGNED"
	HistoryTrainingCompleted  HistoryEventType = "TRAINING_COMPLETED"
	HistoryTrainingPassed     HistoryEventType = "TRAINING_PASSED"
	HistoryTrainingFailed     HistoryEventType = "TRAINING_FAILED"
	HistoryManualAdjustment   HistoryEventType = "MANUAL_ADJUSTMENT"
	HistoryScoreRecalculated  HistoryEventType = "SCORE_RECALCULATED"
)

// RiskScoreHistory is the append-only audit trail: one write-once row per
// score mutation, tracing the change back to its source record.
type RiskScoreHistory struct {
	ID          string
	RiskScoreID string
	EmployeeRef string

	EventType HistoryEventType

	PreviousScore int
	NewScore      int
	ScoreChange   int

	PreviousRiskLevel RiskLevel
	NewRiskLevel      RiskLevel

	SourceType  string
	SourceID    string
	Description string

	CreatedAt time.Time
}
