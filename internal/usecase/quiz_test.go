package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"phishaware/internal/domain"
)

func boolPtr(v bool) *bool { return &v }

func emailPtr(v domain.EmailType) *domain.EmailType { return &v }

func question(quizID string, n int, truth domain.EmailType, answer domain.EmailType) domain.QuizQuestion {
	correct := answer == truth
	return domain.QuizQuestion{
		ID:        quizID + "-q" + string(rune('0'+n)),
		QuizID:    quizID,
		Number:    n,
		EmailType: truth,
		Answer:    emailPtr(answer),
		IsCorrect: boolPtr(correct),
	}
}

func TestCalculateQuizResult_SevenOfTen(t *testing.T) {
	quiz := domain.Quiz{ID: "quiz-1", EmployeeRef: "emp-1"}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// 6 phishing (1 missed), 4 legitimate (2 false positives).
	questions := []domain.QuizQuestion{
		question("quiz-1", 1, domain.EmailPhishing, domain.EmailPhishing),
		question("quiz-1", 2, domain.EmailPhishing, domain.EmailPhishing),
		question("quiz-1", 3, domain.EmailPhishing, domain.EmailPhishing),
		question("quiz-1", 4, domain.EmailPhishing, domain.EmailPhishing),
		question("quiz-1", 5, domain.EmailPhishing, domain.EmailPhishing),
		question("quiz-1", 6, domain.EmailPhishing, domain.EmailLegitimate),
		question("quiz-1", 7, domain.EmailLegitimate, domain.EmailLegitimate),
		question("quiz-1", 8, domain.EmailLegitimate, domain.EmailLegitimate),
		question("quiz-1", 9, domain.EmailLegitimate, domain.EmailPhishing),
		question("quiz-1", 0, domain.EmailLegitimate, domain.EmailPhishing),
	}

	result := CalculateQuizResult(quiz, questions, at)
	if result.TotalQuestions != 10 || result.CorrectAnswers != 7 {
		t.Fatalf("expected 7/10, got %d/%d", result.CorrectAnswers, result.TotalQuestions)
	}
	if result.Score != 70 {
		t.Fatalf("expected score 70, got %.1f", result.Score)
	}
	if !result.Passed() {
		t.Fatalf("expected 70 to pass")
	}
	if result.PhishingIdentified != 5 || result.PhishingMissed != 1 {
		t.Fatalf("expected identified/missed 5/1, got %d/%d", result.PhishingIdentified, result.PhishingMissed)
	}
	if result.FalsePositives != 2 {
		t.Fatalf("expected 2 false positives, got %d", result.FalsePositives)
	}
	if result.RiskLevel != domain.RiskMedium {
		t.Fatalf("expected MEDIUM tier, got %s", result.RiskLevel)
	}
}

func TestCalculateQuizResult_RiskTiers(t *testing.T) {
	cases := []struct {
		name   string
		score  float64
		missed int
		want   domain.RiskLevel
	}{
		{"perfect", 95, 0, domain.RiskLow},
		{"high score but missed", 95, 1, domain.RiskMedium},
		{"passing with one miss", 75, 1, domain.RiskMedium},
		{"passing with two misses", 75, 2, domain.RiskHigh},
		{"failing but few misses", 40, 3, domain.RiskHigh},
		{"failing with many misses", 40, 4, domain.RiskCritical},
	}
	for _, tc := range cases {
		if got := quizRiskLevel(tc.score, tc.missed); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func newQuizFixture(t *testing.T, m *memStore) domain.Quiz {
	t.Helper()
	quiz, err := m.Quizzes().Create(context.Background(), domain.Quiz{
		EmployeeRef: "emp-1",
		CompanyRef:  "acme",
		Status:      domain.QuizInProgress,
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	truths := []domain.EmailType{
		domain.EmailPhishing, domain.EmailPhishing, domain.EmailLegitimate, domain.EmailLegitimate,
	}
	for i, truth := range truths {
		if _, err := m.Quizzes().CreateQuestion(context.Background(), domain.QuizQuestion{
			QuizID:    quiz.ID,
			Number:    i + 1,
			EmailType: truth,
		}); err != nil {
			t.Fatalf("create question: %v", err)
		}
	}
	return quiz
}

func TestQuizService_SubmitRequiresAllAnswers(t *testing.T) {
	m := newMemStore()
	svc := NewQuizService(m, testEngine(m), nil)
	quiz := newQuizFixture(t, m)

	_, err := svc.Submit(context.Background(), quiz.ID)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unanswered quiz, got %v", err)
	}
}

func TestQuizService_SubmitGradesAndAppliesRisk(t *testing.T) {
	m := newMemStore()
	svc := NewQuizService(m, testEngine(m), nil)
	quiz := newQuizFixture(t, m)

	questions, err := m.Quizzes().ListQuestions(context.Background(), quiz.ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	for _, q := range questions {
		// Classify everything as phishing: both real phish right, both
		// legitimate emails wrong.
		if _, err := svc.Answer(context.Background(), quiz.ID, q.ID, domain.EmailPhishing, 5); err != nil {
			t.Fatalf("answer question: %v", err)
		}
	}

	result, err := svc.Submit(context.Background(), quiz.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 50 {
		t.Fatalf("expected score 50, got %.1f", result.Score)
	}
	if result.PhishingMissed != 0 || result.FalsePositives != 2 {
		t.Fatalf("expected missed/false-positives 0/2, got %d/%d", result.PhishingMissed, result.FalsePositives)
	}

	rs, err := m.Risk().GetByEmployee(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("get risk score: %v", err)
	}
	if rs.TotalQuizzesTaken != 1 || rs.TotalQuizQuestions != 4 || rs.CorrectQuizAnswers != 2 {
		t.Fatalf("unexpected counters: %+v", rs)
	}
	// base 50 + (0.5-0.5)*40 = 50, no missed phishing.
	if rs.Score != 50 {
		t.Fatalf("expected risk score 50, got %d", rs.Score)
	}

	// Submitting again must fail, not double count.
	if _, err := svc.Submit(context.Background(), quiz.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state on resubmit, got %v", err)
	}
}

func TestQuizService_AnswerRejectsUnknownClassification(t *testing.T) {
	m := newMemStore()
	svc := NewQuizService(m, testEngine(m), nil)
	quiz := newQuizFixture(t, m)

	questions, err := m.Quizzes().ListQuestions(context.Background(), quiz.ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if _, err := svc.Answer(context.Background(), quiz.ID, questions[0].ID, "SPAM", 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
