package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"phishaware/internal/domain"
)

func seedModule(t *testing.T, m *memStore, reduction int) domain.TrainingModule {
	t.Helper()
	module, err := m.Modules().Create(context.Background(), domain.TrainingModule{
		Title:                "Spotting bad links",
		Category:             domain.CategoryLinkSafety,
		Active:               true,
		PassingScore:         70,
		ScoreReductionOnPass: reduction,
	})
	if err != nil {
		t.Fatalf("create module: %v", err)
	}
	questions := []domain.TrainingQuestion{
		{ModuleID: module.ID, Number: 1, Text: "q1", Options: []string{"a", "b"}, CorrectIndex: 0, Active: true},
		{ModuleID: module.ID, Number: 2, Text: "q2", Options: []string{"a", "b"}, CorrectIndex: 1, Active: true},
		{ModuleID: module.ID, Number: 3, Text: "q3", Options: []string{"a", "b"}, CorrectIndex: 1, Active: true},
		{ModuleID: module.ID, Number: 4, Text: "q4", Options: []string{"a", "b"}, CorrectIndex: 0, Active: true},
	}
	for _, q := range questions {
		if _, err := m.Questions().Create(context.Background(), q); err != nil {
			t.Fatalf("create question: %v", err)
		}
	}
	return module
}

func testTrainingService(m *memStore) *TrainingService {
	svc := NewTrainingService(m, testEngine(m), nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestTrainingService_AssignRespectsOpenGuard(t *testing.T) {
	m := newMemStore()
	svc := testTrainingService(m)
	module := seedModule(t, m, 10)

	first, err := svc.Assign(context.Background(), "emp-1", "acme", module.ID, "admin-1", nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if first.Status != domain.AssignmentAssigned || first.Reason != domain.ReasonManualAdmin {
		t.Fatalf("unexpected assignment: %+v", first)
	}

	if _, err := svc.Assign(context.Background(), "emp-1", "acme", module.ID, "admin-1", nil); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state for duplicate open assignment, got %v", err)
	}

	mod, err := m.Modules().GetByID(context.Background(), module.ID)
	if err != nil {
		t.Fatalf("get module: %v", err)
	}
	if mod.TimesAssigned != 1 {
		t.Fatalf("expected times_assigned 1, got %d", mod.TimesAssigned)
	}

	rs, err := m.Risk().GetByEmployee(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if rs.TrainingsAssigned != 1 {
		t.Fatalf("expected trainings_assigned 1, got %d", rs.TrainingsAssigned)
	}
}

func TestTrainingService_QuizRequiresContentViewed(t *testing.T) {
	m := newMemStore()
	svc := testTrainingService(m)
	module := seedModule(t, m, 10)

	assignment, err := svc.Assign(context.Background(), "emp-1", "acme", module.ID, "admin-1", nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.SubmitQuiz(context.Background(), assignment.ID, QuizSubmission{}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state before content viewed, got %v", err)
	}
}

func TestTrainingService_PassClosesAssignmentAndCreditsScore(t *testing.T) {
	m := newMemStore()
	svc := testTrainingService(m)
	module := seedModule(t, m, 10)

	if _, err := m.Risk().Create(context.Background(), domain.RiskScore{
		EmployeeRef: "emp-1",
		CompanyRef:  "acme",
		Score:       75,
		RiskLevel:   domain.RiskLevelForScore(75),
	}); err != nil {
		t.Fatalf("seed score: %v", err)
	}

	assignment, err := svc.Assign(context.Background(), "emp-1", "acme", module.ID, "admin-1", nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.MarkContentViewed(context.Background(), assignment.ID); err != nil {
		t.Fatalf("mark viewed: %v", err)
	}

	questions, err := m.Questions().ListByModule(context.Background(), module.ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	answers := QuizSubmission{}
	for _, q := range questions {
		answers[q.ID] = q.CorrectIndex
	}

	outcome, err := svc.SubmitQuiz(context.Background(), assignment.ID, answers)
	if err != nil {
		t.Fatalf("submit quiz: %v", err)
	}
	if !outcome.Passed || outcome.Score != 100 {
		t.Fatalf("expected pass at 100, got passed=%v score=%.1f", outcome.Passed, outcome.Score)
	}
	if outcome.Assignment.Status != domain.AssignmentPassed {
		t.Fatalf("expected PASSED, got %s", outcome.Assignment.Status)
	}
	if outcome.Assignment.RiskScoreAfter == nil || *outcome.Assignment.RiskScoreAfter != 65 {
		t.Fatalf("expected risk_score_after 65, got %v", outcome.Assignment.RiskScoreAfter)
	}

	rs, err := m.Risk().GetByEmployee(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if rs.Score != 65 {
		t.Fatalf("expected 75-10=65, got %d", rs.Score)
	}

	mod, err := m.Modules().GetByID(context.Background(), module.ID)
	if err != nil {
		t.Fatalf("get module: %v", err)
	}
	if mod.TimesPassed != 1 || mod.TimesCompleted != 1 {
		t.Fatalf("expected module stats 1/1, got %d/%d", mod.TimesPassed, mod.TimesCompleted)
	}
	if mod.AverageScore != 100 {
		t.Fatalf("expected average 100, got %.1f", mod.AverageScore)
	}
}

func TestTrainingService_FailLeavesAssignmentOpen(t *testing.T) {
	m := newMemStore()
	svc := testTrainingService(m)
	module := seedModule(t, m, 10)

	assignment, err := svc.Assign(context.Background(), "emp-1", "acme", module.ID, "admin-1", nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.MarkContentViewed(context.Background(), assignment.ID); err != nil {
		t.Fatalf("mark viewed: %v", err)
	}

	questions, err := m.Questions().ListByModule(context.Background(), module.ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	answers := QuizSubmission{}
	for _, q := range questions {
		answers[q.ID] = 1 - q.CorrectIndex
	}

	outcome, err := svc.SubmitQuiz(context.Background(), assignment.ID, answers)
	if err != nil {
		t.Fatalf("submit quiz: %v", err)
	}
	if outcome.Passed {
		t.Fatalf("expected fail")
	}
	if !outcome.Assignment.Status.Open() {
		t.Fatalf("expected assignment to stay open for retry, got %s", outcome.Assignment.Status)
	}
	if outcome.Assignment.QuizAttempts != 1 {
		t.Fatalf("expected 1 attempt recorded, got %d", outcome.Assignment.QuizAttempts)
	}

	// The failed attempt still counts as a completion on the score and
	// leaves a TRAINING_FAILED audit row.
	rs, err := m.Risk().GetByEmployee(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if rs.TrainingsCompleted != 1 || rs.TrainingsPassed != 0 {
		t.Fatalf("expected completed=1 passed=0 after fail, got %d/%d", rs.TrainingsCompleted, rs.TrainingsPassed)
	}
	history, err := m.History().ListByEmployee(context.Background(), "emp-1", 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	failed := 0
	for _, h := range history {
		if h.EventType == domain.HistoryTrainingFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("expected 1 TRAINING_FAILED history row, got %d", failed)
	}

	mod, err := m.Modules().GetByID(context.Background(), module.ID)
	if err != nil {
		t.Fatalf("get module: %v", err)
	}
	if mod.TimesCompleted != 1 || mod.TimesPassed != 0 {
		t.Fatalf("expected module stats 1/0 after fail, got %d/%d", mod.TimesCompleted, mod.TimesPassed)
	}

	// Retry with correct answers succeeds.
	for _, q := range questions {
		answers[q.ID] = q.CorrectIndex
	}
	outcome, err = svc.SubmitQuiz(context.Background(), assignment.ID, answers)
	if err != nil {
		t.Fatalf("retry quiz: %v", err)
	}
	if !outcome.Passed || outcome.Assignment.QuizAttempts != 2 {
		t.Fatalf("expected pass on attempt 2, got passed=%v attempts=%d", outcome.Passed, outcome.Assignment.QuizAttempts)
	}

	rs, err = m.Risk().GetByEmployee(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("get score after retry: %v", err)
	}
	if rs.TrainingsCompleted != 2 || rs.TrainingsPassed != 1 {
		t.Fatalf("expected completed=2 passed=1 after retry, got %d/%d", rs.TrainingsCompleted, rs.TrainingsPassed)
	}
	mod, err = m.Modules().GetByID(context.Background(), module.ID)
	if err != nil {
		t.Fatalf("get module after retry: %v", err)
	}
	if mod.TimesCompleted != 2 || mod.TimesPassed != 1 {
		t.Fatalf("expected module stats 2/1 after retry, got %d/%d", mod.TimesCompleted, mod.TimesPassed)
	}
	if mod.AverageScore != 50 {
		t.Fatalf("expected average score 50 over both attempts, got %v", mod.AverageScore)
	}
}

func TestTrainingService_ExpireOverdue(t *testing.T) {
	m := newMemStore()
	svc := testTrainingService(m)
	module := seedModule(t, m, 10)

	due := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	assignment, err := svc.Assign(context.Background(), "emp-1", "acme", module.ID, "admin-1", &due)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	expired, err := svc.ExpireOverdue(context.Background())
	if err != nil {
		t.Fatalf("expire overdue: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}

	got, err := m.Assignments().GetByID(context.Background(), assignment.ID)
	if err != nil {
		t.Fatalf("get assignment: %v", err)
	}
	if got.Status != domain.AssignmentExpired {
		t.Fatalf("expected EXPIRED, got %s", got.Status)
	}

	rs, err := m.Risk().GetByEmployee(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if rs.TrainingsCompleted != 1 || rs.TrainingsPassed != 0 {
		t.Fatalf("expected completed/passed 1/0, got %d/%d", rs.TrainingsCompleted, rs.TrainingsPassed)
	}
}
