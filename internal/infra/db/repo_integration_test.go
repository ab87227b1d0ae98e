//go:build integration
// +build integration

package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"phishaware/internal/domain"
	"phishaware/internal/usecase"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := &Store{DB: gdb}
	lockTestDB(t, gdb)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	resetDB(t, gdb)
	return store
}

func lockTestDB(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	conn, err := sqlDB.Conn(context.Background())
	if err != nil {
		t.Fatalf("open db conn: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_lock(246813579)"); err != nil {
		_ = conn.Close()
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(246813579)")
		_ = conn.Close()
	})
}

func resetDB(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	if err := gdb.Exec(`
		TRUNCATE tracking_events,
			email_simulations,
			simulation_campaigns,
			campaign_targets,
			simulation_templates,
			risk_scores,
			risk_score_history,
			training_modules,
			training_questions,
			remediation_trainings,
			quizzes,
			quiz_questions,
			quiz_results,
			employees
		RESTART IDENTITY CASCADE`).Error; err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func insertSimulation(t *testing.T, store *Store, id, campaignID, employeeRef string, status domain.SimulationStatus) domain.EmailSimulation {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	sim := domain.EmailSimulation{
		ID:             id,
		CampaignID:     campaignID,
		EmployeeRef:    employeeRef,
		RecipientEmail: employeeRef + "@acme.test",
		TrackingToken:  "track-" + id,
		LinkToken:      "link-" + id,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := store.Simulations().Create(context.Background(), sim); err != nil {
		t.Fatalf("create simulation: %v", err)
	}
	return sim
}

func TestSimulationRepository_TokenLookups(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	insertSimulation(t, store, "sim-1", "cmp-1", "emp-1", domain.SimulationSent)

	byTrack, err := store.Simulations().GetByTrackingToken(ctx, "track-sim-1")
	if err != nil {
		t.Fatalf("get by tracking token: %v", err)
	}
	if byTrack.ID != "sim-1" {
		t.Fatalf("unexpected simulation: %s", byTrack.ID)
	}
	byLink, err := store.Simulations().GetByLinkToken(ctx, "link-sim-1")
	if err != nil {
		t.Fatalf("get by link token: %v", err)
	}
	if byLink.ID != "sim-1" {
		t.Fatalf("unexpected simulation: %s", byLink.ID)
	}
	if _, err := store.Simulations().GetByLinkToken(ctx, "no-such"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSimulationRepository_UpdatePersistsFlags(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sim := insertSimulation(t, store, "sim-1", "cmp-1", "emp-1", domain.SimulationSent)
	now := time.Now().UTC().Truncate(time.Microsecond)
	sim.WasClicked = true
	sim.ClickedAt = &now
	sim.UpdatedAt = now
	if err := store.Simulations().Update(ctx, sim); err != nil {
		t.Fatalf("update simulation: %v", err)
	}

	got, err := store.Simulations().GetByID(ctx, "sim-1")
	if err != nil {
		t.Fatalf("reload simulation: %v", err)
	}
	if !got.WasClicked || got.ClickedAt == nil {
		t.Fatalf("expected clicked flag and timestamp persisted, got %+v", got)
	}

	missing := sim
	missing.ID = "no-such"
	if err := store.Simulations().Update(ctx, missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}
}

func TestSimulationRepository_MarkPendingSent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	insertSimulation(t, store, "sim-1", "cmp-1", "emp-1", domain.SimulationPending)
	insertSimulation(t, store, "sim-2", "cmp-1", "emp-2", domain.SimulationPending)
	insertSimulation(t, store, "sim-3", "cmp-1", "emp-3", domain.SimulationDelivered)

	sentAt := time.Now().UTC().Truncate(time.Microsecond)
	marked, err := store.Simulations().MarkPendingSent(ctx, "cmp-1", sentAt)
	if err != nil {
		t.Fatalf("mark pending sent: %v", err)
	}
	if len(marked) != 2 {
		t.Fatalf("expected 2 marked, got %d", len(marked))
	}
	for _, sim := range marked {
		if sim.Status != domain.SimulationSent || sim.SentAt == nil {
			t.Fatalf("expected SENT with sent_at, got %+v", sim)
		}
	}

	pending := []domain.SimulationStatus{domain.SimulationPending}
	count, err := store.Simulations().CountByCampaign(ctx, "cmp-1", usecase.SimulationFilter{StatusIn: pending})
	if err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no pending rows left, got %d", count)
	}
}

func TestTrackingEventRepository_HasEventExcludesSelf(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.Events().Append(ctx, domain.TrackingEvent{
		SimulationID: "sim-1",
		CampaignID:   "cmp-1",
		EmployeeRef:  "emp-1",
		EventType:    domain.EventEmailOpened,
		Accepted:     true,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	has, err := store.Events().HasEvent(ctx, "sim-1", []domain.EventType{domain.EventEmailOpened}, first.ID)
	if err != nil {
		t.Fatalf("has event: %v", err)
	}
	if has {
		t.Fatal("expected the only event to be excluded by its own id")
	}

	has, err = store.Events().HasEvent(ctx, "sim-1", []domain.EventType{domain.EventEmailOpened}, "")
	if err != nil {
		t.Fatalf("has event: %v", err)
	}
	if !has {
		t.Fatal("expected event to be found without exclusion")
	}

	// Audit-only rows never satisfy the lookup.
	_, err = store.Events().Append(ctx, domain.TrackingEvent{
		SimulationID: "sim-2",
		CampaignID:   "cmp-1",
		EmployeeRef:  "emp-1",
		EventType:    domain.EventLinkClicked,
		Accepted:     false,
	})
	if err != nil {
		t.Fatalf("append audit event: %v", err)
	}
	has, err = store.Events().HasEvent(ctx, "sim-2", []domain.EventType{domain.EventLinkClicked}, "")
	if err != nil {
		t.Fatalf("has event: %v", err)
	}
	if has {
		t.Fatal("expected unaccepted row to be invisible to the lookup")
	}
}

func TestRiskScoreRepository_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created, err := store.Risk().Create(ctx, domain.RiskScore{
		ID:          "rsk-1",
		EmployeeRef: "emp-1",
		CompanyRef:  "acme",
		Score:       domain.BaselineScore,
		RiskLevel:   domain.RiskLevelForScore(domain.BaselineScore),
	})
	if err != nil {
		t.Fatalf("create risk score: %v", err)
	}

	created.Score = 80
	created.RiskLevel = domain.RiskLevelForScore(80)
	created.SimulationsClicked = 3
	created.RequiresRemediation = true
	if err := store.Risk().Update(ctx, created); err != nil {
		t.Fatalf("update risk score: %v", err)
	}

	got, err := store.Risk().GetByEmployee(ctx, "emp-1")
	if err != nil {
		t.Fatalf("get risk score: %v", err)
	}
	if got.Score != 80 || got.SimulationsClicked != 3 || !got.RequiresRemediation {
		t.Fatalf("unexpected stored score: %+v", got)
	}

	other, err := store.Risk().List(ctx, "other-co")
	if err != nil {
		t.Fatalf("list risk scores: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected company filter to exclude row, got %d", len(other))
	}
}

func TestRiskHistoryRepository_OrderAndLimit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.History().Append(ctx, domain.RiskScoreHistory{
			RiskScoreID:   "rsk-1",
			EmployeeRef:   "emp-1",
			EventType:     domain.HistoryScoreRecalculated,
			PreviousScore: 50 + i,
			NewScore:      50 + i + 1,
			ScoreChange:   1,
			Description:   fmt.Sprintf("step %d", i),
			CreatedAt:     time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append history: %v", err)
		}
	}

	history, err := store.History().ListByEmployee(ctx, "emp-1", 2)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(history))
	}
	if history[0].Description != "step 2" {
		t.Fatalf("expected newest first, got %s", history[0].Description)
	}
}

func TestTrainingModuleRepository_FirstActiveByCategoryPrefersGlobal(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Modules().Create(ctx, domain.TrainingModule{
		CompanyRef: "acme",
		Title:      "Company link safety",
		Category:   domain.CategoryLinkSafety,
		Active:     true,
	}); err != nil {
		t.Fatalf("create company module: %v", err)
	}
	global, err := store.Modules().Create(ctx, domain.TrainingModule{
		Title:    "Link safety",
		Category: domain.CategoryLinkSafety,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("create global module: %v", err)
	}

	got, err := store.Modules().FirstActiveByCategory(ctx, "acme", domain.CategoryLinkSafety)
	if err != nil {
		t.Fatalf("first active by category: %v", err)
	}
	if got.ID != global.ID {
		t.Fatalf("expected global module preferred, got %s", got.Title)
	}

	if _, err := store.Modules().FirstActiveByCategory(ctx, "acme", domain.CategoryReportingProcedures); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty category, got %v", err)
	}
}

func TestRemediationRepository_HasOpenIgnoresClosed(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	closed := domain.RemediationTraining{
		EmployeeRef: "emp-1",
		CompanyRef:  "acme",
		ModuleID:    "mod-1",
		Status:      domain.AssignmentPassed,
		AssignedAt:  time.Now().UTC(),
	}
	if _, err := store.Assignments().Create(ctx, closed); err != nil {
		t.Fatalf("create closed assignment: %v", err)
	}

	open, err := store.Assignments().HasOpen(ctx, "emp-1", "mod-1")
	if err != nil {
		t.Fatalf("has open: %v", err)
	}
	if open {
		t.Fatal("PASSED assignment should not count as open")
	}

	assigned := closed
	assigned.Status = domain.AssignmentAssigned
	if _, err := store.Assignments().Create(ctx, assigned); err != nil {
		t.Fatalf("create open assignment: %v", err)
	}
	open, err = store.Assignments().HasOpen(ctx, "emp-1", "mod-1")
	if err != nil {
		t.Fatalf("has open: %v", err)
	}
	if !open {
		t.Fatal("ASSIGNED assignment should count as open")
	}
}

func TestStoreWithTxRollsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	errBoom := errors.New("boom")
	err := store.WithTx(ctx, func(s usecase.Store) error {
		if _, err := s.Events().Append(ctx, domain.TrackingEvent{
			SimulationID: "sim-1",
			CampaignID:   "cmp-1",
			EmployeeRef:  "emp-1",
			EventType:    domain.EventEmailOpened,
		}); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected tx error surfaced, got %v", err)
	}

	events, err := store.Events().ListBySimulation(ctx, "sim-1")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected rollback to discard the event, got %d rows", len(events))
	}
}
