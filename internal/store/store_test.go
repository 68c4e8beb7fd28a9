package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mt-monitoring/alarmd/internal/metrics"
	"github.com/mt-monitoring/alarmd/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alarms.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRule(ruleID string) *models.AlarmRule {
	now := time.Now().Round(time.Second)
	return &models.AlarmRule{
		RuleID:          ruleID,
		DeviceID:        "dev-1",
		Kind:            models.KindSimpleThreshold,
		SensorField:     "temperature",
		Operator:        models.OpGT,
		ThresholdValue:  90,
		DurationSeconds: 60,
		Description:     "too hot",
		Enabled:         true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestRuleRoundTrip(t *testing.T) {
	st := openTestStore(t)
	rule := sampleRule("r1")

	if err := st.Rules.Upsert(rule); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	got, err := st.Rules.Get("r1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.SensorField != rule.SensorField || got.ThresholdValue != rule.ThresholdValue {
		t.Errorf("round-tripped rule mismatch: %+v vs %+v", got, rule)
	}
	if !got.CreatedAt.Equal(rule.CreatedAt) {
		t.Errorf("CreatedAt round-trip mismatch: got %v want %v", got.CreatedAt, rule.CreatedAt)
	}
}

func TestRuleGetNotFound(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.Rules.Get("missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRuleUpsertOverwrites(t *testing.T) {
	st := openTestStore(t)
	rule := sampleRule("r1")
	if err := st.Rules.Upsert(rule); err != nil {
		t.Fatal(err)
	}
	rule.ThresholdValue = 100
	if err := st.Rules.Upsert(rule); err != nil {
		t.Fatal(err)
	}

	got, err := st.Rules.Get("r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ThresholdValue != 100 {
		t.Errorf("expected overwritten threshold 100, got %v", got.ThresholdValue)
	}
}

func TestRuleListFilters(t *testing.T) {
	st := openTestStore(t)
	r1 := sampleRule("r1")
	r2 := sampleRule("r2")
	r2.DeviceID = "dev-2"
	r3 := sampleRule("r3")
	r3.Enabled = false

	for _, r := range []*models.AlarmRule{r1, r2, r3} {
		if err := st.Rules.Upsert(r); err != nil {
			t.Fatal(err)
		}
	}

	all, err := st.Rules.List("", false)
	if err != nil || len(all) != 3 {
		t.Fatalf("List(all) = %d rules, err %v, want 3", len(all), err)
	}

	dev1, err := st.Rules.List("dev-1", false)
	if err != nil || len(dev1) != 2 {
		t.Fatalf("List(dev-1) = %d rules, err %v, want 2", len(dev1), err)
	}

	enabled, err := st.Rules.List("dev-1", true)
	if err != nil || len(enabled) != 1 {
		t.Fatalf("List(dev-1, enabledOnly) = %d rules, err %v, want 1", len(enabled), err)
	}
}

func TestDeleteRuleRemovesStateAtomically(t *testing.T) {
	st := openTestStore(t)
	rule := sampleRule("r1")
	if err := st.Rules.Upsert(rule); err != nil {
		t.Fatal(err)
	}

	state := models.NewInactiveState("r1", "dev-1", time.Now())
	state.StartViolation(time.Now(), 95, nil)
	if err := st.States.Upsert(nil, state); err != nil {
		t.Fatal(err)
	}

	if err := st.DeleteRule("r1"); err != nil {
		t.Fatalf("DeleteRule() error: %v", err)
	}

	if _, err := st.Rules.Get("r1"); err != ErrNotFound {
		t.Errorf("expected rule gone, got err %v", err)
	}
	if _, err := st.States.Get("r1"); err != ErrNotFound {
		t.Errorf("expected state gone alongside the rule, got err %v", err)
	}
}

func TestDeleteRuleNotFound(t *testing.T) {
	st := openTestStore(t)
	if err := st.DeleteRule("missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveEvaluationCommitsStateAndHistoryTogether(t *testing.T) {
	st := openTestStore(t)
	now := time.Now().Round(time.Second)
	if err := st.Rules.Upsert(sampleRule("r1")); err != nil {
		t.Fatal(err)
	}

	state := models.NewInactiveState("r1", "dev-1", now)
	state.StartViolation(now, 95, nil)
	state.Trigger(now)

	fire := &models.AlarmFire{RuleID: "r1", DeviceID: "dev-1", CurrentValue: 95, Timestamp: now}
	rec := &models.AlarmHistoryRecord{RuleID: "r1", DeviceID: "dev-1", AlarmPayload: *fire, Timestamp: now}

	if err := st.SaveEvaluation(state, rec); err != nil {
		t.Fatalf("SaveEvaluation() error: %v", err)
	}

	gotState, err := st.States.Get("r1")
	if err != nil {
		t.Fatalf("States.Get() error: %v", err)
	}
	if gotState.Status != models.StatusTriggered {
		t.Errorf("expected persisted status triggered, got %s", gotState.Status)
	}

	history, err := st.History.RecentByRule("r1", 10)
	if err != nil {
		t.Fatalf("RecentByRule() error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(history))
	}
	if history[0].AlarmPayload.CurrentValue != 95 {
		t.Errorf("history payload mismatch: %+v", history[0].AlarmPayload)
	}
}

func TestTransactionRetriesOnBusyThenSucceeds(t *testing.T) {
	st := openTestStore(t)
	m := metrics.New()
	st.SetMetrics(m)

	attempts := 0
	err := st.Transaction(func(tx *sql.Tx) error {
		attempts++
		if attempts < 3 {
			return errors.New("sqlite: database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction() error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (2 busy then a success), got %d", attempts)
	}
	if got := testutil.ToFloat64(m.StoreTransientRetries); got != 2 {
		t.Errorf("StoreTransientRetries = %v, want 2", got)
	}
}

func TestTransactionGivesUpAfterMaxAttempts(t *testing.T) {
	st := openTestStore(t)
	m := metrics.New()
	st.SetMetrics(m)

	attempts := 0
	err := st.Transaction(func(tx *sql.Tx) error {
		attempts++
		return errors.New("sqlite: database is locked")
	})
	if err == nil {
		t.Fatal("expected an error once every attempt stays busy")
	}
	if attempts != maxTransactionAttempts {
		t.Errorf("expected exactly %d attempts, got %d", maxTransactionAttempts, attempts)
	}
	if got := testutil.ToFloat64(m.StoreTransientRetries); got != float64(maxTransactionAttempts-1) {
		t.Errorf("StoreTransientRetries = %v, want %d", got, maxTransactionAttempts-1)
	}
}

func TestTransactionDoesNotRetryPermanentErrors(t *testing.T) {
	st := openTestStore(t)
	m := metrics.New()
	st.SetMetrics(m)

	attempts := 0
	wantErr := errors.New("constraint violation")
	err := st.Transaction(func(tx *sql.Tx) error {
		attempts++
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected the permanent error to pass through unchanged, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for a non-transient error, got %d", attempts)
	}
	if got := testutil.ToFloat64(m.StoreTransientRetries); got != 0 {
		t.Errorf("StoreTransientRetries = %v, want 0", got)
	}
}

func TestPruneHistoryRemovesOldRows(t *testing.T) {
	st := openTestStore(t)
	now := time.Now()

	old := &models.AlarmHistoryRecord{RuleID: "r1", DeviceID: "dev-1", Timestamp: now.AddDate(0, 0, -40)}
	recent := &models.AlarmHistoryRecord{RuleID: "r1", DeviceID: "dev-1", Timestamp: now}

	for _, rec := range []*models.AlarmHistoryRecord{old, recent} {
		rec := rec
		if err := st.Transaction(func(tx *sql.Tx) error {
			return st.History.Append(tx, rec)
		}); err != nil {
			t.Fatalf("append history: %v", err)
		}
	}

	n, err := st.PruneHistory(30)
	if err != nil {
		t.Fatalf("PruneHistory() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("PruneHistory() removed %d rows, want 1", n)
	}

	remaining, err := st.History.RecentByRule("r1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining history row, got %d", len(remaining))
	}
}
