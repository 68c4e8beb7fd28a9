// Package store implements the Durable Store (spec §4.5): the tri-table
// SQLite persistence layer for rules, per-rule state, and alarm history.
//
// The connection handling is carried over from the reference service's
// internal/database/sqlite.go almost verbatim — same DSN shape, same
// single-writer pragma, same Transaction helper — but the schema is the
// tri-table JSON-blob layout spec §6 mandates rather than the reference
// service's flattened alert_rules table (see DESIGN.md).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO required

	"github.com/mt-monitoring/alarmd/internal/metrics"
)

// maxTransactionAttempts bounds the retry spec §7's Store-transient
// taxonomy calls for: "transaction deadlock, busy — retried with bounded
// backoff (3 attempts)".
const maxTransactionAttempts = 3

// transactionRetryBackoff is the base delay between retries; attempt N
// sleeps N times this.
const transactionRetryBackoff = 20 * time.Millisecond

// Store owns the SQLite connection and exposes the rule/state/history
// repositories.
type Store struct {
	db      *sql.DB
	metrics *metrics.Metrics

	Rules   *RuleRepository
	States  *StateRepository
	History *HistoryRepository
}

// Open connects to the SQLite database at path, creating its parent
// directory and running migrations if necessary.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	connStr := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// SQLite only supports one writer; serialize through a single
	// connection the way the reference service does.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	s := &Store{db: db}
	s.Rules = &RuleRepository{db: db}
	s.States = &StateRepository{db: db}
	s.History = &HistoryRepository{db: db}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetMetrics wires the counter set Transaction increments on a retried
// busy/locked attempt. Optional: a Store with no metrics set still
// retries, it just doesn't count the attempts.
func (s *Store) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Ping reports whether the store is reachable, used by the observability
// surface's /health endpoint.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Transaction runs fn inside a SQL transaction, committing on success and
// rolling back on any error fn returns. Used for the atomic
// save-state-and-append-history commit spec §4.5 requires.
//
// A transaction that fails with SQLITE_BUSY/"database is locked" — the
// daemon and alarmctl each hold their own connection against the same
// file, so a concurrent writer is expected, not exceptional — is retried
// up to maxTransactionAttempts times with a short linear backoff, per
// spec §7's Store-transient taxonomy. Any other error returns immediately.
func (s *Store) Transaction(fn func(*sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTransactionAttempts; attempt++ {
		err = s.runTransaction(fn)
		if err == nil || !isTransientStoreErr(err) {
			return err
		}
		if attempt == maxTransactionAttempts {
			break
		}
		if s.metrics != nil {
			s.metrics.StoreTransientRetries.Inc()
		}
		time.Sleep(time.Duration(attempt) * transactionRetryBackoff)
	}
	return err
}

func (s *Store) runTransaction(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isTransientStoreErr reports whether err is the kind of SQLite
// busy/locked failure spec §7 calls Store-transient, as opposed to a
// permanent failure (constraint violation, not-found, I/O error).
func isTransientStoreErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alarm_rules (
			rule_id    TEXT PRIMARY KEY,
			device_id  TEXT NOT NULL,
			rule_data  TEXT NOT NULL,
			enabled    INTEGER NOT NULL DEFAULT 1,
			created_at REAL NOT NULL,
			updated_at REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alarm_rules_device ON alarm_rules(device_id)`,

		`CREATE TABLE IF NOT EXISTS alarm_states (
			rule_id    TEXT PRIMARY KEY,
			device_id  TEXT NOT NULL,
			state_data TEXT NOT NULL,
			updated_at REAL NOT NULL,
			FOREIGN KEY (rule_id) REFERENCES alarm_rules(rule_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alarm_states_device ON alarm_states(device_id)`,

		`CREATE TABLE IF NOT EXISTS alarm_history (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_id    TEXT NOT NULL,
			device_id  TEXT NOT NULL,
			alarm_data TEXT NOT NULL,
			timestamp  REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alarm_history_timestamp ON alarm_history(timestamp)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

// unixSeconds and fromUnixSeconds round-trip time.Time through the REAL
// column type spec §6 specifies, preserving sub-second precision.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9)).UTC()
}
