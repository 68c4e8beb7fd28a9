package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mt-monitoring/alarmd/internal/models"
)

// StateRepository persists AlarmState rows in the alarm_states table. At
// most one row exists per rule_id, per spec §3.
type StateRepository struct {
	db *sql.DB
}

// Upsert writes state within tx, so a caller can combine it with a
// history append in one commit (spec §4.5 atomicity requirement). Pass a
// nil tx to run directly against the pooled connection for standalone
// writes.
func (r *StateRepository) Upsert(tx *sql.Tx, state *models.AlarmState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	exec := execer(r.db, tx)
	_, err = exec.Exec(`
		INSERT INTO alarm_states (rule_id, device_id, state_data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(rule_id) DO UPDATE SET
			device_id = excluded.device_id,
			state_data = excluded.state_data,
			updated_at = excluded.updated_at
	`, state.RuleID, state.DeviceID, string(data), unixSeconds(state.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert state %s: %w", state.RuleID, err)
	}
	return nil
}

// Get fetches the state row for ruleID. Returns ErrNotFound if absent —
// callers construct a fresh inactive state in that case (spec §4.4 step 1).
func (r *StateRepository) Get(ruleID string) (*models.AlarmState, error) {
	row := r.db.QueryRow(`SELECT state_data FROM alarm_states WHERE rule_id = ?`, ruleID)
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get state %s: %w", ruleID, err)
	}
	var state models.AlarmState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", ruleID, err)
	}
	return &state, nil
}

// List returns every persisted state row, used for the boot-time
// full-table recovery scan spec §4.5 mentions and the CLI's `active` verb.
func (r *StateRepository) List() ([]*models.AlarmState, error) {
	rows, err := r.db.Query(`SELECT state_data FROM alarm_states ORDER BY rule_id`)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	var states []*models.AlarmState
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		var state models.AlarmState
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
		states = append(states, &state)
	}
	return states, rows.Err()
}

// execer lets repository methods accept either a live transaction or the
// pooled *sql.DB for standalone calls, without duplicating every query.
type sqlExecer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func execer(db *sql.DB, tx *sql.Tx) sqlExecer {
	if tx != nil {
		return tx
	}
	return db
}
