package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mt-monitoring/alarmd/internal/models"
)

// ErrNotFound is returned by Get-style lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

// RuleRepository persists AlarmRule rows in the alarm_rules table,
// following the reference service's GetAll/GetByID/Create-or-Update
// repository shape (internal/database/repository_alert_rule.go) adapted
// to an upsert-by-rule_id contract.
type RuleRepository struct {
	db *sql.DB
}

// Upsert inserts or replaces the rule by rule_id, per spec §4.5.
func (r *RuleRepository) Upsert(rule *models.AlarmRule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("marshal rule: %w", err)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	_, err = r.db.Exec(`
		INSERT INTO alarm_rules (rule_id, device_id, rule_data, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(rule_id) DO UPDATE SET
			device_id = excluded.device_id,
			rule_data = excluded.rule_data,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, rule.RuleID, rule.DeviceID, string(data), enabled, unixSeconds(rule.CreatedAt), unixSeconds(rule.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert rule %s: %w", rule.RuleID, err)
	}
	return nil
}

// Get fetches a rule by id. Returns ErrNotFound if absent.
func (r *RuleRepository) Get(ruleID string) (*models.AlarmRule, error) {
	row := r.db.QueryRow(`SELECT rule_data FROM alarm_rules WHERE rule_id = ?`, ruleID)
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get rule %s: %w", ruleID, err)
	}
	var rule models.AlarmRule
	if err := json.Unmarshal([]byte(data), &rule); err != nil {
		return nil, fmt.Errorf("decode rule %s: %w", ruleID, err)
	}
	return &rule, nil
}

// List returns rules, optionally filtered by device id and/or enabled
// status, per the Durable Store contract in spec §4.5.
func (r *RuleRepository) List(deviceID string, enabledOnly bool) ([]*models.AlarmRule, error) {
	query := `SELECT rule_data FROM alarm_rules WHERE 1=1`
	var args []interface{}
	if deviceID != "" {
		query += ` AND device_id = ?`
		args = append(args, deviceID)
	}
	if enabledOnly {
		query += ` AND enabled = 1`
	}
	query += ` ORDER BY rule_id`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.AlarmRule
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		var rule models.AlarmRule
		if err := json.Unmarshal([]byte(data), &rule); err != nil {
			return nil, fmt.Errorf("decode rule: %w", err)
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// Delete removes the rule and its state row atomically, per spec §4.5
// ("delete by rule_id, which must also delete the corresponding state
// row atomically").
func (r *RuleRepository) Delete(tx *sql.Tx, ruleID string) error {
	if _, err := tx.Exec(`DELETE FROM alarm_states WHERE rule_id = ?`, ruleID); err != nil {
		return fmt.Errorf("delete state for rule %s: %w", ruleID, err)
	}
	res, err := tx.Exec(`DELETE FROM alarm_rules WHERE rule_id = ?`, ruleID)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", ruleID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", ruleID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
