package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mt-monitoring/alarmd/internal/models"
)

// HistoryRepository appends to and prunes the append-only alarm_history
// table.
type HistoryRepository struct {
	db *sql.DB
}

// Append inserts a new history record within tx (see StateRepository.Upsert
// for why this takes an explicit transaction).
func (r *HistoryRepository) Append(tx *sql.Tx, rec *models.AlarmHistoryRecord) error {
	data, err := json.Marshal(rec.AlarmPayload)
	if err != nil {
		return fmt.Errorf("marshal alarm payload: %w", err)
	}

	exec := execer(r.db, tx)
	_, err = exec.Exec(`
		INSERT INTO alarm_history (rule_id, device_id, alarm_data, timestamp)
		VALUES (?, ?, ?, ?)
	`, rec.RuleID, rec.DeviceID, string(data), unixSeconds(rec.Timestamp))
	if err != nil {
		return fmt.Errorf("append history for rule %s: %w", rec.RuleID, err)
	}
	return nil
}

// Prune deletes history rows older than retentionDays, per spec §4.5 and
// §6's retention sweeper. Returns the number of rows removed.
func (r *HistoryRepository) Prune(retentionDays int, now time.Time) (int64, error) {
	cutoff := unixSeconds(now.AddDate(0, 0, -retentionDays))
	res, err := r.db.Exec(`DELETE FROM alarm_history WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// RecentByRule returns the most recent history records for ruleID, newest
// first, bounded by limit, so a caller can inspect whether an alarm
// already fired for the live episode.
func (r *HistoryRepository) RecentByRule(ruleID string, limit int) ([]*models.AlarmHistoryRecord, error) {
	rows, err := r.db.Query(`
		SELECT seq, rule_id, device_id, alarm_data, timestamp
		FROM alarm_history WHERE rule_id = ? ORDER BY timestamp DESC LIMIT ?
	`, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent history for rule %s: %w", ruleID, err)
	}
	defer rows.Close()

	var records []*models.AlarmHistoryRecord
	for rows.Next() {
		var rec models.AlarmHistoryRecord
		var data string
		var ts float64
		if err := rows.Scan(&rec.Seq, &rec.RuleID, &rec.DeviceID, &data, &ts); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rec.AlarmPayload); err != nil {
			return nil, fmt.Errorf("decode alarm payload: %w", err)
		}
		rec.Timestamp = fromUnixSeconds(ts)
		records = append(records, &rec)
	}
	return records, rows.Err()
}
