package store

import (
	"database/sql"
	"time"

	"github.com/mt-monitoring/alarmd/internal/models"
)

// DeleteRule removes a rule and its state row in one transaction, per the
// Durable Store contract in spec §4.5.
func (s *Store) DeleteRule(ruleID string) error {
	return s.Transaction(func(tx *sql.Tx) error {
		return s.Rules.Delete(tx, ruleID)
	})
}

// SaveEvaluation persists the post-evaluation state and, if the evaluator
// fired an alarm, appends the matching history record, as one logical
// commit (spec §4.4 step 6 / §4.5 atomicity).
func (s *Store) SaveEvaluation(state *models.AlarmState, fired *models.AlarmHistoryRecord) error {
	return s.Transaction(func(tx *sql.Tx) error {
		if err := s.States.Upsert(tx, state); err != nil {
			return err
		}
		if fired != nil {
			if err := s.History.Append(tx, fired); err != nil {
				return err
			}
		}
		return nil
	})
}

// PruneHistory runs the retention sweep (spec §4.5, SPEC_FULL §11's daily
// cron job).
func (s *Store) PruneHistory(retentionDays int) (int64, error) {
	return s.History.Prune(retentionDays, time.Now())
}
