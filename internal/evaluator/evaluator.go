// Package evaluator implements the Rule Evaluator and Violation State
// Machine (spec §4.4): for one (rule, telemetry) pair it updates
// persistent state and returns an alarm payload when a violation episode
// crosses its duration threshold.
//
// The breach-count/duration shape is grounded in the reference service's
// internal/alerter/evaluator.go, generalized from its single "N
// consecutive breaches" counter into the full
// inactive/active/triggered/acknowledged transition table spec §4.4
// names, and its cooldown/dedup bookkeeping replaced by the persisted
// AlarmState the Durable Store owns.
package evaluator

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/mt-monitoring/alarmd/internal/cache"
	"github.com/mt-monitoring/alarmd/internal/metrics"
	"github.com/mt-monitoring/alarmd/internal/models"
	"github.com/mt-monitoring/alarmd/internal/store"
)

// shuntResult is the tri-state outcome of a conditional rule's shunt
// predicate: true, false, or unknown (stale/missing source, spec §4.1).
type shuntResult int

const (
	shuntFalse shuntResult = iota
	shuntTrue
	shuntUnknown
)

// Evaluator runs the algorithm in spec §4.4 against one rule/telemetry
// pair at a time. It is safe to share across goroutines only insofar as
// the Dispatcher's per-rule serialization guarantee holds — Evaluate
// itself does not serialize concurrent calls for the same rule.
type Evaluator struct {
	store          *store.Store
	cache          *cache.TelemetryCache
	metrics        *metrics.Metrics
	log            *logrus.Entry
	clock          clock.Clock
	shuntFreshness time.Duration
}

// New builds an Evaluator. clk defaults to the real wall clock in
// production; tests inject clock.NewMock() to advance time deterministically
// for the duration-boundary and restart-preserves-episode scenarios in
// spec §8.
func New(st *store.Store, tc *cache.TelemetryCache, m *metrics.Metrics, log *logrus.Entry, clk clock.Clock, shuntFreshness time.Duration) *Evaluator {
	if clk == nil {
		clk = clock.New()
	}
	return &Evaluator{
		store:          st,
		cache:          tc,
		metrics:        m,
		log:            log,
		clock:          clk,
		shuntFreshness: shuntFreshness,
	}
}

// Evaluate runs one (rule, telemetry) pair through the algorithm in spec
// §4.4 and returns the fired alarm payload, or nil if the episode did not
// cross the duration threshold on this tick. A non-nil error means the
// evaluation failed before any state mutation was persisted — per spec
// §4.4's failure-isolation clause, the caller must not treat this as a
// state change and must not abort sibling evaluations.
func (e *Evaluator) Evaluate(rule *models.AlarmRule, t models.Telemetry) (*models.AlarmFire, error) {
	value, ok := t.Field(rule.SensorField)
	if !ok {
		e.metrics.EvalMissingField.Inc()
		return nil, nil
	}

	now := e.clock.Now()

	state, err := e.loadOrCreateState(rule, now)
	if err != nil {
		return nil, fmt.Errorf("load state for rule %s: %w", rule.RuleID, err)
	}

	primary := models.Compare(value, rule.Operator, rule.ThresholdValue)

	shunt := shuntTrue
	var shuntValue *float64
	if rule.IsConditional() {
		shunt, shuntValue = e.evaluateShunt(rule, now)
	}
	condition := primary && shunt == shuntTrue

	prevStatus := state.Status
	var fire *models.AlarmFire

	switch {
	case !condition && prevStatus == models.StatusInactive:
		// inactive, false: no change. Nothing to persist.
		return nil, nil

	case !condition:
		state.ClearViolation(now)

	case prevStatus == models.StatusInactive || prevStatus == models.StatusActive:
		state.StartViolation(now, value, shuntValue)
		if now.Sub(*state.ViolationStart) >= time.Duration(rule.DurationSeconds)*time.Second {
			state.Trigger(now)
			fire = e.buildFire(rule, state, value, shuntValue, now)
		}

	case prevStatus == models.StatusTriggered:
		touchViolation(state, now, value, shuntValue, true)

	default: // models.StatusAcknowledged
		touchViolation(state, now, value, shuntValue, false)
	}

	var historyRec *models.AlarmHistoryRecord
	if fire != nil {
		historyRec = &models.AlarmHistoryRecord{
			RuleID:       rule.RuleID,
			DeviceID:     rule.DeviceID,
			AlarmPayload: *fire,
			Timestamp:    now,
		}
		e.metrics.AlarmsFired.Inc()
	}

	if err := e.store.SaveEvaluation(state, historyRec); err != nil {
		return nil, fmt.Errorf("persist evaluation for rule %s: %w", rule.RuleID, err)
	}

	return fire, nil
}

// touchViolation applies the triggered/true and acknowledged/true rows of
// the transition table: last_violation always advances; violation_count
// only advances for the triggered row (per spec §4.4's table, an
// acknowledged episode does not accumulate a count), and neither row
// re-triggers.
func touchViolation(state *models.AlarmState, now time.Time, value float64, shuntValue *float64, countsUp bool) {
	lv := now
	state.LastViolation = &lv
	if countsUp {
		state.ViolationCount++
	}
	v := value
	state.LastValue = &v
	if shuntValue != nil {
		sv := *shuntValue
		state.LastShuntValue = &sv
	}
	state.UpdatedAt = now
}

func (e *Evaluator) loadOrCreateState(rule *models.AlarmRule, now time.Time) (*models.AlarmState, error) {
	state, err := e.store.States.Get(rule.RuleID)
	if err == store.ErrNotFound {
		return models.NewInactiveState(rule.RuleID, rule.DeviceID, now), nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// evaluateShunt reads the shunt device's cached reading and compares it
// per spec §4.1/§4.4: an absent or stale entry, or a missing/non-numeric
// field, yields shuntUnknown, which forces condition=false regardless of
// the primary predicate.
func (e *Evaluator) evaluateShunt(rule *models.AlarmRule, now time.Time) (shuntResult, *float64) {
	entry, ok := e.cache.Get(*rule.ShuntDeviceID)
	if !ok || !cache.Fresh(entry, now, e.shuntFreshness) {
		return shuntUnknown, nil
	}

	v, ok := entry.Fields[*rule.ShuntField]
	if !ok {
		return shuntUnknown, nil
	}

	result := shuntFalse
	if models.Compare(v, *rule.ShuntOperator, *rule.ShuntValue) {
		result = shuntTrue
	}
	return result, &v
}

// buildFire assembles the alarm payload per spec §4.6's wire contract.
func (e *Evaluator) buildFire(rule *models.AlarmRule, state *models.AlarmState, value float64, shuntValue *float64, now time.Time) *models.AlarmFire {
	fire := &models.AlarmFire{
		RuleID:                   rule.RuleID,
		DeviceID:                 rule.DeviceID,
		AlarmType:                rule.Kind,
		Description:              rule.Description,
		SensorField:              rule.SensorField,
		CurrentValue:             value,
		ThresholdValue:           rule.ThresholdValue,
		ComparisonOperator:       rule.Operator,
		DurationMinutes:          rule.DurationMinutes(),
		ViolationDurationMinutes: state.ViolationDuration(now).Minutes(),
		TriggerTime:              *state.TriggerTime,
		Timestamp:                now,
		Severity:                 "HIGH",
	}

	if rule.IsConditional() {
		fire.ShuntDeviceID = rule.ShuntDeviceID
		fire.ShuntField = rule.ShuntField
		fire.ShuntValue = shuntValue
		fire.ShuntThreshold = rule.ShuntValue
		fire.ShuntOperator = rule.ShuntOperator
	}

	return fire
}
