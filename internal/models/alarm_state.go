package models

import "time"

// AlarmStatus is the per-rule violation lifecycle state.
type AlarmStatus string

const (
	StatusInactive     AlarmStatus = "inactive"
	StatusActive       AlarmStatus = "active"
	StatusTriggered    AlarmStatus = "triggered"
	StatusAcknowledged AlarmStatus = "acknowledged"
)

// AlarmState is the per-rule mutable state tracking one violation
// episode. At most one row exists per rule_id.
type AlarmState struct {
	RuleID   string      `json:"rule_id"`
	DeviceID string      `json:"device_id"`
	Status   AlarmStatus `json:"status"`

	ViolationStart *time.Time `json:"violation_start,omitempty"`
	LastViolation  *time.Time `json:"last_violation,omitempty"`
	TriggerTime    *time.Time `json:"trigger_time,omitempty"`
	AcknowledgeAt  *time.Time `json:"acknowledge_time,omitempty"`

	ViolationCount int      `json:"violation_count"`
	LastValue      *float64 `json:"last_value,omitempty"`
	LastShuntValue *float64 `json:"last_shunt_value,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInactiveState constructs the zero-episode state lazily created on
// first relevant telemetry, per spec §4.4 step 1.
func NewInactiveState(ruleID, deviceID string, now time.Time) *AlarmState {
	return &AlarmState{
		RuleID:    ruleID,
		DeviceID:  deviceID,
		Status:    StatusInactive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsViolationActive reports whether the episode is still open (active or
// already fired but not yet cleared).
func (s *AlarmState) IsViolationActive() bool {
	return s.Status == StatusActive || s.Status == StatusTriggered
}

// ViolationDuration returns how long the current episode has been open.
// Zero if no episode is open.
func (s *AlarmState) ViolationDuration(now time.Time) time.Duration {
	if s.ViolationStart == nil {
		return 0
	}
	return now.Sub(*s.ViolationStart)
}

// StartViolation opens a new episode (inactive -> active transition) or
// extends an already-open one, per the transition table in spec §4.4.
func (s *AlarmState) StartViolation(now time.Time, value float64, shuntValue *float64) {
	if s.Status == StatusInactive {
		t := now
		s.ViolationStart = &t
		s.Status = StatusActive
		s.ViolationCount = 0
	}
	lv := now
	s.LastViolation = &lv
	s.ViolationCount++
	v := value
	s.LastValue = &v
	if shuntValue != nil {
		sv := *shuntValue
		s.LastShuntValue = &sv
	}
	s.UpdatedAt = now
}

// ClearViolation closes the episode, returning the state machine to
// inactive. Used by every "condition=false" transition.
func (s *AlarmState) ClearViolation(now time.Time) {
	s.Status = StatusInactive
	s.ViolationStart = nil
	s.LastViolation = nil
	s.ViolationCount = 0
	s.UpdatedAt = now
}

// Trigger fires the alarm: active -> triggered. Each call overwrites
// trigger_time, so callers must only invoke it once per episode (the
// evaluator enforces this via the transition table).
func (s *AlarmState) Trigger(now time.Time) {
	s.Status = StatusTriggered
	t := now
	s.TriggerTime = &t
	s.UpdatedAt = now
}

// Acknowledge exists so the state machine has a legal slot for an
// external acknowledgement workflow; nothing in this repo calls it (see
// DESIGN.md, Open Question: alarm acknowledgement).
func (s *AlarmState) Acknowledge(now time.Time) {
	s.Status = StatusAcknowledged
	t := now
	s.AcknowledgeAt = &t
	s.UpdatedAt = now
}
