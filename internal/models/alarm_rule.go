package models

import (
	"fmt"
	"math"
	"time"
)

// AlarmKind distinguishes a plain threshold rule from one gated by a
// cross-device shunt predicate.
type AlarmKind string

const (
	KindSimpleThreshold      AlarmKind = "simple_threshold"
	KindConditionalThreshold AlarmKind = "conditional_threshold"
)

// Operator is a comparison used by both the primary and shunt predicates.
type Operator string

const (
	OpGT  Operator = ">"
	OpLT  Operator = "<"
	OpGTE Operator = ">="
	OpLTE Operator = "<="
	OpEQ  Operator = "=="
	OpNE  Operator = "!="
)

// epsilon is the absolute tolerance used for == and != comparisons on
// floating point readings, per spec.
const epsilon = 1e-6

func ValidOperator(op Operator) bool {
	switch op {
	case OpGT, OpLT, OpGTE, OpLTE, OpEQ, OpNE:
		return true
	}
	return false
}

// Compare evaluates value <op> threshold using the epsilon rule for
// equality and the NaN rules from spec §4.4: every ordering comparison on
// a NaN is false, == on NaN is false, != on NaN is true.
func Compare(value float64, op Operator, threshold float64) bool {
	if math.IsNaN(value) || math.IsNaN(threshold) {
		return op == OpNE
	}
	switch op {
	case OpGT:
		return value > threshold
	case OpLT:
		return value < threshold
	case OpGTE:
		return value >= threshold
	case OpLTE:
		return value <= threshold
	case OpEQ:
		return math.Abs(value-threshold) < epsilon
	case OpNE:
		return math.Abs(value-threshold) >= epsilon
	default:
		return false
	}
}

// AlarmRule is an immutable (between CRUD operations) description of a
// condition to monitor on one device's telemetry stream.
type AlarmRule struct {
	RuleID          string    `json:"rule_id"`
	DeviceID        string    `json:"device_id"`
	Kind            AlarmKind `json:"kind"`
	SensorField     string    `json:"sensor_field"`
	ThresholdValue  float64   `json:"threshold_value"`
	Operator        Operator  `json:"operator"`
	DurationSeconds int       `json:"duration_seconds"`
	Description     string    `json:"description"`
	Enabled         bool      `json:"enabled"`

	// Shunt fields, required iff Kind == KindConditionalThreshold.
	ShuntDeviceID *string   `json:"shunt_device_id,omitempty"`
	ShuntField    *string   `json:"shunt_field,omitempty"`
	ShuntValue    *float64  `json:"shunt_value,omitempty"`
	ShuntOperator *Operator `json:"shunt_operator,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsConditional reports whether the rule carries a shunt predicate.
func (r *AlarmRule) IsConditional() bool {
	return r.Kind == KindConditionalThreshold
}

// Validate enforces the invariants of spec §3. It is called at the CRUD
// boundary before a rule ever reaches the store.
func (r *AlarmRule) Validate() error {
	if r.RuleID == "" {
		return fmt.Errorf("rule_id must not be empty")
	}
	if r.DeviceID == "" {
		return fmt.Errorf("device_id must not be empty")
	}
	if r.SensorField == "" {
		return fmt.Errorf("sensor_field must not be empty")
	}
	if r.DurationSeconds <= 0 {
		return fmt.Errorf("duration_seconds must be > 0, got %d", r.DurationSeconds)
	}
	if !ValidOperator(r.Operator) {
		return fmt.Errorf("invalid operator %q", r.Operator)
	}

	switch r.Kind {
	case KindSimpleThreshold:
		if r.ShuntDeviceID != nil || r.ShuntField != nil || r.ShuntValue != nil || r.ShuntOperator != nil {
			return fmt.Errorf("simple_threshold rule must not carry shunt fields")
		}
	case KindConditionalThreshold:
		if r.ShuntDeviceID == nil || *r.ShuntDeviceID == "" {
			return fmt.Errorf("conditional_threshold rule requires shunt_device_id")
		}
		if r.ShuntField == nil || *r.ShuntField == "" {
			return fmt.Errorf("conditional_threshold rule requires shunt_field")
		}
		if r.ShuntValue == nil {
			return fmt.Errorf("conditional_threshold rule requires shunt_value")
		}
		if r.ShuntOperator == nil || !ValidOperator(*r.ShuntOperator) {
			return fmt.Errorf("conditional_threshold rule requires a valid shunt_operator")
		}
	default:
		return fmt.Errorf("invalid kind %q", r.Kind)
	}

	return nil
}

// DurationMinutes surfaces the internally-seconds duration as minutes for
// the CLI and wire payloads, per Design Notes §9.
func (r *AlarmRule) DurationMinutes() int {
	return r.DurationSeconds / 60
}
