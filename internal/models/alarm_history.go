package models

import "time"

// AlarmHistoryRecord is an append-only log entry written every time the
// evaluator fires an alarm.
type AlarmHistoryRecord struct {
	Seq          int64     `json:"seq"`
	RuleID       string    `json:"rule_id"`
	DeviceID     string    `json:"device_id"`
	AlarmPayload AlarmFire `json:"alarm_payload"`
	Timestamp    time.Time `json:"timestamp"`
}

// AlarmFire is the structured payload published by the Alarm Emitter
// (spec §4.6) and persisted alongside each history record.
type AlarmFire struct {
	RuleID                   string    `json:"rule_id"`
	DeviceID                 string    `json:"device_id"`
	AlarmType                AlarmKind `json:"alarm_type"`
	Description              string    `json:"description"`
	SensorField              string    `json:"sensor_field"`
	CurrentValue             float64   `json:"current_value"`
	ThresholdValue           float64   `json:"threshold_value"`
	ComparisonOperator       Operator  `json:"comparison_operator"`
	DurationMinutes          int       `json:"duration_minutes"`
	ViolationDurationMinutes float64   `json:"violation_duration_minutes"`
	TriggerTime              time.Time `json:"trigger_time"`
	Timestamp                time.Time `json:"timestamp"`
	Severity                 string    `json:"severity"`

	ShuntDeviceID  *string   `json:"shunt_device_id,omitempty"`
	ShuntField     *string   `json:"shunt_field,omitempty"`
	ShuntValue     *float64  `json:"shunt_value,omitempty"`
	ShuntThreshold *float64  `json:"shunt_threshold,omitempty"`
	ShuntOperator  *Operator `json:"shunt_operator,omitempty"`
}
