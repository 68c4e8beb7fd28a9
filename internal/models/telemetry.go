package models

import "time"

// Telemetry is an ephemeral decoded sensor reading, produced by the
// Ingress Decoder and consumed by the Dispatcher. It never touches the
// store directly.
type Telemetry struct {
	DeviceID        string             `json:"device_id"`
	Fields          map[string]float64 `json:"fields"`
	SourceTimestamp time.Time          `json:"source_timestamp"`
	ArrivalTime     time.Time          `json:"-"`

	// Seq is a monotonic sequence number assigned by the dispatcher,
	// used for ordering diagnostics per spec §4.3.
	Seq uint64 `json:"-"`
}

// Field returns the numeric value of the named field and whether it was
// present. Per spec §4.4, a missing or non-numeric field is a no-op, not
// an error.
func (t *Telemetry) Field(name string) (float64, bool) {
	v, ok := t.Fields[name]
	return v, ok
}

// CacheEntry is the Device Telemetry Cache's per-device record: the
// latest decoded fields and when they arrived.
type CacheEntry struct {
	DeviceID   string
	Fields     map[string]float64
	LastUpdate time.Time
}
