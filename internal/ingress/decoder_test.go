package ingress

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/mt-monitoring/alarmd/internal/metrics"
)

func newTestDecoder() (*Decoder, *metrics.Metrics) {
	m := metrics.New()
	return New(m, logrus.NewEntry(logrus.New())), m
}

func TestDecodeValidPayload(t *testing.T) {
	d, _ := newTestDecoder()
	now := time.Now()

	payload := []byte(`{"device_id":"dev-1","temperature":72.5,"humidity":40}`)
	telemetry, ok := d.Decode("sensors/dev-1/data", payload, now)
	if !ok {
		t.Fatal("expected ok=true for a well-formed payload")
	}
	if telemetry.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want dev-1", telemetry.DeviceID)
	}
	if telemetry.Fields["temperature"] != 72.5 {
		t.Errorf("temperature = %v, want 72.5", telemetry.Fields["temperature"])
	}
	if telemetry.ArrivalTime != now {
		t.Error("expected ArrivalTime to be passed through unchanged")
	}
}

func TestDecodeBadTopicIsDropped(t *testing.T) {
	d, m := newTestDecoder()
	_, ok := d.Decode("wrong/topic/shape", []byte(`{}`), time.Now())
	if ok {
		t.Fatal("expected ok=false for a topic that doesn't match sensors/<device_id>/data")
	}
	if testutil.ToFloat64(m.IngressBadTopic) != 1 {
		t.Error("expected IngressBadTopic to be incremented")
	}
}

func TestDecodeMalformedJSONIsDropped(t *testing.T) {
	d, m := newTestDecoder()
	_, ok := d.Decode("sensors/dev-1/data", []byte(`not json`), time.Now())
	if ok {
		t.Fatal("expected ok=false for malformed JSON")
	}
	if testutil.ToFloat64(m.IngressBadDecode) != 1 {
		t.Error("expected IngressBadDecode to be incremented")
	}
}

func TestDecodeNoNumericFieldsIsDropped(t *testing.T) {
	d, m := newTestDecoder()
	_, ok := d.Decode("sensors/dev-1/data", []byte(`{"device_id":"dev-1"}`), time.Now())
	if ok {
		t.Fatal("expected ok=false for a payload with no numeric fields")
	}
	if testutil.ToFloat64(m.IngressBadDecode) != 1 {
		t.Error("expected IngressBadDecode to be incremented for a fields-empty payload")
	}
}

func TestDecodeTopicDeviceIDWinsOverPayload(t *testing.T) {
	d, m := newTestDecoder()
	payload := []byte(`{"device_id":"dev-2","temperature":50}`)
	telemetry, ok := d.Decode("sensors/dev-1/data", payload, time.Now())
	if !ok {
		t.Fatal("expected decode to succeed despite the device_id mismatch")
	}
	if telemetry.DeviceID != "dev-1" {
		t.Errorf("expected topic's device id to win, got %q", telemetry.DeviceID)
	}
	if testutil.ToFloat64(m.IngressDeviceIDMismatch) != 1 {
		t.Error("expected IngressDeviceIDMismatch to be incremented")
	}
}

func TestDecodeUsesPayloadTimestampWhenPresent(t *testing.T) {
	d, _ := newTestDecoder()
	arrival := time.Now()
	payload := []byte(`{"device_id":"dev-1","temperature":50,"timestamp":1700000000}`)
	telemetry, ok := d.Decode("sensors/dev-1/data", payload, arrival)
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	want := time.Unix(1700000000, 0).UTC()
	if !telemetry.SourceTimestamp.Equal(want) {
		t.Errorf("SourceTimestamp = %v, want %v", telemetry.SourceTimestamp, want)
	}
	if _, ok := telemetry.Fields["timestamp"]; ok {
		t.Error("expected the timestamp field to be consumed, not left in Fields")
	}
}

func TestDecodeFallsBackToArrivalTimeWithoutSourceTimestamp(t *testing.T) {
	d, _ := newTestDecoder()
	arrival := time.Now()
	payload := []byte(`{"device_id":"dev-1","temperature":50}`)
	telemetry, ok := d.Decode("sensors/dev-1/data", payload, arrival)
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if !telemetry.SourceTimestamp.Equal(arrival) {
		t.Errorf("expected SourceTimestamp to fall back to arrival time, got %v", telemetry.SourceTimestamp)
	}
}

func TestDeviceIDFromTopic(t *testing.T) {
	cases := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"sensors/dev-1/data", "dev-1", true},
		{"sensors//data", "", false},
		{"sensors/dev-1/data/extra", "", false},
		{"other/dev-1/data", "", false},
		{"sensors/dev-1/status", "", false},
	}
	for _, c := range cases {
		gotID, gotOK := deviceIDFromTopic(c.topic)
		if gotID != c.wantID || gotOK != c.wantOK {
			t.Errorf("deviceIDFromTopic(%q) = (%q, %v), want (%q, %v)", c.topic, gotID, gotOK, c.wantID, c.wantOK)
		}
	}
}
