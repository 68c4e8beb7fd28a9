// Package ingress implements the Ingress Decoder (spec §4.2): it turns
// raw (topic, payload) pairs from the transport into models.Telemetry
// values, dropping anything that does not match the wire contract rather
// than blocking the transport callback.
//
// Grounded in other_examples/5132d401_jarv-mqtt__mqtt-subscriber.go.go's
// HandleMessage(topic, payload) → decode → forward shape and its
// topic-segment matching helper.
package ingress

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mt-monitoring/alarmd/internal/metrics"
	"github.com/mt-monitoring/alarmd/internal/models"
)

// Decoder converts raw transport messages into Telemetry.
type Decoder struct {
	metrics *metrics.Metrics
	log     *logrus.Entry
}

func New(m *metrics.Metrics, log *logrus.Entry) *Decoder {
	return &Decoder{metrics: m, log: log}
}

// Decode translates one (topic, payload) pair into Telemetry. It returns
// ok=false when the item should be dropped — the topic didn't match
// sensors/<device_id>/data, or the payload failed to decode — having
// already incremented the matching counter.
func (d *Decoder) Decode(topic string, payload []byte, arrivalTime time.Time) (models.Telemetry, bool) {
	topicDeviceID, ok := deviceIDFromTopic(topic)
	if !ok {
		d.metrics.IngressBadTopic.Inc()
		d.log.WithField("topic", topic).Warn("dropping telemetry: topic does not match sensors/<device_id>/data")
		return models.Telemetry{}, false
	}

	raw := make(map[string]interface{})
	if err := json.Unmarshal(payload, &raw); err != nil {
		d.metrics.IngressBadDecode.Inc()
		d.log.WithField("topic", topic).WithError(err).Warn("dropping telemetry: payload failed to decode")
		return models.Telemetry{}, false
	}

	if payloadDeviceID, ok := raw["device_id"].(string); ok && payloadDeviceID != topicDeviceID {
		d.metrics.IngressDeviceIDMismatch.Inc()
		d.log.WithFields(logrus.Fields{"topic_device_id": topicDeviceID, "payload_device_id": payloadDeviceID}).
			Warn("payload device_id disagrees with topic; topic wins (spec §4.2)")
	}

	var sourceTimestamp time.Time
	fields := make(map[string]float64, len(raw))
	for key, v := range raw {
		if key == "device_id" {
			continue
		}
		num, ok := v.(float64)
		if !ok {
			continue
		}
		if key == "timestamp" {
			sourceTimestamp = time.Unix(int64(num), 0).UTC()
			continue
		}
		fields[key] = num
	}

	if len(fields) == 0 {
		d.metrics.IngressBadDecode.Inc()
		d.log.WithField("topic", topic).Warn("dropping telemetry: no numeric fields beyond device_id/timestamp")
		return models.Telemetry{}, false
	}

	if sourceTimestamp.IsZero() {
		sourceTimestamp = arrivalTime
	}

	return models.Telemetry{
		DeviceID:        topicDeviceID,
		Fields:          fields,
		SourceTimestamp: sourceTimestamp,
		ArrivalTime:     arrivalTime,
	}, true
}

// deviceIDFromTopic matches "sensors/<device_id>/data" and extracts the
// device segment, per spec §4.2.
func deviceIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "sensors" || parts[2] != "data" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
