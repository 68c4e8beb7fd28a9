// Package alarmemit implements the Alarm Emitter (spec §4.6): it
// publishes the fired alarm's structured payload on the transport,
// fire-and-forget, so a publish failure never rolls back the state
// transition that already committed to the Durable Store.
//
// The bounded-retry shape is grounded in the reference service's
// internal/alerter/manager.go sendToChannel loop — exponential backoff
// over a fixed attempt count — adapted from fan-out-to-N-notification-
// channels down to a single transport publish retry, per spec §7's
// Store-transient taxonomy ("retried with bounded backoff (3 attempts)").
package alarmemit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mt-monitoring/alarmd/internal/models"
)

// Publisher is the transport capability the emitter needs.
// internal/transport.Transport satisfies this.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Broadcaster forwards a fired alarm to the observability websocket hub
// (SPEC_FULL §13). Optional: nil disables the forward.
type Broadcaster interface {
	Broadcast(v interface{})
}

const maxPublishAttempts = 3

// Emitter publishes alarm payloads to the configured alarm topic.
type Emitter struct {
	publisher   Publisher
	broadcaster Broadcaster
	topic       string
	log         *logrus.Entry
	clk         clock.Clock
}

// New builds an Emitter using the real wall clock for retry backoff. Use
// NewWithClock in tests to inject a mock clock, the same pattern
// internal/evaluator uses for duration-boundary tests.
func New(publisher Publisher, broadcaster Broadcaster, topic string, log *logrus.Entry) *Emitter {
	return NewWithClock(publisher, broadcaster, topic, log, clock.New())
}

// NewWithClock builds an Emitter with an explicit clock.Clock, grounded in
// internal/evaluator.New's injectable-clock pattern (github.com/benbjohnson/clock),
// so retry-backoff tests don't spend real wall time sleeping.
func NewWithClock(publisher Publisher, broadcaster Broadcaster, topic string, log *logrus.Entry, clk clock.Clock) *Emitter {
	return &Emitter{publisher: publisher, broadcaster: broadcaster, topic: topic, log: log, clk: clk}
}

// Publish marshals fire and sends it on the alarm topic, retrying up to
// maxPublishAttempts times with exponential backoff on transient
// failure. It returns an error when every attempt fails (or the payload
// cannot be marshalled); per spec §4.6, "a publish failure is logged but
// does not roll back the state transition", so the returned error is
// informational only, logged by the dispatcher that calls Publish.
func (e *Emitter) Publish(fire models.AlarmFire) error {
	corrID := uuid.New().String()
	payload, err := json.Marshal(fire)
	if err != nil {
		return fmt.Errorf("marshal alarm payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxPublishAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			e.log.WithFields(logrus.Fields{"rule_id": fire.RuleID, "corr_id": corrID, "attempt": attempt + 1}).
				Warnf("retrying alarm publish in %v", backoff)
			e.clk.Sleep(backoff)
		}

		if err := e.publisher.Publish(e.topic, payload); err != nil {
			lastErr = err
			continue
		}

		lastErr = nil
		break
	}

	if e.broadcaster != nil {
		e.broadcaster.Broadcast(fire)
	}

	if lastErr != nil {
		return fmt.Errorf("publish alarm for rule %s after %d attempts: %w", fire.RuleID, maxPublishAttempts, lastErr)
	}

	e.log.WithFields(logrus.Fields{"rule_id": fire.RuleID, "device_id": fire.DeviceID, "corr_id": corrID}).
		Info("alarm published")
	return nil
}
