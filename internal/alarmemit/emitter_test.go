package alarmemit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/mt-monitoring/alarmd/internal/models"
)

type countingPublisher struct {
	mu       sync.Mutex
	attempts int
	failN    int // fail the first failN calls, then succeed
}

func (p *countingPublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.attempts <= p.failN {
		return errors.New("transient publish failure")
	}
	return nil
}

type countingBroadcaster struct {
	mu    sync.Mutex
	count int
}

func (b *countingBroadcaster) Broadcast(v interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
}

func TestPublishSucceedsOnFirstAttempt(t *testing.T) {
	pub := &countingPublisher{}
	bc := &countingBroadcaster{}
	e := New(pub, bc, "alarms/notifications", logrus.NewEntry(logrus.New()))

	if err := e.Publish(models.AlarmFire{RuleID: "r1"}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if pub.attempts != 1 {
		t.Errorf("expected exactly 1 publish attempt, got %d", pub.attempts)
	}
	if bc.count != 1 {
		t.Errorf("expected the broadcaster to be notified once, got %d", bc.count)
	}
}

// advanceUntilAttempt nudges the mock clock forward in small steps until
// pub has recorded at least want attempts, so the test doesn't need to
// know the exact backoff durations Publish is mid-sleep on. Using
// NewWithClock's mock avoids spending real wall time on the retry
// backoff (previously ~6s per failed-publish test with the real clock).
func advanceUntilAttempt(t *testing.T, mc *clock.Mock, pub *countingPublisher, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		pub.mu.Lock()
		attempts := pub.attempts
		pub.mu.Unlock()
		if attempts >= want {
			return
		}
		mc.Add(50 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for publish attempt %d", want)
}

func TestPublishRetriesOnTransientFailure(t *testing.T) {
	pub := &countingPublisher{failN: 2}
	bc := &countingBroadcaster{}
	mc := clock.NewMock()
	e := NewWithClock(pub, bc, "alarms/notifications", logrus.NewEntry(logrus.New()), mc)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Publish(models.AlarmFire{RuleID: "r1"}) }()

	advanceUntilAttempt(t, mc, pub, 3)

	if err := <-errCh; err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if pub.attempts != 3 {
		t.Errorf("expected 3 attempts (2 failures then a success), got %d", pub.attempts)
	}
}

func TestPublishGivesUpAfterMaxAttemptsButStillBroadcasts(t *testing.T) {
	pub := &countingPublisher{failN: maxPublishAttempts}
	bc := &countingBroadcaster{}
	mc := clock.NewMock()
	e := NewWithClock(pub, bc, "alarms/notifications", logrus.NewEntry(logrus.New()), mc)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Publish(models.AlarmFire{RuleID: "r1"}) }()

	advanceUntilAttempt(t, mc, pub, maxPublishAttempts)

	err := <-errCh
	if err == nil {
		t.Fatal("expected an error once every attempt fails")
	}
	if pub.attempts != maxPublishAttempts {
		t.Errorf("expected exactly %d attempts, got %d", maxPublishAttempts, pub.attempts)
	}
	if bc.count != 1 {
		t.Error("expected the websocket broadcast to still happen even though publish ultimately failed")
	}
}

func TestPublishWithNilBroadcasterDoesNotPanic(t *testing.T) {
	pub := &countingPublisher{}
	e := New(pub, nil, "alarms/notifications", logrus.NewEntry(logrus.New()))
	if err := e.Publish(models.AlarmFire{RuleID: "r1"}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
}
