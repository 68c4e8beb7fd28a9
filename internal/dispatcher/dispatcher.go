// Package dispatcher implements the Concurrent Dispatcher (spec §4.3): a
// bounded intake queue fanning telemetry out to rule evaluations while
// guaranteeing that two evaluations of the same rule_id never run
// concurrently.
//
// The fan-out shape is grounded in the reference service's
// internal/collector/manager.go collectAll() (snapshot the work, then run
// it across goroutines bounded by a fixed pool) and
// internal/checker/scheduler.go's ticker/stopCh lifecycle. Per-rule
// serialization — the fix Design Notes §9 calls out as missing from the
// original's single-drain-thread-into-a-thread-pool design — is achieved
// by hashing rule_id onto one of a fixed set of worker goroutines, each
// consuming its own ordered channel.
package dispatcher

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mt-monitoring/alarmd/internal/evaluator"
	"github.com/mt-monitoring/alarmd/internal/metrics"
	"github.com/mt-monitoring/alarmd/internal/models"
)

// RuleLister is the subset of the Durable Store's rule repository the
// dispatcher needs: enabled rules for one device. store.RuleRepository
// satisfies this directly.
type RuleLister interface {
	List(deviceID string, enabledOnly bool) ([]*models.AlarmRule, error)
}

// Emitter publishes a fired alarm. internal/alarmemit.Emitter satisfies
// this.
type Emitter interface {
	Publish(fire models.AlarmFire) error
}

// workItem is one (rule, telemetry) evaluation task, carrying the
// monotonic sequence number and correlation id spec §4.3 calls for.
type workItem struct {
	rule      *models.AlarmRule
	telemetry models.Telemetry
	corrID    string
}

// Dispatcher fans telemetry out to per-rule-serialized evaluation
// workers.
type Dispatcher struct {
	rules     RuleLister
	evaluator *evaluator.Evaluator
	emitter   Emitter
	metrics   *metrics.Metrics
	log       *logrus.Entry

	intake  chan models.Telemetry
	workers []chan workItem

	seq atomic.Uint64
	wg  sync.WaitGroup
}

// New builds a Dispatcher. intakeCapacity and workerCount come from
// processing.intake_capacity / processing.max_workers (spec §6, defaults
// 500 / 20).
func New(rules RuleLister, ev *evaluator.Evaluator, emitter Emitter, m *metrics.Metrics, log *logrus.Entry, intakeCapacity, workerCount int) *Dispatcher {
	if intakeCapacity <= 0 {
		intakeCapacity = 500
	}
	if workerCount <= 0 {
		workerCount = 20
	}

	workers := make([]chan workItem, workerCount)
	for i := range workers {
		workers[i] = make(chan workItem, intakeCapacity)
	}

	return &Dispatcher{
		rules:     rules,
		evaluator: ev,
		emitter:   emitter,
		metrics:   m,
		log:       log,
		intake:    make(chan models.Telemetry, intakeCapacity),
		workers:   workers,
	}
}

// Submit enqueues telemetry for evaluation. It never blocks: if the
// intake queue is full the item is dropped and counted, per spec §4.3 ("the
// only loss point the user observes under overload").
func (d *Dispatcher) Submit(t models.Telemetry) bool {
	t.Seq = d.seq.Add(1)
	select {
	case d.intake <- t:
		return true
	default:
		d.metrics.DispatcherDropped.Inc()
		d.log.WithFields(logrus.Fields{"device_id": t.DeviceID, "seq": t.Seq}).
			Warn("intake queue full, dropping telemetry")
		return false
	}
}

// Start launches the dispatch loop and worker pool. It returns
// immediately; call Stop to drain and shut down.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i)
	}
	d.wg.Add(1)
	go d.runDispatchLoop(ctx)
}

// Stop signals shutdown and waits up to deadline for in-flight
// evaluations to drain, per spec §5's bounded-deadline cancellation
// contract (default 10s). Telemetry still sitting in the intake queue
// when the deadline elapses is discarded — no state has been mutated for
// it, so nothing is lost that the system has promised to keep.
func (d *Dispatcher) Stop(deadline time.Duration) {
	close(d.intake)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(deadline):
		d.log.Warn("dispatcher shutdown deadline exceeded, discarding in-flight backlog")
	}
}

func (d *Dispatcher) runDispatchLoop(ctx context.Context) {
	defer d.wg.Done()
	defer func() {
		for _, w := range d.workers {
			close(w)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-d.intake:
			if !ok {
				return
			}
			d.fanOut(ctx, t)
		}
	}
}

// fanOut hands one telemetry item to the worker owning each of its
// device's enabled rules. It blocks on a full worker channel rather than
// dropping: spec §4.3 names the intake queue as "the only loss point the
// user observes under overload", so back-pressure here must propagate
// back into intake filling up, not create a second drop point. ctx.Done
// only unblocks a send that is still pending at shutdown; it does not
// cancel sends already queued.
func (d *Dispatcher) fanOut(ctx context.Context, t models.Telemetry) {
	rules, err := d.rules.List(t.DeviceID, true)
	if err != nil {
		d.log.WithError(err).WithField("device_id", t.DeviceID).Error("failed to list rules for device")
		return
	}

	for _, rule := range rules {
		item := workItem{rule: rule, telemetry: t, corrID: uuid.New().String()}
		idx := workerIndex(rule.RuleID, len(d.workers))
		select {
		case d.workers[idx] <- item:
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) runWorker(idx int) {
	defer d.wg.Done()
	for item := range d.workers[idx] {
		d.evaluateSafely(item)
	}
}

// evaluateSafely runs one evaluation with panic isolation, per spec §7's
// Internal error taxonomy: "unexpected exception in an evaluation...
// sibling evaluations continue."
func (d *Dispatcher) evaluateSafely(item workItem) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.EvaluationErrors.Inc()
			d.log.WithFields(logrus.Fields{
				"rule_id": item.rule.RuleID,
				"seq":     item.telemetry.Seq,
				"corr_id": item.corrID,
			}).Errorf("evaluation panicked: %v", r)
		}
	}()

	fire, err := d.evaluator.Evaluate(item.rule, item.telemetry)
	if err != nil {
		d.metrics.EvaluationErrors.Inc()
		d.log.WithFields(logrus.Fields{
			"rule_id": item.rule.RuleID,
			"seq":     item.telemetry.Seq,
			"corr_id": item.corrID,
		}).WithError(err).Error("rule evaluation failed")
		return
	}
	if fire == nil {
		return
	}

	if err := d.emitter.Publish(*fire); err != nil {
		d.log.WithFields(logrus.Fields{
			"rule_id": item.rule.RuleID,
			"corr_id": item.corrID,
		}).WithError(err).Error("alarm publish failed; alarm remains recorded in history")
	}
}

func workerIndex(ruleID string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(ruleID))
	return int(h.Sum32()) % n
}
