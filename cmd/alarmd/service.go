// Command alarmd is the daemon entrypoint: it wires the Device Telemetry
// Cache, Ingress Decoder, Dispatcher, Rule Evaluator, Durable Store, and
// Alarm Emitter into one running service, plus the ambient cron jobs and
// observability surface SPEC_FULL adds.
//
// Grounded in original_source/src/main.py's AlarmService orchestration
// (_initialize_services/_start_services/_stop_services, signal handlers,
// periodic status print), translated into explicit constructor wiring
// per Design Notes §9 ("global singletons... become explicit
// dependencies") rather than a module-level service object.
package main

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/mt-monitoring/alarmd/internal/alarmemit"
	"github.com/mt-monitoring/alarmd/internal/cache"
	"github.com/mt-monitoring/alarmd/internal/config"
	"github.com/mt-monitoring/alarmd/internal/dispatcher"
	"github.com/mt-monitoring/alarmd/internal/evaluator"
	"github.com/mt-monitoring/alarmd/internal/httpapi"
	"github.com/mt-monitoring/alarmd/internal/ingress"
	"github.com/mt-monitoring/alarmd/internal/logging"
	"github.com/mt-monitoring/alarmd/internal/metrics"
	"github.com/mt-monitoring/alarmd/internal/store"
	"github.com/mt-monitoring/alarmd/internal/transport"
)

// shutdownDeadline is spec §5's bounded in-flight evaluation drain
// window.
const shutdownDeadline = 10 * time.Second

// service bundles every component the daemon owns, so Stop can release
// them in dependency order.
type service struct {
	cfg        *config.Config
	log        *logrus.Logger
	store      *store.Store
	cache      *cache.TelemetryCache
	metrics    *metrics.Metrics
	transport  *transport.Transport
	decoder    *ingress.Decoder
	dispatcher *dispatcher.Dispatcher
	httpSrv    *httpapi.Server
	cron       *cron.Cron
	startedAt  time.Time
}

func newService(cfg *config.Config) (*service, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	tc := cache.New()
	m := metrics.New()
	st.SetMetrics(m)

	var broadcaster alarmemit.Broadcaster
	var httpSrv *httpapi.Server
	if cfg.HTTP.Enabled {
		httpSrv = httpapi.New(st, tc, m, logging.For(logger, "httpapi"), time.Now())
		broadcaster = httpSrv.Hub()
	}

	tr := transport.New(cfg.Transport, logging.For(logger, "transport"))
	emitter := alarmemit.New(tr, broadcaster, cfg.Transport.AlarmTopic, logging.For(logger, "emitter"))
	ev := evaluator.New(st, tc, m, logging.For(logger, "evaluator"), clock.New(), time.Duration(cfg.Defaults.ShuntFreshnessSeconds)*time.Second)
	disp := dispatcher.New(st.Rules, ev, emitter, m, logging.For(logger, "dispatcher"), cfg.Processing.IntakeCapacity, cfg.Processing.MaxWorkers)
	decoder := ingress.New(m, logging.For(logger, "ingress"))

	return &service{
		cfg:        cfg,
		log:        logger,
		store:      st,
		cache:      tc,
		metrics:    m,
		transport:  tr,
		decoder:    decoder,
		dispatcher: disp,
		httpSrv:    httpSrv,
		cron:       cron.New(cron.WithSeconds()),
		startedAt:  time.Now(),
	}, nil
}

// Start connects the transport, launches the dispatcher and ingress
// pump, the observability surface, and the background cron jobs
// recovered from the original in SPEC_FULL §12.
func (s *service) Start(ctx context.Context) error {
	s.dispatcher.Start(ctx)

	if err := s.transport.Connect(); err != nil {
		return err
	}
	go s.pumpIngress(ctx)

	if s.httpSrv != nil {
		s.httpSrv.Start(s.cfg.HTTP.Listen)
	}

	s.cron.AddFunc("0 0 0 * * *", s.runRetentionSweep)
	interval := s.cfg.Processing.CheckIntervalSecond
	if interval <= 0 {
		interval = 60
	}
	s.cron.AddFunc(cronEvery(interval), s.logStatus)
	s.cron.Start()

	return nil
}

// pumpIngress decodes each raw transport message and submits the result
// to the dispatcher, per spec §2's leaves-first dataflow. It also feeds
// the Device Telemetry Cache so conditional rules can read a fresh shunt
// value without an extra round trip through the store.
func (s *service) pumpIngress(ctx context.Context) {
	events := s.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			telemetry, ok := s.decoder.Decode(msg.Topic, msg.Payload, msg.Timestamp)
			if !ok {
				continue
			}
			s.cache.Put(telemetry.DeviceID, telemetry.Fields, telemetry.ArrivalTime)
			s.dispatcher.Submit(telemetry)
		}
	}
}

// Stop stops cron and disconnects the transport, drains in-flight
// evaluations within shutdownDeadline, then shuts down the HTTP surface
// and closes the store.
func (s *service) Stop() {
	s.cron.Stop()
	s.transport.Close()
	s.dispatcher.Stop(shutdownDeadline)

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpSrv.Stop(ctx)
	}

	s.store.Close()
}

// runRetentionSweep recovers src/main.py's
// storage_service.cleanup_old_history call, generalized to a daily cron
// job instead of shutdown-only (SPEC_FULL §12).
func (s *service) runRetentionSweep() {
	log := logging.For(s.log, "retention")
	days := s.cfg.Defaults.RetentionDays
	if days <= 0 {
		days = 30
	}
	n, err := s.store.PruneHistory(days)
	if err != nil {
		log.WithError(err).Error("history retention sweep failed")
		return
	}
	log.WithField("pruned", n).Info("history retention sweep complete")
}

// logStatus recovers src/main.py's _print_status() loop (SPEC_FULL §12):
// device count and active-alarm count, logged on processing.check_interval_seconds.
func (s *service) logStatus() {
	log := logging.For(s.log, "status")
	states, err := s.store.States.List()
	if err != nil {
		log.WithError(err).Warn("status: failed to list alarm states")
		return
	}
	active := 0
	for _, st := range states {
		if st.IsViolationActive() {
			active++
		}
	}
	log.WithFields(logrus.Fields{"cached_devices": s.cache.Len(), "active_alarms": active}).Info("status")
}

func cronEvery(seconds int) string {
	return "@every " + (time.Duration(seconds) * time.Second).String()
}
