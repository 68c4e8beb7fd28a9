// Package metrics exposes the drop/error counters named throughout
// spec §4.2/§4.3/§4.4/§7 as Prometheus counters, the "metrics surface
// (implementation's choice)" spec §7 leaves open.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter the core components increment. It is
// constructed once per process (or once per test) and passed to whatever
// needs it, rather than relying on package-level global state.
type Metrics struct {
	Registry *prometheus.Registry

	IngressBadTopic         prometheus.Counter
	IngressBadDecode        prometheus.Counter
	IngressDeviceIDMismatch prometheus.Counter
	EvalMissingField        prometheus.Counter
	DispatcherDropped       prometheus.Counter
	AlarmsFired             prometheus.Counter
	EvaluationErrors        prometheus.Counter
	StoreTransientRetries   prometheus.Counter
}

// New builds a fresh counter set registered into its own registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		IngressBadTopic: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingress_badtopic_total",
			Help: "Telemetry messages dropped because the topic did not match sensors/<device_id>/data.",
		}),
		IngressBadDecode: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingress_baddecode_total",
			Help: "Telemetry messages dropped because the payload failed to decode.",
		}),
		IngressDeviceIDMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingress_device_id_mismatch_total",
			Help: "Telemetry messages whose payload device_id disagreed with the topic segment.",
		}),
		EvalMissingField: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eval_missing_field_total",
			Help: "Rule evaluations skipped because the sensor field was absent or non-numeric.",
		}),
		DispatcherDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatcher_intake_dropped_total",
			Help: "Telemetry items dropped because the intake queue was full.",
		}),
		AlarmsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alarms_fired_total",
			Help: "Alarms emitted by the evaluator.",
		}),
		EvaluationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evaluation_errors_total",
			Help: "Rule evaluations that failed with an internal error (spec §7 Internal taxonomy).",
		}),
		StoreTransientRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "store_transient_retries_total",
			Help: "Store-transient retry attempts (spec §7 Store-transient taxonomy).",
		}),
	}

	m.Registry.MustRegister(
		m.IngressBadTopic,
		m.IngressBadDecode,
		m.IngressDeviceIDMismatch,
		m.EvalMissingField,
		m.DispatcherDropped,
		m.AlarmsFired,
		m.EvaluationErrors,
		m.StoreTransientRetries,
	)

	return m
}
