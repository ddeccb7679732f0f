package reconciler

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cforge/pkg/logging"
)

const metricsNamespace = "cforge"

// Definition actions recorded by Metrics.RecordDefinitionAction.
const (
	ActionCreate  = "create"
	ActionReplace = "replace"
	ActionDelete  = "delete"
	ActionSkip    = "skip"
)

// Reconcile results recorded by Metrics.RecordReconcile.
const (
	ResultSuccess = "success"
	ResultRequeue = "requeue"
	ResultError   = "error"
	ResultFailed  = "failed"
)

var reconcileBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// Metrics exposes reconciliation counters to Prometheus.
//
// All methods are safe on a nil *Metrics, so components can be built
// without metrics in tests.
type Metrics struct {
	reconcileTotal      *prometheus.CounterVec
	reconcileDuration   *prometheus.HistogramVec
	definitionActions   *prometheus.CounterVec
	runsCreated         prometheus.Counter
	runFailures         prometheus.Counter
	invalidProjects     prometheus.Counter
	statusWriteFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered by an earlier instance are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconciler",
			Name:      "reconcile_total",
			Help:      "Count of reconcile passes by operation and result",
		}, []string{"operation", "result"}),
		reconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconciler",
			Name:      "reconcile_duration_seconds",
			Help:      "Latency distribution of reconcile passes",
			Buckets:   reconcileBuckets,
		}, []string{"operation"}),
		definitionActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconciler",
			Name:      "definition_actions_total",
			Help:      "Number of build definitions created, replaced, deleted or skipped",
		}, []string{"action"}),
		runsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconciler",
			Name:      "runs_created_total",
			Help:      "Number of one-off build Jobs created",
		}),
		runFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconciler",
			Name:      "run_failures_total",
			Help:      "Number of one-off build Jobs that could not be created",
		}),
		invalidProjects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconciler",
			Name:      "invalid_projects_total",
			Help:      "Number of declared projects skipped as invalid",
		}),
		statusWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconciler",
			Name:      "status_write_failures_total",
			Help:      "Number of failed CForge status updates",
		}),
	}

	if reg == nil {
		return m
	}

	m.reconcileTotal = register(reg, m.reconcileTotal)
	m.reconcileDuration = register(reg, m.reconcileDuration)
	m.definitionActions = register(reg, m.definitionActions)
	m.runsCreated = register(reg, m.runsCreated)
	m.runFailures = register(reg, m.runFailures)
	m.invalidProjects = register(reg, m.invalidProjects)
	m.statusWriteFailures = register(reg, m.statusWriteFailures)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing
		}
	}
	logging.Warn("ReconcilerMetrics", "Failed to register collector: %v", err)
	return c
}

// RecordReconcile records the outcome of one reconcile pass.
func (m *Metrics) RecordReconcile(operation ChangeOperation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(string(operation), result).Inc()
	m.reconcileDuration.WithLabelValues(string(operation)).Observe(duration.Seconds())
}

// RecordDefinitionAction counts a change applied to a build definition.
func (m *Metrics) RecordDefinitionAction(action string) {
	if m == nil {
		return
	}
	m.definitionActions.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordRunCreated() {
	if m == nil {
		return
	}
	m.runsCreated.Inc()
}

func (m *Metrics) RecordRunFailure() {
	if m == nil {
		return
	}
	m.runFailures.Inc()
}

func (m *Metrics) RecordInvalidProject() {
	if m == nil {
		return
	}
	m.invalidProjects.Inc()
}

// RecordStatusWriteFailure counts a failed status update.
//
// High failure rates usually mean RBAC on the status subresource is missing
// or the CRD schema does not match.
func (m *Metrics) RecordStatusWriteFailure() {
	if m == nil {
		return
	}
	m.statusWriteFailures.Inc()
}
