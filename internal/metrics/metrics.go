// Package metrics exposes Prometheus instrumentation for dispatches.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/requerio/internal/ir"
	"github.com/roach88/requerio/internal/store"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// TypeUnknown is the type label for actions naming no known method. Their
// types come from caller input and would otherwise grow the series set
// without bound.
const TypeUnknown = "UNKNOWN"

// Metrics holds the dispatch collectors registered with one registry.
type Metrics struct {
	// dispatches counts dispatches by action type and outcome.
	// Labels: type (ADD_CLASS, ATTR, ..., UNKNOWN), result (ok, error)
	dispatches *prometheus.CounterVec

	// duration measures time spent in the reducer chain.
	// Labels: type
	duration *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses a fresh private
// registry, which keeps tests and repeated engines from colliding.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "requerio",
			Name:      "dispatch_total",
			Help:      "Total dispatched actions by type and result",
		}, []string{"type", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "requerio",
			Name:      "dispatch_duration_seconds",
			Help:      "Reduction latency per action type in seconds",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"type"}),
	}
}

// Observe records one dispatch outcome.
func (m *Metrics) Observe(actionType string, elapsed time.Duration, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.dispatches.WithLabelValues(actionType, result).Inc()
	m.duration.WithLabelValues(actionType).Observe(elapsed.Seconds())
}

// Middleware times every non-init action through the rest of the chain.
func (m *Metrics) Middleware() store.Middleware[map[string]*ir.State, ir.Action] {
	return func(store.API[map[string]*ir.State, ir.Action]) func(store.DispatchFunc[map[string]*ir.State, ir.Action]) store.DispatchFunc[map[string]*ir.State, ir.Action] {
		return func(next store.DispatchFunc[map[string]*ir.State, ir.Action]) store.DispatchFunc[map[string]*ir.State, ir.Action] {
			return func(a ir.Action) (map[string]*ir.State, error) {
				if a.Type == ir.InitType {
					return next(a)
				}
				start := time.Now()
				tree, err := next(a)
				m.Observe(typeLabel(a), time.Since(start), err)
				return tree, err
			}
		}
	}
}

func typeLabel(a ir.Action) string {
	if a.Method == ir.MethodUnknown {
		return TypeUnknown
	}
	return a.Type
}
