// Package metrics holds the prometheus collector for port allocation and
// remote network service traffic.
//
// A nil *Collector is valid and records nothing.
//
// Import Path: netbinder.io/netbinder/internal/metrics
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "netbinder"

// Allocation outcomes.
const (
	OutcomeSuccess                   = "success"
	OutcomeFailed                    = "failed"
	OutcomeInvalid                   = "invalid"
	OutcomeCompensationInconsistency = "compensation_inconsistency"
)

// Compensation actions and generic results.
const (
	ActionDetach = "detach"
	ActionDelete = "delete"

	ResultOK    = "ok"
	ResultError = "error"
)

// Collector is a prometheus.Collector for netbinder.
type Collector struct {
	allocations         *prometheus.CounterVec
	compensationActions *prometheus.CounterVec
	portDeletes         *prometheus.CounterVec
	remoteRequests      *prometheus.CounterVec
	remoteDuration      *prometheus.HistogramVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		allocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "allocations_total",
				Help:      "Port allocations by outcome.",
			}, []string{"outcome"},
		),
		compensationActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "compensation_actions_total",
				Help:      "Compensation actions run after a failed allocation.",
			}, []string{"action", "result"},
		),
		portDeletes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "port_deletes_total",
				Help:      "Port deletions issued by the deallocation sweep.",
			}, []string{"result"},
		),
		remoteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "remote_requests_total",
				Help:      "Calls to the remote network service.",
			}, []string{"operation", "result"},
		),
		remoteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "remote_request_duration_seconds",
				Help:      "Latency of calls to the remote network service.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			}, []string{"operation"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.allocations.Describe(ch)
	c.compensationActions.Describe(ch)
	c.portDeletes.Describe(ch)
	c.remoteRequests.Describe(ch)
	c.remoteDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.allocations.Collect(ch)
	c.compensationActions.Collect(ch)
	c.portDeletes.Collect(ch)
	c.remoteRequests.Collect(ch)
	c.remoteDuration.Collect(ch)
}

// AllocationFinished counts one allocation outcome.
func (c *Collector) AllocationFinished(outcome string) {
	if c == nil {
		return
	}
	c.allocations.WithLabelValues(outcome).Inc()
}

// CompensationRan counts one compensation action.
func (c *Collector) CompensationRan(action string, err error) {
	if c == nil {
		return
	}
	c.compensationActions.WithLabelValues(action, result(err)).Inc()
}

// PortDeleted counts one deletion attempted by the sweep.
func (c *Collector) PortDeleted(err error) {
	if c == nil {
		return
	}
	c.portDeletes.WithLabelValues(result(err)).Inc()
}

// RemoteCall records one call to the remote service.
func (c *Collector) RemoteCall(operation string, started time.Time, err error) {
	if c == nil {
		return
	}
	c.remoteRequests.WithLabelValues(operation, result(err)).Inc()
	c.remoteDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
