package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// SettlementMetrics records ledger operations and the money they move.
type SettlementMetrics struct {
	operations *prometheus.CounterVec
	amounts    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_operations_total",
		Help: "Settlement operations by outcome.",
	}, []string{"operation", "outcome"})
	amounts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_amount_total",
		Help: "Money moved by settlement operations, per receiving party.",
	}, []string{"operation", "party"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of settlement operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(operations, amounts, duration)
	return &SettlementMetrics{
		operations: operations,
		amounts:    amounts,
		duration:   duration,
	}
}

// Observe records one finished operation.
func (m *SettlementMetrics) Observe(operation, outcome string, took time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	op := normalizeLabel(operation)
	m.operations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(op).Observe(took.Seconds())
}

// AddAmount adds a non-negative money amount credited to party.
func (m *SettlementMetrics) AddAmount(operation, party string, amount decimal.Decimal) {
	if m == nil || m.amounts == nil || !amount.IsPositive() {
		return
	}
	m.amounts.WithLabelValues(normalizeLabel(operation), normalizeLabel(party)).Add(amount.InexactFloat64())
}

// Track returns a func that records the operation outcome from *errp when deferred.
func (m *SettlementMetrics) Track(operation string, errp *error) func() {
	start := time.Now()
	return func() {
		outcome := OutcomeSuccess
		if errp != nil && *errp != nil {
			outcome = OutcomeFailure
		}
		m.Observe(operation, outcome, time.Since(start))
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
