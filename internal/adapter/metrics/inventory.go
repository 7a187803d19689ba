package metrics

import "github.com/prometheus/client_golang/prometheus"

// InventoryMetrics covers stock movements, forecasting and outbound notifications.
type InventoryMetrics struct {
	Operations         *prometheus.CounterVec
	InsufficientStock  prometheus.Counter
	ForecastDuration   prometheus.Histogram
	NarrationOutcomes  *prometheus.CounterVec
	DigestMessagesSent *prometheus.CounterVec
}

func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	m := &InventoryMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_operations_total",
			Help:      "Logged stock operations, by operation type.",
		}, []string{"type"}),
		InsufficientStock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_operations_rejected_total",
			Help:      "Outflows rejected for insufficient stock.",
		}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_compute_duration_seconds",
			Help:      "Time to load usage history and fit the forecast.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		NarrationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_narrations_total",
			Help:      "Forecast narration attempts, by outcome (ok, fallback, disabled).",
		}, []string{"outcome"}),
		DigestMessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digest_messages_total",
			Help:      "Scheduled digest messages, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.Operations, m.InsufficientStock, m.ForecastDuration, m.NarrationOutcomes, m.DigestMessagesSent)
	return m
}
