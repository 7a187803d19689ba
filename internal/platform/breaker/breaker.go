// Package breaker builds the circuit breakers guarding Redis and the narrator API.
package breaker

import (
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/pscheid92/stockpulse/internal/adapter/metrics"
)

// Settings configures when a breaker opens and how long it stays open.
type Settings struct {
	FailureRate float64
	MinRequests uint
	Window      time.Duration
	Delay       time.Duration
}

// DefaultSettings opens at a 60% failure rate over at least 5 calls in 10s and
// probes again after 30s.
var DefaultSettings = Settings{
	FailureRate: 0.6,
	MinRequests: 5,
	Window:      10 * time.Second,
	Delay:       30 * time.Second,
}

// New builds a breaker for component. m may be nil.
func New(component string, s Settings, m *metrics.BreakerMetrics) circuitbreaker.CircuitBreaker[any] {
	if m != nil {
		m.State.WithLabelValues(component).Set(StateValue(circuitbreaker.ClosedState))
	}

	return circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(s.FailureRate, s.MinRequests, s.Window).
		WithDelay(s.Delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", component,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.StateChanges.WithLabelValues(component, e.NewState.String()).Inc()
				m.State.WithLabelValues(component).Set(StateValue(e.NewState))
			}
		}).
		Build()
}

// StateValue maps a state to the gauge value exported for it.
func StateValue(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}
