package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/pscheid92/stockpulse/internal/adapter/metrics"
)

func TestNew_StartsClosed(t *testing.T) {
	m := metrics.NewBreakerMetrics(prometheus.NewRegistry())
	cb := New("narrator", DefaultSettings, m)

	assert.Equal(t, circuitbreaker.ClosedState, cb.State())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.State.WithLabelValues("narrator")))
}

func TestNew_OpensAfterSustainedFailures(t *testing.T) {
	m := metrics.NewBreakerMetrics(prometheus.NewRegistry())
	cb := New("redis", DefaultSettings, m)

	for range 5 {
		if cb.TryAcquirePermit() {
			cb.RecordError(errors.New("connection refused"))
		}
	}

	assert.Equal(t, circuitbreaker.OpenState, cb.State())
	assert.False(t, cb.TryAcquirePermit())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.State.WithLabelValues("redis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateChanges.WithLabelValues("redis", circuitbreaker.OpenState.String())))
}

func TestNew_StaysClosedBelowMinimumRequests(t *testing.T) {
	cb := New("redis", DefaultSettings, nil)

	for range 4 {
		cb.TryAcquirePermit()
		cb.RecordError(errors.New("timeout"))
	}

	assert.Equal(t, circuitbreaker.ClosedState, cb.State())
}

func TestNew_HalfOpensAfterDelay(t *testing.T) {
	s := DefaultSettings
	s.Delay = 20 * time.Millisecond
	cb := New("narrator", s, nil)

	for range 5 {
		cb.TryAcquirePermit()
		cb.RecordError(errors.New("boom"))
	}
	assert.Equal(t, circuitbreaker.OpenState, cb.State())

	assert.Eventually(t, func() bool {
		return cb.TryAcquirePermit()
	}, time.Second, 5*time.Millisecond)

	cb.RecordSuccess()
	assert.Equal(t, circuitbreaker.ClosedState, cb.State())
}

func TestStateValue(t *testing.T) {
	assert.Equal(t, 0.0, StateValue(circuitbreaker.ClosedState))
	assert.Equal(t, 1.0, StateValue(circuitbreaker.HalfOpenState))
	assert.Equal(t, 2.0, StateValue(circuitbreaker.OpenState))
}
