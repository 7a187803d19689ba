package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pscheid92/stockpulse/internal/adapter/metrics"
)

// queryTracer records per-statement latency and errors.
type queryTracer struct {
	m *metrics.DBMetrics
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

type traceKey struct{}

type traceStart struct {
	at        time.Time
	statement string
}

func newQueryTracer(m *metrics.DBMetrics) *queryTracer {
	return &queryTracer{m: m}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceStart{at: time.Now(), statement: statementVerb(data.SQL)})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(traceKey{}).(traceStart)
	if !ok {
		return
	}
	t.m.QueryDuration.WithLabelValues(start.statement).Observe(time.Since(start.at).Seconds())
	if data.Err != nil && data.Err != pgx.ErrNoRows {
		t.m.QueryErrors.WithLabelValues(start.statement).Inc()
	}
}

// statementVerb reduces SQL to its leading keyword to bound label cardinality.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	verb := strings.ToUpper(fields[0])
	switch verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE", "WITH", "BEGIN", "COMMIT", "ROLLBACK":
		return verb
	}
	return "OTHER"
}
