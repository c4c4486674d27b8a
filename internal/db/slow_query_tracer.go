package db

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"freelancehub/pkg/metrics"
)

type traceCtxKey struct{}

type queryTrace struct {
	start time.Time
	sql   string
}

// SlowQueryTracer logs statements slower than the threshold and feeds the
// db_query_duration histogram.
type SlowQueryTracer struct {
	logger        *zap.Logger
	slowThreshold time.Duration
}

func NewSlowQueryTracer(logger *zap.Logger, slowThreshold time.Duration) *SlowQueryTracer {
	if slowThreshold == 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &SlowQueryTracer{
		logger:        logger,
		slowThreshold: slowThreshold,
	}
}

func (t *SlowQueryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceCtxKey{}, queryTrace{start: time.Now(), sql: data.SQL})
}

func (t *SlowQueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	qt, ok := ctx.Value(traceCtxKey{}).(queryTrace)
	if !ok {
		return
	}

	elapsed := time.Since(qt.start)
	metrics.RecordDBQueryDuration(queryOperation(qt.sql), elapsed)

	if elapsed >= t.slowThreshold {
		t.logger.Warn("Slow query",
			zap.Duration("elapsed", elapsed),
			zap.String("sql", qt.sql),
			zap.Error(data.Err),
		)
	}
}

// queryOperation extracts the leading SQL verb for the metric label.
func queryOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToUpper(fields[0])
}
