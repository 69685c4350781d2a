// Package observability provides structured logging for the broker, built
// on zerolog. It keeps the teacher's RunInfo/context-carried trace
// identifier shape (libs/observability/context.go) and field-redaction
// rules (libs/observability/redact.go), but logs through zerolog instead of
// a hand-rolled JSON writer.
package observability

import "context"

type contextKey string

const (
	runIDKey  contextKey = "run_id"
	orderIDKey contextKey = "order_id"
	symbolKey contextKey = "symbol"
)

// RunInfo carries trace identifiers through a request context. RunID spans
// one broker invocation (e.g. one HTTP request against the shim); OrderID
// and Symbol narrow it to the order/instrument being processed.
type RunInfo struct {
	RunID   string
	OrderID string
	Symbol  string
}

// WithRunInfo attaches info to ctx.
func WithRunInfo(ctx context.Context, info RunInfo) context.Context {
	if info.RunID != "" {
		ctx = context.WithValue(ctx, runIDKey, info.RunID)
	}
	if info.OrderID != "" {
		ctx = context.WithValue(ctx, orderIDKey, info.OrderID)
	}
	if info.Symbol != "" {
		ctx = context.WithValue(ctx, symbolKey, info.Symbol)
	}
	return ctx
}

// RunInfoFromContext retrieves whatever trace identifiers were attached.
func RunInfoFromContext(ctx context.Context) RunInfo {
	info := RunInfo{}
	if v, ok := ctx.Value(runIDKey).(string); ok {
		info.RunID = v
	}
	if v, ok := ctx.Value(orderIDKey).(string); ok {
		info.OrderID = v
	}
	if v, ok := ctx.Value(symbolKey).(string); ok {
		info.Symbol = v
	}
	return info
}
