package observability

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger with the broker's event-helper methods.
type Logger struct {
	z zerolog.Logger
}

// New returns a Logger writing JSON lines to w (os.Stdout in production).
func New(w io.Writer) *Logger {
	z := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{z: z}
}

// Default returns a Logger writing to os.Stdout.
func Default() *Logger {
	return New(os.Stdout)
}

func (l *Logger) event(ctx context.Context, level zerolog.Level, event string, fields map[string]any) {
	e := l.z.WithLevel(level).Str("event", event)

	info := RunInfoFromContext(ctx)
	if info.RunID != "" {
		e = e.Str("run_id", info.RunID)
	}
	if info.OrderID != "" {
		e = e.Str("order_id", info.OrderID)
	}
	if info.Symbol != "" {
		e = e.Str("symbol", info.Symbol)
	}

	for k, v := range redactFields(fields) {
		e = e.Interface(k, v)
	}
	e.Send()
}

// LogFill records a successful fill.
func (l *Logger) LogFill(ctx context.Context, fields map[string]any) {
	l.event(ctx, zerolog.InfoLevel, "fill", fields)
}

// LogRejection records a rejected order with a "reason" field. The broker
// calls it for risk rejections and for insufficient buying power or shares;
// validation failures and market-closed deferrals are not logged here.
func (l *Logger) LogRejection(ctx context.Context, reason string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["reason"] = reason
	l.event(ctx, zerolog.WarnLevel, "order_rejected", fields)
}

// LogViolation records a risk engine violation surfaced on an order.
func (l *Logger) LogViolation(ctx context.Context, violationType, severity, message string) {
	l.event(ctx, zerolog.WarnLevel, "risk_violation", map[string]any{
		"type":     violationType,
		"severity": severity,
		"message":  message,
	})
}

// LogBreakerTrip records a circuit breaker state transition (either the
// risk engine's domain breaker or the store's disk I/O breaker).
func (l *Logger) LogBreakerTrip(ctx context.Context, breaker string, untilUnix int64) {
	l.event(ctx, zerolog.ErrorLevel, "circuit_breaker_tripped", map[string]any{
		"breaker": breaker,
		"until":   untilUnix,
	})
}

// LogDurabilityError records a journal/snapshot write failure (spec §7's
// Durability error class). The caller continues after logging — a failed
// auto-save never blocks a fill that already succeeded in memory.
func (l *Logger) LogDurabilityError(ctx context.Context, op string, err error) {
	l.event(ctx, zerolog.ErrorLevel, "durability_error", map[string]any{
		"op":    op,
		"error": err,
	})
}

// LogInfo records a generic informational event.
func (l *Logger) LogInfo(ctx context.Context, event string, fields map[string]any) {
	l.event(ctx, zerolog.InfoLevel, event, fields)
}
