package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"kalshi-llm-bot/internal/trace"
)

var globalLogger *slog.Logger

// Init configures the global structured logger from the environment.
// LOG_LEVEL: DEBUG/INFO/WARN/ERROR, LOG_FORMAT: json or text.
func Init() error {
	opts := &slog.HandlerOptions{Level: parseLogLevel(getEnv("LOG_LEVEL", "INFO"))}

	var handler slog.Handler
	if getEnv("LOG_FORMAT", "json") == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func logWithTrace(ctx context.Context, level slog.Level, msg string, args ...any) {
	if traceID, spanID, ok := trace.GetTraceFields(ctx); ok {
		args = append([]any{"trace_id", traceID, "span_id", spanID}, args...)
	}
	l := globalLogger
	if l == nil {
		l = slog.Default()
	}
	l.Log(ctx, level, msg, args...)
}

func Debug(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelDebug, msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelWarn, msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelError, msg, args...)
}

// ErrorWithErr records the error on the active span before logging it.
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	logWithTrace(ctx, slog.LevelError, msg, append([]any{"error", err}, args...)...)
}

// Decision logs a trading decision, always at info level.
func Decision(ctx context.Context, ticker, action, reason string, args ...any) {
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("trading_decision", oteltrace.WithAttributes(
			attribute.String("ticker", ticker),
			attribute.String("action", action),
			attribute.String("reason", reason),
		))
	}
	logWithTrace(ctx, slog.LevelInfo, "Trading decision made",
		append([]any{"type", "DECISION", "ticker", ticker, "action", action, "reason", reason}, args...)...)
}

// Trade logs an order placement, always at info level.
func Trade(ctx context.Context, ticker, side string, shares int, priceCents float64, orderID string, args ...any) {
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("trade_executed", oteltrace.WithAttributes(
			attribute.String("ticker", ticker),
			attribute.String("side", side),
			attribute.Int("shares", shares),
			attribute.Float64("price_cents", priceCents),
			attribute.String("order_id", orderID),
		))
	}
	logWithTrace(ctx, slog.LevelInfo, "Trade executed",
		append([]any{"type", "TRADE", "ticker", ticker, "side", side, "shares", shares, "price_cents", priceCents, "order_id", orderID}, args...)...)
}

// Risk logs a risk-gate event at warn level.
func Risk(ctx context.Context, ticker, eventType string, args ...any) {
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("risk_event", oteltrace.WithAttributes(
			attribute.String("ticker", ticker),
			attribute.String("event_type", eventType),
		))
	}
	logWithTrace(ctx, slog.LevelWarn, "Risk event",
		append([]any{"type", "RISK", "ticker", ticker, "event_type", eventType}, args...)...)
}
