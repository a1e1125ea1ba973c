// Package logger is the process-wide structured logger. Output is JSON on
// stdout, or OTLP over gRPC when OTEL_ENABLED=true. Warnings and errors can
// be sampled with ERROR_SAMPLE_RATE; the counters below are always updated.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

var (
	Logger          *slog.Logger
	errorSampleRate atomic.Int32
	programLevel    = new(slog.LevelVar)
	shutdownFunc    func(context.Context) error
)

// Counters reported by the health endpoint.
var (
	TotalErrors         atomic.Int64
	TotalWarnings       atomic.Int64
	Total5xxErrors      atomic.Int64
	Total4xxErrors      atomic.Int64
	FormulaFailures     atomic.Int64
	ConditionFailures   atomic.Int64
	OptionFetchFailures atomic.Int64
)

// Config selects the handler and sampling.
type Config struct {
	Level       slog.Level
	SampleRate  int
	OTELEnabled bool
	ServiceName string
}

// ConfigFromEnv reads LOG_LEVEL, ERROR_SAMPLE_RATE, OTEL_ENABLED and
// OTEL_SERVICE_NAME.
func ConfigFromEnv() Config {
	cfg := Config{
		Level:       LevelInfo,
		SampleRate:  1,
		ServiceName: "formlogic",
	}
	if lvl, err := ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		cfg.Level = lvl
	}
	if rate, err := strconv.Atoi(os.Getenv("ERROR_SAMPLE_RATE")); err == nil && rate > 0 {
		cfg.SampleRate = rate
	}
	cfg.OTELEnabled = strings.EqualFold(os.Getenv("OTEL_ENABLED"), "true")
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		cfg.ServiceName = name
	}
	return cfg
}

func init() {
	if err := Setup(context.Background(), ConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "otel logging unavailable, using JSON: %v\n", err)
	}
}

// Setup installs the logger described by cfg as Logger and slog's default.
// When the OTLP exporter cannot be created, JSON logging is installed and
// the error is returned.
func Setup(ctx context.Context, cfg Config) error {
	programLevel.Set(cfg.Level)
	rate := cfg.SampleRate
	if rate < 1 {
		rate = 1
	}
	errorSampleRate.Store(int32(rate))

	if !cfg.OTELEnabled {
		install(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: programLevel}))
		return nil
	}

	handler, shutdown, err := otelHandler(ctx, cfg.ServiceName)
	if err != nil {
		install(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: programLevel}))
		return err
	}
	shutdownFunc = shutdown
	install(handler)
	return nil
}

// SetOutput routes JSON logs to w. Tests use it to capture output.
func SetOutput(w io.Writer) {
	install(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: programLevel}))
}

func install(h slog.Handler) {
	Logger = slog.New(h)
	slog.SetDefault(Logger)
}

func otelHandler(ctx context.Context, serviceName string) (slog.Handler, func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	handler := &levelHandler{
		level:   programLevel,
		handler: otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider)),
	}
	return handler, provider.Shutdown, nil
}

// levelHandler applies programLevel to handlers that have no level option.
type levelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithGroup(name)}
}

// Shutdown flushes the OTLP exporter, if one is installed.
func Shutdown(ctx context.Context) error {
	if shutdownFunc != nil {
		return shutdownFunc(ctx)
	}
	return nil
}

func SetLevel(level slog.Level) { programLevel.Set(level) }

func GetLevel() slog.Level { return programLevel.Level() }

// ParseLevel converts a level name to slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

func shouldSample() bool {
	rate := errorSampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn counts the warning and logs it subject to sampling.
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error counts the error and logs it subject to sampling.
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs, flushes and exits.
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	_ = Shutdown(context.Background())
	os.Exit(1)
}

// CountHTTPStatus updates the 4xx/5xx counters for a response status.
func CountHTTPStatus(status int) {
	switch {
	case status >= 500:
		Total5xxErrors.Add(1)
		TotalErrors.Add(1)
	case status >= 400:
		Total4xxErrors.Add(1)
		TotalWarnings.Add(1)
	}
}

// Counters is a point-in-time copy of the counters.
type Counters struct {
	Errors              int64 `json:"errors"`
	Warnings            int64 `json:"warnings"`
	HTTP5xx             int64 `json:"http_5xx"`
	HTTP4xx             int64 `json:"http_4xx"`
	FormulaFailures     int64 `json:"formula_failures"`
	ConditionFailures   int64 `json:"condition_failures"`
	OptionFetchFailures int64 `json:"option_fetch_failures"`
}

func Snapshot() Counters {
	return Counters{
		Errors:              TotalErrors.Load(),
		Warnings:            TotalWarnings.Load(),
		HTTP5xx:             Total5xxErrors.Load(),
		HTTP4xx:             Total4xxErrors.Load(),
		FormulaFailures:     FormulaFailures.Load(),
		ConditionFailures:   ConditionFailures.Load(),
		OptionFetchFailures: OptionFetchFailures.Load(),
	}
}
