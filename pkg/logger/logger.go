// Package logger is the zap-backed structured logger shared by every binary.
// Loggers travel on the context; FromContext decorates them with the request
// and actor fields set by the HTTP middleware.
package logger

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "stockledger/internal/core/context"
)

type Logger struct {
	*zap.SugaredLogger
}

type ctxKey struct{}

// Config selects level, encoding and sinks.
type Config struct {
	Level       string // debug, info, warn, error; anything else means info
	Development bool   // console encoder with colours
	OutputPaths []string
	Service     string
}

// New builds a Logger. Production output is JSON with ISO8601 "ts" fields.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	opts := []zap.Option{zap.AddCallerSkip(1)}
	if cfg.Service != "" {
		opts = append(opts, zap.Fields(zap.String("service", cfg.Service)))
	}
	z, err := zc.Build(opts...)
	if err != nil {
		return nil, err
	}
	return &Logger{z.Sugar()}, nil
}

var (
	fallbackOnce sync.Once
	fallback     *Logger
)

// Default is the process-wide JSON logger used when nothing was injected.
func Default() *Logger {
	fallbackOnce.Do(func() {
		l, err := New(Config{Level: "info", OutputPaths: []string{"stdout"}})
		if err != nil {
			l = NewNop()
		}
		fallback = l
	})
	return fallback
}

// NewNop discards everything.
func NewNop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

// WithContext appends trace_id, span_id, request_id, actor and role when ctx
// carries them.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := make([]any, 0, 10)
	if id := appctx.GetTraceID(ctx); id != "" {
		fields = append(fields, "trace_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasSpanID() {
		fields = append(fields, "span_id", sc.SpanID().String())
	}
	if id := appctx.GetRequestID(ctx); id != "" {
		fields = append(fields, "request_id", id)
	}
	if actor := appctx.GetActor(ctx); actor != nil {
		fields = append(fields, "actor", actor.Subject)
		if actor.Role != "" {
			fields = append(fields, "role", actor.Role)
		}
	}
	if len(fields) == 0 {
		return l
	}
	return &Logger{l.SugaredLogger.With(fields...)}
}

func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{l.SugaredLogger.With(keysAndValues...)}
}

// WithComponent tags entries with the emitting subsystem (engine, relay, ...).
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

// WithLogger stores l on ctx.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the injected logger (or Default) decorated with the
// request fields of ctx.
func FromContext(ctx context.Context) *Logger {
	l, ok := ctx.Value(ctxKey{}).(*Logger)
	if !ok {
		l = Default()
	}
	return l.WithContext(ctx)
}

func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Debugw(msg, keysAndValues...)
}

func Info(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Infow(msg, keysAndValues...)
}

func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Warnw(msg, keysAndValues...)
}

func Error(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
}

// Fatal logs and terminates the process.
func Fatal(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Fatalw(msg, keysAndValues...)
}
