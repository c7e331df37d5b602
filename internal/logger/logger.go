// Package logger wraps zerolog with a process-wide root logger and per-run context
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Options configures the root logger
type Options struct {
	Level   string
	Format  string // "console" or "json"
	Service string
	Writer  io.Writer
}

// FromEnv reads LOG_LEVEL and LOG_FORMAT
func FromEnv() Options {
	return Options{
		Level:   strings.ToLower(getenv("LOG_LEVEL", "info")),
		Format:  strings.ToLower(getenv("LOG_FORMAT", "console")),
		Service: "kidregistry",
	}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// Logger is the project-wide logging type
type Logger = zerolog.Logger

var (
	mu     sync.Mutex
	root   atomic.Pointer[zerolog.Logger]
	inited atomic.Bool
)

// Init builds the root logger. Later calls replace it, so the CLI can apply
// config-file settings after an early env-based default.
func Init(opt Options) {
	mu.Lock()
	defer mu.Unlock()

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if opt.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp()
	if opt.Service != "" {
		ctx = ctx.Str("service", opt.Service)
	}
	log := ctx.Logger()

	root.Store(&log)
	inited.Store(true)
}

// Get returns the root logger, initializing from the environment on first use
func Get() *Logger {
	if !inited.Load() {
		Init(FromEnv())
	}
	return root.Load()
}

// Nop installs a disabled root logger; used by tests
func Nop() {
	l := zerolog.Nop()
	mu.Lock()
	root.Store(&l)
	inited.Store(true)
	mu.Unlock()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

type ctxKey struct{ name string }

var (
	keyRunID  = ctxKey{"run_id"}
	keySource = ctxKey{"source"}
)

// WithRun annotates ctx with a sync run id
func WithRun(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, keyRunID, runID)
}

// WithSource annotates ctx with the source being processed
func WithSource(ctx context.Context, source string) context.Context {
	if source == "" {
		return ctx
	}
	return context.WithValue(ctx, keySource, source)
}

// C returns a child of l enriched with run_id and source from ctx
func C(ctx context.Context, l *Logger) *Logger {
	if l == nil {
		l = Get()
	}
	builder := l.With()
	if v, ok := ctx.Value(keyRunID).(string); ok && v != "" {
		builder = builder.Str("run_id", v)
	}
	if v, ok := ctx.Value(keySource).(string); ok && v != "" {
		builder = builder.Str("source", v)
	}
	ll := builder.Logger()
	return &ll
}

// Named returns a child of the root logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	ll := Get().With().Str("component", component).Logger()
	return &ll
}
