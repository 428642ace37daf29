package pipeline

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	defaultFlushTimeout = 10 * time.Second
)

// Options for a Runner.
type Options struct {
	// FlushTimeout bounds the final progress & status writes made after a run is
	// cancelled or times out (the run's own context is done by then).
	FlushTimeout time.Duration

	Logger *zap.SugaredLogger
	Tracer trace.Tracer
}

func (o *Options) SetDefaults() {
	if o.FlushTimeout <= 0 {
		o.FlushTimeout = defaultFlushTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("pipeline")
	}
}
