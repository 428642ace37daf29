package engine

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const (
	defaultWorkers         = 4
	defaultMonitorInterval = 30 * time.Second
	defaultMaxTrackedJobs  = 1000
	defaultCallbackTimeout = 10 * time.Second
)

// Options for an Engine.
type Options struct {
	// Workers is the number of jobs that may run at once.
	Workers int

	// MonitorInterval is how often tracked jobs are audited.
	MonitorInterval time.Duration

	// MaxTrackedJobs is the size above which done jobs are purged on the next Submit.
	MaxTrackedJobs int

	// CallbackTimeout bounds each callback POST.
	CallbackTimeout time.Duration

	// HTTPClient sends callbacks. Defaults to a client with CallbackTimeout.
	HTTPClient *http.Client

	Logger        *zap.SugaredLogger
	MeterProvider metric.MeterProvider
}

func (o *Options) SetDefaults() {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.MonitorInterval <= 0 {
		o.MonitorInterval = defaultMonitorInterval
	}
	if o.MaxTrackedJobs <= 0 {
		o.MaxTrackedJobs = defaultMaxTrackedJobs
	}
	if o.CallbackTimeout <= 0 {
		o.CallbackTimeout = defaultCallbackTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.CallbackTimeout}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = noop.NewMeterProvider()
	}
}
