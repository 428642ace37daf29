package queue

import (
	"crypto/tls"
	"time"

	"go.uber.org/zap"
)

const (
	defaultConcurrency = 4
	defaultMaxRetry    = 25
	defaultBusyDelay   = 15 * time.Second
	defaultShutdown    = 30 * time.Second
)

// Options are options for the queue.
type Options struct {
	// URL encodes how we'll connect to the queue (redis host:port).
	URL string

	// Password for the redis server (optional).
	Password string

	// TLSConfig needed to connect to the queue (optional).
	TLSConfig *tls.Config

	// Concurrency is how many tasks a worker handles at once. Usually the number of
	// engine workers.
	Concurrency int

	// MaxRetry is how many times a task is redelivered before it is archived.
	MaxRetry int

	// BusyDelay is how long to wait before redelivering a task the worker had no room for.
	BusyDelay time.Duration

	// ShutdownTimeout is how long Close waits for in flight handlers.
	ShutdownTimeout time.Duration

	Logger *zap.SugaredLogger
}

func (o *Options) SetDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.MaxRetry <= 0 {
		o.MaxRetry = defaultMaxRetry
	}
	if o.BusyDelay <= 0 {
		o.BusyDelay = defaultBusyDelay
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = defaultShutdown
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
}
