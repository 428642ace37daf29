package scheduler

import (
	"time"

	"go.uber.org/zap"
)

const (
	defaultSpec        = "@every 1m"
	defaultConcurrency = 8
	defaultTickTimeout = 5 * time.Minute
)

// Options for a Scheduler.
type Options struct {
	// Spec is the cron expression (robfig/cron syntax, including "@every 5m") on which
	// active definitions are considered for scheduling.
	Spec string

	// Concurrency is how many definitions are scheduled at once during a tick.
	Concurrency int

	// TickTimeout bounds a single pass over all definitions.
	TickTimeout time.Duration

	Logger *zap.SugaredLogger
}

func (o *Options) SetDefaults() {
	if o.Spec == "" {
		o.Spec = defaultSpec
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.TickTimeout <= 0 {
		o.TickTimeout = defaultTickTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
}
