package api

import (
	"time"

	"go.uber.org/zap"
)

const (
	defTidyFrequency = 5 * time.Minute
	defTidyThreshold = 10 * time.Minute
	defTidyGrace     = 5 * time.Minute
)

// Options passed to the harvester service on creation
type Options struct {
	// CallbackURL, if set, is POSTed the terminal state of every job this worker runs.
	CallbackURL string

	// TidyFrequency is how often we look over active instances to check they're in the
	// right states (we do this in case a queued task was dropped or a worker died).
	// Zero disables tidying.
	TidyFrequency time.Duration

	// TidyThreshold sets how far back in time the last status change of a SCHEDULED or
	// PENDING instance must be before we'll enqueue it again.
	TidyThreshold time.Duration

	// TidyGrace is how long past its timeout a RUNNING instance is left alone before it is
	// considered abandoned & failed.
	TidyGrace time.Duration

	Logger *zap.SugaredLogger
}

func (o *Options) SetDefaults() {
	if o.TidyThreshold <= 0 {
		o.TidyThreshold = defTidyThreshold
	}
	if o.TidyGrace <= 0 {
		o.TidyGrace = defTidyGrace
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
}

// OptionsClientDefault runs a harvester service that runs no background routines.
// This is intended for processes that only serve the API or run workers.
func OptionsClientDefault() *Options {
	return &Options{}
}

// OptionsServerDefault runs a harvester service that periodically tidies instances
// whose queued task was lost.
func OptionsServerDefault() *Options {
	return &Options{
		TidyFrequency: defTidyFrequency,
		TidyThreshold: defTidyThreshold,
		TidyGrace:     defTidyGrace,
	}
}
