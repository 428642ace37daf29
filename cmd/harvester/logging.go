package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/voidshard/harvester/internal/utils"
	"github.com/voidshard/harvester/pkg/database"
	"github.com/voidshard/harvester/pkg/policy"
	"github.com/voidshard/harvester/pkg/queue"
)

// newLogger returns a production logger, or a development one with debug enabled.
func newLogger(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar().Named("harvester"), nil
}

func (o *optsDatabase) options() *database.Options {
	return &database.Options{URL: o.DatabaseURL}
}

func (o *optsQueue) options(log *zap.SugaredLogger, concurrency int) (*queue.Options, error) {
	tlsCfg, err := utils.TLSConfig(o.TLSFiles)
	if err != nil {
		return nil, err
	}
	return &queue.Options{
		URL:         o.QueueURL,
		Password:    o.QueuePassword,
		TLSConfig:   tlsCfg,
		Concurrency: concurrency,
		Logger:      log,
	}, nil
}

func (o *optsPolicy) options(log *zap.SugaredLogger) (*policy.Options, error) {
	opts := &policy.Options{FrequencyOverrides: o.FrequencyOverrides, Logger: log}
	if o.SnapshottingIntroducedAt != "" {
		at, err := time.Parse(time.RFC3339, o.SnapshottingIntroducedAt)
		if err != nil {
			return nil, err
		}
		opts.SnapshottingIntroducedAt = at
	}
	return opts, nil
}
