package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voidshard/harvester/internal/core"
	"github.com/voidshard/harvester/pkg/api"
	"github.com/voidshard/harvester/pkg/database"
	"github.com/voidshard/harvester/pkg/policy"
	"github.com/voidshard/harvester/pkg/queue"
	"github.com/voidshard/harvester/pkg/scheduler"
)

const (
	docScheduler = `Run the scheduling loop: creates & enqueues instances of active definitions`
)

type optsScheduler struct {
	optsGeneral
	optsDatabase
	optsQueue
	optsPolicy

	Spec        string `long:"spec" env:"SCHEDULE_SPEC" description:"Cron spec on which definitions are considered" default:"@every 1m"`
	Concurrency int    `long:"concurrency" env:"SCHEDULE_CONCURRENCY" description:"Definitions scheduled at once" default:"8"`

	TidyFrequency time.Duration `long:"tidy-frequency" env:"TIDY_FREQUENCY" description:"How often stuck instances are requeued, 0 to disable" default:"5m"`
}

func (c *optsScheduler) Execute(args []string) error {
	log, err := newLogger(c.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	pOpts, err := c.optsPolicy.options(log)
	if err != nil {
		return err
	}

	store, err := database.New(c.optsDatabase.options())
	if err != nil {
		return err
	}

	qOpts, err := c.optsQueue.options(log, 0)
	if err != nil {
		return err
	}
	qu, err := queue.NewAsynqQueue(qOpts)
	if err != nil {
		return err
	}

	sched := scheduler.New(store, policy.New(store, store, pOpts), qu, &scheduler.Options{
		Spec:        c.Spec,
		Concurrency: c.Concurrency,
		Logger:      log,
	})

	opts := api.OptionsServerDefault()
	opts.TidyFrequency = c.TidyFrequency
	opts.Logger = log
	svc, err := core.NewService(store, qu, nil, sched, opts)
	if err != nil {
		return err
	}

	if err := sched.Start(); err != nil {
		return err
	}

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return svc.Close(ctx)
}
