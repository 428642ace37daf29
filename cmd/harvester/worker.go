package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voidshard/harvester/internal/core"
	"github.com/voidshard/harvester/pkg/api"
	"github.com/voidshard/harvester/pkg/api/http/server"
	"github.com/voidshard/harvester/pkg/database"
	"github.com/voidshard/harvester/pkg/engine"
	"github.com/voidshard/harvester/pkg/pipeline"
	"github.com/voidshard/harvester/pkg/policy"
	"github.com/voidshard/harvester/pkg/queue"
	"github.com/voidshard/harvester/pkg/scheduler"
)

const (
	docWorker = `Run a worker: pulls job instances off the queue, runs them & serves the operator API`

	shutdownTimeout = 30 * time.Second
)

type optsWorker struct {
	optsGeneral
	optsDatabase
	optsQueue
	optsPolicy

	Addr string `long:"addr" env:"ADDR" description:"Address the operator API binds to" default:"localhost:8100"`

	Workers         int           `long:"workers" env:"WORKERS" description:"Number of jobs run at once" default:"4"`
	MonitorInterval time.Duration `long:"monitor-interval" env:"MONITOR_INTERVAL" description:"How often running jobs are audited" default:"30s"`
	CallbackURL     string        `long:"callback-url" env:"CALLBACK_URL" description:"URL POSTed the final state of every job"`

	AuditDataTypes []string `long:"audit-data-type" env:"AUDIT_DATA_TYPES" env-delim:"," description:"Data types processed by the built in audit pipeline"`
}

func (c *optsWorker) Execute(args []string) error {
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

	reg := pipeline.NewRegistry()
	if err := registerPipelines(reg, c.AuditDataTypes, log); err != nil {
		return err
	}
	log.Infow("pipelines registered", "pipelines", reg.Pipelines())

	runner := pipeline.NewRunner(store, store, reg, &pipeline.Options{Logger: log})
	eng, err := engine.New(runner, &engine.Options{
		Workers:         c.Workers,
		MonitorInterval: c.MonitorInterval,
		Logger:          log,
	})
	if err != nil {
		return err
	}

	qOpts, err := c.optsQueue.options(log, c.Workers)
	if err != nil {
		return err
	}
	qu, err := queue.NewAsynqQueue(qOpts)
	if err != nil {
		return err
	}

	// workers can schedule on request (via the API) but never run the cron loop
	sched := scheduler.New(store, policy.New(store, store, pOpts), qu, &scheduler.Options{Logger: log})

	opts := api.OptionsClientDefault()
	opts.CallbackURL = c.CallbackURL
	opts.Logger = log
	svc, err := core.NewService(store, qu, eng, sched, opts)
	if err != nil {
		return err
	}

	if err := qu.Register(svc.Dispatch); err != nil {
		return err
	}

	errs := make(chan error, 2)
	go func() {
		errs <- qu.Run()
	}()

	srv := server.NewServer(c.Addr, c.Debug, log)
	go func() {
		errs <- srv.ServeForever(svc)
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-exit:
		log.Info("shutting down")
	case err = <-errs:
		log.Errorw("worker stopped", "err", err)
	}

	srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if cerr := svc.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
