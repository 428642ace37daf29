package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	herrors "github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

const (
	asynqTaskType = "harvester:instance"

	asynqQueueHigh    = "harvester:high"
	asynqQueueDefault = "harvester:default"
	asynqQueueLow     = "harvester:low"

	// instances at or above this priority go to the high queue
	asynqHighPriority = 10
)

// asynqQueues maps queue names to their relative weight when workers pick tasks.
var asynqQueues = map[string]int{
	asynqQueueHigh:    6,
	asynqQueueDefault: 3,
	asynqQueueLow:     1,
}

type Asynq struct {
	opts *Options
	log  *zap.SugaredLogger

	cli *asynq.Client

	// if register is called we're intended to start a server
	lock sync.Mutex
	mux  *asynq.ServeMux
	srv  *asynq.Server
	done chan struct{}
}

func NewAsynqQueue(opts *Options) (*Asynq, error) {
	if opts == nil || opts.URL == "" {
		return nil, fmt.Errorf("%w queue url is required", herrors.ErrInvalidArg)
	}
	opts.SetDefaults()
	return &Asynq{
		opts: opts,
		log:  opts.Logger.Named("queue"),
		cli:  asynq.NewClient(redisOpts(opts)),
		done: make(chan struct{}),
	}, nil
}

func redisOpts(opts *Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      opts.URL,
		Password:  opts.Password,
		TLSConfig: opts.TLSConfig,
	}
}

func (a *Asynq) Close() error {
	a.lock.Lock()
	defer a.lock.Unlock()

	select {
	case <-a.done:
		return nil
	default:
		close(a.done)
	}

	if a.srv != nil {
		a.srv.Shutdown()
	}
	return a.cli.Close()
}

func (a *Asynq) Register(handler Handler) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.mux == nil {
		a.buildServer()
	}
	a.mux.HandleFunc(asynqTaskType, func(ctx context.Context, t *asynq.Task) error {
		return handle(ctx, handler, t)
	})
	return nil
}

func (a *Asynq) Run() error {
	a.lock.Lock()
	if a.srv == nil {
		a.lock.Unlock()
		return fmt.Errorf("%w no handler registered", herrors.ErrInvalidState)
	}
	err := a.srv.Start(a.mux)
	a.lock.Unlock()
	if err != nil {
		return err
	}

	a.log.Infow("queue running", "url", a.opts.URL, "concurrency", a.opts.Concurrency)
	<-a.done
	return nil
}

func (a *Asynq) Enqueue(ctx context.Context, in *structs.JobInstance) error {
	if in == nil {
		return fmt.Errorf("%w instance is required", herrors.ErrInvalidArg)
	}
	payload, err := newMeta(in).encode()
	if err != nil {
		return err
	}

	_, err = a.cli.EnqueueContext(
		ctx,
		asynq.NewTask(asynqTaskType, payload),
		asynq.Queue(queueFor(in.Priority)),
		asynq.TaskID(in.Key()),
		asynq.MaxRetry(a.opts.MaxRetry),
		asynq.Retention(in.Timeout()+time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// already queued (or retained after finishing)
		a.log.Debugw("instance already queued", "instance", in.Key())
		return nil
	}
	return err
}

func (a *Asynq) buildServer() {
	a.srv = asynq.NewServer(
		redisOpts(a.opts),
		asynq.Config{
			Concurrency:     a.opts.Concurrency,
			Queues:          asynqQueues,
			Logger:          a.log,
			ShutdownTimeout: a.opts.ShutdownTimeout,
			IsFailure:       isFailure,
			RetryDelayFunc:  retryDelay(a.opts.BusyDelay),
		},
	)
	a.mux = asynq.NewServeMux()
}

// handle decodes the task, calls the handler & translates the result for asynq.
func handle(ctx context.Context, handler Handler, t *asynq.Task) error {
	meta, err := decodeMeta(t.Payload())
	if err != nil {
		// nothing we can ever do with this
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if n, ok := asynq.GetRetryCount(ctx); ok {
		meta.Retried = n
	}

	err = handler(ctx, meta)
	if err == nil {
		return nil
	}
	if meta.skip {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// isFailure reports if an error should count against a task's retries.
// A busy worker is not the task's fault.
func isFailure(err error) bool {
	return !errors.Is(err, herrors.ErrEngineBusy)
}

// retryDelay waits a fixed delay when workers are busy, otherwise uses asynq's backoff.
func retryDelay(busy time.Duration) asynq.RetryDelayFunc {
	return func(n int, err error, t *asynq.Task) time.Duration {
		if errors.Is(err, herrors.ErrEngineBusy) {
			return busy
		}
		return asynq.DefaultRetryDelayFunc(n, err, t)
	}
}

// queueFor picks the queue for an instance priority.
func queueFor(priority int64) string {
	switch {
	case priority >= asynqHighPriority:
		return asynqQueueHigh
	case priority > 0:
		return asynqQueueDefault
	default:
		return asynqQueueLow
	}
}
