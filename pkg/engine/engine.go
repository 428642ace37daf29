// Package engine runs pipeline jobs on a fixed number of workers, tracking each job from
// submission until it is cleared.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/pipeline"
)

// Runner runs a single job to completion. pipeline.Runner is the production implementation.
type Runner interface {
	Run(ctx context.Context, jc *pipeline.JobContext) error
}

// Abandoner is implemented by runners that need to record jobs cancelled before they
// were run.
type Abandoner interface {
	Abandon(ctx context.Context, jc *pipeline.JobContext, cause error)
}

// Engine is a bounded worker pool for pipeline jobs.
type Engine struct {
	opts    *Options
	runner  Runner
	log     *zap.SugaredLogger
	metrics *engineMetrics

	// admit serialises the checks & bookkeeping in Submit
	admit sync.Mutex
	jobs  sync.Map
	slots chan struct{}

	closed atomic.Bool
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New starts an engine (& its monitor) that runs jobs with the given runner.
func New(runner Runner, opts *Options) (*Engine, error) {
	if opts == nil {
		opts = &Options{}
	}
	opts.SetDefaults()

	m, err := newEngineMetrics(opts.MeterProvider)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		opts:    opts,
		runner:  runner,
		log:     opts.Logger.Named("engine"),
		metrics: m,
		slots:   make(chan struct{}, opts.Workers),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go e.monitor()
	return e, nil
}

// Submit starts running jc if the engine can take it.
//
// It returns false (and does nothing) if every worker is busy, if a job with the same id is
// already tracked or if the engine is closed.
func (e *Engine) Submit(jc *pipeline.JobContext) (*Job, bool) {
	e.admit.Lock()
	defer e.admit.Unlock()

	if e.closed.Load() {
		e.metrics.incRejected(e.ctx, "closed")
		return nil, false
	}

	if e.tracked() > e.opts.MaxTrackedJobs {
		e.purge()
	}

	if _, ok := e.jobs.Load(jc.ID()); ok {
		e.metrics.incRejected(e.ctx, "duplicate")
		return nil, false
	}

	if e.live() >= e.opts.Workers {
		e.metrics.incRejected(e.ctx, "busy")
		return nil, false
	}

	select {
	case e.slots <- struct{}{}:
	default:
		e.metrics.incRejected(e.ctx, "busy")
		return nil, false
	}

	job := newJob(e.ctx, jc)
	e.jobs.Store(job.ID(), job)
	e.metrics.submitted.Add(e.ctx, 1)

	e.wg.Add(1)
	go e.work(job)

	e.log.Debugw("job submitted", "job", job.ID())
	return job, true
}

// work runs on the job's own goroutine.
func (e *Engine) work(job *Job) {
	defer e.wg.Done()
	// the slot is free by the time waiters see the worker exit
	defer close(job.exited)
	defer func() { <-e.slots }()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e.log.Errorw("job panicked", "job", job.ID(), "panic", r)
		if job.finish(fmt.Errorf("%w panic: %v", errors.ErrWorkerTerminated, r)) {
			e.onDone(job)
		}
	}()

	if !job.start() {
		// cancelled before we got going
		if a, ok := e.runner.(Abandoner); ok {
			cause := job.Err()
			if cause == nil {
				// end() sets the error just after its CAS
				cause = errors.ErrCancelled
			}
			a.Abandon(job.ctx, job.jc, cause)
		}
		return
	}
	e.metrics.running.Add(e.ctx, 1)
	defer e.metrics.running.Add(e.ctx, -1)

	err := e.runner.Run(job.ctx, job.jc)
	if job.finish(err) {
		e.onDone(job)
	}
}

// onDone is called exactly once per job, by whoever moved it to a done status.
func (e *Engine) onDone(job *Job) {
	st := job.Status()
	e.metrics.incFinished(e.ctx, st)
	if d := job.duration(); d > 0 {
		e.metrics.duration.Record(e.ctx, d.Seconds())
	}

	if err := job.Err(); err != nil {
		e.log.Infow("job done", "job", job.ID(), "status", st.String(), "err", err)
	} else {
		e.log.Infow("job done", "job", job.ID(), "status", st.String())
	}

	if job.jc.CallbackURL != "" && job.notified.CompareAndSwap(false, true) {
		go e.callback(job)
	}
}

// Cancel stops the job with the given id. Cancelling a done job is a no-op.
func (e *Engine) Cancel(id string) error {
	job, ok := e.Job(id)
	if !ok {
		return fmt.Errorf("%w job %s", errors.ErrNotFound, id)
	}
	if job.end(CANCELLED, errors.ErrCancelled) {
		job.cancel()
		e.onDone(job)
	}
	return nil
}

// Job returns the tracked job with the given id.
func (e *Engine) Job(id string) (*Job, bool) {
	v, ok := e.jobs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Job), true
}

// Jobs returns all tracked jobs.
func (e *Engine) Jobs() []*Job {
	out := []*Job{}
	e.jobs.Range(func(_, v any) bool {
		out = append(out, v.(*Job))
		return true
	})
	return out
}

// Clear stops tracking a done job.
func (e *Engine) Clear(id string) error {
	job, ok := e.Job(id)
	if !ok {
		return fmt.Errorf("%w job %s", errors.ErrNotFound, id)
	}
	if !job.Status().IsDone() {
		return fmt.Errorf("%w job %s is %s", errors.ErrInvalidState, id, job.Status())
	}
	e.jobs.Delete(id)
	return nil
}

// Close stops accepting jobs, cancels running ones & waits for workers to exit (or ctx to
// expire).
func (e *Engine) Close(ctx context.Context) error {
	// no Submit may be between its closed check & wg.Add while we wait
	e.admit.Lock()
	swapped := e.closed.CompareAndSwap(false, true)
	e.admit.Unlock()
	if !swapped {
		return nil
	}
	for _, job := range e.Jobs() {
		_ = e.Cancel(job.ID())
	}

	waited := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(waited)
	}()

	defer func() {
		e.cancel()
		<-e.done
	}()

	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tracked is the number of jobs in the map.
func (e *Engine) tracked() int {
	n := 0
	e.jobs.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// live is the number of tracked jobs that are not done.
func (e *Engine) live() int {
	n := 0
	e.jobs.Range(func(_, v any) bool {
		if !v.(*Job).Status().IsDone() {
			n++
		}
		return true
	})
	return n
}

// purge evicts every done job.
func (e *Engine) purge() {
	n := int64(0)
	e.jobs.Range(func(k, v any) bool {
		if v.(*Job).Status().IsDone() {
			e.jobs.Delete(k)
			n++
		}
		return true
	})
	if n > 0 {
		e.metrics.purged.Add(e.ctx, n)
		e.log.Infow("purged done jobs", "count", n)
	}
}
