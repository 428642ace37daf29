package engine

import (
	"time"

	"github.com/voidshard/harvester/pkg/errors"
)

const (
	correctionForceCancel = "done_but_running"
	correctionWorkerGone  = "worker_exited"
)

// AuditResult counts tracked jobs by what the monitor found them doing.
type AuditResult struct {
	Running        int
	Done           int
	ForceCancelled int
	Failed         int
}

func (e *Engine) monitor() {
	defer close(e.done)

	ticker := time.NewTicker(e.opts.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.Audit()
		}
	}
}

// Audit checks every tracked job, fixing those whose status disagrees with their worker.
//
// A done job whose worker is still going has its context cancelled. A job that isn't done
// but whose worker has exited is failed with errors.ErrWorkerTerminated.
func (e *Engine) Audit() AuditResult {
	res := AuditResult{}
	for _, job := range e.Jobs() {
		done := job.Status().IsDone()
		alive := job.workerAlive()

		switch {
		case done && alive:
			if job.ctx.Err() != nil {
				// already told to stop, give it time to notice
				res.Done++
				continue
			}
			job.cancel()
			res.ForceCancelled++
			e.metrics.incCorrection(e.ctx, correctionForceCancel)
			e.log.Warnw("job done but worker still running, cancelling", "job", job.ID(), "status", job.Status().String())
		case !done && !alive:
			if job.end(FAILURE, errors.ErrWorkerTerminated) {
				res.Failed++
				e.metrics.incCorrection(e.ctx, correctionWorkerGone)
				e.log.Warnw("job worker exited without finishing, failing", "job", job.ID())
				e.onDone(job)
			}
		case done:
			res.Done++
		default:
			res.Running++
		}
	}
	return res
}
