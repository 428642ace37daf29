package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voidshard/harvester/pkg/pipeline"
	"github.com/voidshard/harvester/pkg/structs"
)

// Job is a JobContext being run by the engine.
//
// The status only moves forward, by compare-and-set, so exactly one of completion,
// cancellation & the monitor decides how a job ends.
type Job struct {
	jc *pipeline.JobContext

	status atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc

	// exited is closed when the job's worker goroutine returns, however it returns.
	exited chan struct{}

	lock        sync.Mutex
	err         error
	submittedAt time.Time
	startedAt   time.Time
	doneAt      time.Time

	notified atomic.Bool
}

func newJob(parent context.Context, jc *pipeline.JobContext) *Job {
	ctx, cancel := context.WithCancel(parent)
	return &Job{
		jc:          jc,
		ctx:         ctx,
		cancel:      cancel,
		exited:      make(chan struct{}),
		submittedAt: time.Now().UTC(),
	}
}

// ID is the id of the job; that of its JobContext.
func (j *Job) ID() string {
	return j.jc.ID()
}

// Context returns the JobContext the job runs.
func (j *Job) Context() *pipeline.JobContext {
	return j.jc
}

func (j *Job) Status() Status {
	return Status(j.status.Load())
}

// Err returns why the job failed or was cancelled, nil otherwise.
func (j *Job) Err() error {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.err
}

// Wait blocks until the job's worker has exited or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// workerAlive returns true until the worker goroutine has returned.
func (j *Job) workerAlive() bool {
	select {
	case <-j.exited:
		return false
	default:
		return true
	}
}

// start moves SUBMITTED -> RUNNING.
func (j *Job) start() bool {
	if !j.status.CompareAndSwap(int32(SUBMITTED), int32(RUNNING)) {
		return false
	}
	j.lock.Lock()
	j.startedAt = time.Now().UTC()
	j.lock.Unlock()
	return true
}

// end moves the job from any non done status to the given done status. Only the first
// caller succeeds.
func (j *Job) end(to Status, err error) bool {
	for {
		cur := j.Status()
		if cur.IsDone() {
			return false
		}
		if j.status.CompareAndSwap(int32(cur), int32(to)) {
			j.lock.Lock()
			j.err = err
			j.doneAt = time.Now().UTC()
			j.lock.Unlock()
			return true
		}
	}
}

// finish records the outcome of the pipeline run.
func (j *Job) finish(err error) bool {
	if err != nil {
		return j.end(FAILURE, err)
	}
	return j.end(SUCCESS, nil)
}

// Info is a point in time view of a job.
type Info struct {
	ID           string                             `json:"id"`
	DefinitionID string                             `json:"definition_id"`
	InstanceID   int64                              `json:"instance_id"`
	Pipeline     string                             `json:"pipeline"`
	Status       Status                             `json:"status"`
	Error        string                             `json:"error,omitempty"`
	SubmittedAt  time.Time                          `json:"submitted_at"`
	StartedAt    *time.Time                         `json:"started_at,omitempty"`
	DoneAt       *time.Time                         `json:"done_at,omitempty"`
	Progress     map[string]int64                   `json:"progress"`
	Details      map[string]*structs.ProgressDetail `json:"progress_details"`
}

// Info returns a snapshot of the job, including the progress of the run so far.
func (j *Job) Info() *Info {
	j.lock.Lock()
	defer j.lock.Unlock()

	out := &Info{
		ID:           j.ID(),
		DefinitionID: j.jc.DefinitionID,
		InstanceID:   j.jc.InstanceID,
		Pipeline:     j.jc.Pipeline,
		Status:       j.Status(),
		SubmittedAt:  j.submittedAt,
	}
	if j.err != nil {
		out.Error = j.err.Error()
	}
	if !j.startedAt.IsZero() {
		at := j.startedAt
		out.StartedAt = &at
	}
	if !j.doneAt.IsZero() {
		at := j.doneAt
		out.DoneAt = &at
	}
	if j.jc.Progress != nil {
		out.Progress, out.Details = j.jc.Progress.Snapshot()
	}
	return out
}

// duration returns how long the job ran, zero if it never started or isn't done.
func (j *Job) duration() time.Duration {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.startedAt.IsZero() || j.doneAt.IsZero() {
		return 0
	}
	return j.doneAt.Sub(j.startedAt)
}
