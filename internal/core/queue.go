package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/voidshard/harvester/pkg/engine"
	herrors "github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/pipeline"
	"github.com/voidshard/harvester/pkg/queue"
	"github.com/voidshard/harvester/pkg/structs"
)

// Dispatch is the queue handler on workers. It runs the dequeued instance on the engine &
// waits for it to finish.
//
// If the engine is full ErrEngineBusy is returned so the queue hands the instance out
// again later. A failed run returns its error (so it is retried) unless it has no
// attempts left.
func (c *Service) Dispatch(ctx context.Context, m *queue.Meta) error {
	if c.engine == nil {
		return fmt.Errorf("%w this process runs no jobs", herrors.ErrNotSupported)
	}

	in, err := c.db.Instance(ctx, m.DefinitionID, m.InstanceID)
	if errors.Is(err, herrors.ErrNotFound) {
		m.SetSkip()
		return err
	} else if err != nil {
		return err
	}
	if !runnable(in) {
		c.log.Debugw("dropping instance that cannot run", "instance", in.Key(), "status", in.Status)
		return nil
	}

	def, err := c.db.Definition(ctx, in.DefinitionID)
	if errors.Is(err, herrors.ErrNotFound) {
		m.SetSkip()
		return err
	} else if err != nil {
		return err
	}

	jc := pipeline.NewJobContext(def, in)
	jc.CallbackURL = c.opts.CallbackURL

	if job, ok := c.engine.Job(jc.ID()); ok {
		if !job.Status().IsDone() {
			// a duplicate delivery of something we're already running
			c.log.Debugw("instance already running", "instance", in.Key())
			return nil
		}
		// a retry of a run this worker already finished
		_ = c.engine.Clear(jc.ID())
	}

	job, ok := c.engine.Submit(jc)
	if !ok {
		return fmt.Errorf("%w cannot run %s", herrors.ErrEngineBusy, jc.ID())
	}

	if err := job.Wait(ctx); err != nil {
		// we're shutting down; the engine cancels the job & the queue redelivers it
		return err
	}

	switch job.Status() {
	case engine.SUCCESS:
		return nil
	case engine.CANCELLED:
		if c.closing.Load() {
			return job.Err()
		}
		c.log.Infow("instance cancelled, not retrying", "instance", in.Key())
		return nil
	default:
		err := job.Err()
		if errors.Is(err, herrors.ErrMaxAttempts) || errors.Is(err, herrors.ErrInvalidState) || errors.Is(err, herrors.ErrNoPipeline) {
			m.SetSkip()
		}
		return err
	}
}

// runnable returns true if a runner would pick the instance up.
func runnable(in *structs.JobInstance) bool {
	switch in.Status {
	case structs.SCHEDULED, structs.PENDING:
		return true
	case structs.FAILURE:
		return in.AttemptCount < in.AttemptMax
	default:
		return false
	}
}
