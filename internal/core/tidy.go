package core

import (
	"context"
	"fmt"
	"time"

	"github.com/voidshard/harvester/pkg/database"
	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

// TidyResult summarises one tidy pass.
type TidyResult struct {
	// Requeued instances were SCHEDULED or PENDING for too long & were enqueued again.
	Requeued int64

	// Abandoned instances were RUNNING well past their timeout & were failed.
	Abandoned int64
}

func (c *Service) tidyForever() {
	defer c.wg.Done()

	tick := time.NewTicker(c.opts.TidyFrequency)
	defer tick.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-tick.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.TidyFrequency)
			res, err := c.Tidy(ctx)
			cancel()
			if err != nil {
				c.log.Errorw("tidy failed", "err", err)
			} else if res.Requeued > 0 || res.Abandoned > 0 {
				c.log.Infow("tidied instances", "requeued", res.Requeued, "abandoned", res.Abandoned)
			}
		}
	}
}

// Tidy makes one pass over instances that aren't complete.
//
// Instances waiting to run for longer than TidyThreshold are enqueued again (enqueueing
// an instance that is still queued is a no-op). Instances RUNNING for longer than their
// timeout plus TidyGrace have lost their worker; they are failed & enqueued again if they
// have attempts left.
func (c *Service) Tidy(ctx context.Context) (*TidyResult, error) {
	if c.qu == nil {
		return nil, fmt.Errorf("%w no queue to tidy with", errors.ErrNotSupported)
	}
	now := timeNow()
	res := &TidyResult{}

	waiting, err := c.db.Instances(ctx, &structs.Query{
		Statuses: []structs.Status{structs.SCHEDULED, structs.PENDING},
		Limit:    tidyBatchSize,
	})
	if err != nil {
		return nil, err
	}
	for _, in := range waiting {
		if now.Sub(in.StatusChangedAt) < c.opts.TidyThreshold {
			continue
		}
		if err := c.qu.Enqueue(ctx, in); err != nil {
			c.log.Warnw("failed to requeue instance", "instance", in.Key(), "err", err)
			continue
		}
		res.Requeued++
	}

	running, err := c.db.Instances(ctx, &structs.Query{
		Statuses: []structs.Status{structs.RUNNING},
		Limit:    tidyBatchSize,
	})
	if err != nil {
		return res, err
	}
	for _, in := range running {
		if !c.abandoned(in, now) {
			continue
		}
		failed, err := database.SetInstanceState(ctx, c.db, in, structs.FAILURE, "abandoned: running past timeout with no worker")
		if err != nil {
			c.log.Warnw("failed to fail abandoned instance", "instance", in.Key(), "err", err)
			continue
		}
		res.Abandoned++

		if failed.AttemptCount >= failed.AttemptMax {
			continue
		}
		if err := c.qu.Enqueue(ctx, failed); err != nil {
			c.log.Warnw("failed to requeue abandoned instance", "instance", in.Key(), "err", err)
			continue
		}
		res.Requeued++
	}

	return res, nil
}

// abandoned returns true if a RUNNING instance is well past its timeout & isn't being
// run by this process. Instances without a timeout are never considered abandoned.
func (c *Service) abandoned(in *structs.JobInstance, now time.Time) bool {
	if in.Timeout() <= 0 {
		return false
	}
	if c.engine != nil {
		if job, ok := c.engine.Job(in.Key()); ok && !job.Status().IsDone() {
			return false
		}
	}
	return now.Sub(in.StatusChangedAt) > in.Timeout()+c.opts.TidyGrace
}
