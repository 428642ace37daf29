package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/voidshard/harvester/pkg/api"
	"github.com/voidshard/harvester/pkg/database"
	"github.com/voidshard/harvester/pkg/engine"
	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/queue"
	"github.com/voidshard/harvester/pkg/scheduler"
	"github.com/voidshard/harvester/pkg/structs"
)

const (
	// how many instances of each status a single tidy pass looks at
	tidyBatchSize = 500
)

// timeNow is swapped out in tests
var timeNow = func() time.Time {
	return time.Now().UTC()
}

// Service ties the job store, queue, engine & scheduler together.
//
// Any of the queue, engine & scheduler may be nil; calls that need a missing part return
// ErrNotSupported. A scheduler process has no engine, a worker may have no scheduler.
type Service struct {
	db     database.Store
	qu     queue.Queue
	engine *engine.Engine
	sched  *scheduler.Scheduler
	opts   *api.Options
	log    *zap.SugaredLogger

	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	closing atomic.Bool
}

func NewService(db database.Store, qu queue.Queue, eng *engine.Engine, sched *scheduler.Scheduler, opts *api.Options) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("%w a job store is required", errors.ErrInvalidArg)
	}
	if opts == nil {
		opts = api.OptionsClientDefault()
	}
	opts.SetDefaults()

	me := &Service{
		db:     db,
		qu:     qu,
		engine: eng,
		sched:  sched,
		opts:   opts,
		log:    opts.Logger.Named("service"),
		stop:   make(chan struct{}),
	}

	if opts.TidyFrequency > 0 && qu != nil {
		// Tidying rechecks instances that aren't complete in case their queued task was
		// dropped or the worker running them died.
		me.wg.Add(1)
		go me.tidyForever()
	}

	return me, nil
}

// Close stops background routines, the scheduler & engine, then closes the queue & store.
//
// Jobs cancelled by closing the engine are handed back to the queue to be run again.
func (c *Service) Close(ctx context.Context) error {
	c.closing.Store(true)
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()

	if c.sched != nil {
		c.sched.Stop()
	}
	var err error
	if c.engine != nil {
		err = c.engine.Close(ctx)
	}
	if c.qu != nil {
		c.qu.Close()
	}
	c.db.Close()
	return err
}

func (c *Service) Schedule(ctx context.Context, req *api.ScheduleRequest) (*structs.JobInstance, error) {
	if c.sched == nil {
		return nil, fmt.Errorf("%w this process cannot schedule", errors.ErrNotSupported)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.sched.Trigger(ctx, req.DefinitionID, scheduler.Request{
		SchedulerCreated: false,
		OverrideFull:     req.Full,
		Reprocessing:     req.Reprocessing,
	})
}

func (c *Service) Jobs(q *api.JobQuery) ([]*engine.Info, error) {
	if c.engine == nil {
		return nil, fmt.Errorf("%w this process runs no jobs", errors.ErrNotSupported)
	}
	out := []*engine.Info{}
	for _, j := range c.engine.Jobs() {
		info := j.Info()
		if q.Matches(info) {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func (c *Service) Cancel(id string) error {
	if c.engine == nil {
		return fmt.Errorf("%w this process runs no jobs", errors.ErrNotSupported)
	}
	return c.engine.Cancel(id)
}

func (c *Service) Clear(id string) error {
	if c.engine == nil {
		return fmt.Errorf("%w this process runs no jobs", errors.ErrNotSupported)
	}
	return c.engine.Clear(id)
}

func (c *Service) Definitions(ctx context.Context, activeOnly bool) ([]*structs.JobDefinition, error) {
	return c.db.Definitions(ctx, activeOnly)
}

func (c *Service) Instances(ctx context.Context, q *structs.Query) ([]*structs.JobInstance, error) {
	if q == nil {
		q = &structs.Query{}
	}
	q.Sanitize()
	return c.db.Instances(ctx, q)
}
