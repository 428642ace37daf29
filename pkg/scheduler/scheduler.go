// Package scheduler turns job definitions into scheduled job instances.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voidshard/harvester/internal/utils"
	"github.com/voidshard/harvester/pkg/database"
	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/policy"
	"github.com/voidshard/harvester/pkg/structs"
)

// timeNow is swapped out in tests
var timeNow = func() time.Time {
	return time.Now().UTC()
}

// Decider decides whether a run should be full. policy.Policy is the production implementation.
type Decider interface {
	Decide(ctx context.Context, def *structs.JobDefinition, now time.Time) (*policy.Decision, error)
}

// Enqueuer hands scheduled instances to workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, in *structs.JobInstance) error
}

// Request describes why & how an instance is being scheduled.
type Request struct {
	// SchedulerCreated is true for instances made by the scheduling loop, false for those
	// made on request.
	SchedulerCreated bool `json:"scheduler_created"`

	// OverrideFull, if set, decides full vs incremental without consulting the policy.
	OverrideFull *bool `json:"override_full,omitempty"`

	// Reprocessing asks for all fresh upstream results to be processed again.
	Reprocessing bool `json:"reprocessing"`
}

// Scheduler creates job instances, either on request or on a cron schedule.
type Scheduler struct {
	db     database.Database
	policy Decider
	queue  Enqueuer
	opts   *Options
	log    *zap.SugaredLogger

	lock    sync.Mutex
	cron    *cron.Cron
	ticking atomic.Bool
}

// New returns a Scheduler. queue may be nil if instances are never enqueued (ie. the
// caller only uses Schedule).
func New(db database.Database, decider Decider, queue Enqueuer, opts *Options) *Scheduler {
	if opts == nil {
		opts = &Options{}
	}
	opts.SetDefaults()
	return &Scheduler{db: db, policy: decider, queue: queue, opts: opts, log: opts.Logger.Named("scheduler")}
}

// Schedule creates a SCHEDULED instance of def & returns its instance id.
//
// The instance inherits priority, attempts, timeout & pipeline from def. Unless the request
// overrides it, the policy decides whether the run is full; policy errors are returned as is.
// Any metadata patch from the policy is stored together with the instance. The payload is
// left for the worker to compute.
func (s *Scheduler) Schedule(ctx context.Context, def *structs.JobDefinition, now time.Time, req Request) (int64, error) {
	if def == nil {
		return 0, fmt.Errorf("%w definition is nil", errors.ErrInvalidArg)
	}

	full := false
	var patch *structs.MetadataPatch
	if req.OverrideFull != nil {
		full = *req.OverrideFull
	} else {
		d, err := s.policy.Decide(ctx, def, now)
		if err != nil {
			return 0, err
		}
		full = d.TakeFull
		patch = d.MetadataPatch
	}

	tag := structs.TagManuallyCreated
	if req.SchedulerCreated {
		tag = structs.TagSchedulerCreated
	}

	in := &structs.JobInstance{
		DefinitionID:       def.ID,
		Status:             structs.SCHEDULED,
		ETag:               utils.NewRandomID(),
		Pipeline:           def.Pipeline,
		ScheduledStartTime: now,
		StatusChangedAt:    now,
		AttemptMax:         def.MaxAttempts,
		Priority:           def.DefaultPriority,
		TimeoutMinutes:     def.TimeoutMinutes,
		IsFull:             full,
		IsReprocessing:     req.Reprocessing,
		Tags:               []structs.Tag{tag},
		Progress:           map[string]int64{},
		ProgressDetails:    map[string]*structs.ProgressDetail{},
	}

	id, err := s.db.InsertInstance(ctx, in, patch)
	if err != nil {
		return 0, err
	}
	s.log.Infow("instance scheduled", "definition", def.ID, "instance", id, "full", full, "tag", tag)
	return id, nil
}

// Trigger schedules & enqueues an instance of the definition with the given id.
func (s *Scheduler) Trigger(ctx context.Context, definitionID string, req Request) (*structs.JobInstance, error) {
	def, err := s.db.Definition(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	return s.trigger(ctx, def, req)
}

func (s *Scheduler) trigger(ctx context.Context, def *structs.JobDefinition, req Request) (*structs.JobInstance, error) {
	id, err := s.Schedule(ctx, def, timeNow(), req)
	if err != nil {
		return nil, err
	}
	in, err := s.db.Instance(ctx, def.ID, id)
	if err != nil {
		return nil, err
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, in); err != nil {
			return in, err
		}
	}
	return in, nil
}

// TickResult summarises one pass of the scheduling loop.
type TickResult struct {
	Scheduled int64
	Skipped   int64
	Failed    int64
}

// Tick considers every active definition once. Definitions with an instance that is
// SCHEDULED, PENDING or RUNNING are skipped so each definition has at most one live run.
//
// Errors scheduling one definition are logged & counted; they don't stop the others.
func (s *Scheduler) Tick(ctx context.Context) (*TickResult, error) {
	defs, err := s.db.Definitions(ctx, true)
	if err != nil {
		return nil, err
	}

	res := &TickResult{}
	var scheduled, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, def := range defs {
		g.Go(func() error {
			active, err := s.db.Instances(gctx, &structs.Query{
				DefinitionIDs: []string{def.ID},
				Statuses:      structs.ActiveStatuses,
				Limit:         1,
			})
			if err != nil {
				failed.Add(1)
				s.log.Errorw("failed to check active instances", "definition", def.ID, "err", err)
				return nil
			}
			if len(active) > 0 {
				skipped.Add(1)
				return nil
			}

			_, err = s.trigger(gctx, def, Request{SchedulerCreated: true})
			if err != nil {
				failed.Add(1)
				s.log.Errorw("failed to schedule definition", "definition", def.ID, "err", err)
				return nil
			}
			scheduled.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Scheduled, res.Skipped, res.Failed = scheduled.Load(), skipped.Load(), failed.Load()
	s.log.Infow("tick finished", "scheduled", res.Scheduled, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// Start runs Tick on the configured cron spec until Stop is called.
// A tick that is still going when the next is due causes that next one to be skipped.
func (s *Scheduler) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.cron != nil {
		return fmt.Errorf("%w scheduler already started", errors.ErrInvalidState)
	}

	c := cron.New()
	_, err := c.AddFunc(s.opts.Spec, s.runTick)
	if err != nil {
		return fmt.Errorf("%w invalid schedule %q: %v", errors.ErrInvalidArg, s.opts.Spec, err)
	}
	c.Start()
	s.cron = c

	s.log.Infow("scheduler started", "spec", s.opts.Spec)
	return nil
}

// Stop halts the cron loop, waiting for a running tick to finish.
func (s *Scheduler) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.log.Infow("scheduler stopped")
}

func (s *Scheduler) runTick() {
	if !s.ticking.CompareAndSwap(false, true) {
		s.log.Warnw("previous tick still running, skipping")
		return
	}
	defer s.ticking.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.TickTimeout)
	defer cancel()

	if _, err := s.Tick(ctx); err != nil {
		s.log.Errorw("tick failed", "err", err)
	}
}
