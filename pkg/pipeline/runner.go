package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/voidshard/harvester/pkg/database"
	herrors "github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/resolver"
	"github.com/voidshard/harvester/pkg/structs"
)

// timeNow is swapped out in tests
var timeNow = time.Now

// Runner runs job instances through their registered pipeline, keeping the instance's
// status & progress in the store up to date as it goes.
type Runner struct {
	db       database.Database
	upstream database.Upstream
	registry *Registry
	opts     *Options
	log      *zap.SugaredLogger
}

// NewRunner returns a Runner.
func NewRunner(db database.Database, upstream database.Upstream, registry *Registry, opts *Options) *Runner {
	if opts == nil {
		opts = &Options{}
	}
	opts.SetDefaults()
	return &Runner{db: db, upstream: upstream, registry: registry, opts: opts, log: opts.Logger.Named("runner")}
}

// run is the state of a single attempt.
type run struct {
	jc       *JobContext
	instance *structs.JobInstance
	deadline time.Time
}

// Run executes the instance described by jc.
//
// The instance moves to PENDING then RUNNING (counting an attempt); if all stages finish it is
// marked SUCCESS, otherwise FAILURE with the error text. Cancelling ctx, or exceeding the
// instance timeout, is noticed between entities: progress is flushed and the instance failed.
// An instance that cannot be started because its pipeline is unknown, or because ctx is
// cancelled first, is failed without counting an attempt.
func (r *Runner) Run(ctx context.Context, jc *JobContext) (err error) {
	ctx, span := r.opts.Tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("definition_id", jc.DefinitionID),
		attribute.Int64("instance_id", jc.InstanceID),
		attribute.String("pipeline", jc.Pipeline),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	p, err := r.registry.Pipeline(jc.Pipeline)
	if err != nil {
		// nothing can ever run this instance
		r.Abandon(ctx, jc, err)
		return err
	}
	if err := ctx.Err(); err != nil {
		err = cancelled(ctx, err)
		r.Abandon(ctx, jc, err)
		return err
	}

	in, err := r.db.Instance(ctx, jc.DefinitionID, jc.InstanceID)
	if err != nil {
		if ctx.Err() != nil {
			err = cancelled(ctx, err)
			r.Abandon(ctx, jc, err)
		}
		return err
	}

	in, err = r.start(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			// we may have left it PENDING
			err = cancelled(ctx, err)
			r.Abandon(ctx, jc, err)
		}
		return err
	}

	rn := &run{jc: jc, instance: in}
	if in.Timeout() > 0 {
		rn.deadline = in.StatusChangedAt.Add(in.Timeout())
	}
	if jc.Progress == nil {
		jc.Progress = NewProgress(in.Progress, in.ProgressDetails)
	}

	err = r.execute(ctx, p, rn)
	if err != nil {
		err = cancelled(ctx, err)
		r.fail(ctx, rn, err)
		return err
	}

	if err := r.flush(ctx, rn); err != nil {
		err = cancelled(ctx, err)
		r.fail(ctx, rn, err)
		return err
	}
	_, err = database.SetInstanceState(ctx, r.db, rn.instance, structs.SUCCESS, "")
	if err == nil {
		r.log.Infow("instance succeeded", "instance", jc.ID(), "attempt", rn.instance.AttemptCount)
	}
	return err
}

// start moves the instance into RUNNING, enforcing the attempt limit.
func (r *Runner) start(ctx context.Context, in *structs.JobInstance) (*structs.JobInstance, error) {
	var err error
	switch in.Status {
	case structs.SCHEDULED, structs.FAILURE:
		if in.AttemptMax > 0 && in.AttemptCount >= in.AttemptMax {
			if in.Status != structs.FAILURE {
				_, _ = database.SetInstanceState(ctx, r.db, in, structs.FAILURE, herrors.ErrMaxAttempts.Error())
			}
			return nil, fmt.Errorf("%w %d of %d attempts used", herrors.ErrMaxAttempts, in.AttemptCount, in.AttemptMax)
		}
		in, err = database.SetInstanceState(ctx, r.db, in, structs.PENDING, "")
		if err != nil {
			return nil, err
		}
	case structs.PENDING:
	default:
		return nil, fmt.Errorf("%w instance %s is %s", herrors.ErrInvalidState, in.Key(), in.Status)
	}
	return database.SetInstanceState(ctx, r.db, in, structs.RUNNING, "")
}

func (r *Runner) execute(ctx context.Context, p *Pipeline, rn *run) error {
	payload, err := r.payload(ctx, rn)
	if err != nil {
		return err
	}
	rn.jc.Payload = payload

	state := State{}
	if p.PreProcess != nil {
		if err := p.PreProcess(ctx, rn.jc, state); err != nil {
			return err
		}
	}

	for _, s := range p.Stages {
		if err := r.stage(ctx, s, rn, state); err != nil {
			return err
		}
	}

	if p.PostProcess != nil {
		if err := p.PostProcess(ctx, rn.jc, state); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) stage(ctx context.Context, s Stage, rn *run, state State) error {
	if err := r.check(ctx, rn); err != nil {
		return err
	}
	log := r.log.With("instance", rn.jc.ID(), "stage", s.Name())
	log.Debugw("stage starting")

	if err := s.PreStage(ctx, rn.jc, state); err != nil {
		return err
	}

	for _, result := range rn.jc.Payload.ForDataType(s.DataType(), s.OnlyProcessLatest()) {
		if err := r.check(ctx, rn); err != nil {
			return err
		}
		err := r.upstream.ReadPages(ctx, result, func(page *structs.Page) error {
			for _, entity := range page.Entities {
				if err := r.check(ctx, rn); err != nil {
					return err
				}
				if err := s.Process(ctx, rn.jc, state, result.JobID, entity); err != nil {
					return err
				}
				rn.jc.Progress.Add(s.Name(), 1)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if s.CheckpointIndividualResults() {
			rn.jc.Progress.Complete(s.Name(), result.JobID)
			if err := r.flush(ctx, rn); err != nil {
				return err
			}
		}
	}

	if err := s.PostStage(ctx, rn.jc, state); err != nil {
		return err
	}
	if !s.CheckpointIndividualResults() {
		for _, result := range rn.jc.Payload.ForDataType(s.DataType(), s.OnlyProcessLatest()) {
			rn.jc.Progress.Complete(s.Name(), result.JobID)
		}
		if err := r.flush(ctx, rn); err != nil {
			return err
		}
	}

	log.Debugw("stage finished")
	return nil
}

// payload returns the instance payload, working it out & storing it on first run.
//
// Full & reprocessing runs take every fresh upstream result. Incremental runs drop results
// consumed by earlier successful instances of the same definition.
func (r *Runner) payload(ctx context.Context, rn *run) (*structs.Payload, error) {
	if rn.instance.Payload != nil {
		return rn.instance.Payload, nil
	}

	fresh, err := r.upstream.FreshResults(ctx, rn.jc.TenantID, rn.jc.IntegrationID)
	if err != nil {
		return nil, err
	}

	if !rn.instance.IsFull && !rn.instance.IsReprocessing && len(fresh) > 0 {
		it, err := r.db.StreamInstances(ctx, &structs.Query{
			DefinitionIDs:    []string{rn.instance.DefinitionID},
			Statuses:         []structs.Status{structs.SUCCESS},
			BeforeInstanceID: rn.instance.InstanceID,
		})
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(fresh))
		for _, f := range fresh {
			ids = append(ids, f.JobID)
		}
		remaining, err := resolver.Resolve(ctx, it, ids)
		if err != nil {
			return nil, err
		}
		keep := map[string]bool{}
		for _, id := range remaining {
			keep[id] = true
		}
		kept := []structs.UpstreamResult{}
		for _, f := range fresh {
			if keep[f.JobID] {
				kept = append(kept, f)
			}
		}
		fresh = kept
	}

	payload := structs.NewPayload(fresh)
	if err := r.db.SetInstancePayload(ctx, rn.instance.DefinitionID, rn.instance.InstanceID, payload); err != nil {
		return nil, err
	}
	rn.instance = rn.instance.WithPayload(payload)
	r.log.Debugw("payload computed", "instance", rn.jc.ID(), "results", payload.Len())
	return payload, nil
}

// check returns an error if the run should stop before its next unit of work.
func (r *Runner) check(ctx context.Context, rn *run) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w %v", herrors.ErrCancelled, err)
	}
	if !rn.deadline.IsZero() && timeNow().After(rn.deadline) {
		return fmt.Errorf("%w after %s", herrors.ErrTimeout, rn.instance.Timeout())
	}
	return nil
}

// flush writes the current progress to the store.
func (r *Runner) flush(ctx context.Context, rn *run) error {
	counts, details := rn.jc.Progress.Snapshot()
	return r.db.UpdateInstanceProgress(ctx, rn.instance.DefinitionID, rn.instance.InstanceID, counts, details)
}

// fail flushes progress & marks the instance FAILURE. Both are attempted even if ctx is done.
func (r *Runner) fail(ctx context.Context, rn *run, cause error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.FlushTimeout)
	defer cancel()

	if err := r.flush(fctx, rn); err != nil {
		r.log.Warnw("failed to flush progress", "instance", rn.jc.ID(), "err", err)
	}
	_, err := database.SetInstanceState(fctx, r.db, rn.instance, structs.FAILURE, cause.Error())
	if err != nil {
		r.log.Errorw("failed to mark instance failed", "instance", rn.jc.ID(), "cause", cause, "err", err)
		return
	}
	r.log.Infow("instance failed", "instance", rn.jc.ID(), "attempt", rn.instance.AttemptCount, "err", cause)
}

// Abandon marks an instance that was never run to completion FAILURE with the given cause.
// Instances that are RUNNING or already final are left alone. The write is attempted even
// if ctx is done.
func (r *Runner) Abandon(ctx context.Context, jc *JobContext, cause error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.FlushTimeout)
	defer cancel()

	in, err := r.db.Instance(fctx, jc.DefinitionID, jc.InstanceID)
	if err != nil {
		r.log.Warnw("failed to load abandoned instance", "instance", jc.ID(), "cause", cause, "err", err)
		return
	}
	switch in.Status {
	case structs.SCHEDULED, structs.PENDING:
	default:
		return
	}

	_, err = database.SetInstanceState(fctx, r.db, in, structs.FAILURE, cause.Error())
	if err != nil {
		r.log.Errorw("failed to mark instance failed", "instance", jc.ID(), "cause", cause, "err", err)
		return
	}
	r.log.Infow("instance abandoned", "instance", jc.ID(), "err", cause)
}

// cancelled wraps err as ErrCancelled if it happened because ctx was cancelled.
func cancelled(ctx context.Context, err error) error {
	if ctx.Err() == nil || errors.Is(err, herrors.ErrCancelled) {
		return err
	}
	return fmt.Errorf("%w %w", herrors.ErrCancelled, err)
}
