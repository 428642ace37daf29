package policy

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/voidshard/harvester/pkg/database"
	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

// Decision is the outcome of Decide.
type Decision struct {
	// TakeFull is true if the next run should rescan everything.
	TakeFull bool

	// MetadataPatch, if set, should be merged into the definition atomically with the
	// creation of the instance this decision is for.
	MetadataPatch *structs.MetadataPatch

	// Reason is a short human readable explanation, for logs.
	Reason string
}

// Policy decides whether a definition's next run is full or incremental. It performs no writes.
type Policy struct {
	db           database.Database
	integrations database.Integrations
	opts         *Options
	log          *zap.SugaredLogger
}

// New returns a Policy reading from the given collaborators.
func New(db database.Database, integrations database.Integrations, opts *Options) *Policy {
	if opts == nil {
		opts = &Options{}
	}
	opts.SetDefaults()
	return &Policy{db: db, integrations: integrations, opts: opts, log: opts.Logger.Named("policy")}
}

// Decide returns whether the next run of def at time now should be full.
//
// In order, first match wins:
//   - snapshotting integrations compare calendar days (UTC) against the last aggregation
//   - otherwise a changed integration config version forces a full run
//   - otherwise a full run is forced every full frequency, measured from the last
//     successful scheduler-created full run
func (p *Policy) Decide(ctx context.Context, def *structs.JobDefinition, now time.Time) (*Decision, error) {
	if def == nil {
		return nil, fmt.Errorf("%w definition is nil", errors.ErrInvalidArg)
	}

	d, err := p.decide(ctx, def, now)
	if err != nil {
		return nil, err
	}
	p.log.Debugw("decided", "definition", def.ID, "full", d.TakeFull, "reason", d.Reason)
	return d, nil
}

func (p *Policy) decide(ctx context.Context, def *structs.JobDefinition, now time.Time) (*Decision, error) {
	snapshotting, err := p.integrations.SnapshottingEnabled(ctx, def.TenantID, def.IntegrationID)
	if err != nil {
		return nil, err
	}
	if snapshotting {
		return p.bySnapshot(ctx, def, now)
	}

	current, err := p.integrations.ConfigVersion(ctx, def.TenantID, def.IntegrationID)
	if err != nil {
		return nil, err
	}
	last := def.Metadata.LastConfigVersion
	if last == nil || *last < current {
		return &Decision{
			TakeFull:      true,
			MetadataPatch: &structs.MetadataPatch{LastConfigVersion: &current},
			Reason:        "config version changed",
		}, nil
	}

	return p.byFrequency(ctx, def, now)
}

func (p *Policy) bySnapshot(ctx context.Context, def *structs.JobDefinition, now time.Time) (*Decision, error) {
	at, err := p.integrations.LastAggregatedAt(ctx, def.TenantID, def.IntegrationID)
	if err != nil {
		return nil, err
	}
	if at == nil {
		return &Decision{TakeFull: true, Reason: "never aggregated"}, nil
	}
	if at.Before(p.opts.SnapshottingIntroducedAt) {
		return &Decision{TakeFull: true, Reason: "aggregated before snapshotting"}, nil
	}

	today := truncateDay(now)
	aggregated := truncateDay(*at)
	switch {
	case today.After(aggregated):
		return &Decision{TakeFull: true, Reason: "new day"}, nil
	case today.Equal(aggregated):
		return &Decision{TakeFull: false, Reason: "same day"}, nil
	}
	return nil, fmt.Errorf("%w now %s last aggregated %s", errors.ErrClockSkew, now.UTC().Format(time.RFC3339), at.UTC().Format(time.RFC3339))
}

func (p *Policy) byFrequency(ctx context.Context, def *structs.JobDefinition, now time.Time) (*Decision, error) {
	freq := p.frequency(def)
	if freq <= 0 {
		return &Decision{TakeFull: false, Reason: "periodic full disabled"}, nil
	}

	last, err := p.db.LastFullInstance(ctx, def.ID, &structs.Query{
		Statuses: []structs.Status{structs.SUCCESS},
		Tags:     []structs.Tag{structs.TagSchedulerCreated},
	})
	if err != nil {
		return nil, err
	}
	if last == nil {
		return &Decision{TakeFull: true, Reason: "no previous full run"}, nil
	}
	if now.Sub(last.ScheduledStartTime) > freq {
		return &Decision{TakeFull: true, Reason: "full frequency elapsed"}, nil
	}
	return &Decision{TakeFull: false, Reason: "within full frequency"}, nil
}

func (p *Policy) frequency(def *structs.JobDefinition) time.Duration {
	if f, ok := p.opts.FrequencyOverrides[def.Pipeline]; ok {
		return f
	}
	return def.FullFrequency()
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
