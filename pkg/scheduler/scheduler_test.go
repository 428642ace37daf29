package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidshard/harvester/pkg/database"
	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/policy"
	"github.com/voidshard/harvester/pkg/structs"
)

type fakeDecider struct {
	lock     sync.Mutex
	decision *policy.Decision
	err      error
	calls    int
}

func (f *fakeDecider) Decide(ctx context.Context, def *structs.JobDefinition, now time.Time) (*policy.Decision, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls++
	return f.decision, f.err
}

type fakeQueue struct {
	lock     sync.Mutex
	enqueued []string
}

func (f *fakeQueue) Enqueue(ctx context.Context, in *structs.JobInstance) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.enqueued = append(f.enqueued, in.Key())
	return nil
}

func boolPtr(b bool) *bool { return &b }

func testDefinition(id string) *structs.JobDefinition {
	return &structs.JobDefinition{
		DefinitionSpec: structs.DefinitionSpec{
			TenantID:        "t",
			IntegrationID:   "i",
			Pipeline:        "issues",
			DefaultPriority: 5,
			MaxAttempts:     3,
			TimeoutMinutes:  30,
		},
		ID:     id,
		Active: true,
	}
}

func TestSchedule(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	version := int64(9)

	cases := []struct {
		Name        string
		Req         Request
		Decision    *policy.Decision
		DecideErr   error
		ExpectCalls int
		ExpectFull  bool
		ExpectTag   structs.Tag
		ExpectPatch bool
		ExpectErr   error
	}{
		{
			Name:        "PolicyFull",
			Req:         Request{SchedulerCreated: true},
			Decision:    &policy.Decision{TakeFull: true, MetadataPatch: &structs.MetadataPatch{LastConfigVersion: &version}},
			ExpectCalls: 1,
			ExpectFull:  true,
			ExpectTag:   structs.TagSchedulerCreated,
			ExpectPatch: true,
		},
		{
			Name:        "PolicyIncremental",
			Req:         Request{SchedulerCreated: true},
			Decision:    &policy.Decision{TakeFull: false},
			ExpectCalls: 1,
			ExpectFull:  false,
			ExpectTag:   structs.TagSchedulerCreated,
		},
		{
			Name:        "OverrideSkipsPolicy",
			Req:         Request{OverrideFull: boolPtr(true), Reprocessing: true},
			ExpectCalls: 0,
			ExpectFull:  true,
			ExpectTag:   structs.TagManuallyCreated,
		},
		{
			Name:        "PolicyError",
			Req:         Request{SchedulerCreated: true},
			DecideErr:   fmt.Errorf("%w skewed", errors.ErrClockSkew),
			ExpectCalls: 1,
			ExpectErr:   errors.ErrClockSkew,
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			ctx := context.Background()
			store := database.NewMemory()
			def := testDefinition("def")
			require.NoError(t, store.InsertDefinition(ctx, def))

			decider := &fakeDecider{decision: c.Decision, err: c.DecideErr}
			s := New(store, decider, nil, nil)

			id, err := s.Schedule(ctx, def, now, c.Req)
			assert.Equal(t, c.ExpectCalls, decider.calls)

			if c.ExpectErr != nil {
				assert.ErrorIs(t, err, c.ExpectErr)
				found, _ := store.Instances(ctx, &structs.Query{})
				assert.Len(t, found, 0)
				return
			}
			require.NoError(t, err)

			in, err := store.Instance(ctx, def.ID, id)
			require.NoError(t, err)
			assert.Equal(t, structs.SCHEDULED, in.Status)
			assert.Equal(t, now, in.ScheduledStartTime)
			assert.Equal(t, now, in.StatusChangedAt)
			assert.Equal(t, int64(5), in.Priority)
			assert.Equal(t, int64(3), in.AttemptMax)
			assert.Equal(t, int64(30), in.TimeoutMinutes)
			assert.Equal(t, "issues", in.Pipeline)
			assert.Equal(t, c.ExpectFull, in.IsFull)
			assert.Equal(t, c.Req.Reprocessing, in.IsReprocessing)
			assert.Equal(t, []structs.Tag{c.ExpectTag}, in.Tags)
			assert.Nil(t, in.Payload)

			stored, err := store.Definition(ctx, def.ID)
			require.NoError(t, err)
			if c.ExpectPatch {
				assert.Equal(t, version, *stored.Metadata.LastConfigVersion)
			} else {
				assert.Nil(t, stored.Metadata.LastConfigVersion)
			}
		})
	}
}

func TestTickSingleFlight(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemory()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.InsertDefinition(ctx, testDefinition(id)))
	}
	_, err := store.SetDefinitionActive(ctx, "c", false)
	require.NoError(t, err)

	q := &fakeQueue{}
	s := New(store, &fakeDecider{decision: &policy.Decision{TakeFull: true}}, q, &Options{Concurrency: 2})

	res, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, &TickResult{Scheduled: 2}, res)
	assert.ElementsMatch(t, []string{"a/1", "b/1"}, q.enqueued)

	// nothing has run yet, so nothing new is scheduled
	res, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, &TickResult{Skipped: 2}, res)

	// once a's instance is done it gets a new one
	in, err := store.Instance(ctx, "a", 1)
	require.NoError(t, err)
	_, err = store.UpdateInstanceStatus(ctx, in.Ref(), structs.FAILURE, "x", "")
	require.NoError(t, err)

	res, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, &TickResult{Scheduled: 1, Skipped: 1}, res)
	assert.Contains(t, q.enqueued, "a/2")
}

func TestTickCountsFailures(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemory()
	require.NoError(t, store.InsertDefinition(ctx, testDefinition("a")))

	s := New(store, &fakeDecider{err: fmt.Errorf("boom")}, &fakeQueue{}, nil)

	res, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, &TickResult{Failed: 1}, res)
}

func TestTrigger(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemory()
	require.NoError(t, store.InsertDefinition(ctx, testDefinition("a")))
	q := &fakeQueue{}
	s := New(store, &fakeDecider{decision: &policy.Decision{}}, q, nil)

	in, err := s.Trigger(ctx, "a", Request{OverrideFull: boolPtr(false)})
	require.NoError(t, err)
	assert.True(t, in.HasTag(structs.TagManuallyCreated))
	assert.Equal(t, []string{"a/1"}, q.enqueued)

	_, err = s.Trigger(ctx, "nope", Request{})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestStartStop(t *testing.T) {
	s := New(database.NewMemory(), &fakeDecider{}, nil, &Options{Spec: "not a spec"})
	assert.ErrorIs(t, s.Start(), errors.ErrInvalidArg)

	s = New(database.NewMemory(), &fakeDecider{}, nil, &Options{Spec: "@every 1h"})
	assert.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), errors.ErrInvalidState)
	s.Stop()
	s.Stop()
}
