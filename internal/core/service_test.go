package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidshard/harvester/internal/utils"
	"github.com/voidshard/harvester/pkg/api"
	"github.com/voidshard/harvester/pkg/database"
	"github.com/voidshard/harvester/pkg/engine"
	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/pipeline"
	"github.com/voidshard/harvester/pkg/policy"
	"github.com/voidshard/harvester/pkg/queue"
	"github.com/voidshard/harvester/pkg/scheduler"
	"github.com/voidshard/harvester/pkg/structs"
)

type fakeQueue struct {
	lock     sync.Mutex
	enqueued []*structs.JobInstance
}

func (f *fakeQueue) Register(handler queue.Handler) error { return nil }
func (f *fakeQueue) Run() error                           { return nil }
func (f *fakeQueue) Close() error                         { return nil }

func (f *fakeQueue) Enqueue(ctx context.Context, in *structs.JobInstance) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.enqueued = append(f.enqueued, in)
	return nil
}

func (f *fakeQueue) Enqueued() []*structs.JobInstance {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]*structs.JobInstance{}, f.enqueued...)
}

type fixture struct {
	store   *database.Memory
	def     *structs.JobDefinition
	qu      *fakeQueue
	svc     *Service
	release chan struct{}
	failing bool
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:   database.NewMemory(),
		qu:      &fakeQueue{},
		release: make(chan struct{}),
	}
	close(f.release)

	f.def = &structs.JobDefinition{
		DefinitionSpec: structs.DefinitionSpec{
			TenantID:        "t",
			IntegrationID:   "i",
			IntegrationType: "jira",
			Pipeline:        "tickets",
			MaxAttempts:     2,
		},
		ID:     utils.NewRandomID(),
		Active: true,
	}
	require.NoError(t, f.store.InsertDefinition(ctx, f.def))

	reg := pipeline.NewRegistry()
	require.NoError(t, reg.RegisterPipeline(&pipeline.Pipeline{
		Name: "tickets",
		Stages: []pipeline.Stage{&pipeline.StageFuncs{
			StageName:     "load",
			StageDataType: "ticket",
			PreStageFunc: func(ctx context.Context, jc *pipeline.JobContext, state pipeline.State) error {
				select {
				case <-f.release:
				case <-ctx.Done():
					return ctx.Err()
				}
				if f.failing {
					return fmt.Errorf("upstream unavailable")
				}
				return nil
			},
		}},
	}))

	runner := pipeline.NewRunner(f.store, f.store, reg, nil)
	eng, err := engine.New(runner, &engine.Options{Workers: workers})
	require.NoError(t, err)

	sched := scheduler.New(f.store, policy.New(f.store, f.store, nil), f.qu, nil)

	f.svc, err = NewService(f.store, f.qu, eng, sched, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		f.svc.Close(ctx)
	})
	return f
}

func (f *fixture) insert(t *testing.T, fn func(in *structs.JobInstance)) *structs.JobInstance {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	in := &structs.JobInstance{
		DefinitionID:       f.def.ID,
		Status:             structs.SCHEDULED,
		ETag:               utils.NewRandomID(),
		Pipeline:           f.def.Pipeline,
		ScheduledStartTime: now,
		StatusChangedAt:    now,
		AttemptMax:         f.def.MaxAttempts,
		IsFull:             true,
		Tags:               []structs.Tag{structs.TagManuallyCreated},
	}
	if fn != nil {
		fn(in)
	}
	id, err := f.store.InsertInstance(ctx, in, nil)
	require.NoError(t, err)

	out, err := f.store.Instance(ctx, f.def.ID, id)
	require.NoError(t, err)
	return out
}

func (f *fixture) instance(t *testing.T, id int64) *structs.JobInstance {
	t.Helper()
	in, err := f.store.Instance(context.Background(), f.def.ID, id)
	require.NoError(t, err)
	return in
}

func meta(in *structs.JobInstance) *queue.Meta {
	return &queue.Meta{DefinitionID: in.DefinitionID, InstanceID: in.InstanceID}
}

func TestScheduleThenDispatch(t *testing.T) {
	f := newFixture(t, 2)
	full := true

	in, err := f.svc.Schedule(context.Background(), &api.ScheduleRequest{DefinitionID: f.def.ID, Full: &full})
	require.NoError(t, err)

	assert.Equal(t, structs.SCHEDULED, in.Status)
	assert.True(t, in.HasTag(structs.TagManuallyCreated))
	require.Len(t, f.qu.Enqueued(), 1)
	assert.Equal(t, in.Key(), f.qu.Enqueued()[0].Key())

	m := meta(in)
	err = f.svc.Dispatch(context.Background(), m)

	assert.NoError(t, err)
	assert.False(t, m.Skipped())
	assert.Equal(t, structs.SUCCESS, f.instance(t, in.InstanceID).Status)

	jobs, err := f.svc.Jobs(&api.JobQuery{Statuses: []engine.Status{engine.SUCCESS}})
	assert.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, in.Key(), jobs[0].ID)

	assert.NoError(t, f.svc.Clear(in.Key()))
	jobs, err = f.svc.Jobs(nil)
	assert.NoError(t, err)
	assert.Len(t, jobs, 0)
}

func TestScheduleValidates(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.Schedule(context.Background(), &api.ScheduleRequest{DefinitionID: "x"})

	assert.ErrorIs(t, err, errors.ErrInvalidArg)
	assert.Len(t, f.qu.Enqueued(), 0)
}

func TestDispatch(t *testing.T) {
	cases := []struct {
		Name         string
		Mutate       func(in *structs.JobInstance)
		Failing      bool
		ExpectErr    bool
		ExpectSkip   bool
		ExpectStatus structs.Status
	}{
		{
			Name:         "Scheduled",
			ExpectStatus: structs.SUCCESS,
		},
		{
			Name:         "Pending",
			Mutate:       func(in *structs.JobInstance) { in.Status = structs.PENDING },
			ExpectStatus: structs.SUCCESS,
		},
		{
			Name:         "RetryFailure",
			Mutate:       func(in *structs.JobInstance) { in.Status = structs.FAILURE; in.AttemptCount = 1 },
			ExpectStatus: structs.SUCCESS,
		},
		{
			Name:         "DropExhausted",
			Mutate:       func(in *structs.JobInstance) { in.Status = structs.FAILURE; in.AttemptCount = 2 },
			ExpectStatus: structs.FAILURE,
		},
		{
			Name:         "DropSucceeded",
			Mutate:       func(in *structs.JobInstance) { in.Status = structs.SUCCESS; in.AttemptCount = 1 },
			ExpectStatus: structs.SUCCESS,
		},
		{
			Name:         "DropRunning",
			Mutate:       func(in *structs.JobInstance) { in.Status = structs.RUNNING; in.AttemptCount = 1 },
			ExpectStatus: structs.RUNNING,
		},
		{
			Name:         "StageFails",
			Failing:      true,
			ExpectErr:    true,
			ExpectStatus: structs.FAILURE,
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			f := newFixture(t, 1)
			f.failing = c.Failing
			in := f.insert(t, c.Mutate)
			m := meta(in)

			err := f.svc.Dispatch(context.Background(), m)

			if c.ExpectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, c.ExpectSkip, m.Skipped())
			assert.Equal(t, c.ExpectStatus, f.instance(t, in.InstanceID).Status)
		})
	}
}

func TestDispatchRetriesUntilAttemptsUsed(t *testing.T) {
	f := newFixture(t, 1)
	f.failing = true
	in := f.insert(t, nil)

	// attempt 1
	assert.Error(t, f.svc.Dispatch(context.Background(), meta(in)))
	assert.Equal(t, int64(1), f.instance(t, in.InstanceID).AttemptCount)

	// attempt 2, the finished job from attempt 1 is cleared first
	assert.Error(t, f.svc.Dispatch(context.Background(), meta(in)))
	assert.Equal(t, int64(2), f.instance(t, in.InstanceID).AttemptCount)

	// nothing left to try
	m := meta(in)
	assert.NoError(t, f.svc.Dispatch(context.Background(), m))
	after := f.instance(t, in.InstanceID)
	assert.Equal(t, structs.FAILURE, after.Status)
	assert.Equal(t, int64(2), after.AttemptCount)
	assert.Equal(t, "upstream unavailable", after.Error)
}

func TestDispatchNotFound(t *testing.T) {
	f := newFixture(t, 1)
	m := &queue.Meta{DefinitionID: f.def.ID, InstanceID: 99}

	err := f.svc.Dispatch(context.Background(), m)

	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.True(t, m.Skipped())
}

func TestDispatchBusy(t *testing.T) {
	f := newFixture(t, 1)
	f.release = make(chan struct{})

	first := f.insert(t, nil)
	second := f.insert(t, nil)

	done := make(chan error, 1)
	go func() {
		done <- f.svc.Dispatch(context.Background(), meta(first))
	}()

	require.Eventually(t, func() bool {
		jobs, _ := f.svc.Jobs(&api.JobQuery{Statuses: []engine.Status{engine.RUNNING}})
		return len(jobs) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// a duplicate delivery of the running instance is dropped
	assert.NoError(t, f.svc.Dispatch(context.Background(), meta(first)))

	m := meta(second)
	err := f.svc.Dispatch(context.Background(), m)
	assert.ErrorIs(t, err, errors.ErrEngineBusy)
	assert.False(t, m.Skipped())

	close(f.release)
	assert.NoError(t, <-done)

	assert.NoError(t, f.svc.Dispatch(context.Background(), meta(second)))
	assert.Equal(t, structs.SUCCESS, f.instance(t, second.InstanceID).Status)
}

func TestDispatchCancelled(t *testing.T) {
	f := newFixture(t, 1)
	f.release = make(chan struct{})
	in := f.insert(t, nil)

	done := make(chan error, 1)
	m := meta(in)
	go func() {
		done <- f.svc.Dispatch(context.Background(), m)
	}()

	require.Eventually(t, func() bool {
		_, ok := f.svc.engine.Job(in.Key())
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	assert.NoError(t, f.svc.Cancel(in.Key()))
	assert.NoError(t, <-done)

	jobs, err := f.svc.Jobs(nil)
	assert.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, engine.CANCELLED, jobs[0].Status)

	stored := f.instance(t, in.InstanceID)
	assert.Equal(t, structs.FAILURE, stored.Status)
	assert.Contains(t, stored.Error, errors.ErrCancelled.Error())
}

func TestDispatchUnknownPipeline(t *testing.T) {
	f := newFixture(t, 1)
	in := f.insert(t, func(in *structs.JobInstance) { in.Pipeline = "nope" })

	m := meta(in)
	err := f.svc.Dispatch(context.Background(), m)

	assert.ErrorIs(t, err, errors.ErrNoPipeline)
	assert.True(t, m.Skipped())

	stored := f.instance(t, in.InstanceID)
	assert.Equal(t, structs.FAILURE, stored.Status)
	assert.Contains(t, stored.Error, errors.ErrNoPipeline.Error())
}

func TestNotSupported(t *testing.T) {
	store := database.NewMemory()
	svc, err := NewService(store, nil, nil, nil, nil)
	require.NoError(t, err)
	defer svc.Close(context.Background())

	_, err = svc.Jobs(nil)
	assert.ErrorIs(t, err, errors.ErrNotSupported)
	assert.ErrorIs(t, svc.Cancel("a/1"), errors.ErrNotSupported)
	assert.ErrorIs(t, svc.Clear("a/1"), errors.ErrNotSupported)
	assert.ErrorIs(t, svc.Dispatch(context.Background(), &queue.Meta{}), errors.ErrNotSupported)

	_, err = svc.Schedule(context.Background(), &api.ScheduleRequest{DefinitionID: utils.NewRandomID()})
	assert.ErrorIs(t, err, errors.ErrNotSupported)

	_, err = svc.Tidy(context.Background())
	assert.ErrorIs(t, err, errors.ErrNotSupported)

	_, err = NewService(nil, nil, nil, nil, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArg)
}

func TestDefinitionsAndInstances(t *testing.T) {
	f := newFixture(t, 1)
	f.insert(t, nil)
	f.insert(t, func(in *structs.JobInstance) { in.Status = structs.SUCCESS })

	defs, err := f.svc.Definitions(context.Background(), true)
	assert.NoError(t, err)
	assert.Len(t, defs, 1)

	ins, err := f.svc.Instances(context.Background(), &structs.Query{Statuses: []structs.Status{structs.SUCCESS}})
	assert.NoError(t, err)
	require.Len(t, ins, 1)
	assert.Equal(t, int64(2), ins[0].InstanceID)

	all, err := f.svc.Instances(context.Background(), nil)
	assert.NoError(t, err)
	assert.Len(t, all, 2)
}
