package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidshard/harvester/pkg/database"
	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

// recorder is a stage that records every call made to it.
type recorder struct {
	StageFuncs
	lock  sync.Mutex
	calls []string
}

func newRecorder(name, dataType string, latest, checkpointEach bool) *recorder {
	r := &recorder{StageFuncs: StageFuncs{StageName: name, StageDataType: dataType, Latest: latest, CheckpointEach: checkpointEach}}
	r.PreStageFunc = func(ctx context.Context, jc *JobContext, state State) error {
		r.record("pre")
		return nil
	}
	r.ProcessFunc = func(ctx context.Context, jc *JobContext, state State, upstreamID string, entity json.RawMessage) error {
		r.record(fmt.Sprintf("%s:%s", upstreamID, string(entity)))
		return nil
	}
	r.PostStageFunc = func(ctx context.Context, jc *JobContext, state State) error {
		r.record("post")
		return nil
	}
	return r
}

func (r *recorder) record(s string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) Calls() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]string{}, r.calls...)
}

type fixture struct {
	store    *database.Memory
	def      *structs.JobDefinition
	registry *Registry
	runner   *Runner
}

func newFixture(t *testing.T, stages ...Stage) *fixture {
	t.Helper()
	ctx := context.Background()

	store := database.NewMemory()
	def := &structs.JobDefinition{
		DefinitionSpec: structs.DefinitionSpec{
			TenantID:        "t",
			IntegrationID:   "i",
			IntegrationType: "github",
			Pipeline:        "scm",
			MaxAttempts:     3,
		},
		ID:     "def",
		Active: true,
	}
	require.NoError(t, store.InsertDefinition(ctx, def))

	store.AddResult("t", "i", structs.UpstreamResult{JobID: "j1", DataType: "issue", Index: 1}, json.RawMessage(`1`), json.RawMessage(`2`))
	store.AddResult("t", "i", structs.UpstreamResult{JobID: "j2", DataType: "issue", Index: 2}, json.RawMessage(`3`))
	store.AddResult("t", "i", structs.UpstreamResult{JobID: "j3", DataType: "commit", Index: 1}, json.RawMessage(`4`))

	reg := NewRegistry()
	require.NoError(t, reg.RegisterPipeline(&Pipeline{Name: "scm", Stages: stages}))

	return &fixture{store: store, def: def, registry: reg, runner: NewRunner(store, store, reg, nil)}
}

func (f *fixture) schedule(t *testing.T, full bool, timeoutMinutes int64) *JobContext {
	t.Helper()
	return f.scheduleWith(t, func(in *structs.JobInstance) {
		in.IsFull = full
		in.TimeoutMinutes = timeoutMinutes
	})
}

func (f *fixture) scheduleWith(t *testing.T, fn func(in *structs.JobInstance)) *JobContext {
	t.Helper()
	ctx := context.Background()

	in := &structs.JobInstance{
		DefinitionID:       f.def.ID,
		Status:             structs.SCHEDULED,
		ETag:               "etag",
		Pipeline:           f.def.Pipeline,
		ScheduledStartTime: time.Now().UTC(),
		AttemptMax:         f.def.MaxAttempts,
		Tags:               []structs.Tag{structs.TagSchedulerCreated},
	}
	fn(in)
	_, err := f.store.InsertInstance(ctx, in, nil)
	require.NoError(t, err)

	return NewJobContext(f.def, in)
}

func (f *fixture) instance(t *testing.T, jc *JobContext) *structs.JobInstance {
	t.Helper()
	in, err := f.store.Instance(context.Background(), jc.DefinitionID, jc.InstanceID)
	require.NoError(t, err)
	return in
}

func TestRunSuccess(t *testing.T) {
	commits := newRecorder("commits", "commit", false, false)
	issues := newRecorder("issues", "issue", false, true)
	f := newFixture(t, commits, issues)

	hooks := []string{}
	p, _ := f.registry.Pipeline("scm")
	p.PreProcess = func(ctx context.Context, jc *JobContext, state State) error {
		hooks = append(hooks, "pre")
		state["seen"] = true
		return nil
	}
	p.PostProcess = func(ctx context.Context, jc *JobContext, state State) error {
		hooks = append(hooks, fmt.Sprintf("post:%v", state["seen"]))
		return nil
	}

	jc := f.schedule(t, true, 0)
	err := f.runner.Run(context.Background(), jc)

	assert.NoError(t, err)
	assert.Equal(t, []string{"pre", "post:true"}, hooks)
	assert.Equal(t, []string{"pre", "j3:4", "post"}, commits.Calls())
	assert.Equal(t, []string{"pre", "j1:1", "j1:2", "j2:3", "post"}, issues.Calls())

	in := f.instance(t, jc)
	assert.Equal(t, structs.SUCCESS, in.Status)
	assert.Equal(t, int64(1), in.AttemptCount)
	assert.Equal(t, int64(1), in.Progress["commits"])
	assert.Equal(t, int64(3), in.Progress["issues"])
	assert.Equal(t, []string{"j1", "j2"}, in.ProgressDetails["issues"].Results)
	assert.Equal(t, []string{"j3", "j1", "j2"}, in.Payload.ResultIDs())
}

func TestRunLatestOnly(t *testing.T) {
	issues := newRecorder("issues", "issue", true, false)
	f := newFixture(t, issues)

	jc := f.schedule(t, true, 0)
	err := f.runner.Run(context.Background(), jc)

	assert.NoError(t, err)
	assert.Equal(t, []string{"pre", "j2:3", "post"}, issues.Calls())
}

func TestRunIncrementalSkipsConsumed(t *testing.T) {
	issues := newRecorder("issues", "issue", false, false)
	f := newFixture(t, issues)
	ctx := context.Background()

	first := f.schedule(t, false, 0)
	require.NoError(t, f.runner.Run(ctx, first))

	f.store.AddResult("t", "i", structs.UpstreamResult{JobID: "j4", DataType: "issue", Index: 3}, json.RawMessage(`5`))

	second := f.schedule(t, false, 0)
	require.NoError(t, f.runner.Run(ctx, second))

	assert.Equal(t, []string{"pre", "j1:1", "j1:2", "j2:3", "post", "pre", "j4:5", "post"}, issues.Calls())
	assert.Equal(t, []string{"j4"}, f.instance(t, second).Payload.ResultIDs())
}

func TestRunReprocessingTakesEverything(t *testing.T) {
	issues := newRecorder("issues", "issue", false, false)
	f := newFixture(t, issues)
	ctx := context.Background()

	require.NoError(t, f.runner.Run(ctx, f.schedule(t, false, 0)))

	jc := f.scheduleWith(t, func(in *structs.JobInstance) { in.IsReprocessing = true })
	require.NoError(t, f.runner.Run(ctx, jc))

	assert.True(t, jc.IsReprocessing)
	assert.Equal(t, []string{"j3", "j1", "j2"}, f.instance(t, jc).Payload.ResultIDs())
}

func TestRunStageError(t *testing.T) {
	issues := newRecorder("issues", "issue", false, true)
	issues.ProcessFunc = func(ctx context.Context, jc *JobContext, state State, upstreamID string, entity json.RawMessage) error {
		if upstreamID == "j2" {
			return fmt.Errorf("upstream exploded")
		}
		return nil
	}
	commits := newRecorder("commits", "commit", false, false)
	f := newFixture(t, issues, commits)

	jc := f.schedule(t, true, 0)
	err := f.runner.Run(context.Background(), jc)

	assert.EqualError(t, err, "upstream exploded")
	assert.Empty(t, commits.Calls())

	in := f.instance(t, jc)
	assert.Equal(t, structs.FAILURE, in.Status)
	assert.Equal(t, "upstream exploded", in.Error)
	assert.Equal(t, int64(2), in.Progress["issues"])
	assert.Equal(t, []string{"j1"}, in.ProgressDetails["issues"].Results)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	issues := newRecorder("issues", "issue", false, false)
	issues.ProcessFunc = func(c context.Context, jc *JobContext, state State, upstreamID string, entity json.RawMessage) error {
		cancel()
		return nil
	}
	f := newFixture(t, issues)

	jc := f.schedule(t, true, 0)
	err := f.runner.Run(ctx, jc)

	assert.ErrorIs(t, err, errors.ErrCancelled)

	in := f.instance(t, jc)
	assert.Equal(t, structs.FAILURE, in.Status)
	assert.Equal(t, int64(1), in.Progress["issues"])
}

func TestRunTimeout(t *testing.T) {
	defer func() { timeNow = time.Now }()

	issues := newRecorder("issues", "issue", false, false)
	issues.ProcessFunc = func(c context.Context, jc *JobContext, state State, upstreamID string, entity json.RawMessage) error {
		timeNow = func() time.Time { return time.Now().Add(2 * time.Minute) }
		return nil
	}
	f := newFixture(t, issues)

	jc := f.schedule(t, true, 1)
	err := f.runner.Run(context.Background(), jc)

	assert.ErrorIs(t, err, errors.ErrTimeout)

	in := f.instance(t, jc)
	assert.Equal(t, structs.FAILURE, in.Status)
	assert.Equal(t, int64(1), in.Progress["issues"])
}

func TestRunRetryAndMaxAttempts(t *testing.T) {
	fail := true
	issues := newRecorder("issues", "issue", false, false)
	issues.ProcessFunc = func(c context.Context, jc *JobContext, state State, upstreamID string, entity json.RawMessage) error {
		if fail {
			return fmt.Errorf("flaky")
		}
		return nil
	}
	f := newFixture(t, issues)
	ctx := context.Background()
	jc := f.schedule(t, true, 0)

	for i := 0; i < 3; i++ {
		assert.EqualError(t, f.runner.Run(ctx, jc), "flaky")
	}
	assert.Equal(t, int64(3), f.instance(t, jc).AttemptCount)

	fail = false
	err := f.runner.Run(ctx, jc)
	assert.ErrorIs(t, err, errors.ErrMaxAttempts)
	assert.Equal(t, structs.FAILURE, f.instance(t, jc).Status)
}

func TestRunInvalidState(t *testing.T) {
	issues := newRecorder("issues", "issue", false, false)
	f := newFixture(t, issues)
	ctx := context.Background()

	jc := f.schedule(t, true, 0)
	require.NoError(t, f.runner.Run(ctx, jc))

	err := f.runner.Run(ctx, jc)
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	jc.Pipeline = "nope"
	err = f.runner.Run(ctx, jc)
	assert.ErrorIs(t, err, errors.ErrNoPipeline)
}

func TestRunUnknownPipeline(t *testing.T) {
	f := newFixture(t, newRecorder("issues", "issue", false, false))

	jc := f.scheduleWith(t, func(in *structs.JobInstance) { in.Pipeline = "nope" })
	jc.Pipeline = "nope"
	err := f.runner.Run(context.Background(), jc)

	assert.ErrorIs(t, err, errors.ErrNoPipeline)

	in := f.instance(t, jc)
	assert.Equal(t, structs.FAILURE, in.Status)
	assert.Equal(t, int64(0), in.AttemptCount)
	assert.Contains(t, in.Error, errors.ErrNoPipeline.Error())
}

func TestRunCancelledBeforeStart(t *testing.T) {
	issues := newRecorder("issues", "issue", false, false)
	f := newFixture(t, issues)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jc := f.schedule(t, true, 0)
	err := f.runner.Run(ctx, jc)

	assert.ErrorIs(t, err, errors.ErrCancelled)
	assert.Empty(t, issues.Calls())

	in := f.instance(t, jc)
	assert.Equal(t, structs.FAILURE, in.Status)
	assert.Equal(t, int64(0), in.AttemptCount)
	assert.Contains(t, in.Error, errors.ErrCancelled.Error())
}

func TestRunStageReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	issues := newRecorder("issues", "issue", false, false)
	issues.ProcessFunc = func(c context.Context, jc *JobContext, state State, upstreamID string, entity json.RawMessage) error {
		cancel()
		return c.Err()
	}
	f := newFixture(t, issues)

	jc := f.schedule(t, true, 0)
	err := f.runner.Run(ctx, jc)

	assert.ErrorIs(t, err, errors.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)

	in := f.instance(t, jc)
	assert.Equal(t, structs.FAILURE, in.Status)
	assert.Contains(t, in.Error, errors.ErrCancelled.Error())
}

func TestAbandonLeavesRunningAlone(t *testing.T) {
	f := newFixture(t, newRecorder("issues", "issue", false, false))
	ctx := context.Background()

	jc := f.schedule(t, true, 0)
	in, err := f.runner.start(ctx, f.instance(t, jc))
	require.NoError(t, err)
	require.Equal(t, structs.RUNNING, in.Status)

	f.runner.Abandon(ctx, jc, errors.ErrCancelled)
	assert.Equal(t, structs.RUNNING, f.instance(t, jc).Status)
}
