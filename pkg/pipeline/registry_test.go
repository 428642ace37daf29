package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	assert.NoError(t, r.RegisterStage(&StageFuncs{StageName: "issues", StageDataType: "issue"}))
	assert.NoError(t, r.RegisterStage(&StageFuncs{StageName: "commits", StageDataType: "commit"}))
	assert.ErrorIs(t, r.RegisterStage(&StageFuncs{StageName: "again", StageDataType: "issue"}), errors.ErrInvalidArg)
	assert.ErrorIs(t, r.RegisterStage(&StageFuncs{StageName: "untyped"}), errors.ErrInvalidArg)

	p, err := r.Compose("scm", "commit", "issue")
	assert.NoError(t, err)
	assert.Equal(t, "commits", p.Stages[0].Name())
	assert.Equal(t, "issues", p.Stages[1].Name())

	_, err = r.Compose("broken", "pull-request")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = r.Compose("scm", "issue")
	assert.ErrorIs(t, err, errors.ErrInvalidArg)

	got, err := r.Pipeline("scm")
	assert.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = r.Pipeline("nope")
	assert.ErrorIs(t, err, errors.ErrNoPipeline)

	assert.Equal(t, []string{"scm"}, r.Pipelines())
}

func TestRegisterPipelineInvalid(t *testing.T) {
	s := &StageFuncs{StageName: "issues", StageDataType: "issue"}

	cases := []struct {
		Name string
		In   *Pipeline
	}{
		{Name: "NoName", In: &Pipeline{Stages: []Stage{s}}},
		{Name: "NoStages", In: &Pipeline{Name: "p"}},
		{Name: "DuplicateStage", In: &Pipeline{Name: "p", Stages: []Stage{s, s}}},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			err := NewRegistry().RegisterPipeline(c.In)
			assert.ErrorIs(t, err, errors.ErrInvalidArg)
		})
	}
}

func TestProgress(t *testing.T) {
	p := NewProgress(map[string]int64{"issues": 2}, nil)

	p.Add("issues", 3)
	p.Complete("issues", "j1")
	p.Complete("issues", "j1")

	counts, details := p.Snapshot()
	assert.Equal(t, int64(5), counts["issues"])
	assert.Equal(t, int64(3), details["issues"].Processed)
	assert.Equal(t, []string{"j1"}, details["issues"].Results)
	assert.True(t, p.Completed("issues", "j1"))
	assert.False(t, p.Completed("issues", "j2"))

	counts["issues"] = 100
	again, _ := p.Snapshot()
	assert.Equal(t, int64(5), again["issues"])
}

func TestProgressNilDetail(t *testing.T) {
	p := NewProgress(nil, map[string]*structs.ProgressDetail{"issues": nil})

	p.Complete("issues", "j1")

	_, details := p.Snapshot()
	assert.Equal(t, []string{"j1"}, details["issues"].Results)
}
