package pipeline

import (
	"context"
	"encoding/json"
)

// State is scratch space shared by the hooks & stages of a single run.
// It is not persisted & starts empty on every attempt.
type State map[string]interface{}

// Stage consumes the entities of one upstream data type.
type Stage interface {
	// Name is used as the progress key for this stage.
	Name() string

	// DataType is the upstream data type this stage consumes.
	DataType() string

	// OnlyProcessLatest restricts the stage to the highest indexed upstream result.
	OnlyProcessLatest() bool

	// CheckpointIndividualResults checkpoints progress after each upstream result,
	// rather than once when the stage is finished.
	CheckpointIndividualResults() bool

	PreStage(ctx context.Context, jc *JobContext, state State) error
	Process(ctx context.Context, jc *JobContext, state State, upstreamID string, entity json.RawMessage) error
	PostStage(ctx context.Context, jc *JobContext, state State) error
}

// Hook is run once before or after all stages of a pipeline.
type Hook func(ctx context.Context, jc *JobContext, state State) error

// Pipeline is a named, ordered list of stages.
type Pipeline struct {
	Name   string
	Stages []Stage

	PreProcess  Hook
	PostProcess Hook
}

// StageFuncs adapts plain functions to the Stage interface. Nil hooks do nothing.
type StageFuncs struct {
	StageName      string
	StageDataType  string
	Latest         bool
	CheckpointEach bool
	PreStageFunc   Hook
	ProcessFunc    func(ctx context.Context, jc *JobContext, state State, upstreamID string, entity json.RawMessage) error
	PostStageFunc  Hook
}

func (s *StageFuncs) Name() string                      { return s.StageName }
func (s *StageFuncs) DataType() string                  { return s.StageDataType }
func (s *StageFuncs) OnlyProcessLatest() bool           { return s.Latest }
func (s *StageFuncs) CheckpointIndividualResults() bool { return s.CheckpointEach }

func (s *StageFuncs) PreStage(ctx context.Context, jc *JobContext, state State) error {
	if s.PreStageFunc == nil {
		return nil
	}
	return s.PreStageFunc(ctx, jc, state)
}

func (s *StageFuncs) Process(ctx context.Context, jc *JobContext, state State, upstreamID string, entity json.RawMessage) error {
	if s.ProcessFunc == nil {
		return nil
	}
	return s.ProcessFunc(ctx, jc, state, upstreamID, entity)
}

func (s *StageFuncs) PostStage(ctx context.Context, jc *JobContext, state State) error {
	if s.PostStageFunc == nil {
		return nil
	}
	return s.PostStageFunc(ctx, jc, state)
}
