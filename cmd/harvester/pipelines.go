package main

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/voidshard/harvester/pkg/pipeline"
)

const auditPipeline = "audit"

// auditStage counts the entities of one data type & logs the total. Workers built from this
// command have no domain stages compiled in; the audit pipeline lets them exercise the
// scheduling & upstream plumbing end to end.
func auditStage(dataType string, log *zap.SugaredLogger) pipeline.Stage {
	key := "audit:" + dataType
	return &pipeline.StageFuncs{
		StageName:      "audit-" + dataType,
		StageDataType:  dataType,
		CheckpointEach: true,
		PreStageFunc: func(ctx context.Context, jc *pipeline.JobContext, state pipeline.State) error {
			state[key] = int64(0)
			return nil
		},
		ProcessFunc: func(ctx context.Context, jc *pipeline.JobContext, state pipeline.State, upstreamID string, entity json.RawMessage) error {
			state[key] = state[key].(int64) + 1
			return nil
		},
		PostStageFunc: func(ctx context.Context, jc *pipeline.JobContext, state pipeline.State) error {
			log.Infow("audited", "instance", jc.ID(), "data_type", dataType, "entities", state[key], "full", jc.IsFull)
			return nil
		},
	}
}

// registerPipelines registers the audit pipeline over the given data types.
func registerPipelines(reg *pipeline.Registry, dataTypes []string, log *zap.SugaredLogger) error {
	if len(dataTypes) == 0 {
		return nil
	}
	for _, dt := range dataTypes {
		if err := reg.RegisterStage(auditStage(dt, log)); err != nil {
			return err
		}
	}
	_, err := reg.Compose(auditPipeline, dataTypes...)
	return err
}
