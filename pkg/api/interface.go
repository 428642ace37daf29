package api

import (
	"context"

	"github.com/voidshard/harvester/pkg/engine"
	"github.com/voidshard/harvester/pkg/structs"
)

// API represents the functions harvester workers expose to operators.
type API interface {
	// Implemented in harvester/internal/core.Service

	// Schedule creates a manually-created instance of a definition & enqueues it.
	Schedule(ctx context.Context, req *ScheduleRequest) (*structs.JobInstance, error)

	// Jobs lists the jobs tracked by this worker's engine.
	Jobs(q *JobQuery) ([]*engine.Info, error)

	// Cancel stops a tracked job.
	Cancel(id string) error

	// Clear forgets a tracked job that is done, allowing it to be submitted again.
	Clear(id string) error

	Definitions(ctx context.Context, activeOnly bool) ([]*structs.JobDefinition, error)
	Instances(ctx context.Context, q *structs.Query) ([]*structs.JobInstance, error)
}

type Server interface {
	ServeForever(api API) error
	Close() error
}

// ScheduleRequest asks for an instance of a definition to be created now.
type ScheduleRequest struct {
	DefinitionID string `json:"definition_id"`

	// Full, if set, forces a full (true) or incremental (false) run. Otherwise the
	// full/incremental policy decides.
	Full *bool `json:"full,omitempty"`

	// Reprocessing processes all fresh upstream results again, including those a previous
	// run already consumed.
	Reprocessing bool `json:"reprocessing"`
}

// JobQuery filters tracked engine jobs.
type JobQuery struct {
	Statuses []engine.Status `json:"statuses,omitempty"`
}

// Matches reports if the job info passes the filter.
func (q *JobQuery) Matches(in *engine.Info) bool {
	if q == nil || len(q.Statuses) == 0 {
		return true
	}
	for _, s := range q.Statuses {
		if s == in.Status {
			return true
		}
	}
	return false
}
