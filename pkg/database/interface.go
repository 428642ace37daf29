package database

import (
	"context"
	"time"

	"github.com/voidshard/harvester/pkg/structs"
)

// InstanceIterator walks job instances lazily, most recent first.
//
// Next returns (nil, nil) once the stream is exhausted. Callers may stop early; Close must
// always be called.
type InstanceIterator interface {
	Next(ctx context.Context) (*structs.JobInstance, error)
	Close() error
}

// Database is the job store.
type Database interface {
	InsertDefinition(ctx context.Context, def *structs.JobDefinition) error
	SetDefinitionActive(ctx context.Context, id string, active bool) (int64, error)
	Definition(ctx context.Context, id string) (*structs.JobDefinition, error)
	Definitions(ctx context.Context, activeOnly bool) ([]*structs.JobDefinition, error)

	// InsertInstance assigns the next instance id of the instance's definition, inserts it
	// and merges the given metadata patch into the definition, all in one transaction.
	InsertInstance(ctx context.Context, in *structs.JobInstance, patch *structs.MetadataPatch) (int64, error)

	// UpdateInstanceStatus sets the status of the referenced instance, provided the etag
	// matches. Moving to RUNNING increments the attempt count.
	UpdateInstanceStatus(ctx context.Context, ref *structs.InstanceRef, status structs.Status, newTag string, msg string) (int64, error)

	// UpdateInstanceProgress overwrites the checkpointed progress of an instance.
	UpdateInstanceProgress(ctx context.Context, definitionID string, instanceID int64, progress map[string]int64, details map[string]*structs.ProgressDetail) error

	// SetInstancePayload stores the payload of an instance (out of band).
	SetInstancePayload(ctx context.Context, definitionID string, instanceID int64, payload *structs.Payload) error

	Instance(ctx context.Context, definitionID string, instanceID int64) (*structs.JobInstance, error)
	Instances(ctx context.Context, q *structs.Query) ([]*structs.JobInstance, error)

	// LastFullInstance returns the most recent full instance of the definition matching
	// the query, or nil if there is none.
	LastFullInstance(ctx context.Context, definitionID string, q *structs.Query) (*structs.JobInstance, error)

	// StreamInstances returns a lazy iterator over instances matching the query,
	// most recent first. Limit sets the page size, not a bound on the stream.
	StreamInstances(ctx context.Context, q *structs.Query) (InstanceIterator, error)

	Close() error
}

// Integrations exposes what we know about an integration's ingestion & aggregation state.
type Integrations interface {
	// ConfigVersion returns the current config version of the integration.
	ConfigVersion(ctx context.Context, tenantID, integrationID string) (int64, error)

	// SnapshottingEnabled returns if the tenant aggregates this integration in daily snapshots.
	SnapshottingEnabled(ctx context.Context, tenantID, integrationID string) (bool, error)

	// LastAggregatedAt returns when the integration was last aggregated, nil if never.
	LastAggregatedAt(ctx context.Context, tenantID, integrationID string) (*time.Time, error)
}

// Upstream gives access to the results of upstream ingestion runs.
type Upstream interface {
	// FreshResults lists the upstream results currently available for the integration,
	// ordered by Index.
	FreshResults(ctx context.Context, tenantID, integrationID string) ([]structs.UpstreamResult, error)

	// ReadPages calls fn for each page of entities of the result, in order.
	// Reading stops at the first error returned by fn.
	ReadPages(ctx context.Context, result structs.UpstreamResult, fn func(page *structs.Page) error) error
}
