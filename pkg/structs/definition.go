package structs

import (
	"time"
)

// metadataVersion is bumped whenever the shape of DefinitionMetadata changes.
const metadataVersion = 1

// DefinitionMetadata is state stashed on a job definition between runs.
type DefinitionMetadata struct {
	// Version is the schema version of this struct as it was written.
	Version int `json:"version" yaml:"version"`

	// LastConfigVersion is the integration config version last processed by a full run.
	// Nil if no run has recorded one yet.
	LastConfigVersion *int64 `json:"last_config_version,omitempty" yaml:"last_config_version,omitempty"`

	// UpdatedAt is when this metadata was last changed.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// MetadataPatch is a partial update to DefinitionMetadata. Nil fields are left alone.
type MetadataPatch struct {
	LastConfigVersion *int64 `json:"last_config_version,omitempty"`
}

// IsEmpty returns true if the patch changes nothing.
func (p *MetadataPatch) IsEmpty() bool {
	return p == nil || p.LastConfigVersion == nil
}

// Merge returns a copy of the metadata with the patch applied.
func (m DefinitionMetadata) Merge(p *MetadataPatch, at time.Time) DefinitionMetadata {
	if p.IsEmpty() {
		return m
	}
	out := m
	out.Version = metadataVersion
	if p.LastConfigVersion != nil {
		v := *p.LastConfigVersion
		out.LastConfigVersion = &v
	}
	out.UpdatedAt = at
	return out
}

// DefinitionSpec are fields that can be set when a definition is created
type DefinitionSpec struct {
	// TenantID is the tenant that owns the integration.
	TenantID string `json:"tenant_id" yaml:"tenant_id"`

	// IntegrationID is the id of the integration (within the tenant) this job scans.
	IntegrationID string `json:"integration_id" yaml:"integration_id"`

	// IntegrationType is the kind of tracker (eg. "github", "jira").
	IntegrationType string `json:"integration_type" yaml:"integration_type"`

	// Pipeline is the name of the registered pipeline that processes this job.
	Pipeline string `json:"pipeline" yaml:"pipeline"`

	// DefaultPriority is copied onto every instance of this definition.
	DefaultPriority int64 `json:"default_priority" yaml:"default_priority"`

	// MaxAttempts is the number of times an instance may enter RUNNING.
	MaxAttempts int64 `json:"max_attempts" yaml:"max_attempts"`

	// TimeoutMinutes bounds the runtime of a single attempt. 0 means no timeout.
	TimeoutMinutes int64 `json:"timeout_minutes" yaml:"timeout_minutes"`

	// FullFrequencyMinutes is how often a scheduled full rescan is forced.
	// 0 or less disables periodic full rescans.
	FullFrequencyMinutes int64 `json:"full_frequency_minutes" yaml:"full_frequency_minutes"`
}

// JobDefinition is the recurring configuration for a tenant / integration / pipeline.
type JobDefinition struct {
	DefinitionSpec `json:",inline" yaml:",inline"`

	// ID is a unique identifier for this definition
	ID string `json:"id" yaml:"id"`

	// Active definitions are picked up by the scheduling loop.
	Active bool `json:"active" yaml:"active"`

	// Metadata is state carried between runs.
	Metadata DefinitionMetadata `json:"metadata" yaml:"metadata"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// WithMetadata returns a copy of the definition with the given metadata.
func (d JobDefinition) WithMetadata(m DefinitionMetadata) JobDefinition {
	d.Metadata = m
	d.UpdatedAt = m.UpdatedAt
	return d
}

// WithActive returns a copy of the definition with the active flag set.
func (d JobDefinition) WithActive(active bool, at time.Time) JobDefinition {
	d.Active = active
	d.UpdatedAt = at
	return d
}

// FullFrequency returns the periodic full rescan frequency as a duration.
func (d JobDefinition) FullFrequency() time.Duration {
	return time.Duration(d.FullFrequencyMinutes) * time.Minute
}
