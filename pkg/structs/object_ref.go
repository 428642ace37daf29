package structs

import (
	"fmt"
)

// InstanceRef is a reference to a unique job instance & version.
type InstanceRef struct {
	// DefinitionID is the job definition the instance belongs to.
	DefinitionID string `json:"definition_id"`

	// InstanceID is the id of the instance, scoped to its definition.
	InstanceID int64 `json:"instance_id"`

	// ETag is the version of this instance.
	ETag string `json:"etag"`
}

// NewInstanceRef creates a new InstanceRef.
func NewInstanceRef(definitionID string, instanceID int64, etag string) *InstanceRef {
	return &InstanceRef{DefinitionID: definitionID, InstanceID: instanceID, ETag: etag}
}

// Key returns a process-wide unique key for the referenced instance.
func (o *InstanceRef) Key() string {
	return InstanceKey(o.DefinitionID, o.InstanceID)
}

// InstanceKey joins a definition id & instance id into a single unique key.
func InstanceKey(definitionID string, instanceID int64) string {
	return fmt.Sprintf("%s/%d", definitionID, instanceID)
}
