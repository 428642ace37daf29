package structs

import (
	"time"
)

// Tag marks where an instance came from.
type Tag string

const (
	// TagSchedulerCreated is set on instances created by the scheduling loop
	TagSchedulerCreated Tag = "scheduler-created"

	// TagManuallyCreated is set on instances created on request (ie. via the API)
	TagManuallyCreated Tag = "manually-created"
)

// ProgressDetail is structured progress for one stage.
type ProgressDetail struct {
	// Processed is the number of entities processed so far.
	Processed int64 `json:"processed"`

	// Results are the upstream job ids fully processed by the stage.
	Results []string `json:"results,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Copy returns a deep copy. A nil detail copies to an empty one.
func (d *ProgressDetail) Copy() *ProgressDetail {
	if d == nil {
		return &ProgressDetail{}
	}
	out := *d
	out.Results = append([]string(nil), d.Results...)
	return &out
}

// JobInstance is one concrete scheduled or triggered execution of a JobDefinition.
type JobInstance struct {
	// DefinitionID is the definition this instance belongs to
	DefinitionID string `json:"definition_id"`

	// InstanceID increases monotonically per definition
	InstanceID int64 `json:"instance_id"`

	// Status is the current status of this instance
	Status Status `json:"status"`

	// ETag is used when updating status for optimistic locking
	ETag string `json:"etag"`

	// Pipeline is copied from the definition at scheduling time
	Pipeline string `json:"pipeline"`

	ScheduledStartTime time.Time `json:"scheduled_start_time"`
	StatusChangedAt    time.Time `json:"status_changed_at"`

	// AttemptCount is incremented each time the instance enters RUNNING
	AttemptCount int64 `json:"attempt_count"`
	AttemptMax   int64 `json:"attempt_max"`

	Priority       int64 `json:"priority"`
	TimeoutMinutes int64 `json:"timeout_minutes"`

	IsFull         bool  `json:"is_full"`
	IsReprocessing bool  `json:"is_reprocessing"`
	Tags           []Tag `json:"tags"`

	// Progress is stage name -> units of work checkpointed
	Progress map[string]int64 `json:"progress"`

	// ProgressDetails is stage name -> structured detail
	ProgressDetails map[string]*ProgressDetail `json:"progress_details"`

	// Payload is nil until computed by the worker running the instance.
	// Stores may keep it out of band and hydrate it lazily.
	Payload *Payload `json:"payload,omitempty"`

	// Error is the verbatim failure reason, if any
	Error string `json:"error,omitempty"`
}

// Key returns a process-wide unique key for this instance.
func (i *JobInstance) Key() string {
	return InstanceKey(i.DefinitionID, i.InstanceID)
}

// Ref returns a reference pinning this instance & version.
func (i *JobInstance) Ref() *InstanceRef {
	return NewInstanceRef(i.DefinitionID, i.InstanceID, i.ETag)
}

// HasTag returns true if the instance carries the tag.
func (i *JobInstance) HasTag(t Tag) bool {
	for _, x := range i.Tags {
		if x == t {
			return true
		}
	}
	return false
}

// Timeout returns the per attempt timeout, 0 if unbounded.
func (i *JobInstance) Timeout() time.Duration {
	return time.Duration(i.TimeoutMinutes) * time.Minute
}

// Copy returns a deep copy of the instance.
func (i *JobInstance) Copy() *JobInstance {
	out := *i
	out.Tags = append([]Tag(nil), i.Tags...)
	out.Progress = make(map[string]int64, len(i.Progress))
	for k, v := range i.Progress {
		out.Progress[k] = v
	}
	out.ProgressDetails = make(map[string]*ProgressDetail, len(i.ProgressDetails))
	for k, v := range i.ProgressDetails {
		out.ProgressDetails[k] = v.Copy()
	}
	if i.Payload != nil {
		out.Payload = &Payload{Results: make(map[string][]UpstreamResult, len(i.Payload.Results))}
		for k, v := range i.Payload.Results {
			out.Payload.Results[k] = append([]UpstreamResult(nil), v...)
		}
	}
	return &out
}

// WithStatus returns a copy of the instance moved to the given status.
// Entering RUNNING counts as an attempt.
func (i *JobInstance) WithStatus(st Status, at time.Time, etag string) *JobInstance {
	out := i.Copy()
	out.Status = st
	out.StatusChangedAt = at
	out.ETag = etag
	if st == RUNNING {
		out.AttemptCount++
	}
	return out
}

// WithPayload returns a copy of the instance carrying the given payload.
func (i *JobInstance) WithPayload(p *Payload) *JobInstance {
	out := i.Copy()
	out.Payload = p
	return out
}

// WithError returns a copy of the instance with the failure reason set.
func (i *JobInstance) WithError(err error) *JobInstance {
	out := i.Copy()
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
