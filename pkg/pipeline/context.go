package pipeline

import (
	"sync"
	"time"

	"github.com/voidshard/harvester/pkg/structs"
)

// JobContext is handed to every hook & stage of a run.
type JobContext struct {
	TenantID        string `json:"tenant_id"`
	IntegrationID   string `json:"integration_id"`
	IntegrationType string `json:"integration_type"`

	DefinitionID string `json:"definition_id"`
	InstanceID   int64  `json:"instance_id"`
	Pipeline     string `json:"pipeline"`

	ScheduledStartTime time.Time `json:"scheduled_start_time"`

	IsFull         bool `json:"is_full"`
	IsReprocessing bool `json:"is_reprocessing"`

	// CallbackURL, if set, receives the terminal state of the run.
	CallbackURL string `json:"callback_url,omitempty"`

	// Payload is set by the runner before any stage is called.
	Payload *structs.Payload `json:"payload,omitempty"`

	// Progress starts from whatever the instance last checkpointed.
	Progress *Progress `json:"-"`
}

// NewJobContext builds the context for running an instance of def.
func NewJobContext(def *structs.JobDefinition, in *structs.JobInstance) *JobContext {
	return &JobContext{
		TenantID:           def.TenantID,
		IntegrationID:      def.IntegrationID,
		IntegrationType:    def.IntegrationType,
		DefinitionID:       in.DefinitionID,
		InstanceID:         in.InstanceID,
		Pipeline:           in.Pipeline,
		ScheduledStartTime: in.ScheduledStartTime,
		IsFull:             in.IsFull,
		IsReprocessing:     in.IsReprocessing,
		Payload:            in.Payload,
		Progress:           NewProgress(in.Progress, in.ProgressDetails),
	}
}

// ID returns a process-wide unique id for the run.
func (j *JobContext) ID() string {
	return structs.InstanceKey(j.DefinitionID, j.InstanceID)
}

// Progress is checkpointable progress, safe to read while a run is updating it.
type Progress struct {
	lock    sync.Mutex
	counts  map[string]int64
	details map[string]*structs.ProgressDetail
}

// NewProgress returns progress seeded with copies of the given maps.
func NewProgress(counts map[string]int64, details map[string]*structs.ProgressDetail) *Progress {
	p := &Progress{counts: map[string]int64{}, details: map[string]*structs.ProgressDetail{}}
	for k, v := range counts {
		p.counts[k] = v
	}
	for k, v := range details {
		p.details[k] = v.Copy()
	}
	return p
}

// Add counts n processed entities for the stage.
func (p *Progress) Add(stage string, n int64) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.counts[stage] += n
	d := p.detail(stage)
	d.Processed += n
	d.UpdatedAt = time.Now().UTC()
}

// Complete records the upstream result as fully processed by the stage.
func (p *Progress) Complete(stage, resultID string) {
	p.lock.Lock()
	defer p.lock.Unlock()

	d := p.detail(stage)
	for _, r := range d.Results {
		if r == resultID {
			return
		}
	}
	d.Results = append(d.Results, resultID)
	d.UpdatedAt = time.Now().UTC()
}

// Completed returns true if a checkpoint says the stage finished the upstream result.
func (p *Progress) Completed(stage, resultID string) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	d, ok := p.details[stage]
	if !ok {
		return false
	}
	for _, r := range d.Results {
		if r == resultID {
			return true
		}
	}
	return false
}

// Snapshot returns copies of the current counts & details.
func (p *Progress) Snapshot() (map[string]int64, map[string]*structs.ProgressDetail) {
	p.lock.Lock()
	defer p.lock.Unlock()

	counts := make(map[string]int64, len(p.counts))
	for k, v := range p.counts {
		counts[k] = v
	}
	details := make(map[string]*structs.ProgressDetail, len(p.details))
	for k, v := range p.details {
		details[k] = v.Copy()
	}
	return counts, details
}

// detail returns the detail for stage, creating it if needed. Caller holds the lock.
func (p *Progress) detail(stage string) *structs.ProgressDetail {
	d, ok := p.details[stage]
	if !ok {
		d = &structs.ProgressDetail{}
		p.details[stage] = d
	}
	return d
}
