package queue

import (
	"encoding/json"
	"fmt"

	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

// Meta identifies the job instance a queued task refers to.
type Meta struct {
	DefinitionID string `json:"definition_id"`
	InstanceID   int64  `json:"instance_id"`

	// Retried is how many times this task has been handed out before.
	Retried int `json:"-"`

	skip bool
}

func newMeta(in *structs.JobInstance) *Meta {
	return &Meta{DefinitionID: in.DefinitionID, InstanceID: in.InstanceID}
}

// Key returns the key of the instance this task refers to.
func (m *Meta) Key() string {
	return structs.InstanceKey(m.DefinitionID, m.InstanceID)
}

// SetSkip will cause the task to be dropped, even if the handler returns an error.
//
// Skip trumps retries; we're essentially saying "I no longer care about this."
func (m *Meta) SetSkip() {
	m.skip = true
}

func (m *Meta) encode() ([]byte, error) {
	return json.Marshal(m)
}

func decodeMeta(in []byte) (*Meta, error) {
	m := &Meta{}
	err := json.Unmarshal(in, m)
	if err != nil {
		return nil, fmt.Errorf("%w failed to decode task payload: %v", errors.ErrInvalidArg, err)
	}
	if m.DefinitionID == "" || m.InstanceID <= 0 {
		return nil, fmt.Errorf("%w task payload missing instance reference", errors.ErrInvalidArg)
	}
	return m, nil
}

// Skipped returns true if SetSkip was called.
func (m *Meta) Skipped() bool {
	return m.skip
}
