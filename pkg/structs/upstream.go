package structs

import (
	"encoding/json"
	"sort"
)

// UpstreamResult describes one batch of raw data produced by an upstream ingestion run.
type UpstreamResult struct {
	// JobID identifies the ingestion job that produced the batch.
	JobID string `json:"job_id"`

	// DataType tags what the batch contains (eg. "issues", "commits").
	DataType string `json:"data_type"`

	// Index orders batches of the same trigger.
	Index int64 `json:"index"`
}

// Payload is the set of upstream results a job instance consumes, grouped by data type.
type Payload struct {
	Results map[string][]UpstreamResult `json:"results"`
}

// NewPayload groups the given results by data type, each group ordered by Index.
func NewPayload(in []UpstreamResult) *Payload {
	p := &Payload{Results: map[string][]UpstreamResult{}}
	for _, r := range in {
		p.Results[r.DataType] = append(p.Results[r.DataType], r)
	}
	for _, rs := range p.Results {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Index < rs[j].Index })
	}
	return p
}

// ResultIDs returns the upstream job ids consumed by this payload.
func (p *Payload) ResultIDs() []string {
	if p == nil {
		return nil
	}
	seen := map[string]bool{}
	out := []string{}
	types := make([]string, 0, len(p.Results))
	for dt := range p.Results {
		types = append(types, dt)
	}
	sort.Strings(types)
	for _, dt := range types {
		for _, r := range p.Results[dt] {
			if seen[r.JobID] {
				continue
			}
			seen[r.JobID] = true
			out = append(out, r.JobID)
		}
	}
	return out
}

// ForDataType returns results of the given type in ascending Index order.
// If latestOnly is set only the highest indexed result is returned.
func (p *Payload) ForDataType(dataType string, latestOnly bool) []UpstreamResult {
	if p == nil {
		return nil
	}
	rs := p.Results[dataType]
	if len(rs) == 0 {
		return nil
	}
	if latestOnly {
		return []UpstreamResult{rs[len(rs)-1]}
	}
	return rs
}

// Len returns the total number of results in the payload.
func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, rs := range p.Results {
		n += len(rs)
	}
	return n
}

// Page is one page of entities read from an upstream result.
type Page struct {
	// Result is the upstream result the page was read from.
	Result UpstreamResult `json:"result"`

	// Number is the zero based page number within the result.
	Number int `json:"number"`

	// Entities are the raw records; stages decode them into their own types.
	Entities []json.RawMessage `json:"entities"`
}
