package structs

const (
	queryLimitDefault = 1000
	queryLimitMax     = 10000
)

// Query filters job instances.
//
// Results are always ordered most recent (highest InstanceID) first.
type Query struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Filters
	DefinitionIDs []string `json:"definition_ids,omitempty"`
	Statuses      []Status `json:"statuses,omitempty"`
	Tags          []Tag    `json:"tags,omitempty"`

	// IsFull, if set, matches only full (true) or incremental (false) instances
	IsFull *bool `json:"is_full,omitempty"`

	// BeforeInstanceID, if > 0, matches only instances older than the given id
	BeforeInstanceID int64 `json:"before_instance_id,omitempty"`
}

func (q *Query) Sanitize() {
	if q.Limit <= 0 {
		q.Limit = queryLimitDefault
	}
	if q.Limit > queryLimitMax {
		q.Limit = queryLimitMax
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.BeforeInstanceID < 0 {
		q.BeforeInstanceID = 0
	}
	if len(q.DefinitionIDs) == 0 {
		q.DefinitionIDs = nil
	}
	if len(q.Statuses) == 0 {
		q.Statuses = nil
	}
	if len(q.Tags) == 0 {
		q.Tags = nil
	}
}

// Matches reports whether the instance passes the query filters (limit & offset aside).
func (q *Query) Matches(in *JobInstance) bool {
	if q.DefinitionIDs != nil && !containsString(q.DefinitionIDs, in.DefinitionID) {
		return false
	}
	if q.Statuses != nil {
		found := false
		for _, s := range q.Statuses {
			if s == in.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, t := range q.Tags {
		if !in.HasTag(t) {
			return false
		}
	}
	if q.IsFull != nil && *q.IsFull != in.IsFull {
		return false
	}
	if q.BeforeInstanceID > 0 && in.InstanceID >= q.BeforeInstanceID {
		return false
	}
	return true
}

func containsString(in []string, s string) bool {
	for _, x := range in {
		if x == s {
			return true
		}
	}
	return false
}
