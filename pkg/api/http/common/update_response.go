package common

// UpdateResponse is the response from an update operation, specific to HTTP.
type UpdateResponse struct {
	// Updated is the number of objects updated.
	Updated int64 `json:"updated"`
}
