package common

const (
	// API_HEALTH reports if the server is up
	API_HEALTH = "/healthz"

	// API_JOBS is used to list the jobs tracked by a worker's engine
	API_JOBS = "/api/v1/jobs"

	// API_JOB addresses a single tracked job (DELETE clears it)
	API_JOB = "/api/v1/jobs/{id:.+}"

	// API_CANCEL is used to cancel a tracked job
	API_CANCEL = "/api/v1/jobs/{id:.+}/cancel"

	// API_SCHEDULE is used to manually create & enqueue an instance
	API_SCHEDULE = "/api/v1/schedule"

	// API_DEFINITIONS is used to list job definitions
	API_DEFINITIONS = "/api/v1/definitions"

	// API_INSTANCES is used to list job instances
	API_INSTANCES = "/api/v1/instances"
)

// JobPath returns the path addressing a tracked job.
func JobPath(id string) string {
	return API_JOBS + "/" + id
}

// CancelPath returns the path used to cancel a tracked job.
func CancelPath(id string) string {
	return JobPath(id) + "/cancel"
}
