package structs

// Kind is the type of persisted object.
//
// Kinds double as table names in the job store, so a Kind pins both what an object is
// and where it lives.
type Kind string

const (
	// KindDefinition is a job definition
	KindDefinition Kind = "job_definition"

	// KindInstance is a job instance
	KindInstance Kind = "job_instance"

	// KindPayload is the out-of-band payload of a job instance
	KindPayload Kind = "job_payload"
)
