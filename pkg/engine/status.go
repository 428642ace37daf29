package engine

import (
	"fmt"

	"github.com/voidshard/harvester/pkg/errors"
)

// Status of a job tracked by the engine. SUCCESS, FAILURE & CANCELLED are "done".
type Status int32

const (
	SUBMITTED Status = iota
	RUNNING
	SUCCESS
	FAILURE
	CANCELLED
)

func (s Status) String() string {
	switch s {
	case SUBMITTED:
		return "SUBMITTED"
	case RUNNING:
		return "RUNNING"
	case SUCCESS:
		return "SUCCESS"
	case FAILURE:
		return "FAILURE"
	case CANCELLED:
		return "CANCELLED"
	}
	return "UNKNOWN"
}

// IsDone returns true for terminal statuses.
func (s Status) IsDone() bool {
	return s == SUCCESS || s == FAILURE || s == CANCELLED
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status rendered by MarshalText.
func (s *Status) UnmarshalText(in []byte) error {
	for _, st := range []Status{SUBMITTED, RUNNING, SUCCESS, FAILURE, CANCELLED} {
		if st.String() == string(in) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("%w unknown status %q", errors.ErrInvalidArg, string(in))
}
