package structs

import (
	"strings"
)

// Status is the status of a job instance.
type Status string

const (
	// transient states
	SCHEDULED Status = "SCHEDULED"
	PENDING   Status = "PENDING"
	RUNNING   Status = "RUNNING"

	// end states
	SUCCESS Status = "SUCCESS"
	FAILURE Status = "FAILURE"
)

// ActiveStatuses are the states in which an instance still owns its definition.
var ActiveStatuses = []Status{SCHEDULED, PENDING, RUNNING}

func IsFinalStatus(status Status) bool {
	switch status {
	case SUCCESS, FAILURE:
		return true
	default:
		return false
	}
}

// CanTransition reports whether an instance may move from one status to another.
//
// SCHEDULED -> PENDING -> RUNNING -> SUCCESS | FAILURE
//
// Any non final state may also fail outright, and a failed instance may be picked up again
// (PENDING) by whoever retries it; the attempt counter guards how often that happens.
func CanTransition(from, to Status) bool {
	switch to {
	case PENDING:
		return from == SCHEDULED || from == FAILURE
	case RUNNING:
		return from == PENDING
	case SUCCESS:
		return from == RUNNING
	case FAILURE:
		return !IsFinalStatus(from)
	default:
		return false
	}
}

func ToStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "SCHEDULED":
		return SCHEDULED
	case "PENDING":
		return PENDING
	case "RUNNING":
		return RUNNING
	case "SUCCESS":
		return SUCCESS
	case "FAILURE":
		return FAILURE
	default:
		return ""
	}
}
