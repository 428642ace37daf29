package structs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFinalStatus(t *testing.T) {
	cases := []struct {
		Name   string
		Given  Status
		Expect bool
	}{
		{"StatusUndefined", "x", false},
		{"StatusScheduled", SCHEDULED, false},
		{"StatusPending", PENDING, false},
		{"StatusRunning", RUNNING, false},
		{"StatusSuccess", SUCCESS, true},
		{"StatusFailure", FAILURE, true},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Expect, IsFinalStatus(c.Given))
		})
	}
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		Name   string
		Given  string
		Expect Status
	}{
		{"StatusUndefined", "x", ""},
		{"StatusScheduled", "SCHEDULED", SCHEDULED},
		{"StatusPending", "pending", PENDING},
		{"StatusRunning", "RUNNING", RUNNING},
		{"StatusSuccess", "Success", SUCCESS},
		{"StatusFailure", "FAILURE", FAILURE},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Expect, ToStatus(c.Given))
		})
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		Name   string
		From   Status
		To     Status
		Expect bool
	}{
		{"ScheduledToPending", SCHEDULED, PENDING, true},
		{"ScheduledToRunning", SCHEDULED, RUNNING, false},
		{"PendingToRunning", PENDING, RUNNING, true},
		{"RunningToSuccess", RUNNING, SUCCESS, true},
		{"RunningToFailure", RUNNING, FAILURE, true},
		{"PendingToFailure", PENDING, FAILURE, true},
		{"PendingToSuccess", PENDING, SUCCESS, false},
		{"SuccessToFailure", SUCCESS, FAILURE, false},
		{"FailureToPending", FAILURE, PENDING, true},
		{"SuccessToPending", SUCCESS, PENDING, false},
		{"ToUnknown", RUNNING, "x", false},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Expect, CanTransition(c.From, c.To))
		})
	}
}
