package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voidshard/harvester/pkg/errors"
)

func TestStatusText(t *testing.T) {
	cases := []struct {
		Name   string
		In     string
		Expect Status
		Err    error
	}{
		{Name: "Submitted", In: "SUBMITTED", Expect: SUBMITTED},
		{Name: "Running", In: "RUNNING", Expect: RUNNING},
		{Name: "Success", In: "SUCCESS", Expect: SUCCESS},
		{Name: "Failure", In: "FAILURE", Expect: FAILURE},
		{Name: "Cancelled", In: "CANCELLED", Expect: CANCELLED},
		{Name: "LowerCase", In: "running", Err: errors.ErrInvalidArg},
		{Name: "Unknown", In: "UNKNOWN", Err: errors.ErrInvalidArg},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			var s Status
			err := s.UnmarshalText([]byte(c.In))

			if c.Err != nil {
				assert.ErrorIs(t, err, c.Err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, c.Expect, s)
			assert.Equal(t, c.In, s.String())
		})
	}
}

func TestStatusIsDone(t *testing.T) {
	assert.False(t, SUBMITTED.IsDone())
	assert.False(t, RUNNING.IsDone())
	assert.True(t, SUCCESS.IsDone())
	assert.True(t, FAILURE.IsDone())
	assert.True(t, CANCELLED.IsDone())
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Status{"status": CANCELLED})
	assert.NoError(t, err)
	assert.Equal(t, `{"status":"CANCELLED"}`, string(data))

	out := map[string]Status{}
	assert.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, CANCELLED, out["status"])
}
