package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidshard/harvester/internal/utils"
	"github.com/voidshard/harvester/pkg/errors"
)

func TestLoadSeed(t *testing.T) {
	in := `
definitions:
  - id: 0b6c3a5e-4d0e-4c7b-9a3e-6f5d2b1c8e7a
    tenant_id: acme
    integration_id: gh-1
    integration_type: github
    pipeline: audit
    default_priority: 5
    max_attempts: 5
    timeout_minutes: 60
    full_frequency_minutes: 1440
    active: true
  - tenant_id: acme
    integration_id: jira-1
    integration_type: jira
    pipeline: audit
`
	defs, err := loadSeed(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "0b6c3a5e-4d0e-4c7b-9a3e-6f5d2b1c8e7a", defs[0].ID)
	assert.Equal(t, "acme", defs[0].TenantID)
	assert.Equal(t, "github", defs[0].IntegrationType)
	assert.Equal(t, int64(5), defs[0].DefaultPriority)
	assert.Equal(t, int64(5), defs[0].MaxAttempts)
	assert.Equal(t, int64(60), defs[0].TimeoutMinutes)
	assert.Equal(t, int64(1440), defs[0].FullFrequencyMinutes)
	assert.True(t, defs[0].Active)

	assert.True(t, utils.IsValidID(defs[1].ID))
	assert.Equal(t, int64(defaultSeedMaxAttempts), defs[1].MaxAttempts)
	assert.False(t, defs[1].Active)
	assert.False(t, defs[1].CreatedAt.IsZero())
}

func TestLoadSeedInvalid(t *testing.T) {
	cases := []struct {
		Name string
		In   string
	}{
		{"NotYaml", "definitions: [\n"},
		{"MissingPipeline", "definitions:\n  - tenant_id: a\n    integration_id: b\n"},
		{"MissingTenant", "definitions:\n  - integration_id: b\n    pipeline: p\n"},
		{"BadID", "definitions:\n  - id: nope\n    tenant_id: a\n    integration_id: b\n    pipeline: p\n"},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			_, err := loadSeed(strings.NewReader(c.In))
			assert.ErrorIs(t, err, errors.ErrInvalidArg)
		})
	}
}
