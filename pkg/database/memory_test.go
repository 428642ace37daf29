package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

func newTestDefinition(id string) *structs.JobDefinition {
	return &structs.JobDefinition{
		DefinitionSpec: structs.DefinitionSpec{
			TenantID:        "tenant",
			IntegrationID:   "integration",
			IntegrationType: "github",
			Pipeline:        "issues",
			MaxAttempts:     3,
		},
		ID:     id,
		Active: true,
	}
}

func TestMemoryInsertInstance(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertDefinition(ctx, newTestDefinition("a")))

	v := int64(7)
	for i := 1; i <= 3; i++ {
		id, err := m.InsertInstance(ctx, &structs.JobInstance{DefinitionID: "a", Status: structs.SCHEDULED}, &structs.MetadataPatch{LastConfigVersion: &v})
		assert.NoError(t, err)
		assert.Equal(t, int64(i), id)
	}

	def, err := m.Definition(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, int64(7), *def.Metadata.LastConfigVersion)
	assert.Equal(t, 1, def.Metadata.Version)

	_, err = m.InsertInstance(ctx, &structs.JobInstance{DefinitionID: "nope"}, nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMemoryUpdateInstanceStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertDefinition(ctx, newTestDefinition("a")))
	_, err := m.InsertInstance(ctx, &structs.JobInstance{DefinitionID: "a", Status: structs.PENDING, ETag: "e1"}, nil)
	require.NoError(t, err)

	altered, err := m.UpdateInstanceStatus(ctx, structs.NewInstanceRef("a", 1, "wrong"), structs.RUNNING, "e2", "")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), altered)

	altered, err = m.UpdateInstanceStatus(ctx, structs.NewInstanceRef("a", 1, "e1"), structs.RUNNING, "e2", "")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), altered)

	in, err := m.Instance(ctx, "a", 1)
	assert.NoError(t, err)
	assert.Equal(t, structs.RUNNING, in.Status)
	assert.Equal(t, "e2", in.ETag)
	assert.Equal(t, int64(1), in.AttemptCount)
}

func TestMemoryStreamInstances(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertDefinition(ctx, newTestDefinition("a")))
	for i := 0; i < 5; i++ {
		in := &structs.JobInstance{DefinitionID: "a", Status: structs.SUCCESS, IsFull: i == 1}
		if i == 1 {
			in.Payload = structs.NewPayload([]structs.UpstreamResult{{JobID: "j1", DataType: "issue", Index: 1}})
		}
		_, err := m.InsertInstance(ctx, in, nil)
		require.NoError(t, err)
	}

	it, err := m.StreamInstances(ctx, &structs.Query{DefinitionIDs: []string{"a"}, Limit: 2})
	require.NoError(t, err)
	defer it.Close()

	seen := []int64{}
	for {
		in, err := it.Next(ctx)
		require.NoError(t, err)
		if in == nil {
			break
		}
		seen = append(seen, in.InstanceID)
		if in.InstanceID == 2 {
			assert.True(t, in.IsFull)
			assert.Equal(t, []string{"j1"}, in.Payload.ResultIDs())
		}
	}
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, seen)

	last, err := m.LastFullInstance(ctx, "a", nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), last.InstanceID)
}

func TestMemoryIntegrations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := m.ConfigVersion(ctx, "t", "i")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	m.SetIntegration("t", "i", 4, true, &at)

	v, err := m.ConfigVersion(ctx, "t", "i")
	assert.NoError(t, err)
	assert.Equal(t, int64(4), v)

	enabled, err := m.SnapshottingEnabled(ctx, "t", "i")
	assert.NoError(t, err)
	assert.True(t, enabled)

	last, err := m.LastAggregatedAt(ctx, "t", "i")
	assert.NoError(t, err)
	assert.Equal(t, at, *last)
}

func TestMemoryReadPages(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	r := structs.UpstreamResult{JobID: "j1", DataType: "issue", Index: 1}

	entities := []json.RawMessage{}
	for i := 0; i < memoryPageSize+5; i++ {
		entities = append(entities, json.RawMessage(`{}`))
	}
	m.AddResult("t", "i", structs.UpstreamResult{JobID: "j2", DataType: "issue", Index: 2})
	m.AddResult("t", "i", r, entities...)

	fresh, err := m.FreshResults(ctx, "t", "i")
	assert.NoError(t, err)
	assert.Equal(t, "j1", fresh[0].JobID)

	sizes := []int{}
	err = m.ReadPages(ctx, r, func(p *structs.Page) error {
		assert.Equal(t, len(sizes), p.Number)
		sizes = append(sizes, len(p.Entities))
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []int{memoryPageSize, 5}, sizes)
}
