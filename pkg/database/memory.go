package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

const memoryPageSize = 100

type memIntegration struct {
	configVersion    int64
	snapshotting     bool
	lastAggregatedAt *time.Time
	results          []structs.UpstreamResult
}

type memDefinition struct {
	def    *structs.JobDefinition
	nextID int64
}

// Memory is an in-process Store. Nothing is persisted; it backs tests and single
// process dev setups ("memory://").
type Memory struct {
	lock sync.RWMutex

	definitions  map[string]*memDefinition
	instances    map[string]*structs.JobInstance
	payloads     map[string]*structs.Payload
	integrations map[string]*memIntegration
	entities     map[string][]json.RawMessage
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		definitions:  map[string]*memDefinition{},
		instances:    map[string]*structs.JobInstance{},
		payloads:     map[string]*structs.Payload{},
		integrations: map[string]*memIntegration{},
		entities:     map[string][]json.RawMessage{},
	}
}

func integrationKey(tenantID, integrationID string) string {
	return tenantID + "/" + integrationID
}

func resultKey(r structs.UpstreamResult) string {
	return r.JobID + "/" + r.DataType
}

// SetIntegration records the config & aggregation state of an integration.
func (m *Memory) SetIntegration(tenantID, integrationID string, configVersion int64, snapshotting bool, lastAggregatedAt *time.Time) {
	m.lock.Lock()
	defer m.lock.Unlock()

	i := m.integration(tenantID, integrationID)
	i.configVersion = configVersion
	i.snapshotting = snapshotting
	i.lastAggregatedAt = lastAggregatedAt
}

// AddResult makes an upstream result (and its entities) available to the integration.
func (m *Memory) AddResult(tenantID, integrationID string, r structs.UpstreamResult, entities ...json.RawMessage) {
	m.lock.Lock()
	defer m.lock.Unlock()

	i := m.integration(tenantID, integrationID)
	i.results = append(i.results, r)
	sort.SliceStable(i.results, func(a, b int) bool { return i.results[a].Index < i.results[b].Index })
	m.entities[resultKey(r)] = append(m.entities[resultKey(r)], entities...)
}

func (m *Memory) integration(tenantID, integrationID string) *memIntegration {
	k := integrationKey(tenantID, integrationID)
	i, ok := m.integrations[k]
	if !ok {
		i = &memIntegration{}
		m.integrations[k] = i
	}
	return i
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) InsertDefinition(ctx context.Context, def *structs.JobDefinition) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.definitions[def.ID]; ok {
		return fmt.Errorf("%w definition %s already exists", errors.ErrInvalidArg, def.ID)
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = timeNow()
		def.UpdatedAt = def.CreatedAt
	}
	cpy := *def
	m.definitions[def.ID] = &memDefinition{def: &cpy}
	return nil
}

func (m *Memory) SetDefinitionActive(ctx context.Context, id string, active bool) (int64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	d, ok := m.definitions[id]
	if !ok {
		return 0, nil
	}
	updated := d.def.WithActive(active, timeNow())
	d.def = &updated
	return 1, nil
}

func (m *Memory) Definition(ctx context.Context, id string) (*structs.JobDefinition, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	d, ok := m.definitions[id]
	if !ok {
		return nil, fmt.Errorf("%w definition %s", errors.ErrNotFound, id)
	}
	cpy := *d.def
	return &cpy, nil
}

func (m *Memory) Definitions(ctx context.Context, activeOnly bool) ([]*structs.JobDefinition, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	out := []*structs.JobDefinition{}
	for _, d := range m.definitions {
		if activeOnly && !d.def.Active {
			continue
		}
		cpy := *d.def
		out = append(out, &cpy)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) InsertInstance(ctx context.Context, in *structs.JobInstance, patch *structs.MetadataPatch) (int64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	d, ok := m.definitions[in.DefinitionID]
	if !ok {
		return 0, fmt.Errorf("%w definition %s", errors.ErrNotFound, in.DefinitionID)
	}

	now := timeNow()
	if !patch.IsEmpty() {
		updated := d.def.WithMetadata(d.def.Metadata.Merge(patch, now))
		d.def = &updated
	}

	d.nextID++
	in.InstanceID = d.nextID

	cpy := in.Copy()
	cpy.Payload = nil
	if cpy.Progress == nil {
		cpy.Progress = map[string]int64{}
	}
	m.instances[in.Key()] = cpy
	if in.Payload != nil {
		m.payloads[in.Key()] = in.Copy().Payload
	}
	return in.InstanceID, nil
}

func (m *Memory) UpdateInstanceStatus(ctx context.Context, ref *structs.InstanceRef, status structs.Status, newTag string, msg string) (int64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	in, ok := m.instances[ref.Key()]
	if !ok || in.ETag != ref.ETag {
		return 0, nil
	}
	out := in.WithStatus(status, timeNow(), newTag)
	out.Error = msg
	m.instances[ref.Key()] = out
	return 1, nil
}

func (m *Memory) UpdateInstanceProgress(ctx context.Context, definitionID string, instanceID int64, progress map[string]int64, details map[string]*structs.ProgressDetail) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	key := structs.InstanceKey(definitionID, instanceID)
	in, ok := m.instances[key]
	if !ok {
		return fmt.Errorf("%w instance %s", errors.ErrNotFound, key)
	}
	out := in.Copy()
	out.Progress = map[string]int64{}
	for k, v := range progress {
		out.Progress[k] = v
	}
	out.ProgressDetails = map[string]*structs.ProgressDetail{}
	for k, v := range details {
		out.ProgressDetails[k] = v.Copy()
	}
	m.instances[key] = out
	return nil
}

func (m *Memory) SetInstancePayload(ctx context.Context, definitionID string, instanceID int64, payload *structs.Payload) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	key := structs.InstanceKey(definitionID, instanceID)
	if _, ok := m.instances[key]; !ok {
		return fmt.Errorf("%w instance %s", errors.ErrNotFound, key)
	}
	m.payloads[key] = (&structs.JobInstance{Payload: payload}).Copy().Payload
	return nil
}

func (m *Memory) Instance(ctx context.Context, definitionID string, instanceID int64) (*structs.JobInstance, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	key := structs.InstanceKey(definitionID, instanceID)
	in, ok := m.instances[key]
	if !ok {
		return nil, fmt.Errorf("%w instance %s", errors.ErrNotFound, key)
	}
	return m.hydrate(in), nil
}

func (m *Memory) Instances(ctx context.Context, q *structs.Query) ([]*structs.JobInstance, error) {
	q.Sanitize()

	m.lock.RLock()
	defer m.lock.RUnlock()

	found := m.matching(q)
	if q.Offset >= len(found) {
		return []*structs.JobInstance{}, nil
	}
	found = found[q.Offset:]
	if len(found) > q.Limit {
		found = found[:q.Limit]
	}

	out := make([]*structs.JobInstance, 0, len(found))
	for _, in := range found {
		out = append(out, in.Copy())
	}
	return out, nil
}

func (m *Memory) LastFullInstance(ctx context.Context, definitionID string, q *structs.Query) (*structs.JobInstance, error) {
	full := true
	fq := structs.Query{}
	if q != nil {
		fq = *q
	}
	fq.DefinitionIDs = []string{definitionID}
	fq.IsFull = &full
	fq.Limit = 1
	fq.Offset = 0

	found, err := m.Instances(ctx, &fq)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func (m *Memory) StreamInstances(ctx context.Context, q *structs.Query) (InstanceIterator, error) {
	sq := structs.Query{}
	if q != nil {
		sq = *q
	}
	if sq.Limit <= 0 {
		sq.Limit = memoryPageSize
	}
	sq.Sanitize()
	return &memInstanceStream{db: m, q: &sq}, nil
}

// matching returns instances passing the query filters, most recent first.
// Caller holds the lock.
func (m *Memory) matching(q *structs.Query) []*structs.JobInstance {
	found := []*structs.JobInstance{}
	for _, in := range m.instances {
		if q.Matches(in) {
			found = append(found, in)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].InstanceID == found[j].InstanceID {
			return found[i].DefinitionID > found[j].DefinitionID
		}
		return found[i].InstanceID > found[j].InstanceID
	})
	return found
}

// hydrate returns a copy of the instance with its payload attached. Caller holds the lock.
func (m *Memory) hydrate(in *structs.JobInstance) *structs.JobInstance {
	out := in.Copy()
	if p, ok := m.payloads[in.Key()]; ok {
		out.Payload = (&structs.JobInstance{Payload: p}).Copy().Payload
	}
	return out
}

func (m *Memory) ConfigVersion(ctx context.Context, tenantID, integrationID string) (int64, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	i, ok := m.integrations[integrationKey(tenantID, integrationID)]
	if !ok {
		return 0, fmt.Errorf("%w integration %s/%s", errors.ErrNotFound, tenantID, integrationID)
	}
	return i.configVersion, nil
}

func (m *Memory) SnapshottingEnabled(ctx context.Context, tenantID, integrationID string) (bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	i, ok := m.integrations[integrationKey(tenantID, integrationID)]
	return ok && i.snapshotting, nil
}

func (m *Memory) LastAggregatedAt(ctx context.Context, tenantID, integrationID string) (*time.Time, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	i, ok := m.integrations[integrationKey(tenantID, integrationID)]
	if !ok || i.lastAggregatedAt == nil {
		return nil, nil
	}
	at := *i.lastAggregatedAt
	return &at, nil
}

func (m *Memory) FreshResults(ctx context.Context, tenantID, integrationID string) ([]structs.UpstreamResult, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	i, ok := m.integrations[integrationKey(tenantID, integrationID)]
	if !ok {
		return []structs.UpstreamResult{}, nil
	}
	return append([]structs.UpstreamResult{}, i.results...), nil
}

func (m *Memory) ReadPages(ctx context.Context, result structs.UpstreamResult, fn func(page *structs.Page) error) error {
	m.lock.RLock()
	all := append([]json.RawMessage{}, m.entities[resultKey(result)]...)
	m.lock.RUnlock()

	for number, start := 0, 0; start < len(all); number, start = number+1, start+memoryPageSize {
		end := start + memoryPageSize
		if end > len(all) {
			end = len(all)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&structs.Page{Result: result, Number: number, Entities: all[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

// memInstanceStream walks the store page by page, resuming below the last key handed out.
type memInstanceStream struct {
	db *Memory
	q  *structs.Query

	buf     []*structs.JobInstance
	lastID  int64
	lastDef string
	started bool
	done    bool
}

func (s *memInstanceStream) Next(ctx context.Context) (*structs.JobInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.buf) == 0 && !s.done {
		s.fetch()
	}
	if len(s.buf) == 0 {
		return nil, nil
	}
	in := s.buf[0]
	s.buf = s.buf[1:]
	return in, nil
}

func (s *memInstanceStream) fetch() {
	s.db.lock.RLock()
	defer s.db.lock.RUnlock()

	page := []*structs.JobInstance{}
	for _, in := range s.db.matching(s.q) {
		if s.started && !(in.InstanceID < s.lastID || (in.InstanceID == s.lastID && in.DefinitionID < s.lastDef)) {
			continue
		}
		page = append(page, s.db.hydrate(in))
		if len(page) >= s.q.Limit {
			break
		}
	}

	s.started = true
	s.buf = page
	if len(page) < s.q.Limit {
		s.done = true
	}
	if len(page) > 0 {
		s.lastID = page[len(page)-1].InstanceID
		s.lastDef = page[len(page)-1].DefinitionID
	}
}

func (s *memInstanceStream) Close() error {
	s.done = true
	s.buf = nil
	return nil
}
