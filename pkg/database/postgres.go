package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

const (
	definitionColumns = `id, tenant_id, integration_id, integration_type, pipeline, default_priority, max_attempts,
	timeout_minutes, full_frequency_minutes, active, metadata, created_at, updated_at`

	instanceColumns = `definition_id, instance_id, status, etag, pipeline, scheduled_start_time, status_changed_at,
	attempt_count, attempt_max, priority, timeout_minutes, is_full, is_reprocessing, tags, progress, progress_details, error`
)

// timeNow is swapped out in tests
var timeNow = func() time.Time {
	return time.Now().UTC()
}

// Postgres is a job store implementation that uses postgres.
type Postgres struct {
	opts *Options
	pool *pgxpool.Pool
}

// NewPostgres returns a new Postgres database connection.
//
// The initial connection is retried with exponential backoff for up to opts.ConnectTimeout.
func NewPostgres(opts *Options) (*Postgres, error) {
	opts.SetDefaults()
	pool, err := pgxpool.New(context.Background(), opts.expandURL())
	if err != nil {
		return nil, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = opts.ConnectTimeout
	err = backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}, bo)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	return &Postgres{pool: pool, opts: opts}, nil
}

// Close shuts down the database connection.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// InsertDefinition inserts a new job definition.
func (p *Postgres) InsertDefinition(ctx context.Context, def *structs.JobDefinition) error {
	meta, err := json.Marshal(def.Metadata)
	if err != nil {
		return err
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = timeNow()
		def.UpdatedAt = def.CreatedAt
	}
	qstr := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`,
		string(structs.KindDefinition), definitionColumns,
	)
	_, err = p.pool.Exec(ctx, qstr,
		def.ID,
		def.TenantID,
		def.IntegrationID,
		def.IntegrationType,
		def.Pipeline,
		def.DefaultPriority,
		def.MaxAttempts,
		def.TimeoutMinutes,
		def.FullFrequencyMinutes,
		def.Active,
		string(meta),
		def.CreatedAt,
		def.UpdatedAt,
	)
	return err
}

// SetDefinitionActive toggles whether the scheduling loop picks up the definition.
func (p *Postgres) SetDefinitionActive(ctx context.Context, id string, active bool) (int64, error) {
	qstr := fmt.Sprintf(`UPDATE %s SET active=$1, updated_at=$2 WHERE id=$3;`, string(structs.KindDefinition))
	info, err := p.pool.Exec(ctx, qstr, active, timeNow(), id)
	if err != nil {
		return 0, err
	}
	return info.RowsAffected(), nil
}

// Definition returns a single definition by id.
func (p *Postgres) Definition(ctx context.Context, id string) (*structs.JobDefinition, error) {
	qstr := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1;`, definitionColumns, string(structs.KindDefinition))
	def, err := scanDefinition(p.pool.QueryRow(ctx, qstr, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w definition %s", errors.ErrNotFound, id)
	}
	return def, err
}

// Definitions returns all definitions, optionally only active ones.
func (p *Postgres) Definitions(ctx context.Context, activeOnly bool) ([]*structs.JobDefinition, error) {
	where := ""
	if activeOnly {
		where = "WHERE active = TRUE"
	}
	qstr := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY created_at ASC;`, definitionColumns, string(structs.KindDefinition), where)

	rows, err := p.pool.Query(ctx, qstr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defs := []*structs.JobDefinition{}
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// InsertInstance inserts an instance & applies the metadata patch to its definition in a
// single transaction. The definition row lock serialises instance id assignment.
func (p *Postgres) InsertInstance(ctx context.Context, in *structs.JobInstance, patch *structs.MetadataPatch) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) // no-op after commit

	now := timeNow()
	var (
		nextID  int64
		rawMeta []byte
	)
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`UPDATE %s SET next_instance_id = next_instance_id + 1 WHERE id=$1 RETURNING next_instance_id, metadata;`, string(structs.KindDefinition)),
		in.DefinitionID,
	).Scan(&nextID, &rawMeta)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("%w definition %s", errors.ErrNotFound, in.DefinitionID)
	} else if err != nil {
		return 0, err
	}

	if !patch.IsEmpty() {
		meta := structs.DefinitionMetadata{}
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			return 0, err
		}
		merged, err := json.Marshal(meta.Merge(patch, now))
		if err != nil {
			return 0, err
		}
		_, err = tx.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET metadata=$1, updated_at=$2 WHERE id=$3;`, string(structs.KindDefinition)),
			string(merged), now, in.DefinitionID,
		)
		if err != nil {
			return 0, err
		}
	}

	in.InstanceID = nextID
	istr, iargs, err := toInstanceSqlArgs(1, in)
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s;`, string(structs.KindInstance), instanceColumns, istr), iargs...)
	if err != nil {
		return 0, err
	}

	if in.Payload != nil {
		raw, err := json.Marshal(in.Payload)
		if err != nil {
			return 0, err
		}
		_, err = tx.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (definition_id, instance_id, payload) VALUES ($1, $2, $3);`, string(structs.KindPayload)),
			in.DefinitionID, in.InstanceID, string(raw),
		)
		if err != nil {
			return 0, err
		}
	}

	return nextID, tx.Commit(ctx)
}

// UpdateInstanceStatus sets the status of the given instance if the etag matches
func (p *Postgres) UpdateInstanceStatus(ctx context.Context, ref *structs.InstanceRef, status structs.Status, newTag string, msg string) (int64, error) {
	attempt := ""
	if status == structs.RUNNING {
		attempt = ", attempt_count = attempt_count + 1"
	}
	qstr := fmt.Sprintf(`UPDATE %s SET status=$1, etag=$2, status_changed_at=$3, error=$4%s
	WHERE definition_id=$5 AND instance_id=$6 AND etag=$7;`, string(structs.KindInstance), attempt)

	info, err := p.pool.Exec(ctx, qstr, string(status), newTag, timeNow(), msg, ref.DefinitionID, ref.InstanceID, ref.ETag)
	if err != nil {
		return 0, err
	}
	return info.RowsAffected(), nil
}

// UpdateInstanceProgress overwrites checkpointed progress
func (p *Postgres) UpdateInstanceProgress(ctx context.Context, definitionID string, instanceID int64, progress map[string]int64, details map[string]*structs.ProgressDetail) error {
	if progress == nil {
		progress = map[string]int64{}
	}
	if details == nil {
		details = map[string]*structs.ProgressDetail{}
	}
	rawProgress, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	rawDetails, err := json.Marshal(details)
	if err != nil {
		return err
	}
	qstr := fmt.Sprintf(`UPDATE %s SET progress=$1, progress_details=$2 WHERE definition_id=$3 AND instance_id=$4;`, string(structs.KindInstance))
	info, err := p.pool.Exec(ctx, qstr, string(rawProgress), string(rawDetails), definitionID, instanceID)
	if err != nil {
		return err
	}
	if info.RowsAffected() == 0 {
		return fmt.Errorf("%w instance %s", errors.ErrNotFound, structs.InstanceKey(definitionID, instanceID))
	}
	return nil
}

// SetInstancePayload upserts the out of band payload of an instance
func (p *Postgres) SetInstancePayload(ctx context.Context, definitionID string, instanceID int64, payload *structs.Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	qstr := fmt.Sprintf(`INSERT INTO %s (definition_id, instance_id, payload) VALUES ($1, $2, $3)
	ON CONFLICT (definition_id, instance_id) DO UPDATE SET payload = EXCLUDED.payload;`, string(structs.KindPayload))
	_, err = p.pool.Exec(ctx, qstr, definitionID, instanceID, string(raw))
	return err
}

// Instance returns a single instance, payload included.
func (p *Postgres) Instance(ctx context.Context, definitionID string, instanceID int64) (*structs.JobInstance, error) {
	qstr := fmt.Sprintf(`SELECT %s FROM %s WHERE definition_id=$1 AND instance_id=$2;`, instanceColumns, string(structs.KindInstance))
	in, err := scanInstance(p.pool.QueryRow(ctx, qstr, definitionID, instanceID))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w instance %s", errors.ErrNotFound, structs.InstanceKey(definitionID, instanceID))
	} else if err != nil {
		return nil, err
	}
	in.Payload, err = p.payload(ctx, definitionID, instanceID)
	return in, err
}

// Instances returns instances matching the given query, without payloads.
func (p *Postgres) Instances(ctx context.Context, q *structs.Query) ([]*structs.JobInstance, error) {
	q.Sanitize()
	where, args := toSqlQuery(q)
	args = append(args, q.Limit, q.Offset)

	qstr := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY instance_id DESC, definition_id DESC LIMIT $%d OFFSET $%d;`,
		instanceColumns, string(structs.KindInstance), where, len(args)-1, len(args),
	)
	return p.queryInstances(ctx, qstr, args...)
}

// LastFullInstance returns the most recent full instance of the definition matching q.
func (p *Postgres) LastFullInstance(ctx context.Context, definitionID string, q *structs.Query) (*structs.JobInstance, error) {
	full := true
	fq := structs.Query{}
	if q != nil {
		fq = *q
	}
	fq.DefinitionIDs = []string{definitionID}
	fq.IsFull = &full
	fq.Limit = 1
	fq.Offset = 0

	found, err := p.Instances(ctx, &fq)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// StreamInstances returns a lazy, keyset paginated iterator over matching instances.
func (p *Postgres) StreamInstances(ctx context.Context, q *structs.Query) (InstanceIterator, error) {
	sq := structs.Query{}
	if q != nil {
		sq = *q
	}
	if sq.Limit <= 0 {
		sq.Limit = p.opts.PageSize
	}
	sq.Sanitize()
	return &pgInstanceStream{db: p, q: &sq}, nil
}

// ConfigVersion returns the current config version of the integration
func (p *Postgres) ConfigVersion(ctx context.Context, tenantID, integrationID string) (int64, error) {
	var v int64
	err := p.pool.QueryRow(ctx,
		`SELECT config_version FROM integration_state WHERE tenant_id=$1 AND integration_id=$2;`,
		tenantID, integrationID,
	).Scan(&v)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("%w integration %s/%s", errors.ErrNotFound, tenantID, integrationID)
	}
	return v, err
}

// SnapshottingEnabled returns whether the integration is aggregated in daily snapshots
func (p *Postgres) SnapshottingEnabled(ctx context.Context, tenantID, integrationID string) (bool, error) {
	var enabled bool
	err := p.pool.QueryRow(ctx,
		`SELECT snapshotting_enabled FROM integration_state WHERE tenant_id=$1 AND integration_id=$2;`,
		tenantID, integrationID,
	).Scan(&enabled)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return enabled, err
}

// LastAggregatedAt returns when the integration was last aggregated
func (p *Postgres) LastAggregatedAt(ctx context.Context, tenantID, integrationID string) (*time.Time, error) {
	var at *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT last_aggregated_at FROM integration_state WHERE tenant_id=$1 AND integration_id=$2;`,
		tenantID, integrationID,
	).Scan(&at)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return at, err
}

// FreshResults lists upstream results available for the integration
func (p *Postgres) FreshResults(ctx context.Context, tenantID, integrationID string) ([]structs.UpstreamResult, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT job_id, data_type, idx FROM upstream_result WHERE tenant_id=$1 AND integration_id=$2 ORDER BY idx ASC, data_type ASC;`,
		tenantID, integrationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []structs.UpstreamResult{}
	for rows.Next() {
		r := structs.UpstreamResult{}
		if err := rows.Scan(&r.JobID, &r.DataType, &r.Index); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReadPages reads the entities of an upstream result a page at a time.
func (p *Postgres) ReadPages(ctx context.Context, result structs.UpstreamResult, fn func(page *structs.Page) error) error {
	last := int64(-1)
	for number := 0; ; number++ {
		rows, err := p.pool.Query(ctx,
			`SELECT seq, entity FROM upstream_entity WHERE job_id=$1 AND data_type=$2 AND seq > $3 ORDER BY seq ASC LIMIT $4;`,
			result.JobID, result.DataType, last, p.opts.PageSize,
		)
		if err != nil {
			return err
		}

		page := &structs.Page{Result: result, Number: number, Entities: []json.RawMessage{}}
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&last, &raw); err != nil {
				rows.Close()
				return err
			}
			page.Entities = append(page.Entities, json.RawMessage(raw))
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if len(page.Entities) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page.Entities) < p.opts.PageSize {
			return nil
		}
	}
}

// payload returns the stored payload of an instance, nil if not yet computed.
func (p *Postgres) payload(ctx context.Context, definitionID string, instanceID int64) (*structs.Payload, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT payload FROM %s WHERE definition_id=$1 AND instance_id=$2;`, string(structs.KindPayload)),
		definitionID, instanceID,
	).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	out := &structs.Payload{}
	return out, json.Unmarshal(raw, out)
}

func (p *Postgres) queryInstances(ctx context.Context, qstr string, args ...interface{}) ([]*structs.JobInstance, error) {
	rows, err := p.pool.Query(ctx, qstr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*structs.JobInstance{}
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// scanner is satisfied by both pgx.Row & pgx.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDefinition(row scanner) (*structs.JobDefinition, error) {
	d := structs.JobDefinition{}
	var meta []byte
	err := row.Scan(
		&d.ID,
		&d.TenantID,
		&d.IntegrationID,
		&d.IntegrationType,
		&d.Pipeline,
		&d.DefaultPriority,
		&d.MaxAttempts,
		&d.TimeoutMinutes,
		&d.FullFrequencyMinutes,
		&d.Active,
		&meta,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func scanInstance(row scanner) (*structs.JobInstance, error) {
	in := structs.JobInstance{}
	var (
		status   string
		tags     []string
		progress []byte
		details  []byte
	)
	err := row.Scan(
		&in.DefinitionID,
		&in.InstanceID,
		&status,
		&in.ETag,
		&in.Pipeline,
		&in.ScheduledStartTime,
		&in.StatusChangedAt,
		&in.AttemptCount,
		&in.AttemptMax,
		&in.Priority,
		&in.TimeoutMinutes,
		&in.IsFull,
		&in.IsReprocessing,
		&tags,
		&progress,
		&details,
		&in.Error,
	)
	if err != nil {
		return nil, err
	}
	in.Status = structs.ToStatus(status)
	for _, t := range tags {
		in.Tags = append(in.Tags, structs.Tag(t))
	}
	in.Progress = map[string]int64{}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &in.Progress); err != nil {
			return nil, err
		}
	}
	in.ProgressDetails = map[string]*structs.ProgressDetail{}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &in.ProgressDetails); err != nil {
			return nil, err
		}
	}
	return &in, nil
}

// toSqlQuery converts query filters into a SQL where clause & args
func toSqlQuery(q *structs.Query) (string, []interface{}) {
	and := []string{}
	args := []interface{}{}

	for _, f := range []struct {
		field string
		vals  []string
	}{
		{"definition_id", q.DefinitionIDs},
		{"status", statusToStrings(q.Statuses)},
	} {
		if len(f.vals) == 0 {
			continue
		}
		s, a := toSqlIn(len(args)+1, f.field, f.vals)
		and = append(and, s)
		args = append(args, a...)
	}
	if len(q.Tags) > 0 {
		args = append(args, tagsToStrings(q.Tags))
		and = append(and, fmt.Sprintf("tags @> $%d", len(args)))
	}
	if q.IsFull != nil {
		args = append(args, *q.IsFull)
		and = append(and, fmt.Sprintf("is_full = $%d", len(args)))
	}
	if q.BeforeInstanceID > 0 {
		args = append(args, q.BeforeInstanceID)
		and = append(and, fmt.Sprintf("instance_id < $%d", len(args)))
	}
	if len(and) == 0 {
		return "", args
	}
	return fmt.Sprintf("WHERE %s", strings.Join(and, " AND ")), args
}

// toSqlIn converts a list of strings into a SQL IN clause
func toSqlIn(offset int, field string, args []string) (string, []interface{}) {
	if len(args) == 0 {
		return "", []interface{}{}
	}
	vals := []string{}
	ifargs := []interface{}{}
	for i, a := range args {
		vals = append(vals, fmt.Sprintf("$%d", i+offset))
		ifargs = append(ifargs, a)
	}
	return fmt.Sprintf("%s IN (%s)", field, strings.Join(vals, ", ")), ifargs
}

// toInstanceSqlArgs converts an instance into a SQL query string & args (for an insert)
func toInstanceSqlArgs(offset int, in *structs.JobInstance) (string, []interface{}, error) {
	vals := []string{}
	for i := offset; i < 17+offset; i++ {
		vals = append(vals, fmt.Sprintf("$%d", i))
	}
	progress := in.Progress
	if progress == nil {
		progress = map[string]int64{}
	}
	details := in.ProgressDetails
	if details == nil {
		details = map[string]*structs.ProgressDetail{}
	}
	rawProgress, err := json.Marshal(progress)
	if err != nil {
		return "", nil, err
	}
	rawDetails, err := json.Marshal(details)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("(%s)", strings.Join(vals, ", ")), []interface{}{
		in.DefinitionID,
		in.InstanceID,
		string(in.Status),
		in.ETag,
		in.Pipeline,
		in.ScheduledStartTime,
		in.StatusChangedAt,
		in.AttemptCount,
		in.AttemptMax,
		in.Priority,
		in.TimeoutMinutes,
		in.IsFull,
		in.IsReprocessing,
		tagsToStrings(in.Tags),
		string(rawProgress),
		string(rawDetails),
		in.Error,
	}, nil
}

// statusToStrings converts a list of statuses into a list of strings
func statusToStrings(in []structs.Status) []string {
	if len(in) == 0 {
		return nil
	}
	out := []string{}
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

func tagsToStrings(in []structs.Tag) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		out = append(out, string(t))
	}
	return out
}
