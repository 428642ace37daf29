package database

import (
	"context"
	"fmt"

	"github.com/voidshard/harvester/pkg/structs"
)

// pgInstanceStream pages through instances newest first using the (instance_id, definition_id)
// key of the last row seen. Payloads are fetched one instance at a time as they're handed out.
type pgInstanceStream struct {
	db *Postgres
	q  *structs.Query

	buf     []*structs.JobInstance
	lastID  int64
	lastDef string
	started bool
	done    bool
	closed  bool
}

func (p *pgInstanceStream) Next(ctx context.Context) (*structs.JobInstance, error) {
	if p.closed {
		return nil, nil
	}
	if len(p.buf) == 0 && !p.done {
		if err := p.fetch(ctx); err != nil {
			return nil, err
		}
	}
	if len(p.buf) == 0 {
		return nil, nil
	}

	in := p.buf[0]
	p.buf = p.buf[1:]

	payload, err := p.db.payload(ctx, in.DefinitionID, in.InstanceID)
	if err != nil {
		return nil, err
	}
	in.Payload = payload
	return in, nil
}

func (p *pgInstanceStream) fetch(ctx context.Context) error {
	where, args := toSqlQuery(p.q)
	if p.started {
		args = append(args, p.lastID, p.lastDef)
		keyset := fmt.Sprintf("(instance_id, definition_id) < ($%d, $%d)", len(args)-1, len(args))
		if where == "" {
			where = "WHERE " + keyset
		} else {
			where = where + " AND " + keyset
		}
	}
	args = append(args, p.q.Limit)

	qstr := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY instance_id DESC, definition_id DESC LIMIT $%d;`,
		instanceColumns, string(structs.KindInstance), where, len(args),
	)
	page, err := p.db.queryInstances(ctx, qstr, args...)
	if err != nil {
		return err
	}

	p.started = true
	p.buf = page
	if len(page) < p.q.Limit {
		p.done = true
	}
	if len(page) > 0 {
		last := page[len(page)-1]
		p.lastID = last.InstanceID
		p.lastDef = last.DefinitionID
	}
	return nil
}

func (p *pgInstanceStream) Close() error {
	p.closed = true
	p.buf = nil
	return nil
}
