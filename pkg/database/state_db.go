package database

import (
	"context"
	"fmt"
	"time"

	"github.com/voidshard/harvester/internal/utils"
	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

// SetInstanceState moves the instance to the given status, guarded by its etag.
// Only transitions permitted by structs.CanTransition are attempted. On success the
// updated copy of the instance is returned; the input is not modified.
func SetInstanceState(ctx context.Context, db Database, in *structs.JobInstance, st structs.Status, msg string) (*structs.JobInstance, error) {
	if in == nil {
		return nil, fmt.Errorf("%w instance is nil", errors.ErrInvalidArg)
	}
	if !structs.CanTransition(in.Status, st) {
		return nil, fmt.Errorf("%w %s -> %s is not a permitted transition", errors.ErrInvalidState, in.Status, st)
	}

	etag := utils.NewRandomID()
	altered, err := db.UpdateInstanceStatus(ctx, in.Ref(), st, etag, msg)
	if err != nil {
		return nil, err
	}
	if altered != 1 {
		return nil, fmt.Errorf("%w updated altered %d entries", errors.ErrETagMismatch, altered)
	}

	out := in.WithStatus(st, time.Now().UTC(), etag)
	out.Error = msg
	return out, nil
}
