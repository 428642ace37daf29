// Package resolver works out which upstream results are yet to be processed.
package resolver

import (
	"context"

	"github.com/voidshard/harvester/pkg/database"
)

// Resolve returns the ids in fresh that no recorded instance has consumed, in the order
// given by fresh.
//
// Instances are pulled from it one at a time, most recent first. Everything available when a
// full run started was consumed by it, so reading stops after the first full instance. If the
// stream runs out first, all history has been consulted. The iterator is always closed.
func Resolve(ctx context.Context, it database.InstanceIterator, fresh []string) ([]string, error) {
	defer it.Close()

	pending := make(map[string]bool, len(fresh))
	for _, id := range fresh {
		pending[id] = true
	}

	for len(pending) > 0 {
		in, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if in == nil {
			break
		}
		for _, id := range in.Payload.ResultIDs() {
			delete(pending, id)
		}
		if in.IsFull {
			break
		}
	}

	remaining := []string{}
	seen := map[string]bool{}
	for _, id := range fresh {
		if pending[id] && !seen[id] {
			remaining = append(remaining, id)
			seen[id] = true
		}
	}
	return remaining, nil
}
