package queue

import (
	"context"

	"github.com/voidshard/harvester/pkg/structs"
)

// Handler is called for each job instance a worker pulls off the queue.
//
// Returning an error causes the instance to be redelivered later, unless Meta.SetSkip
// was called.
type Handler func(ctx context.Context, work *Meta) error

type Queue interface {
	// Register the handler that is called for every dequeued instance.
	// Must be called before Run.
	Register(handler Handler) error

	// Run the queue & process instances (via the Register func). This should block until Close() is called.
	Run() error

	// Enqueue a scheduled job instance to be picked up by a worker.
	//
	// Enqueueing the same instance twice while the first is still queued is a no-op.
	Enqueue(ctx context.Context, in *structs.JobInstance) error

	// Close & shutdown the queue.
	Close() error
}
