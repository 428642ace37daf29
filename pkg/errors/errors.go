package errors

import (
	"fmt"
)

var (
	ErrInvalidArg       = fmt.Errorf("invalid arg")
	ErrInvalidState     = fmt.Errorf("invalid state")
	ErrNotFound         = fmt.Errorf("not found")
	ErrETagMismatch     = fmt.Errorf("etag mismatch")
	ErrNotSupported     = fmt.Errorf("not supported")
	ErrNoPipeline       = fmt.Errorf("no pipeline registered")
	ErrClockSkew        = fmt.Errorf("current time is before last aggregation")
	ErrMaxAttempts      = fmt.Errorf("max attempts exceeded")
	ErrTimeout          = fmt.Errorf("job timed out")
	ErrCancelled        = fmt.Errorf("job cancelled")
	ErrWorkerTerminated = fmt.Errorf("worker terminated early")
	ErrEngineBusy       = fmt.Errorf("engine cannot accept more work")
)
