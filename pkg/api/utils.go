package api

import (
	"fmt"

	"github.com/voidshard/harvester/internal/utils"
	"github.com/voidshard/harvester/pkg/errors"
)

// Validate checks the request is well formed.
func (r *ScheduleRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w schedule request is required", errors.ErrInvalidArg)
	}
	if !utils.IsValidID(r.DefinitionID) {
		return fmt.Errorf("%w bad definition id %q", errors.ErrInvalidArg, r.DefinitionID)
	}
	return nil
}
