package utils

import (
	"github.com/google/uuid"
)

// NewRandomID returns a new random id, suitable for etags & job definition ids.
func NewRandomID() string {
	return uuid.NewString()
}

// IsValidID returns true if the given string parses as an id made by NewRandomID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
