// Package uuid provides ID generation helpers.
package uuid

import (
	"github.com/google/uuid"
)

// NewRequestID returns a time-ordered UUIDv7 string for tagging requests.
// It falls back to a random UUIDv4 if the v7 generator fails.
func NewRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
