// Package runid generates identifiers for harvest runs.
package runid

import "github.com/google/uuid"

// New returns a time-ordered UUIDv7, falling back to a random v4 when the
// entropy source misbehaves. Time ordering keeps archive prefixes and log
// queries sortable by run.
func New() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
