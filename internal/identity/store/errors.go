package store

import (
	"fmt"

	"idstatus/pkg/platform/sentinel"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = sentinel.ErrNotFound

// ErrApplicationReferenceConflict is returned by Save when the write would
// either give a reference to a second record or replace a reference already
// stored on this record. It wraps sentinel.ErrConflict.
var ErrApplicationReferenceConflict = fmt.Errorf("application reference conflict: %w", sentinel.ErrConflict)
