package models

import (
	"time"

	"github.com/google/uuid"
)

// NowISO returns the current UTC time as an ISO-8601 string, the wire
// format mandated for every timestamp field in spec.md §3.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewID returns a fresh opaque identifier. Grounded on
// original_source/models.py's new_id() (uuid4 hex); uuid.New().String()
// is the idiomatic Go equivalent using the teacher's own (indirect)
// google/uuid dependency, promoted here to direct use.
func NewID() string {
	return uuid.New().String()
}
