// Package storefactory selects a concrete pkg/store.Store implementation
// from configuration (spec.md §9 "A factory selects the implementation
// from configuration"). It is split from pkg/store itself so that the
// port definitions never import their own implementations.
package storefactory

import (
	"database/sql"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/store"
	"github.com/ghmbegerez/converge/pkg/store/memory"
	"github.com/ghmbegerez/converge/pkg/store/postgres"
)

// New constructs a Store for backend. db is required for
// store.BackendPostgres and ignored for store.BackendMemory.
func New(backend store.Backend, db *sql.DB) (store.Store, error) {
	switch backend {
	case store.BackendMemory:
		return memory.New(), nil
	case store.BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("storefactory: postgres backend requires a non-nil *sql.DB")
		}
		return postgres.New(db), nil
	default:
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownBackend, backend)
	}
}
