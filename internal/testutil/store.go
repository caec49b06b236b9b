package testutil

import (
	"testing"

	"docvault/internal/docvault"
	"docvault/internal/store"
)

// NewTestStore creates a new in-memory store with the schema applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	st, err := store.Open(store.InMemory)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		st.Close()
	})

	return st
}

// Opener returns a StoreOpener handing out the given store, for wiring a
// service to a store the test already holds.
func Opener(st docvault.Store) docvault.StoreOpener {
	return func() (docvault.Store, error) {
		return st, nil
	}
}
