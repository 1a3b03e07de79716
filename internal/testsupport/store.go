package testsupport

import (
	"context"
	"testing"

	"arkline/internal/config"
	"arkline/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRecord creates a record with the default step set for tests.
func NewRecord(t testing.TB, store *records.Store, title string) *records.Record {
	t.Helper()

	record, err := store.CreateRecord(context.Background(), title, "", records.DefaultSteps())
	if err != nil {
		t.Fatalf("store.CreateRecord: %v", err)
	}
	return record
}

// NewRecordWithSteps creates a record with an explicit step set for tests.
func NewRecordWithSteps(t testing.TB, store *records.Store, title string, specs []records.StepSpec) *records.Record {
	t.Helper()

	record, err := store.CreateRecord(context.Background(), title, "", specs)
	if err != nil {
		t.Fatalf("store.CreateRecord: %v", err)
	}
	return record
}
