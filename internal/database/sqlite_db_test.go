package portfoliostatedb

import (
	"path/filepath"
	"testing"
)

func initTestDB(t *testing.T) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "flowfolio_test.db")
	if err := InitSQLiteDB(dbPath); err != nil {
		t.Fatalf("InitSQLiteDB: %v", err)
	}
}

func TestCacheEntryRoundTrip(t *testing.T) {
	initTestDB(t)

	if err := SaveCacheEntryToSQLite("k", 1234, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	ts, data, err := GetCacheEntryFromSQLite("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ts != 1234 || string(data) != `{"a":1}` {
		t.Fatalf("got ts=%d data=%s", ts, data)
	}

	// Upsert replaces, never duplicates.
	if err := SaveCacheEntryToSQLite("k", 5678, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("second save: %v", err)
	}
	ts, data, err = GetCacheEntryFromSQLite("k")
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if ts != 5678 || string(data) != `{"a":2}` {
		t.Fatalf("after upsert got ts=%d data=%s", ts, data)
	}
}

func TestMissingKeyFallsBackToEmpty(t *testing.T) {
	initTestDB(t)

	ts, data, err := GetCacheEntryFromSQLite("never_written")
	if err != nil {
		t.Fatalf("expected no error for missing key, got %v", err)
	}
	if ts != 0 || data != nil {
		t.Fatalf("expected empty default, got ts=%d data=%v", ts, data)
	}
}

func TestDeleteCacheEntryClearsKey(t *testing.T) {
	initTestDB(t)

	if err := SaveCacheEntryToSQLite(EditionMetadataKey, 1234, []byte(`[]`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := DeleteCacheEntryFromSQLite(EditionMetadataKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ts, data, err := GetCacheEntryFromSQLite(EditionMetadataKey)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if ts != 0 || data != nil {
		t.Fatalf("expected empty after delete, got ts=%d data=%v", ts, data)
	}

	// Deleting an absent key is a no-op, not an error.
	if err := DeleteCacheEntryFromSQLite(EditionMetadataKey); err != nil {
		t.Fatalf("delete missing key: %v", err)
	}
}

func TestTransactionListsRoundTrip(t *testing.T) {
	initTestDB(t)

	var s Store
	if err := s.SaveTransactionLists([]byte(`[1]`), []byte(`[2]`)); err != nil {
		t.Fatalf("save lists: %v", err)
	}
	active, recent, err := s.LoadTransactionLists()
	if err != nil {
		t.Fatalf("load lists: %v", err)
	}
	if string(active) != `[1]` || string(recent) != `[2]` {
		t.Fatalf("got active=%s recent=%s", active, recent)
	}
}
