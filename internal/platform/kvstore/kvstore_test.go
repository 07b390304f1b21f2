package kvstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(t.TempDir()),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Init(); err != nil {
				t.Fatalf("init: %v", err)
			}
			defer s.Close()

			if _, err := s.Get(KeyDraft); !errors.Is(err, ErrKeyNotFound) {
				t.Fatalf("expected ErrKeyNotFound, got %v", err)
			}

			want := []byte(`{"name":"Ana"}`)
			if err := s.Set(KeyDraft, want); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, err := s.Get(KeyDraft)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("got %s, want %s", got, want)
			}

			// Overwrite replaces, never merges.
			want2 := []byte(`{"name":"Budi"}`)
			if err := s.Set(KeyDraft, want2); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, _ = s.Get(KeyDraft)
			if !bytes.Equal(got, want2) {
				t.Errorf("got %s after overwrite, want %s", got, want2)
			}

			if err := s.Delete(KeyDraft); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := s.Get(KeyDraft); !errors.Is(err, ErrKeyNotFound) {
				t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
			}
		})
	}
}

func TestStore_DeleteMissingKeyIsNoop(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Init(); err != nil {
				t.Fatalf("init: %v", err)
			}
			if err := s.Delete("never_written"); err != nil {
				t.Errorf("delete of missing key should be a no-op, got %v", err)
			}
		})
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := s.Set(KeyRecordVault, []byte(`[]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	s.Close()

	reopened := NewFileStore(dir)
	if err := reopened.Init(); err != nil {
		t.Fatalf("reinit: %v", err)
	}
	got, err := reopened.Get(KeyRecordVault)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(got) != `[]` {
		t.Errorf("got %s after reopen", got)
	}
}

func TestFileStore_SanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := s.Set("../escape", []byte(`x`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".._escape.json")); err != nil {
		t.Errorf("expected sanitized file inside store dir: %v", err)
	}
}

func TestFileStore_RequiresDir(t *testing.T) {
	s := NewFileStore("")
	if err := s.Init(); err == nil {
		t.Error("expected error for empty directory")
	}
}
