package session

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLookupMissingChannel(t *testing.T) {
	s := openTestStore(t)

	_, found, err := s.Lookup("scout-main")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if found {
		t.Error("found = true, want false for fresh store")
	}
}

func TestEnsureCreatesThenContinues(t *testing.T) {
	s := openTestStore(t)

	rec, existed, err := s.Ensure("scout-main", "scout")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if existed {
		t.Error("existed = true on first Ensure, want false")
	}
	if rec.Role != "scout" {
		t.Errorf("Role = %q, want %q", rec.Role, "scout")
	}
	if filepath.Base(rec.Path) != "scout-main.jsonl" {
		t.Errorf("Path base = %q, want %q", filepath.Base(rec.Path), "scout-main.jsonl")
	}

	rec2, existed, err := s.Ensure("scout-main", "scout")
	if err != nil {
		t.Fatalf("second Ensure() error = %v", err)
	}
	if !existed {
		t.Error("existed = false on second Ensure, want true")
	}
	if rec2.Path != rec.Path {
		t.Errorf("Path changed across Ensure calls: %q != %q", rec2.Path, rec.Path)
	}
}

func TestForget(t *testing.T) {
	s := openTestStore(t)

	if _, _, err := s.Ensure("builder-main", "builder"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := s.Forget("builder-main"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}

	_, found, err := s.Lookup("builder-main")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if found {
		t.Error("found = true after Forget, want false")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	rec, _, err := s.Ensure("scout-main", "scout")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()

	got, found, err := s2.Lookup("scout-main")
	if err != nil {
		t.Fatalf("Lookup() after reopen error = %v", err)
	}
	if !found {
		t.Fatal("channel lost across reopen")
	}
	if got.Path != rec.Path {
		t.Errorf("Path = %q, want %q", got.Path, rec.Path)
	}
}
