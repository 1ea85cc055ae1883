package storage

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"briefbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func mustStorage(t *testing.T, baseDir string) *SecureStorage {
	t.Helper()
	s, err := New(baseDir, domain.NopAudit{}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// --- Round trip ---

func TestSaveReadRoundTrip(t *testing.T) {
	s := mustStorage(t, t.TempDir())

	path, err := s.Save("x.md", "hello")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Fatalf("expected absolute resolved path, got %q", path)
	}

	got, err := s.Read("x.md")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "hello" {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := mustStorage(t, t.TempDir())
	s.Save("x.md", "first")
	s.Save("x.md", "second")

	got, err := s.Read("x.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != "second" {
		t.Fatalf("last write should win, got %q", got)
	}
}

func TestSavePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on windows")
	}
	s := mustStorage(t, t.TempDir())
	path, err := s.Save("x.md", "secret")
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}
}

// --- Exists / Delete ---

func TestExistsDeleteLifecycle(t *testing.T) {
	s := mustStorage(t, t.TempDir())

	if s.Exists("x.md") {
		t.Fatal("file should not exist yet")
	}
	if _, err := s.Save("x.md", "hello"); err != nil {
		t.Fatal(err)
	}
	if !s.Exists("x.md") {
		t.Fatal("file should exist after save")
	}

	removed, err := s.Delete("x.md")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !removed {
		t.Fatal("first delete should remove the file")
	}
	if s.Exists("x.md") {
		t.Fatal("file should be gone after delete")
	}

	removed, err = s.Delete("x.md")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if removed {
		t.Fatal("second delete should report the file as absent")
	}
}

func TestExists_MalformedNamesReturnFalse(t *testing.T) {
	s := mustStorage(t, t.TempDir())
	for _, name := range []string{"", "../outside.md", "a/b.md", "x.txt", `..\win.md`} {
		if s.Exists(name) {
			t.Errorf("Exists(%q) should be false", name)
		}
	}
}

func TestRead_Missing(t *testing.T) {
	s := mustStorage(t, t.TempDir())
	_, err := s.Read("ghost.md")
	if !domain.IsKind(err, domain.KindStorage) {
		t.Fatalf("expected storage error for missing file, got %v", err)
	}
}

// --- Filename validation ---

func TestSave_InvalidFilenames(t *testing.T) {
	s := mustStorage(t, t.TempDir())
	for _, name := range []string{"", "report.txt", "no extension", "sub/dir.md"} {
		_, err := s.Save(name, "data")
		if !domain.IsKind(err, domain.KindInvalidFilename) {
			t.Errorf("Save(%q): expected invalid_filename, got %v", name, err)
		}
	}
}

func TestSave_CaseInsensitiveFilenames(t *testing.T) {
	s := mustStorage(t, t.TempDir())
	if _, err := s.Save("Daily_Summary.MD", "ok"); err != nil {
		t.Fatalf("storage accepts mixed-case names: %v", err)
	}
}

// --- Traversal resistance ---

func TestSave_TraversalRejectedBeforeWrite(t *testing.T) {
	base := t.TempDir()
	s := mustStorage(t, filepath.Join(base, "store"))

	_, err := s.Save("../outside.md", "data")
	if err == nil {
		t.Fatal("traversal filename must be rejected")
	}
	// Rejected at the filename gate; nothing may appear outside the base.
	if _, statErr := os.Stat(filepath.Join(base, "outside.md")); !os.IsNotExist(statErr) {
		t.Fatal("no file may be written outside the base directory")
	}
}

func TestDelete_TraversalPropagates(t *testing.T) {
	s := mustStorage(t, t.TempDir())
	_, err := s.Delete("../outside.md")
	if err == nil {
		t.Fatal("delete must propagate traversal failures, unlike Exists")
	}
}

func TestResolve_SiblingPrefixDirIsOutside(t *testing.T) {
	// /tmp/x/store-evil shares /tmp/x/store as a string prefix but is a
	// different directory; the segment check must treat it as outside.
	base := t.TempDir()
	storeDir := filepath.Join(base, "store")
	evilDir := filepath.Join(base, "store-evil")
	if err := os.MkdirAll(evilDir, 0o755); err != nil {
		t.Fatal(err)
	}
	s := mustStorage(t, storeDir)

	if _, err := s.resolve("x.md"); err != nil {
		t.Fatalf("in-bounds name must resolve: %v", err)
	}
	rel, err := filepath.Rel(s.BaseDir(), filepath.Join(evilDir, "x.md"))
	if err != nil {
		t.Fatal(err)
	}
	if rel == "x.md" {
		t.Fatal("sibling prefix directory must not be considered inside the base")
	}
}

// --- Construction ---

func TestNew_CreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "md")
	s := mustStorage(t, base)
	info, err := os.Stat(s.BaseDir())
	if err != nil || !info.IsDir() {
		t.Fatalf("base directory should be created, err=%v", err)
	}
}
