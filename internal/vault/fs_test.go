package vault

import (
	"os"
	"path/filepath"
	"testing"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestNewFSCreatesLayout(t *testing.T) {
	s := tempVault(t)
	for _, dir := range []string{NotesDir, AssetsDir, CategoriesDir} {
		info, err := os.Stat(filepath.Join(s.Root(), dir))
		if err != nil || !info.IsDir() {
			t.Errorf("missing vault dir %s", dir)
		}
	}
}

func TestEnsureDirectoriesIdempotent(t *testing.T) {
	s := tempVault(t)
	if err := s.EnsureDirectories(); err != nil {
		t.Fatalf("second EnsureDirectories: %v", err)
	}
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("---\ntitle: Hello\n---\n\nWorld\n")
	if err := s.Write(NotePath("n1"), content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(NotePath("n1"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestListNoteIDs(t *testing.T) {
	s := tempVault(t)
	_ = s.Write(NotePath("a"), []byte("a"))
	_ = s.Write(NotePath("b"), []byte("b"))
	_ = s.Write("notes/ignore.txt", []byte("x"))

	ids, err := s.ListNoteIDs()
	if err != nil {
		t.Fatalf("ListNoteIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 entries", ids)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write(NotePath("del"), []byte("bye"))
	if err := s.Delete(NotePath("del")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists(NotePath("del")) {
		t.Error("file still exists after delete")
	}
}

func TestSafePathRejectsTraversal(t *testing.T) {
	s := tempVault(t)
	if _, err := s.Read("../outside.md"); err == nil {
		t.Error("expected traversal to be rejected")
	}
	if err := s.Write("/abs/path.md", []byte("x")); err == nil {
		t.Error("expected absolute path to be rejected")
	}
}
