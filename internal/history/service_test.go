package history

import (
	"context"
	"strings"
	"testing"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/object"
	"github.com/starford/othala/internal/vault"
)

var testAuthor = models.Author{Name: "Othala", Email: "othala@localhost"}

func tempService(t *testing.T) (*Service, vault.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := vault.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	repo, err := object.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return New(repo, store, testAuthor), store
}

func writeNote(t *testing.T, store vault.Provider, id, content string) {
	t.Helper()
	if err := store.Write(vault.NotePath(id), []byte(content)); err != nil {
		t.Fatal(err)
	}
}

func TestHistoryEmptyForUnknownNote(t *testing.T) {
	s, _ := tempService(t)
	log, err := s.History(context.Background(), "unknown", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(log) != 0 {
		t.Errorf("log = %v, want empty", log)
	}
}

func TestCreateSaveRestoreScenario(t *testing.T) {
	s, store := tempService(t)
	ctx := context.Background()
	id := "note-a"

	// Create with empty body, commit.
	writeNote(t, store, id, "")
	if _, err := s.RecordVersion(ctx, id, "create"); err != nil {
		t.Fatalf("commit empty: %v", err)
	}

	// "hello" → commit H2.
	writeNote(t, store, id, "hello")
	h2, err := s.RecordVersion(ctx, id, "hello version")
	if err != nil {
		t.Fatalf("commit hello: %v", err)
	}

	// "world" → commit H3.
	writeNote(t, store, id, "world")
	h3, err := s.RecordVersion(ctx, id, "world version")
	if err != nil {
		t.Fatalf("commit world: %v", err)
	}

	// Restore H2: returns "hello" and rewrites the working file.
	restored, err := s.Restore(ctx, id, h2)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored != "hello" {
		t.Errorf("restored = %q, want hello", restored)
	}
	onDisk, err := store.Read(vault.NotePath(id))
	if err != nil {
		t.Fatal(err)
	}
	if string(onDisk) != "hello" {
		t.Errorf("working file = %q, want hello", onDisk)
	}

	// Diff H2..H3.
	diff, err := s.Diff(ctx, id, h2, h3)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if diff.OldContent != "hello" || diff.NewContent != "world" {
		t.Errorf("diff = %+v", diff)
	}
}

func TestHistoryOrderingAndLimit(t *testing.T) {
	s, store := tempService(t)
	ctx := context.Background()
	id := "note-b"

	for _, v := range []string{"v1", "v2", "v3"} {
		writeNote(t, store, id, v)
		if _, err := s.RecordVersion(ctx, id, "save "+v); err != nil {
			t.Fatal(err)
		}
	}

	log, err := s.History(ctx, id, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 {
		t.Fatalf("len = %d, want limit 2", len(log))
	}
	for i := 1; i < len(log); i++ {
		if log[i-1].Timestamp.Before(log[i].Timestamp) {
			t.Error("history not newest first")
		}
	}
	if log[0].Message != "save v3" {
		t.Errorf("first = %q", log[0].Message)
	}
}

func TestRecordVersionDefaultMessage(t *testing.T) {
	s, store := tempService(t)
	ctx := context.Background()
	writeNote(t, store, "note-c", "content")
	if _, err := s.RecordVersion(ctx, "note-c", ""); err != nil {
		t.Fatal(err)
	}
	log, _ := s.History(ctx, "note-c", 1)
	if len(log) != 1 || !strings.HasPrefix(log[0].Message, "Auto-save note note-c") {
		t.Errorf("log = %v", log)
	}
}

func TestSnapshotNamingAndListing(t *testing.T) {
	s, store := tempService(t)
	ctx := context.Background()
	writeNote(t, store, "note-d", "x")
	head, err := s.RecordVersion(ctx, "note-d", "save")
	if err != nil {
		t.Fatal(err)
	}

	snap, err := s.CreateSnapshot(ctx, "v1")
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if !strings.Contains(snap.Name, "v1") {
		t.Errorf("snapshot name = %q, want it to contain v1", snap.Name)
	}
	if snap.Hash != head {
		t.Errorf("snapshot hash = %s, want head %s", snap.Hash, head)
	}

	list, err := s.ListSnapshots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != snap.Name || list[0].Hash != head {
		t.Errorf("snapshots = %v", list)
	}
}

func TestDeleteThenHistoryStillDiffs(t *testing.T) {
	s, store := tempService(t)
	ctx := context.Background()
	id := "note-e"

	writeNote(t, store, id, "one")
	h1, _ := s.RecordVersion(ctx, id, "one")
	writeNote(t, store, id, "two")
	h2, _ := s.RecordVersion(ctx, id, "two")

	if err := store.Delete(vault.NotePath(id)); err != nil {
		t.Fatal(err)
	}

	diff, err := s.Diff(ctx, id, h1, h2)
	if err != nil {
		t.Fatalf("Diff after delete: %v", err)
	}
	if diff.OldContent != "one" || diff.NewContent != "two" {
		t.Errorf("diff = %+v", diff)
	}
}
