package noterepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/vault"
)

func tempRepo(t *testing.T) *Repository {
	t.Helper()
	store, err := vault.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return New(store)
}

func TestCreateDefaults(t *testing.T) {
	r := tempRepo(t)
	n, err := r.Create(context.Background(), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.ID == "" {
		t.Error("empty id")
	}
	if n.Title != models.DefaultTitle {
		t.Errorf("title = %q", n.Title)
	}
	if n.Category != models.DefaultCategory {
		t.Errorf("category = %q", n.Category)
	}
	if !n.CreatedAt.Equal(n.UpdatedAt) {
		t.Error("createdAt != updatedAt on a fresh note")
	}
}

func TestCreateThenGet(t *testing.T) {
	r := tempRepo(t)
	created, err := r.Create(context.Background(), "My Note")
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "My Note" {
		t.Errorf("title = %q", got.Title)
	}
	if got.ID != created.ID {
		t.Errorf("id = %q", got.ID)
	}
}

func TestGetNotFound(t *testing.T) {
	r := tempRepo(t)
	_, err := r.Get(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateMergesPartialFields(t *testing.T) {
	r := tempRepo(t)
	ctx := context.Background()
	n, _ := r.Create(ctx, "Before")

	md := "# hello"
	updated, err := r.Update(ctx, n.ID, models.NoteUpdate{Markdown: &md})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Markdown != "# hello" {
		t.Errorf("markdown = %q", updated.Markdown)
	}
	if updated.Title != "Before" {
		t.Errorf("title changed on partial update: %q", updated.Title)
	}
	if updated.Content == "" {
		t.Error("content not re-rendered from markdown")
	}
	if !updated.UpdatedAt.After(n.CreatedAt) && !updated.UpdatedAt.Equal(n.CreatedAt) {
		t.Error("updatedAt not refreshed")
	}
	if !updated.CreatedAt.Equal(n.CreatedAt) {
		t.Error("createdAt changed on update")
	}
}

func TestUpdateNotFound(t *testing.T) {
	r := tempRepo(t)
	title := "x"
	_, err := r.Update(context.Background(), "missing", models.NoteUpdate{Title: &title})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListOrderedByUpdatedAtDesc(t *testing.T) {
	r := tempRepo(t)
	ctx := context.Background()
	first, _ := r.Create(ctx, "first")
	time.Sleep(5 * time.Millisecond)
	second, _ := r.Create(ctx, "second")
	time.Sleep(5 * time.Millisecond)

	// Touch the first note so it becomes the most recently updated.
	md := "touched"
	if _, err := r.Update(ctx, first.ID, models.NoteUpdate{Markdown: &md}); err != nil {
		t.Fatal(err)
	}

	notes, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("len = %d", len(notes))
	}
	if notes[0].ID != first.ID || notes[1].ID != second.ID {
		t.Errorf("order = %s, %s", notes[0].Title, notes[1].Title)
	}
}

func TestMetadataOmitsContent(t *testing.T) {
	r := tempRepo(t)
	ctx := context.Background()
	n, _ := r.Create(ctx, "meta")
	md := "body text"
	_, _ = r.Update(ctx, n.ID, models.NoteUpdate{Markdown: &md})

	metas, err := r.Metadata(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 1 || metas[0].ID != n.ID || metas[0].Title != "meta" {
		t.Errorf("metas = %v", metas)
	}
}

func TestDelete(t *testing.T) {
	r := tempRepo(t)
	ctx := context.Background()
	n, _ := r.Create(ctx, "doomed")
	if err := r.Delete(ctx, n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.Get(ctx, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete = %v", err)
	}
	if err := r.Delete(ctx, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestForeignFileDecodesWithDefaults(t *testing.T) {
	store, err := vault.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := New(store)
	if err := store.Write(vault.NotePath("foreign"), []byte("plain text, no header")); err != nil {
		t.Fatal(err)
	}

	n, err := r.Get(context.Background(), "foreign")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n.Title != models.DefaultTitle {
		t.Errorf("title = %q", n.Title)
	}
	if n.Markdown != "plain text, no header" {
		t.Errorf("markdown = %q", n.Markdown)
	}
}
