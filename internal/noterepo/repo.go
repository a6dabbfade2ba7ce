// Package noterepo implements the document repository: the only component
// that translates between Note entities and their on-disk encoding.
//
// Writing and version recording are deliberately decoupled: Create and
// Update only touch the working tree; capturing the result in history is a
// separate step owned by the orchestrating layer.
package noterepo

import (
	"context"
	"errors"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/notefmt"
	"github.com/starford/othala/internal/vault"
)

// Repository maps note ids to files in the working tree.
type Repository struct {
	store vault.Provider
}

// New creates a Repository over the given vault.
func New(store vault.Provider) *Repository {
	return &Repository{store: store}
}

// Create allocates a new note with default fields and writes its encoded
// file. It does not record a version; that is the caller's follow-up step.
func (r *Repository) Create(_ context.Context, title string) (*models.Note, error) {
	if title == "" {
		title = models.DefaultTitle
	}
	now := time.Now().UTC()
	n := &models.Note{
		ID:        uuid.NewString(),
		Title:     title,
		Category:  models.DefaultCategory,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Write(vault.NotePath(n.ID), notefmt.Encode(n)); err != nil {
		return nil, err
	}
	return n, nil
}

// Get returns the note with the given id.
func (r *Repository) Get(_ context.Context, id string) (*models.Note, error) {
	data, err := r.store.Read(vault.NotePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return notefmt.Decode(id, data), nil
}

// List returns every note, ordered by updatedAt descending.
func (r *Repository) List(ctx context.Context) ([]*models.Note, error) {
	ids, err := r.store.ListNoteIDs()
	if err != nil {
		return nil, err
	}
	notes := make([]*models.Note, 0, len(ids))
	for _, id := range ids {
		n, err := r.Get(ctx, id)
		if err != nil {
			// A note removed between listing and reading is not an error.
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		notes = append(notes, n)
	}
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	return notes, nil
}

// Metadata returns the metadata projection of every note, ordered by
// updatedAt descending.
func (r *Repository) Metadata(ctx context.Context) ([]models.NoteMetadata, error) {
	notes, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.NoteMetadata, len(notes))
	for i, n := range notes {
		out[i] = n.Metadata()
	}
	return out, nil
}

// Update merges partial fields into the existing note, refreshes updatedAt,
// and rewrites the file. When the markdown changes, the cached HTML content
// is re-rendered from it; a caller-supplied content value wins for this
// write but the next markdown update re-derives it again.
func (r *Repository) Update(ctx context.Context, id string, upd models.NoteUpdate) (*models.Note, error) {
	n, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		n.Title = *upd.Title
	}
	if upd.Category != nil {
		n.Category = *upd.Category
	}
	if upd.Tags != nil {
		n.Tags = *upd.Tags
	}
	if upd.Markdown != nil {
		n.Markdown = *upd.Markdown
		n.Content = notefmt.Render(n.Markdown)
	}
	if upd.Content != nil {
		n.Content = *upd.Content
	}
	n.UpdatedAt = time.Now().UTC()

	if err := r.store.Write(vault.NotePath(id), notefmt.Encode(n)); err != nil {
		return nil, err
	}
	return n, nil
}

// Delete removes the note's backing file. Historical commits referencing
// the note remain reachable through the object graph.
func (r *Repository) Delete(_ context.Context, id string) error {
	path := vault.NotePath(id)
	if !r.store.Exists(path) {
		return apperr.ErrNotFound
	}
	return r.store.Delete(path)
}
