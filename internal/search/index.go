package search

import (
	"context"
	"errors"
	"strings"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/noterepo"
)

// ResultCap bounds the number of notes a query may return.
const ResultCap = 50

// snippetCap bounds the matched lines returned per note by
// SearchWithHighlight.
const snippetCap = 5

// Index keeps the full-text index in step with the document repository.
// All mutations here are best-effort from the caller's point of view: a
// failed index write never blocks or rolls back a storage mutation.
type Index struct {
	db    *DB
	notes *noterepo.Repository
}

// NewIndex creates an Index resolving results through the given repository.
func NewIndex(db *DB, notes *noterepo.Repository) *Index {
	return &Index{db: db, notes: notes}
}

// IndexNote adds a note's searchable fields exactly once per id. Calling it
// again for an indexed id is a no-op; use UpdateNoteIndex for changes.
func (ix *Index) IndexNote(_ context.Context, n *models.Note) error {
	_, err := ix.db.insertOnce(rowOf(n))
	return err
}

// UpdateNoteIndex reindexes all fields for an id, whether or not it was
// indexed before.
func (ix *Index) UpdateNoteIndex(_ context.Context, n *models.Note) error {
	return ix.db.upsert(rowOf(n))
}

// RemoveFromIndex drops a note from the index.
func (ix *Index) RemoveFromIndex(_ context.Context, id string) error {
	return ix.db.delete(id)
}

// Search returns notes matching query across title, body, and tags,
// deduplicated by id and capped at ResultCap. An empty or whitespace-only
// query is the list-all fallback, not an error.
func (ix *Index) Search(ctx context.Context, query string) ([]*models.Note, error) {
	if strings.TrimSpace(query) == "" {
		notes, err := ix.notes.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(notes) > ResultCap {
			notes = notes[:ResultCap]
		}
		return notes, nil
	}

	ids, err := ix.db.queryIDs(query, ResultCap)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]*models.Note, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		n, err := ix.notes.Get(ctx, id)
		if err != nil {
			// Stale index entry; the note is gone from storage.
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// SearchWithHighlight layers naive substring line extraction on top of
// Search: the title (when it matches) plus matching markdown lines, at
// most snippetCap per note.
func (ix *Index) SearchWithHighlight(ctx context.Context, query string) ([]models.SearchMatch, error) {
	notes, err := ix.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(query)

	out := make([]models.SearchMatch, 0, len(notes))
	for _, n := range notes {
		var matches []string
		if strings.Contains(strings.ToLower(n.Title), lower) {
			matches = append(matches, n.Title)
		}
		for _, line := range strings.Split(n.Markdown, "\n") {
			if strings.Contains(strings.ToLower(line), lower) {
				matches = append(matches, strings.TrimSpace(line))
			}
		}
		if len(matches) > snippetCap {
			matches = matches[:snippetCap]
		}
		out = append(out, models.SearchMatch{Note: n, Matches: matches})
	}
	return out, nil
}

// Rebuild drops the index and reindexes every note in the repository.
// After a crash or corruption this restores equivalent query results.
func (ix *Index) Rebuild(ctx context.Context) error {
	if err := ix.db.clear(); err != nil {
		return err
	}
	notes, err := ix.notes.List(ctx)
	if err != nil {
		return err
	}
	for _, n := range notes {
		if err := ix.db.upsert(rowOf(n)); err != nil {
			return err
		}
	}
	return nil
}

func rowOf(n *models.Note) noteRow {
	return noteRow{
		ID:        n.ID,
		Title:     n.Title,
		Tags:      n.Tags,
		Body:      n.Markdown,
		UpdatedAt: n.UpdatedAt,
	}
}
