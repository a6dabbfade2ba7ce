// Package history exposes a note's version history: log, point-in-time
// restore, two-sided diffs, and named snapshots.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/object"
	"github.com/starford/othala/internal/vault"
)

// DefaultLimit bounds a history listing when the caller does not ask for a
// specific depth.
const DefaultLimit = 20

// Service reads and records note versions through the object graph.
type Service struct {
	repo   *object.Repository
	store  vault.Provider
	author models.Author
}

// New creates a history service. author stamps every recorded version.
func New(repo *object.Repository, store vault.Provider, author models.Author) *Service {
	return &Service{repo: repo, store: store, author: author}
}

// History returns up to limit commits that changed the note, newest first.
// A repository with no commits yields an empty history, not an error.
func (s *Service) History(_ context.Context, noteID string, limit int) ([]models.Commit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return s.repo.Log(vault.NotePath(noteID), limit)
}

// RecordVersion stages the note's current working file and commits it.
// An empty message gets the autosave default.
func (s *Service) RecordVersion(_ context.Context, noteID, message string) (string, error) {
	if message == "" {
		message = fmt.Sprintf("Auto-save note %s at %s", noteID, time.Now().UTC().Format(time.RFC3339))
	}
	return s.repo.StageAndCommit([]string{vault.NotePath(noteID)}, message, s.author)
}

// RecordDeletion commits the removal of the note's tree entry so the
// deletion is part of history and survives push, pull, and checkout.
func (s *Service) RecordDeletion(_ context.Context, noteID, message string) (string, error) {
	if message == "" {
		message = "Delete note " + noteID
	}
	return s.repo.RemoveAndCommit([]string{vault.NotePath(noteID)}, message, s.author)
}

// Restore overwrites the note's working file with its content at the given
// commit and returns the restored text. The restoration itself is not
// committed here; the caller records it as an explicit history entry.
func (s *Service) Restore(_ context.Context, noteID, commitHash string) (string, error) {
	path := vault.NotePath(noteID)
	data, err := s.repo.ReadBlobAt(commitHash, path)
	if err != nil {
		return "", err
	}
	if err := s.store.Write(path, data); err != nil {
		return "", err
	}
	return string(data), nil
}

// Diff returns the note's raw content at two commits. Line-level diffing is
// a pure function over the two strings and is left to the caller.
func (s *Service) Diff(_ context.Context, noteID, hashA, hashB string) (*models.Diff, error) {
	path := vault.NotePath(noteID)
	old, err := s.repo.ReadBlobAt(hashA, path)
	if err != nil {
		return nil, err
	}
	newer, err := s.repo.ReadBlobAt(hashB, path)
	if err != nil {
		return nil, err
	}
	return &models.Diff{OldContent: string(old), NewContent: string(newer)}, nil
}

// CreateSnapshot tags the current head with a snapshot name. Names that do
// not already carry the snapshot- prefix are decorated with it and a
// timestamp for uniqueness.
func (s *Service) CreateSnapshot(_ context.Context, name string) (models.Snapshot, error) {
	tagName := name
	if !strings.Contains(name, "snapshot-") {
		tagName = fmt.Sprintf("snapshot-%s-%d", name, time.Now().UnixMilli())
	}
	return s.repo.CreateTag(tagName)
}

// ListSnapshots returns every snapshot tag with the commit it resolves to.
func (s *Service) ListSnapshots(_ context.Context) ([]models.Snapshot, error) {
	tags, err := s.repo.ListTags()
	if err != nil {
		return nil, err
	}
	out := make([]models.Snapshot, 0, len(tags))
	for _, tag := range tags {
		if strings.HasPrefix(tag.Name, "snapshot-") {
			out = append(out, tag)
		}
	}
	return out, nil
}
