// Package noteservice coordinates the document repository, version history,
// search index, and remote sync behind one orchestrating facade. It is the
// layer the API and MCP surfaces talk to.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/autosave"
	"github.com/starford/othala/internal/history"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/noterepo"
	"github.com/starford/othala/internal/object"
	"github.com/starford/othala/internal/search"
	"github.com/starford/othala/internal/sse"
	"github.com/starford/othala/internal/syncer"
	"github.com/starford/othala/internal/vault"
)

// Deps holds the collaborators a Service orchestrates. Broker may be nil
// when no event stream is wanted (tests, MCP-only mode).
type Deps struct {
	Notes   *noterepo.Repository
	History *history.Service
	Index   *search.Index
	Repo    *object.Repository
	Store   vault.Provider
	Broker  *sse.Broker
	Logger  *slog.Logger

	// AutosaveQuiet is the debounce window between the last edit of a note
	// and its automatic version commit.
	AutosaveQuiet time.Duration
	// SyncToken authenticates push/pull when the request does not carry
	// its own token.
	SyncToken string
}

// CommitResult reports the outcome of an explicit version commit. Committed
// is false when the note had no changes since its last version, in which
// case Hash is the unchanged branch head.
type CommitResult struct {
	Hash      string `json:"hash"`
	Committed bool   `json:"committed"`
}

// Service is the single entry point for note mutations. All writes flow
// through it so that working-tree state, the object graph, and the search
// index stay coordinated.
type Service struct {
	notes   *noterepo.Repository
	history *history.Service
	index   *search.Index
	repo    *object.Repository
	store   vault.Provider
	broker  *sse.Broker
	log     *slog.Logger
	token   string
	saver   *autosave.Scheduler
}

// New creates the orchestrating service and starts its autosave scheduler.
func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		notes:   deps.Notes,
		history: deps.History,
		index:   deps.Index,
		repo:    deps.Repo,
		store:   deps.Store,
		broker:  deps.Broker,
		log:     logger,
		token:   deps.SyncToken,
	}
	s.saver = autosave.New(deps.AutosaveQuiet, s.autosaveCommit)
	return s
}

// Close flushes pending autosaves and stops the scheduler, so edits still
// inside their quiet period are committed before shutdown.
func (s *Service) Close() {
	s.saver.FlushAll()
	s.saver.Stop()
}

// ListNotes returns all notes, most recently updated first.
func (s *Service) ListNotes(ctx context.Context) ([]*models.Note, error) {
	return s.notes.List(ctx)
}

// GetNote returns one note by id.
func (s *Service) GetNote(ctx context.Context, id string) (*models.Note, error) {
	return s.notes.Get(ctx, id)
}

// ListMetadata returns the sidebar projection of every note.
func (s *Service) ListMetadata(ctx context.Context) ([]models.NoteMetadata, error) {
	return s.notes.Metadata(ctx)
}

// CreateNote allocates a new note, records its initial version, and indexes
// it for search.
func (s *Service) CreateNote(ctx context.Context, title string) (*models.Note, error) {
	note, err := s.notes.Create(ctx, title)
	if err != nil {
		return nil, err
	}
	if _, err := s.history.RecordVersion(ctx, note.ID, "Create note "+note.ID); err != nil {
		s.log.Error("record initial version failed",
			slog.String("note", note.ID), slog.String("error", err.Error()))
	}
	if err := s.index.IndexNote(ctx, note); err != nil {
		s.log.Error("index new note failed",
			slog.String("note", note.ID), slog.String("error", err.Error()))
	}
	s.publishNote("created", note.ID)
	return note, nil
}

// UpdateNote applies a partial update, refreshes the search index, and
// schedules a debounced version commit. The commit itself happens after the
// note has been quiet for the autosave window.
func (s *Service) UpdateNote(ctx context.Context, id string, upd models.NoteUpdate) (*models.Note, error) {
	note, err := s.notes.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if err := s.index.UpdateNoteIndex(ctx, note); err != nil {
		s.log.Error("reindex note failed",
			slog.String("note", id), slog.String("error", err.Error()))
	}
	s.saver.Schedule(id)
	s.publishNote("updated", id)
	return note, nil
}

// DeleteNote removes the note's working file and search entry and records
// the deletion as a commit, so the note stays gone across push, pull, and
// checkout. Historical versions stay reachable through old commits.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	s.saver.Cancel(id)
	if err := s.notes.Delete(ctx, id); err != nil {
		return err
	}
	if _, err := s.history.RecordDeletion(ctx, id, ""); err != nil && !errors.Is(err, apperr.ErrNothingToCommit) {
		s.log.Error("record deletion failed",
			slog.String("note", id), slog.String("error", err.Error()))
	}
	if err := s.index.RemoveFromIndex(ctx, id); err != nil {
		s.log.Error("remove note from index failed",
			slog.String("note", id), slog.String("error", err.Error()))
	}
	s.publishNote("deleted", id)
	return nil
}

// History lists up to limit versions of a note, newest first.
func (s *Service) History(ctx context.Context, id string, limit int) ([]models.Commit, error) {
	return s.history.History(ctx, id, limit)
}

// CommitNote records the note's current content as an explicit version,
// flushing any pending autosave for it. A note with no changes since its
// last version is a valid no-op, reported via CommitResult.Committed.
func (s *Service) CommitNote(ctx context.Context, id, message string) (CommitResult, error) {
	s.saver.Cancel(id)
	hash, err := s.history.RecordVersion(ctx, id, message)
	if err == nil {
		s.publishNote("updated", id)
		return CommitResult{Hash: hash, Committed: true}, nil
	}
	if errors.Is(err, apperr.ErrNothingToCommit) {
		head, ok, headErr := s.repo.Head()
		if headErr != nil || !ok {
			return CommitResult{}, headErr
		}
		return CommitResult{Hash: object.CIDToName(head), Committed: false}, nil
	}
	return CommitResult{}, err
}

// RestoreNote overwrites the note's working file with its content at the
// given commit, records the restoration as a new version, and reindexes.
func (s *Service) RestoreNote(ctx context.Context, id, commitHash string) (string, error) {
	s.saver.Cancel(id)
	content, err := s.history.Restore(ctx, id, commitHash)
	if err != nil {
		return "", err
	}
	if _, err := s.history.RecordVersion(ctx, id, "Restore note "+id+" to "+shortHash(commitHash)); err != nil {
		if !errors.Is(err, apperr.ErrNothingToCommit) {
			s.log.Error("record restore failed",
				slog.String("note", id), slog.String("error", err.Error()))
		}
	}
	s.reindexFromDisk(ctx, id)
	s.publishNote("restored", id)
	return content, nil
}

// Diff returns the note's raw content at two commits.
func (s *Service) Diff(ctx context.Context, id, hashA, hashB string) (*models.Diff, error) {
	return s.history.Diff(ctx, id, hashA, hashB)
}

// CreateSnapshot tags the current branch head.
func (s *Service) CreateSnapshot(ctx context.Context, name string) (models.Snapshot, error) {
	snap, err := s.history.CreateSnapshot(ctx, name)
	if err != nil {
		return models.Snapshot{}, err
	}
	s.publish(sse.Event{Type: "snapshot.created", Data: snap})
	return snap, nil
}

// ListSnapshots lists every named snapshot with the commit it resolves to.
func (s *Service) ListSnapshots(ctx context.Context) ([]models.Snapshot, error) {
	return s.history.ListSnapshots(ctx)
}

// Search returns notes matching the query, or all notes for an empty query.
func (s *Service) Search(ctx context.Context, query string) ([]*models.Note, error) {
	return s.index.Search(ctx, query)
}

// SearchWithHighlight returns matching notes with the lines that matched.
func (s *Service) SearchWithHighlight(ctx context.Context, query string) ([]models.SearchMatch, error) {
	return s.index.SearchWithHighlight(ctx, query)
}

// Branch returns the branch every sync operation targets.
func (s *Service) Branch() string {
	return s.repo.Branch()
}

// Push uploads local history to the remote. An empty token falls back to
// the configured sync token.
func (s *Service) Push(ctx context.Context, remoteURL, token string) error {
	err := syncer.NewClient(s.repo, s.pickToken(token)).Push(ctx, remoteURL)
	if err == nil {
		s.publish(sse.Event{Type: "sync.pushed", Data: map[string]string{"remote": remoteURL}})
	}
	return err
}

// Pull fast-forwards local history from the remote, then materializes what
// changed between the old and new head into the working tree and rebuilds
// the search index. A pull that does not move the head leaves the working
// tree untouched.
func (s *Service) Pull(ctx context.Context, remoteURL, token string) error {
	oldHead, hadHead, err := s.repo.Head()
	if err != nil {
		return err
	}
	if err := syncer.NewClient(s.repo, s.pickToken(token)).Pull(ctx, remoteURL); err != nil {
		return err
	}
	newHead, ok, err := s.repo.Head()
	if err != nil {
		return err
	}
	if ok && (!hadHead || !newHead.Equals(oldHead)) {
		oldHash := ""
		if hadHead {
			oldHash = object.CIDToName(oldHead)
		}
		if err := s.checkout(ctx, oldHash, object.CIDToName(newHead)); err != nil {
			return err
		}
	}
	s.publish(sse.Event{Type: "sync.pulled", Data: map[string]string{"remote": remoteURL}})
	return nil
}

// checkout applies the tree difference between two commits to the working
// tree: entries added or changed in newHash are written, entries dropped
// since oldHash are deleted. Only notes/ paths are touched; the index is
// rebuilt afterwards.
func (s *Service) checkout(ctx context.Context, oldHash, newHash string) error {
	oldEntries := map[string]string{}
	if oldHash != "" {
		var err error
		oldEntries, err = s.repo.TreeEntries(oldHash)
		if err != nil {
			return err
		}
	}
	newEntries, err := s.repo.TreeEntries(newHash)
	if err != nil {
		return err
	}

	for path, blob := range newEntries {
		if !strings.HasPrefix(path, vault.NotesDir+"/") || oldEntries[path] == blob {
			continue
		}
		data, err := s.repo.ReadBlobAt(newHash, path)
		if err != nil {
			return fmt.Errorf("noteservice: checkout %s: %w", path, err)
		}
		if err := s.store.Write(path, data); err != nil {
			return fmt.Errorf("noteservice: checkout %s: %w", path, err)
		}
	}
	for path := range oldEntries {
		if !strings.HasPrefix(path, vault.NotesDir+"/") {
			continue
		}
		if _, kept := newEntries[path]; kept {
			continue
		}
		if err := s.store.Delete(path); err != nil {
			s.log.Warn("checkout delete failed",
				slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return s.index.Rebuild(ctx)
}

// autosaveCommit is the scheduler callback recording a debounced version.
func (s *Service) autosaveCommit(id string) {
	_, err := s.history.RecordVersion(context.Background(), id, "")
	switch {
	case err == nil:
		s.publishNote("updated", id)
	case errors.Is(err, apperr.ErrNothingToCommit):
	case errors.Is(err, apperr.ErrPathNotFound):
		// Deleted between the edit and the timer firing.
	default:
		s.log.Error("autosave commit failed",
			slog.String("note", id), slog.String("error", err.Error()))
	}
}

func (s *Service) reindexFromDisk(ctx context.Context, id string) {
	note, err := s.notes.Get(ctx, id)
	if err != nil {
		s.log.Error("reload note for reindex failed",
			slog.String("note", id), slog.String("error", err.Error()))
		return
	}
	if err := s.index.UpdateNoteIndex(ctx, note); err != nil {
		s.log.Error("reindex note failed",
			slog.String("note", id), slog.String("error", err.Error()))
	}
}

func (s *Service) pickToken(token string) string {
	if token != "" {
		return token
	}
	return s.token
}

func (s *Service) publishNote(kind, id string) {
	if s.broker != nil {
		s.broker.PublishNoteEvent(kind, id)
	}
}

func (s *Service) publish(ev sse.Event) {
	if s.broker != nil {
		s.broker.Publish(ev)
	}
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
