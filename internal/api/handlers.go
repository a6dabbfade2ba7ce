package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

func noteID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// writeDomainError maps service-layer failures onto the error envelope.
func writeDomainError(w http.ResponseWriter, op string, err error, attrs ...slog.Attr) {
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrObjectNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrTagExists):
		writeJSON(w, http.StatusConflict, errorBody("snapshot already exists"))
	default:
		args := make([]any, 0, len(attrs)+1)
		for _, a := range attrs {
			args = append(args, a)
		}
		args = append(args, slog.String("error", err.Error()))
		slog.Error(op+" failed", args...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List all notes, most recently updated first
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ListNotes(r.Context())
	if err != nil {
		writeDomainError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// ListMetadata handles GET /api/metadata.
//
//	@Summary		List note metadata without content
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	MetadataResponse
//	@Security		BearerAuth
//	@Router			/metadata [get]
func (h *Handler) ListMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := h.svc.ListMetadata(r.Context())
	if err != nil {
		writeDomainError(w, "list metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, MetadataResponse{Notes: meta})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeDomainError(w, "get note", err, slog.String("note", id))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Title)
	if err != nil {
		writeDomainError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Apply a partial update to a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"Fields to update"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := noteID(r)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := h.svc.UpdateNote(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, "update note", err, slog.String("note", id))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note; its version history stays readable
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeDomainError(w, "delete note", err, slog.String("note", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /api/notes/{id}/history.
//
//	@Summary		List a note's version history, newest first
//	@Tags			history
//	@Produce		json
//	@Param			id		path		string	true	"Note id"
//	@Param			limit	query		int		false	"Maximum entries"
//	@Success		200		{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	commits, err := h.svc.History(r.Context(), id, limit)
	if err != nil {
		writeDomainError(w, "history", err, slog.String("note", id))
		return
	}
	if commits == nil {
		commits = []models.Commit{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Commits: commits})
}

// CommitNote handles POST /api/notes/{id}/commit.
//
//	@Summary		Record the note's current content as an explicit version
//	@Tags			history
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Note id"
//	@Param			body	body		CommitRequest	false	"Commit message"
//	@Success		200		{object}	noteservice.CommitResult
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/commit [post]
func (h *Handler) CommitNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	var req CommitRequest
	if r.Body != nil {
		// An empty body means an autogenerated message.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	res, err := h.svc.CommitNote(r.Context(), id, req.Message)
	if err != nil {
		if errors.Is(err, apperr.ErrPathNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		writeDomainError(w, "commit note", err, slog.String("note", id))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RestoreNote handles POST /api/notes/{id}/restore.
//
//	@Summary		Restore a note to its content at a past commit
//	@Tags			history
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Note id"
//	@Param			body	body		RestoreRequest	true	"Commit to restore"
//	@Success		200		{object}	RestoreResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/restore [post]
func (h *Handler) RestoreNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	var req RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Hash == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("hash is required"))
		return
	}
	content, err := h.svc.RestoreNote(r.Context(), id, req.Hash)
	if err != nil {
		writeDomainError(w, "restore note", err, slog.String("note", id))
		return
	}
	writeJSON(w, http.StatusOK, RestoreResponse{Content: content})
}

// Diff handles GET /api/notes/{id}/diff.
//
//	@Summary		Get a note's raw content at two commits
//	@Tags			history
//	@Produce		json
//	@Param			id		path		string	true	"Note id"
//	@Param			from	query		string	true	"Older commit hash"
//	@Param			to		query		string	true	"Newer commit hash"
//	@Success		200		{object}	models.Diff
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/diff [get]
func (h *Handler) Diff(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'from' and 'to' are required"))
		return
	}
	d, err := h.svc.Diff(r.Context(), id, from, to)
	if err != nil {
		writeDomainError(w, "diff", err, slog.String("note", id))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Push handles POST /api/sync/push.
//
//	@Summary		Push local history to a remote vault
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SyncRequest	true	"Remote to push to"
//	@Success		200		{object}	SyncResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync/push [post]
func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	h.sync(w, r, h.svc.Push)
}

// Pull handles POST /api/sync/pull.
//
//	@Summary		Pull remote history into the local vault
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SyncRequest	true	"Remote to pull from"
//	@Success		200		{object}	SyncResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync/pull [post]
func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	h.sync(w, r, h.svc.Pull)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, remoteURL, token string) error) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RemoteURL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("remoteUrl is required"))
		return
	}
	if req.Branch != "" && req.Branch != h.svc.Branch() {
		writeJSON(w, http.StatusBadRequest, errorBody("unsupported branch: only "+h.svc.Branch()+" is synced"))
		return
	}
	if err := op(r.Context(), req.RemoteURL, req.Token); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
			return
		}
		slog.Error("sync failed", slog.String("remote", req.RemoteURL), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("sync failed: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Success: true})
}

// CreateSnapshot handles POST /api/snapshots.
//
//	@Summary		Tag the current head with a snapshot name
//	@Tags			snapshots
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SnapshotRequest	true	"Snapshot name"
//	@Success		201		{object}	models.Snapshot
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/snapshots [post]
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	snap, err := h.svc.CreateSnapshot(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, "create snapshot", err, slog.String("name", req.Name))
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// ListSnapshots handles GET /api/snapshots.
//
//	@Summary		List named snapshots
//	@Tags			snapshots
//	@Produce		json
//	@Success		200	{object}	SnapshotListResponse
//	@Security		BearerAuth
//	@Router			/snapshots [get]
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.svc.ListSnapshots(r.Context())
	if err != nil {
		writeDomainError(w, "list snapshots", err)
		return
	}
	if snaps == nil {
		snaps = []models.Snapshot{}
	}
	writeJSON(w, http.StatusOK, SnapshotListResponse{Snapshots: snaps})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes; empty query lists all
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	false	"Search query"
//	@Success		200	{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	results, err := h.svc.Search(r.Context(), q)
	if err != nil {
		writeDomainError(w, "search", err, slog.String("query", q))
		return
	}
	if results == nil {
		results = []*models.Note{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// SearchWithHighlight handles GET /api/search/highlight.
//
//	@Summary		Search notes and return the lines that matched
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	false	"Search query"
//	@Success		200	{object}	HighlightResponse
//	@Security		BearerAuth
//	@Router			/search/highlight [get]
func (h *Handler) SearchWithHighlight(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	results, err := h.svc.SearchWithHighlight(r.Context(), q)
	if err != nil {
		writeDomainError(w, "search with highlight", err, slog.String("query", q))
		return
	}
	if results == nil {
		results = []models.SearchMatch{}
	}
	writeJSON(w, http.StatusOK, HighlightResponse{Results: results})
}
