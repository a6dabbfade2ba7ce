package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// vaultRoot is used to resolve the assets directory.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler, vaultRoot string) chi.Router {
	h := NewHandler(svc)
	ah := NewAssetHandler(vaultRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/metadata", h.ListMetadata)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Version history.
	r.Get("/notes/{id}/history", h.History)
	r.Post("/notes/{id}/commit", h.CommitNote)
	r.Post("/notes/{id}/restore", h.RestoreNote)
	r.Get("/notes/{id}/diff", h.Diff)

	// Remote sync.
	r.Post("/sync/push", h.Push)
	r.Post("/sync/pull", h.Pull)

	// Snapshots.
	r.Get("/snapshots", h.ListSnapshots)
	r.Post("/snapshots", h.CreateSnapshot)

	// Search.
	r.Get("/search", h.Search)
	r.Get("/search/highlight", h.SearchWithHighlight)

	// Asset upload (auth-protected); serving is mounted outside /api.
	r.Post("/assets", ah.Upload)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
