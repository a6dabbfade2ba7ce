package api

import (
	"github.com/starford/othala/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title string `json:"title" example:"Meeting Notes"`
}

// UpdateNoteRequest carries a partial note update; absent fields are left
// unchanged.
type UpdateNoteRequest = models.NoteUpdate

// CommitRequest is the request body for an explicit version commit.
type CommitRequest struct {
	Message string `json:"message" example:"Before rewrite"`
}

// RestoreRequest names the commit to restore a note to.
type RestoreRequest struct {
	Hash string `json:"hash" validate:"required"`
}

// SyncRequest is the request body for push and pull.
type SyncRequest struct {
	RemoteURL string `json:"remoteUrl" validate:"required"`
	Token     string `json:"token,omitempty"`
	Branch    string `json:"branch,omitempty"`
}

// SnapshotRequest is the request body for creating a named snapshot.
type SnapshotRequest struct {
	Name string `json:"name" validate:"required"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []*models.Note `json:"notes"`
	Total int            `json:"total" example:"42"`
}

// MetadataResponse wraps the sidebar projection listing.
type MetadataResponse struct {
	Notes []models.NoteMetadata `json:"notes"`
}

// HistoryResponse wraps a note's version history.
type HistoryResponse struct {
	Commits []models.Commit `json:"commits"`
}

// RestoreResponse carries the restored note content.
type RestoreResponse struct {
	Content string `json:"content"`
}

// SyncResponse reports a completed push or pull.
type SyncResponse struct {
	Success bool `json:"success"`
}

// SnapshotListResponse wraps the snapshot listing.
type SnapshotListResponse struct {
	Snapshots []models.Snapshot `json:"snapshots"`
}

// SearchResponse wraps plain search results.
type SearchResponse struct {
	Results []*models.Note `json:"results"`
}

// HighlightResponse wraps search results with matched lines.
type HighlightResponse struct {
	Results []models.SearchMatch `json:"results"`
}

// AssetUploadResponse is returned after a successful asset upload.
type AssetUploadResponse struct {
	Filename string `json:"filename" example:"diagram.png"`
	Size     int64  `json:"size" example:"12345"`
	URL      string `json:"url" example:"/assets/diagram.png"`
}
