// Package models defines the domain types for Othala.
package models

import "time"

// Default field values applied when a note is created or when a persisted
// file is missing its metadata header.
const (
	DefaultTitle    = "Untitled Note"
	DefaultCategory = "Uncategorized"
)

// Note is the primary entity: a Markdown document with a cached HTML
// rendering, persisted as one file and versioned through the object store.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Markdown  string    `json:"markdown"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteMetadata is a Note without its content fields, returned by list
// operations that only need sidebar-level data.
type NoteMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Metadata returns the note's metadata projection.
func (n *Note) Metadata() NoteMetadata {
	return NoteMetadata{
		ID:        n.ID,
		Title:     n.Title,
		Category:  n.Category,
		Tags:      n.Tags,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

// NoteUpdate carries a partial update; nil fields are left unchanged.
type NoteUpdate struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Markdown *string   `json:"markdown,omitempty"`
	Category *string   `json:"category,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
}

// Author identifies who recorded a commit.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Commit is one entry in a note's version history.
type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a named tag resolving to a commit.
type Snapshot struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// Diff holds the raw content of a note at two commits.
type Diff struct {
	OldContent string `json:"oldContent"`
	NewContent string `json:"newContent"`
}

// SearchMatch pairs a note with the lines that matched a query.
type SearchMatch struct {
	Note    *Note    `json:"note"`
	Matches []string `json:"matches"`
}
