// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Othala tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/noteservice"
	"github.com/starford/othala/internal/vault"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *noteservice.Service
	store vault.Provider
}

// New creates a new MCP server with all Othala tools registered.
func New(svc *noteservice.Service, store vault.Provider) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles, tags, and bodies. "+
			"Returns matching notes with the lines that matched. An empty query lists all notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note: metadata, Markdown source, and rendered content."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note with the given title. The note starts empty; "+
			"use update_note to fill in Markdown content. Notes are stored in the canonical "+
			"format described by the get_note_contract tool."),
		mcp.WithString("title", mcp.Description("Note title (defaults to Untitled Note)")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Update a note's Markdown content, title, category, or tags. "+
			"Omitted fields are left unchanged. Edits are versioned automatically."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("markdown", mcp.Description("New Markdown body")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("category", mcp.Description("New category")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List every note's metadata (id, title, category, tags, timestamps)."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("note_history",
		mcp.WithDescription("List a note's version history, newest first."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("limit", mcp.Description("Maximum entries (default 20)")),
	), s.noteHistory)

	s.mcp.AddTool(mcp.NewTool("restore_version",
		mcp.WithDescription("Restore a note to its content at a past commit. The restoration "+
			"is recorded as a new history entry; no history is rewritten."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("hash", mcp.Required(), mcp.Description("Commit hash to restore")),
	), s.restoreVersion)

	s.mcp.AddTool(mcp.NewTool("diff_versions",
		mcp.WithDescription("Get a note's raw content at two commits for comparison."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("from", mcp.Required(), mcp.Description("Older commit hash")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Newer commit hash")),
	), s.diffVersions)

	s.mcp.AddTool(mcp.NewTool("create_snapshot",
		mcp.WithDescription("Tag the current state of the whole vault with a snapshot name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Snapshot name")),
	), s.createSnapshot)

	s.mcp.AddTool(mcp.NewTool("list_snapshots",
		mcp.WithDescription("List named snapshots with the commits they resolve to."),
	), s.listSnapshots)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical Othala note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Download a file from a URL (or decode a data: URI) and store it "+
			"in the vault's assets directory. Returns a Markdown image reference."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or base64 data URI")),
		mcp.WithString("filename", mcp.Description("Optional filename override")),
	), s.uploadAsset)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical note encoding used by every note file."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.SearchWithHighlight(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return jsonResult(note), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	note, err := s.svc.CreateNote(ctx, title)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var upd models.NoteUpdate
	if v := req.GetString("markdown", ""); v != "" {
		upd.Markdown = &v
	}
	if v := req.GetString("title", ""); v != "" {
		upd.Title = &v
	}
	if v := req.GetString("category", ""); v != "" {
		upd.Category = &v
	}
	note, err := s.svc.UpdateNote(ctx, id, upd)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	meta, err := s.svc.ListMetadata(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(meta), nil
}

func (s *Server) noteHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit, _ := strconv.Atoi(req.GetString("limit", ""))
	commits, err := s.svc.History(ctx, id, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(commits), nil
}

func (s *Server) restoreVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hash, err := req.RequireString("hash")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.svc.RestoreNote(ctx, id, hash)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) diffVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Diff(ctx, id, from, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(d), nil
}

func (s *Server) createSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.svc.CreateSnapshot(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(snap), nil
}

func (s *Server) listSnapshots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snaps, err := s.svc.ListSnapshots(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(snaps), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
