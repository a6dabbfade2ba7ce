package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/noteservice"
	"github.com/starford/othala/internal/object"
	"github.com/starford/othala/internal/syncer"
	"github.com/starford/othala/internal/testutil"
)

func newTestServer(t *testing.T) (*noteservice.Service, *httptest.Server) {
	t.Helper()
	svc, vaultDir := testutil.TestService(t)
	srv := httptest.NewServer(NewRouter(svc, false, "", nil, vaultDir))
	t.Cleanup(srv.Close)
	return svc, srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, url, err)
		}
	}
	return resp
}

func createNote(t *testing.T, srv *httptest.Server, title string) *models.Note {
	t.Helper()
	var note models.Note
	resp := doJSON(t, http.MethodPost, srv.URL+"/notes", CreateNoteRequest{Title: title}, &note)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create note = %d", resp.StatusCode)
	}
	return &note
}

func updateMarkdown(t *testing.T, srv *httptest.Server, id, markdown string) *models.Note {
	t.Helper()
	var note models.Note
	resp := doJSON(t, http.MethodPut, srv.URL+"/notes/"+id,
		models.NoteUpdate{Markdown: &markdown}, &note)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update note = %d", resp.StatusCode)
	}
	return &note
}

func commitNote(t *testing.T, srv *httptest.Server, id, message string) noteservice.CommitResult {
	t.Helper()
	var res noteservice.CommitResult
	resp := doJSON(t, http.MethodPost, srv.URL+"/notes/"+id+"/commit",
		CommitRequest{Message: message}, &res)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("commit note = %d", resp.StatusCode)
	}
	return res
}

func TestNoteCRUD(t *testing.T) {
	_, srv := newTestServer(t)

	note := createNote(t, srv, "First")
	if note.Title != "First" || note.ID == "" {
		t.Fatalf("created note = %+v", note)
	}

	var got models.Note
	resp := doJSON(t, http.MethodGet, srv.URL+"/notes/"+note.ID, nil, &got)
	if resp.StatusCode != http.StatusOK || got.ID != note.ID {
		t.Fatalf("get note = %d %+v", resp.StatusCode, got)
	}

	updated := updateMarkdown(t, srv, note.ID, "# Heading")
	if updated.Markdown != "# Heading" {
		t.Errorf("markdown = %q", updated.Markdown)
	}
	if !strings.Contains(updated.Content, "<h1>") {
		t.Errorf("content not rendered: %q", updated.Content)
	}

	var list NoteListResponse
	doJSON(t, http.MethodGet, srv.URL+"/notes", nil, &list)
	if list.Total != 1 || len(list.Notes) != 1 {
		t.Fatalf("list = %+v", list)
	}

	var meta MetadataResponse
	doJSON(t, http.MethodGet, srv.URL+"/metadata", nil, &meta)
	if len(meta.Notes) != 1 || meta.Notes[0].ID != note.ID {
		t.Fatalf("metadata = %+v", meta)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/notes/"+note.ID, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/notes/"+note.ID, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d", resp.StatusCode)
	}
}

func TestUnknownNoteIs404(t *testing.T) {
	_, srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/notes/no-such-id", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get unknown note = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodDelete, srv.URL+"/notes/no-such-id", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete unknown note = %d", resp.StatusCode)
	}
}

func TestHistoryCommitRestoreDiff(t *testing.T) {
	_, srv := newTestServer(t)
	note := createNote(t, srv, "Versioned")

	updateMarkdown(t, srv, note.ID, "hello")
	h2 := commitNote(t, srv, note.ID, "second")
	updateMarkdown(t, srv, note.ID, "world")
	h3 := commitNote(t, srv, note.ID, "third")
	if !h2.Committed || !h3.Committed {
		t.Fatalf("commits not recorded: %+v %+v", h2, h3)
	}

	// Unchanged content commits as a valid no-op.
	noop := commitNote(t, srv, note.ID, "again")
	if noop.Committed {
		t.Error("no-op commit reported Committed=true")
	}

	var hist HistoryResponse
	doJSON(t, http.MethodGet, srv.URL+"/notes/"+note.ID+"/history", nil, &hist)
	if len(hist.Commits) < 3 {
		t.Fatalf("history = %+v", hist)
	}
	if hist.Commits[0].Hash != h3.Hash {
		t.Errorf("history[0] = %s, want %s", hist.Commits[0].Hash, h3.Hash)
	}

	var d models.Diff
	resp := doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/notes/%s/diff?from=%s&to=%s", srv.URL, note.ID, h2.Hash, h3.Hash), nil, &d)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("diff = %d", resp.StatusCode)
	}
	if !strings.Contains(d.OldContent, "hello") || !strings.Contains(d.NewContent, "world") {
		t.Errorf("diff = %+v", d)
	}

	var restored RestoreResponse
	resp = doJSON(t, http.MethodPost, srv.URL+"/notes/"+note.ID+"/restore",
		RestoreRequest{Hash: h2.Hash}, &restored)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore = %d", resp.StatusCode)
	}
	var got models.Note
	doJSON(t, http.MethodGet, srv.URL+"/notes/"+note.ID, nil, &got)
	if got.Markdown != "hello" {
		t.Errorf("markdown after restore = %q", got.Markdown)
	}
}

func TestDiffRequiresBothHashes(t *testing.T) {
	_, srv := newTestServer(t)
	note := createNote(t, srv, "A")
	resp := doJSON(t, http.MethodGet, srv.URL+"/notes/"+note.ID+"/diff?from=abc", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("diff without 'to' = %d", resp.StatusCode)
	}
}

func TestSnapshots(t *testing.T) {
	_, srv := newTestServer(t)
	note := createNote(t, srv, "A")
	updateMarkdown(t, srv, note.ID, "content")
	commitNote(t, srv, note.ID, "")

	var snap models.Snapshot
	resp := doJSON(t, http.MethodPost, srv.URL+"/snapshots", SnapshotRequest{Name: "v1"}, &snap)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create snapshot = %d", resp.StatusCode)
	}
	if !strings.Contains(snap.Name, "v1") || snap.Hash == "" {
		t.Fatalf("snapshot = %+v", snap)
	}

	var list SnapshotListResponse
	doJSON(t, http.MethodGet, srv.URL+"/snapshots", nil, &list)
	if len(list.Snapshots) != 1 || list.Snapshots[0].Hash != snap.Hash {
		t.Fatalf("snapshots = %+v", list)
	}
}

func TestSearchEndpoints(t *testing.T) {
	_, srv := newTestServer(t)
	note := createNote(t, srv, "Gardening")
	updateMarkdown(t, srv, note.ID, "water the tomatoes daily")
	other := createNote(t, srv, "Cooking")
	updateMarkdown(t, srv, other.ID, "boil pasta")

	var res SearchResponse
	doJSON(t, http.MethodGet, srv.URL+"/search?q=tomatoes", nil, &res)
	if len(res.Results) != 1 || res.Results[0].ID != note.ID {
		t.Fatalf("search = %+v", res.Results)
	}

	// Empty query lists every note.
	doJSON(t, http.MethodGet, srv.URL+"/search", nil, &res)
	if len(res.Results) != 2 {
		t.Fatalf("empty search = %d results", len(res.Results))
	}

	var hl HighlightResponse
	doJSON(t, http.MethodGet, srv.URL+"/search/highlight?q=tomatoes", nil, &hl)
	if len(hl.Results) != 1 || len(hl.Results[0].Matches) == 0 {
		t.Fatalf("highlight = %+v", hl.Results)
	}
}

func TestSyncEndpoints(t *testing.T) {
	remoteRepo, err := object.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := remoteRepo.Init(); err != nil {
		t.Fatal(err)
	}
	remote := httptest.NewServer(syncer.Handler(remoteRepo, ""))
	defer remote.Close()

	_, srv := newTestServer(t)
	note := createNote(t, srv, "Synced")
	updateMarkdown(t, srv, note.ID, "shared content")
	commitNote(t, srv, note.ID, "")

	var res SyncResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/sync/push",
		SyncRequest{RemoteURL: remote.URL}, &res)
	if resp.StatusCode != http.StatusOK || !res.Success {
		t.Fatalf("push = %d %+v", resp.StatusCode, res)
	}

	_, other := newTestServer(t)
	resp = doJSON(t, http.MethodPost, other.URL+"/sync/pull",
		SyncRequest{RemoteURL: remote.URL}, &res)
	if resp.StatusCode != http.StatusOK || !res.Success {
		t.Fatalf("pull = %d %+v", resp.StatusCode, res)
	}
	var got models.Note
	if r := doJSON(t, http.MethodGet, other.URL+"/notes/"+note.ID, nil, &got); r.StatusCode != http.StatusOK {
		t.Fatalf("get pulled note = %d", r.StatusCode)
	}
	if got.Markdown != "shared content" {
		t.Errorf("pulled markdown = %q", got.Markdown)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/sync/push", SyncRequest{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("push without remoteUrl = %d", resp.StatusCode)
	}
}

func TestSyncRejectsOtherBranches(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/sync/push",
		SyncRequest{RemoteURL: "http://127.0.0.1:1", Branch: "dev"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("push with branch dev = %d, want 400", resp.StatusCode)
	}

	// Naming the synced branch explicitly is fine; the request reaches the
	// remote (which is unreachable here, so anything but a 400 will do).
	resp = doJSON(t, http.MethodPost, srv.URL+"/sync/pull",
		SyncRequest{RemoteURL: "http://127.0.0.1:1", Branch: "main"}, nil)
	if resp.StatusCode == http.StatusBadRequest {
		t.Errorf("pull with branch main = %d, want it accepted", resp.StatusCode)
	}
}

func TestAuthMiddleware(t *testing.T) {
	svc, vaultDir := testutil.TestService(t)
	srv := httptest.NewServer(NewRouter(svc, true, "secret", nil, vaultDir))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/notes")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/notes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token = %d", resp.StatusCode)
	}
}

func TestAssetUploadAndServe(t *testing.T) {
	svc, vaultDir := testutil.TestService(t)
	srv := httptest.NewServer(NewRouter(svc, false, "", nil, vaultDir))
	defer srv.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "diagram.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("png-bytes"))
	mw.Close()

	resp, err := http.Post(srv.URL+"/assets", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	var up AssetUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || up.Filename != "diagram.png" {
		t.Fatalf("upload = %d %+v", resp.StatusCode, up)
	}

	// Serving goes through the public asset route.
	assets := chi.NewRouter()
	assets.Get("/assets/{filename}", NewAssetHandler(vaultDir).ServeFile)
	public := httptest.NewServer(assets)
	defer public.Close()

	resp, err = http.Get(public.URL + "/assets/diagram.png")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "png-bytes" {
		t.Fatalf("serve asset = %d %q", resp.StatusCode, body)
	}

	// Traversal attempts are rejected.
	req, _ := http.NewRequest(http.MethodGet, public.URL+"/assets/..%2Fnotes", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Error("traversal filename was served")
	}
}
