package syncer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/object"
)

var testAuthor = models.Author{Name: "Othala", Email: "othala@localhost"}

const testToken = "sync-secret"

func tempRepo(t *testing.T) *object.Repository {
	t.Helper()
	r, err := object.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := r.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func remoteServer(t *testing.T) (*object.Repository, *httptest.Server) {
	t.Helper()
	repo := tempRepo(t)
	srv := httptest.NewServer(Handler(repo, testToken))
	t.Cleanup(srv.Close)
	return repo, srv
}

func commitNote(t *testing.T, r *object.Repository, id, content string) string {
	t.Helper()
	rel := "notes/" + id + ".md"
	abs := filepath.Join(r.WorkRoot(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	hash, err := r.StageAndCommit([]string{rel}, "Auto-save note "+id, testAuthor)
	if err != nil {
		t.Fatalf("StageAndCommit: %v", err)
	}
	return hash
}

func TestPushThenPull(t *testing.T) {
	remote, srv := remoteServer(t)

	local := tempRepo(t)
	commitNote(t, local, "a1", "# First\n")
	hash := commitNote(t, local, "a1", "# First, revised\n")

	if err := NewClient(local, testToken).Push(context.Background(), srv.URL); err != nil {
		t.Fatalf("Push: %v", err)
	}

	remoteHead, ok, err := remote.Head()
	if err != nil || !ok {
		t.Fatalf("remote head: ok=%v err=%v", ok, err)
	}
	if object.CIDToName(remoteHead) != hash {
		t.Errorf("remote head = %s, want %s", object.CIDToName(remoteHead), hash)
	}

	// A fresh vault pulls the full history and can read the note content
	// at the synced head.
	other := tempRepo(t)
	if err := NewClient(other, testToken).Pull(context.Background(), srv.URL); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	data, err := other.ReadBlobAt(hash, "notes/a1.md")
	if err != nil {
		t.Fatalf("ReadBlobAt after pull: %v", err)
	}
	if string(data) != "# First, revised\n" {
		t.Errorf("pulled content = %q", data)
	}
	log, err := other.Log("", 20)
	if err != nil {
		t.Fatalf("Log after pull: %v", err)
	}
	if len(log) != 3 {
		t.Errorf("pulled log has %d commits, want 3", len(log))
	}
}

func TestPushRecordsOriginRemote(t *testing.T) {
	_, srv := remoteServer(t)
	local := tempRepo(t)
	commitNote(t, local, "a1", "body\n")

	if err := NewClient(local, testToken).Push(context.Background(), srv.URL); err != nil {
		t.Fatalf("Push: %v", err)
	}
	url, ok := local.Remote(OriginRemote)
	if !ok || url != srv.URL {
		t.Errorf("origin remote = %q ok=%v, want %q", url, ok, srv.URL)
	}
}

func TestPushUpToDateIsNoop(t *testing.T) {
	_, srv := remoteServer(t)
	local := tempRepo(t)
	commitNote(t, local, "a1", "body\n")

	client := NewClient(local, testToken)
	if err := client.Push(context.Background(), srv.URL); err != nil {
		t.Fatalf("first Push: %v", err)
	}
	if err := client.Push(context.Background(), srv.URL); err != nil {
		t.Fatalf("second Push: %v", err)
	}
}

func TestPushRejectsDivergedRemote(t *testing.T) {
	remote, srv := remoteServer(t)
	commitNote(t, remote, "r1", "remote work\n")

	local := tempRepo(t)
	commitNote(t, local, "l1", "local work\n")

	err := NewClient(local, testToken).Push(context.Background(), srv.URL)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("Push onto diverged remote: err = %v, want ErrConflict", err)
	}

	// The remote head must be untouched.
	head, _, _ := remote.Head()
	log, _ := remote.Log("", 20)
	if len(log) != 2 || !strings.Contains(log[0].Message, "r1") {
		t.Errorf("remote history changed: head=%s log=%v", object.CIDToName(head), log)
	}
}

func TestPullFastForwardOnly(t *testing.T) {
	remote, srv := remoteServer(t)
	commitNote(t, remote, "r1", "remote work\n")

	local := tempRepo(t)
	commitNote(t, local, "l1", "local work\n")

	err := NewClient(local, testToken).Pull(context.Background(), srv.URL)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("Pull into diverged local: err = %v, want ErrConflict", err)
	}
}

func TestPullWhenAheadIsNoop(t *testing.T) {
	_, srv := remoteServer(t)
	local := tempRepo(t)
	commitNote(t, local, "a1", "v1\n")

	client := NewClient(local, testToken)
	if err := client.Push(context.Background(), srv.URL); err != nil {
		t.Fatalf("Push: %v", err)
	}
	ahead := commitNote(t, local, "a1", "v2\n")

	if err := client.Pull(context.Background(), srv.URL); err != nil {
		t.Fatalf("Pull while ahead: %v", err)
	}
	head, _, _ := local.Head()
	if object.CIDToName(head) != ahead {
		t.Errorf("Pull moved local head off %s to %s", ahead, object.CIDToName(head))
	}
}

func TestAuthRequired(t *testing.T) {
	_, srv := remoteServer(t)

	resp, err := http.Get(srv.URL + "/refs")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated /refs = %d, want 401", resp.StatusCode)
	}

	local := tempRepo(t)
	commitNote(t, local, "a1", "body\n")
	if err := NewClient(local, "wrong-token").Push(context.Background(), srv.URL); err == nil {
		t.Error("Push with bad token succeeded")
	}
}

func TestServerRejectsMismatchedObject(t *testing.T) {
	_, srv := remoteServer(t)

	// A valid CID for different content than the uploaded body.
	c, err := object.ComputeCID([]byte("honest content"))
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost,
		srv.URL+"/objects/"+object.CIDToName(c), strings.NewReader("tampered content"))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("mismatched object upload = %d, want 400", resp.StatusCode)
	}
}
