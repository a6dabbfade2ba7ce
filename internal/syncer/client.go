package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gocid "github.com/ipfs/go-cid"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/object"
)

// OriginRemote is the remote name push and pull operate on.
const OriginRemote = "origin"

// Client pushes and pulls a repository's branch against a remote serving the
// object-exchange protocol.
type Client struct {
	repo  *object.Repository
	http  *http.Client
	token string
}

// NewClient returns a Client for the repository. An empty token disables
// request authentication.
func NewClient(repo *object.Repository, token string) *Client {
	return &Client{
		repo:  repo,
		http:  &http.Client{Timeout: 30 * time.Second},
		token: token,
	}
}

// Push uploads every object reachable from the local branch head that the
// remote is missing, then advances the remote branch ref. The update is a
// compare-and-set against the remote head observed at the start, so a
// concurrent push surfaces as apperr.ErrConflict. remoteURL is recorded as
// the origin remote.
func (c *Client) Push(ctx context.Context, remoteURL string) error {
	if err := c.prepare(remoteURL); err != nil {
		return err
	}
	branchRef := object.HeadPrefix + c.repo.Branch()

	localHead, ok, err := c.repo.Head()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("syncer: no local head to push")
	}

	remoteRefs, err := c.fetchRefs(ctx, remoteURL)
	if err != nil {
		return err
	}
	remoteHead := remoteRefs[branchRef]
	if remoteHead == object.CIDToName(localHead) {
		return nil
	}

	stop := map[string]struct{}{}
	if remoteHead != "" {
		remoteCID, err := object.ParseCID(remoteHead)
		if err != nil {
			return fmt.Errorf("syncer: remote head: %w", err)
		}
		// Refuse a push that would discard remote commits. A remote head
		// we have never seen cannot be an ancestor of the local head.
		if !c.repo.Store.Has(remoteCID) {
			return fmt.Errorf("syncer: remote has diverged, pull first: %w", apperr.ErrConflict)
		}
		ff, err := c.repo.IsAncestor(remoteCID, localHead)
		if err != nil {
			return err
		}
		if !ff {
			return fmt.Errorf("syncer: remote has diverged: %w", apperr.ErrConflict)
		}
		stop[remoteHead] = struct{}{}
	}

	objects, err := c.repo.CollectReachable(localHead, stop)
	if err != nil {
		return err
	}
	// Parents first, so an interrupted push never leaves a commit whose
	// history is missing on the remote.
	for i := len(objects) - 1; i >= 0; i-- {
		if err := c.uploadObject(ctx, remoteURL, objects[i]); err != nil {
			return err
		}
	}

	return c.updateRef(ctx, remoteURL, branchRef, remoteHead, object.CIDToName(localHead))
}

// Pull downloads the remote branch head and every missing object it reaches,
// then fast-forwards the local branch ref. A local head that is not an
// ancestor of the remote head returns apperr.ErrConflict; a local head
// already at or ahead of the remote is a no-op. remoteURL is recorded as the
// origin remote.
func (c *Client) Pull(ctx context.Context, remoteURL string) error {
	if err := c.prepare(remoteURL); err != nil {
		return err
	}
	branchRef := object.HeadPrefix + c.repo.Branch()

	remoteRefs, err := c.fetchRefs(ctx, remoteURL)
	if err != nil {
		return err
	}
	remoteName, ok := remoteRefs[branchRef]
	if !ok {
		return fmt.Errorf("syncer: remote has no branch %s", c.repo.Branch())
	}
	remoteHead, err := object.ParseCID(remoteName)
	if err != nil {
		return fmt.Errorf("syncer: remote head: %w", err)
	}

	if err := c.repo.FetchInto(remoteHead, func(obj gocid.Cid) ([]byte, error) {
		return c.downloadObject(ctx, remoteURL, obj)
	}); err != nil {
		return err
	}

	localHead, ok, err := c.repo.Head()
	if err != nil {
		return err
	}
	if ok {
		if localHead.Equals(remoteHead) {
			return nil
		}
		behind, err := c.repo.IsAncestor(localHead, remoteHead)
		if err != nil {
			return err
		}
		if !behind {
			ahead, err := c.repo.IsAncestor(remoteHead, localHead)
			if err != nil {
				return err
			}
			if ahead {
				return nil
			}
			return fmt.Errorf("syncer: local branch has diverged: %w", apperr.ErrConflict)
		}
	}
	return c.repo.Refs.Set(branchRef, remoteHead)
}

// prepare makes sure the repository is initialized and the origin remote
// points at remoteURL.
func (c *Client) prepare(remoteURL string) error {
	if err := c.repo.Init(); err != nil {
		return err
	}
	return c.repo.AddRemote(OriginRemote, remoteURL)
}

func (c *Client) fetchRefs(ctx context.Context, remoteURL string) (map[string]string, error) {
	var body refsBody
	if err := c.getJSON(ctx, remoteURL+"/refs", &body); err != nil {
		return nil, err
	}
	if body.Refs == nil {
		body.Refs = map[string]string{}
	}
	return body.Refs, nil
}

func (c *Client) uploadObject(ctx context.Context, remoteURL string, obj gocid.Cid) error {
	data, err := c.repo.Store.Get(obj)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		remoteURL+"/objects/"+object.CIDToName(obj), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return c.do(req, nil)
}

func (c *Client) downloadObject(ctx context.Context, remoteURL string, obj gocid.Cid) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		remoteURL+"/objects/"+object.CIDToName(obj), nil)
	if err != nil {
		return nil, err
	}
	var data []byte
	if err := c.do(req, func(resp *http.Response) error {
		data, err = io.ReadAll(resp.Body)
		return err
	}); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) updateRef(ctx context.Context, remoteURL, name, old, target string) error {
	payload, err := json.Marshal(refUpdateBody{Target: target, Old: old})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		remoteURL+"/refs/"+name, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

// do sends the request with auth attached and maps non-2xx responses to
// errors, decoding the server's error envelope when present. onOK consumes
// the body of a successful response.
func (c *Client) do(req *http.Request, onOK func(*http.Response) error) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("syncer: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if onOK != nil {
			return onOK(resp)
		}
		return nil
	}

	msg := readErrorMessage(resp.Body)
	err = fmt.Errorf("syncer: %s %s: %s (%d)", req.Method, req.URL.Path, msg, resp.StatusCode)
	if resp.StatusCode == http.StatusConflict {
		err = fmt.Errorf("%w: %w", err, apperr.ErrConflict)
	}
	return err
}

func readErrorMessage(body io.Reader) string {
	var envelope struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
		return envelope.Error
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return s
	}
	return "request failed"
}
