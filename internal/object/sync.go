package object

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"

	"github.com/starford/othala/internal/apperr"
)

// ListRefs returns every branch and tag ref with its target hash.
func (r *Repository) ListRefs() (map[string]string, error) {
	out := map[string]string{}
	for _, prefix := range []string{HeadPrefix, TagPrefix} {
		names, err := r.Refs.List(prefix)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			c, ok, err := r.Refs.Get(name)
			if err != nil || !ok {
				continue
			}
			out[name] = CIDToName(c)
		}
	}
	return out, nil
}

// CompareAndSetRef atomically updates a ref, requiring its current value to
// equal old ("" means the ref must not exist yet). A mismatch returns
// apperr.ErrConflict and leaves the ref untouched.
func (r *Repository) CompareAndSetRef(name, old, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok, err := r.Refs.Get(name)
	if err != nil {
		return err
	}
	currentName := ""
	if ok {
		currentName = CIDToName(current)
	}
	if currentName != old {
		return fmt.Errorf("object: ref %s moved: %w", name, apperr.ErrConflict)
	}
	c, err := ParseCID(target)
	if err != nil {
		return err
	}
	return r.Refs.Set(name, c)
}

// TreeEntries returns the path-to-blob mapping of the tree at a commit.
func (r *Repository) TreeEntries(commitHash string) (map[string]string, error) {
	c, err := ParseCID(commitHash)
	if err != nil {
		return nil, err
	}
	commit, err := r.Store.getCommit(c)
	if err != nil {
		return nil, err
	}
	tree, err := r.treeOf(commit)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(tree.Entries))
	for path, blob := range tree.Entries {
		out[path] = blob
	}
	return out, nil
}

// FetchInto ensures every object reachable from the given commit exists in
// the local store, using fetch to retrieve missing ones. The local graph is
// only ever extended; existing objects are never touched.
//
// A commit object is written only after its tree, blobs, and parent chain
// are all local, so a stored commit always has a complete subgraph. An
// interrupted fetch leaves no partially reachable commit behind; retrying
// resumes where the interruption hit.
func (r *Repository) FetchInto(from gocid.Cid, fetch func(gocid.Cid) ([]byte, error)) error {
	ensure := func(c gocid.Cid) ([]byte, error) {
		if r.Store.Has(c) {
			return r.Store.Get(c)
		}
		data, err := fetch(c)
		if err != nil {
			return nil, err
		}
		stored, err := r.Store.Put(data)
		if err != nil {
			return nil, err
		}
		if !stored.Equals(c) {
			return nil, fmt.Errorf("object: fetched object digest mismatch for %s", CIDToName(c))
		}
		return data, nil
	}

	// Walk the parent chain first, collecting the missing commits newest
	// first. Commit payloads are held in memory, not stored yet.
	var missing []gocid.Cid
	var payloads [][]byte
	current := from
	for current != gocid.Undef && !r.Store.Has(current) {
		data, err := fetch(current)
		if err != nil {
			return err
		}
		got, err := ComputeCID(data)
		if err != nil {
			return err
		}
		if !got.Equals(current) {
			return fmt.Errorf("object: fetched object digest mismatch for %s", CIDToName(current))
		}
		commit, err := decodeCommit(data)
		if err != nil {
			return err
		}
		missing = append(missing, current)
		payloads = append(payloads, data)

		if commit.Parent == "" {
			break
		}
		current, err = ParseCID(commit.Parent)
		if err != nil {
			return err
		}
	}

	// Store oldest first: fetch each commit's tree and blobs, then write
	// the commit itself as the final step.
	for i := len(missing) - 1; i >= 0; i-- {
		commit, err := decodeCommit(payloads[i])
		if err != nil {
			return err
		}
		treeCID, err := ParseCID(commit.Tree)
		if err != nil {
			return err
		}
		treeData, err := ensure(treeCID)
		if err != nil {
			return err
		}
		tree, err := decodeTree(treeData)
		if err != nil {
			return err
		}
		for _, blobName := range tree.Entries {
			blobCID, err := ParseCID(blobName)
			if err != nil {
				return err
			}
			if _, err := ensure(blobCID); err != nil {
				return err
			}
		}
		if _, err := r.Store.Put(payloads[i]); err != nil {
			return err
		}
	}
	return nil
}
