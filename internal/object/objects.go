package object

import (
	"encoding/json"
	"fmt"
	"time"

	gocid "github.com/ipfs/go-cid"

	"github.com/starford/othala/internal/models"
)

// Tree maps working-tree paths to blob CIDs at one commit. Entries use
// vault-relative slash paths. encoding/json sorts map keys, so identical
// trees always serialize to identical bytes and share one CID.
type Tree struct {
	V       int               `json:"v"`
	Entries map[string]string `json:"entries"`
}

// CommitObject is an immutable snapshot of the working tree plus metadata
// and parent linkage. Its CID is a pure function of this serialized form.
type CommitObject struct {
	V         int           `json:"v"`
	Tree      string        `json:"tree"`             // CID of the Tree
	Parent    string        `json:"parent,omitempty"` // CID of the parent commit
	Author    models.Author `json:"author"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

func encodeTree(t *Tree) ([]byte, error) {
	return json.Marshal(t)
}

func decodeTree(data []byte) (*Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("object: unmarshal tree: %w", err)
	}
	if t.Entries == nil {
		t.Entries = map[string]string{}
	}
	return &t, nil
}

func encodeCommit(c *CommitObject) ([]byte, error) {
	return json.Marshal(c)
}

func decodeCommit(data []byte) (*CommitObject, error) {
	var c CommitObject
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("object: unmarshal commit: %w", err)
	}
	return &c, nil
}

// putTree stores a tree and returns its CID.
func (s *Store) putTree(t *Tree) (gocid.Cid, error) {
	data, err := encodeTree(t)
	if err != nil {
		return gocid.Undef, err
	}
	return s.Put(data)
}

// getTree loads a tree by CID.
func (s *Store) getTree(c gocid.Cid) (*Tree, error) {
	data, err := s.Get(c)
	if err != nil {
		return nil, err
	}
	return decodeTree(data)
}

// putCommit stores a commit and returns its CID.
func (s *Store) putCommit(c *CommitObject) (gocid.Cid, error) {
	data, err := encodeCommit(c)
	if err != nil {
		return gocid.Undef, err
	}
	return s.Put(data)
}

// getCommit loads a commit by CID.
func (s *Store) getCommit(c gocid.Cid) (*CommitObject, error) {
	data, err := s.Get(c)
	if err != nil {
		return nil, err
	}
	return decodeCommit(data)
}
