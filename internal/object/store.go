// Package object implements the content-addressed, append-only version
// store: a blob/tree/commit object graph plus mutable branch and tag refs.
package object

import (
	"fmt"
	"os"
	"path/filepath"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"

	"github.com/starford/othala/internal/apperr"
)

// Store manages CID-addressed immutable objects on disk. Objects are never
// mutated or deleted; Put is an idempotent no-op for existing content.
type Store struct {
	dir string // path to objects/ directory
}

// NewStore creates a Store at the given directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("object: create objects dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// ComputeCID computes a CIDv1 (raw codec, SHA2-256) for the given data.
func ComputeCID(data []byte) (gocid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return gocid.Undef, fmt.Errorf("object: multihash: %w", err)
	}
	return gocid.NewCidV1(gocid.Raw, mh), nil
}

// CIDToName returns the base32lower encoding of a CID, used both as the
// on-disk filename and as the externally visible hash string.
func CIDToName(c gocid.Cid) string {
	encoded, _ := multibase.Encode(multibase.Base32, c.Bytes())
	return encoded
}

// ParseCID decodes an externally supplied hash string back into a CID.
func ParseCID(s string) (gocid.Cid, error) {
	c, err := gocid.Decode(s)
	if err != nil {
		return gocid.Undef, fmt.Errorf("object: decode cid %q: %w", s, err)
	}
	return c, nil
}

// Put writes data to the store, returning its CID. Existing objects are
// left untouched.
func (s *Store) Put(data []byte) (gocid.Cid, error) {
	c, err := ComputeCID(data)
	if err != nil {
		return gocid.Undef, err
	}
	path := filepath.Join(s.dir, CIDToName(c))
	if _, err := os.Stat(path); err == nil {
		return c, nil // already exists
	}
	if err := safeWrite(path, data, 0o644); err != nil {
		return gocid.Undef, fmt.Errorf("object: write object: %w", err)
	}
	return c, nil
}

// Get reads an object by CID.
func (s *Store) Get(c gocid.Cid) ([]byte, error) {
	path := filepath.Join(s.dir, CIDToName(c))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object: %s: %w", CIDToName(c), apperr.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("object: read object %s: %w", CIDToName(c), err)
	}
	return data, nil
}

// Has checks whether an object exists.
func (s *Store) Has(c gocid.Cid) bool {
	_, err := os.Stat(filepath.Join(s.dir, CIDToName(c)))
	return err == nil
}

// safeWrite writes data to path atomically: tempfile → fsync → rename.
// The tempfile lives in the target directory so the rename stays on one
// filesystem.
func safeWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err = f.Chmod(perm); err != nil {
		f.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp to target: %w", err)
	}
	return nil
}
