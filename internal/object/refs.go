package object

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gocid "github.com/ipfs/go-cid"
)

// Ref name prefixes. Branch refs under heads/ are mutable fast-forward
// pointers; tag refs under tags/ are written once and never reassigned.
const (
	HeadPrefix = "heads/"
	TagPrefix  = "tags/"
)

// RefStore manages named ref files. Each ref is one file under the refs/
// directory whose content is the target CID string.
type RefStore struct {
	dir string
}

// NewRefStore creates a RefStore at the given directory.
func NewRefStore(dir string) (*RefStore, error) {
	for _, sub := range []string{dir, filepath.Join(dir, "heads"), filepath.Join(dir, "tags")} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("object: create refs dir: %w", err)
		}
	}
	return &RefStore{dir: dir}, nil
}

// Set writes a ref name → cid mapping atomically.
func (r *RefStore) Set(name string, c gocid.Cid) error {
	path := filepath.Join(r.dir, filepath.FromSlash(name))
	return safeWrite(path, []byte(CIDToName(c)+"\n"), 0o644)
}

// Get resolves a ref name to a CID. ok is false when the ref does not exist.
func (r *RefStore) Get(name string) (gocid.Cid, bool, error) {
	path := filepath.Join(r.dir, filepath.FromSlash(name))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return gocid.Undef, false, nil
	}
	if err != nil {
		return gocid.Undef, false, fmt.Errorf("object: read ref %s: %w", name, err)
	}
	c, err := ParseCID(strings.TrimSpace(string(data)))
	if err != nil {
		return gocid.Undef, false, fmt.Errorf("object: ref %s: %w", name, err)
	}
	return c, true, nil
}

// Has checks whether a ref exists.
func (r *RefStore) Has(name string) bool {
	_, err := os.Stat(filepath.Join(r.dir, filepath.FromSlash(name)))
	return err == nil
}

// List returns all ref names under the given prefix ("heads/" or "tags/"),
// sorted by name.
func (r *RefStore) List(prefix string) ([]string, error) {
	base := filepath.Join(r.dir, filepath.FromSlash(strings.TrimSuffix(prefix, "/")))
	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("object: list refs: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, prefix+e.Name())
	}
	sort.Strings(names)
	return names, nil
}
