package object

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gocid "github.com/ipfs/go-cid"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

// MetaDir is the version-store metadata directory inside the vault root.
const MetaDir = ".othala"

// DefaultBranch is the branch advanced by StageAndCommit.
const DefaultBranch = "main"

// InitialAuthor stamps the root commit of a fresh repository.
var InitialAuthor = models.Author{Name: "Othala", Email: "othala@localhost"}

// Repository is the top-level facade for the version store: an object graph
// of blobs, trees, and commits, plus branch and tag refs.
//
// A process-local mutex serializes commits and ref advancement; the design
// assumes a single writer process.
type Repository struct {
	workRoot string
	dir      string
	branch   string

	Store *Store
	Refs  *RefStore

	mu          sync.Mutex
	initialized bool
	remotes     map[string]string
}

type repoConfig struct {
	Remotes map[string]string `json:"remotes"`
}

// Open opens or creates the repository metadata under workRoot. It does not
// create the root commit; Init does that lazily and idempotently.
func Open(workRoot string) (*Repository, error) {
	abs, err := filepath.Abs(workRoot)
	if err != nil {
		return nil, fmt.Errorf("object: resolve work root: %w", err)
	}
	dir := filepath.Join(abs, MetaDir)

	store, err := NewStore(filepath.Join(dir, "objects"))
	if err != nil {
		return nil, err
	}
	refs, err := NewRefStore(filepath.Join(dir, "refs"))
	if err != nil {
		return nil, err
	}

	r := &Repository{
		workRoot: abs,
		dir:      dir,
		branch:   DefaultBranch,
		Store:    store,
		Refs:     refs,
		remotes:  map[string]string{},
	}
	if err := r.loadConfig(); err != nil {
		return nil, err
	}
	return r, nil
}

// Branch returns the name of the branch advanced by commits.
func (r *Repository) Branch() string { return r.branch }

// WorkRoot returns the vault directory the repository stages files from.
func (r *Repository) WorkRoot() string { return r.workRoot }

// Init ensures the repository has a root commit and a branch head. It is
// idempotent: reopening an initialized repository leaves the head untouched.
func (r *Repository) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initLocked()
}

func (r *Repository) initLocked() error {
	if r.initialized {
		return nil
	}
	if r.Refs.Has(HeadPrefix + r.branch) {
		r.initialized = true
		return nil
	}

	treeCID, err := r.Store.putTree(&Tree{V: 1, Entries: map[string]string{}})
	if err != nil {
		return fmt.Errorf("object: init tree: %w", err)
	}
	// The root commit carries a fixed timestamp so that every vault starts
	// from the same commit id. Two vaults that have never synced therefore
	// still share a common ancestor, which keeps first pulls fast-forwards.
	commitCID, err := r.Store.putCommit(&CommitObject{
		V:         1,
		Tree:      CIDToName(treeCID),
		Author:    InitialAuthor,
		Message:   "Initial commit",
		Timestamp: time.Unix(0, 0).UTC(),
	})
	if err != nil {
		return fmt.Errorf("object: init commit: %w", err)
	}
	if err := r.Refs.Set(HeadPrefix+r.branch, commitCID); err != nil {
		return fmt.Errorf("object: init branch ref: %w", err)
	}
	r.initialized = true
	return nil
}

// Head returns the CID of the current branch head. ok is false when the
// repository has no commits yet.
func (r *Repository) Head() (gocid.Cid, bool, error) {
	return r.Refs.Get(HeadPrefix + r.branch)
}

// StageAndCommit snapshots the current working-tree content of paths into a
// new commit whose parent is the branch head, advances the branch ref, and
// returns the new commit hash.
//
// It returns apperr.ErrPathNotFound when a path is missing on disk and
// apperr.ErrNothingToCommit when the snapshot is byte-identical to the
// parent's. If the ref write fails after the commit object is stored, the
// commit is an unreachable orphan; the object store itself never needs
// rollback.
func (r *Repository) StageAndCommit(paths []string, message string, author models.Author) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.initLocked(); err != nil {
		return "", err
	}

	head, ok, err := r.Refs.Get(HeadPrefix + r.branch)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("object: branch %s has no head", r.branch)
	}
	parent, err := r.Store.getCommit(head)
	if err != nil {
		return "", err
	}
	parentTreeCID, err := ParseCID(parent.Tree)
	if err != nil {
		return "", err
	}
	parentTree, err := r.Store.getTree(parentTreeCID)
	if err != nil {
		return "", err
	}

	entries := make(map[string]string, len(parentTree.Entries)+len(paths))
	for p, b := range parentTree.Entries {
		entries[p] = b
	}
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(r.workRoot, filepath.FromSlash(p)))
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("object: stage %s: %w", p, apperr.ErrPathNotFound)
			}
			return "", fmt.Errorf("object: stage %s: %w", p, err)
		}
		blobCID, err := r.Store.Put(data)
		if err != nil {
			return "", err
		}
		entries[p] = CIDToName(blobCID)
	}

	treeCID, err := r.Store.putTree(&Tree{V: 1, Entries: entries})
	if err != nil {
		return "", err
	}
	if treeCID.Equals(parentTreeCID) {
		return "", apperr.ErrNothingToCommit
	}

	commitCID, err := r.Store.putCommit(&CommitObject{
		V:         1,
		Tree:      CIDToName(treeCID),
		Parent:    CIDToName(head),
		Author:    author,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	if err := r.Refs.Set(HeadPrefix+r.branch, commitCID); err != nil {
		return "", fmt.Errorf("object: advance branch: %w", err)
	}
	return CIDToName(commitCID), nil
}

// RemoveAndCommit commits a tree with the given paths dropped from the
// branch head's tree, recording a deletion in history. It returns
// apperr.ErrNothingToCommit when none of the paths are present in the head
// tree.
func (r *Repository) RemoveAndCommit(paths []string, message string, author models.Author) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.initLocked(); err != nil {
		return "", err
	}

	head, ok, err := r.Refs.Get(HeadPrefix + r.branch)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("object: branch %s has no head", r.branch)
	}
	parent, err := r.Store.getCommit(head)
	if err != nil {
		return "", err
	}
	parentTreeCID, err := ParseCID(parent.Tree)
	if err != nil {
		return "", err
	}
	parentTree, err := r.Store.getTree(parentTreeCID)
	if err != nil {
		return "", err
	}

	entries := make(map[string]string, len(parentTree.Entries))
	for p, b := range parentTree.Entries {
		entries[p] = b
	}
	for _, p := range paths {
		delete(entries, p)
	}
	if len(entries) == len(parentTree.Entries) {
		return "", apperr.ErrNothingToCommit
	}

	treeCID, err := r.Store.putTree(&Tree{V: 1, Entries: entries})
	if err != nil {
		return "", err
	}
	commitCID, err := r.Store.putCommit(&CommitObject{
		V:         1,
		Tree:      CIDToName(treeCID),
		Parent:    CIDToName(head),
		Author:    author,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	if err := r.Refs.Set(HeadPrefix+r.branch, commitCID); err != nil {
		return "", fmt.Errorf("object: advance branch: %w", err)
	}
	return CIDToName(commitCID), nil
}

// Log returns commits that changed path, newest first, truncated at depth.
// An empty path selects every commit. A repository with no branch head
// yields an empty log, not an error.
func (r *Repository) Log(path string, depth int) ([]models.Commit, error) {
	if err := r.Init(); err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = 20
	}

	head, ok, err := r.Refs.Get(HeadPrefix + r.branch)
	if err != nil || !ok {
		return nil, err
	}

	var out []models.Commit
	current := head
	for current != gocid.Undef && len(out) < depth {
		commit, err := r.Store.getCommit(current)
		if err != nil {
			return nil, err
		}
		tree, err := r.treeOf(commit)
		if err != nil {
			return nil, err
		}

		parentEntry := ""
		var next gocid.Cid
		if commit.Parent != "" {
			next, err = ParseCID(commit.Parent)
			if err != nil {
				return nil, err
			}
			parentCommit, err := r.Store.getCommit(next)
			if err != nil {
				return nil, err
			}
			parentTree, err := r.treeOf(parentCommit)
			if err != nil {
				return nil, err
			}
			parentEntry = parentTree.Entries[path]
		}

		if path == "" || tree.Entries[path] != parentEntry {
			msg := commit.Message
			if i := strings.IndexByte(msg, '\n'); i >= 0 {
				msg = msg[:i]
			}
			out = append(out, models.Commit{
				Hash:      CIDToName(current),
				Message:   msg,
				Author:    commit.Author.Name,
				Timestamp: commit.Timestamp,
			})
		}
		current = next
	}
	return out, nil
}

// ReadBlobAt returns the content of path at the given commit. It fails with
// apperr.ErrObjectNotFound when the path did not exist at that commit.
func (r *Repository) ReadBlobAt(commitHash, path string) ([]byte, error) {
	if err := r.Init(); err != nil {
		return nil, err
	}
	commitCID, err := ParseCID(commitHash)
	if err != nil {
		return nil, fmt.Errorf("object: %w: %s", apperr.ErrObjectNotFound, commitHash)
	}
	commit, err := r.Store.getCommit(commitCID)
	if err != nil {
		return nil, err
	}
	tree, err := r.treeOf(commit)
	if err != nil {
		return nil, err
	}
	blobName, ok := tree.Entries[path]
	if !ok {
		return nil, fmt.Errorf("object: %s at %s: %w", path, commitHash, apperr.ErrObjectNotFound)
	}
	blobCID, err := ParseCID(blobName)
	if err != nil {
		return nil, err
	}
	return r.Store.Get(blobCID)
}

// CreateTag creates an immutable tag at the current head. Tag names are
// never reassigned; a collision returns apperr.ErrTagExists.
func (r *Repository) CreateTag(name string) (models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.initLocked(); err != nil {
		return models.Snapshot{}, err
	}

	ref := TagPrefix + name
	if r.Refs.Has(ref) {
		return models.Snapshot{}, fmt.Errorf("object: tag %s: %w", name, apperr.ErrTagExists)
	}
	head, ok, err := r.Refs.Get(HeadPrefix + r.branch)
	if err != nil {
		return models.Snapshot{}, err
	}
	if !ok {
		return models.Snapshot{}, fmt.Errorf("object: no head to tag")
	}
	if err := r.Refs.Set(ref, head); err != nil {
		return models.Snapshot{}, err
	}
	return models.Snapshot{Name: name, Hash: CIDToName(head)}, nil
}

// ListTags returns every tag and the commit hash it resolves to.
func (r *Repository) ListTags() ([]models.Snapshot, error) {
	if err := r.Init(); err != nil {
		return nil, err
	}
	names, err := r.Refs.List(TagPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]models.Snapshot, 0, len(names))
	for _, ref := range names {
		c, ok, err := r.Refs.Get(ref)
		if err != nil || !ok {
			continue
		}
		out = append(out, models.Snapshot{
			Name: strings.TrimPrefix(ref, TagPrefix),
			Hash: CIDToName(c),
		})
	}
	return out, nil
}

// AddRemote records a named remote URL. Re-adding the same name with the
// same URL is a no-op; a different URL replaces it.
func (r *Repository) AddRemote(name, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.remotes[name] == url {
		return nil
	}
	r.remotes[name] = url
	return r.saveConfigLocked()
}

// Remote resolves a remote name to its URL.
func (r *Repository) Remote(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	url, ok := r.remotes[name]
	return url, ok
}

// IsAncestor reports whether ancestor is reachable from descendant by
// following parent links (a commit is its own ancestor).
func (r *Repository) IsAncestor(ancestor, descendant gocid.Cid) (bool, error) {
	current := descendant
	for current != gocid.Undef {
		if current.Equals(ancestor) {
			return true, nil
		}
		commit, err := r.Store.getCommit(current)
		if err != nil {
			return false, err
		}
		if commit.Parent == "" {
			return false, nil
		}
		current, err = ParseCID(commit.Parent)
		if err != nil {
			return false, err
		}
	}
	return false, nil
}

// CollectReachable walks the commit graph from start and returns every
// object CID (commits, trees, blobs) not reachable from a CID in stop.
// Used by push to compute the upload set.
func (r *Repository) CollectReachable(start gocid.Cid, stop map[string]struct{}) ([]gocid.Cid, error) {
	var out []gocid.Cid
	seen := map[string]struct{}{}

	add := func(c gocid.Cid) bool {
		name := CIDToName(c)
		if _, done := seen[name]; done {
			return false
		}
		seen[name] = struct{}{}
		out = append(out, c)
		return true
	}

	current := start
	for current != gocid.Undef {
		if _, stopHere := stop[CIDToName(current)]; stopHere {
			break
		}
		if !add(current) {
			break
		}
		commit, err := r.Store.getCommit(current)
		if err != nil {
			return nil, err
		}
		treeCID, err := ParseCID(commit.Tree)
		if err != nil {
			return nil, err
		}
		if add(treeCID) {
			tree, err := r.Store.getTree(treeCID)
			if err != nil {
				return nil, err
			}
			for _, blobName := range tree.Entries {
				blobCID, err := ParseCID(blobName)
				if err != nil {
					return nil, err
				}
				add(blobCID)
			}
		}
		if commit.Parent == "" {
			break
		}
		current, err = ParseCID(commit.Parent)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) treeOf(c *CommitObject) (*Tree, error) {
	treeCID, err := ParseCID(c.Tree)
	if err != nil {
		return nil, err
	}
	return r.Store.getTree(treeCID)
}

func (r *Repository) configPath() string {
	return filepath.Join(r.dir, "config.json")
}

func (r *Repository) loadConfig() error {
	data, err := os.ReadFile(r.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("object: read config: %w", err)
	}
	var cfg repoConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("object: parse config: %w", err)
	}
	if cfg.Remotes != nil {
		r.remotes = cfg.Remotes
	}
	return nil
}

func (r *Repository) saveConfigLocked() error {
	data, err := json.MarshalIndent(repoConfig{Remotes: r.remotes}, "", "  ")
	if err != nil {
		return err
	}
	return safeWrite(r.configPath(), data, 0o644)
}
