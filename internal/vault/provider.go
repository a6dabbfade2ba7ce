// Package vault defines the working-tree file-system abstraction.
package vault

// Subdirectories of the vault root. NotesDir holds one encoded file per
// note, AssetsDir holds binary attachments, CategoriesDir is reserved for
// structured category storage.
const (
	NotesDir      = "notes"
	AssetsDir     = "assets"
	CategoriesDir = "categories"
)

// Provider is the interface for working-tree file operations. All paths are
// relative to the vault root.
type Provider interface {
	// ListNoteIDs returns the id of every note file under notes/.
	ListNoteIDs() ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Exists reports whether a file exists at path.
	Exists(path string) bool
	// Root returns the absolute vault root directory.
	Root() string
}
