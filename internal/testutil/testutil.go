// Package testutil provides shared test helpers for setting up vaults,
// databases, and a fully wired note service.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/othala/internal/history"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/noterepo"
	"github.com/starford/othala/internal/noteservice"
	"github.com/starford/othala/internal/object"
	"github.com/starford/othala/internal/search"
	"github.com/starford/othala/internal/vault"
)

// TestAuthor stamps commits recorded through helpers.
var TestAuthor = models.Author{Name: "Othala", Email: "othala@localhost"}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *search.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "othala-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := search.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with its layout in place.
func TestVault(t *testing.T) (string, *vault.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := vault.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestRepo opens and initializes an object repository over the vault dir.
func TestRepo(t *testing.T, vaultDir string) *object.Repository {
	t.Helper()
	repo, err := object.Open(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Init(); err != nil {
		t.Fatal(err)
	}
	return repo
}

// TestService wires a complete note service over a temporary vault and
// returns it with the vault directory. Autosave is effectively disabled so
// tests control commits explicitly.
func TestService(t *testing.T) (*noteservice.Service, string) {
	t.Helper()
	vaultDir, store := TestVault(t)
	repo := TestRepo(t, vaultDir)
	notes := noterepo.New(store)

	svc := noteservice.New(noteservice.Deps{
		Notes:         notes,
		History:       history.New(repo, store, TestAuthor),
		Index:         search.NewIndex(TestDB(t), notes),
		Repo:          repo,
		Store:         store,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		AutosaveQuiet: time.Hour,
	})
	t.Cleanup(svc.Close)
	return svc, vaultDir
}
