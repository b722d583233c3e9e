// Package repo ties a worktree directory to its metavc store and resolves
// nested (submodule) repositories within it.
package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilupskalvis/metavc/internal/config"
	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/store"
)

// DefaultBranch is the branch a fresh repository starts on.
const DefaultBranch = "master"

// Repository is an open metavc repository: a worktree root plus its store.
type Repository struct {
	Root   string
	Config *config.Config
	Store  *store.Store

	// Nested repositories opened through Submodule, closed with the parent.
	subs map[string]*Repository
}

// Init creates a new repository at root and opens it.
func Init(root, repoID string) (*Repository, error) {
	cfg, err := config.Initialize(root, repoID)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Initialize(); err != nil {
		st.Close()
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	// Unborn default branch; created for real on the first commit.
	if err := st.SetCurrentBranch(DefaultBranch); err != nil {
		st.Close()
		return nil, fmt.Errorf("set default branch: %w", err)
	}

	return &Repository{Root: cfg.WorkRoot(), Config: cfg, Store: st}, nil
}

// Open opens an existing repository whose worktree root is the given directory.
func Open(root string) (*Repository, error) {
	metaPath := filepath.Join(root, config.MetaDir)
	cfg, err := config.LoadAt(metaPath)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &Repository{Root: cfg.WorkRoot(), Config: cfg, Store: st}, nil
}

// Find walks up from the current working directory to locate and open the
// enclosing repository.
func Find() (*Repository, error) {
	metaPath, err := config.FindRoot("")
	if err != nil {
		return nil, err
	}
	return Open(filepath.Dir(metaPath))
}

// Close releases the repository store and any opened submodules.
func (r *Repository) Close() {
	for _, sub := range r.subs {
		sub.Close()
	}
	r.subs = nil
	if r.Store != nil {
		r.Store.Close()
	}
}

// ID returns the repository's configured identity.
func (r *Repository) ID() string {
	return r.Config.RepoID
}

// IsOpenSubmodule reports whether the nested repository at the given tree
// path is materialized locally with its own live store.
func (r *Repository) IsOpenSubmodule(path string) bool {
	info, err := os.Stat(filepath.Join(r.Root, filepath.FromSlash(path), config.MetaDir))
	return err == nil && info.IsDir()
}

// Submodule opens the nested repository at the given tree path.
// Returns (nil, nil) when the submodule is not open locally — a commit may
// reference it, but no live repository exists at that path.
func (r *Repository) Submodule(path string) (*Repository, error) {
	// The reserved self path embeds the repository in itself; reopening the
	// store file would block on its own lock.
	if path == models.SelfPath {
		return r, nil
	}

	if sub, ok := r.subs[path]; ok {
		return sub, nil
	}

	if !r.IsOpenSubmodule(path) {
		return nil, nil
	}

	sub, err := Open(filepath.Join(r.Root, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("open submodule '%s': %w", path, err)
	}

	if r.subs == nil {
		r.subs = make(map[string]*Repository)
	}
	r.subs[path] = sub
	return sub, nil
}
