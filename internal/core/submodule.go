package core

import (
	"fmt"
	"path"
	"strings"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/repo"
)

// SubmoduleStatus describes a registered submodule and whether it is
// materialized locally.
type SubmoduleStatus struct {
	Submodule *models.Submodule
	Open      bool
	// HeadID is the submodule's current HEAD commit, empty when closed or
	// without history.
	HeadID string
}

// RegisterSubmodule records a nested repository in the enclosing repository's
// registry. relURL is the location of the submodule's remote relative to the
// enclosing remote URL; empty means "same as the tree path", and
// models.SelfPath embeds the repository in itself.
func RegisterSubmodule(r *repo.Repository, treePath, relURL string) error {
	treePath, err := normalizeSubmodulePath(treePath)
	if err != nil {
		return err
	}

	existing, err := r.Store.GetSubmodule(treePath)
	if err != nil {
		return fmt.Errorf("get submodule: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("submodule '%s' is already registered", treePath)
	}

	repoID := ""
	if treePath == models.SelfPath {
		repoID = r.ID()
	} else if sub, err := r.Submodule(treePath); err != nil {
		return err
	} else if sub != nil {
		repoID = sub.ID()
	}

	return r.Store.AddSubmodule(treePath, repoID, relURL)
}

// UnregisterSubmodule removes a submodule from the registry. The nested
// repository on disk, if any, is left alone.
func UnregisterSubmodule(r *repo.Repository, treePath string) error {
	treePath, err := normalizeSubmodulePath(treePath)
	if err != nil {
		return err
	}

	existing, err := r.Store.GetSubmodule(treePath)
	if err != nil {
		return fmt.Errorf("get submodule: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("submodule '%s' is not registered", treePath)
	}

	return r.Store.RemoveSubmodule(treePath)
}

// ListSubmoduleStatuses returns every registered submodule with its open
// state and, when open, its current HEAD.
func ListSubmoduleStatuses(r *repo.Repository) ([]*SubmoduleStatus, error) {
	subs, err := r.Store.ListSubmodules()
	if err != nil {
		return nil, fmt.Errorf("list submodules: %w", err)
	}

	statuses := make([]*SubmoduleStatus, 0, len(subs))
	for _, sub := range subs {
		status := &SubmoduleStatus{Submodule: sub}

		open, err := r.Submodule(sub.Path)
		if err != nil {
			return nil, err
		}
		if open != nil {
			status.Open = true
			head, err := open.Store.GetHEAD()
			if err != nil {
				return nil, fmt.Errorf("submodule '%s' HEAD: %w", sub.Path, err)
			}
			status.HeadID = head
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}

// normalizeSubmodulePath cleans and validates a submodule tree path.
// models.SelfPath passes through; anything else must be a relative path that
// stays inside the worktree.
func normalizeSubmodulePath(treePath string) (string, error) {
	if treePath == "" {
		return "", fmt.Errorf("submodule path cannot be empty")
	}
	if treePath == models.SelfPath {
		return treePath, nil
	}

	cleaned := path.Clean(strings.ReplaceAll(treePath, "\\", "/"))
	if strings.HasPrefix(cleaned, "/") || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("submodule path '%s' must stay inside the worktree", treePath)
	}
	if cleaned == models.SelfPath {
		return models.SelfPath, nil
	}

	return cleaned, nil
}
