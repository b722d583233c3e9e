package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilupskalvis/metavc/internal/remote"
	"github.com/kilupskalvis/metavc/internal/repo"
	"github.com/kilupskalvis/metavc/internal/store"
	"golang.org/x/sync/errgroup"
)

// guaranteeSubmodules makes every submodule commit referenced by the commits
// being published reachable on the submodule's derived remote: missing commit
// objects are transferred from the open submodule's local store, and every
// referenced commit gets a permanent pin ref regardless of whether it was
// already reachable. Closed submodules are skipped; their history is not
// locally available and the publisher carries no duty for them.
//
// Returns the number of pin refs newly created across all submodules.
func guaranteeSubmodules(ctx context.Context, r *repo.Repository, clients ClientFactory, metaURL, token string, publishing []string, progress PushProgress) (int, error) {
	st := r.Store

	// Group referenced submodule commits by tree path.
	referenced := make(map[string]map[string]bool)
	for _, commitID := range publishing {
		entries, err := st.GetEntriesByCommit(commitID)
		if err != nil {
			return 0, fmt.Errorf("get index entries for %s: %w", commitID, err)
		}
		for _, e := range entries {
			if !e.IsSubRepo() || e.SubCommitID == "" {
				continue
			}
			if referenced[e.Path] == nil {
				referenced[e.Path] = make(map[string]bool)
			}
			referenced[e.Path][e.SubCommitID] = true
		}
	}
	if len(referenced) == 0 {
		return 0, nil
	}

	paths := make([]string, 0, len(referenced))
	for p := range referenced {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	const maxWorkers = 4

	var mu sync.Mutex
	var pinsCreated int

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i, p := range paths {
		progress("guaranteeing submodules", i+1, len(paths))
		path := p
		ids := sortedIDs(referenced[path])

		g.Go(func() error {
			sub, err := r.Submodule(path)
			if err != nil {
				return fmt.Errorf("submodule '%s': %w: %w", path, ErrSubmoduleTransfer, err)
			}
			if sub == nil {
				// Closed: nothing to transfer from, nothing to pin.
				return nil
			}

			location, err := submoduleLocation(st, metaURL, path)
			if err != nil {
				return fmt.Errorf("submodule '%s': %w: %w", path, ErrSubmoduleTransfer, err)
			}

			client, err := clients(location, token)
			if err != nil {
				return fmt.Errorf("submodule '%s' (%s): %w: %w", path, location, ErrSubmoduleTransfer, err)
			}

			created, err := ensureReachable(ctx, sub.Store, client, ids)
			if err != nil {
				return fmt.Errorf("submodule '%s' (%s): %w: %w", path, location, ErrSubmoduleTransfer, err)
			}

			mu.Lock()
			pinsCreated += created
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return pinsCreated, nil
}

// submoduleLocation derives the remote URL for the submodule at the given
// tree path. The registered relative location wins; an unregistered but open
// submodule falls back to its tree path.
func submoduleLocation(st *store.Store, metaURL, path string) (string, error) {
	sub, err := st.GetSubmodule(path)
	if err != nil {
		return "", fmt.Errorf("get submodule registration: %w", err)
	}

	relLocation := path
	if sub != nil {
		relLocation = sub.RelLocation()
	}
	return ResolveSubmoduleURL(metaURL, relLocation)
}

// ensureReachable transfers the ancestry of the given commits to the remote
// where missing and pins each one. Pinning is unconditional: a commit that is
// already reachable through some branch still gets its permanent ref.
func ensureReachable(ctx context.Context, st *store.Store, client remote.RemoteClient, ids []string) (int, error) {
	ordered, err := collectAncestryOrdered(st, ids)
	if err != nil {
		return 0, err
	}

	have, err := client.HaveCommits(ctx, ordered)
	if err != nil {
		return 0, fmt.Errorf("check commits: %w", err)
	}
	missing := make(map[string]bool, len(have.Missing))
	for _, id := range have.Missing {
		missing[id] = true
	}

	// ordered is parents-first, so uploads never reference an absent parent.
	for _, id := range ordered {
		if !missing[id] {
			continue
		}
		bundle, err := buildCommitBundle(st, id)
		if err != nil {
			return 0, err
		}
		if err := client.UploadCommitBundle(ctx, bundle); err != nil {
			return 0, fmt.Errorf("upload commit %s: %w", id, err)
		}
	}

	created := 0
	for _, id := range ids {
		wasCreated, err := client.EnsurePin(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("pin commit %s: %w", id, err)
		}
		if wasCreated {
			created++
		}
	}
	return created, nil
}

// collectAncestryOrdered returns the union of the full ancestries of the
// given commits in topological order, parents before children.
func collectAncestryOrdered(st *store.Store, ids []string) ([]string, error) {
	var ordered []string
	visited := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if id == "" || visited[id] {
			return nil
		}
		visited[id] = true

		commit, err := st.GetCommit(id)
		if err != nil {
			return fmt.Errorf("get commit %s: %w", id, err)
		}
		if commit == nil {
			return fmt.Errorf("commit %s referenced but not in store", id)
		}

		if err := visit(commit.ParentID); err != nil {
			return err
		}
		if err := visit(commit.MergeParentID); err != nil {
			return err
		}

		ordered = append(ordered, id)
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

func sortedIDs(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
