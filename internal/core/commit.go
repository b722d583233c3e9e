package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/repo"
	"github.com/kilupskalvis/metavc/internal/store"
)

// CreateCommit records a new commit on the current branch. Its index is the
// parent's index with staged file content overlaid, plus one entry per
// registered submodule: open submodules contribute their current HEAD, closed
// ones carry their entry forward from the parent commit unchanged.
func CreateCommit(r *repo.Repository, message string) (*models.Commit, error) {
	if message == "" {
		return nil, fmt.Errorf("commit message cannot be empty")
	}
	st := r.Store

	parentID, err := st.GetHEAD()
	if err != nil {
		return nil, fmt.Errorf("get HEAD: %w", err)
	}

	entries, err := buildIndex(r, parentID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("nothing to commit (use \"metavc add\" to stage files)")
	}

	// Identical index means no changes against the parent.
	if parentID != "" {
		parentEntries, err := st.GetEntriesByCommit(parentID)
		if err != nil {
			return nil, fmt.Errorf("get parent index: %w", err)
		}
		if models.ComputeEntriesHash(entries) == models.ComputeEntriesHash(parentEntries) {
			return nil, fmt.Errorf("nothing to commit (index unchanged)")
		}
	}

	now := time.Now()
	commit := &models.Commit{
		ID:         models.GenerateCommitID(message, now, parentID, entries),
		ParentID:   parentID,
		Message:    message,
		Timestamp:  now,
		EntryCount: len(entries),
	}
	for i, e := range entries {
		e.CommitID = commit.ID
		e.Seq = i
	}

	if err := st.CreateCommit(commit, entries); err != nil {
		return nil, fmt.Errorf("create commit: %w", err)
	}

	if err := advanceCurrentBranch(st, commit.ID); err != nil {
		return nil, err
	}

	if err := st.ClearStaging(); err != nil {
		return nil, fmt.Errorf("clear staging: %w", err)
	}

	return commit, nil
}

// buildIndex assembles the index entries for a new commit: parent file
// entries overlaid with staged content, then submodule entries.
func buildIndex(r *repo.Repository, parentID string) ([]*models.IndexEntry, error) {
	st := r.Store

	files := make(map[string][]byte)
	if parentID != "" {
		parentEntries, err := st.GetEntriesByCommit(parentID)
		if err != nil {
			return nil, fmt.Errorf("get parent index: %w", err)
		}
		for _, e := range parentEntries {
			if e.Kind == models.EntryFile {
				files[e.Path] = e.Content
			}
		}
	}

	staged, err := st.GetStagedFiles()
	if err != nil {
		return nil, fmt.Errorf("get staged files: %w", err)
	}
	for _, f := range staged {
		files[f.Path] = f.Content
	}

	subEntries, err := submoduleEntries(r, parentID)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	entries := make([]*models.IndexEntry, 0, len(paths)+len(subEntries))
	for _, p := range paths {
		entries = append(entries, &models.IndexEntry{
			Path:    p,
			Kind:    models.EntryFile,
			Content: files[p],
		})
	}
	return append(entries, subEntries...), nil
}

// submoduleEntries produces one index entry per registered submodule, sorted
// by path. Open submodules are recorded at their current HEAD; closed ones
// keep the commit recorded by the parent.
func submoduleEntries(r *repo.Repository, parentID string) ([]*models.IndexEntry, error) {
	st := r.Store

	subs, err := st.ListSubmodules()
	if err != nil {
		return nil, fmt.Errorf("list submodules: %w", err)
	}
	if len(subs) == 0 {
		return nil, nil
	}

	parentSubs := make(map[string]*models.IndexEntry)
	if parentID != "" {
		parentEntries, err := st.GetEntriesByCommit(parentID)
		if err != nil {
			return nil, fmt.Errorf("get parent index: %w", err)
		}
		for _, e := range parentEntries {
			if e.IsSubRepo() {
				parentSubs[e.Path] = e
			}
		}
	}

	var entries []*models.IndexEntry
	for _, sub := range subs {
		open, err := r.Submodule(sub.Path)
		if err != nil {
			return nil, err
		}

		if open == nil {
			if prev, ok := parentSubs[sub.Path]; ok {
				entries = append(entries, &models.IndexEntry{
					Path:        prev.Path,
					Kind:        models.EntrySubRepo,
					SubRepoID:   prev.SubRepoID,
					SubCommitID: prev.SubCommitID,
				})
			}
			// Closed and never committed: nothing to record yet.
			continue
		}

		head, err := open.Store.GetHEAD()
		if err != nil {
			return nil, fmt.Errorf("submodule '%s' HEAD: %w", sub.Path, err)
		}
		if head == "" {
			// Open but without commits; skip until it has history.
			continue
		}

		entries = append(entries, &models.IndexEntry{
			Path:        sub.Path,
			Kind:        models.EntrySubRepo,
			SubRepoID:   open.ID(),
			SubCommitID: head,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// advanceCurrentBranch moves the current branch to the new commit, creating
// the branch if this is its first commit.
func advanceCurrentBranch(st *store.Store, commitID string) error {
	branch, err := st.GetCurrentBranch()
	if err != nil {
		return fmt.Errorf("get current branch: %w", err)
	}
	if branch == "" {
		return nil
	}

	existing, err := st.GetBranch(branch)
	if err != nil {
		return fmt.Errorf("get branch: %w", err)
	}
	if existing != nil {
		if err := st.UpdateBranch(branch, commitID); err != nil {
			return fmt.Errorf("update branch %s: %w", branch, err)
		}
		return nil
	}

	// Unborn branch, created on first commit.
	if err := st.CreateBranch(branch, commitID); err != nil {
		return fmt.Errorf("create branch %s: %w", branch, err)
	}
	return nil
}
