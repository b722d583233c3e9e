package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/store"
)

// ListBranches returns all branches with the current branch name
func ListBranches(st *store.Store) ([]*models.Branch, string, error) {
	branches, err := st.ListBranches()
	if err != nil {
		return nil, "", err
	}

	currentBranch, err := st.GetCurrentBranch()
	if err != nil {
		return nil, "", err
	}

	return branches, currentBranch, nil
}

// CreateBranch creates a new branch at the current HEAD or specified commit
func CreateBranch(st *store.Store, name string, startPoint string) error {
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(name, models.PinRefPrefix) {
		return fmt.Errorf("branch name '%s' collides with the pin ref namespace", name)
	}

	exists, err := st.BranchExists(name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("branch '%s' already exists", name)
	}

	var commitID string
	if startPoint == "" {
		commitID, err = st.GetHEAD()
		if err != nil {
			return err
		}
		if commitID == "" {
			return fmt.Errorf("cannot create branch: no commits yet")
		}
	} else {
		commitID, err = ResolveRef(st, startPoint)
		if err != nil {
			return err
		}
	}

	return st.CreateBranch(name, commitID)
}

// SwitchBranch makes an existing branch the current one.
func SwitchBranch(st *store.Store, name string) error {
	branch, err := st.GetBranch(name)
	if err != nil {
		return err
	}
	if branch == nil {
		return fmt.Errorf("branch '%s' not found", name)
	}
	return st.SetCurrentBranch(name)
}

// DeleteBranch deletes a branch
func DeleteBranch(st *store.Store, name string) error {
	currentBranch, err := st.GetCurrentBranch()
	if err != nil {
		return err
	}
	if name == currentBranch {
		return fmt.Errorf("cannot delete branch '%s' while it is checked out", name)
	}

	branch, err := st.GetBranch(name)
	if err != nil {
		return err
	}
	if branch == nil {
		return fmt.Errorf("branch '%s' not found", name)
	}

	return st.DeleteBranch(name)
}

// ResolveRef resolves a ref spec to a full commit ID.
// Supports: branch names, full/short commit IDs, HEAD, HEAD~N.
func ResolveRef(st *store.Store, ref string) (string, error) {
	if ref == "HEAD" || strings.HasPrefix(ref, "HEAD~") {
		return resolveHEADRef(st, ref)
	}

	branch, err := st.GetBranch(ref)
	if err != nil {
		return "", err
	}
	if branch != nil {
		return branch.CommitID, nil
	}

	commit, err := st.GetCommit(ref)
	if err != nil {
		return "", err
	}
	if commit != nil {
		return commit.ID, nil
	}

	commit, err = st.GetCommitByShortID(ref)
	if err != nil {
		return "", err
	}
	if commit == nil {
		return "", fmt.Errorf("%w: '%s' is not a valid branch or commit", ErrUnknownRef, ref)
	}

	return commit.ID, nil
}

// resolveHEADRef resolves HEAD or HEAD~N to a commit ID
func resolveHEADRef(st *store.Store, ref string) (string, error) {
	head, err := st.GetHEAD()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	if head == "" {
		return "", fmt.Errorf("%w: HEAD not set, no commits yet", ErrUnknownRef)
	}

	if ref == "HEAD" {
		return head, nil
	}

	nStr := strings.TrimPrefix(ref, "HEAD~")
	n, err := strconv.Atoi(nStr)
	if err != nil || n < 0 {
		return "", fmt.Errorf("invalid ref '%s': expected HEAD~N where N is a non-negative number", ref)
	}

	// Walk back N commits following primary parent chain
	commitID := head
	for i := 0; i < n; i++ {
		commit, err := st.GetCommit(commitID)
		if err != nil {
			return "", fmt.Errorf("failed to get commit %s: %w", commitID, err)
		}
		if commit == nil {
			return "", fmt.Errorf("cannot resolve %s: commit %s not found", ref, commitID)
		}
		if commit.ParentID == "" {
			return "", fmt.Errorf("cannot resolve %s: reached root commit after %d step(s)", ref, i)
		}
		commitID = commit.ParentID
	}

	return commitID, nil
}
