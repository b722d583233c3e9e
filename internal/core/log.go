package core

import (
	"fmt"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/store"
)

// GetLog returns up to limit commits reachable from the given ref, newest
// first, following the primary parent chain. limit <= 0 means no limit.
func GetLog(st *store.Store, ref string, limit int) ([]*models.Commit, error) {
	tip, err := ResolveRef(st, ref)
	if err != nil {
		return nil, err
	}

	var commits []*models.Commit
	commitID := tip
	for commitID != "" {
		if limit > 0 && len(commits) >= limit {
			break
		}

		commit, err := st.GetCommit(commitID)
		if err != nil {
			return nil, fmt.Errorf("get commit %s: %w", commitID, err)
		}
		if commit == nil {
			return nil, fmt.Errorf("commit %s referenced but not in store", commitID)
		}

		commits = append(commits, commit)
		commitID = commit.ParentID
	}

	return commits, nil
}
