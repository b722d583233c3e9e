package fixture

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/remote"
	"github.com/kilupskalvis/metavc/internal/store"
)

// CommitSpec describes one commit by logical label. Parents are named by
// label and must be built first.
type CommitSpec struct {
	Label   string
	Parent  string
	Message string
	// Files maps path to content.
	Files map[string]string
	// Subs maps submodule path to (SubRepoID, logical sub commit label).
	Subs map[string]SubRef
}

// SubRef names a submodule commit by repository ID and logical label.
type SubRef struct {
	RepoID string
	Label  string
}

// Build creates real commits in st from the given specs, in order, and
// returns the logical-label to physical-ID mapping. Labels referenced in
// Subs are resolved through ids, which may carry labels from previously
// built repositories.
func Build(st *store.Store, specs []CommitSpec, ids map[string]string) (map[string]string, error) {
	if ids == nil {
		ids = make(map[string]string)
	}

	base := time.Now().Add(-time.Duration(len(specs)) * time.Second)
	for i, spec := range specs {
		if spec.Label == "" {
			return nil, fmt.Errorf("commit spec %d has no label", i)
		}
		if _, ok := ids[spec.Label]; ok {
			return nil, fmt.Errorf("duplicate label '%s'", spec.Label)
		}

		parentID := ""
		if spec.Parent != "" {
			var ok bool
			parentID, ok = ids[spec.Parent]
			if !ok {
				return nil, fmt.Errorf("commit '%s' references unbuilt parent '%s'", spec.Label, spec.Parent)
			}
		}

		entries, err := buildEntries(spec, ids)
		if err != nil {
			return nil, err
		}

		message := spec.Message
		if message == "" {
			message = spec.Label
		}

		// Distinct timestamps keep the physical IDs distinct even for
		// otherwise identical commits.
		ts := base.Add(time.Duration(i) * time.Second)
		commit := &models.Commit{
			ID:         models.GenerateCommitID(message, ts, parentID, entries),
			ParentID:   parentID,
			Message:    message,
			Timestamp:  ts,
			EntryCount: len(entries),
		}
		if err := st.CreateCommit(commit, entries); err != nil {
			return nil, fmt.Errorf("create commit '%s': %w", spec.Label, err)
		}
		ids[spec.Label] = commit.ID
	}

	return ids, nil
}

func buildEntries(spec CommitSpec, ids map[string]string) ([]*models.IndexEntry, error) {
	var entries []*models.IndexEntry

	filePaths := make([]string, 0, len(spec.Files))
	for p := range spec.Files {
		filePaths = append(filePaths, p)
	}
	sort.Strings(filePaths)
	for _, p := range filePaths {
		entries = append(entries, &models.IndexEntry{
			Path:    p,
			Kind:    models.EntryFile,
			Content: []byte(spec.Files[p]),
		})
	}

	subPaths := make([]string, 0, len(spec.Subs))
	for p := range spec.Subs {
		subPaths = append(subPaths, p)
	}
	sort.Strings(subPaths)
	for _, p := range subPaths {
		ref := spec.Subs[p]
		subID, ok := ids[ref.Label]
		if !ok {
			return nil, fmt.Errorf("commit '%s' references unbuilt submodule commit '%s'", spec.Label, ref.Label)
		}
		entries = append(entries, &models.IndexEntry{
			Path:        p,
			Kind:        models.EntrySubRepo,
			SubRepoID:   ref.RepoID,
			SubCommitID: subID,
		})
	}

	return entries, nil
}

// CaptureRemote reads all refs of one remote repository into a leaf
// RepoState for comparison against an expectation.
func CaptureRemote(ctx context.Context, client remote.RemoteClient) (*RepoState, error) {
	refs, err := client.ListRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}

	state := &RepoState{Refs: make(map[string]string, len(refs))}
	for _, ref := range refs {
		state.Refs[ref.Name] = ref.CommitID
	}
	return state, nil
}
