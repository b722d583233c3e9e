package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kilupskalvis/metavc/internal/remote"
	"github.com/kilupskalvis/metavc/internal/repo"
	"github.com/kilupskalvis/metavc/internal/store"
)

// ClientFactory builds a RemoteClient for a repository location. Push uses it
// once for the meta-repository and once per submodule destination, so tests
// can substitute in-memory remotes keyed by location.
type ClientFactory func(location, token string) (remote.RemoteClient, error)

// DefaultClientFactory builds HTTP clients with retry behavior.
func DefaultClientFactory(location, token string) (remote.RemoteClient, error) {
	c, err := remote.NewClientForLocation(location, token)
	if err != nil {
		return nil, err
	}
	return remote.NewRetryClient(c, remote.DefaultRetryConfig()), nil
}

// PushOptions configures a push operation.
type PushOptions struct {
	RemoteName string
	// Source is a branch name or commit ID prefix. Empty means the current
	// branch.
	Source string
	// Target is the ref name to update on the remote. Empty means Source.
	Target string
	Force  bool
}

// PushResult contains the outcome of a push operation.
type PushResult struct {
	CommitsPushed int
	PinsCreated   int
	UpToDate      bool
	BranchCreated bool
}

// PushProgress is called during push to report progress.
type PushProgress func(phase string, current, total int)

// Push publishes a local ref to a remote. It transfers the commits the remote
// lacks, guarantees that every submodule commit they reference is reachable
// on its derived remote, and only then moves the remote ref.
//
// Ordering is the contract: submodule pins are in place before the meta ref
// becomes visible, so a reader following the new tip never dangles. There is
// no rollback; every step is idempotent and a failed push is safe to re-run.
func Push(ctx context.Context, r *repo.Repository, clients ClientFactory, opts PushOptions, progress PushProgress) (*PushResult, error) {
	if progress == nil {
		progress = func(string, int, int) {}
	}
	st := r.Store

	rem, err := st.GetRemote(opts.RemoteName)
	if err != nil {
		return nil, fmt.Errorf("get remote: %w", err)
	}
	if rem == nil {
		return nil, fmt.Errorf("%w: remote '%s' is not configured", ErrUnresolvableRemote, opts.RemoteName)
	}

	token, err := GetRemoteToken(st, opts.RemoteName)
	if err != nil {
		return nil, fmt.Errorf("get remote token: %w", err)
	}

	source := opts.Source
	if source == "" {
		source, err = st.GetCurrentBranch()
		if err != nil {
			return nil, fmt.Errorf("get current branch: %w", err)
		}
		if source == "" {
			return nil, fmt.Errorf("%w: not on any branch and no source given", ErrUnknownRef)
		}
	}

	tip, err := ResolveRef(st, source)
	if err != nil {
		return nil, err
	}

	target := opts.Target
	if target == "" {
		target = source
	}

	// Full local ancestry of the source, tip first.
	chain, err := collectCommitChain(st, tip)
	if err != nil {
		return nil, fmt.Errorf("collect commit chain: %w", err)
	}

	client, err := clients(rem.URL, token)
	if err != nil {
		return nil, fmt.Errorf("connect to remote '%s': %w", opts.RemoteName, err)
	}

	progress("negotiating", 0, 0)
	neg, err := client.NegotiatePush(ctx, target, chain)
	if err != nil {
		return nil, fmt.Errorf("negotiate push: %w", err)
	}

	if neg.RemoteTip == tip {
		return &PushResult{UpToDate: true}, nil
	}

	if err := CheckFastForward(neg.RemoteTip, chain, opts.Force); err != nil {
		return nil, err
	}

	// The commits being published: local ancestry the remote does not already
	// hold as objects. Presence under any ref excludes a commit.
	missingSet := make(map[string]bool, len(neg.MissingCommits))
	for _, id := range neg.MissingCommits {
		missingSet[id] = true
	}
	var publishing []string
	for _, id := range chain {
		if missingSet[id] {
			publishing = append(publishing, id)
		}
	}
	// Reverse into topological order, oldest first.
	for i, j := 0, len(publishing)-1; i < j; i, j = i+1, j-1 {
		publishing[i], publishing[j] = publishing[j], publishing[i]
	}

	// Every submodule commit referenced by the published commits must be
	// durable on its derived remote before the meta ref moves.
	pins, err := guaranteeSubmodules(ctx, r, clients, rem.URL, token, publishing, progress)
	if err != nil {
		return nil, err
	}

	progress("uploading commits", 0, len(publishing))
	for i, commitID := range publishing {
		progress("uploading commits", i+1, len(publishing))

		bundle, err := buildCommitBundle(st, commitID)
		if err != nil {
			return nil, fmt.Errorf("build commit bundle for %s: %w", commitID, err)
		}
		if err := client.UploadCommitBundle(ctx, bundle); err != nil {
			return nil, fmt.Errorf("upload commit %s: %w", commitID, err)
		}
	}

	progress("updating ref", 0, 0)
	branchCreated := neg.RemoteTip == ""
	if err := client.UpdateRef(ctx, target, tip, neg.RemoteTip); err != nil {
		var rerr *remote.RemoteError
		if errors.As(err, &rerr) && rerr.Status == http.StatusConflict {
			return nil, fmt.Errorf("%w: ref '%s' moved on the remote during push; re-run to retry", ErrRefUpdate, target)
		}
		return nil, fmt.Errorf("update remote ref '%s': %w", target, err)
	}

	if err := st.SetRemoteRef(opts.RemoteName, target, tip); err != nil {
		return nil, fmt.Errorf("update remote-tracking ref: %w", err)
	}

	return &PushResult{
		CommitsPushed: len(publishing),
		PinsCreated:   pins,
		BranchCreated: branchCreated,
	}, nil
}

// collectCommitChain walks from tip to root and returns commit IDs in
// tip-first order, following both parents of merge commits.
func collectCommitChain(st *store.Store, tipID string) ([]string, error) {
	var chain []string
	visited := make(map[string]bool)
	queue := []string{tipID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == "" || visited[current] {
			continue
		}
		visited[current] = true
		chain = append(chain, current)

		commit, err := st.GetCommit(current)
		if err != nil {
			return nil, fmt.Errorf("get commit %s: %w", current, err)
		}
		if commit == nil {
			return nil, fmt.Errorf("commit %s referenced but not in store", current)
		}

		if commit.ParentID != "" {
			queue = append(queue, commit.ParentID)
		}
		if commit.MergeParentID != "" {
			queue = append(queue, commit.MergeParentID)
		}
	}

	return chain, nil
}

// buildCommitBundle assembles a commit and its index entries for transfer.
func buildCommitBundle(st *store.Store, commitID string) (*remote.CommitBundle, error) {
	commit, err := st.GetCommit(commitID)
	if err != nil {
		return nil, fmt.Errorf("get commit: %w", err)
	}
	if commit == nil {
		return nil, fmt.Errorf("commit %s not in store", commitID)
	}

	entries, err := st.GetEntriesByCommit(commitID)
	if err != nil {
		return nil, fmt.Errorf("get index entries: %w", err)
	}

	return &remote.CommitBundle{Commit: commit, Entries: entries}, nil
}
