// Package remote defines the protocol types and client for metavc-server
// communication.
package remote

import (
	"github.com/kilupskalvis/metavc/internal/models"
)

// NegotiatePushRequest is sent by the client to discover the remote tip of a
// ref and which commits the server needs.
type NegotiatePushRequest struct {
	Ref     string   `json:"ref"`
	Commits []string `json:"commits"`
}

// NegotiatePushResponse tells the client which commits are missing on the
// server and the current value of the target ref ("" if the ref is absent).
type NegotiatePushResponse struct {
	MissingCommits []string `json:"missing_commits"`
	RemoteTip      string   `json:"remote_tip"`
}

// HaveCommitsRequest asks the server which commit objects it already has.
type HaveCommitsRequest struct {
	IDs []string `json:"ids"`
}

// HaveCommitsResponse indicates which commit objects the server has and which
// are missing.
type HaveCommitsResponse struct {
	Have    []string `json:"have"`
	Missing []string `json:"missing"`
}

// CommitBundle contains a commit with its index entries, serialized together
// for transfer between client and server.
type CommitBundle struct {
	Commit  *models.Commit       `json:"commit"`
	Entries []*models.IndexEntry `json:"entries"`
}

// RefUpdateRequest is a compare-and-swap update for a ref.
type RefUpdateRequest struct {
	CommitID string `json:"commit_id"`
	Expected string `json:"expected"`
}

// PinResponse reports whether EnsurePin created a new permanent ref.
type PinResponse struct {
	Created bool `json:"created"`
}

// RepoInfo contains summary information about a remote repository.
type RepoInfo struct {
	RefCount    int `json:"ref_count"`
	PinCount    int `json:"pin_count"`
	CommitCount int `json:"commit_count"`
}

// ErrorResponse is the structured error format returned by the server.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Detail  map[string]string `json:"detail,omitempty"`
}
