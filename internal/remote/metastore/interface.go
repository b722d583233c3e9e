// Package metastore provides the server-side metadata storage abstraction.
package metastore

import (
	"context"
	"errors"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/remote"
)

// Sentinel errors for expected conditions.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrImmutable = errors.New("ref is immutable")
)

// MetaStore defines the contract for server-side repository persistence.
type MetaStore interface {
	// Commits
	HasCommit(ctx context.Context, id string) (bool, error)
	GetCommit(ctx context.Context, id string) (*models.Commit, error)
	InsertCommitBundle(ctx context.Context, b *remote.CommitBundle) error
	GetCommitBundle(ctx context.Context, id string) (*remote.CommitBundle, error)
	GetCommitCount(ctx context.Context) (int, error)

	// Refs. The refs namespace holds mutable branches plus permanent
	// "commits/<id>" pins; the pin namespace is write-once.
	ListRefs(ctx context.Context) ([]*models.Ref, error)
	GetRef(ctx context.Context, name string) (*models.Ref, error)
	UpdateRefCAS(ctx context.Context, name, newCommitID, expectedCommitID string) error
	DeleteRef(ctx context.Context, name string) error

	// EnsurePin creates the permanent ref for a commit if absent.
	// Returns true if the ref was created, false if it already existed.
	// The referenced commit object must already be present.
	EnsurePin(ctx context.Context, commitID string) (bool, error)

	// GetPinCount returns the number of permanent pin refs.
	GetPinCount(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
