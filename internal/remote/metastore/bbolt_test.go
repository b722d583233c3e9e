package metastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetaStore(t *testing.T) *BboltStore {
	t.Helper()
	st, err := NewBboltStore(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func insertCommit(t *testing.T, st *BboltStore, id, parent string) {
	t.Helper()
	err := st.InsertCommitBundle(context.Background(), &remote.CommitBundle{
		Commit: &models.Commit{ID: id, ParentID: parent, Message: "m-" + id, Timestamp: time.Now()},
		Entries: []*models.IndexEntry{
			{Path: "f.txt", Kind: models.EntryFile, Content: []byte(id)},
		},
	})
	require.NoError(t, err)
}

func TestBboltStore_CommitBundleRoundTrip(t *testing.T) {
	st := newTestMetaStore(t)
	ctx := context.Background()

	insertCommit(t, st, "c1", "")

	has, err := st.HasCommit(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, has)

	bundle, err := st.GetCommitBundle(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "m-c1", bundle.Commit.Message)
	require.Len(t, bundle.Entries, 1)
	assert.Equal(t, "f.txt", bundle.Entries[0].Path)

	// Re-inserting is a no-op, not an error
	insertCommit(t, st, "c1", "")
	count, err := st.GetCommitCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = st.GetCommitBundle(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBboltStore_UpdateRefCAS(t *testing.T) {
	st := newTestMetaStore(t)
	ctx := context.Background()

	// Create with empty expected
	require.NoError(t, st.UpdateRefCAS(ctx, "master", "c1", ""))

	ref, err := st.GetRef(ctx, "master")
	require.NoError(t, err)
	assert.Equal(t, "c1", ref.CommitID)

	// Creating again with empty expected conflicts
	assert.ErrorIs(t, st.UpdateRefCAS(ctx, "master", "c2", ""), ErrConflict)

	// Wrong expected value conflicts
	assert.ErrorIs(t, st.UpdateRefCAS(ctx, "master", "c2", "cX"), ErrConflict)

	// Correct expected value succeeds
	require.NoError(t, st.UpdateRefCAS(ctx, "master", "c2", "c1"))
	ref, err = st.GetRef(ctx, "master")
	require.NoError(t, err)
	assert.Equal(t, "c2", ref.CommitID)

	// The pin namespace cannot be written through CAS
	assert.ErrorIs(t, st.UpdateRefCAS(ctx, models.PinRef("c1"), "c1", ""), ErrImmutable)
}

func TestBboltStore_EnsurePin(t *testing.T) {
	st := newTestMetaStore(t)
	ctx := context.Background()

	// Pinning an unknown commit fails
	_, err := st.EnsurePin(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	insertCommit(t, st, "c1", "")

	created, err := st.EnsurePin(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, created)

	ref, err := st.GetRef(ctx, models.PinRef("c1"))
	require.NoError(t, err)
	assert.Equal(t, "c1", ref.CommitID)

	// Idempotent
	created, err = st.EnsurePin(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, created)

	// Pins cannot be deleted
	assert.ErrorIs(t, st.DeleteRef(ctx, models.PinRef("c1")), ErrImmutable)

	count, err := st.GetPinCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBboltStore_ListRefs(t *testing.T) {
	st := newTestMetaStore(t)
	ctx := context.Background()

	insertCommit(t, st, "c1", "")
	require.NoError(t, st.UpdateRefCAS(ctx, "master", "c1", ""))
	_, err := st.EnsurePin(ctx, "c1")
	require.NoError(t, err)

	refs, err := st.ListRefs(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, models.PinRef("c1"), refs[0].Name)
	assert.Equal(t, "master", refs[1].Name)
}

func TestBboltStore_DeleteRef(t *testing.T) {
	st := newTestMetaStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, st.DeleteRef(ctx, "missing"), ErrNotFound)

	require.NoError(t, st.UpdateRefCAS(ctx, "feature", "c1", ""))
	require.NoError(t, st.DeleteRef(ctx, "feature"))

	_, err := st.GetRef(ctx, "feature")
	assert.ErrorIs(t, err, ErrNotFound)
}
