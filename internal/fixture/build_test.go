package fixture

import (
	"path/filepath"
	"testing"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixtureStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "fixture.db"))
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { st.Close() })
	return st
}

func TestBuild(t *testing.T) {
	subStore := newFixtureStore(t)
	metaStore := newFixtureStore(t)

	ids, err := Build(subStore, []CommitSpec{
		{Label: "s1", Files: map[string]string{"lib.go": "v1"}},
		{Label: "s2", Parent: "s1", Files: map[string]string{"lib.go": "v2"}},
	}, nil)
	require.NoError(t, err)

	ids, err = Build(metaStore, []CommitSpec{
		{Label: "c1", Subs: map[string]SubRef{"lib": {RepoID: "lib-repo", Label: "s1"}}},
		{Label: "c2", Parent: "c1", Subs: map[string]SubRef{"lib": {RepoID: "lib-repo", Label: "s2"}}},
	}, ids)
	require.NoError(t, err)

	// Physical IDs are real and distinct.
	assert.Len(t, ids, 4)
	seen := make(map[string]bool)
	for _, id := range ids {
		assert.Len(t, id, 64)
		assert.False(t, seen[id])
		seen[id] = true
	}

	// The meta commit chain is materialized with resolved sub references.
	c2, err := metaStore.GetCommit(ids["c2"])
	require.NoError(t, err)
	require.NotNil(t, c2)
	assert.Equal(t, ids["c1"], c2.ParentID)

	entries, err := metaStore.GetEntriesByCommit(ids["c2"])
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntrySubRepo, entries[0].Kind)
	assert.Equal(t, ids["s2"], entries[0].SubCommitID)
}

func TestBuild_Errors(t *testing.T) {
	st := newFixtureStore(t)

	_, err := Build(st, []CommitSpec{{Label: "c1", Parent: "missing"}}, nil)
	require.Error(t, err)

	_, err = Build(st, []CommitSpec{
		{Label: "c1", Subs: map[string]SubRef{"lib": {RepoID: "lib", Label: "missing"}}},
	}, nil)
	require.Error(t, err)

	_, err = Build(st, []CommitSpec{{Label: "dup"}, {Label: "dup"}}, nil)
	require.Error(t, err)
}
