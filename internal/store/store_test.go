package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a new bbolt store in a temp directory for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { st.Close() })
	return st
}

// ==================== Store Tests ====================

func TestStore_Initialize(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := New(dbPath)
	require.NoError(t, err)
	defer st.Close()

	err = st.Initialize()
	assert.NoError(t, err)

	// Verify buckets exist by checking we can read from them
	_, err = st.GetHEAD()
	assert.NoError(t, err)

	_, err = st.GetStagedFiles()
	assert.NoError(t, err)
}

func TestStore_GetSetValue(t *testing.T) {
	st := newTestStore(t)

	err := st.SetValue("test_key", "test_value")
	require.NoError(t, err)

	val, err := st.GetValue("test_key")
	require.NoError(t, err)
	assert.Equal(t, "test_value", val)

	// Get non-existent key returns empty
	val, err = st.GetValue("nonexistent")
	require.NoError(t, err)
	assert.Equal(t, "", val)
}

// ==================== Commits Tests ====================

func TestStore_CreateAndGetCommit(t *testing.T) {
	st := newTestStore(t)

	entries := []*models.IndexEntry{
		{Path: "README.md", Kind: models.EntryFile, Content: []byte("hello")},
		{Path: "lib", Kind: models.EntrySubRepo, SubRepoID: "lib", SubCommitID: "def456"},
	}
	commit := &models.Commit{
		ID:         "abc123",
		Message:    "Initial commit",
		Timestamp:  time.Now(),
		EntryCount: len(entries),
	}

	require.NoError(t, st.CreateCommit(commit, entries))

	got, err := st.GetCommit("abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Initial commit", got.Message)
	assert.Equal(t, 2, got.EntryCount)

	gotEntries, err := st.GetEntriesByCommit("abc123")
	require.NoError(t, err)
	require.Len(t, gotEntries, 2)
	assert.Equal(t, "README.md", gotEntries[0].Path)
	assert.Equal(t, models.EntrySubRepo, gotEntries[1].Kind)
	assert.Equal(t, "def456", gotEntries[1].SubCommitID)

	// Duplicate commit IDs are rejected
	err = st.CreateCommit(commit, nil)
	assert.Error(t, err)
}

func TestStore_GetCommit_NotFound(t *testing.T) {
	st := newTestStore(t)

	got, err := st.GetCommit("missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	has, err := st.HasCommit("missing")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestStore_GetCommitByShortID(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.CreateCommit(&models.Commit{ID: "abcdef123456", Message: "one", Timestamp: time.Now()}, nil))
	require.NoError(t, st.CreateCommit(&models.Commit{ID: "abd999", Message: "two", Timestamp: time.Now()}, nil))

	got, err := st.GetCommitByShortID("abcd")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "one", got.Message)

	// Ambiguous prefix
	_, err = st.GetCommitByShortID("ab")
	assert.Error(t, err)

	// No match
	got, err = st.GetCommitByShortID("zzz")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// ==================== Branch Tests ====================

func TestStore_Branches(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.CreateBranch("master", "c1"))
	require.NoError(t, st.CreateBranch("feature", "c2"))

	b, err := st.GetBranch("master")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "c1", b.CommitID)

	require.NoError(t, st.UpdateBranch("master", "c3"))
	b, err = st.GetBranch("master")
	require.NoError(t, err)
	assert.Equal(t, "c3", b.CommitID)

	branches, err := st.ListBranches()
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "feature", branches[0].Name)

	require.NoError(t, st.DeleteBranch("feature"))
	b, err = st.GetBranch("feature")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestStore_CurrentBranchAndHEAD(t *testing.T) {
	st := newTestStore(t)

	head, err := st.GetHEAD()
	require.NoError(t, err)
	assert.Equal(t, "", head)

	require.NoError(t, st.CreateBranch("master", "c1"))
	require.NoError(t, st.SetCurrentBranch("master"))

	name, err := st.GetCurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "master", name)

	head, err = st.GetHEAD()
	require.NoError(t, err)
	assert.Equal(t, "c1", head)
}

// ==================== Remote Tests ====================

func TestStore_Remotes(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.AddRemote("origin", "http://localhost:8730/meta"))

	// Duplicate names are rejected
	err := st.AddRemote("origin", "http://elsewhere/meta")
	assert.Error(t, err)

	r, err := st.GetRemote("origin")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "http://localhost:8730/meta", r.URL)

	require.NoError(t, st.UpdateRemoteURL("origin", "http://localhost:9000/meta"))
	r, err = st.GetRemote("origin")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/meta", r.URL)

	require.NoError(t, st.SetRemoteRef("origin", "master", "c1"))
	ref, err := st.GetRemoteRef("origin", "master")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "c1", ref.CommitID)

	require.NoError(t, st.RemoveRemote("origin"))
	r, err = st.GetRemote("origin")
	require.NoError(t, err)
	assert.Nil(t, r)

	// Tracking refs are removed with the remote
	ref, err = st.GetRemoteRef("origin", "master")
	require.NoError(t, err)
	assert.Nil(t, ref)
}

// ==================== Submodule Tests ====================

func TestStore_Submodules(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.AddSubmodule("lib", "lib-repo", ""))
	require.NoError(t, st.AddSubmodule("tools/gen", "gen-repo", "../gen"))

	sub, err := st.GetSubmodule("lib")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "lib", sub.RelLocation())

	sub, err = st.GetSubmodule("tools/gen")
	require.NoError(t, err)
	assert.Equal(t, "../gen", sub.RelLocation())

	subs, err := st.ListSubmodules()
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "lib", subs[0].Path)

	err = st.AddSubmodule("lib", "other", "")
	assert.Error(t, err)

	require.NoError(t, st.RemoveSubmodule("lib"))
	sub, err = st.GetSubmodule("lib")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

// ==================== Staging Tests ====================

func TestStore_Staging(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.StageFile("a.txt", []byte("aaa")))
	require.NoError(t, st.StageFile("b.txt", []byte("bbb")))
	require.NoError(t, st.StageFile("a.txt", []byte("aaa2")))

	files, err := st.GetStagedFiles()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, []byte("aaa2"), files[0].Content)

	require.NoError(t, st.UnstageFile("b.txt"))
	files, err = st.GetStagedFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)

	require.NoError(t, st.ClearStaging())
	files, err = st.GetStagedFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}
