package repo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAndOpen(t *testing.T) {
	root := t.TempDir()

	r, err := Init(root, "meta")
	require.NoError(t, err)
	assert.Equal(t, "meta", r.ID())
	r.Close()

	r, err = Open(root)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "meta", r.ID())
	assert.Equal(t, root, r.Root)
}

func TestInit_AlreadyInitialized(t *testing.T) {
	root := t.TempDir()

	r, err := Init(root, "meta")
	require.NoError(t, err)
	r.Close()

	_, err = Init(root, "meta")
	assert.Error(t, err)
}

func TestSubmodule_OpenAndClosed(t *testing.T) {
	root := t.TempDir()

	r, err := Init(root, "meta")
	require.NoError(t, err)
	defer r.Close()

	// No repository at lib yet — closed
	sub, err := r.Submodule("lib")
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.False(t, r.IsOpenSubmodule("lib"))

	libRepo, err := Init(filepath.Join(root, "lib"), "lib")
	require.NoError(t, err)
	libRepo.Close()

	assert.True(t, r.IsOpenSubmodule("lib"))
	sub, err = r.Submodule("lib")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "lib", sub.ID())

	// Second open returns the cached handle
	again, err := r.Submodule("lib")
	require.NoError(t, err)
	assert.Same(t, sub, again)
}
