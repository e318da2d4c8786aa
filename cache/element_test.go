package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElement_WriteOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.gob")
	e := new(Element)
	e.Set(NewKnowledge(path, 0, []float32{1, 2}))
	assert.True(t, e.IsLoaded())
	assert.False(t, exists(path), "Set does not write")

	require.NoError(t, e.Unload())
	assert.False(t, e.IsLoaded())
	require.True(t, exists(path))

	require.NoError(t, e.Load())
	require.NoError(t, os.Remove(path))
	require.NoError(t, e.Unload())
	assert.False(t, exists(path), "knowledge that came from file is not written again")
}

func TestElement_LoadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.gob")
	e := new(Element)
	e.Set(NewKnowledge(path, 0, []float32{1}))
	require.NoError(t, e.Unload())
	require.NoError(t, os.Remove(path))

	assert.Error(t, e.Load())
	assert.False(t, e.IsLoaded())
	_, err := e.Knowledge()
	assert.Error(t, err)
}

func TestElement_KnowledgeReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.gob")
	e := new(Element)
	e.Set(NewKnowledge(path, 3, []float32{5, 6}))
	require.NoError(t, e.Unload())

	k, err := e.Knowledge()
	require.NoError(t, err)
	assert.False(t, e.IsLoaded(), "only the cache makes an element resident")
	assert.Equal(t, []float32{5, 6}, k.Values())
	assert.Equal(t, 3, k.Frame)
}

func TestElement_Destroy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "k.gob")
	e := new(Element)
	e.Set(NewKnowledge(path, 0, []float32{1}))
	require.NoError(t, e.Unload())
	require.NoError(t, os.WriteFile(PreviewPath(path), []byte("png"), 0644))

	require.NoError(t, e.Destroy())
	assert.False(t, exists(path))
	assert.False(t, exists(PreviewPath(path)))
	assert.False(t, e.IsLoaded())

	// nothing left to remove
	assert.NoError(t, e.Destroy())
	assert.NoError(t, new(Element).Destroy())
}

func TestElement_DestroyDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.gob")
	e := new(Element)
	e.Set(NewKnowledge(path, 0, []float32{1}))
	require.NoError(t, e.Destroy())
	require.NoError(t, e.Unload())
	assert.False(t, exists(path))
}
