package entry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "entries.json"))

	require.NoError(t, s.Load())
	assert.Equal(t, 0, s.Len())
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "entries.json")

	s := NewStore(path)
	require.NoError(t, s.Load())
	s.Add(cloudEntry())
	s.Add(localEntry())
	require.NoError(t, s.Save())

	// credentials stay owner readable
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded := NewStore(path)
	require.NoError(t, loaded.Load())
	require.Equal(t, 2, loaded.Len())

	e := loaded.Get("e-cloud")
	require.NotNil(t, e)
	assert.Equal(t, "user@example.com", e.Data[KeyUsername])
	assert.Equal(t, 2, e.Version)

	assert.Nil(t, loaded.Get("nope"))
	assert.NotNil(t, loaded.FindByUniqueID("1234-5678-9012"))
	assert.Nil(t, loaded.FindByUniqueID("0000-0000-0000"))
}

func TestStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

	s := NewStore(path)
	assert.Error(t, s.Load())
}

func TestStoreRemove(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "entries.json"))
	s.Add(cloudEntry())

	assert.True(t, s.Remove("e-cloud"))
	assert.False(t, s.Remove("e-cloud"))
	assert.Equal(t, 0, s.Len())
}

func TestStoreFindByUniqueIDIgnoresEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "entries.json"))
	e := cloudEntry()
	e.UniqueID = ""
	s.Add(e)

	assert.Nil(t, s.FindByUniqueID(""))
}
