package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s KVStore) {
	_, found, err := s.Get([]byte("k"))
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Set([]byte("k"), []byte("v1")))
	v, found, err := s.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, s.Flush())
	v, found, err = s.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, s.Erase([]byte("k")))
	_, found, err = s.Get([]byte("k"))
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Flush())
	_, found, err = s.Get([]byte("k"))
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Set([]byte("empty"), nil))
	v, found, err = s.Get([]byte("empty"))
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, v)
}

func TestMemLevelDB(t *testing.T) {
	s, err := NewMemLevelDB()
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestMemBadgerDB(t *testing.T) {
	s, err := NewMemBadgerDB()
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestLevelDBReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(BackendLevelDB, dir, "nodes")
	require.NoError(t, err)
	require.NoError(t, s.Set([]byte("a"), []byte("1")))
	// Close flushes
	require.NoError(t, s.Close())

	s, err = NewLevelDB(filepath.Join(dir, "nodes"))
	require.NoError(t, err)
	defer s.Close()
	v, found, err := s.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), v)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("mongo", t.TempDir(), "x")
	require.Error(t, err)
}
