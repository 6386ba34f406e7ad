package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	bolt, err := NewBoltStore(Config{StorageDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })

	return map[string]Store{
		"bolt":   bolt,
		"memory": NewMemoryStore(),
	}
}

func TestGetPutDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := []byte("cnt@v1")

			// Absent key yields nil
			value, err := store.Get(key)
			require.NoError(t, err)
			assert.Nil(t, value)

			// Put then read back
			require.NoError(t, store.Put(key, []byte("state-1")))
			value, err = store.Get(key)
			require.NoError(t, err)
			assert.Equal(t, []byte("state-1"), value)

			// Overwrite
			require.NoError(t, store.Put(key, []byte("state-2")))
			value, err = store.Get(key)
			require.NoError(t, err)
			assert.Equal(t, []byte("state-2"), value)

			// Delete
			require.NoError(t, store.Delete(key))
			value, err = store.Get(key)
			require.NoError(t, err)
			assert.Nil(t, value)
		})
	}
}

func TestKeysAreIndependent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put([]byte("a@v1"), []byte("1")))
			require.NoError(t, store.Put([]byte("b@v1"), []byte("2")))
			require.NoError(t, store.Delete([]byte("a@v1")))

			value, err := store.Get([]byte("b@v1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("2"), value)
		})
	}
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(Config{StorageDir: dir, DBName: "test.db"})
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(Config{StorageDir: dir, DBName: "test.db"})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	value, err := reopened.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	value := []byte("mutable")
	require.NoError(t, store.Put([]byte("k"), value))
	value[0] = 'X'

	got, err := store.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), got)
}
