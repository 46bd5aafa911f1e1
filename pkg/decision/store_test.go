package decision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreWriteOnce(t *testing.T) {
	testWriteOnce(t, NewMemoryStore())
}

func TestFileStoreWriteOnce(t *testing.T) {
	s, err := OpenFileStore(filepath.Join(t.TempDir(), "decisions.json"), nil)
	require.NoError(t, err)
	testWriteOnce(t, s)
}

func TestSQLiteStoreWriteOnce(t *testing.T) {
	s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "decisions.db"), nil)
	require.NoError(t, err)
	defer s.Close()
	testWriteOnce(t, s)
}

func testWriteOnce(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Lookup(ctx, "/a.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "/a.jpg", 1))
	require.NoError(t, s.Save(ctx, "/a.jpg", 2))

	idx, ok, err := s.Lookup(ctx, "/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	assert.ErrorIs(t, s.Save(ctx, "/b.jpg", -1), ErrInvalidChoice)
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "decisions.json")
	ctx := context.Background()

	s, err := OpenFileStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "/photos/a.jpg", 3))
	require.NoError(t, s.Close())

	s, err = OpenFileStore(path, nil)
	require.NoError(t, err)
	idx, ok, err := s.Lookup(ctx, "/photos/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, idx)

	// no temp files left behind
	matches, err := filepath.Glob(path + ".tmp-*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFileStoreCorruptFileIsMovedAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"/a.jpg": 1,`), 0644))

	s, err := OpenFileStore(path, nil)
	require.NoError(t, err)

	_, ok, err := s.Lookup(context.Background(), "/a.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoFileExists(t, path)

	backups, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, backups, 1)

	data, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, `{"/a.jpg": 1,`, string(data))

	require.NoError(t, s.Save(context.Background(), "/b.jpg", 0))
	assert.FileExists(t, path)
}

func TestFileStoreWrongShapeIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.json")
	require.NoError(t, os.WriteFile(path, []byte(`["/a.jpg"]`), 0644))

	_, err := OpenFileStore(path, nil)
	require.NoError(t, err)

	backups, _ := filepath.Glob(path + ".corrupt-*")
	assert.Len(t, backups, 1)
}

func TestFileStoreNullIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0644))

	s, err := OpenFileStore(path, nil)
	require.NoError(t, err)

	backups, _ := filepath.Glob(path + ".corrupt-*")
	assert.Len(t, backups, 1)

	require.NotPanics(t, func() {
		assert.NoError(t, s.Save(context.Background(), "/photos/a.jpg", 1))
	})
	idx, ok, err := s.Lookup(context.Background(), "/photos/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestFileStoreConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.json")
	ctx := context.Background()

	s, err := OpenFileStore(path, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Save(ctx, fmt.Sprintf("/photos/%02d.jpg", i), i%3))
		}(i)
	}
	wg.Wait()

	reopened, err := OpenFileStore(path, nil)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		idx, ok, err := reopened.Lookup(ctx, fmt.Sprintf("/photos/%02d.jpg", i))
		require.NoError(t, err)
		require.True(t, ok, i)
		assert.Equal(t, i%3, idx)
	}
}

func TestSQLiteStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.db")
	ctx := context.Background()

	s, err := OpenSQLiteStore(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "/photos/a.jpg", 2))
	require.NoError(t, s.Close())

	s, err = OpenSQLiteStore(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()

	idx, ok, err := s.Lookup(ctx, "/photos/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestSQLiteStoreCorruptFileIsRecreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.db")
	garbage := make([]byte, 4096)
	for i := range garbage {
		garbage[i] = byte('x')
	}
	require.NoError(t, os.WriteFile(path, garbage, 0644))

	s, err := OpenSQLiteStore(context.Background(), path, nil)
	require.NoError(t, err)
	defer s.Close()

	backups, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	require.NoError(t, s.Save(context.Background(), "/a.jpg", 1))
	idx, ok, err := s.Lookup(context.Background(), "/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}
