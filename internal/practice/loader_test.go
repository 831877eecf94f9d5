package practice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	dir   *Directory
	err   error
	calls int
}

func (f *fakeRepo) LoadDirectory(context.Context, string) (*Directory, error) {
	f.calls++
	return f.dir, f.err
}

func TestLoaderCachesDirectory(t *testing.T) {
	repo := &fakeRepo{dir: &Directory{Practice: Practice{ID: 1, Subdomain: "maple-street"}}}
	loader := NewLoader(repo, "maple-street")

	for i := 0; i < 3; i++ {
		dir, err := loader.Directory(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), dir.Practice.ID)
	}
	assert.Equal(t, 1, repo.calls)
}

func TestLoaderServesStaleCopyOnError(t *testing.T) {
	repo := &fakeRepo{dir: &Directory{Practice: Practice{ID: 1}}}
	loader := NewLoader(repo, "maple-street")

	_, err := loader.Directory(context.Background())
	require.NoError(t, err)

	loader.cachedAt = loader.cachedAt.Add(-2 * directoryCacheTTL)
	repo.err = errors.New("db down")

	dir, err := loader.Directory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), dir.Practice.ID)
	assert.Equal(t, 2, repo.calls)
}

func TestLoaderFailsWithoutAnyCopy(t *testing.T) {
	loader := NewLoader(&fakeRepo{err: errors.New("db down")}, "maple-street")

	_, err := loader.Directory(context.Background())
	assert.Error(t, err)
}
