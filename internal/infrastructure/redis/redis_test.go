package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposage/reposage-api/internal/domain/repository"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewStore(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestSetGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "repo_indexed:org_repo", "true", 0))

	val, err := store.Get(ctx, "repo_indexed:org_repo")
	require.NoError(t, err)
	assert.Equal(t, "true", val)
}

func TestGetMissingKey(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "no_such_key")
	assert.ErrorIs(t, err, repository.ErrKeyNotFound)
}

func TestSetWithTTLExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "query_cache:org_repo:q", "answer", time.Hour))

	val, err := store.Get(ctx, "query_cache:org_repo:q")
	require.NoError(t, err)
	assert.Equal(t, "answer", val)

	mr.FastForward(time.Hour + time.Second)

	_, err = store.Get(ctx, "query_cache:org_repo:q")
	assert.ErrorIs(t, err, repository.ErrKeyNotFound)
}

func TestSetNXClaimsOnce(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := store.SetNX(ctx, "repo_indexing:org_repo", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetNX(ctx, "repo_indexing:org_repo", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetNXReclaimAfterExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	ok, err := store.SetNX(ctx, "repo_indexing:org_repo", "1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = store.SetNX(ctx, "repo_indexing:org_repo", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExists(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "flag")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Set(ctx, "flag", "true", 0))

	exists, err = store.Exists(ctx, "flag")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDel(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "flag", "true", 0))
	require.NoError(t, store.Del(ctx, "flag"))

	exists, err := store.Exists(ctx, "flag")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting an absent key is not an error.
	assert.NoError(t, store.Del(ctx, "flag"))
}

func TestNewStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewStore(addr, "", 0)
	assert.Error(t, err)
}
