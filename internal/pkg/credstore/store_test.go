package credstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store, err := NewRedisStore(rdb)
	require.NoError(t, err)
	return store, mr
}

func TestSetGetDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithExpiry(ctx, "refresh_token:u1", "tok-1", 60))

	got, err := store.Get(ctx, "refresh_token:u1")
	require.NoError(t, err)
	require.Equal(t, "tok-1", got)

	require.NoError(t, store.Delete(ctx, "refresh_token:u1"))

	_, err = store.Get(ctx, "refresh_token:u1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSet_OverwritesPreviousValue(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithExpiry(ctx, "refresh_token:u1", "old", 60))
	require.NoError(t, store.SetWithExpiry(ctx, "refresh_token:u1", "new", 60))

	got, err := store.Get(ctx, "refresh_token:u1")
	require.NoError(t, err)
	require.Equal(t, "new", got)
}

func TestEntryExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithExpiry(ctx, "token_blacklist:raw", "1", 30))

	mr.FastForward(31 * time.Second)

	_, err := store.Get(ctx, "token_blacklist:raw")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSet_RejectsNonPositiveTTL(t *testing.T) {
	store, _ := newTestStore(t)
	require.Error(t, store.SetWithExpiry(context.Background(), "k", "v", 0))
	require.Error(t, store.SetWithExpiry(context.Background(), "k", "v", -5))
}

func TestDelete_MissingKeyIsNoError(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Delete(context.Background(), "refresh_token:absent"))
}

func TestKeyBuilders(t *testing.T) {
	require.Equal(t, "refresh_token:u-42", RefreshTokenKey("u-42"))
	require.Equal(t, "token_blacklist:eyJraWQ", BlacklistKey("eyJraWQ"))
}
