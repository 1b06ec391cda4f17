package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupRepo_FilterAndMark(t *testing.T) {
	t.Parallel()

	mr, client := newTestClient(t)
	repo := NewDedupRepo(client, 7*24*time.Hour)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.now = func() time.Time { return fixed }
	ctx := context.Background()

	require.NoError(t, repo.MarkCrawled(ctx, []string{"https://a.example/2"}))

	fresh, err := repo.FilterNew(ctx, []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/1", "https://a.example/3"}, fresh)

	val, err := mr.Get("crawled:url:https://a.example/2")
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(fixed.UnixMilli(), 10), val)
	assert.Equal(t, 7*24*time.Hour, mr.TTL("crawled:url:https://a.example/2"))
}

func TestDedupRepo_Expiry(t *testing.T) {
	t.Parallel()

	mr, client := newTestClient(t)
	repo := NewDedupRepo(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.MarkCrawled(ctx, []string{"https://a.example/1"}))
	mr.FastForward(2 * time.Hour)

	fresh, err := repo.FilterNew(ctx, []string{"https://a.example/1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/1"}, fresh)
}

func TestDedupRepo_Empty(t *testing.T) {
	t.Parallel()

	_, client := newTestClient(t)
	repo := NewDedupRepo(client, time.Hour)

	fresh, err := repo.FilterNew(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, fresh)
	require.NoError(t, repo.MarkCrawled(context.Background(), nil))
}
