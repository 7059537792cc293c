package timeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/internal/repository"
)

func setupTimeline(t *testing.T, feedSize int) (*Service, string) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Status{}, &model.FeedEntry{}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	owner := "reader0"
	base := time.Now().Add(-time.Duration(feedSize) * time.Second)
	statuses := make([]model.Status, feedSize)
	entries := make([]model.FeedEntry, feedSize)
	for i := 0; i < feedSize; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		id := fmt.Sprintf("s%03d", i)
		statuses[i] = model.Status{ID: id, AccountID: owner, Text: fmt.Sprintf("post %d", i),
			Visibility: model.VisibilityPublic, CreatedAt: at, UpdatedAt: at}
		entries[i] = model.FeedEntry{ID: fmt.Sprintf("e%03d", i), FeedKind: model.FeedKindHome,
			OwnerID: owner, StatusID: id, Score: at.UnixNano()}
	}
	require.NoError(t, db.CreateInBatches(&statuses, 100).Error)

	feeds := repository.NewSingleFeedRepository(db)
	require.NoError(t, feeds.InsertMany(context.Background(), entries))
	return NewService(db, rdb, feeds, time.Minute), owner
}

func TestFetchNewestFirst(t *testing.T) {
	svc, owner := setupTimeline(t, 30)
	ctx := context.Background()

	page1, err := svc.Fetch(ctx, model.FeedKindHome, owner, 1, 10)
	require.NoError(t, err)
	require.Len(t, page1, 10)
	assert.Equal(t, "s029", page1[0].ID)
	assert.Equal(t, "s020", page1[9].ID)

	page2, err := svc.Fetch(ctx, model.FeedKindHome, owner, 2, 10)
	require.NoError(t, err)
	require.Len(t, page2, 10)
	assert.Equal(t, "s019", page2[0].ID)
}

func TestFetchUsesIndexCache(t *testing.T) {
	svc, owner := setupTimeline(t, 30)
	ctx := context.Background()

	_, err := svc.Fetch(ctx, model.FeedKindHome, owner, 1, 10)
	require.NoError(t, err)
	first := svc.Counters()
	assert.Equal(t, int64(1), first.IndexLoads)

	// 第二次读走 LRANGE，不再回源索引
	_, err = svc.Fetch(ctx, model.FeedKindHome, owner, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), svc.Counters().IndexLoads)

	// 失效后回源
	svc.Invalidate(ctx, model.FeedKindHome, owner)
	_, err = svc.Fetch(ctx, model.FeedKindHome, owner, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), svc.Counters().IndexLoads)
}

func TestFetchBeyondEnd(t *testing.T) {
	svc, owner := setupTimeline(t, 5)
	ctx := context.Background()

	snaps, err := svc.Fetch(ctx, model.FeedKindHome, owner, 9, 10)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestFetchNoCacheMatchesCached(t *testing.T) {
	svc, owner := setupTimeline(t, 15)
	ctx := context.Background()

	cached, err := svc.Fetch(ctx, model.FeedKindHome, owner, 1, 10)
	require.NoError(t, err)
	plain, err := svc.FetchNoCache(ctx, model.FeedKindHome, owner, 1, 10)
	require.NoError(t, err)
	require.Equal(t, len(plain), len(cached))
	for i := range plain {
		assert.Equal(t, plain[i].ID, cached[i].ID)
	}
}
