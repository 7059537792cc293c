package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

func setupShardedFeeds(t *testing.T) *ShardedFeedRepository {
	t.Helper()
	dbs := make([]*gorm.DB, FeedShardCount)
	for i := range dbs {
		db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s_shard%d?mode=memory&cache=shared", t.Name(), i)), &gorm.Config{})
		require.NoError(t, err)
		dbs[i] = db
	}
	repo, err := NewShardedFeedRepository(dbs)
	require.NoError(t, err)
	require.NoError(t, repo.InitSchema())
	return repo
}

func TestRouteByOwnerIsStable(t *testing.T) {
	d1, t1 := RouteByOwner(model.FeedKindHome, "owner1")
	d2, t2 := RouteByOwner(model.FeedKindHome, "owner1")
	assert.Equal(t, d1, d2)
	assert.Equal(t, t1, t2)
	assert.Less(t, d1, FeedShardCount)
	assert.Less(t, t1, FeedTableCount)

	// feed 类型参与路由：同 owner 不同类型可以落不同分片
	spread := make(map[[2]int]bool)
	for i := 0; i < 64; i++ {
		di, ti := RouteByOwner(model.FeedKindHome, fmt.Sprintf("owner%d", i))
		spread[[2]int{di, ti}] = true
	}
	assert.Greater(t, len(spread), 1)
}

func TestShardedInsertAndPage(t *testing.T) {
	repo := setupShardedFeeds(t)
	ctx := context.Background()

	// 一批跨多个 owner（必然跨分片）
	var entries []model.FeedEntry
	base := time.Now().Add(-time.Hour)
	for owner := 0; owner < 10; owner++ {
		for i := 0; i < 5; i++ {
			entries = append(entries, model.FeedEntry{
				ID:       fmt.Sprintf("e-%d-%d", owner, i),
				FeedKind: model.FeedKindHome,
				OwnerID:  fmt.Sprintf("owner%d", owner),
				StatusID: fmt.Sprintf("s-%d-%d", owner, i),
				Score:    base.Add(time.Duration(i) * time.Second).UnixNano(),
			})
		}
	}
	require.NoError(t, repo.InsertMany(ctx, entries))

	page, err := repo.Page(ctx, model.FeedKindHome, "owner3", 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "s-3-4", page[0].StatusID) // score 降序

	ok, err := repo.Contains(ctx, model.FeedKindHome, "owner3", "s-3-0")
	require.NoError(t, err)
	assert.True(t, ok)

	cnt, err := repo.CountFor(ctx, model.FeedKindHome, "owner3")
	require.NoError(t, err)
	assert.Equal(t, int64(5), cnt)

	total, err := repo.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), total)
}

func TestShardedIdempotentInsert(t *testing.T) {
	repo := setupShardedFeeds(t)
	ctx := context.Background()

	e := model.FeedEntry{ID: "e1", FeedKind: model.FeedKindHome, OwnerID: "owner1", StatusID: "s1", Score: 1}
	dup := model.FeedEntry{ID: "e2", FeedKind: model.FeedKindHome, OwnerID: "owner1", StatusID: "s1", Score: 1}
	require.NoError(t, repo.InsertMany(ctx, []model.FeedEntry{e}))
	require.NoError(t, repo.InsertMany(ctx, []model.FeedEntry{dup}))

	cnt, err := repo.CountFor(ctx, model.FeedKindHome, "owner1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)
}
