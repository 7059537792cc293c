package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oyasumi-space/antenna-fanout/config"
	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/internal/repository"
)

func shardDSNs(t *testing.T, n int) []string {
	t.Helper()
	dsns := make([]string, n)
	for i := 0; i < n; i++ {
		dsns[i] = fmt.Sprintf("file:%s_sh%d?mode=memory&cache=shared", t.Name(), i)
	}
	return dsns
}

// 未配置分片 DSN 时时间线与主库同库
func TestNewFeedRepositorySingle(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}}
	db, err := InitDB(cfg)
	require.NoError(t, err)

	feeds, err := NewFeedRepository(cfg, db)
	require.NoError(t, err)
	assert.IsType(t, &repository.SingleFeedRepository{}, feeds)
}

func TestNewFeedRepositorySharded(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver:        "sqlite",
		DSN:           ":memory:",
		FeedShardDSNs: shardDSNs(t, repository.FeedShardCount),
	}}
	db, err := InitDB(cfg)
	require.NoError(t, err)

	feeds, err := NewFeedRepository(cfg, db)
	require.NoError(t, err)
	require.IsType(t, &repository.ShardedFeedRepository{}, feeds)

	// 分片建表完成后可直接读写
	ctx := context.Background()
	require.NoError(t, feeds.InsertMany(ctx, []model.FeedEntry{
		{ID: "e1", FeedKind: model.FeedKindHome, OwnerID: "a1", StatusID: "s1", Score: 1},
	}))
	ok, err := feeds.Contains(ctx, model.FeedKindHome, "a1", "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewFeedRepositoryShardCountMismatch(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver:        "sqlite",
		DSN:           ":memory:",
		FeedShardDSNs: shardDSNs(t, 3),
	}}
	db, err := InitDB(cfg)
	require.NoError(t, err)

	_, err = NewFeedRepository(cfg, db)
	assert.Error(t, err)
}
