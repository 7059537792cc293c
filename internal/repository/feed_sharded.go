package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

const (
	// FeedShardCount 分库数量，FeedTableCount 每库分表数量
	FeedShardCount = 8
	FeedTableCount = 8
)

// ShardedFeedRepository 分库分表时间线仓储。同一 (feed_kind, owner)
// 的所有条目路由到同一张分表，单用户时间线读取精确命中一个分片。
type ShardedFeedRepository struct {
	// shards[dbIndex][tableIndex] = *gorm.DB
	shards [][]*gorm.DB
}

func NewShardedFeedRepository(dbs []*gorm.DB) (*ShardedFeedRepository, error) {
	if len(dbs) != FeedShardCount {
		return nil, fmt.Errorf("expected %d databases, got %d", FeedShardCount, len(dbs))
	}
	shards := make([][]*gorm.DB, FeedShardCount)
	for i := 0; i < FeedShardCount; i++ {
		shards[i] = make([]*gorm.DB, FeedTableCount)
		for j := 0; j < FeedTableCount; j++ {
			shards[i][j] = dbs[i]
		}
	}
	return &ShardedFeedRepository{shards: shards}, nil
}

// RouteByOwner 按 (feed_kind, owner_id) 哈希路由：高位确定库，低位确定表
func RouteByOwner(feedKind, ownerID string) (dbIndex, tableIndex int) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feedKind))
	_, _ = h.Write([]byte(ownerID))
	sum := h.Sum32()
	dbIndex = int((sum >> 8) % FeedShardCount)
	tableIndex = int(sum % FeedTableCount)
	return
}

func feedTableName(tableIndex int) string {
	return fmt.Sprintf("feed_entries_%d", tableIndex)
}

func (r *ShardedFeedRepository) route(feedKind, ownerID string) (*gorm.DB, string) {
	dbIdx, tblIdx := RouteByOwner(feedKind, ownerID)
	return r.shards[dbIdx][tblIdx], feedTableName(tblIdx)
}

func (r *ShardedFeedRepository) InsertMany(ctx context.Context, entries []model.FeedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	// 一批内可能跨分片，按分片分组后批量写
	type bucket struct {
		db      *gorm.DB
		table   string
		entries []model.FeedEntry
	}
	buckets := make(map[string]*bucket)
	for _, e := range entries {
		db, table := r.route(e.FeedKind, e.OwnerID)
		key := fmt.Sprintf("%p/%s", db, table)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{db: db, table: table}
			buckets[key] = b
		}
		b.entries = append(b.entries, e)
	}
	for _, b := range buckets {
		if err := b.db.WithContext(ctx).
			Table(b.table).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&b.entries).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *ShardedFeedRepository) Refresh(ctx context.Context, feedKind, ownerID, statusID string) error {
	db, table := r.route(feedKind, ownerID)
	return db.WithContext(ctx).
		Table(table).
		Where("feed_kind = ? AND owner_id = ? AND status_id = ?", feedKind, ownerID, statusID).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

func (r *ShardedFeedRepository) Page(ctx context.Context, feedKind, ownerID string, limit int) ([]*model.FeedEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	db, table := r.route(feedKind, ownerID)
	var res []*model.FeedEntry
	err := db.WithContext(ctx).
		Table(table).
		Where("feed_kind = ? AND owner_id = ?", feedKind, ownerID).
		Order("score DESC, id DESC").
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *ShardedFeedRepository) Contains(ctx context.Context, feedKind, ownerID, statusID string) (bool, error) {
	db, table := r.route(feedKind, ownerID)
	var cnt int64
	err := db.WithContext(ctx).
		Table(table).
		Where("feed_kind = ? AND owner_id = ? AND status_id = ?", feedKind, ownerID, statusID).
		Count(&cnt).Error
	return cnt > 0, err
}

// CountFor 单 owner 统计（精确路由）
func (r *ShardedFeedRepository) CountFor(ctx context.Context, feedKind, ownerID string) (int64, error) {
	db, table := r.route(feedKind, ownerID)
	var cnt int64
	err := db.WithContext(ctx).
		Table(table).
		Where("feed_kind = ? AND owner_id = ?", feedKind, ownerID).
		Count(&cnt).Error
	return cnt, err
}

// CountAll 全量统计（跨所有分片并发）
func (r *ShardedFeedRepository) CountAll(ctx context.Context) (int64, error) {
	var total int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	errChan := make(chan error, FeedShardCount*FeedTableCount)

	for dbIdx := 0; dbIdx < FeedShardCount; dbIdx++ {
		for tblIdx := 0; tblIdx < FeedTableCount; tblIdx++ {
			wg.Add(1)
			go func(di, ti int) {
				defer wg.Done()
				var cnt int64
				if err := r.shards[di][ti].WithContext(ctx).
					Table(feedTableName(ti)).
					Count(&cnt).Error; err != nil {
					errChan <- err
					return
				}
				mu.Lock()
				total += cnt
				mu.Unlock()
			}(dbIdx, tblIdx)
		}
	}
	wg.Wait()
	close(errChan)

	if len(errChan) > 0 {
		return 0, <-errChan
	}
	return total, nil
}

// InitSchema 初始化所有分片的表结构
func (r *ShardedFeedRepository) InitSchema() error {
	for dbIdx := 0; dbIdx < FeedShardCount; dbIdx++ {
		db := r.shards[dbIdx][0]
		for tblIdx := 0; tblIdx < FeedTableCount; tblIdx++ {
			if err := db.Table(feedTableName(tblIdx)).AutoMigrate(&model.FeedEntry{}); err != nil {
				return fmt.Errorf("failed to migrate table %s in db %d: %w", feedTableName(tblIdx), dbIdx, err)
			}
		}
	}
	return nil
}
