package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

// FeedRepository 时间线存储。插入以 (feed_kind, owner_id, status_id)
// 为唯一键幂等；编辑重投只刷新 updated_at，不改 score（不回退排序）。
type FeedRepository interface {
	InsertMany(ctx context.Context, entries []model.FeedEntry) error
	Refresh(ctx context.Context, feedKind, ownerID, statusID string) error
	Page(ctx context.Context, feedKind, ownerID string, limit int) ([]*model.FeedEntry, error)
	Contains(ctx context.Context, feedKind, ownerID, statusID string) (bool, error)
	CountFor(ctx context.Context, feedKind, ownerID string) (int64, error)
}

// SingleFeedRepository 单表实现
type SingleFeedRepository struct {
	db *gorm.DB
}

func NewSingleFeedRepository(db *gorm.DB) *SingleFeedRepository {
	return &SingleFeedRepository{db: db}
}

func (r *SingleFeedRepository) InsertMany(ctx context.Context, entries []model.FeedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entries).Error
}

func (r *SingleFeedRepository) Refresh(ctx context.Context, feedKind, ownerID, statusID string) error {
	return r.db.WithContext(ctx).
		Model(&model.FeedEntry{}).
		Where("feed_kind = ? AND owner_id = ? AND status_id = ?", feedKind, ownerID, statusID).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

func (r *SingleFeedRepository) Page(ctx context.Context, feedKind, ownerID string, limit int) ([]*model.FeedEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var res []*model.FeedEntry
	err := r.db.WithContext(ctx).
		Where("feed_kind = ? AND owner_id = ?", feedKind, ownerID).
		Order("score DESC, id DESC").
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *SingleFeedRepository) Contains(ctx context.Context, feedKind, ownerID, statusID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.FeedEntry{}).
		Where("feed_kind = ? AND owner_id = ? AND status_id = ?", feedKind, ownerID, statusID).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *SingleFeedRepository) CountFor(ctx context.Context, feedKind, ownerID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.FeedEntry{}).
		Where("feed_kind = ? AND owner_id = ?", feedKind, ownerID).
		Count(&cnt).Error
	return cnt, err
}
