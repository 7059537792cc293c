package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

type TagRepository interface {
	// Ensure 按名称取或建标签
	Ensure(ctx context.Context, name string) (*model.Tag, error)
	// WithTx 返回绑定到事务的副本，供事务内取建标签
	WithTx(tx *gorm.DB) TagRepository
	Follow(ctx context.Context, tagID, accountID string) error
	// FollowerIDs 分页扫描话题关注者（不排序）
	FollowerIDs(ctx context.Context, tagID string, offset, limit int) ([]string, error)
}

type tagRepository struct{ db *gorm.DB }

func NewTagRepository(db *gorm.DB) TagRepository { return &tagRepository{db: db} }

func (r *tagRepository) WithTx(tx *gorm.DB) TagRepository { return &tagRepository{db: tx} }

func (r *tagRepository) Ensure(ctx context.Context, name string) (*model.Tag, error) {
	tag := model.Tag{ID: uuid.New().String(), Name: name}
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Attrs(model.Tag{ID: tag.ID}).
		FirstOrCreate(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) Follow(ctx context.Context, tagID, accountID string) error {
	f := &model.TagFollow{ID: uuid.New().String(), TagID: tagID, AccountID: accountID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(f).Error
}

func (r *tagRepository) FollowerIDs(ctx context.Context, tagID string, offset, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.TagFollow{}).
		Select("account_id").
		Where("tag_id = ?", tagID).
		Offset(offset).Limit(limit).
		Scan(&ids).Error
	return ids, err
}
