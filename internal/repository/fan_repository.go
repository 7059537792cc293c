package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

type FanRepository interface {
	Create(ctx context.Context, accountID, fanID string) error
	Delete(ctx context.Context, accountID, fanID string) error
	ListFans(ctx context.Context, accountID string, offset, limit int) ([]*model.Fan, error)
	// ListLocalFanIDs 分页扫描本地粉丝 id；规模大时排序无意义且昂贵，这里刻意不排序
	ListLocalFanIDs(ctx context.Context, accountID string, offset, limit int) ([]string, error)
}

type fanRepository struct{ db *gorm.DB }

func NewFanRepository(db *gorm.DB) FanRepository { return &fanRepository{db: db} }

func (r *fanRepository) Create(ctx context.Context, accountID, fanID string) error {
	f := &model.Fan{ID: uuid.New().String(), AccountID: accountID, FanID: fanID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(f).Error
}

func (r *fanRepository) Delete(ctx context.Context, accountID, fanID string) error {
	return r.db.WithContext(ctx).Where("account_id = ? AND fan_id = ?", accountID, fanID).Delete(&model.Fan{}).Error
}

func (r *fanRepository) ListFans(ctx context.Context, accountID string, offset, limit int) ([]*model.Fan, error) {
	var res []*model.Fan
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (r *fanRepository) ListLocalFanIDs(ctx context.Context, accountID string, offset, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Table("fans").
		Select("fans.fan_id").
		Joins("JOIN accounts ON accounts.id = fans.fan_id").
		Where("fans.account_id = ? AND accounts.domain = ''", accountID).
		Offset(offset).Limit(limit).
		Scan(&ids).Error
	return ids, err
}
