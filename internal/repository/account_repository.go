package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	Get(ctx context.Context, id string) (*model.Account, error)
	// GetByAcct 按 username@domain 查找（本地账号 domain 为空）
	GetByAcct(ctx context.Context, username, domain string) (*model.Account, error)
	GetMulti(ctx context.Context, ids []string) ([]*model.Account, error)
	// LocalIDs 过滤出给定 id 中的本地账号
	LocalIDs(ctx context.Context, ids []string) ([]string, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

type accountRepository struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository { return &accountRepository{db: db} }

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(account).Error
}

func (r *accountRepository) Get(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepository) GetByAcct(ctx context.Context, username, domain string) (*model.Account, error) {
	var a model.Account
	if err := r.db.WithContext(ctx).
		Where("username = ? AND domain = ?", username, domain).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepository) GetMulti(ctx context.Context, ids []string) ([]*model.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var res []*model.Account
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&res).Error
	return res, err
}

func (r *accountRepository) LocalIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []string
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Select("id").
		Where("id IN ? AND domain = ''", ids).
		Scan(&out).Error
	return out, err
}

func (r *accountRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Update("last_active_at", at).Error
}
