package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

var (
	// ErrStatusNotFound 贴文不存在
	ErrStatusNotFound = errors.New("status not found")
	// ErrStatusNotReady 贴文已落库但可见性尚未解析完成（调用方应重试）
	ErrStatusNotReady = errors.New("status not ready")
)

type StatusRepository interface {
	// Get 返回含作者/标签/提及的完整贴文；"不存在"与"尚未就绪"区分返回
	Get(ctx context.Context, id string) (*model.Status, error)
	// LocalRebloggerIDs 本地转发者账号 id
	LocalRebloggerIDs(ctx context.Context, statusID string) ([]string, error)
	// LocalQuoterIDs 本地引用者账号 id
	LocalQuoterIDs(ctx context.Context, statusID string) ([]string, error)
}

type statusRepository struct{ db *gorm.DB }

func NewStatusRepository(db *gorm.DB) StatusRepository { return &statusRepository{db: db} }

func (r *statusRepository) Get(ctx context.Context, id string) (*model.Status, error) {
	var s model.Status
	err := r.db.WithContext(ctx).
		Preload("Account").
		Preload("Tags").
		Preload("Mentions").
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStatusNotFound
		}
		return nil, err
	}
	if !s.Visibility.Known() {
		return nil, ErrStatusNotReady
	}
	return &s, nil
}

func (r *statusRepository) LocalRebloggerIDs(ctx context.Context, statusID string) ([]string, error) {
	return r.authorIDsBy(ctx, "reblog_of_id", statusID)
}

func (r *statusRepository) LocalQuoterIDs(ctx context.Context, statusID string) ([]string, error) {
	return r.authorIDsBy(ctx, "quote_of_id", statusID)
}

func (r *statusRepository) authorIDsBy(ctx context.Context, column, statusID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Table("statuses").
		Distinct("statuses.account_id").
		Joins("JOIN accounts ON accounts.id = statuses.account_id").
		Where("statuses."+column+" = ? AND accounts.domain = ''", statusID).
		Scan(&ids).Error
	return ids, err
}
