package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

type ListRepository interface {
	Create(ctx context.Context, list *model.List) error
	Get(ctx context.Context, id string) (*model.List, error)
	AddMember(ctx context.Context, listID, accountID string) error
	// ListsContaining 包含指定账号为成员的列表（分页，不排序）
	ListsContaining(ctx context.Context, accountID string, offset, limit int) ([]*model.List, error)
	// ListsContainingOwnedBy 包含指定账号、且 owner 在给定集合内的列表（limited 投递用）
	ListsContainingOwnedBy(ctx context.Context, accountID string, ownerIDs []string) ([]*model.List, error)
}

type listRepository struct{ db *gorm.DB }

func NewListRepository(db *gorm.DB) ListRepository { return &listRepository{db: db} }

func (r *listRepository) Create(ctx context.Context, list *model.List) error {
	if list.ID == "" {
		list.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(list).Error
}

func (r *listRepository) Get(ctx context.Context, id string) (*model.List, error) {
	var l model.List
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *listRepository) AddMember(ctx context.Context, listID, accountID string) error {
	m := &model.ListMember{ID: uuid.New().String(), ListID: listID, AccountID: accountID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m).Error
}

func (r *listRepository) ListsContaining(ctx context.Context, accountID string, offset, limit int) ([]*model.List, error) {
	var res []*model.List
	err := r.db.WithContext(ctx).
		Joins("JOIN list_members ON list_members.list_id = lists.id").
		Where("list_members.account_id = ?", accountID).
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *listRepository) ListsContainingOwnedBy(ctx context.Context, accountID string, ownerIDs []string) ([]*model.List, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	var res []*model.List
	err := r.db.WithContext(ctx).
		Joins("JOIN list_members ON list_members.list_id = lists.id").
		Where("list_members.account_id = ? AND lists.account_id IN ?", accountID, ownerIDs).
		Find(&res).Error
	return res, err
}
