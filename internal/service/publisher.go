package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/internal/repository"
)

// PublishInput 发贴入参
type PublishInput struct {
	AccountID          string
	Text               string
	Visibility         model.Visibility
	Searchability      model.Searchability
	TagNames           []string
	MentionAccountIDs  []string
	HasMedia           bool
	InReplyToID        string
	InReplyToAccountID string
	ReblogOfID         string
	QuoteOfID          string
}

// Publisher 负责事务内落地贴文及其标签/提及。可见性在入库前
// 按作者状态解析为最终值（禁言降级发生在编排器上游）。
type Publisher struct {
	db   *gorm.DB
	tags repository.TagRepository
}

func NewPublisher(db *gorm.DB, tags repository.TagRepository) *Publisher {
	return &Publisher{db: db, tags: tags}
}

// Publish 在一个事务内写 status + 关联行，返回可直接扇出的完整贴文
func (p *Publisher) Publish(ctx context.Context, in PublishInput) (*model.Status, error) {
	var author model.Account
	if err := p.db.WithContext(ctx).Where("id = ?", in.AccountID).First(&author).Error; err != nil {
		return nil, err
	}

	visibility := ResolveVisibility(in.Visibility, &author)
	searchability := ResolveSearchability(in.Searchability, visibility, &author)

	now := time.Now()
	status := &model.Status{
		ID:                 uuid.New().String(),
		AccountID:          author.ID,
		Text:               in.Text,
		Visibility:         visibility,
		Searchability:      searchability,
		ReblogOfID:         in.ReblogOfID,
		QuoteOfID:          in.QuoteOfID,
		InReplyToID:        in.InReplyToID,
		InReplyToAccountID: in.InReplyToAccountID,
		HasMedia:           in.HasMedia,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(status).Error; err != nil {
			return err
		}
		// 标签取建必须走 tx，否则回滚后留下孤儿标签
		txTags := p.tags.WithTx(tx)
		for _, name := range in.TagNames {
			tag, err := txTags.Ensure(ctx, name)
			if err != nil {
				return err
			}
			st := model.StatusTag{ID: uuid.New().String(), StatusID: status.ID, TagID: tag.ID, TagName: tag.Name}
			if err := tx.Create(&st).Error; err != nil {
				return err
			}
			status.Tags = append(status.Tags, st)
		}
		for _, accountID := range in.MentionAccountIDs {
			m := model.Mention{ID: uuid.New().String(), StatusID: status.ID, AccountID: accountID}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
			status.Mentions = append(status.Mentions, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	status.Account = &author
	return status, nil
}

// Edit 刷新贴文快照（身份不变），返回重投用的完整贴文
func (p *Publisher) Edit(ctx context.Context, statusID, text string, hasMedia bool) (*model.Status, error) {
	err := p.db.WithContext(ctx).Model(&model.Status{}).
		Where("id = ?", statusID).
		Updates(map[string]any{"text": text, "has_media": hasMedia, "updated_at": time.Now()}).Error
	if err != nil {
		return nil, err
	}
	return repository.NewStatusRepository(p.db).Get(ctx, statusID)
}
