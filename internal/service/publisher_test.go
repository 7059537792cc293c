package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

func TestPublishCreatesTagsInTransaction(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()
	author := f.account(t, "author", "")

	st, err := f.publisher.Publish(ctx, PublishInput{
		AccountID:  author.ID,
		Text:       "release day #go",
		Visibility: model.VisibilityPublic,
		TagNames:   []string{"go", "release"},
	})
	require.NoError(t, err)
	require.Len(t, st.Tags, 2)

	var tagCount, linkCount int64
	require.NoError(t, f.db.Model(&model.Tag{}).Count(&tagCount).Error)
	require.NoError(t, f.db.Model(&model.StatusTag{}).Where("status_id = ?", st.ID).Count(&linkCount).Error)
	assert.Equal(t, int64(2), tagCount)
	assert.Equal(t, int64(2), linkCount)

	// 同名标签复用已有行
	again, err := f.publisher.Publish(ctx, PublishInput{
		AccountID:  author.ID,
		Text:       "more #go",
		Visibility: model.VisibilityPublic,
		TagNames:   []string{"go"},
	})
	require.NoError(t, err)
	assert.Equal(t, st.Tags[0].TagID, again.Tags[0].TagID)
	require.NoError(t, f.db.Model(&model.Tag{}).Count(&tagCount).Error)
	assert.Equal(t, int64(2), tagCount)
}

// 事务中途失败时标签不能作为孤儿留下
func TestPublishRollbackLeavesNoOrphanTag(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()
	author := f.account(t, "author", "")
	friend := f.account(t, "friend", "")

	// 重复提及撞 mentions 唯一索引，整个事务回滚
	_, err := f.publisher.Publish(ctx, PublishInput{
		AccountID:         author.ID,
		Text:              "broken",
		Visibility:        model.VisibilityPublic,
		TagNames:          []string{"orphan"},
		MentionAccountIDs: []string{friend.ID, friend.ID},
	})
	require.Error(t, err)

	var tagCount, statusCount int64
	require.NoError(t, f.db.Model(&model.Tag{}).Where("name = ?", "orphan").Count(&tagCount).Error)
	require.NoError(t, f.db.Model(&model.Status{}).Count(&statusCount).Error)
	assert.Zero(t, tagCount)
	assert.Zero(t, statusCount)
}
