package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

func TestWorkerMissingStatusIsSilentNoop(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	f.account(t, "reader", "")
	require.NoError(t, f.queue.EnqueueBulk(ctx, []model.DeliveryJob{
		{ID: "j1", StatusID: "gone", TargetID: "reader", Kind: model.JobKindHome},
	}, 100))

	// 贴文已删：任务吞掉，不报错不重试
	require.NoError(t, f.worker.ProcessOnce(ctx))
	pending, err := f.queue.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	var cnt int64
	require.NoError(t, f.db.Model(&model.FeedEntry{}).Count(&cnt).Error)
	assert.Zero(t, cnt)
}

func TestWorkerGoneTargetFiltered(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	status, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "hello", Visibility: model.VisibilityPublic,
	})
	require.NoError(t, err)

	// 匹配到执行之间天线被删除：该条投递静默丢弃，同批其余照常
	require.NoError(t, f.queue.EnqueueBulk(ctx, []model.DeliveryJob{
		{ID: "j1", StatusID: status.ID, TargetID: "deleted-antenna", Kind: model.JobKindAntenna, AntennaID: "deleted-antenna"},
		{ID: "j2", StatusID: status.ID, TargetID: author.ID, Kind: model.JobKindHome},
	}, 100))
	require.NoError(t, f.worker.ProcessOnce(ctx))

	assert.False(t, f.inFeed(t, model.FeedKindAntenna, "deleted-antenna", status.ID))
	assert.True(t, f.inFeed(t, model.FeedKindHome, author.ID, status.ID))

	pending, err := f.queue.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestWorkerRedeliveryIsIdempotent(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	status, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "hello", Visibility: model.VisibilityPublic,
	})
	require.NoError(t, err)

	// 同一目标两条重复任务（at-least-once 重投）：落库一条
	require.NoError(t, f.queue.EnqueueBulk(ctx, []model.DeliveryJob{
		{ID: "j1", StatusID: status.ID, TargetID: author.ID, Kind: model.JobKindHome},
		{ID: "j2", StatusID: status.ID, TargetID: author.ID, Kind: model.JobKindHome},
	}, 100))
	require.NoError(t, f.worker.ProcessOnce(ctx))

	cnt, err := f.feeds.CountFor(ctx, model.FeedKindHome, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)
}

func TestWorkerRecoversAbandonedBatch(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	status, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "hello", Visibility: model.VisibilityPublic,
	})
	require.NoError(t, err)
	require.NoError(t, f.queue.EnqueueBulk(ctx, []model.DeliveryJob{
		{ID: "j1", StatusID: status.ID, TargetID: author.ID, Kind: model.JobKindHome},
	}, 100))

	// 另一个 worker 认领后死掉，任务滞留在 processing
	claimed, err := f.queue.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// 租约到期后下一轮照常投递
	f.worker.lease = 0
	require.NoError(t, f.worker.ProcessOnce(ctx))
	assert.True(t, f.inFeed(t, model.FeedKindHome, author.ID, status.ID))
	pending, err := f.queue.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestWorkerScoreFollowsCreationTime(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	created := time.Now().Add(-time.Hour)
	status := &model.Status{
		ID: "s1", AccountID: author.ID, Text: "old",
		Visibility: model.VisibilityPublic, Searchability: model.SearchabilityPublic,
		CreatedAt: created, UpdatedAt: created,
	}
	require.NoError(t, f.db.Create(status).Error)

	require.NoError(t, f.queue.EnqueueBulk(ctx, []model.DeliveryJob{
		{ID: "j1", StatusID: status.ID, TargetID: author.ID, Kind: model.JobKindHome},
	}, 100))
	require.NoError(t, f.worker.ProcessOnce(ctx))

	page, err := f.feeds.Page(ctx, model.FeedKindHome, author.ID, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, created.UnixNano(), page[0].Score)
}
