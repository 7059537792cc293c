package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

func setupJobQueue(t *testing.T) JobQueue {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.DeliveryJob{}))
	return NewJobQueue(db)
}

func TestJobQueueLifecycle(t *testing.T) {
	q := setupJobQueue(t)
	ctx := context.Background()

	jobs := []model.DeliveryJob{
		{ID: "j1", StatusID: "s1", TargetID: "a1", Kind: model.JobKindHome},
		{ID: "j2", StatusID: "s1", TargetID: "a2", Kind: model.JobKindHome},
		{ID: "j3", StatusID: "s1", TargetID: "l1", Kind: model.JobKindList},
	}
	require.NoError(t, q.EnqueueBulk(ctx, jobs, 2))

	pending, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)

	// claim 置 processing：第二次 claim 拿不到同一批
	batch, err := q.ClaimPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	again, err := q.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)

	pending, err = q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	require.NoError(t, q.MarkDone(ctx, []string{batch[0].ID, batch[1].ID, again[0].ID}))
	empty, err := q.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRequeueStaleReclaimsAbandonedBatch(t *testing.T) {
	q := setupJobQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueBulk(ctx, []model.DeliveryJob{
		{ID: "j1", StatusID: "s1", TargetID: "a1", Kind: model.JobKindHome},
	}, 100))

	// worker 认领后崩溃：不回收的话这行永远停在 processing
	claimed, err := q.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	empty, err := q.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, empty)

	// 租约未到期不回收
	n, err := q.RequeueStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = q.RequeueStale(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	reclaimed, err := q.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, "j1", reclaimed[0].ID)
}

func TestEnqueueBulkDefaults(t *testing.T) {
	q := setupJobQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueBulk(ctx, []model.DeliveryJob{
		{ID: "j1", StatusID: "s1", TargetID: "a1", Kind: model.JobKindHome},
	}, 0))

	batch, err := q.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, model.JobStatusPending, batch[0].State)
	assert.False(t, batch[0].CreatedAt.IsZero())
}
