package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

// JobQueue 持久化投递队列：批量入队（at-least-once），worker claim 后执行。
type JobQueue interface {
	EnqueueBulk(ctx context.Context, jobs []model.DeliveryJob, maxBatchSize int) error
	// ClaimPending 认领一批 pending 任务并置为 processing（记录认领时刻）
	ClaimPending(ctx context.Context, limit int) ([]model.DeliveryJob, error)
	// RequeueStale 把认领后超过租约仍未完成的任务翻回 pending，
	// 兜底 worker 崩溃或批处理中途出错时滞留的 processing 行
	RequeueStale(ctx context.Context, lease time.Duration) (int64, error)
	MarkDone(ctx context.Context, ids []string) error
	PendingCount(ctx context.Context) (int64, error)
}

type jobQueue struct{ db *gorm.DB }

func NewJobQueue(db *gorm.DB) JobQueue { return &jobQueue{db: db} }

func (q *jobQueue) EnqueueBulk(ctx context.Context, jobs []model.DeliveryJob, maxBatchSize int) error {
	if len(jobs) == 0 {
		return nil
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 500
	}
	now := time.Now()
	for i := range jobs {
		if jobs[i].State == "" {
			jobs[i].State = model.JobStatusPending
		}
		if jobs[i].CreatedAt.IsZero() {
			jobs[i].CreatedAt = now
		}
	}
	return q.db.WithContext(ctx).CreateInBatches(&jobs, maxBatchSize).Error
}

func (q *jobQueue) ClaimPending(ctx context.Context, limit int) ([]model.DeliveryJob, error) {
	var batch []model.DeliveryJob
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// postgres 下用 SKIP LOCKED 避免多 worker 互踩；sqlite 无此能力，
		// 退化为普通查询（仅单进程测试/bench 场景）
		sel := tx.Model(&model.DeliveryJob{}).
			Where("state = ?", model.JobStatusPending).
			Order("created_at").
			Limit(limit)
		if tx.Dialector.Name() == "postgres" {
			sel = sel.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := sel.Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, len(batch))
		for i, b := range batch {
			ids[i] = b.ID
		}
		return tx.Model(&model.DeliveryJob{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"state": model.JobStatusProcessing, "claimed_at": time.Now()}).Error
	})
	return batch, err
}

func (q *jobQueue) RequeueStale(ctx context.Context, lease time.Duration) (int64, error) {
	res := q.db.WithContext(ctx).Model(&model.DeliveryJob{}).
		Where("state = ? AND claimed_at < ?", model.JobStatusProcessing, time.Now().Add(-lease)).
		Updates(map[string]any{"state": model.JobStatusPending, "claimed_at": nil})
	return res.RowsAffected, res.Error
}

func (q *jobQueue) MarkDone(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	return q.db.WithContext(ctx).Model(&model.DeliveryJob{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"state": model.JobStatusDone, "processed_at": now}).Error
}

func (q *jobQueue) PendingCount(ctx context.Context) (int64, error) {
	var cnt int64
	err := q.db.WithContext(ctx).Model(&model.DeliveryJob{}).
		Where("state = ?", model.JobStatusPending).
		Count(&cnt).Error
	return cnt, err
}
