package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/internal/repository"
	"github.com/oyasumi-space/antenna-fanout/pkg/logger"
)

// DeliveryWorker 从持久队列认领投递任务并落库。at-least-once 重投
// 依赖幂等写兜底；贴文中途被删按静默 no-op 处理，不算错误。
type DeliveryWorker struct {
	db           *gorm.DB
	queue        repository.JobQueue
	statusRepo   repository.StatusRepository
	feeds        repository.FeedRepository
	claimLimit   int
	pollInterval time.Duration
	lease        time.Duration // processing 超时翻回 pending 的租约
	workers      int
	metricsCh    chan time.Duration // enqueue->processed latency
}

func NewDeliveryWorker(db *gorm.DB, queue repository.JobQueue, statusRepo repository.StatusRepository, feeds repository.FeedRepository, workers, claimLimit int, pollInterval time.Duration) *DeliveryWorker {
	if workers <= 0 {
		workers = 4
	}
	if claimLimit <= 0 {
		claimLimit = 128
	}
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	return &DeliveryWorker{
		db: db, queue: queue, statusRepo: statusRepo, feeds: feeds,
		workers: workers, claimLimit: claimLimit, pollInterval: pollInterval,
		lease:     30 * time.Second,
		metricsCh: make(chan time.Duration, 65536),
	}
}

func (w *DeliveryWorker) Metrics() <-chan time.Duration { return w.metricsCh }

// Start 启动若干 worker 轮询消费；返回停止函数。
func (w *DeliveryWorker) Start() func(context.Context) error {
	stop := make(chan struct{})
	for i := 0; i < w.workers; i++ {
		go w.loop(stop)
	}
	return func(ctx context.Context) error { close(stop); return nil }
}

func (w *DeliveryWorker) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := w.ProcessOnce(context.Background()); err != nil {
				logger.Warn("delivery batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce 认领并处理一批任务。先回收过期租约，保证崩溃或
// 中途出错后滞留的 processing 行能被重新投递（写入侧幂等兜底重复）
func (w *DeliveryWorker) ProcessOnce(ctx context.Context) error {
	if _, err := w.queue.RequeueStale(ctx, w.lease); err != nil {
		return err
	}
	batch, err := w.queue.ClaimPending(ctx, w.claimLimit)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	statuses := make(map[string]*model.Status, 4)
	var entries []model.FeedEntry
	done := make([]string, 0, len(batch))

	for _, job := range batch {
		status, ok := statuses[job.StatusID]
		if !ok {
			status, err = w.statusRepo.Get(ctx, job.StatusID)
			if err != nil {
				if errors.Is(err, repository.ErrStatusNotFound) || errors.Is(err, repository.ErrStatusNotReady) {
					// 贴文在投递前被并发删除：静默丢弃
					done = append(done, job.ID)
					continue
				}
				return err
			}
			statuses[job.StatusID] = status
		}

		switch job.Kind {
		case model.JobKindHome, model.JobKindList, model.JobKindAntenna, model.JobKindTag:
			if job.Update {
				// 编辑重投只刷新元数据，不移动也不重排已有条目
				if err := w.feeds.Refresh(ctx, job.Kind, job.TargetID, job.StatusID); err != nil {
					return err
				}
			} else {
				entries = append(entries, model.FeedEntry{
					ID:        uuid.New().String(),
					FeedKind:  job.Kind,
					OwnerID:   job.TargetID,
					StatusID:  job.StatusID,
					AntennaID: job.AntennaID,
					Score:     status.CreatedAt.UnixNano(),
				})
			}
		case model.JobKindNotifyMention:
			if err := w.insertNotification(ctx, job, status, model.NotificationKindMention); err != nil {
				return err
			}
		case model.JobKindNotifyUpdate:
			if err := w.insertNotification(ctx, job, status, model.NotificationKindUpdate); err != nil {
				return err
			}
		case model.JobKindConversation:
			member := model.ConversationMember{ID: uuid.New().String(), StatusID: job.StatusID, AccountID: job.TargetID}
			if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
				return err
			}
		default:
			logger.Warn("unknown delivery job kind", zap.String("kind", job.Kind), zap.String("job_id", job.ID))
		}
		done = append(done, job.ID)

		if !job.CreatedAt.IsZero() {
			select {
			case w.metricsCh <- time.Since(job.CreatedAt):
			default:
			}
		}
	}

	if len(entries) > 0 {
		// 匹配与执行之间目标可能已删除：静默丢弃，不算错误不重试
		entries, err = w.filterGoneTargets(ctx, entries)
		if err != nil {
			return err
		}
	}
	if len(entries) > 0 {
		// 幂等批量写：重复 (feed_kind, owner, status) 落为 no-op
		if err := w.feeds.InsertMany(ctx, entries); err != nil {
			return err
		}
	}
	return w.queue.MarkDone(ctx, done)
}

// filterGoneTargets 按类型批量校验目标仍然存在
func (w *DeliveryWorker) filterGoneTargets(ctx context.Context, entries []model.FeedEntry) ([]model.FeedEntry, error) {
	byKind := make(map[string][]string)
	for _, e := range entries {
		byKind[e.FeedKind] = append(byKind[e.FeedKind], e.OwnerID)
	}
	alive := make(map[string]map[string]bool, len(byKind))
	for kind, ids := range byKind {
		var table string
		switch kind {
		case model.JobKindList:
			table = "lists"
		case model.JobKindAntenna:
			table = "antennas"
		default: // home/tag 的 owner 都是账号
			table = "accounts"
		}
		var found []string
		if err := w.db.WithContext(ctx).Table(table).Select("id").Where("id IN ?", ids).Scan(&found).Error; err != nil {
			return nil, err
		}
		set := make(map[string]bool, len(found))
		for _, id := range found {
			set[id] = true
		}
		alive[kind] = set
	}
	out := entries[:0]
	for _, e := range entries {
		if alive[e.FeedKind][e.OwnerID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (w *DeliveryWorker) insertNotification(ctx context.Context, job model.DeliveryJob, status *model.Status, kind string) error {
	n := model.Notification{
		ID:            uuid.New().String(),
		AccountID:     job.TargetID,
		StatusID:      job.StatusID,
		Kind:          kind,
		FromAccountID: status.AccountID,
	}
	return w.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&n).Error
}
