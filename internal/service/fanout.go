package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/pkg/logger"
)

// FanOutOptions 扇出选项
type FanOutOptions struct {
	// Update 本次是编辑重投
	Update bool
	// SilencedAccountIDs 已在别处通知过、本次不再重复通知的提及对象
	SilencedAccountIDs []string
}

// FanOutService 扇出编排器：单趟、无持久状态，创建与显著编辑各触发一次。
// 同步路径只到任务入队为止，实际落库由 DeliveryWorker 异步消费。
type FanOutService struct {
	local     *LocalDistributor
	broadcast *BroadcastDistributor
	render    *RenderCache
}

func NewFanOutService(local *LocalDistributor, broadcast *BroadcastDistributor, render *RenderCache) *FanOutService {
	return &FanOutService{local: local, broadcast: broadcast, render: render}
}

// FanOut 计算完整投递集合并分发。
// 可见性未解析完成说明调用方在对象未完全持久化前触发了扇出，
// 返回 ErrRaceCondition 交由调用方重试，绝不猜测层级。
func (s *FanOutService) FanOut(ctx context.Context, status *model.Status, opts FanOutOptions) error {
	if !status.Visibility.Known() {
		return ErrRaceCondition
	}

	// 渲染缓存预热：失败不阻断投递，广播侧会现场渲染兜底
	if _, err := s.render.Warm(ctx, status); err != nil {
		logger.Warn("render cache warm failed", zap.String("status_id", status.ID), zap.Error(err))
	}

	if err := s.local.Distribute(ctx, status, opts.Update, opts.SilencedAccountIDs); err != nil {
		return err
	}

	switch {
	case status.Visibility.PublicLike():
		if err := s.local.DeliverToHashtagFollowers(ctx, status, opts.Update); err != nil {
			return err
		}
		s.broadcast.BroadcastPublic(ctx, status)
	case status.Visibility == model.VisibilityUnlisted && status.Searchability.PublicSearchable():
		s.broadcast.BroadcastUnlistedSearchable(ctx, status)
	}
	return nil
}
