package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/internal/pubsub"
	"github.com/oyasumi-space/antenna-fanout/pkg/logger"
)

// BroadcastDistributor 尽力而为的实时广播。发布失败只记日志不重试；
// 超过限速直接丢弃（广播本就无送达保证）。
type BroadcastDistributor struct {
	pub     pubsub.Publisher
	render  *RenderCache
	limiter *rate.Limiter
}

func NewBroadcastDistributor(pub pubsub.Publisher, render *RenderCache, limiter *rate.Limiter) *BroadcastDistributor {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &BroadcastDistributor{pub: pub, render: render, limiter: limiter}
}

// BroadcastPublic 公开类贴文广播。转发与被禁言作者不广播；
// 回复他人只进话题频道，不进公共频道。
func (b *BroadcastDistributor) BroadcastPublic(ctx context.Context, status *model.Status) {
	if !status.Visibility.PublicLike() || status.IsReblog() {
		return
	}
	if status.Account != nil && status.Account.Silenced {
		return
	}
	payload := b.render.Payload(ctx, status)

	b.publishHashtags(ctx, status, payload)

	if status.IsReplyToOther() {
		return
	}
	channels := []string{pubsub.ChannelPublic}
	if status.Local() {
		channels = append(channels, pubsub.ChannelPublicLocal)
	} else {
		channels = append(channels, pubsub.ChannelPublicRemote)
	}
	if status.HasMedia {
		for _, ch := range channels[:2] {
			channels = append(channels, pubsub.MediaVariant(ch))
		}
	}
	for _, ch := range channels {
		b.publish(ctx, ch, payload)
	}
}

// BroadcastUnlistedSearchable unlisted 可见但计算可检索性为公开的
// 贴文：只广播话题频道，不进公共频道
func (b *BroadcastDistributor) BroadcastUnlistedSearchable(ctx context.Context, status *model.Status) {
	if status.Visibility != model.VisibilityUnlisted || !status.Searchability.PublicSearchable() {
		return
	}
	if status.IsReblog() {
		return
	}
	if status.Account != nil && status.Account.Silenced {
		return
	}
	b.publishHashtags(ctx, status, b.render.Payload(ctx, status))
}

func (b *BroadcastDistributor) publishHashtags(ctx context.Context, status *model.Status, payload []byte) {
	for _, tag := range status.Tags {
		ch := pubsub.HashtagChannel(tag.TagName)
		b.publish(ctx, ch, payload)
		if status.Local() {
			b.publish(ctx, pubsub.LocalVariant(ch), payload)
		}
	}
}

func (b *BroadcastDistributor) publish(ctx context.Context, channel string, payload []byte) {
	if !b.limiter.Allow() {
		return
	}
	if err := b.pub.Publish(ctx, channel, payload); err != nil {
		logger.Debug("broadcast publish failed", zap.String("channel", channel), zap.Error(err))
	}
}
