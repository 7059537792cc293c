package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

// RenderedStatus 贴文的公开序列化形态。扇出前渲染一次并缓存，
// 所有广播/通知消费方复用同一份载荷，不再按收件人重复渲染。
type RenderedStatus struct {
	ID            string   `json:"id"`
	AccountID     string   `json:"account_id"`
	Username      string   `json:"username"`
	Domain        string   `json:"domain,omitempty"`
	Text          string   `json:"text"`
	Visibility    string   `json:"visibility"`
	Searchability string   `json:"searchability"`
	Tags          []string `json:"tags,omitempty"`
	HasMedia      bool     `json:"has_media,omitempty"`
	Reblog        bool     `json:"reblog,omitempty"`
	CreatedAt     int64    `json:"created_at"`
	UpdatedAt     int64    `json:"updated_at"`
}

// RenderCache redis 渲染缓存
type RenderCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRenderCache(client *redis.Client, ttl time.Duration) *RenderCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RenderCache{client: client, ttl: ttl}
}

func renderKey(statusID string) string { return "status:rendered:" + statusID }

func render(status *model.Status) *RenderedStatus {
	r := &RenderedStatus{
		ID:            status.ID,
		AccountID:     status.AccountID,
		Text:          status.Text,
		Visibility:    string(status.Visibility),
		Searchability: string(status.Searchability),
		HasMedia:      status.HasMedia,
		Reblog:        status.IsReblog(),
		CreatedAt:     status.CreatedAt.Unix(),
		UpdatedAt:     status.UpdatedAt.Unix(),
	}
	if status.Account != nil {
		r.Username = status.Account.Username
		r.Domain = status.Account.Domain
	}
	for _, t := range status.Tags {
		r.Tags = append(r.Tags, t.TagName)
	}
	return r
}

// Warm 渲染并写缓存，返回序列化载荷
func (c *RenderCache) Warm(ctx context.Context, status *model.Status) ([]byte, error) {
	payload, err := json.Marshal(render(status))
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, renderKey(status.ID), payload, c.ttl).Err(); err != nil {
		return nil, err
	}
	return payload, nil
}

// Payload 取缓存载荷；miss 时现场渲染（不回写，Warm 负责回写）
func (c *RenderCache) Payload(ctx context.Context, status *model.Status) []byte {
	if b, err := c.client.Get(ctx, renderKey(status.ID)).Bytes(); err == nil && len(b) > 0 {
		return b
	}
	b, _ := json.Marshal(render(status))
	return b
}

// Get 按 id 读缓存
func (c *RenderCache) Get(ctx context.Context, statusID string) ([]byte, bool) {
	b, err := c.client.Get(ctx, renderKey(statusID)).Bytes()
	return b, err == nil && len(b) > 0
}
