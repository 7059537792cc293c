package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout 等待超时未取得锁（瞬态，job 侧带退避重试）
var ErrLockTimeout = errors.New("lock: wait timeout")

// 仅持有者可释放：value 比对后删除
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0
`)

// Locker redis 分布式互斥锁（SET NX PX + Lua 释放）。
// 用于串行化同一远端对象的并发创建投递、投票/表情计数等写操作。
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

func New(client *redis.Client, ttl, wait, retry time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	if retry <= 0 {
		retry = 100 * time.Millisecond
	}
	return &Locker{client: client, ttl: ttl, wait: wait, retry: retry}
}

// Handle 锁持有凭证
type Handle struct {
	key   string
	token string
}

// Acquire 带界限等待地获取命名锁
func (l *Locker) Acquire(ctx context.Context, key string) (*Handle, error) {
	token := uuid.New().String()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, "lock:"+key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Handle{key: "lock:" + key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *Locker) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{h.key}, h.token).Err()
}

// WithLock 在锁内执行 fn
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	h, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = l.Release(ctx, h) }()
	return fn(ctx)
}
