package pubsub

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publisher 尽力而为的实时广播：无重试、无持久化，
// 发布时不在线的订阅者永久错过该事件。
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type redisPublisher struct{ client *redis.Client }

func NewRedisPublisher(client *redis.Client) Publisher { return &redisPublisher{client: client} }

func (p *redisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// 频道命名（与消费端约定）
const (
	ChannelPublic       = "timeline:public"
	ChannelPublicLocal  = "timeline:public:local"
	ChannelPublicRemote = "timeline:public:remote"
)

func MediaVariant(channel string) string { return channel + ":media" }

func HashtagChannel(name string) string { return "timeline:hashtag:" + name }

func LocalVariant(channel string) string { return channel + ":local" }
