package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/internal/repository"
)

// fixture 把全套仓储和服务装配到内存 sqlite + miniredis 上，
// worker 不启动轮询，由测试手动 drain 保证确定性
type fixture struct {
	db        *gorm.DB
	queue     repository.JobQueue
	feeds     repository.FeedRepository
	fans      repository.FanRepository
	follows   repository.FollowRepository
	lists     repository.ListRepository
	tags      repository.TagRepository
	antennas  repository.AntennaRepository
	statuses  repository.StatusRepository
	accounts  repository.AccountRepository
	publisher *Publisher
	fanout    *FanOutService
	worker    *DeliveryWorker
	pub       *capturePub
}

func setupFixture(t *testing.T, policy MatchPolicy) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Account{}, &model.Follow{}, &model.Fan{},
		&model.Status{}, &model.StatusTag{}, &model.Mention{}, &model.ConversationMember{},
		&model.List{}, &model.ListMember{}, &model.Tag{}, &model.TagFollow{},
		&model.Antenna{}, &model.FeedEntry{}, &model.DeliveryJob{}, &model.Notification{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		db:       db,
		queue:    repository.NewJobQueue(db),
		feeds:    repository.NewSingleFeedRepository(db),
		fans:     repository.NewFanRepository(db),
		follows:  repository.NewFollowRepository(db),
		lists:    repository.NewListRepository(db),
		tags:     repository.NewTagRepository(db),
		antennas: repository.NewAntennaRepository(db),
		statuses: repository.NewStatusRepository(db),
		accounts: repository.NewAccountRepository(db),
		pub:      &capturePub{},
	}

	matcher := NewAntennaMatcher(NewFollowSnapshot(f.follows), policy)
	local := NewLocalDistributor(f.statuses, f.accounts, f.fans, f.lists, f.tags, f.antennas,
		matcher, f.queue, policy, 100, 0)
	render := NewRenderCache(rdb, time.Minute)
	broadcast := NewBroadcastDistributor(f.pub, render, nil)
	f.fanout = NewFanOutService(local, broadcast, render)
	f.publisher = NewPublisher(db, f.tags)
	f.worker = NewDeliveryWorker(db, f.queue, f.statuses, f.feeds, 1, 100, time.Millisecond)
	return f
}

func (f *fixture) account(t *testing.T, id, domain string) *model.Account {
	t.Helper()
	a := &model.Account{ID: id, Username: id, Domain: domain, Subscribable: true, LastActiveAt: time.Now()}
	require.NoError(t, f.accounts.Create(context.Background(), a))
	return a
}

func (f *fixture) follow(t *testing.T, followerID, followeeID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.follows.Create(ctx, followerID, followeeID))
	require.NoError(t, f.fans.Create(ctx, followeeID, followerID))
}

// drain 处理到队列排空
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		require.NoError(t, f.worker.ProcessOnce(ctx))
		pending, err := f.queue.PendingCount(ctx)
		require.NoError(t, err)
		if pending == 0 {
			return
		}
	}
	t.Fatal("queue did not drain")
}

func (f *fixture) inFeed(t *testing.T, feedKind, ownerID, statusID string) bool {
	t.Helper()
	ok, err := f.feeds.Contains(context.Background(), feedKind, ownerID, statusID)
	require.NoError(t, err)
	return ok
}

func TestFanOutPublicStatus(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	fan1 := f.account(t, "fan1", "")
	fan2 := f.account(t, "fan2", "")
	remoteFan := f.account(t, "rfan", "remote.example")
	stranger := f.account(t, "stranger", "")
	f.follow(t, fan1.ID, author.ID)
	f.follow(t, fan2.ID, author.ID)
	f.follow(t, remoteFan.ID, author.ID)

	// 含作者的列表
	list := &model.List{ID: "l1", AccountID: fan1.ID, Title: "friends"}
	require.NoError(t, f.lists.Create(ctx, list))
	require.NoError(t, f.lists.AddMember(ctx, list.ID, author.ID))

	// 关键字天线（home 投递）与专属天线
	require.NoError(t, f.antennas.Create(ctx, &model.Antenna{
		ID: "ant-home", AccountID: stranger.ID, Title: "k",
		InsertFeeds: true, AnyAccounts: true, AnyDomains: true, AnyTags: true,
		Keywords: []string{"release"}, Available: true,
	}))
	require.NoError(t, f.antennas.Create(ctx, &model.Antenna{
		ID: "ant-own", AccountID: stranger.ID, Title: "d",
		AnyAccounts: true, AnyDomains: true, AnyTags: true,
		Keywords: []string{"release"}, Available: true,
	}))

	// 标签关注者
	tag, err := f.tags.Ensure(ctx, "go")
	require.NoError(t, err)
	require.NoError(t, f.tags.Follow(ctx, tag.ID, fan2.ID))

	status, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "new release is out", Visibility: model.VisibilityPublic,
		TagNames: []string{"go"},
	})
	require.NoError(t, err)
	require.NoError(t, f.fanout.FanOut(ctx, status, FanOutOptions{}))
	f.drain(t)

	// 作者与本地粉丝 home；远端粉丝不投
	assert.True(t, f.inFeed(t, model.FeedKindHome, author.ID, status.ID))
	assert.True(t, f.inFeed(t, model.FeedKindHome, fan1.ID, status.ID))
	assert.True(t, f.inFeed(t, model.FeedKindHome, fan2.ID, status.ID))
	assert.False(t, f.inFeed(t, model.FeedKindHome, remoteFan.ID, status.ID))

	// 列表、天线 home、专属天线、标签订阅
	assert.True(t, f.inFeed(t, model.FeedKindList, list.ID, status.ID))
	assert.True(t, f.inFeed(t, model.FeedKindHome, stranger.ID, status.ID))
	assert.True(t, f.inFeed(t, model.FeedKindAntenna, "ant-own", status.ID))
	assert.True(t, f.inFeed(t, model.FeedKindTag, fan2.ID, status.ID))

	// 公共广播发生
	assert.Contains(t, f.pub.published(), "timeline:public")
	assert.Contains(t, f.pub.published(), "timeline:hashtag:go")
}

func TestFanOutIdempotentReplay(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	fan := f.account(t, "fan", "")
	f.follow(t, fan.ID, author.ID)

	status, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "hello", Visibility: model.VisibilityPublic,
	})
	require.NoError(t, err)

	// 同一贴文重复扇出 + 重复消费：每个 feed 至多一条
	require.NoError(t, f.fanout.FanOut(ctx, status, FanOutOptions{}))
	require.NoError(t, f.fanout.FanOut(ctx, status, FanOutOptions{}))
	f.drain(t)

	cnt, err := f.feeds.CountFor(ctx, model.FeedKindHome, fan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)
	cnt, err = f.feeds.CountFor(ctx, model.FeedKindHome, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)
}

func TestFanOutUnknownVisibility(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	status := &model.Status{ID: "s1", AccountID: "author"}
	err := f.fanout.FanOut(context.Background(), status, FanOutOptions{})
	assert.ErrorIs(t, err, ErrRaceCondition)
}

func TestFanOutDirectStatus(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	friend := f.account(t, "friend", "")
	fan := f.account(t, "fan", "")
	f.follow(t, fan.ID, author.ID)

	status, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "secret", Visibility: model.VisibilityDirect,
		MentionAccountIDs: []string{friend.ID},
	})
	require.NoError(t, err)
	require.NoError(t, f.fanout.FanOut(ctx, status, FanOutOptions{}))
	f.drain(t)

	// 只有作者和被提及者拿到 home，粉丝拿不到
	assert.True(t, f.inFeed(t, model.FeedKindHome, author.ID, status.ID))
	assert.True(t, f.inFeed(t, model.FeedKindHome, friend.ID, status.ID))
	assert.False(t, f.inFeed(t, model.FeedKindHome, fan.ID, status.ID))

	// 提及通知 + 会话成员（作者与被提及者）
	var notifCnt int64
	require.NoError(t, f.db.Model(&model.Notification{}).
		Where("account_id = ? AND status_id = ? AND kind = ?", friend.ID, status.ID, model.NotificationKindMention).
		Count(&notifCnt).Error)
	assert.Equal(t, int64(1), notifCnt)

	var members []model.ConversationMember
	require.NoError(t, f.db.Where("status_id = ?", status.ID).Find(&members).Error)
	got := make([]string, len(members))
	for i, m := range members {
		got[i] = m.AccountID
	}
	assert.ElementsMatch(t, []string{author.ID, friend.ID}, got)

	// direct 不广播
	assert.Empty(t, f.pub.published())
}

func TestFanOutLimitedStatus(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	mentioned := f.account(t, "mentioned", "")
	fan := f.account(t, "fan", "")
	f.follow(t, fan.ID, author.ID)
	f.follow(t, mentioned.ID, author.ID)

	// 被提及者拥有的、含作者的列表
	list := &model.List{ID: "l1", AccountID: mentioned.ID, Title: "circle"}
	require.NoError(t, f.lists.Create(ctx, list))
	require.NoError(t, f.lists.AddMember(ctx, list.ID, author.ID))

	// 粉丝拥有的列表不应收到 limited 贴文
	fanList := &model.List{ID: "l2", AccountID: fan.ID, Title: "other"}
	require.NoError(t, f.lists.Create(ctx, fanList))
	require.NoError(t, f.lists.AddMember(ctx, fanList.ID, author.ID))

	// 被提及者与旁观者各有一条通配天线，受众限制只放行前者
	require.NoError(t, f.antennas.Create(ctx, &model.Antenna{
		ID: "ant-m", AccountID: mentioned.ID,
		AnyAccounts: true, AnyDomains: true, AnyTags: true, Available: true,
	}))
	require.NoError(t, f.antennas.Create(ctx, &model.Antenna{
		ID: "ant-f", AccountID: fan.ID,
		AnyAccounts: true, AnyDomains: true, AnyTags: true, Available: true,
	}))

	status, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "circle only", Visibility: model.VisibilityLimited,
		MentionAccountIDs: []string{mentioned.ID},
	})
	require.NoError(t, err)
	require.NoError(t, f.fanout.FanOut(ctx, status, FanOutOptions{}))
	f.drain(t)

	assert.True(t, f.inFeed(t, model.FeedKindHome, mentioned.ID, status.ID))
	assert.False(t, f.inFeed(t, model.FeedKindHome, fan.ID, status.ID))
	assert.True(t, f.inFeed(t, model.FeedKindList, list.ID, status.ID))
	assert.False(t, f.inFeed(t, model.FeedKindList, fanList.ID, status.ID))
	assert.True(t, f.inFeed(t, model.FeedKindAntenna, "ant-m", status.ID))
	assert.False(t, f.inFeed(t, model.FeedKindAntenna, "ant-f", status.ID))

	// limited 不广播
	assert.Empty(t, f.pub.published())
}

func TestFanOutPrivateAudience(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	fan := f.account(t, "fan", "")
	stranger := f.account(t, "stranger", "")
	f.follow(t, fan.ID, author.ID)

	// private 受众：天线 owner 必须是作者粉丝
	require.NoError(t, f.antennas.Create(ctx, &model.Antenna{
		ID: "ant-fan", AccountID: fan.ID,
		AnyAccounts: true, AnyDomains: true, AnyTags: true, Available: true,
	}))
	require.NoError(t, f.antennas.Create(ctx, &model.Antenna{
		ID: "ant-str", AccountID: stranger.ID,
		AnyAccounts: true, AnyDomains: true, AnyTags: true, Available: true,
	}))

	status, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "followers only", Visibility: model.VisibilityPrivate,
	})
	require.NoError(t, err)
	require.NoError(t, f.fanout.FanOut(ctx, status, FanOutOptions{}))
	f.drain(t)

	assert.True(t, f.inFeed(t, model.FeedKindHome, fan.ID, status.ID))
	assert.True(t, f.inFeed(t, model.FeedKindAntenna, "ant-fan", status.ID))
	assert.False(t, f.inFeed(t, model.FeedKindAntenna, "ant-str", status.ID))
	assert.Empty(t, f.pub.published())
}

func TestFanOutSilencedAuthorDowngrade(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	require.NoError(t, f.db.Model(&model.Account{}).Where("id = ?", author.ID).
		Update("silenced", true).Error)
	fan := f.account(t, "fan", "")
	f.follow(t, fan.ID, author.ID)

	status, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "hello", Visibility: model.VisibilityPublic,
	})
	require.NoError(t, err)

	// public 请求落地为 unlisted：粉丝照常投递，公共广播与话题投递跳过
	assert.Equal(t, model.VisibilityUnlisted, status.Visibility)
	require.NoError(t, f.fanout.FanOut(ctx, status, FanOutOptions{}))
	f.drain(t)

	assert.True(t, f.inFeed(t, model.FeedKindHome, fan.ID, status.ID))
	assert.Empty(t, f.pub.published())
}

func TestFanOutSubscribableOptOut(t *testing.T) {
	policy := MatchPolicy{DiscoveryTag: "discover"}
	f := setupFixture(t, policy)
	ctx := context.Background()

	author := f.account(t, "author", "")
	require.NoError(t, f.db.Model(&model.Account{}).Where("id = ?", author.ID).
		Update("subscribable", false).Error)
	watcher := f.account(t, "watcher", "")
	require.NoError(t, f.antennas.Create(ctx, &model.Antenna{
		ID: "ant-1", AccountID: watcher.ID,
		AnyAccounts: true, AnyDomains: true, AnyTags: true, Available: true,
	}))

	// 退订作者的普通贴文不参与天线匹配
	plain, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "hello", Visibility: model.VisibilityPublic,
	})
	require.NoError(t, err)
	require.NoError(t, f.fanout.FanOut(ctx, plain, FanOutOptions{}))
	f.drain(t)
	assert.False(t, f.inFeed(t, model.FeedKindAntenna, "ant-1", plain.ID))

	// 带发现标签的贴文例外
	tagged, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "hello", Visibility: model.VisibilityPublic,
		TagNames: []string{"discover"},
	})
	require.NoError(t, err)
	require.NoError(t, f.fanout.FanOut(ctx, tagged, FanOutOptions{}))
	f.drain(t)
	assert.True(t, f.inFeed(t, model.FeedKindAntenna, "ant-1", tagged.ID))
}

func TestFanOutEditRefreshesWithoutReorder(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	fan := f.account(t, "fan", "")
	f.follow(t, fan.ID, author.ID)

	older, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "first", Visibility: model.VisibilityPublic,
	})
	require.NoError(t, err)
	require.NoError(t, f.fanout.FanOut(ctx, older, FanOutOptions{}))
	newer, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "second", Visibility: model.VisibilityPublic,
	})
	require.NoError(t, err)
	require.NoError(t, f.fanout.FanOut(ctx, newer, FanOutOptions{}))
	f.drain(t)

	// 编辑旧贴后重投：不重复插入，也不把旧贴顶到新贴前面
	edited, err := f.publisher.Edit(ctx, older.ID, "first (edited)", false)
	require.NoError(t, err)
	require.NoError(t, f.fanout.FanOut(ctx, edited, FanOutOptions{Update: true}))
	f.drain(t)

	cnt, err := f.feeds.CountFor(ctx, model.FeedKindHome, fan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cnt)

	page, err := f.feeds.Page(ctx, model.FeedKindHome, fan.ID, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, newer.ID, page[0].StatusID)
	assert.Equal(t, older.ID, page[1].StatusID)
}

func TestFanOutEditNotifiesRebloggers(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	reblogger := f.account(t, "reblogger", "")
	f.follow(t, reblogger.ID, author.ID)

	status, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "hello", Visibility: model.VisibilityPublic,
	})
	require.NoError(t, err)
	require.NoError(t, f.fanout.FanOut(ctx, status, FanOutOptions{}))

	_, err = f.publisher.Publish(ctx, PublishInput{
		AccountID: reblogger.ID, Visibility: model.VisibilityPublic, ReblogOfID: status.ID,
	})
	require.NoError(t, err)
	f.drain(t)

	edited, err := f.publisher.Edit(ctx, status.ID, "hello (edited)", false)
	require.NoError(t, err)
	require.NoError(t, f.fanout.FanOut(ctx, edited, FanOutOptions{Update: true}))
	f.drain(t)

	var cnt int64
	require.NoError(t, f.db.Model(&model.Notification{}).
		Where("account_id = ? AND status_id = ? AND kind = ?", reblogger.ID, status.ID, model.NotificationKindUpdate).
		Count(&cnt).Error)
	assert.Equal(t, int64(1), cnt)
}

func TestFanOutManyFollowersPaged(t *testing.T) {
	f := setupFixture(t, MatchPolicy{})
	ctx := context.Background()

	author := f.account(t, "author", "")
	const n = 250 // batchSize=100，跨 3 页
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("fan%03d", i)
		f.account(t, id, "")
		f.follow(t, id, author.ID)
	}

	status, err := f.publisher.Publish(ctx, PublishInput{
		AccountID: author.ID, Text: "hello", Visibility: model.VisibilityPublic,
	})
	require.NoError(t, err)
	require.NoError(t, f.fanout.FanOut(ctx, status, FanOutOptions{}))
	f.drain(t)

	var cnt int64
	require.NoError(t, f.db.Model(&model.FeedEntry{}).
		Where("feed_kind = ? AND status_id = ?", model.FeedKindHome, status.ID).
		Count(&cnt).Error)
	assert.Equal(t, int64(n+1), cnt) // 粉丝 + 作者本人
}
