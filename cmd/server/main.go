package main

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oyasumi-space/antenna-fanout/config"
	"github.com/oyasumi-space/antenna-fanout/internal/api/handler"
	"github.com/oyasumi-space/antenna-fanout/internal/api/router"
	"github.com/oyasumi-space/antenna-fanout/internal/lock"
	"github.com/oyasumi-space/antenna-fanout/internal/pubsub"
	"github.com/oyasumi-space/antenna-fanout/internal/repository"
	"github.com/oyasumi-space/antenna-fanout/internal/service"
	"github.com/oyasumi-space/antenna-fanout/internal/timeline"
	"github.com/oyasumi-space/antenna-fanout/pkg/cache"
	"github.com/oyasumi-space/antenna-fanout/pkg/database"
	"github.com/oyasumi-space/antenna-fanout/pkg/logger"
	"github.com/oyasumi-space/antenna-fanout/pkg/telemetry"
)

// @title Antenna Fanout API
// @version 1.0
// @description 贴文扇出与天线订阅服务
// @BasePath /api/v1
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Server.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg)
		if err != nil {
			logger.Error("tracer init failed", zap.Error(err))
		} else {
			defer shutdown(ctx)
		}
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Error("database init failed", zap.Error(err))
		panic(err)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("database migrate failed", zap.Error(err))
		panic(err)
	}

	rdb, err := cache.InitRedis(cfg)
	if err != nil {
		logger.Error("redis init failed", zap.Error(err))
		panic(err)
	}

	accountRepo := repository.NewAccountRepository(db)
	followRepo := repository.NewFollowRepository(db)
	fanRepo := repository.NewFanRepository(db)
	statusRepo := repository.NewStatusRepository(db)
	listRepo := repository.NewListRepository(db)
	tagRepo := repository.NewTagRepository(db)
	antennaRepo := repository.NewAntennaRepository(db)
	feedRepo, err := database.NewFeedRepository(cfg, db)
	if err != nil {
		logger.Error("feed repository init failed", zap.Error(err))
		panic(err)
	}
	queue := repository.NewJobQueue(db)

	replicator := service.NewFanReplicator(fanRepo, 1024)
	stopReplicator := replicator.Start(2)
	defer stopReplicator(ctx)
	relService := service.NewRelationshipService(followRepo, fanRepo, replicator)

	policy := service.MatchPolicy{
		DiscoveryTag:    cfg.Antenna.DiscoveryTag,
		StrictDiscovery: cfg.Antenna.StrictDiscovery,
	}
	matcher := service.NewAntennaMatcher(service.NewFollowSnapshot(followRepo), policy)
	local := service.NewLocalDistributor(
		statusRepo, accountRepo, fanRepo, listRepo, tagRepo, antennaRepo,
		matcher, queue, policy, cfg.Fanout.BatchSize, cfg.Antenna.ActivityWindow,
	)

	render := service.NewRenderCache(rdb, cfg.Fanout.RenderTTL)
	var limiter *rate.Limiter
	if cfg.Fanout.BroadcastRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Fanout.BroadcastRate), cfg.Fanout.BroadcastBurst)
	}
	broadcast := service.NewBroadcastDistributor(pubsub.NewRedisPublisher(rdb), render, limiter)
	fanout := service.NewFanOutService(local, broadcast, render)
	publisher := service.NewPublisher(db, tagRepo)

	worker := service.NewDeliveryWorker(
		db, queue, statusRepo, feedRepo,
		cfg.Fanout.Workers, cfg.Fanout.ClaimLimit, cfg.Fanout.PollInterval,
	)
	stopWorker := worker.Start()
	defer stopWorker(ctx)

	locker := lock.New(rdb, cfg.Lock.TTL, cfg.Lock.Wait, cfg.Lock.Retry)
	tl := timeline.NewService(db, rdb, feedRepo, cfg.Fanout.RenderTTL)

	h := handler.New(relService, publisher, fanout, accountRepo, antennaRepo, statusRepo, tl, locker, cfg.JWT.Secret)
	r := router.New(cfg, h)

	logger.Info("server starting", zap.String("addr", cfg.Server.Addr))
	if err := r.Run(cfg.Server.Addr); err != nil {
		logger.Error("server exited", zap.Error(err))
	}
}
