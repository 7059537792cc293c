package main

import (
    "context"
    "fmt"
    "math"
    "os"
    "sort"
    "strconv"
    "time"

    "github.com/google/uuid"

    "github.com/oyasumi-space/antenna-fanout/config"
    "github.com/oyasumi-space/antenna-fanout/internal/model"
    "github.com/oyasumi-space/antenna-fanout/internal/pubsub"
    "github.com/oyasumi-space/antenna-fanout/internal/repository"
    "github.com/oyasumi-space/antenna-fanout/internal/service"
    "github.com/oyasumi-space/antenna-fanout/pkg/cache"
    "github.com/oyasumi-space/antenna-fanout/pkg/database"
)

func must[T any](v T, err error) T { if err != nil { panic(err) }; return v }

func mustDo(err error) { if err != nil { panic(err) } }

func pct(vs []time.Duration, p float64) time.Duration {
    if len(vs) == 0 { return 0 }
    xs := append([]time.Duration(nil), vs...)
    sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
    k := int(math.Ceil(p*float64(len(xs)))) - 1
    if k < 0 { k = 0 }
    if k >= len(xs) { k = len(xs)-1 }
    return xs[k]
}

func main() {
    cfg := must(config.Load())
    db := must(database.InitDB(cfg))
    mustDo(database.Migrate(db))
    rdb := must(cache.InitRedis(cfg))

    // params
    N := 20000        // local fans of the author
    ANTENNAS := 200   // keyword antennas watching the author's domain
    POSTS := 100      // statuses to publish
    WORKERS := 8
    BATCH := 1000
    CLAIM := 128
    if s := os.Getenv("N"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { N = v } }
    if s := os.Getenv("ANTENNAS"); s != "" { if v, e := strconv.Atoi(s); e == nil && v >= 0 { ANTENNAS = v } }
    if s := os.Getenv("POSTS"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { POSTS = v } }
    if s := os.Getenv("WORKERS"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { WORKERS = v } }
    if s := os.Getenv("BATCH"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { BATCH = v } }
    if s := os.Getenv("CLAIM"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { CLAIM = v } }

    // clean tables for a reproducible run (ok for local bench)
    _ = db.Exec("TRUNCATE TABLE feed_entries, delivery_jobs, notifications, conversation_members, mentions, status_tags, statuses, antennas, list_members, lists, tag_follows, tags, fans, follows, accounts RESTART IDENTITY CASCADE").Error

    ctx := context.Background()
    followRepo := repository.NewFollowRepository(db)
    fanRepo := repository.NewFanRepository(db)
    statusRepo := repository.NewStatusRepository(db)
    accountRepo := repository.NewAccountRepository(db)
    listRepo := repository.NewListRepository(db)
    tagRepo := repository.NewTagRepository(db)
    antennaRepo := repository.NewAntennaRepository(db)
    feedRepo := repository.NewSingleFeedRepository(db)
    queue := repository.NewJobQueue(db)

    now := time.Now()
    author := model.Account{ID: "author0", Username: "author0", Subscribable: true, LastActiveAt: now}
    _ = db.Where("id = ?", author.ID).FirstOrCreate(&author).Error
    accounts := make([]model.Account, N)
    for i := 0; i < N; i++ {
        id := uuid.New().String()
        accounts[i] = model.Account{ID: id, Username: "u"+id[:8], Subscribable: true, LastActiveAt: now}
    }
    _ = db.CreateInBatches(&accounts, 1000).Error
    for i := 0; i < N; i++ { _ = followRepo.Create(ctx, accounts[i].ID, author.ID) }
    for i := 0; i < N; i++ { _ = fanRepo.Create(ctx, author.ID, accounts[i].ID) }

    // keyword antennas owned by a slice of the fans
    for i := 0; i < ANTENNAS && i < N; i++ {
        _ = antennaRepo.Create(ctx, &model.Antenna{
            AccountID: accounts[i].ID, Title: fmt.Sprintf("a%03d", i),
            AnyAccounts: true, AnyDomains: true, AnyTags: true,
            Keywords: []string{"hello"}, Available: true,
        })
    }

    policy := service.MatchPolicy{}
    matcher := service.NewAntennaMatcher(service.NewFollowSnapshot(followRepo), policy)
    local := service.NewLocalDistributor(statusRepo, accountRepo, fanRepo, listRepo, tagRepo, antennaRepo, matcher, queue, policy, BATCH, 0)
    render := service.NewRenderCache(rdb, 10*time.Minute)
    broadcast := service.NewBroadcastDistributor(pubsub.NewRedisPublisher(rdb), render, nil)
    fanout := service.NewFanOutService(local, broadcast, render)
    publisher := service.NewPublisher(db, tagRepo)

    worker := service.NewDeliveryWorker(db, queue, statusRepo, feedRepo, WORKERS, CLAIM, 20*time.Millisecond)
    stop := worker.Start()
    defer stop(ctx)

    // publish POSTS and measure the synchronous path (enqueue only)
    pubDurations := make([]time.Duration, 0, POSTS)
    for i := 0; i < POSTS; i++ {
        st := time.Now()
        status := must(publisher.Publish(ctx, service.PublishInput{
            AccountID: author.ID, Text: fmt.Sprintf("hello %d", i), Visibility: model.VisibilityPublic,
        }))
        mustDo(fanout.FanOut(ctx, status, service.FanOutOptions{}))
        pubDurations = append(pubDurations, time.Since(st))
    }
    fmt.Printf("publish+fanout p50=%v p95=%v p99=%v\n", pct(pubDurations, 0.50), pct(pubDurations, 0.95), pct(pubDurations, 0.99))

    // wait for the queue to drain
    drainStart := time.Now()
    for {
        pending := must(queue.PendingCount(ctx))
        if pending == 0 { break }
        time.Sleep(50 * time.Millisecond)
    }
    drain := time.Since(drainStart)

    homeCount := must(feedRepo.CountFor(ctx, model.FeedKindHome, accounts[0].ID))
    fmt.Printf("drain=%v fans=%d antennas=%d posts=%d sample_home=%d\n", drain, N, ANTENNAS, POSTS, homeCount)
}
