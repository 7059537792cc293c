package main

import (
    "context"
    "fmt"
    "math"
    "math/rand"
    "os"
    "sort"
    "strconv"
    "time"

    "github.com/google/uuid"

    "github.com/oyasumi-space/antenna-fanout/config"
    "github.com/oyasumi-space/antenna-fanout/internal/model"
    "github.com/oyasumi-space/antenna-fanout/internal/repository"
    "github.com/oyasumi-space/antenna-fanout/internal/timeline"
    "github.com/oyasumi-space/antenna-fanout/pkg/cache"
    "github.com/oyasumi-space/antenna-fanout/pkg/database"
)

func must[T any](v T, err error) T { if err != nil { panic(err) }; return v }

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
    ctx := context.Background()
    cfg := must(config.Load())
    db := must(database.InitDB(cfg))
    if err := database.Migrate(db); err != nil { panic(err) }
    rdb := must(cache.InitRedis(cfg))

    FEED := 400    // statuses in the benched home feed
    READS := 2000  // page reads
    PAGES := 10    // random page range
    if s := os.Getenv("FEED"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { FEED = v } }
    if s := os.Getenv("READS"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { READS = v } }
    if s := os.Getenv("PAGES"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { PAGES = v } }

    _ = db.Exec("TRUNCATE TABLE feed_entries, statuses, accounts RESTART IDENTITY CASCADE").Error

    owner := model.Account{ID: "reader0", Username: "reader0", Subscribable: true, LastActiveAt: time.Now()}
    _ = db.Where("id = ?", owner.ID).FirstOrCreate(&owner).Error

    statuses := make([]model.Status, FEED)
    entries := make([]model.FeedEntry, FEED)
    base := time.Now().Add(-time.Duration(FEED) * time.Second)
    for i := 0; i < FEED; i++ {
        at := base.Add(time.Duration(i) * time.Second)
        id := uuid.New().String()
        statuses[i] = model.Status{ID: id, AccountID: owner.ID, Text: fmt.Sprintf("post %d", i),
            Visibility: model.VisibilityPublic, Searchability: model.SearchabilityPublic, CreatedAt: at, UpdatedAt: at}
        entries[i] = model.FeedEntry{ID: uuid.New().String(), FeedKind: model.FeedKindHome, OwnerID: owner.ID,
            StatusID: id, Score: at.UnixNano()}
    }
    _ = db.CreateInBatches(&statuses, 500).Error

    feedRepo := repository.NewSingleFeedRepository(db)
    if err := feedRepo.InsertMany(ctx, entries); err != nil { panic(err) }

    svc := timeline.NewService(db, rdb, feedRepo, 10*time.Minute)

    run := func(name string, fetch func(page int) error) {
        svc.Invalidate(ctx, model.FeedKindHome, owner.ID)
        svc.ResetCounters()
        durations := make([]time.Duration, 0, READS)
        st := time.Now()
        for i := 0; i < READS; i++ {
            page := 1 + rand.Intn(PAGES)
            s := time.Now()
            if err := fetch(page); err != nil { panic(err) }
            durations = append(durations, time.Since(s))
        }
        total := time.Since(st)
        c := svc.Counters()
        fmt.Printf("%-8s total=%v p50=%v p95=%v p99=%v db_page=%d db_index=%d db_bulk=%d\n",
            name, total, pct(durations, 0.50), pct(durations, 0.95), pct(durations, 0.99),
            c.PageQueries, c.IndexLoads, c.StatusBulkLoad)
    }

    run("nocache", func(page int) error {
        _, err := svc.FetchNoCache(ctx, model.FeedKindHome, owner.ID, page, 20)
        return err
    })
    run("cached", func(page int) error {
        _, err := svc.Fetch(ctx, model.FeedKindHome, owner.ID, page, 20)
        return err
    })
}
