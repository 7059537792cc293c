// Package timeline serves feed reads with a Redis-assisted cache:
// a per-feed index list of status ids plus MGET-batched status snapshots.
package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/internal/repository"
)

// StatusSnapshot contains the minimal status info timeline pages render.
type StatusSnapshot struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Text      string `json:"text"`
	HasMedia  bool   `json:"has_media"`
	CreatedAt int64  `json:"created_at"`
}

// Service reads home/list/antenna/tag timelines.
type Service struct {
	db    *gorm.DB
	cache *redis.Client
	feeds repository.FeedRepository
	ttl   time.Duration

	pageQueries    atomic.Int64
	indexLoads     atomic.Int64
	statusBulkLoad atomic.Int64
}

func NewService(db *gorm.DB, cache *redis.Client, feeds repository.FeedRepository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{db: db, cache: cache, feeds: feeds, ttl: ttl}
}

// FetchNoCache reads a page straight from the feed store.
func (s *Service) FetchNoCache(ctx context.Context, feedKind, ownerID string, page, size int) ([]StatusSnapshot, error) {
	ids, err := s.queryStatusIDs(ctx, feedKind, ownerID, page, size)
	if err != nil {
		return nil, err
	}
	return s.loadStatuses(ctx, ids)
}

// Fetch reads a page through the Redis index: the feed's status ids are
// cached as a list so a page fetch is a single LRANGE.
func (s *Service) Fetch(ctx context.Context, feedKind, ownerID string, page, size int) ([]StatusSnapshot, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	key := indexKey(feedKind, ownerID)
	start := (page - 1) * size
	end := start + size - 1

	var ids []string
	if exists, _ := s.cache.Exists(ctx, key).Result(); exists > 0 {
		ids, _ = s.cache.LRange(ctx, key, int64(start), int64(end)).Result()
	}
	if len(ids) == 0 {
		allIDs, err := s.loadIndexAndCache(ctx, feedKind, ownerID)
		if err != nil {
			return nil, err
		}
		if start >= len(allIDs) {
			return []StatusSnapshot{}, nil
		}
		endIdx := start + size
		if endIdx > len(allIDs) {
			endIdx = len(allIDs)
		}
		ids = allIDs[start:endIdx]
	}
	return s.loadStatuses(ctx, ids)
}

// Invalidate drops the cached index for a feed (called after writes
// when read-your-writes matters; normally TTL expiry is enough).
func (s *Service) Invalidate(ctx context.Context, feedKind, ownerID string) {
	_ = s.cache.Del(ctx, indexKey(feedKind, ownerID)).Err()
}

func indexKey(feedKind, ownerID string) string {
	return fmt.Sprintf("feed:index:%s:%s", feedKind, ownerID)
}

func (s *Service) queryStatusIDs(ctx context.Context, feedKind, ownerID string, page, size int) ([]string, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	s.pageQueries.Add(1)
	entries, err := s.feeds.Page(ctx, feedKind, ownerID, page*size)
	if err != nil {
		return nil, err
	}
	start := (page - 1) * size
	if start >= len(entries) {
		return nil, nil
	}
	ids := make([]string, 0, size)
	for _, e := range entries[start:] {
		ids = append(ids, e.StatusID)
	}
	return ids, nil
}

func (s *Service) loadIndexAndCache(ctx context.Context, feedKind, ownerID string) ([]string, error) {
	s.indexLoads.Add(1)

	entries, err := s.feeds.Page(ctx, feedKind, ownerID, 400)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.StatusID
	}

	key := indexKey(feedKind, ownerID)
	if len(ids) > 0 {
		pipe := s.cache.Pipeline()
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, interfaceSlice(ids)...)
		pipe.Expire(ctx, key, s.ttl)
		_, _ = pipe.Exec(ctx)
	}
	return ids, nil
}

func (s *Service) loadStatuses(ctx context.Context, ids []string) ([]StatusSnapshot, error) {
	if len(ids) == 0 {
		return []StatusSnapshot{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "status:snap:" + id
	}

	cached := make(map[string]StatusSnapshot, len(ids))
	if vals, err := s.cache.MGet(ctx, keys...).Result(); err == nil {
		for i, v := range vals {
			if v == nil {
				continue
			}
			if str, ok := v.(string); ok {
				var snap StatusSnapshot
				if uErr := json.Unmarshal([]byte(str), &snap); uErr == nil {
					cached[ids[i]] = snap
				}
			}
		}
	}

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		s.statusBulkLoad.Add(1)

		var statuses []model.Status
		if err := s.db.WithContext(ctx).Where("id IN ?", missing).Find(&statuses).Error; err != nil {
			return nil, err
		}
		for _, st := range statuses {
			snap := StatusSnapshot{
				ID:        st.ID,
				AccountID: st.AccountID,
				Text:      st.Text,
				HasMedia:  st.HasMedia,
				CreatedAt: st.CreatedAt.Unix(),
			}
			cached[st.ID] = snap
			if payload, err := json.Marshal(snap); err == nil {
				_ = s.cache.Set(ctx, "status:snap:"+st.ID, payload, s.ttl).Err()
			}
		}
	}

	result := make([]StatusSnapshot, 0, len(ids))
	for _, id := range ids {
		if snap, ok := cached[id]; ok {
			result = append(result, snap)
		}
	}
	return result, nil
}

func interfaceSlice(strs []string) []interface{} {
	result := make([]interface{}, len(strs))
	for i, s := range strs {
		result[i] = s
	}
	return result
}

// ResetCounters clears recorded db call counters.
func (s *Service) ResetCounters() {
	s.pageQueries.Store(0)
	s.indexLoads.Store(0)
	s.statusBulkLoad.Store(0)
}

// Counters reports how many underlying DB loads were executed.
func (s *Service) Counters() DBCounters {
	return DBCounters{
		PageQueries:    s.pageQueries.Load(),
		IndexLoads:     s.indexLoads.Load(),
		StatusBulkLoad: s.statusBulkLoad.Load(),
	}
}

// DBCounters summarises DB hits during a run.
type DBCounters struct {
	PageQueries    int64
	IndexLoads     int64
	StatusBulkLoad int64
}
