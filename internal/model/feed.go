package model

import "time"

// Feed 类型（owner 的含义随类型变化：账号/列表/天线/标签）
const (
	FeedKindHome    = "home"
	FeedKindList    = "list"
	FeedKindAntenna = "antenna"
	FeedKindTag     = "tag"
)

// FeedEntry 时间线项，按 (feed_kind, owner_id) 切分。
// ux_feed_entry = (feed_kind, owner_id, status_id)：重复插入为 no-op
type FeedEntry struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	FeedKind  string `gorm:"type:varchar(16);uniqueIndex:ux_feed_entry;index:idx_feed_page"`
	OwnerID   string `gorm:"type:varchar(36);uniqueIndex:ux_feed_entry;index:idx_feed_page"`
	StatusID  string `gorm:"type:varchar(36);uniqueIndex:ux_feed_entry;index:idx_feed_status"`
	AntennaID string `gorm:"type:varchar(36)"` // 经天线投递时的来源天线
	Score     int64  `gorm:"index:idx_feed_page"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (FeedEntry) TableName() string { return "feed_entries" }
