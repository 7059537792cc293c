package model

import "time"

// Tag 话题标签
type Tag struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Name      string `gorm:"type:varchar(255);uniqueIndex"`
	CreatedAt time.Time
}

func (Tag) TableName() string { return "tags" }

// TagFollow 话题关注（公开类贴文按此投递话题时间线）
type TagFollow struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	TagID     string    `gorm:"type:varchar(36);index:idx_tag_follow_tag;index:idx_tag_follow_pair,unique;not null"`
	AccountID string    `gorm:"type:varchar(36);not null;index:idx_tag_follow_pair,unique"`
	CreatedAt time.Time
}

func (TagFollow) TableName() string { return "tag_follows" }
