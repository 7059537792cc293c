package model

import "time"

// Antenna 订阅规则：按关键字/账号/域名/标签聚合贴文。
// 过滤字段为空切片表示通配（不限制）；引擎只读，不回写规则状态。
type Antenna struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	AccountID string `gorm:"type:varchar(36);index:idx_antenna_account;not null"`
	Title     string `gorm:"type:varchar(255)"`

	// 投递目标：InsertFeeds=false 只写专属天线时间线；
	// InsertFeeds=true 且 ListID 为空写 owner 的 home，否则写对应列表
	InsertFeeds bool
	ListID      string `gorm:"type:varchar(36);index"`

	AnyAccounts   bool
	AnyDomains    bool
	AnyTags       bool
	WithMediaOnly bool
	IgnoreReblog  bool
	// STL/LTL 简化匹配（无关键字/标签过滤）
	STL bool `gorm:"column:stl;index"`
	LTL bool `gorm:"column:ltl;index"`

	AccountIDs        []string `gorm:"serializer:json"`
	ExcludeAccountIDs []string `gorm:"serializer:json"`
	Domains           []string `gorm:"serializer:json"`
	ExcludeDomains    []string `gorm:"serializer:json"`
	TagIDs            []string `gorm:"serializer:json"`
	ExcludeTagIDs     []string `gorm:"serializer:json"`
	Keywords          []string `gorm:"serializer:json"`
	ExcludeKeywords   []string `gorm:"serializer:json"`

	Available bool `gorm:"default:true"`
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Antenna) TableName() string { return "antennas" }

// Expired 在 now 时刻是否已过期
func (a *Antenna) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}
