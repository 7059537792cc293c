package model

import "time"

// Fan 粉丝冗余表（AccountID 的粉丝是 FanID），由 replicator 异步维护，
// 扇出时按此表分页扫描粉丝集合
type Fan struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	AccountID string `gorm:"type:varchar(36);index:idx_fan_account;index:idx_fan_pair,unique;not null"`
	FanID     string `gorm:"type:varchar(36);not null;index:idx_fan_pair,unique"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Fan) TableName() string { return "fans" }
