package model

import "time"

// Account 账号（Domain 为空表示本地账号）
type Account struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	Username     string `gorm:"type:varchar(255);index:idx_account_acct,unique"`
	Domain       string `gorm:"type:varchar(255);index:idx_account_acct,unique;index:idx_account_domain"`
	Email        string `gorm:"type:varchar(255)"`
	PasswordHash string `gorm:"type:varchar(255)"`
	Silenced     bool
	// Subscribable=false 表示拒绝被天线订阅（带发现标签的贴文除外）
	Subscribable bool      `gorm:"default:true"`
	LastActiveAt time.Time `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Account) TableName() string { return "accounts" }

func (a *Account) Local() bool { return a.Domain == "" }

// ActiveSince 在窗口起点之后有过活动
func (a *Account) ActiveSince(t time.Time) bool { return a.LastActiveAt.After(t) }
