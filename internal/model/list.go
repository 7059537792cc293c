package model

import "time"

// List 自定义列表（成员必须是 owner 已关注的账号）
type List struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	AccountID string `gorm:"type:varchar(36);index:idx_list_account;not null"`
	Title     string `gorm:"type:varchar(255)"`
	Notify    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (List) TableName() string { return "lists" }

// ListMember 列表成员
type ListMember struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	ListID    string    `gorm:"type:varchar(36);index:idx_list_member_list;index:idx_list_member_pair,unique;not null"`
	AccountID string    `gorm:"type:varchar(36);not null;index:idx_list_member_pair,unique;index:idx_list_member_account"`
	CreatedAt time.Time
}

func (ListMember) TableName() string { return "list_members" }
