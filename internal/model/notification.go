package model

import "time"

// 通知类型
const (
	NotificationKindMention = "mention"
	NotificationKindUpdate  = "update"
)

// Notification 站内通知。ux_notification = (account_id, status_id, kind)：
// 重复投递不产生重复通知
type Notification struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"`
	AccountID     string `gorm:"type:varchar(36);uniqueIndex:ux_notification;index:idx_notification_account"`
	StatusID      string `gorm:"type:varchar(36);uniqueIndex:ux_notification"`
	Kind          string `gorm:"type:varchar(16);uniqueIndex:ux_notification"`
	FromAccountID string `gorm:"type:varchar(36)"`
	CreatedAt     time.Time
}

func (Notification) TableName() string { return "notifications" }
