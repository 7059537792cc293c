package model

import "time"

// 投递任务类型：feed 四类 + 通知 + 会话记录
const (
	JobKindHome          = FeedKindHome
	JobKindList          = FeedKindList
	JobKindAntenna       = FeedKindAntenna
	JobKindTag           = FeedKindTag
	JobKindNotifyMention = "notify_mention"
	JobKindNotifyUpdate  = "notify_update"
	JobKindConversation  = "conversation"
)

// 任务状态
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
)

// DeliveryJob 异步投递任务（at-least-once；应用侧按唯一键幂等）
type DeliveryJob struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	StatusID    string `gorm:"type:varchar(36);index:idx_job_status_id"`
	TargetID    string `gorm:"type:varchar(36)"` // 账号/列表/天线/标签 id，随 Kind 变化
	Kind        string `gorm:"type:varchar(20)"`
	AntennaID   string `gorm:"type:varchar(36)"`
	Update      bool
	State       string    `gorm:"type:varchar(16);index"`
	CreatedAt   time.Time `gorm:"index"`
	ClaimedAt   *time.Time
	ProcessedAt *time.Time
}

func (DeliveryJob) TableName() string { return "delivery_jobs" }
