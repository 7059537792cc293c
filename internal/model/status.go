package model

import "time"

// Status 内容主体；编辑只刷新快照不改变身份
type Status struct {
	ID                 string        `gorm:"primaryKey;type:varchar(36)"`
	AccountID          string        `gorm:"type:varchar(36);index:idx_status_account"`
	Text               string        `gorm:"type:text"`
	Visibility         Visibility    `gorm:"type:varchar(20);index"`
	Searchability      Searchability `gorm:"type:varchar(20)"`
	ReblogOfID         string        `gorm:"type:varchar(36);index:idx_status_reblog_of"`
	QuoteOfID          string        `gorm:"type:varchar(36);index:idx_status_quote_of"`
	InReplyToID        string        `gorm:"type:varchar(36)"`
	InReplyToAccountID string        `gorm:"type:varchar(36)"`
	HasMedia           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Account  *Account    `gorm:"foreignKey:AccountID"`
	Tags     []StatusTag `gorm:"foreignKey:StatusID"`
	Mentions []Mention   `gorm:"foreignKey:StatusID"`
}

func (Status) TableName() string { return "statuses" }

func (s *Status) IsReblog() bool { return s.ReblogOfID != "" }

// IsReplyToOther 回复他人（自串不算），公共频道广播排除
func (s *Status) IsReplyToOther() bool {
	return s.InReplyToID != "" && s.InReplyToAccountID != "" && s.InReplyToAccountID != s.AccountID
}

// Local 作者是否本地账号；Account 未预载时按远端处理
func (s *Status) Local() bool {
	return s.Account != nil && s.Account.Local()
}

func (s *Status) TagIDs() []string {
	ids := make([]string, len(s.Tags))
	for i, t := range s.Tags {
		ids[i] = t.TagID
	}
	return ids
}

func (s *Status) HasTagName(name string) bool {
	for _, t := range s.Tags {
		if t.TagName == name {
			return true
		}
	}
	return false
}

func (s *Status) MentionedAccountIDs() []string {
	ids := make([]string, len(s.Mentions))
	for i, m := range s.Mentions {
		ids[i] = m.AccountID
	}
	return ids
}

// StatusTag 贴文-标签关联（冗余标签名，供匹配与频道名使用）
type StatusTag struct {
	ID       string `gorm:"primaryKey;type:varchar(36)"`
	StatusID string `gorm:"type:varchar(36);index:idx_status_tag_status;index:idx_status_tag_pair,unique"`
	TagID    string `gorm:"type:varchar(36);not null;index:idx_status_tag_pair,unique;index:idx_status_tag_tag"`
	TagName  string `gorm:"type:varchar(255)"`
}

func (StatusTag) TableName() string { return "status_tags" }

// Mention 贴文提及
type Mention struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	StatusID  string `gorm:"type:varchar(36);index:idx_mention_status;index:idx_mention_pair,unique"`
	AccountID string `gorm:"type:varchar(36);not null;index:idx_mention_pair,unique"`
}

func (Mention) TableName() string { return "mentions" }

// ConversationMember 私信会话成员（direct 投递时记录）
type ConversationMember struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	StatusID  string    `gorm:"type:varchar(36);index:idx_conv_pair,unique"`
	AccountID string    `gorm:"type:varchar(36);not null;index:idx_conv_pair,unique"`
	CreatedAt time.Time
}

func (ConversationMember) TableName() string { return "conversation_members" }
