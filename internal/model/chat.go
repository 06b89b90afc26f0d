package model

import (
	"time"
)

type ConversationType string

const (
	ConversationPrivate ConversationType = "private"
	ConversationGroup   ConversationType = "group"
	ConversationCourse  ConversationType = "course"
)

// Conversation 存储会话（私聊、群聊、课程讨论）
type Conversation struct {
	UUIDBase
	Type      ConversationType     `gorm:"size:10;default:'group'" json:"type"`
	Name      string               `gorm:"size:100" json:"name"`
	CourseID  *uint                `gorm:"uniqueIndex" json:"courseId,omitempty"`
	CreatorID uint                 `gorm:"index" json:"creatorId"`
	Members   []ConversationMember `gorm:"foreignKey:ConversationID" json:"members,omitempty"`
}

func (Conversation) TableName() string {
	return "conversations"
}

type ConversationMember struct {
	ConversationID string     `gorm:"primaryKey;type:varchar(36)" json:"conversationId"`
	UserID         uint       `gorm:"primaryKey;index" json:"userId"`
	User           User       `gorm:"foreignKey:UserID" json:"user"`
	Role           string     `gorm:"size:10;default:'member'" json:"role"`
	LastReadAt     *time.Time `json:"lastReadAt"`
	JoinedAt       time.Time  `gorm:"autoCreateTime" json:"joinedAt"`
}

func (ConversationMember) TableName() string {
	return "conversation_members"
}

// Message 消息记录
type Message struct {
	UUIDBase
	ConversationID string    `gorm:"index:idx_conv_created;type:varchar(36);not null" json:"conversationId"`
	CreatedAt      time.Time `gorm:"index:idx_conv_created" json:"createdAt"`
	SenderID       *uint     `gorm:"index" json:"senderId"`
	Type           string    `gorm:"size:10;default:'text'" json:"type"`
	Content        string    `gorm:"type:text" json:"content"`
	ClientMsgID    string    `gorm:"size:50;index" json:"clientMsgId"`
}

func (Message) TableName() string {
	return "messages"
}
