package repository

import (
	"learning_platform/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatRepository struct {
	DB *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{DB: db}
}

func (r *ChatRepository) CreateConversation(conv *model.Conversation) error {
	return r.DB.Omit("Members").Create(conv).Error
}

func (r *ChatRepository) GetConversation(id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.DB.Preload("Members.User").First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ChatRepository) FindCourseConversation(courseID uint) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.DB.Where("course_id = ?", courseID).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ChatRepository) FindPrivateConversation(userID1, userID2 uint) (*model.Conversation, error) {
	var conv model.Conversation
	// 两个用户共同参与的私聊
	err := r.DB.Model(&model.Conversation{}).
		Joins("JOIN conversation_members cm1 ON cm1.conversation_id = conversations.id").
		Joins("JOIN conversation_members cm2 ON cm2.conversation_id = conversations.id").
		Where("conversations.type = ?", model.ConversationPrivate).
		Where("cm1.user_id = ? AND cm2.user_id = ?", userID1, userID2).
		Preload("Members.User").
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ChatRepository) ListUserConversations(userID uint) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.DB.Model(&model.Conversation{}).
		Joins("JOIN conversation_members ON conversation_members.conversation_id = conversations.id").
		Where("conversation_members.user_id = ?", userID).
		Preload("Members.User").
		Order("conversations.updated_at DESC").
		Find(&convs).Error
	return convs, err
}

// AddMember 已是成员时忽略
func (r *ChatRepository) AddMember(member *model.ConversationMember) error {
	return r.DB.Omit("User").Clauses(clause.OnConflict{DoNothing: true}).Create(member).Error
}

func (r *ChatRepository) GetMember(convID string, userID uint) (*model.ConversationMember, error) {
	var member model.ConversationMember
	if err := r.DB.Where("conversation_id = ? AND user_id = ?", convID, userID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *ChatRepository) MemberIDs(convID string) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.ConversationMember{}).Where("conversation_id = ?", convID).Pluck("user_id", &ids).Error
	return ids, err
}

// RelatedUserIDs 与该用户同处任一会话的其他用户，用于在线状态广播
func (r *ChatRepository) RelatedUserIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Table("conversation_members cm1").
		Distinct("cm2.user_id").
		Joins("JOIN conversation_members cm2 ON cm2.conversation_id = cm1.conversation_id").
		Where("cm1.user_id = ? AND cm2.user_id <> ?", userID, userID).
		Pluck("cm2.user_id", &ids).Error
	return ids, err
}

// CreateMessage 写入消息并刷新会话的更新时间
func (r *ChatRepository) CreateMessage(msg *model.Message) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).Where("id = ?", msg.ConversationID).Update("updated_at", msg.CreatedAt).Error
	})
}

func (r *ChatRepository) FindByClientMsgID(convID string, senderID uint, clientMsgID string) (*model.Message, error) {
	var msg model.Message
	err := r.DB.Where("conversation_id = ? AND sender_id = ? AND client_msg_id = ?", convID, senderID, clientMsgID).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessages before 为零值时从最新一条开始，结果按时间正序返回
func (r *ChatRepository) GetMessages(convID string, before time.Time, limit int) ([]model.Message, error) {
	var msgs []model.Message
	query := r.DB.Where("conversation_id = ?", convID)
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *ChatRepository) LastMessage(convID string) (*model.Message, error) {
	var msg model.Message
	if err := r.DB.Where("conversation_id = ?", convID).Order("created_at DESC, id DESC").First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *ChatRepository) CountUnread(convID string, userID uint, since *time.Time) (int64, error) {
	var count int64
	query := r.DB.Model(&model.Message{}).
		Where("conversation_id = ? AND (sender_id IS NULL OR sender_id <> ?)", convID, userID)
	if since != nil {
		query = query.Where("created_at > ?", *since)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *ChatRepository) UpdateLastRead(convID string, userID uint, at time.Time) error {
	res := r.DB.Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Update("last_read_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ChatRepository) CountMessagesSince(since time.Time) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Message{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}
