package service

import (
	"context"
	"errors"
	"fmt"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"learning_platform/internal/util"
	"learning_platform/pkg/logger"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MessageText   = "text"
	MessageSystem = "system"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type ChatService struct {
	ChatRepo   *repository.ChatRepository
	CourseRepo *repository.CourseRepository
	UserRepo   *repository.UserRepository

	now func() time.Time
}

func NewChatService(chatRepo *repository.ChatRepository, courseRepo *repository.CourseRepository, userRepo *repository.UserRepository) *ChatService {
	return &ChatService{ChatRepo: chatRepo, CourseRepo: courseRepo, UserRepo: userRepo, now: time.Now}
}

// SentMessage Recipients 为会话全部成员（含发送者）
type SentMessage struct {
	Message    *model.Message
	Recipients []uint
	Duplicate  bool
}

type ConversationSummary struct {
	model.Conversation
	LastMessage *model.Message `json:"lastMessage,omitempty"`
	Unread      int64          `json:"unread"`
}

func (s *ChatService) repo(ctx context.Context) *repository.ChatRepository {
	return &repository.ChatRepository{DB: s.ChatRepo.DB.WithContext(ctx)}
}

// GetOrCreateCourseChat 每门课程一个讨论组，作者为管理员
func (s *ChatService) GetOrCreateCourseChat(ctx context.Context, courseID uint) (*model.Conversation, error) {
	repo := s.repo(ctx)
	conv, err := repo.FindCourseConversation(courseID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	course, err := s.CourseRepo.WithTx(repo.DB).FindByID(courseID)
	if err != nil {
		return nil, notFound(err)
	}
	conv = &model.Conversation{
		Type:      model.ConversationCourse,
		Name:      course.Title,
		CourseID:  &course.ID,
		CreatorID: course.AuthorID,
	}
	if err := repo.CreateConversation(conv); err != nil {
		// 并发创建时唯一索引冲突，重新读取
		if existing, findErr := repo.FindCourseConversation(courseID); findErr == nil {
			return existing, nil
		}
		return nil, err
	}
	if err := repo.AddMember(&model.ConversationMember{ConversationID: conv.ID, UserID: course.AuthorID, Role: "admin"}); err != nil {
		return nil, err
	}
	s.systemMessage(repo, conv.ID, fmt.Sprintf("课程 %s 讨论组已创建", course.Title))
	return conv, nil
}

func (s *ChatService) JoinCourseChat(ctx context.Context, course *model.Course, userID uint) error {
	conv, err := s.GetOrCreateCourseChat(ctx, course.ID)
	if err != nil {
		return err
	}
	return s.repo(ctx).AddMember(&model.ConversationMember{ConversationID: conv.ID, UserID: userID, Role: "member"})
}

// OpenCourseChat 课程作者与已选课学生可进入讨论组
func (s *ChatService) OpenCourseChat(ctx context.Context, userID, courseID uint) (*model.Conversation, error) {
	conv, err := s.GetOrCreateCourseChat(ctx, courseID)
	if err != nil {
		return nil, err
	}
	repo := s.repo(ctx)
	if _, err := repo.GetMember(conv.ID, userID); errors.Is(err, gorm.ErrRecordNotFound) {
		if _, err := s.CourseRepo.WithTx(repo.DB).FindEnrollment(userID, courseID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, util.ErrNotEnrolled
			}
			return nil, err
		}
		if err := repo.AddMember(&model.ConversationMember{ConversationID: conv.ID, UserID: userID, Role: "member"}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return repo.GetConversation(conv.ID)
}

func (s *ChatService) GetOrCreatePrivateChat(ctx context.Context, userID, targetID uint) (*model.Conversation, error) {
	if userID == targetID {
		return nil, util.ErrSelfConversation
	}
	repo := s.repo(ctx)
	if conv, err := repo.FindPrivateConversation(userID, targetID); err == nil {
		return conv, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if s.UserRepo != nil {
		if _, err := s.UserRepo.FindByID(targetID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, util.ErrUserNotFound
			}
			return nil, err
		}
	}

	conv := &model.Conversation{Type: model.ConversationPrivate, CreatorID: userID}
	err := repo.DB.Transaction(func(tx *gorm.DB) error {
		txRepo := &repository.ChatRepository{DB: tx}
		if err := txRepo.CreateConversation(conv); err != nil {
			return err
		}
		for _, id := range []uint{userID, targetID} {
			if err := txRepo.AddMember(&model.ConversationMember{ConversationID: conv.ID, UserID: id, Role: "member"}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repo.GetConversation(conv.ID)
}

func (s *ChatService) systemMessage(repo *repository.ChatRepository, convID, content string) {
	msg := &model.Message{ConversationID: convID, Type: MessageSystem, Content: content, CreatedAt: s.now()}
	if err := repo.CreateMessage(msg); err != nil {
		logger.Log.Warn("系统消息写入失败", zap.String("conversation", convID), zap.Error(err))
	}
}

func (s *ChatService) requireMember(repo *repository.ChatRepository, convID string, userID uint) error {
	_, err := repo.GetMember(convID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrNotMember
	}
	return err
}

// SendMessage 同一会话内重复的 clientMsgID 返回已存在的消息
func (s *ChatService) SendMessage(ctx context.Context, senderID uint, convID, content, clientMsgID string) (*SentMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty message", util.ErrInvalidArgument)
	}
	repo := s.repo(ctx)
	if err := s.requireMember(repo, convID, senderID); err != nil {
		return nil, err
	}
	recipients, err := repo.MemberIDs(convID)
	if err != nil {
		return nil, err
	}

	if clientMsgID != "" {
		existing, err := repo.FindByClientMsgID(convID, senderID, clientMsgID)
		if err == nil {
			return &SentMessage{Message: existing, Recipients: recipients, Duplicate: true}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	msg := &model.Message{
		ConversationID: convID,
		SenderID:       &senderID,
		Type:           MessageText,
		Content:        content,
		ClientMsgID:    clientMsgID,
		CreatedAt:      s.now(),
	}
	if err := repo.CreateMessage(msg); err != nil {
		return nil, err
	}
	return &SentMessage{Message: msg, Recipients: recipients}, nil
}

// GetHistory before 为零值时返回最新的消息
func (s *ChatService) GetHistory(ctx context.Context, userID uint, convID string, before time.Time, limit int) ([]model.Message, error) {
	repo := s.repo(ctx)
	if err := s.requireMember(repo, convID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return repo.GetMessages(convID, before, limit)
}

func (s *ChatService) ListConversations(ctx context.Context, userID uint) ([]ConversationSummary, error) {
	repo := s.repo(ctx)
	convs, err := repo.ListUserConversations(userID)
	if err != nil {
		return nil, err
	}
	result := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := ConversationSummary{Conversation: conv}
		if last, err := repo.LastMessage(conv.ID); err == nil {
			summary.LastMessage = last
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		var lastRead *time.Time
		for _, m := range conv.Members {
			if m.UserID == userID {
				lastRead = m.LastReadAt
				break
			}
		}
		if summary.Unread, err = repo.CountUnread(conv.ID, userID, lastRead); err != nil {
			return nil, err
		}
		result = append(result, summary)
	}
	return result, nil
}

func (s *ChatService) MarkAsRead(ctx context.Context, userID uint, convID string) error {
	err := s.repo(ctx).UpdateLastRead(convID, userID, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrNotMember
	}
	return err
}

func (s *ChatService) MemberIDs(ctx context.Context, convID string) ([]uint, error) {
	return s.repo(ctx).MemberIDs(convID)
}

func (s *ChatService) RelatedUserIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.repo(ctx).RelatedUserIDs(userID)
}
