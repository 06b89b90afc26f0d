package controller

import (
	"learning_platform/internal/service"
	"learning_platform/internal/util"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ChatController 处理课程讨论与私聊相关的HTTP请求
type ChatController struct {
	Chat *service.ChatService
	Hub  *service.ChatHub
}

func NewChatController(chat *service.ChatService, hub *service.ChatHub) *ChatController {
	return &ChatController{Chat: chat, Hub: hub}
}

// CreatePrivateChatRequest 创建私聊请求
type CreatePrivateChatRequest struct {
	TargetUserID uint `json:"targetUserId" binding:"required" example:"2"`
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Content     string `json:"content" binding:"required" example:"你好"`
	ClientMsgID string `json:"clientMsgId" example:"uuid-123"`
}

// HandleWS godoc
// @Summary WebSocket 连接
// @Description 建立 WebSocket 连接以收发实时消息
// @Tags IM系统
// @Produce json
// @Security ApiKeyAuth
// @Param token query string true "JWT Token"
// @Success 101 {string} string "Switching Protocols"
// @Router /api/chat/ws [get]
func (ctrl *ChatController) HandleWS(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	service.ServeWs(ctrl.Hub, c.Writer, c.Request, claims.UserID)
}

// GetConversations godoc
// @Summary 获取会话列表
// @Description 当前用户的全部会话，含最后一条消息与未读数
// @Tags IM系统
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.ConversationSummary}
// @Router /api/chat/conversations [get]
func (ctrl *ChatController) GetConversations(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	list, err := ctrl.Chat.ListConversations(c.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, list)
}

// OpenCourseChat godoc
// @Summary 进入课程讨论组
// @Description 已选课学生与课程作者可进入
// @Tags IM系统
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Conversation}
// @Failure 403 {object} util.Response "未选课"
// @Router /api/chat/courses/{id} [post]
func (ctrl *ChatController) OpenCourseChat(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	courseID, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	conv, err := ctrl.Chat.OpenCourseChat(c.Request.Context(), claims.UserID, courseID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, conv)
}

// CreatePrivateChat godoc
// @Summary 创建或获取私聊
// @Description 创建一个新的私聊会话，如果已存在则返回现有会话
// @Tags IM系统
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body CreatePrivateChatRequest true "创建私聊请求"
// @Success 200 {object} util.Response{data=model.Conversation} "成功"
// @Failure 400 {object} util.Response "参数错误"
// @Router /api/chat/privates [post]
func (ctrl *ChatController) CreatePrivateChat(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	var req CreatePrivateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	conv, err := ctrl.Chat.GetOrCreatePrivateChat(c.Request.Context(), claims.UserID, req.TargetUserID)
	if err != nil {
		util.HandleError(c, err)
		return
	}

	// 私聊以对方昵称作为会话名
	for _, m := range conv.Members {
		if m.UserID != claims.UserID {
			conv.Name = m.User.Name
			break
		}
	}
	util.Success(c, conv)
}

// GetMessages godoc
// @Summary 获取历史消息
// @Tags IM系统
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param before query int false "毫秒时间戳，返回此前的消息"
// @Param limit query int false "条数" default(50)
// @Success 200 {object} util.Response{data=[]model.Message}
// @Failure 403 {object} util.Response "不是会话成员"
// @Router /api/chat/conversations/{id}/messages [get]
func (ctrl *ChatController) GetMessages(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	var before time.Time
	if ms, err := strconv.ParseInt(c.Query("before"), 10, 64); err == nil && ms > 0 {
		before = time.UnixMilli(ms)
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	messages, err := ctrl.Chat.GetHistory(c.Request.Context(), claims.UserID, c.Param("id"), before, limit)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, messages)
}

// SendMessage godoc
// @Summary 发送消息
// @Description clientMsgId 重复时返回已存在的消息
// @Tags IM系统
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param request body SendMessageRequest true "发送消息请求"
// @Success 200 {object} util.Response{data=model.Message}
// @Router /api/chat/conversations/{id}/messages [post]
func (ctrl *ChatController) SendMessage(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	sent, err := ctrl.Chat.SendMessage(c.Request.Context(), claims.UserID, c.Param("id"), req.Content, req.ClientMsgID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	if !sent.Duplicate && ctrl.Hub != nil {
		ctrl.Hub.PushToUsers(sent.Recipients, service.WSMessage{
			Type: service.WSNewMessage,
			Data: sent.Message,
		})
	}
	util.Success(c, sent.Message)
}

// MarkAsRead godoc
// @Summary 标记会话已读
// @Tags IM系统
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/chat/conversations/{id}/read [post]
func (ctrl *ChatController) MarkAsRead(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	if err := ctrl.Chat.MarkAsRead(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, nil)
}

// GetOnlineStatus godoc
// @Summary 查询用户在线状态
// @Tags IM系统
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} util.Response
// @Router /api/chat/users/{id}/online [get]
func (ctrl *ChatController) GetOnlineStatus(c *gin.Context) {
	userID, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	util.Success(c, gin.H{"userId": userID, "online": ctrl.Hub.IsUserOnline(userID)})
}
