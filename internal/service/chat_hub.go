package service

import (
	"context"
	"encoding/json"
	"fmt"
	"learning_platform/pkg/logger"
	"learning_platform/pkg/monitoring"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	shardCount     = 32
	onlineTTL      = 2 * time.Minute // 在线状态过期时间
	chatChannel    = "chat_channel"
)

const (
	WSNewMessage  = "NEW_MESSAGE"
	WSSendMessage = "SEND_MESSAGE"
	WSTyping      = "TYPING"
	WSRead        = "READ"
	WSUserStatus  = "USER_STATUS"
	WSError       = "ERROR"
)

// 内存复用 (sync.Pool)
var inboundPool = sync.Pool{
	New: func() interface{} {
		return &inboundMessage{}
	},
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type inboundMessage struct {
	Type string `json:"type"`
	Data struct {
		ConversationID string `json:"conversationId"`
		Content        string `json:"content"`
		ClientMsgID    string `json:"clientMsgId"`
	} `json:"data"`
}

func onlineKey(userID uint) string {
	return fmt.Sprintf("user:online:%d", userID)
}

type Client struct {
	Hub     *ChatHub
	Conn    *websocket.Conn
	Send    chan []byte
	UserID  uint
	Limiter *rate.Limiter // 限流器
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			break
		}

		if !c.Limiter.Allow() {
			continue
		}

		msg := inboundPool.Get().(*inboundMessage)
		*msg = inboundMessage{}
		if err := json.Unmarshal(message, msg); err == nil && msg.Data.ConversationID != "" {
			monitoring.ChatMessageCounter.WithLabelValues(msg.Type, "in").Inc()
			c.Hub.handleInbound(c, msg)
		}
		inboundPool.Put(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type shard struct {
	clients map[uint]*Client
	mu      sync.RWMutex
}

// ChatHub 按用户分片管理本机连接，通过 Redis 发布订阅在多实例间转发；Redis 为 nil 时只在本机投递
type ChatHub struct {
	shards     [shardCount]*shard
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	Redis      *redis.Client
	Chat       *ChatService
	ctx        context.Context
}

func NewChatHub(rdb *redis.Client, chat *ChatService) *ChatHub {
	h := &ChatHub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		Redis:      rdb,
		Chat:       chat,
		ctx:        context.Background(),
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &shard{
			clients: make(map[uint]*Client),
		}
	}
	return h
}

func (h *ChatHub) getShard(userID uint) *shard {
	return h.shards[userID%shardCount]
}

type PubSubMessage struct {
	TargetUsers []uint          `json:"targetUsers"`
	Payload     json.RawMessage `json:"payload"`
}

// handleInbound 处理客户端通过 websocket 上行的消息
func (h *ChatHub) handleInbound(c *Client, msg *inboundMessage) {
	ctx, cancel := context.WithTimeout(h.ctx, writeWait)
	defer cancel()
	convID := msg.Data.ConversationID

	switch msg.Type {
	case WSSendMessage:
		if h.Chat == nil {
			return
		}
		sent, err := h.Chat.SendMessage(ctx, c.UserID, convID, msg.Data.Content, msg.Data.ClientMsgID)
		if err != nil {
			h.PushToUsers([]uint{c.UserID}, WSMessage{Type: WSError, Data: map[string]interface{}{
				"conversationId": convID,
				"clientMsgId":    msg.Data.ClientMsgID,
				"message":        err.Error(),
			}})
			return
		}
		if sent.Duplicate {
			h.PushToUsers([]uint{c.UserID}, WSMessage{Type: WSNewMessage, Data: sent.Message})
			return
		}
		h.PushToUsers(sent.Recipients, WSMessage{Type: WSNewMessage, Data: sent.Message})

	case WSRead:
		if h.Chat != nil {
			if err := h.Chat.MarkAsRead(ctx, c.UserID, convID); err != nil {
				logger.Log.Debug("mark as read failed", zap.Error(err), zap.Uint("userId", c.UserID))
			}
		}

	case WSTyping:
		// 不需要存库的瞬时事件，转发给会话其他成员
		if h.Chat == nil {
			return
		}
		if _, err := h.Chat.repo(ctx).GetMember(convID, c.UserID); err != nil {
			return
		}
		ids, err := h.Chat.MemberIDs(ctx, convID)
		if err != nil {
			return
		}
		targets := ids[:0]
		for _, id := range ids {
			if id != c.UserID {
				targets = append(targets, id)
			}
		}
		h.PushToUsers(targets, WSMessage{Type: WSTyping, Data: map[string]interface{}{
			"conversationId": convID,
			"userId":         c.UserID,
		}})
	}
}

// Run 处理连接注册与在线状态，ctx 取消或 Stop 后退出
func (h *ChatHub) Run(ctx context.Context) {
	if h.Redis != nil {
		pubsub := h.Redis.Subscribe(ctx, chatChannel)
		defer pubsub.Close()
		go func() {
			for msg := range pubsub.Channel() {
				var psMsg PubSubMessage
				if err := json.Unmarshal([]byte(msg.Payload), &psMsg); err != nil {
					logger.Log.Error("PubSub unmarshal error", zap.Error(err))
					continue
				}
				h.pushToLocalRawUsers(psMsg.TargetUsers, psMsg.Payload)
			}
		}()
	}

	// 批量处理状态更新
	ticker := time.NewTicker(500 * time.Millisecond)
	// 状态续期定时器 (Heartbeat)
	heartbeatTicker := time.NewTicker(1 * time.Minute)
	defer func() {
		ticker.Stop()
		heartbeatTicker.Stop()
	}()

	type statusUpdate struct {
		userID uint
		status string
	}
	var pendingUpdates []statusUpdate

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return

		case client := <-h.register:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			if old, ok := s.clients[client.UserID]; ok && old != client {
				// 同一用户重复连接，关闭旧连接
				close(old.Send)
			} else {
				monitoring.ChatOnlineUsers.Inc()
			}
			s.clients[client.UserID] = client
			s.mu.Unlock()
			pendingUpdates = append(pendingUpdates, statusUpdate{client.UserID, "online"})

		case client := <-h.unregister:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			if current, ok := s.clients[client.UserID]; ok && current == client {
				delete(s.clients, client.UserID)
				close(client.Send)
				monitoring.ChatOnlineUsers.Dec()
				pendingUpdates = append(pendingUpdates, statusUpdate{client.UserID, "offline"})
			}
			s.mu.Unlock()

		case <-heartbeatTicker.C:
			h.refreshOnlineStatus()

		case <-ticker.C:
			if len(pendingUpdates) == 0 {
				continue
			}
			if h.Redis != nil {
				pipe := h.Redis.Pipeline()
				for _, update := range pendingUpdates {
					if update.status == "online" {
						pipe.Set(ctx, onlineKey(update.userID), "true", onlineTTL)
					} else {
						pipe.Del(ctx, onlineKey(update.userID))
					}
				}
				if _, err := pipe.Exec(ctx); err != nil {
					logger.Log.Error("Redis pipeline error", zap.Error(err))
				}
			}
			for _, update := range pendingUpdates {
				h.NotifyStatus(update.userID, update.status)
			}
			pendingUpdates = pendingUpdates[:0]
		}
	}
}

func (h *ChatHub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *ChatHub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *ChatHub) localUserIDs() []uint {
	var ids []uint
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.RLock()
		for userID := range s.clients {
			ids = append(ids, userID)
		}
		s.mu.RUnlock()
	}
	return ids
}

// refreshOnlineStatus 刷新当前服务器所有在线用户的过期时间
func (h *ChatHub) refreshOnlineStatus() {
	if h.Redis == nil {
		return
	}
	ids := h.localUserIDs()
	if len(ids) == 0 {
		return
	}
	pipe := h.Redis.Pipeline()
	for _, userID := range ids {
		pipe.Expire(h.ctx, onlineKey(userID), onlineTTL)
	}
	if _, err := pipe.Exec(h.ctx); err != nil {
		logger.Log.Warn("Refresh online status failed", zap.Error(err))
		return
	}
	logger.Log.Debug("Refreshed online status", zap.Int("count", len(ids)))
}

// NotifyStatus 通知与该用户同处会话的其他用户
func (h *ChatHub) NotifyStatus(userID uint, status string) {
	if h.Chat == nil {
		return
	}
	related, err := h.Chat.RelatedUserIDs(h.ctx, userID)
	if err != nil || len(related) == 0 {
		return
	}
	h.PushToUsers(related, WSMessage{
		Type: WSUserStatus,
		Data: map[string]interface{}{
			"userId": userID,
			"status": status,
		},
	})
}

// Stop 关闭所有连接并清理在线状态
func (h *ChatHub) Stop() {
	h.stopOnce.Do(func() {
		logger.Log.Info("ChatHub stopping: clearing online status and closing connections...")
		close(h.done)

		var allUserIDs []uint
		for i := 0; i < shardCount; i++ {
			s := h.shards[i]
			s.mu.Lock()
			for userID, client := range s.clients {
				allUserIDs = append(allUserIDs, userID)
				close(client.Send)
				delete(s.clients, userID)
			}
			s.mu.Unlock()
		}

		if len(allUserIDs) > 0 && h.Redis != nil {
			pipe := h.Redis.Pipeline()
			for _, userID := range allUserIDs {
				pipe.Del(context.Background(), onlineKey(userID))
			}
			pipe.Exec(context.Background())
		}

		monitoring.ChatOnlineUsers.Set(0)
		logger.Log.Info("ChatHub stopped", zap.Int("closedConnections", len(allUserIDs)))
	})
}

// PushToUsers 有 Redis 时经发布订阅投递到所有实例
func (h *ChatHub) PushToUsers(userIDs []uint, msg WSMessage) {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Error("Marshal ws message failed", zap.Error(err))
		return
	}
	monitoring.ChatMessageCounter.WithLabelValues(msg.Type, "out").Inc()

	if h.Redis == nil {
		h.pushToLocalRawUsers(userIDs, msgBytes)
		return
	}
	payload, _ := json.Marshal(PubSubMessage{TargetUsers: userIDs, Payload: msgBytes})
	if err := h.Redis.Publish(h.ctx, chatChannel, payload).Err(); err != nil {
		logger.Log.Warn("Publish failed, delivering locally", zap.Error(err))
		h.pushToLocalRawUsers(userIDs, msgBytes)
	}
}

func (h *ChatHub) pushToLocalRawUsers(userIDs []uint, payload []byte) {
	deliver := func(client *Client) {
		select {
		case client.Send <- payload:
		default:
		}
	}

	if len(userIDs) == 0 {
		for i := 0; i < shardCount; i++ {
			s := h.shards[i]
			s.mu.RLock()
			for _, client := range s.clients {
				deliver(client)
			}
			s.mu.RUnlock()
		}
		return
	}

	for _, id := range userIDs {
		s := h.getShard(id)
		s.mu.RLock()
		if client, ok := s.clients[id]; ok {
			deliver(client)
		}
		s.mu.RUnlock()
	}
}

func (h *ChatHub) IsUserOnline(userID uint) bool {
	s := h.getShard(userID)
	s.mu.RLock()
	_, ok := s.clients[userID]
	s.mu.RUnlock()
	if ok || h.Redis == nil {
		return ok
	}

	// 多实例部署时查 Redis
	val, err := h.Redis.Get(h.ctx, onlineKey(userID)).Result()
	return err == nil && val == "true"
}

func ServeWs(hub *ChatHub, w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	client := &Client{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		UserID:  userID,
		Limiter: rate.NewLimiter(rate.Limit(30), 50), // 每秒30条，允许突发50条
	}
	if !hub.join(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
