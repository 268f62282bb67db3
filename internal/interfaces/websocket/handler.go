package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/internal/application/usecase"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/internal/infrastructure/eventbus"
)

const originPrefix = "ws:"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameBytes  = 64 * 1024
	sendBufferSize = 64
)

// MessageType 消息类型
type MessageType string

const (
	MessageTypeChat  MessageType = "chat"
	MessageTypeReply MessageType = "reply"
	MessageTypeError MessageType = "error"
	MessageTypePing  MessageType = "ping"
	MessageTypePong  MessageType = "pong"
)

// WSMessage WebSocket 消息
type WSMessage struct {
	Type        MessageType                   `json:"type"`
	ID          string                        `json:"id,omitempty"`
	Content     string                        `json:"content,omitempty"`
	SessionID   string                        `json:"session_id,omitempty"`
	MessageType string                        `json:"message_type,omitempty"`
	Result      *usecase.ProcessMessageResult `json:"result,omitempty"`
	Timestamp   int64                         `json:"timestamp"`
}

// Processor runs one chat turn.
type Processor interface {
	Execute(ctx context.Context, in usecase.ProcessMessageInput) *usecase.ProcessMessageResult
}

// Client WebSocket 客户端
type Client struct {
	ID        string
	SessionID string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	logger    *zap.Logger
}

// Hub WebSocket 连接中心
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *zap.Logger
	mu         sync.RWMutex

	processor Processor
	timeout   time.Duration
}

// NewHub 创建连接中心. timeout bounds each chat turn; zero disables it.
func NewHub(processor Processor, timeout time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With(zap.String("component", "ws-hub")),
		processor:  processor,
		timeout:    timeout,
	}
}

// Run 运行连接中心，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for _, client := range h.clients {
				client.conn.Close()
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Info("Client connected",
				zap.String("client_id", client.ID),
				zap.String("session_id", client.SessionID),
			)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client disconnected", zap.String("client_id", client.ID))
		}
	}
}

// Subscribe forwards reply_sent events to the session's other clients, so a
// visitor sees every reply in each open tab whatever transport sent it.
func (h *Hub) Subscribe(bus eventbus.Bus) (unsubscribe func()) {
	return bus.Subscribe(eventbus.EventTypeReplySent, func(_ context.Context, ev eventbus.Event) {
		p, ok := ev.Payload().(*eventbus.ReplyPayload)
		if !ok {
			return
		}
		res, _ := p.Reply.(*usecase.ProcessMessageResult)
		if res == nil {
			return
		}
		h.sendToSession(p.SessionID, strings.TrimPrefix(p.Origin, originPrefix), &WSMessage{
			Type:      MessageTypeReply,
			Content:   res.Response,
			SessionID: p.SessionID,
			Result:    res,
		})
	})
}

// SendToSession 发送消息到指定会话的所有客户端
func (h *Hub) SendToSession(sessionID string, msg *WSMessage) {
	h.sendToSession(sessionID, "", msg)
}

func (h *Hub) sendToSession(sessionID, exceptClientID string, msg *WSMessage) {
	msg.Timestamp = time.Now().Unix()
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode frame", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.SessionID != sessionID || client.ID == exceptClientID {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Dropping frame for slow client", zap.String("client_id", client.ID))
		}
	}
}

// GetClientCount 获取客户端数量
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleChat runs a chat frame through the pipeline and answers the session.
func (h *Hub) handleChat(c *Client, msg *WSMessage) {
	ctx := context.Background()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result := h.processor.Execute(ctx, usecase.ProcessMessageInput{
		UserMessage: msg.Content,
		SessionID:   c.SessionID,
		MessageType: valueobject.ParseMessageType(msg.MessageType),
		Origin:      originPrefix + c.ID,
	})

	reply := &WSMessage{
		Type:    MessageTypeReply,
		ID:      msg.ID,
		Content: result.Response,
		Result:  result,
	}
	// The sender may not be registered yet, so it is answered directly;
	// other tabs get the reply through Subscribe.
	c.reply(reply)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The widget is embedded on third-party pages.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler WebSocket 处理器
type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

// NewHandler 创建 WebSocket 处理器
func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger.With(zap.String("component", "ws-handler")),
	}
}

// ServeWS 处理 WebSocket 连接. The session comes from ?session_id= or is generated.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = "ws-" + uuid.NewString()
	}

	client := &Client{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		hub:       h.hub,
		logger:    h.logger,
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump 读取消息
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(&WSMessage{Type: MessageTypeError, Content: "invalid frame"})
			continue
		}

		switch msg.Type {
		case MessageTypePing:
			c.reply(&WSMessage{Type: MessageTypePong, ID: msg.ID})
		case MessageTypeChat:
			c.hub.handleChat(c, &msg)
		default:
			c.reply(&WSMessage{Type: MessageTypeError, ID: msg.ID, Content: "unsupported frame type: " + string(msg.Type)})
		}
	}
}

// writePump 写入消息
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.hub.done:
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply 仅发送给当前客户端
func (c *Client) reply(msg *WSMessage) {
	msg.SessionID = c.SessionID
	msg.Timestamp = time.Now().Unix()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
