package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/internal/application/usecase"
	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	apperrors "github.com/ngoclaw/sitebot/pkg/errors"
)

// maxMessageRunes bounds a single visitor message.
const maxMessageRunes = 4000

// MessageProcessor runs one chat turn. Implemented by usecase.ProcessMessageUseCase.
type MessageProcessor interface {
	Execute(ctx context.Context, in usecase.ProcessMessageInput) *usecase.ProcessMessageResult
}

// HistoryReader lists a session's messages. Implemented by usecase.ConversationHistoryUseCase.
type HistoryReader interface {
	ListBySession(ctx context.Context, sessionID string, limit, offset int) (*entity.Conversation, []*entity.Message, error)
}

// ChatHandler 对话 API 处理器
type ChatHandler struct {
	processor MessageProcessor
	history   HistoryReader
	logger    *zap.Logger
}

// NewChatHandler 创建对话处理器
func NewChatHandler(processor MessageProcessor, history HistoryReader, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		processor: processor,
		history:   history,
		logger:    logger.With(zap.String("component", "chat-handler")),
	}
}

// ChatMessageRequest 发送消息请求
type ChatMessageRequest struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	MessageType string `json:"message_type"`
}

// ChatResponse 对话响应
type ChatResponse struct {
	*usecase.ProcessMessageResult
	Timestamp int64 `json:"timestamp"`
}

// MessageItem 历史消息项
type MessageItem struct {
	ID         string                 `json:"id"`
	Sender     string                 `json:"sender"`
	Content    string                 `json:"content"`
	Type       string                 `json:"message_type"`
	Language   string                 `json:"language"`
	Confidence float64                `json:"confidence"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// HistoryResponse 历史消息响应
type HistoryResponse struct {
	SessionID      string        `json:"session_id"`
	ConversationID string        `json:"conversation_id"`
	Language       string        `json:"language"`
	Messages       []MessageItem `json:"messages"`
}

// SendMessage 处理一条访客消息
// POST /api/v1/chat
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len([]rune(req.Message)) > maxMessageRunes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "message too long"})
		return
	}

	result := h.processor.Execute(c.Request.Context(), usecase.ProcessMessageInput{
		UserMessage: req.Message,
		SessionID:   req.SessionID,
		MessageType: valueobject.ParseMessageType(req.MessageType),
		Origin:      "http",
	})

	c.JSON(http.StatusOK, ChatResponse{
		ProcessMessageResult: result,
		Timestamp:            time.Now().Unix(),
	})
}

// GetHistory 返回会话消息
// GET /api/v1/conversations/:session_id/messages?limit=50&offset=0
func (h *ChatHandler) GetHistory(c *gin.Context) {
	sessionID := c.Param("session_id")
	limit, err := queryInt(c, "limit", 50, 1, 500)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offset, err := queryInt(c, "offset", 0, 0, 1<<30)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, msgs, err := h.history.ListBySession(c.Request.Context(), sessionID, limit, offset)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Failed to read history", zap.String("session_id", sessionID), zap.Error(err))
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	items := make([]MessageItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, MessageItem{
			ID:         m.ID(),
			Sender:     string(m.Sender()),
			Content:    m.Content().Text(),
			Type:       string(m.Content().MessageType()),
			Language:   m.Language().String(),
			Confidence: m.Confidence(),
			Timestamp:  m.Timestamp(),
			Metadata:   m.Metadata(),
		})
	}

	c.JSON(http.StatusOK, HistoryResponse{
		SessionID:      conv.SessionID(),
		ConversationID: conv.ID(),
		Language:       conv.Language().String(),
		Messages:       items,
	})
}

func queryInt(c *gin.Context, key string, def, min, max int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, apperrors.NewInvalidInputError("invalid " + key + ": " + raw)
	}
	return v, nil
}

// statusFor maps application error codes to HTTP status codes.
func statusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeServiceUnavail:
		return http.StatusServiceUnavailable
	case apperrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
