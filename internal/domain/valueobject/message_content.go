package valueobject

import "strings"

// MessageContent 消息内容值对象（不可变）
type MessageContent struct {
	text        string
	messageType MessageType
}

// MessageType 消息类型
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeVoice MessageType = "voice"
)

// ParseMessageType 解析消息类型，未知值按文本处理
func ParseMessageType(s string) MessageType {
	if MessageType(strings.ToLower(s)) == MessageTypeVoice {
		return MessageTypeVoice
	}
	return MessageTypeText
}

// NewMessageContent 创建消息内容值对象
func NewMessageContent(text string, messageType MessageType) MessageContent {
	if messageType == "" {
		messageType = MessageTypeText
	}
	return MessageContent{
		text:        text,
		messageType: messageType,
	}
}

// Text 返回文本内容
func (mc MessageContent) Text() string {
	return mc.text
}

// MessageType 返回消息类型
func (mc MessageContent) MessageType() MessageType {
	return mc.messageType
}

// IsBlank 判断内容是否为空白
func (mc MessageContent) IsBlank() bool {
	return strings.TrimSpace(mc.text) == ""
}

// Equals 值对象相等性比较
func (mc MessageContent) Equals(other MessageContent) bool {
	return mc.text == other.text && mc.messageType == other.messageType
}
