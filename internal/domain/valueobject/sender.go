package valueobject

// Sender 消息发送方
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// IsValid 判断发送方是否合法
func (s Sender) IsValid() bool {
	return s == SenderUser || s == SenderBot
}

// ResponseSource 机器人回复来源
type ResponseSource string

const (
	SourceKnowledgeBase ResponseSource = "knowledge_base"
	SourceAIGenerated   ResponseSource = "ai_generated"
	SourceFallback      ResponseSource = "fallback"
)
