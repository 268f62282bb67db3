package eventbus

// Event types published by the chat pipeline.
const (
	EventTypeReplySent = "reply_sent"
)

// ReplyPayload is published once per processed message, after the bot
// reply is final. Origin identifies the transport client that sent the
// message ("http", "cli" or "ws:<client id>").
type ReplyPayload struct {
	SessionID      string
	ConversationID string
	Origin         string
	UserMessage    string
	Reply          any
}
