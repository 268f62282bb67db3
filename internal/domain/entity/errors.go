package entity

import "errors"

var (
	// Message errors
	ErrInvalidMessageID      = errors.New("invalid message id")
	ErrInvalidConversationID = errors.New("invalid conversation id")
	ErrInvalidSender         = errors.New("invalid message sender")

	// Conversation errors
	ErrInvalidSessionID = errors.New("invalid session id")

	// Knowledge errors
	ErrInvalidKnowledgeItem = errors.New("invalid knowledge item")
)
