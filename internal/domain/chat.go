package domain

import "time"

// ChatRole is the author of a chat turn.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatTurn is one message of the surrounding chat feature. The RAG core
// reads recent turns to build conversational context; it never writes
// turns itself.
type ChatTurn struct {
	Role      ChatRole
	Content   string
	CreatedAt time.Time
}
