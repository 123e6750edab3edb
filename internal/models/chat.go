package models

// Conversation roles. Histories are ordered oldest first; a system message,
// when present, is always the first element.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation.
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// ValidRole reports whether role is one of the three conversation roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ChatRequest is the payload for the stateless chat endpoint. The caller
// holds the full history and sends it on every turn.
type ChatRequest struct {
	Messages []Message `json:"messages"`
}

// ChatResponse is the updated history: the caller's messages, a system
// message prepended when one was missing, and the assistant reply appended.
type ChatResponse struct {
	Messages []Message `json:"messages"`
}

// SendMessageRequest is the payload for posting a turn to a stored
// conversation.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessageResponse carries the assistant reply plus the persisted history
// after the turn.
type SendMessageResponse struct {
	Reply    string    `json:"reply"`
	Messages []Message `json:"messages"`
}
