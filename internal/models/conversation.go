package models

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	Title         string    `json:"title"`
	ContextText   *string   `json:"-"`
	ContextSource *string   `json:"context_source"` // "file" | "video"
	MessageCount  int       `json:"message_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type StoredMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Seq            int       `json:"seq"`
	Role           string    `json:"role"` // "user" | "assistant"
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type ConversationDetail struct {
	Conversation Conversation    `json:"conversation"`
	Messages     []StoredMessage `json:"messages"`
}

type AttachContextRequest struct {
	VideoURL string `json:"video_url"`
}

type ContextResponse struct {
	Source     string `json:"source"` // "file" | "video"
	Title      string `json:"title,omitempty"`
	Characters int    `json:"characters"`
}
