// Database models for chat messages
package db

import "time"

// Message is one immutable entry of a conversation log.
// Messages are ordered by (created_at, id) within a conversation.
type Message struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ConversationID string    `json:"conversation_id" gorm:"index:idx_message_conversation_created;size:36;not null"`
	Role           string    `json:"role" gorm:"size:20;not null"` // user, assistant, system
	Content        string    `json:"content" gorm:"type:text;not null"`
	TokenCount     *int      `json:"token_count,omitempty"`
	CreatedAt      time.Time `json:"created_at" gorm:"index:idx_message_conversation_created"`
}

func (Message) TableName() string {
	return "messages"
}

// Message roles (OpenAI standard)
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ValidRole reports whether role is one a stored message may carry.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
