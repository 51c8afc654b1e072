// Database models for chat conversations
package db

import (
	"fmt"
	"strings"
	"time"
)

// ConversationMode selects how replies are grounded. It is fixed at creation.
type ConversationMode string

const (
	ModeOpen ConversationMode = "open" // plain chat, documents are never consulted
	ModeRAG  ConversationMode = "rag"  // replies may use linked documents as context
)

// ParseMode validates a mode name. An empty name means ModeOpen.
func ParseMode(s string) (ConversationMode, error) {
	switch ConversationMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeOpen:
		return ModeOpen, nil
	case ModeRAG:
		return ModeRAG, nil
	default:
		return "", fmt.Errorf("unknown conversation mode %q", s)
	}
}

// Conversation represents a chat conversation owned by a user
type Conversation struct {
	ID        string           `json:"id" gorm:"primaryKey;size:36"`
	UserID    uint             `json:"user_id" gorm:"index;not null"`
	Mode      ConversationMode `json:"mode" gorm:"size:10;not null;default:'open'"`
	Title     *string          `json:"title" gorm:"size:200"`
	Summary   *string          `json:"summary,omitempty" gorm:"type:text"`
	CreatedAt time.Time        `json:"created_at" gorm:"index"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// SummaryText returns the summary or "" when none has been generated.
func (c *Conversation) SummaryText() string {
	if c == nil || c.Summary == nil {
		return ""
	}
	return *c.Summary
}
