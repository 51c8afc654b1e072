// HTTP API types for conversations, messages and documents
package models

import (
	"github.com/botconsulting/botgpt/pkg/db"
)

// ========== Type aliases for database types ==========
// These allow handlers to use models.Message instead of db.Message

type Conversation = db.Conversation
type Message = db.Message
type Document = db.Document

// ========== Request types ==========

// CreateConversationRequest creates a conversation for the calling user.
type CreateConversationRequest struct {
	Mode  string  `json:"mode"` // "open" (default) or "rag"
	Title *string `json:"title,omitempty"`
}

// SendMessageRequest carries one user turn.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateDocumentRequest ingests a plain-text document.
type CreateDocumentRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content" binding:"required"`
}

// AttachDocumentRequest links an existing document to a conversation.
type AttachDocumentRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
}

// ========== Response types ==========

// ConversationListResponse is returned by GET /conversations.
type ConversationListResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int64          `json:"total"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
}

// MessageListResponse is returned by GET /conversations/:id/messages.
type MessageListResponse struct {
	Messages []Message `json:"messages"`
}

// DocumentListResponse is returned by GET /conversations/:id/documents.
type DocumentListResponse struct {
	Documents []Document `json:"documents"`
}
