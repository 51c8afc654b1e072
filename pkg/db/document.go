// Database models for retrieval documents
package db

import "time"

// Document is an ingested text file. It is immutable once stored.
type Document struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Filename  string    `json:"filename" gorm:"size:255;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (Document) TableName() string {
	return "documents"
}

// ConversationDocument links a document to a RAG conversation.
type ConversationDocument struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ConversationID string    `json:"conversation_id" gorm:"uniqueIndex:idx_conversation_document;size:36;not null"`
	DocumentID     string    `json:"document_id" gorm:"uniqueIndex:idx_conversation_document;index;size:36;not null"`
	CreatedAt      time.Time `json:"created_at"`
}

func (ConversationDocument) TableName() string {
	return "conversation_documents"
}
