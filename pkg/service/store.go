// Persistence for conversations, messages and documents
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/botconsulting/botgpt/pkg/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is the persistence the reply pipeline depends on.
type Store interface {
	LoadConversation(ctx context.Context, id string) (*db.Conversation, error)
	AppendMessage(ctx context.Context, msg *db.Message) error
	LoadMessages(ctx context.Context, conversationID string) ([]db.Message, error)
	UpdateSummary(ctx context.Context, conversationID, summary string) error
	LoadDocumentsLinkedTo(ctx context.Context, conversationID string) ([]db.Document, error)
}

// ChatStore implements Store on gorm, plus the lifecycle queries the
// HTTP layer needs.
type ChatStore struct {
	db *gorm.DB
}

// NewChatStore wraps an open database handle.
func NewChatStore(database *gorm.DB) *ChatStore {
	return &ChatStore{db: database}
}

// DB exposes the handle for migrations and tests.
func (s *ChatStore) DB() *gorm.DB {
	return s.db
}

// ========== Users ==========

// GetOrCreateUser returns the user with email, creating it on first use.
func (s *ChatStore) GetOrCreateUser(ctx context.Context, email string) (*db.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrMissingUser
	}
	var user db.User
	err := s.db.WithContext(ctx).Where(db.User{Email: email}).FirstOrCreate(&user).Error
	if err != nil {
		// Another request may have inserted the same email first.
		if retry := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; retry == nil {
			return &user, nil
		}
		return nil, fmt.Errorf("get or create user: %w", err)
	}
	return &user, nil
}

// ========== Conversations ==========

// CreateConversation inserts conv, assigning an id when empty.
func (s *ChatStore) CreateConversation(ctx context.Context, conv *db.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// LoadConversation returns ErrConversationNotFound when id is unknown.
func (s *ChatStore) LoadConversation(ctx context.Context, id string) (*db.Conversation, error) {
	var conv db.Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns a user's conversations, newest first.
func (s *ChatStore) ListConversations(ctx context.Context, userID uint, limit, offset int) ([]db.Conversation, int64, error) {
	owned := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&db.Conversation{}).Where("user_id = ?", userID)
	}

	var total int64
	if err := owned().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	var conversations []db.Conversation
	if err := owned().Order("created_at DESC").Limit(limit).Offset(offset).Find(&conversations).Error; err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, total, nil
}

// DeleteConversation removes a conversation with its messages and document links.
func (s *ChatStore) DeleteConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&db.Conversation{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("delete conversation: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrConversationNotFound
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&db.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&db.ConversationDocument{}).Error; err != nil {
			return fmt.Errorf("delete document links: %w", err)
		}
		return nil
	})
}

// UpdateSummary replaces the stored summary.
func (s *ChatStore) UpdateSummary(ctx context.Context, conversationID, summary string) error {
	result := s.db.WithContext(ctx).Model(&db.Conversation{}).
		Where("id = ?", conversationID).
		Update("summary", summary)
	if result.Error != nil {
		return fmt.Errorf("update summary: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// ========== Messages ==========

// AppendMessage inserts msg; ID and CreatedAt are filled in on success.
func (s *ChatStore) AppendMessage(ctx context.Context, msg *db.Message) error {
	if !db.ValidRole(msg.Role) {
		return fmt.Errorf("append message: invalid role %q", msg.Role)
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// LoadMessages returns the full log ordered by (created_at, id).
func (s *ChatStore) LoadMessages(ctx context.Context, conversationID string) ([]db.Message, error) {
	var messages []db.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return messages, nil
}

// ========== Documents ==========

// CreateDocument stores doc, assigning an id when empty.
func (s *ChatStore) CreateDocument(ctx context.Context, doc *db.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// LoadDocument returns ErrDocumentNotFound when id is unknown.
func (s *ChatStore) LoadDocument(ctx context.Context, id string) (*db.Document, error) {
	var doc db.Document
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("load document: %w", err)
	}
	return &doc, nil
}

// LinkDocument attaches a document to a conversation. Linking twice is a no-op.
func (s *ChatStore) LinkDocument(ctx context.Context, conversationID, documentID string) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&db.ConversationDocument{}).
		Where("conversation_id = ? AND document_id = ?", conversationID, documentID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check document link: %w", err)
	}
	if count > 0 {
		return nil
	}
	link := &db.ConversationDocument{ConversationID: conversationID, DocumentID: documentID}
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		return fmt.Errorf("link document: %w", err)
	}
	return nil
}

// LoadDocumentsLinkedTo returns linked documents in link order.
func (s *ChatStore) LoadDocumentsLinkedTo(ctx context.Context, conversationID string) ([]db.Document, error) {
	var docs []db.Document
	err := s.db.WithContext(ctx).
		Joins("JOIN conversation_documents ON conversation_documents.document_id = documents.id").
		Where("conversation_documents.conversation_id = ?", conversationID).
		Order("conversation_documents.id ASC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("load linked documents: %w", err)
	}
	return docs, nil
}
