package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/botconsulting/botgpt/pkg/db"
	"github.com/botconsulting/botgpt/pkg/utils"
)

// DocumentService ingests plain-text documents and links them to RAG
// conversations.
type DocumentService struct {
	store  *ChatStore
	chats  *ChatService
	logger *slog.Logger
}

func NewDocumentService(store *ChatStore, chats *ChatService) *DocumentService {
	return &DocumentService{
		store:  store,
		chats:  chats,
		logger: utils.GetLogger(),
	}
}

// CreateDocument stores a document. Content must not be blank.
func (s *DocumentService) CreateDocument(ctx context.Context, filename, content string) (*db.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	doc := &db.Document{
		Filename: strings.TrimSpace(filename),
		Content:  content,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("Document stored",
		"documentID", doc.ID,
		"filename", doc.Filename,
		"bytes", len(content))
	return doc, nil
}

// AttachDocument links documentID to a rag conversation.
func (s *DocumentService) AttachDocument(ctx context.Context, conversationID, documentID string) error {
	conv, err := s.chats.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Mode != db.ModeRAG {
		return ErrNotRAGConversation
	}
	if _, err := s.store.LoadDocument(ctx, documentID); err != nil {
		return err
	}
	return s.store.LinkDocument(ctx, conversationID, documentID)
}

// ListDocuments returns the documents linked to a conversation.
func (s *DocumentService) ListDocuments(ctx context.Context, conversationID string) ([]db.Document, error) {
	if _, err := s.chats.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.store.LoadDocumentsLinkedTo(ctx, conversationID)
}
