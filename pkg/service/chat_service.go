// Chat service - conversation lifecycle and the per-turn reply pipeline
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/botconsulting/botgpt/pkg/cache"
	"github.com/botconsulting/botgpt/pkg/db"
	"github.com/botconsulting/botgpt/pkg/utils"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrMissingUser          = errors.New("user email is required")
	ErrForbidden            = errors.New("conversation belongs to another user")
	ErrInvalidMode          = errors.New("invalid conversation mode")
	ErrEmptyContent         = errors.New("message content is empty")
	ErrNotRAGConversation   = errors.New("documents can only be attached to rag conversations")
)

// ConversationStore is the persistence the chat service uses.
type ConversationStore interface {
	Store
	GetOrCreateUser(ctx context.Context, email string) (*db.User, error)
	CreateConversation(ctx context.Context, conv *db.Conversation) error
	ListConversations(ctx context.Context, userID uint, limit, offset int) ([]db.Conversation, int64, error)
	DeleteConversation(ctx context.Context, id string) error
}

// ChatConfig holds the pipeline tunables.
type ChatConfig struct {
	WindowSize    int
	RetrievalTopK int
	Temperature   float32
	MaxTokens     int
	Summarizer    SummarizerConfig
}

// DefaultChatConfig returns the settings used when none are configured.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		WindowSize:    DefaultWindowSize,
		RetrievalTopK: DefaultRetrievalTopK,
		Temperature:   0.7,
		MaxTokens:     512,
		Summarizer:    DefaultSummarizerConfig(),
	}
}

// ChatService owns conversations and produces assistant replies.
type ChatService struct {
	store     ConversationStore
	cache     *cache.ConversationCache
	chatModel model.BaseChatModel
	window    *WindowManager
	config    ChatConfig
	turns     *turnLock
	logger    *slog.Logger
}

// NewChatService wires the reply pipeline. chatModel serves both replies and summaries.
func NewChatService(store ConversationStore, conversationCache *cache.ConversationCache, chatModel model.BaseChatModel, cfg ChatConfig) *ChatService {
	summarizer := NewSummarizer(chatModel, cfg.Summarizer)
	return &ChatService{
		store:     store,
		cache:     conversationCache,
		chatModel: chatModel,
		window:    NewWindowManager(cfg.WindowSize, summarizer, store),
		config:    cfg,
		turns:     newTurnLock(),
		logger:    utils.GetLogger(),
	}
}

// ========== Conversation Management ==========

// CreateConversation creates a conversation owned by email, creating the
// user on first use.
func (s *ChatService) CreateConversation(ctx context.Context, email, mode string, title *string) (*db.Conversation, error) {
	parsed, err := db.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	user, err := s.store.GetOrCreateUser(ctx, email)
	if err != nil {
		return nil, err
	}

	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			title = nil
		} else {
			title = &trimmed
		}
	}

	conv := &db.Conversation{
		UserID: user.ID,
		Mode:   parsed,
		Title:  title,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}

	s.cache.Store(conv.ID, *conv)

	s.logger.Info("Conversation created",
		"conversationID", conv.ID,
		"userID", user.ID,
		"mode", conv.Mode)

	return conv, nil
}

// GetConversation loads a conversation, serving hot ones from the cache.
// A load that overlaps a delete or summary update is returned but not cached.
func (s *ChatService) GetConversation(ctx context.Context, id string) (*db.Conversation, error) {
	if conv, ok := s.cache.Lookup(id); ok {
		return &conv, nil
	}
	gen := s.cache.Generation()
	conv, err := s.store.LoadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.StoreIfCurrent(id, gen, *conv)
	return conv, nil
}

// GetOwnedConversation loads id and checks that email owns it.
func (s *ChatService) GetOwnedConversation(ctx context.Context, id, email string) (*db.Conversation, error) {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetOrCreateUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if conv.UserID != user.ID {
		return nil, ErrForbidden
	}
	return conv, nil
}

// ListConversations returns the caller's conversations, newest first.
func (s *ChatService) ListConversations(ctx context.Context, email string, limit, offset int) ([]db.Conversation, int64, error) {
	user, err := s.store.GetOrCreateUser(ctx, email)
	if err != nil {
		return nil, 0, err
	}
	return s.store.ListConversations(ctx, user.ID, limit, offset)
}

// DeleteConversation removes a conversation with its messages and links and
// drops its cache entry.
func (s *ChatService) DeleteConversation(ctx context.Context, id string) error {
	unlock := s.turns.Lock(id)
	defer unlock()

	err := s.store.DeleteConversation(ctx, id)
	s.cache.Invalidate(id)
	if err != nil {
		return err
	}

	s.logger.Info("Conversation deleted", "conversationID", id)
	return nil
}

// GetMessages returns the full log of a conversation.
func (s *ChatService) GetMessages(ctx context.Context, conversationID string) ([]db.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.store.LoadMessages(ctx, conversationID)
}

// ========== Reply Pipeline ==========

// HandleUserMessage records text as a user message, asks the model for a reply
// and records that reply. A failed model call is replaced by a fallback reply
// rather than returned. Turns on the same conversation run one at a time.
//
// The user message is committed before the model is called, so a cancelled or
// failed turn leaves it in the log without a reply.
func (s *ChatService) HandleUserMessage(ctx context.Context, conversationID, text string) (*db.Message, error) {
	unlock := s.turns.Lock(conversationID)
	defer unlock()

	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}

	tokens := EstimateTokens(text)
	userMsg := &db.Message{
		ConversationID: conv.ID,
		Role:           db.RoleUser,
		Content:        text,
		TokenCount:     &tokens,
	}
	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	history, err := s.store.LoadMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	window := s.window.Prepare(ctx, *conv, history)
	if window.Summarized {
		s.cache.Invalidate(conv.ID)
	}

	var chunks []string
	if conv.Mode == db.ModeRAG {
		docs, err := s.store.LoadDocumentsLinkedTo(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		if len(docs) > 0 {
			chunks = Retrieve(docs, text, s.config.RetrievalTopK)
		}
	}

	prompt := BuildPrompt(window.Conversation.SummaryText(), chunks, window.Recent, text)

	s.logger.Info("Calling LLM",
		"conversationID", conv.ID,
		"mode", conv.Mode,
		"messages", len(prompt),
		"contextChunks", len(chunks))

	reply, replyTokens := s.generateReply(ctx, conv.ID, prompt, text)

	assistantMsg := &db.Message{
		ConversationID: conv.ID,
		Role:           db.RoleAssistant,
		Content:        reply,
		TokenCount:     &replyTokens,
	}
	if err := s.store.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}

	return assistantMsg, nil
}

// generateReply calls the model, substituting the fallback reply on failure.
// The token count comes from provider usage when reported.
func (s *ChatService) generateReply(ctx context.Context, conversationID string, prompt []*schema.Message, userText string) (string, int) {
	resp, err := s.chatModel.Generate(ctx, prompt,
		model.WithTemperature(s.config.Temperature),
		model.WithMaxTokens(s.config.MaxTokens),
	)
	if err == nil && resp == nil {
		err = errors.New("model returned no message")
	}
	if err != nil {
		s.logger.Error("LLM call failed, using fallback reply",
			"conversationID", conversationID,
			"error", err)
		reply := FallbackReply(userText)
		return reply, EstimateTokens(reply)
	}

	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil && resp.ResponseMeta.Usage.CompletionTokens > 0 {
		return resp.Content, resp.ResponseMeta.Usage.CompletionTokens
	}
	return resp.Content, EstimateTokens(resp.Content)
}
