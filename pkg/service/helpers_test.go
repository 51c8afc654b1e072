package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/botconsulting/botgpt/pkg/cache"
	"github.com/botconsulting/botgpt/pkg/db"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ChatStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	database, err := db.Open("sqlite", dsn, false)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database))
	t.Cleanup(func() { _ = db.Close(database) })
	return NewChatStore(database)
}

// fakeChatModel answers summary requests with "summary of N lines" and reply
// requests with "reply to: <last user text>". Every request is recorded.
type fakeChatModel struct {
	mu              sync.Mutex
	replyRequests   [][]*schema.Message
	summaryRequests [][]*schema.Message
	replyOptions    []*model.Options
	summaryOptions  []*model.Options
	replyErr        error
	summaryErr      error
	replyUsage      int
}

var _ model.BaseChatModel = (*fakeChatModel)(nil)

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	options := model.GetCommonOptions(nil, opts...)
	if isSummaryRequest(input) {
		f.summaryRequests = append(f.summaryRequests, input)
		f.summaryOptions = append(f.summaryOptions, options)
		if f.summaryErr != nil {
			return nil, f.summaryErr
		}
		lines := strings.Count(input[1].Content, "\n") + 1
		return schema.AssistantMessage(fmt.Sprintf("summary of %d lines", lines), nil), nil
	}

	f.replyRequests = append(f.replyRequests, input)
	f.replyOptions = append(f.replyOptions, options)
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	msg := schema.AssistantMessage("reply to: "+lastUserContent(input), nil)
	if f.replyUsage > 0 {
		msg.ResponseMeta = &schema.ResponseMeta{
			Usage: &schema.TokenUsage{CompletionTokens: f.replyUsage},
		}
	}
	return msg, nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (f *fakeChatModel) lastReplyRequest() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replyRequests) == 0 {
		return nil
	}
	return f.replyRequests[len(f.replyRequests)-1]
}

func (f *fakeChatModel) summaryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.summaryRequests)
}

// countingStore records document lookups and can fail summary writes.
type countingStore struct {
	*ChatStore
	mu             sync.Mutex
	documentLoads  int
	summaryErr     error
	summaryUpdates int
}

func (c *countingStore) LoadDocumentsLinkedTo(ctx context.Context, conversationID string) ([]db.Document, error) {
	c.mu.Lock()
	c.documentLoads++
	c.mu.Unlock()
	return c.ChatStore.LoadDocumentsLinkedTo(ctx, conversationID)
}

func (c *countingStore) UpdateSummary(ctx context.Context, conversationID, summary string) error {
	c.mu.Lock()
	c.summaryUpdates++
	err := c.summaryErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.ChatStore.UpdateSummary(ctx, conversationID, summary)
}

// pausingStore holds the first LoadConversation after the row is read until
// release is closed. Later loads pass straight through.
type pausingStore struct {
	*countingStore
	paused  atomic.Bool
	loaded  chan struct{}
	release chan struct{}
}

func (p *pausingStore) LoadConversation(ctx context.Context, id string) (*db.Conversation, error) {
	conv, err := p.countingStore.LoadConversation(ctx, id)
	if p.paused.CompareAndSwap(false, true) {
		close(p.loaded)
		<-p.release
	}
	return conv, err
}

// newPausingEnv is newTestEnv with the chat service reading through a pausingStore.
func newPausingEnv(t *testing.T) (*testEnv, *pausingStore) {
	t.Helper()
	env := newTestEnv(t)
	paused := &pausingStore{
		countingStore: env.store,
		loaded:        make(chan struct{}),
		release:       make(chan struct{}),
	}
	env.chat = NewChatService(paused, env.cache, env.model, DefaultChatConfig())
	return env, paused
}

type testEnv struct {
	store *countingStore
	cache *cache.ConversationCache
	model *fakeChatModel
	chat  *ChatService
	docs  *DocumentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := &countingStore{ChatStore: newTestStore(t)}
	conversationCache := cache.New(5 * time.Minute)
	fake := &fakeChatModel{}
	chat := NewChatService(store, conversationCache, fake, DefaultChatConfig())
	return &testEnv{
		store: store,
		cache: conversationCache,
		model: fake,
		chat:  chat,
		docs:  NewDocumentService(store.ChatStore, chat),
	}
}

func (e *testEnv) createConversation(t *testing.T, mode string) *db.Conversation {
	t.Helper()
	conv, err := e.chat.CreateConversation(context.Background(), "alice@example.com", mode, nil)
	require.NoError(t, err)
	return conv
}

func seedMessages(t *testing.T, store *ChatStore, conversationID string, n int) []db.Message {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		role := db.RoleUser
		if i%2 == 1 {
			role = db.RoleAssistant
		}
		require.NoError(t, store.AppendMessage(ctx, &db.Message{
			ConversationID: conversationID,
			Role:           role,
			Content:        fmt.Sprintf("message %d", i),
		}))
	}
	log, err := store.LoadMessages(ctx, conversationID)
	require.NoError(t, err)
	require.Len(t, log, n)
	return log
}
