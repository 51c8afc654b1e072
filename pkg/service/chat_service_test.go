package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/botconsulting/botgpt/pkg/db"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	title := "  Trip planning  "

	conv, err := env.chat.CreateConversation(ctx, "alice@example.com", "RAG", &title)
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, db.ModeRAG, conv.Mode)
	require.NotNil(t, conv.Title)
	assert.Equal(t, "Trip planning", *conv.Title)

	cached, ok := env.cache.Lookup(conv.ID)
	require.True(t, ok)
	assert.Equal(t, conv.UserID, cached.UserID)
}

func TestCreateConversation_InvalidMode(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.chat.CreateConversation(context.Background(), "alice@example.com", "hybrid", nil)
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestCreateConversation_MissingUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.chat.CreateConversation(context.Background(), " ", "open", nil)
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestGetOwnedConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "open")

	got, err := env.chat.GetOwnedConversation(ctx, conv.ID, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = env.chat.GetOwnedConversation(ctx, conv.ID, "mallory@example.com")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.chat.GetOwnedConversation(ctx, "missing", "alice@example.com")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestGetConversation_PopulatesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "open")
	env.cache.Invalidate(conv.ID)

	_, err := env.chat.GetConversation(ctx, conv.ID)
	require.NoError(t, err)

	_, ok := env.cache.Lookup(conv.ID)
	assert.True(t, ok)
}

func TestGetConversation_LoadOverlappingDeleteIsNotCached(t *testing.T) {
	env, paused := newPausingEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "open")
	env.cache.Invalidate(conv.ID)

	done := make(chan error, 1)
	go func() {
		_, err := env.chat.GetConversation(ctx, conv.ID)
		done <- err
	}()
	<-paused.loaded
	require.NoError(t, env.chat.DeleteConversation(ctx, conv.ID))
	close(paused.release)
	require.NoError(t, <-done)

	_, ok := env.cache.Lookup(conv.ID)
	assert.False(t, ok, "deleted conversation must not be cached")

	_, err := env.chat.HandleUserMessage(ctx, conv.ID, "anyone there?")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	var count int64
	require.NoError(t, env.store.DB().Model(&db.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetConversation_LoadOverlappingSummaryUpdateIsNotCached(t *testing.T) {
	env, paused := newPausingEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "open")
	seedMessages(t, env.store.ChatStore, conv.ID, DefaultWindowSize)
	env.cache.Invalidate(conv.ID)

	done := make(chan error, 1)
	go func() {
		_, err := env.chat.GetConversation(ctx, conv.ID)
		done <- err
	}()
	<-paused.loaded
	_, err := env.chat.HandleUserMessage(ctx, conv.ID, "next question")
	require.NoError(t, err)
	close(paused.release)
	require.NoError(t, <-done)

	stored, err := env.store.LoadConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, "summary of 1 lines", stored.SummaryText())

	if cached, ok := env.cache.Lookup(conv.ID); ok {
		assert.Equal(t, stored.SummaryText(), cached.SummaryText())
	}

	_, err = env.chat.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	cached, ok := env.cache.Lookup(conv.ID)
	require.True(t, ok)
	assert.Equal(t, stored.SummaryText(), cached.SummaryText())
}

func TestListConversations_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, env.createConversation(t, "open").ID)
	}
	_, err := env.chat.CreateConversation(ctx, "bob@example.com", "open", nil)
	require.NoError(t, err)

	convs, total, err := env.chat.ListConversations(ctx, "alice@example.com", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, convs, 2)
	assert.Equal(t, ids[2], convs[0].ID)
	assert.Equal(t, ids[1], convs[1].ID)

	rest, _, err := env.chat.ListConversations(ctx, "alice@example.com", 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[0], rest[0].ID)
}

func TestDeleteConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "rag")

	_, err := env.chat.HandleUserMessage(ctx, conv.ID, "hello")
	require.NoError(t, err)
	doc, err := env.docs.CreateDocument(ctx, "notes.txt", "some notes")
	require.NoError(t, err)
	require.NoError(t, env.docs.AttachDocument(ctx, conv.ID, doc.ID))

	require.NoError(t, env.chat.DeleteConversation(ctx, conv.ID))

	_, ok := env.cache.Lookup(conv.ID)
	assert.False(t, ok)
	_, err = env.chat.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	msgs, err := env.store.LoadMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	docs, err := env.store.LoadDocumentsLinkedTo(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	assert.ErrorIs(t, env.chat.DeleteConversation(ctx, conv.ID), ErrConversationNotFound)
}

func TestHandleUserMessage_FirstTurn(t *testing.T) {
	env := newTestEnv(t)
	env.model.replyUsage = 7
	ctx := context.Background()
	conv := env.createConversation(t, "open")

	reply, err := env.chat.HandleUserMessage(ctx, conv.ID, "What is Go?")
	require.NoError(t, err)
	assert.Equal(t, db.RoleAssistant, reply.Role)
	assert.Equal(t, "reply to: What is Go?", reply.Content)
	require.NotNil(t, reply.TokenCount)
	assert.Equal(t, 7, *reply.TokenCount)

	msgs, err := env.chat.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, db.RoleUser, msgs[0].Role)
	require.NotNil(t, msgs[0].TokenCount)
	assert.Equal(t, EstimateTokens("What is Go?"), *msgs[0].TokenCount)
	assert.Equal(t, reply.ID, msgs[1].ID)

	req := env.model.lastReplyRequest()
	require.Len(t, req, 3)
	assert.Equal(t, SystemPrompt, req[0].Content)
	assert.Equal(t, "What is Go?", req[1].Content)
	assert.Equal(t, "What is Go?", req[2].Content)

	opts := env.model.replyOptions[0]
	require.NotNil(t, opts.Temperature)
	assert.InDelta(t, 0.7, *opts.Temperature, 1e-6)
	assert.Equal(t, 512, *opts.MaxTokens)
	assert.Equal(t, 0, env.store.documentLoads, "open conversations never consult documents")
}

func TestHandleUserMessage_ElevenTurns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "open")

	for i := 1; i <= 11; i++ {
		_, err := env.chat.HandleUserMessage(ctx, conv.ID, fmt.Sprintf("question %d", i))
		require.NoError(t, err)

		_, cached := env.cache.Lookup(conv.ID)
		if i >= 6 {
			// the log first exceeds the window on turn 6
			assert.False(t, cached, "cache entry should be invalidated after a summary on turn %d", i)
			_, err := env.chat.GetConversation(ctx, conv.ID)
			require.NoError(t, err)
		}
	}

	stored, err := env.store.LoadConversation(ctx, conv.ID)
	require.NoError(t, err)
	// 21 messages in the log at the last turn, 11 of them older than the window
	assert.Equal(t, "summary of 11 lines", stored.SummaryText())

	req := env.model.lastReplyRequest()
	require.Len(t, req, 13)
	assert.Equal(t, SystemPrompt, req[0].Content)
	assert.Equal(t, "Conversation summary: summary of 11 lines", req[1].Content)
	assert.Equal(t, schema.Assistant, req[2].Role, "window starts at the newest 10")
	assert.Equal(t, "question 11", req[11].Content)
	assert.Equal(t, schema.User, req[12].Role)
	assert.Equal(t, "question 11", req[12].Content)

	msgs, err := env.chat.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 22)
}

func TestHandleUserMessage_SummaryFailureDoesNotFailTurn(t *testing.T) {
	env := newTestEnv(t)
	env.model.summaryErr = errors.New("summary model down")
	ctx := context.Background()
	conv := env.createConversation(t, "open")
	seedMessages(t, env.store.ChatStore, conv.ID, 12)

	reply, err := env.chat.HandleUserMessage(ctx, conv.ID, "still there?")
	require.NoError(t, err)
	assert.Equal(t, "reply to: still there?", reply.Content)

	req := env.model.lastReplyRequest()
	// system prompt, 10 recent, new user text; no summary message
	require.Len(t, req, 12)
	for _, m := range req[1:] {
		assert.False(t, strings.HasPrefix(m.Content, "Conversation summary:"))
	}
}

func TestHandleUserMessage_SummaryWriteFailureKeepsCache(t *testing.T) {
	env := newTestEnv(t)
	env.store.summaryErr = errors.New("read only")
	ctx := context.Background()
	conv := env.createConversation(t, "open")
	seedMessages(t, env.store.ChatStore, conv.ID, 12)

	_, err := env.chat.HandleUserMessage(ctx, conv.ID, "next")
	require.NoError(t, err)

	_, ok := env.cache.Lookup(conv.ID)
	assert.True(t, ok)
	stored, err := env.store.LoadConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Summary)
}

func TestHandleUserMessage_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.chat.HandleUserMessage(ctx, "no-such-conversation", "hello")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	var count int64
	require.NoError(t, env.store.DB().Model(&db.Message{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Nil(t, env.model.lastReplyRequest())
}

func TestHandleUserMessage_EmptyContent(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "open")

	_, err := env.chat.HandleUserMessage(context.Background(), conv.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = env.chat.HandleUserMessage(context.Background(), "no-such-conversation", "   ")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestHandleUserMessage_LLMFailureFallsBack(t *testing.T) {
	env := newTestEnv(t)
	env.model.replyErr = errors.New("connection refused")
	ctx := context.Background()
	conv := env.createConversation(t, "open")

	reply, err := env.chat.HandleUserMessage(ctx, conv.ID, "Tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, "(error) LLM call failed; using fallback response for: Tell me a joke", reply.Content)

	msgs, err := env.chat.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, reply.Content, msgs[1].Content)
}

func TestHandleUserMessage_RAGWithoutDocuments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "rag")

	reply, err := env.chat.HandleUserMessage(ctx, conv.ID, "summarize the docs")
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Content)
	assert.Equal(t, 1, env.store.documentLoads)

	req := env.model.lastReplyRequest()
	require.Len(t, req, 3)
	for _, m := range req {
		assert.False(t, strings.HasPrefix(m.Content, "Use the following context"))
	}
}

func TestHandleUserMessage_RAGWithDocuments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "rag")

	var docIDs []string
	for i, content := range []string{"first doc", "second doc", "third doc"} {
		doc, err := env.docs.CreateDocument(ctx, fmt.Sprintf("d%d.txt", i), content)
		require.NoError(t, err)
		require.NoError(t, env.docs.AttachDocument(ctx, conv.ID, doc.ID))
		docIDs = append(docIDs, doc.ID)
	}

	_, err := env.chat.HandleUserMessage(ctx, conv.ID, "summarize please")
	require.NoError(t, err)

	req := env.model.lastReplyRequest()
	require.Len(t, req, 4)
	assert.Equal(t, schema.System, req[1].Role)
	assert.Equal(t, "Use the following context to answer:\nfirst doc\nsecond doc", req[1].Content)
}

func TestHandleUserMessage_MockProvider(t *testing.T) {
	store := newTestStore(t)
	env := newTestEnv(t)
	chat := NewChatService(store, env.cache, NewEchoChatModel(), DefaultChatConfig())

	conv, err := chat.CreateConversation(context.Background(), "alice@example.com", "open", nil)
	require.NoError(t, err)

	reply, err := chat.HandleUserMessage(context.Background(), conv.ID, "ping")
	require.NoError(t, err)
	assert.Equal(t, "(mock) Echo: ping", reply.Content)
}
