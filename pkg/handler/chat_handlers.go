// Conversation and message HTTP handlers
package handler

import (
	"net/http"
	"strconv"

	"github.com/botconsulting/botgpt/pkg/models"
	"github.com/botconsulting/botgpt/pkg/service"
	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ChatHandler handles conversation and message requests
type ChatHandler struct {
	chatService     *service.ChatService
	documentService *service.DocumentService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService, documentService *service.DocumentService) *ChatHandler {
	return &ChatHandler{
		chatService:     chatService,
		documentService: documentService,
	}
}

// RegisterRoutes registers conversation routes. Every route requires X-User-Email.
func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	conversations := r.Group("/conversations", RequireUser())
	{
		conversations.POST("", h.CreateConversation)
		conversations.GET("", h.ListConversations)
		conversations.GET("/:id", h.GetConversation)
		conversations.DELETE("/:id", h.DeleteConversation)

		// Messages
		conversations.POST("/:id/messages", h.SendMessage)
		conversations.GET("/:id/messages", h.GetMessages)

		// Documents
		conversations.POST("/:id/documents", h.AttachDocument)
		conversations.GET("/:id/documents", h.ListDocuments)
	}
}

// CreateConversation creates a new conversation
// POST /conversations
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.chatService.CreateConversation(c.Request.Context(), userEmail(c), req.Mode, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// ListConversations lists the caller's conversations, newest first
// GET /conversations?limit=20&offset=0
func (h *ChatHandler) ListConversations(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit < 1 || limit > maxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	conversations, total, err := h.chatService.ListConversations(c.Request.Context(), userEmail(c), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}

	c.JSON(http.StatusOK, models.ConversationListResponse{
		Conversations: conversations,
		Total:         total,
		Limit:         limit,
		Offset:        offset,
	})
}

// GetConversation gets a conversation by ID
// GET /conversations/:id
func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := h.chatService.GetOwnedConversation(c.Request.Context(), c.Param("id"), userEmail(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// DeleteConversation deletes a conversation with its messages
// DELETE /conversations/:id
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.chatService.GetOwnedConversation(c.Request.Context(), id, userEmail(c)); err != nil {
		writeError(c, err)
		return
	}

	if err := h.chatService.DeleteConversation(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// SendMessage adds a user message and returns the assistant reply
// POST /conversations/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	id := c.Param("id")

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.chatService.GetOwnedConversation(c.Request.Context(), id, userEmail(c)); err != nil {
		writeError(c, err)
		return
	}

	reply, err := h.chatService.HandleUserMessage(c.Request.Context(), id, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, reply)
}

// GetMessages gets messages for a conversation
// GET /conversations/:id/messages
func (h *ChatHandler) GetMessages(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.chatService.GetOwnedConversation(c.Request.Context(), id, userEmail(c)); err != nil {
		writeError(c, err)
		return
	}

	messages, err := h.chatService.GetMessages(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	c.JSON(http.StatusOK, models.MessageListResponse{Messages: messages})
}

// AttachDocument links a document to a rag conversation
// POST /conversations/:id/documents
func (h *ChatHandler) AttachDocument(c *gin.Context) {
	id := c.Param("id")

	var req models.AttachDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.chatService.GetOwnedConversation(c.Request.Context(), id, userEmail(c)); err != nil {
		writeError(c, err)
		return
	}

	if err := h.documentService.AttachDocument(c.Request.Context(), id, req.DocumentID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"conversation_id": id, "document_id": req.DocumentID})
}

// ListDocuments lists documents linked to a conversation
// GET /conversations/:id/documents
func (h *ChatHandler) ListDocuments(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.chatService.GetOwnedConversation(c.Request.Context(), id, userEmail(c)); err != nil {
		writeError(c, err)
		return
	}

	docs, err := h.documentService.ListDocuments(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}

	c.JSON(http.StatusOK, models.DocumentListResponse{Documents: docs})
}
