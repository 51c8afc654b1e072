package handler

import (
	"net/http"

	"github.com/botconsulting/botgpt/pkg/models"
	"github.com/botconsulting/botgpt/pkg/service"
	"github.com/gin-gonic/gin"
)

// DocumentHandler ingests documents for RAG conversations.
type DocumentHandler struct {
	documentService *service.DocumentService
}

func NewDocumentHandler(documentService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) RegisterRoutes(r *gin.RouterGroup) {
	documents := r.Group("/documents", RequireUser())
	documents.POST("", h.CreateDocument)
}

// CreateDocument stores a plain-text document
// POST /documents
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var req models.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.documentService.CreateDocument(c.Request.Context(), req.Filename, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}
