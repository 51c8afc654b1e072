package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/botconsulting/botgpt/pkg/service"
	"github.com/gin-gonic/gin"
)

// UserEmailHeader identifies the acting user.
const UserEmailHeader = "X-User-Email"

const userEmailKey = "userEmail"

// RequireUser rejects requests without an X-User-Email header and stores the
// email on the context for the handlers.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := strings.TrimSpace(c.GetHeader(UserEmailHeader))
		if email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserEmailHeader + " header"})
			return
		}
		c.Set(userEmailKey, email)
		c.Next()
	}
}

func userEmail(c *gin.Context) string {
	return c.GetString(userEmailKey)
}

// writeError maps service errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrConversationNotFound), errors.Is(err, service.ErrDocumentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrMissingUser):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidMode), errors.Is(err, service.ErrEmptyContent):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotRAGConversation):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
