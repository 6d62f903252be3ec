package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetAnonID issues a fresh anonymous participant identity and its
// bearer token. Callers must hold a token before joining; this is the
// "identity ready" signal.
func (h *Handler) GetAnonID(c *gin.Context) {
	participantID, token, err := h.Issuer.Issue()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": participantID})
}

// bearerToken extracts the token from the Authorization header, falling
// back to the "token" query parameter for browser WebSocket clients
// that cannot set headers.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return c.Query("token")
}
