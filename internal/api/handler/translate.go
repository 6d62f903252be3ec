package handler

import (
	"errors"
	"net/http"

	"driftchat/backend/internal/translate"

	"github.com/gin-gonic/gin"
)

// TranslateMessage proxies one message through the translation service.
// Invalid input gets a 400, a missing upstream credential a 500; the
// client is expected to fall back to the original text on any failure.
func (h *Handler) TranslateMessage(c *gin.Context) {
	var req translate.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.Translator.Translate(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, translate.ErrInvalidText),
		errors.Is(err, translate.ErrTextTooLong),
		errors.Is(err, translate.ErrInvalidLanguage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
