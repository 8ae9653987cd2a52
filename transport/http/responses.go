package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope messages, kept stable for API consumers.
const (
	MessageStatus400 = "One or more validation errors occurred."
	MessageStatus401 = "Authentication credentials were missing or incorrect."
	MessageStatus403 = "The request is understood, but it has been refused or access is not allowed."
	MessageStatus500 = "Something went wrong."
)

// FieldError is one entry of a validation error list.
type FieldError struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func successMessage(op string) string {
	return "Successful " + op + "."
}

func respondSuccess(c *gin.Context, op string, extra gin.H) {
	body := gin.H{"success": true, "message": successMessage(op)}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func respondValidationErrors(c *gin.Context, errs []FieldError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": MessageStatus400,
		"errors":  errs,
	})
}

// respondUnauthorized is deliberately uniform: which verification check
// failed stays in the logs, never in the response.
func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": MessageStatus401})
}

func respondForbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"success": false, "message": MessageStatus403})
}

// respondServerError never echoes internal error text to the caller.
func respondServerError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": MessageStatus500})
}
