package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func respondFail(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Message: message})
}

func abortFail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message})
}
