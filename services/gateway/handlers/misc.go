package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianSearch/services/gateway/search"
)

// HandleHealthCheck reports process liveness.
func HandleHealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// HandleListFocusModes returns the registered focus modes in order.
func HandleListFocusModes(registry *search.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"focusModes": registry.FocusModes()})
	}
}
