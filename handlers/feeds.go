package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleFeedWebSocket streams violation events. ?reporter= narrows the feed.
func (h *Handler) HandleFeedWebSocket(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Feed hub not initialized"})
		return
	}

	if err := h.feed.ServeWS(c.Writer, c.Request, c.ClientIP()); err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("remote", c.ClientIP()), zap.Error(err))
	}
}

// GetFeedStats returns feed hub statistics
func (h *Handler) GetFeedStats(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusOK, gin.H{
			"enabled": false,
		})
		return
	}

	stats := h.feed.Stats()
	c.JSON(http.StatusOK, gin.H{
		"enabled":   true,
		"clients":   stats.Clients,
		"delivered": stats.Delivered,
		"dropped":   stats.Dropped,
	})
}
