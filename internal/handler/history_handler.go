package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"loftwire/internal/repo"
)

// HistoryHandler serves paginated channel history over plain HTTP, for
// clients scrolling past the backlog delivered over the socket.
type HistoryHandler interface {
	GetChannelMessages(c *gin.Context)
}

type historyHandler struct {
	store repo.Store
}

func NewHistoryHandler(store repo.Store) HistoryHandler {
	return &historyHandler{
		store: store,
	}
}

func (h *historyHandler) GetChannelMessages(c *gin.Context) {
	channelID := c.Param("channelId")
	page := c.DefaultQuery("page", "1")
	pageNumber, err := strconv.ParseInt(page, 10, 64)
	if err != nil || pageNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid page number",
		})
		return
	}

	result, err := h.store.ChannelMessages(c.Request.Context(), channelID, pageNumber)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get messages",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":   result.Data,
		"page":       result.Page,
		"totalPages": result.TotalPages,
		"total":      result.Total,
	})
}
