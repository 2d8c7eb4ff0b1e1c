package approuters

import (
	"github.com/gin-gonic/gin"

	"loftwire/internal/configuration"
)

// HistoryRouters sets up channel history API routes
func HistoryRouters(router *gin.Engine, container *configuration.Container) {
	historyGroup := router.Group("/api/channels")
	{
		historyGroup.GET("/:channelId/messages", container.HistoryHandler.GetChannelMessages)
	}
}
