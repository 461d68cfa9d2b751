package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *LibraryHandler) dashboardStats(c *gin.Context) {
	stats, err := h.svc.Dashboard.Stats(c.Request.Context(), c.Query("timeRange"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
