package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/djorigin/rpasops/internal/compliance"
)

// DashboardHandler serves the system-wide compliance summary.
type DashboardHandler struct {
	engine *compliance.Engine
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(engine *compliance.Engine) *DashboardHandler {
	return &DashboardHandler{engine: engine}
}

// Dashboard returns check counts by status, percentages, the active rule
// summary, and the never-evaluated pair count.
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	data, errLoad := h.engine.Dashboard(c.Request.Context())
	if errLoad != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load dashboard failed"})
		return
	}
	c.JSON(http.StatusOK, data)
}
