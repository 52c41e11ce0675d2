package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/djorigin/rpasops/internal/compliance"
)

// ChecksHandler exposes compliance evaluation and check queries.
type ChecksHandler struct {
	engine *compliance.Engine
}

// NewChecksHandler constructs a checks handler.
func NewChecksHandler(engine *compliance.Engine) *ChecksHandler {
	return &ChecksHandler{engine: engine}
}

// Run evaluates everything currently due and returns the run report.
func (h *ChecksHandler) Run(c *gin.Context) {
	report, errRun := h.engine.RunDue(c.Request.Context(), time.Now())
	if errRun != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "compliance run failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Overdue lists (object, rule) pairs whose next evaluation has passed.
func (h *ChecksHandler) Overdue(c *gin.Context) {
	pending, errList := h.engine.GetOverdue(c.Request.Context(), time.Now())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query overdue checks failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"overdue": pending, "count": len(pending)})
}

// Failures lists failing checks with their stored failure details.
func (h *ChecksHandler) Failures(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	failures, errList := h.engine.Failures(c.Request.Context(), limit)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failures failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"failures": failures, "count": len(failures)})
}

// ObjectStatus returns the stored aggregate status for one object.
func (h *ChecksHandler) ObjectStatus(c *gin.Context) {
	objectType := strings.TrimSpace(c.Param("type"))
	objectID := strings.TrimSpace(c.Param("id"))

	status, errAggregate := h.engine.AggregateStatus(c.Request.Context(), objectType, objectID)
	if errAggregate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate status failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"object_type": objectType,
		"object_id":   objectID,
		"status":      status,
	})
}

// Evaluate runs every applicable rule against one object immediately and
// persists the results.
func (h *ChecksHandler) Evaluate(c *gin.Context) {
	objectType := strings.TrimSpace(c.Param("type"))
	objectID := strings.TrimSpace(c.Param("id"))

	result, errEvaluate := h.engine.EvaluateObject(c.Request.Context(), objectType, objectID)
	if errEvaluate != nil {
		if errors.Is(errEvaluate, compliance.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluate object failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
