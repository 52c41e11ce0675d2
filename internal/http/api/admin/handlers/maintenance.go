package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/maintenance"
	"github.com/djorigin/rpasops/internal/models"
)

// MaintenanceHandler manages schedules and work items.
type MaintenanceHandler struct {
	db     *gorm.DB
	engine *maintenance.Engine
}

// NewMaintenanceHandler constructs a maintenance handler.
func NewMaintenanceHandler(db *gorm.DB, engine *maintenance.Engine) *MaintenanceHandler {
	return &MaintenanceHandler{db: db, engine: engine}
}

// ListSchedules returns all maintenance schedules.
func (h *MaintenanceHandler) ListSchedules(c *gin.Context) {
	var schedules []models.MaintenanceSchedule
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("aircraft_id ASC, name ASC").
		Find(&schedules).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query schedules failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

type schedulePayload struct {
	AircraftID         uint64   `json:"aircraft_id" binding:"required"`
	AircraftModel      string   `json:"aircraft_model"`
	Name               string   `json:"name" binding:"required"`
	ScheduleType       string   `json:"schedule_type" binding:"required"`
	Item               string   `json:"item" binding:"required"`
	Instructions       string   `json:"instructions"`
	IntervalDays       *int     `json:"interval_days"`
	IntervalHours      *float64 `json:"interval_hours"`
	AdvanceNoticeDays  *int     `json:"advance_notice_days"`
	AdvanceNoticeHours *float64 `json:"advance_notice_hours"`
	Priority           string   `json:"priority"`
	AutoGenerate       *bool    `json:"auto_generate"`
}

// CreateSchedule stores a new trigger rule.
func (h *MaintenanceHandler) CreateSchedule(c *gin.Context) {
	var payload schedulePayload
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}

	scheduleType := models.ScheduleType(payload.ScheduleType)
	switch scheduleType {
	case models.ScheduleCalendar:
		if payload.IntervalDays == nil || *payload.IntervalDays <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "calendar schedules require a positive interval_days"})
			return
		}
	case models.ScheduleFlightHours:
		if payload.IntervalHours == nil || *payload.IntervalHours <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "flight hour schedules require a positive interval_hours"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "schedule_type must be calendar or flight_hours"})
		return
	}

	var aircraft models.Aircraft
	if errFind := h.db.WithContext(c.Request.Context()).
		First(&aircraft, "id = ?", payload.AircraftID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown aircraft"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query aircraft failed"})
		return
	}

	sched := models.MaintenanceSchedule{
		AircraftID:         aircraft.ID,
		AircraftModel:      aircraft.Model,
		Name:               strings.TrimSpace(payload.Name),
		ScheduleType:       scheduleType,
		Item:               strings.TrimSpace(payload.Item),
		Instructions:       payload.Instructions,
		IntervalDays:       payload.IntervalDays,
		IntervalHours:      payload.IntervalHours,
		AdvanceNoticeDays:  7,
		AdvanceNoticeHours: 5,
		Priority:           models.PriorityRoutine,
		AutoGenerate:       true,
		IsActive:           true,
	}
	if payload.AircraftModel != "" {
		sched.AircraftModel = payload.AircraftModel
	}
	if payload.AdvanceNoticeDays != nil {
		sched.AdvanceNoticeDays = *payload.AdvanceNoticeDays
	}
	if payload.AdvanceNoticeHours != nil {
		sched.AdvanceNoticeHours = *payload.AdvanceNoticeHours
	}
	if payload.Priority != "" {
		sched.Priority = payload.Priority
	}
	if payload.AutoGenerate != nil {
		sched.AutoGenerate = *payload.AutoGenerate
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&sched).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create schedule failed"})
		return
	}
	c.JSON(http.StatusCreated, sched)
}

// Scan triggers a full schedule scan plus the risk mitigation pass.
func (h *MaintenanceHandler) Scan(c *gin.Context) {
	report, errScan := h.engine.ScanAll(c.Request.Context())
	if errScan != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "maintenance scan failed"})
		return
	}
	riskReport, errRisks := h.engine.ScanRisks(c.Request.Context())
	if errRisks != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "risk scan failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": report, "risks": riskReport})
}

// ListWorkItems returns work items, filterable by aircraft and state.
func (h *MaintenanceHandler) ListWorkItems(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.MaintenanceWorkItem{})
	if aircraftID := strings.TrimSpace(c.Query("aircraft_id")); aircraftID != "" {
		query = query.Where("aircraft_id = ?", aircraftID)
	}
	switch strings.TrimSpace(c.Query("state")) {
	case "pending":
		query = query.Where("is_completed = ?", false)
	case "overdue":
		query = query.Where("is_completed = ? AND is_overdue = ?", false, true)
	case "completed":
		query = query.Where("is_completed = ?", true)
	}

	var items []models.MaintenanceWorkItem
	if errFind := query.Order("due_date ASC").Find(&items).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query work items failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"work_items": items, "count": len(items)})
}

type completionPayload struct {
	CompletedDate           string `json:"completed_date" binding:"required"`
	CompletedByName         string `json:"completed_by_name" binding:"required"`
	CompletedByCredentialID string `json:"completed_by_credential_id" binding:"required"`
}

// Complete records work item completion. All three completion fields are
// required together.
func (h *MaintenanceHandler) Complete(c *gin.Context) {
	ref := strings.TrimSpace(c.Param("ref"))

	var payload completionPayload
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}
	completedDate, errParse := time.Parse("2006-01-02", payload.CompletedDate)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "completed_date must be YYYY-MM-DD"})
		return
	}

	item, errComplete := h.engine.MarkCompleted(c.Request.Context(), ref,
		completedDate, payload.CompletedByName, payload.CompletedByCredentialID)
	if errComplete != nil {
		if errors.Is(errComplete, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "work item not found"})
			return
		}
		if maintenance.IsValidationError(errComplete) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errComplete.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "complete work item failed"})
		return
	}
	c.JSON(http.StatusOK, item)
}
