package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/models"
)

// FleetHandler manages the operator, aircraft, and defect records the
// compliance rules target. CRUD stays thin; the engines do the work.
type FleetHandler struct {
	db *gorm.DB
}

// NewFleetHandler constructs a fleet handler.
func NewFleetHandler(db *gorm.DB) *FleetHandler {
	return &FleetHandler{db: db}
}

// ListOperators returns all operators.
func (h *FleetHandler) ListOperators(c *gin.Context) {
	var operators []models.Operator
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("name ASC").Find(&operators).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query operators failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"operators": operators})
}

type operatorPayload struct {
	Name              string `json:"name" binding:"required"`
	CertificateNumber string `json:"certificate_number" binding:"required"`
	CertificateExpiry string `json:"certificate_expiry"`
}

// CreateOperator stores an operator record.
func (h *FleetHandler) CreateOperator(c *gin.Context) {
	var payload operatorPayload
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}

	operator := models.Operator{
		Name:              strings.TrimSpace(payload.Name),
		CertificateNumber: strings.TrimSpace(payload.CertificateNumber),
		IsActive:          true,
	}
	if payload.CertificateExpiry != "" {
		expiry, errParse := time.Parse("2006-01-02", payload.CertificateExpiry)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "certificate_expiry must be YYYY-MM-DD"})
			return
		}
		operator.CertificateExpiry = &expiry
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&operator).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "certificate number already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create operator failed"})
		return
	}
	c.JSON(http.StatusCreated, operator)
}

// ListAircraft returns all aircraft, active first.
func (h *FleetHandler) ListAircraft(c *gin.Context) {
	var aircraft []models.Aircraft
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Operator").
		Order("is_active DESC, serial ASC").
		Find(&aircraft).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query aircraft failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"aircraft": aircraft})
}

type aircraftPayload struct {
	OperatorID         uint64   `json:"operator_id" binding:"required"`
	Serial             string   `json:"serial" binding:"required"`
	Model              string   `json:"model" binding:"required"`
	RegistrationNumber string   `json:"registration_number"`
	RegistrationExpiry string   `json:"registration_expiry"`
	InsuranceExpiry    string   `json:"insurance_expiry"`
	FlightHours        *float64 `json:"flight_hours"`
}

// CreateAircraft stores an aircraft record.
func (h *FleetHandler) CreateAircraft(c *gin.Context) {
	var payload aircraftPayload
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}

	aircraft := models.Aircraft{
		OperatorID:         payload.OperatorID,
		Serial:             strings.TrimSpace(payload.Serial),
		Model:              strings.TrimSpace(payload.Model),
		RegistrationNumber: strings.TrimSpace(payload.RegistrationNumber),
		IsActive:           true,
		IsServiceable:      true,
	}
	if payload.FlightHours != nil {
		aircraft.FlightHours = *payload.FlightHours
	}
	for _, date := range []struct {
		raw    string
		target **time.Time
		field  string
	}{
		{payload.RegistrationExpiry, &aircraft.RegistrationExpiry, "registration_expiry"},
		{payload.InsuranceExpiry, &aircraft.InsuranceExpiry, "insurance_expiry"},
	} {
		if date.raw == "" {
			continue
		}
		parsed, errParse := time.Parse("2006-01-02", date.raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": date.field + " must be YYYY-MM-DD"})
			return
		}
		*date.target = &parsed
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&aircraft).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "serial already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create aircraft failed"})
		return
	}
	c.JSON(http.StatusCreated, aircraft)
}

type defectPayload struct {
	AircraftID    uint64 `json:"aircraft_id" binding:"required"`
	Description   string `json:"description" binding:"required"`
	Severity      string `json:"severity"`
	DiscoveryDate string `json:"discovery_date"`
}

// CreateDefect records a defect against an aircraft.
func (h *FleetHandler) CreateDefect(c *gin.Context) {
	var payload defectPayload
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}

	severity := strings.TrimSpace(payload.Severity)
	if severity == "" {
		severity = models.DefectMinor
	}
	if severity != models.DefectMajor && severity != models.DefectMinor {
		c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be major or minor"})
		return
	}

	defect := models.Defect{
		AircraftID:    payload.AircraftID,
		Description:   payload.Description,
		Severity:      severity,
		DiscoveryDate: time.Now().UTC(),
	}
	if payload.DiscoveryDate != "" {
		parsed, errParse := time.Parse("2006-01-02", payload.DiscoveryDate)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "discovery_date must be YYYY-MM-DD"})
			return
		}
		defect.DiscoveryDate = parsed
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&defect).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create defect failed"})
		return
	}
	c.JSON(http.StatusCreated, defect)
}

// RectifyDefect records rectification of a defect.
func (h *FleetHandler) RectifyDefect(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var payload struct {
		RectifiedDate   string `json:"rectified_date" binding:"required"`
		RectifiedByName string `json:"rectified_by_name" binding:"required"`
	}
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}
	rectified, errParse := time.Parse("2006-01-02", payload.RectifiedDate)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rectified_date must be YYYY-MM-DD"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.Defect{}).
		Where("id = ? AND rectified_date IS NULL", id).
		Updates(map[string]any{
			"rectified_date":    rectified,
			"rectified_by_name": payload.RectifiedByName,
		})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rectify defect failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "outstanding defect not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rectified": true})
}
