package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/compliance"
	"github.com/djorigin/rpasops/internal/models"
)

// RulesHandler manages the compliance rule catalogue.
type RulesHandler struct {
	db *gorm.DB
}

// NewRulesHandler constructs a rules handler.
func NewRulesHandler(db *gorm.DB) *RulesHandler {
	return &RulesHandler{db: db}
}

type rulePayload struct {
	Code                string  `json:"code" binding:"required"`
	Name                string  `json:"name" binding:"required"`
	Description         string  `json:"description"`
	Reference           string  `json:"reference"`
	TargetObjectType    string  `json:"target_object_type" binding:"required"`
	FieldPath           string  `json:"field_path"`
	EvaluationType      string  `json:"evaluation_type" binding:"required"`
	Severity            string  `json:"severity"`
	ThresholdNumeric    *int    `json:"threshold_numeric"`
	ThresholdDays       *int    `json:"threshold_days"`
	ThresholdValue      *string `json:"threshold_value"`
	CustomMethod        string  `json:"custom_method"`
	FailureMessage      string  `json:"failure_message"`
	CheckFrequencyHours int     `json:"check_frequency_hours"`
}

func (p *rulePayload) toModel() models.ComplianceRule {
	severity := models.Status(p.Severity)
	if p.Severity == "" {
		severity = models.StatusRed
	}
	frequency := p.CheckFrequencyHours
	if frequency <= 0 {
		frequency = 24
	}
	return models.ComplianceRule{
		Code:                strings.TrimSpace(p.Code),
		Name:                strings.TrimSpace(p.Name),
		Description:         p.Description,
		Reference:           p.Reference,
		TargetObjectType:    strings.TrimSpace(p.TargetObjectType),
		FieldPath:           strings.TrimSpace(p.FieldPath),
		EvaluationType:      models.EvaluationType(p.EvaluationType),
		Severity:            severity,
		ThresholdNumeric:    p.ThresholdNumeric,
		ThresholdDays:       p.ThresholdDays,
		ThresholdValue:      p.ThresholdValue,
		CustomMethod:        strings.TrimSpace(p.CustomMethod),
		FailureMessage:      p.FailureMessage,
		IsActive:            true,
		CheckFrequencyHours: frequency,
	}
}

// List returns all rules, active first.
func (h *RulesHandler) List(c *gin.Context) {
	var rules []models.ComplianceRule
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("is_active DESC, code ASC").
		Find(&rules).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query rules failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// Create validates and stores a new rule.
func (h *RulesHandler) Create(c *gin.Context) {
	var payload rulePayload
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}

	rule := payload.toModel()
	if errValidate := compliance.ValidateRule(&rule); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&rule).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "rule code already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create rule failed"})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// Update rewrites a rule identified by code. The code itself is immutable
// so check history stays attached.
func (h *RulesHandler) Update(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))

	var stored models.ComplianceRule
	if errFind := h.db.WithContext(c.Request.Context()).
		First(&stored, "code = ?", code).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query rule failed"})
		return
	}

	var payload rulePayload
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}

	updated := payload.toModel()
	updated.ID = stored.ID
	updated.Code = stored.Code
	if errValidate := compliance.ValidateRule(&updated); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}
	// A clean save clears any load-time configuration error.
	updated.LastError = ""

	if errSave := h.db.WithContext(c.Request.Context()).Save(&updated).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update rule failed"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Deactivate disables a rule. Rules are never deleted so stored check
// history keeps its reference.
func (h *RulesHandler) Deactivate(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	result := h.db.WithContext(c.Request.Context()).
		Model(&models.ComplianceRule{}).
		Where("code = ?", code).
		Update("is_active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deactivate rule failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "is_active": false})
}

// Seed installs or refreshes the standard rule set.
func (h *RulesHandler) Seed(c *gin.Context) {
	if errSeed := compliance.SeedStandardRules(c.Request.Context(), h.db); errSeed != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "seed rules failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"seeded": len(compliance.StandardRules())})
}
