package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/models"
	"github.com/djorigin/rpasops/internal/risk"
)

// RisksHandler manages the risk register.
type RisksHandler struct {
	db      *gorm.DB
	service *risk.Service
}

// NewRisksHandler constructs a risks handler.
func NewRisksHandler(db *gorm.DB, service *risk.Service) *RisksHandler {
	return &RisksHandler{db: db, service: service}
}

type riskPayload struct {
	Title                  string `json:"title" binding:"required"`
	Description            string `json:"description"`
	CategoryID             uint64 `json:"category_id" binding:"required"`
	OperatorID             uint64 `json:"operator_id" binding:"required"`
	InherentLikelihood     int    `json:"inherent_likelihood" binding:"required"`
	InherentConsequence    int    `json:"inherent_consequence" binding:"required"`
	ResidualLikelihood     int    `json:"residual_likelihood" binding:"required"`
	ResidualConsequence    int    `json:"residual_consequence" binding:"required"`
	Status                 string `json:"status"`
	AssessmentDate         string `json:"assessment_date"`
	MaintenanceIntegration bool   `json:"maintenance_integration"`
}

func (p *riskPayload) toModel() (models.RiskEntry, error) {
	entry := models.RiskEntry{
		Title:                  strings.TrimSpace(p.Title),
		Description:            p.Description,
		CategoryID:             p.CategoryID,
		OperatorID:             p.OperatorID,
		InherentLikelihood:     p.InherentLikelihood,
		InherentConsequence:    p.InherentConsequence,
		ResidualLikelihood:     p.ResidualLikelihood,
		ResidualConsequence:    p.ResidualConsequence,
		Status:                 p.Status,
		MaintenanceIntegration: p.MaintenanceIntegration,
	}
	if p.AssessmentDate != "" {
		parsed, errParse := time.Parse("2006-01-02", p.AssessmentDate)
		if errParse != nil {
			return entry, errParse
		}
		entry.AssessmentDate = parsed
	}
	return entry, nil
}

// List returns risk entries, optionally filtered by status.
func (h *RisksHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Preload("Category")
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}

	var entries []models.RiskEntry
	if errFind := query.Order("risk_number ASC").Find(&entries).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query risks failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"risks": entries})
}

// Create scores, validates, and stores a risk entry.
func (h *RisksHandler) Create(c *gin.Context) {
	var payload riskPayload
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}
	entry, errParse := payload.toModel()
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "assessment_date must be YYYY-MM-DD"})
		return
	}

	stored, errCreate := h.service.Create(c.Request.Context(), entry)
	if errCreate != nil {
		if risk.IsValidationError(errCreate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errCreate.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create risk failed"})
		return
	}
	c.JSON(http.StatusCreated, stored)
}

type scorePayload struct {
	CategoryID          uint64 `json:"category_id"`
	InherentLikelihood  int    `json:"inherent_likelihood" binding:"required"`
	InherentConsequence int    `json:"inherent_consequence" binding:"required"`
	ResidualLikelihood  int    `json:"residual_likelihood" binding:"required"`
	ResidualConsequence int    `json:"residual_consequence" binding:"required"`
}

// ScorePreview scores a candidate assessment without storing anything.
// With no category_id, neutral modifiers apply.
func (h *RisksHandler) ScorePreview(c *gin.Context) {
	var payload scorePayload
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}

	category := models.RiskCategory{LikelihoodModifier: 1, ConsequenceModifier: 1}
	if payload.CategoryID != 0 {
		if errFind := h.db.WithContext(c.Request.Context()).
			First(&category, payload.CategoryID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query category failed"})
			return
		}
	}

	entry := models.RiskEntry{
		InherentLikelihood:  payload.InherentLikelihood,
		InherentConsequence: payload.InherentConsequence,
		ResidualLikelihood:  payload.ResidualLikelihood,
		ResidualConsequence: payload.ResidualConsequence,
	}
	if errValidate := risk.Validate(entry, category); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	inherentScore, inherentRating := risk.Score(entry.InherentLikelihood, entry.InherentConsequence, category)
	residualScore, residualRating := risk.Score(entry.ResidualLikelihood, entry.ResidualConsequence, category)
	c.JSON(http.StatusOK, gin.H{
		"inherent_score":        inherentScore,
		"inherent_rating":       inherentRating,
		"residual_score":        residualScore,
		"residual_rating":       residualRating,
		"control_effectiveness": risk.ControlEffectiveness(entry),
	})
}

// Reassess rescores an existing entry.
func (h *RisksHandler) Reassess(c *gin.Context) {
	ref := strings.TrimSpace(c.Param("ref"))

	var payload riskPayload
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}
	update, errParse := payload.toModel()
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "assessment_date must be YYYY-MM-DD"})
		return
	}

	stored, errReassess := h.service.Reassess(c.Request.Context(), ref, update)
	if errReassess != nil {
		if errors.Is(errReassess, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "risk not found"})
			return
		}
		if risk.IsValidationError(errReassess) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errReassess.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reassess risk failed"})
		return
	}
	c.JSON(http.StatusOK, stored)
}

// OverdueReviews lists open risks whose scheduled review has passed.
func (h *RisksHandler) OverdueReviews(c *gin.Context) {
	entries, errList := h.service.OverdueReviews(c.Request.Context(), time.Now())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query overdue reviews failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"risks": entries, "count": len(entries)})
}

// ListCategories returns the risk categories.
func (h *RisksHandler) ListCategories(c *gin.Context) {
	var categories []models.RiskCategory
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("code ASC").Find(&categories).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query categories failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

type categoryPayload struct {
	Code                string   `json:"code" binding:"required"`
	Name                string   `json:"name" binding:"required"`
	Description         string   `json:"description"`
	Reference           string   `json:"reference"`
	LikelihoodModifier  *float64 `json:"likelihood_modifier"`
	ConsequenceModifier *float64 `json:"consequence_modifier"`
	AffectsAircraft     bool     `json:"affects_aircraft"`
}

// CreateCategory stores a risk category with bounded modifiers.
func (h *RisksHandler) CreateCategory(c *gin.Context) {
	var payload categoryPayload
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}

	category := models.RiskCategory{
		Code:                strings.ToUpper(strings.TrimSpace(payload.Code)),
		Name:                strings.TrimSpace(payload.Name),
		Description:         payload.Description,
		Reference:           payload.Reference,
		LikelihoodModifier:  1.0,
		ConsequenceModifier: 1.0,
		AffectsAircraft:     payload.AffectsAircraft,
		IsActive:            true,
	}
	if payload.LikelihoodModifier != nil {
		category.LikelihoodModifier = *payload.LikelihoodModifier
	}
	if payload.ConsequenceModifier != nil {
		category.ConsequenceModifier = *payload.ConsequenceModifier
	}
	if errValidate := risk.ValidateCategory(category); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&category).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "category code or name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create category failed"})
		return
	}
	c.JSON(http.StatusCreated, category)
}
