package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RiskRating is the five-band rating derived from the risk matrix.
type RiskRating string

// RiskRating constants from lowest to highest severity.
const (
	RatingNegligible RiskRating = "negligible"
	RatingLow        RiskRating = "low"
	RatingMedium     RiskRating = "medium"
	RatingHigh       RiskRating = "high"
	RatingExtreme    RiskRating = "extreme"
)

// Risk entry lifecycle states.
const (
	RiskStatusDraft      = "draft"
	RiskStatusOpen       = "open"
	RiskStatusMonitoring = "monitoring"
	RiskStatusClosed     = "closed"
	RiskStatusSuperseded = "superseded"
)

// RiskCategory classifies risks and carries the matrix modifiers applied
// when scoring entries in the category. Modifiers are bounded to [0.1, 2.0].
type RiskCategory struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Code        string `gorm:"type:varchar(10);not null;uniqueIndex" json:"code"`
	Name        string `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Reference   string `gorm:"type:varchar(50)" json:"reference"`

	LikelihoodModifier  float64 `gorm:"not null;default:1.0" json:"likelihood_modifier"`
	ConsequenceModifier float64 `gorm:"not null;default:1.0" json:"consequence_modifier"`

	// Aircraft categories feed maintenance generation when a risk escalates.
	AffectsAircraft bool `gorm:"not null;default:false" json:"affects_aircraft"`

	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// RiskEntry is a risk register record scored on the 5x5 likelihood by
// consequence matrix, before (inherent) and after (residual) controls.
type RiskEntry struct {
	ID  uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Ref string `gorm:"type:varchar(36);not null;uniqueIndex" json:"ref"`

	// RiskNumber is the assigned register identifier, RISK-<CAT>-<YEAR>-<SEQ>.
	RiskNumber  string `gorm:"type:varchar(20);uniqueIndex" json:"risk_number"`
	Title       string `gorm:"type:varchar(200);not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	CategoryID uint64 `gorm:"not null;index" json:"category_id"`
	OperatorID uint64 `gorm:"not null;index" json:"operator_id"`

	InherentLikelihood  int `gorm:"not null" json:"inherent_likelihood"`
	InherentConsequence int `gorm:"not null" json:"inherent_consequence"`
	ResidualLikelihood  int `gorm:"not null" json:"residual_likelihood"`
	ResidualConsequence int `gorm:"not null" json:"residual_consequence"`

	InherentRating RiskRating `gorm:"type:varchar(20);not null" json:"inherent_rating"`
	ResidualRating RiskRating `gorm:"type:varchar(20);not null" json:"residual_rating"`

	Status string `gorm:"type:varchar(20);not null;default:draft;index" json:"status"`

	AssessmentDate time.Time `gorm:"type:date;not null" json:"assessment_date"`
	ReviewDate     time.Time `gorm:"type:date;not null" json:"review_date"`

	// MaintenanceIntegration links high residual risks to automatic
	// maintenance work item generation.
	MaintenanceIntegration bool `gorm:"not null;default:false" json:"maintenance_integration"`

	Category RiskCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Operator Operator     `gorm:"foreignKey:OperatorID" json:"operator,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the external reference when absent.
func (r *RiskEntry) BeforeCreate(*gorm.DB) error {
	if r.Ref == "" {
		r.Ref = uuid.NewString()
	}
	return nil
}

// RequiresImmediateAction reports whether the residual rating demands
// management action.
func (r *RiskEntry) RequiresImmediateAction() bool {
	return r.ResidualRating == RatingHigh || r.ResidualRating == RatingExtreme
}

// IsOpen reports whether the risk is in an active state.
func (r *RiskEntry) IsOpen() bool {
	return r.Status == RiskStatusOpen || r.Status == RiskStatusMonitoring
}
