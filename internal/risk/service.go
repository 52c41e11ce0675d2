package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/models"
)

// Service persists risk register entries with scoring and validation
// applied on every write.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs a risk service. A nil now falls back to time.Now.
func NewService(db *gorm.DB, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{db: db, now: now}
}

// Create validates, scores, numbers, and stores a new risk entry. On a
// validation failure the entry is returned to the caller unmodified and
// nothing is written.
func (s *Service) Create(ctx context.Context, entry models.RiskEntry) (models.RiskEntry, error) {
	var category models.RiskCategory
	if errFind := s.db.WithContext(ctx).
		First(&category, "id = ?", entry.CategoryID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return entry, &ValidationError{Field: "category_id", Reason: "unknown risk category"}
		}
		return entry, errFind
	}

	if errValidate := Validate(entry, category); errValidate != nil {
		return entry, errValidate
	}

	stored := entry
	ApplyRatings(&stored, category)

	now := s.now()
	if stored.AssessmentDate.IsZero() {
		stored.AssessmentDate = now.UTC()
	}
	if stored.ReviewDate.IsZero() {
		ScheduleNextReview(&stored)
	}
	if stored.RiskNumber == "" {
		number, errNumber := NextRiskNumber(ctx, s.db, category, now)
		if errNumber != nil {
			return entry, errNumber
		}
		stored.RiskNumber = number
	}
	if stored.Status == "" {
		stored.Status = models.RiskStatusDraft
	}

	if errCreate := s.db.WithContext(ctx).Create(&stored).Error; errCreate != nil {
		return entry, errCreate
	}
	return stored, nil
}

// Reassess rewrites an entry's scores, revalidates, and reschedules the
// review. The stored row keeps its number and identity.
func (s *Service) Reassess(ctx context.Context, ref string, update models.RiskEntry) (models.RiskEntry, error) {
	var stored models.RiskEntry
	if errFind := s.db.WithContext(ctx).
		Preload("Category").
		First(&stored, "ref = ?", ref).Error; errFind != nil {
		return models.RiskEntry{}, errFind
	}

	candidate := stored
	candidate.InherentLikelihood = update.InherentLikelihood
	candidate.InherentConsequence = update.InherentConsequence
	candidate.ResidualLikelihood = update.ResidualLikelihood
	candidate.ResidualConsequence = update.ResidualConsequence
	if update.Status != "" {
		candidate.Status = update.Status
	}
	if !update.AssessmentDate.IsZero() {
		candidate.AssessmentDate = update.AssessmentDate
	}

	if errValidate := Validate(candidate, stored.Category); errValidate != nil {
		return stored, errValidate
	}
	ApplyRatings(&candidate, stored.Category)
	ScheduleNextReview(&candidate)

	if errSave := s.db.WithContext(ctx).
		Model(&models.RiskEntry{}).
		Where("id = ?", stored.ID).
		Updates(map[string]any{
			"inherent_likelihood":  candidate.InherentLikelihood,
			"inherent_consequence": candidate.InherentConsequence,
			"residual_likelihood":  candidate.ResidualLikelihood,
			"residual_consequence": candidate.ResidualConsequence,
			"inherent_rating":      candidate.InherentRating,
			"residual_rating":      candidate.ResidualRating,
			"status":               candidate.Status,
			"assessment_date":      candidate.AssessmentDate,
			"review_date":          candidate.ReviewDate,
		}).Error; errSave != nil {
		return stored, errSave
	}
	return candidate, nil
}

// OverdueReviews lists open entries whose review date has passed.
func (s *Service) OverdueReviews(ctx context.Context, now time.Time) ([]models.RiskEntry, error) {
	var entries []models.RiskEntry
	errFind := s.db.WithContext(ctx).
		Preload("Category").
		Where("status IN ? AND review_date < ?",
			[]string{models.RiskStatusOpen, models.RiskStatusMonitoring}, now.UTC()).
		Order("review_date ASC").
		Find(&entries).Error
	if errFind != nil {
		return nil, fmt.Errorf("risk: list overdue reviews: %w", errFind)
	}
	return entries, nil
}

// HighOpenRisks lists open aircraft-related entries at high or extreme
// residual rating with maintenance integration enabled. The maintenance
// scan consumes these to generate mitigation work items.
func (s *Service) HighOpenRisks(ctx context.Context) ([]models.RiskEntry, error) {
	var entries []models.RiskEntry
	errFind := s.db.WithContext(ctx).
		Preload("Category").
		Joins("JOIN risk_categories ON risk_categories.id = risk_entries.category_id").
		Where("risk_entries.status = ? AND risk_entries.maintenance_integration = ? AND risk_entries.residual_rating IN ? AND risk_categories.affects_aircraft = ?",
			models.RiskStatusOpen, true,
			[]models.RiskRating{models.RatingHigh, models.RatingExtreme}, true).
		Find(&entries).Error
	if errFind != nil {
		return nil, fmt.Errorf("risk: list high open risks: %w", errFind)
	}
	return entries, nil
}
