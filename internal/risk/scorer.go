package risk

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/models"
)

// Likelihood and consequence scores sit on the standard 5x5 matrix.
const (
	MinScore = 1
	MaxScore = 5
)

// Review intervals in months by residual rating; higher risks are reviewed
// more often. A month is 30 days, matching register convention.
var reviewIntervalMonths = map[models.RiskRating]int{
	models.RatingExtreme:    3,
	models.RatingHigh:       6,
	models.RatingMedium:     12,
	models.RatingLow:        24,
	models.RatingNegligible: 36,
}

// ValidationError rejects a risk entry write. The entry is returned to the
// caller unmodified.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("risk: %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// RatingForScore maps a matrix score to its five-band rating.
func RatingForScore(score float64) models.RiskRating {
	switch {
	case score >= 20:
		return models.RatingExtreme
	case score >= 15:
		return models.RatingHigh
	case score >= 8:
		return models.RatingMedium
	case score >= 3:
		return models.RatingLow
	default:
		return models.RatingNegligible
	}
}

// Score applies the category modifiers to a likelihood/consequence pair and
// returns the adjusted matrix score with its rating. Pure function.
func Score(likelihood, consequence int, category models.RiskCategory) (float64, models.RiskRating) {
	adjustedL := float64(likelihood) * category.LikelihoodModifier
	adjustedC := float64(consequence) * category.ConsequenceModifier
	score := adjustedL * adjustedC
	return score, RatingForScore(score)
}

// ApplyRatings recomputes both derived ratings on the entry from its raw
// scores and category modifiers.
func ApplyRatings(entry *models.RiskEntry, category models.RiskCategory) {
	_, entry.InherentRating = Score(entry.InherentLikelihood, entry.InherentConsequence, category)
	_, entry.ResidualRating = Score(entry.ResidualLikelihood, entry.ResidualConsequence, category)
}

// ControlEffectiveness measures how much controls reduce the risk, as a
// percentage of the unmodified inherent score, clamped to [0, 100]. The
// raw pre-category scores are used so the figure expresses risk reduction
// attributable to controls alone. Returns 0 when the inherent score is 0.
func ControlEffectiveness(entry models.RiskEntry) float64 {
	inherent := float64(entry.InherentLikelihood * entry.InherentConsequence)
	residual := float64(entry.ResidualLikelihood * entry.ResidualConsequence)

	if inherent == 0 {
		return 0
	}
	reduction := (inherent - residual) / inherent * 100
	if reduction < 0 {
		return 0
	}
	if reduction > 100 {
		return 100
	}
	return reduction
}

// ScheduleNextReview sets the entry's review date from its assessment date
// and residual rating. Computing from the assessment date, not from now,
// keeps historical re-imports consistent.
func ScheduleNextReview(entry *models.RiskEntry) {
	months, ok := reviewIntervalMonths[entry.ResidualRating]
	if !ok {
		months = 12
	}
	entry.ReviewDate = entry.AssessmentDate.AddDate(0, 0, months*30)
}

// Validate rejects entries whose scores fall outside the matrix or whose
// modified residual score exceeds the modified inherent score. Residual
// risk above inherent risk is a data error, never silently corrected.
func Validate(entry models.RiskEntry, category models.RiskCategory) error {
	for _, check := range []struct {
		field string
		value int
	}{
		{"inherent_likelihood", entry.InherentLikelihood},
		{"inherent_consequence", entry.InherentConsequence},
		{"residual_likelihood", entry.ResidualLikelihood},
		{"residual_consequence", entry.ResidualConsequence},
	} {
		if check.value < MinScore || check.value > MaxScore {
			return &ValidationError{
				Field:  check.field,
				Reason: fmt.Sprintf("score %d outside matrix range %d-%d", check.value, MinScore, MaxScore),
			}
		}
	}

	inherentScore, _ := Score(entry.InherentLikelihood, entry.InherentConsequence, category)
	residualScore, _ := Score(entry.ResidualLikelihood, entry.ResidualConsequence, category)
	if residualScore > inherentScore {
		return &ValidationError{
			Field:  "residual_likelihood",
			Reason: "residual risk cannot be higher than inherent risk",
		}
	}
	return nil
}

// Category modifier bounds.
const (
	MinModifier = 0.1
	MaxModifier = 2.0
)

// ValidateCategory rejects categories whose matrix modifiers fall outside
// the allowed bounds.
func ValidateCategory(category models.RiskCategory) error {
	for _, check := range []struct {
		field string
		value float64
	}{
		{"likelihood_modifier", category.LikelihoodModifier},
		{"consequence_modifier", category.ConsequenceModifier},
	} {
		if check.value < MinModifier || check.value > MaxModifier {
			return &ValidationError{
				Field:  check.field,
				Reason: fmt.Sprintf("modifier %.2f outside range %.1f-%.1f", check.value, MinModifier, MaxModifier),
			}
		}
	}
	return nil
}

// NextRiskNumber assigns the next sequential identifier for a category and
// year, in the form RISK-<CAT>-<YEAR>-<SEQ3>.
func NextRiskNumber(ctx context.Context, db *gorm.DB, category models.RiskCategory, now time.Time) (string, error) {
	year := now.UTC().Year()
	prefix := fmt.Sprintf("RISK-%s-%d-", category.Code, year)

	var last models.RiskEntry
	seq := 1
	errFind := db.WithContext(ctx).
		Where("risk_number LIKE ?", prefix+"%").
		Order("risk_number DESC").
		First(&last).Error
	if errFind == nil {
		raw := strings.TrimPrefix(last.RiskNumber, prefix)
		if parsed, errParse := strconv.Atoi(raw); errParse == nil {
			seq = parsed + 1
		}
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return "", errFind
	}

	return fmt.Sprintf("%s%03d", prefix, seq), nil
}
