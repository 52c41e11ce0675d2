package risk

import (
	"testing"
	"time"

	"github.com/djorigin/rpasops/internal/models"
)

func neutralCategory() models.RiskCategory {
	return models.RiskCategory{
		Code: "AO", Name: "Aircraft Operations",
		LikelihoodModifier: 1.0, ConsequenceModifier: 1.0,
	}
}

func TestRatingForScoreBands(t *testing.T) {
	cases := []struct {
		score float64
		want  models.RiskRating
	}{
		{25, models.RatingExtreme},
		{20, models.RatingExtreme},
		{19.9, models.RatingHigh},
		{15, models.RatingHigh},
		{14.9, models.RatingMedium},
		{8, models.RatingMedium},
		{7.9, models.RatingLow},
		{3, models.RatingLow},
		{2.9, models.RatingNegligible},
		{1, models.RatingNegligible},
	}
	for _, tc := range cases {
		if got := RatingForScore(tc.score); got != tc.want {
			t.Errorf("score %.1f: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestScoreAppliesCategoryModifiers(t *testing.T) {
	score, rating := Score(5, 5, neutralCategory())
	if score != 25 || rating != models.RatingExtreme {
		t.Fatalf("expected 25/extreme with neutral modifiers, got %.1f/%s", score, rating)
	}

	score, rating = Score(3, 3, neutralCategory())
	if score != 9 || rating != models.RatingMedium {
		t.Fatalf("expected 9/medium, got %.1f/%s", score, rating)
	}

	amplified := neutralCategory()
	amplified.LikelihoodModifier = 1.5
	score, rating = Score(4, 4, amplified)
	if score != 24 || rating != models.RatingExtreme {
		t.Fatalf("expected modifier to lift 16 to 24/extreme, got %.1f/%s", score, rating)
	}

	damped := neutralCategory()
	damped.ConsequenceModifier = 0.5
	score, rating = Score(4, 4, damped)
	if score != 8 || rating != models.RatingMedium {
		t.Fatalf("expected modifier to drop 16 to 8/medium, got %.1f/%s", score, rating)
	}
}

func TestControlEffectiveness(t *testing.T) {
	entry := models.RiskEntry{
		InherentLikelihood: 5, InherentConsequence: 5,
		ResidualLikelihood: 3, ResidualConsequence: 3,
	}
	if got := ControlEffectiveness(entry); got != 64 {
		t.Fatalf("expected 64%% reduction from 25 to 9, got %.1f", got)
	}

	entry.ResidualLikelihood, entry.ResidualConsequence = 5, 5
	if got := ControlEffectiveness(entry); got != 0 {
		t.Fatalf("expected 0%% when controls change nothing, got %.1f", got)
	}

	entry.InherentLikelihood, entry.InherentConsequence = 0, 0
	if got := ControlEffectiveness(entry); got != 0 {
		t.Fatalf("expected 0%% for zero inherent score, got %.1f", got)
	}
}

func TestScheduleNextReviewByRating(t *testing.T) {
	assessed := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		rating models.RiskRating
		months int
	}{
		{models.RatingExtreme, 3},
		{models.RatingHigh, 6},
		{models.RatingMedium, 12},
		{models.RatingLow, 24},
		{models.RatingNegligible, 36},
		{models.RiskRating("unknown"), 12},
	}
	for _, tc := range cases {
		entry := models.RiskEntry{AssessmentDate: assessed, ResidualRating: tc.rating}
		ScheduleNextReview(&entry)
		want := assessed.AddDate(0, 0, tc.months*30)
		if !entry.ReviewDate.Equal(want) {
			t.Errorf("%s: expected review %s, got %s", tc.rating, want, entry.ReviewDate)
		}
	}
}

func TestValidateRejectsOutOfMatrixScores(t *testing.T) {
	entry := models.RiskEntry{
		InherentLikelihood: 4, InherentConsequence: 4,
		ResidualLikelihood: 2, ResidualConsequence: 2,
	}
	if errValidate := Validate(entry, neutralCategory()); errValidate != nil {
		t.Fatalf("expected valid entry to pass, got %v", errValidate)
	}

	entry.InherentLikelihood = 6
	errValidate := Validate(entry, neutralCategory())
	if !IsValidationError(errValidate) {
		t.Fatalf("expected validation error for score 6, got %v", errValidate)
	}

	entry.InherentLikelihood = 0
	if errValidate := Validate(entry, neutralCategory()); !IsValidationError(errValidate) {
		t.Fatalf("expected validation error for score 0, got %v", errValidate)
	}
}

func TestValidateRejectsResidualAboveInherent(t *testing.T) {
	entry := models.RiskEntry{
		InherentLikelihood: 2, InherentConsequence: 2,
		ResidualLikelihood: 4, ResidualConsequence: 4,
	}
	errValidate := Validate(entry, neutralCategory())
	if !IsValidationError(errValidate) {
		t.Fatalf("expected residual above inherent to be rejected, got %v", errValidate)
	}

	// Equal residual and inherent is permitted: controls may be absent.
	entry.ResidualLikelihood, entry.ResidualConsequence = 2, 2
	if errValidate := Validate(entry, neutralCategory()); errValidate != nil {
		t.Fatalf("expected equal scores to pass, got %v", errValidate)
	}
}

func TestValidateCategoryModifierBounds(t *testing.T) {
	category := neutralCategory()
	if errValidate := ValidateCategory(category); errValidate != nil {
		t.Fatalf("expected neutral modifiers to pass, got %v", errValidate)
	}

	category.LikelihoodModifier = 0.05
	if errValidate := ValidateCategory(category); !IsValidationError(errValidate) {
		t.Fatalf("expected modifier below 0.1 to be rejected, got %v", errValidate)
	}

	category = neutralCategory()
	category.ConsequenceModifier = 2.5
	if errValidate := ValidateCategory(category); !IsValidationError(errValidate) {
		t.Fatalf("expected modifier above 2.0 to be rejected, got %v", errValidate)
	}
}
