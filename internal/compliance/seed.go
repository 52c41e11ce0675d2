package compliance

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/djorigin/rpasops/internal/models"
)

func intPtr(v int) *int { return &v }

// StandardRules returns the baseline rule set for RPAS record keeping:
// registration and insurance currency, outstanding defects, overdue
// maintenance, operator certificate currency, and airworthiness.
func StandardRules() []models.ComplianceRule {
	return []models.ComplianceRule{
		{
			Code:             "REG_001",
			Name:             "Aircraft registration must be current",
			Description:      "Aircraft registration must not be expired.",
			Reference:        "Part 101 registration requirements",
			TargetObjectType: "aircraft",
			FieldPath:        "registration_expiry",
			EvaluationType:   models.EvalDatePast,
			Severity:         models.StatusRed,
			FailureMessage:   "Aircraft registration has expired",
		},
		{
			Code:             "INS_001",
			Name:             "Aircraft insurance must be current",
			Description:      "Aircraft insurance must not be expired.",
			Reference:        "Part 101 insurance requirements",
			TargetObjectType: "aircraft",
			FieldPath:        "insurance_expiry",
			EvaluationType:   models.EvalDatePast,
			Severity:         models.StatusRed,
			FailureMessage:   "Aircraft insurance has expired",
		},
		{
			Code:             "DEF_001",
			Name:             "No outstanding major defects",
			Description:      "Aircraft must have no unrectified major defects.",
			Reference:        "Part 101 airworthiness",
			TargetObjectType: "aircraft",
			FieldPath:        "defects.filter(severity == major && rectified_date == null)",
			EvaluationType:   models.EvalRelatedCount,
			ThresholdNumeric: intPtr(0),
			Severity:         models.StatusRed,
			FailureMessage:   "Outstanding major defects exist",
		},
		{
			Code:             "MAINT_001",
			Name:             "No overdue maintenance items",
			Description:      "No maintenance work items past their due date.",
			Reference:        "Part 101 maintenance schedule",
			TargetObjectType: "aircraft",
			FieldPath:        "work_items.filter(due_date < today && completed_date == null)",
			EvaluationType:   models.EvalRelatedCount,
			ThresholdNumeric: intPtr(0),
			Severity:         models.StatusRed,
			FailureMessage:   "Overdue maintenance items exist",
		},
		{
			Code:             "AIR_001",
			Name:             "Aircraft airworthy for flight",
			Description:      "Aircraft must be serviceable with no grounding defects.",
			Reference:        "Part 101 airworthiness",
			TargetObjectType: "aircraft",
			EvaluationType:   models.EvalCustomMethod,
			CustomMethod:     "airworthy",
			Severity:         models.StatusRed,
			FailureMessage:   "Aircraft is not airworthy",
		},
		{
			Code:             "OPR_001",
			Name:             "Operator certificate must be current",
			Description:      "Operator certificate must not be expired.",
			Reference:        "Operator certification",
			TargetObjectType: "operator",
			FieldPath:        "certificate_expiry",
			EvaluationType:   models.EvalDatePast,
			Severity:         models.StatusRed,
			FailureMessage:   "Operator certificate has expired",
		},
		{
			Code:             "OPR_002",
			Name:             "Operator certificate number recorded",
			Description:      "Operator must have a certificate number on file.",
			Reference:        "Operator certification",
			TargetObjectType: "operator",
			FieldPath:        "certificate_number",
			EvaluationType:   models.EvalExists,
			Severity:         models.StatusYellow,
			FailureMessage:   "Operator certificate number is missing",
		},
		{
			Code:                "SVC_001",
			Name:                "Aircraft marked serviceable",
			Description:         "Aircraft in the active fleet should be serviceable.",
			Reference:           "Fleet management",
			TargetObjectType:    "aircraft",
			FieldPath:           "is_serviceable",
			EvaluationType:      models.EvalBooleanTrue,
			Severity:            models.StatusYellow,
			FailureMessage:      "Aircraft is not serviceable",
			CheckFrequencyHours: 12,
		},
	}
}

// SeedStandardRules inserts or refreshes the standard rule set, keyed by
// rule code so reseeding is idempotent and operator edits to thresholds
// are overwritten back to the baseline.
func SeedStandardRules(ctx context.Context, db *gorm.DB) error {
	for _, rule := range StandardRules() {
		if rule.CheckFrequencyHours == 0 {
			rule.CheckFrequencyHours = 24
		}
		rule.IsActive = true
		if errUpsert := db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "code"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"name", "description", "reference", "target_object_type",
					"field_path", "evaluation_type", "severity",
					"threshold_numeric", "threshold_days", "threshold_value",
					"custom_method", "failure_message", "is_active", "last_error",
					"check_frequency_hours",
				}),
			}).
			Create(&rule).Error; errUpsert != nil {
			return errUpsert
		}
	}
	return nil
}
