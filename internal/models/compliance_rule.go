package models

import "time"

// EvaluationType selects the strategy a rule uses against a resolved value.
type EvaluationType string

// EvaluationType constants form the closed set of strategies.
const (
	// EvalBooleanTrue requires the resolved value to equal true.
	EvalBooleanTrue EvaluationType = "boolean_true"
	// EvalExists requires a present, non-empty value.
	EvalExists EvaluationType = "exists"
	// EvalEquals requires the value to equal the rule's threshold value.
	EvalEquals EvaluationType = "equals"
	// EvalDatePast requires the resolved date to not be in the past.
	EvalDatePast EvaluationType = "date_past"
	// EvalDateWithinDays requires the resolved date within N days of today.
	EvalDateWithinDays EvaluationType = "date_within_days"
	// EvalRelatedCount requires a filtered relationship count to match the numeric threshold.
	EvalRelatedCount EvaluationType = "related_count"
	// EvalCustomMethod delegates to a registered callback on the target type.
	EvalCustomMethod EvaluationType = "custom_method"
)

// ComplianceRule is a declarative compliance requirement checked against
// domain objects. Identity is the unique Code; rules are deactivated rather
// than deleted so check history survives.
type ComplianceRule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Code        string `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	Name        string `gorm:"type:varchar(200);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Reference   string `gorm:"type:varchar(100)" json:"reference"`

	TargetObjectType string `gorm:"type:varchar(100);not null;index" json:"target_object_type"`

	// FieldPath is a dotted path on the target object; it may carry a
	// relation filter expression, e.g. "defects.filter(severity == major)".
	FieldPath      string         `gorm:"type:varchar(255)" json:"field_path"`
	EvaluationType EvaluationType `gorm:"type:varchar(30);not null" json:"evaluation_type"`

	// Severity is the status assigned when the rule fails.
	Severity Status `gorm:"type:varchar(10);not null;default:red" json:"severity"`

	ThresholdNumeric *int    `gorm:"" json:"threshold_numeric"`
	ThresholdDays    *int    `gorm:"" json:"threshold_days"`
	ThresholdValue   *string `gorm:"type:varchar(255)" json:"threshold_value"`
	CustomMethod     string  `gorm:"type:varchar(100)" json:"custom_method"`
	FailureMessage   string  `gorm:"type:varchar(255)" json:"failure_message"`

	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	// LastError records the configuration problem that got the rule flagged
	// inactive at load time.
	LastError string `gorm:"type:text" json:"last_error"`

	CheckFrequencyHours int `gorm:"not null;default:24" json:"check_frequency_hours"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// CheckFrequency returns the rule's re-evaluation cadence as a duration.
func (r *ComplianceRule) CheckFrequency() time.Duration {
	hours := r.CheckFrequencyHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}
