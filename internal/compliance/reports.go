package compliance

import (
	"time"

	"github.com/djorigin/rpasops/internal/models"
)

// RuleResult is the outcome of one rule against one object.
type RuleResult struct {
	RuleCode string         `json:"rule_code"`
	Status   models.Status  `json:"status"`
	Message  string         `json:"message"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// ObjectResult aggregates every rule result for one object. Overall is the
// worst-case status; an object with no results is green.
type ObjectResult struct {
	ObjectType string        `json:"object_type"`
	ObjectID   string        `json:"object_id"`
	Overall    models.Status `json:"overall_status"`
	Performed  int           `json:"checks_performed"`
	Passed     int           `json:"checks_passed"`
	Failed     int           `json:"checks_failed"`
	Results    []RuleResult  `json:"rule_results"`
	Timestamp  time.Time     `json:"timestamp"`
}

// BulkResult aggregates object results with system-wide counts.
type BulkResult struct {
	Total        int            `json:"total_objects"`
	Compliant    int            `json:"compliant_objects"`
	Warning      int            `json:"warning_objects"`
	NonCompliant int            `json:"non_compliant_objects"`
	Objects      []ObjectResult `json:"object_results"`
	Timestamp    time.Time      `json:"timestamp"`
}

// PendingCheck identifies an (object, rule) pair due for evaluation.
type PendingCheck struct {
	ObjectType string     `json:"object_type"`
	ObjectID   string     `json:"object_id"`
	RuleID     uint64     `json:"-"`
	RuleCode   string     `json:"rule_code"`
	NextDue    *time.Time `json:"next_due,omitempty"` // Nil for pairs never evaluated.
}

// PairError records a pair that could not be evaluated or persisted. The
// pair stays due and is retried on the next run.
type PairError struct {
	ObjectType string `json:"object_type"`
	ObjectID   string `json:"object_id"`
	RuleCode   string `json:"rule_code"`
	Err        string `json:"error"`
}

// RunReport summarises one RunDue invocation. FailedCompliance counts
// evaluated-and-failed pairs; Errors holds pairs that could not be
// evaluated at all. The two are never conflated.
type RunReport struct {
	Due              int         `json:"due_pairs_found"`
	Processed        int         `json:"processed"`
	Passed           int         `json:"passed"`
	FailedCompliance int         `json:"failed_compliance"`
	Errors           []PairError `json:"errors,omitempty"`
	Timestamp        time.Time   `json:"timestamp"`
}

// DashboardData is the system-wide compliance snapshot.
type DashboardData struct {
	TotalChecks      int            `json:"total_checks"`
	GreenChecks      int            `json:"green_checks"`
	YellowChecks     int            `json:"yellow_checks"`
	RedChecks        int            `json:"red_checks"`
	GreenPercentage  float64        `json:"green_percentage"`
	YellowPercentage float64        `json:"yellow_percentage"`
	RedPercentage    float64        `json:"red_percentage"`
	NeverEvaluated   int            `json:"never_evaluated_pairs"`
	OverdueChecks    []PendingCheck `json:"overdue_checks"`
	RecentFailures   []Failure      `json:"recent_failures"`
	TotalRules       int            `json:"total_rules"`
	CriticalRules    int            `json:"critical_rules"`
	WarningRules     int            `json:"warning_rules"`
	Timestamp        time.Time      `json:"timestamp"`
}
