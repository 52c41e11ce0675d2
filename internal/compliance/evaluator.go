package compliance

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/djorigin/rpasops/internal/models"
	"github.com/djorigin/rpasops/internal/util"
)

// Verdict is the outcome of evaluating one rule against one object.
type Verdict struct {
	Status  models.Status  // Three-color result.
	Message string         // Human-readable outcome.
	Meta    map[string]any // Evaluation metadata persisted with the check.
}

// CustomCheck is a callback registered against a target object type for
// custom_method rules. It returns boolean compliance; the engine treats
// the internals as opaque.
type CustomCheck func(obj Resolvable) bool

// CustomRegistry holds named custom checks keyed by target object type.
type CustomRegistry struct {
	mu  sync.RWMutex
	fns map[string]map[string]CustomCheck
}

// NewCustomRegistry constructs an empty registry.
func NewCustomRegistry() *CustomRegistry {
	return &CustomRegistry{fns: map[string]map[string]CustomCheck{}}
}

// Register binds a named check to an object type, replacing any previous
// binding with the same name.
func (r *CustomRegistry) Register(objectType, name string, fn CustomCheck) {
	if objectType == "" || name == "" || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byName, ok := r.fns[objectType]
	if !ok {
		byName = map[string]CustomCheck{}
		r.fns[objectType] = byName
	}
	byName[name] = fn
}

// Lookup returns the check registered under (objectType, name).
func (r *CustomRegistry) Lookup(objectType, name string) (CustomCheck, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[objectType][name]
	return fn, ok
}

// Evaluator applies a rule's evaluation strategy to a resolved value and
// produces a verdict. It is stateless apart from the injected resolver,
// custom check registry, and clock.
type Evaluator struct {
	resolver *FieldResolver
	custom   *CustomRegistry
	now      func() time.Time
}

// NewEvaluator constructs an evaluator. A nil now falls back to time.Now.
func NewEvaluator(resolver *FieldResolver, custom *CustomRegistry, now func() time.Time) *Evaluator {
	if resolver == nil {
		resolver = NewFieldResolver()
	}
	if custom == nil {
		custom = NewCustomRegistry()
	}
	if now == nil {
		now = time.Now
	}
	return &Evaluator{resolver: resolver, custom: custom, now: now}
}

// ValidateRule checks a rule definition for configuration errors: unknown
// evaluation type, missing type-specific thresholds, invalid severity, or
// unparseable field path. Business-logic failure is never a validation
// concern; this guards rule loading only.
func ValidateRule(rule *models.ComplianceRule) *ConfigurationError {
	fail := func(reason string) *ConfigurationError {
		return &ConfigurationError{RuleCode: rule.Code, Reason: reason}
	}

	if strings.TrimSpace(rule.Code) == "" {
		return &ConfigurationError{RuleCode: "(blank)", Reason: "rule code is required"}
	}
	if strings.TrimSpace(rule.TargetObjectType) == "" {
		return fail("target object type is required")
	}
	if rule.Severity != models.StatusYellow && rule.Severity != models.StatusRed {
		return fail(fmt.Sprintf("severity must be yellow or red, got %q", rule.Severity))
	}

	switch rule.EvaluationType {
	case models.EvalBooleanTrue, models.EvalExists, models.EvalDatePast:
		if strings.TrimSpace(rule.FieldPath) == "" {
			return fail("field path is required")
		}
	case models.EvalEquals:
		if strings.TrimSpace(rule.FieldPath) == "" {
			return fail("field path is required")
		}
		if rule.ThresholdValue == nil {
			return fail("equals rules require a threshold value")
		}
	case models.EvalDateWithinDays:
		if strings.TrimSpace(rule.FieldPath) == "" {
			return fail("field path is required")
		}
		if rule.ThresholdDays == nil || *rule.ThresholdDays < 0 {
			return fail("date_within_days rules require a non-negative day threshold")
		}
	case models.EvalRelatedCount:
		if strings.TrimSpace(rule.FieldPath) == "" {
			return fail("field path is required")
		}
		if rule.ThresholdNumeric == nil {
			return fail("related_count rules require a numeric threshold")
		}
	case models.EvalCustomMethod:
		if strings.TrimSpace(rule.CustomMethod) == "" {
			return fail("custom_method rules require a method name")
		}
	default:
		return fail(fmt.Sprintf("unknown evaluation type %q", rule.EvaluationType))
	}

	if path := strings.TrimSpace(rule.FieldPath); path != "" {
		if _, _, _, errParse := splitFilterPath(path); errParse != nil {
			return fail(errParse.Error())
		}
	}
	return nil
}

// Evaluate applies the rule to obj and returns a verdict. Business-logic
// failure maps to the rule's severity; a missing field value is an
// evaluation input, not an error.
func (e *Evaluator) Evaluate(rule *models.ComplianceRule, obj Resolvable) Verdict {
	meta := map[string]any{
		"rule_code":       rule.Code,
		"evaluation_type": string(rule.EvaluationType),
		"field_path":      rule.FieldPath,
	}

	if rule.EvaluationType == models.EvalCustomMethod {
		return e.evaluateCustom(rule, obj, meta)
	}

	value, found, errResolve := e.resolver.Resolve(obj, rule.FieldPath)
	if errResolve != nil {
		// Malformed paths are caught by ValidateRule; reaching this point
		// means the rule changed after load. Record as could-not-evaluate.
		meta["error"] = errResolve.Error()
		return e.fail(rule, meta, "field path could not be resolved")
	}
	if found {
		meta["field_value"] = displayValue(value)
	}

	switch rule.EvaluationType {
	case models.EvalBooleanTrue:
		b, ok := asBool(value)
		if found && ok && b {
			return e.pass(rule, meta)
		}
		return e.fail(rule, meta, "value is not true")

	case models.EvalExists:
		if found && !isEmpty(value) {
			return e.pass(rule, meta)
		}
		return e.fail(rule, meta, "required value is missing")

	case models.EvalEquals:
		if found && equalsThreshold(value, *rule.ThresholdValue) {
			return e.pass(rule, meta)
		}
		return e.fail(rule, meta, fmt.Sprintf("value does not equal %q", *rule.ThresholdValue))

	case models.EvalDatePast:
		dt, ok := asTime(value)
		if !found || !ok {
			return e.fail(rule, meta, "date is missing")
		}
		if util.DateOnly(dt).Before(util.DateOnly(e.now())) {
			return e.fail(rule, meta, fmt.Sprintf("date %s has passed", dt.Format("2006-01-02")))
		}
		return e.pass(rule, meta)

	case models.EvalDateWithinDays:
		dt, ok := asTime(value)
		if !found || !ok {
			return e.fail(rule, meta, "date is missing")
		}
		window := *rule.ThresholdDays
		gap := int(math.Abs(util.DateOnly(e.now()).Sub(util.DateOnly(dt)).Hours() / 24))
		meta["days_gap"] = gap
		if gap > window {
			return e.fail(rule, meta, fmt.Sprintf("date %s outside %d day window", dt.Format("2006-01-02"), window))
		}
		return e.pass(rule, meta)

	case models.EvalRelatedCount:
		count, ok := asInt(value)
		if !found || !ok {
			return e.fail(rule, meta, "related count could not be resolved")
		}
		meta["related_count"] = count
		if count != *rule.ThresholdNumeric {
			return e.fail(rule, meta, fmt.Sprintf("count is %d, expected %d", count, *rule.ThresholdNumeric))
		}
		return e.pass(rule, meta)
	}

	// ValidateRule rejects unknown types at load; this path is unreachable
	// for loaded rules but kept total.
	meta["error"] = fmt.Sprintf("unknown evaluation type %q", rule.EvaluationType)
	return e.fail(rule, meta, "rule is misconfigured")
}

func (e *Evaluator) evaluateCustom(rule *models.ComplianceRule, obj Resolvable, meta map[string]any) Verdict {
	meta["custom_method"] = rule.CustomMethod
	fn, ok := e.custom.Lookup(rule.TargetObjectType, rule.CustomMethod)
	if !ok {
		meta["error"] = fmt.Sprintf("custom check %q is not registered for %s", rule.CustomMethod, rule.TargetObjectType)
		return e.fail(rule, meta, "custom check is not registered")
	}
	if fn(obj) {
		return e.pass(rule, meta)
	}
	return e.fail(rule, meta, "custom check failed")
}

func (e *Evaluator) pass(rule *models.ComplianceRule, meta map[string]any) Verdict {
	return Verdict{
		Status:  models.StatusGreen,
		Message: fmt.Sprintf("%s: compliant", rule.Code),
		Meta:    meta,
	}
}

func (e *Evaluator) fail(rule *models.ComplianceRule, meta map[string]any, detail string) Verdict {
	severity := rule.Severity
	if severity != models.StatusYellow && severity != models.StatusRed {
		severity = models.StatusRed
	}
	message := rule.FailureMessage
	if message == "" {
		message = fmt.Sprintf("%s: %s", rule.Code, detail)
	}
	meta["detail"] = detail
	return Verdict{Status: severity, Message: message, Meta: meta}
}

func asBool(value any) (bool, bool) {
	b, ok := value.(bool)
	return b, ok
}

func asTime(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		return typed, !typed.IsZero()
	case *time.Time:
		if typed == nil || typed.IsZero() {
			return time.Time{}, false
		}
		return *typed, true
	default:
		return time.Time{}, false
	}
}

func asInt(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case uint64:
		return int(typed), true
	case float64:
		if typed != math.Trunc(typed) {
			return 0, false
		}
		return int(typed), true
	default:
		return 0, false
	}
}

func asFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}

// equalsThreshold compares a resolved value against the rule's stored
// threshold string using the value's own type. A type mismatch is a
// failed comparison, never an error.
func equalsThreshold(value any, threshold string) bool {
	threshold = strings.TrimSpace(threshold)
	switch typed := value.(type) {
	case string:
		return typed == threshold
	case bool:
		want, errParse := strconv.ParseBool(threshold)
		return errParse == nil && typed == want
	case time.Time:
		return typed.Format("2006-01-02") == threshold
	default:
		if f, ok := asFloat(value); ok {
			want, errParse := strconv.ParseFloat(threshold, 64)
			return errParse == nil && f == want
		}
		return false
	}
}

// isEmpty reports whether a resolved value counts as absent for the
// exists evaluation: nil, blank string, or zero time.
func isEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case time.Time:
		return typed.IsZero()
	case *time.Time:
		return typed == nil || typed.IsZero()
	default:
		return false
	}
}

// displayValue renders a resolved value for check details.
func displayValue(value any) any {
	switch typed := value.(type) {
	case time.Time:
		return typed.Format(time.RFC3339)
	case *time.Time:
		if typed == nil {
			return nil
		}
		return typed.Format(time.RFC3339)
	case Resolvable:
		return typed.ObjectType() + ":" + typed.ObjectID()
	default:
		return value
	}
}
