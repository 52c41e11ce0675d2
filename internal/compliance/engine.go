package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/djorigin/rpasops/internal/db"
	"github.com/djorigin/rpasops/internal/models"
)

const (
	// defaultMaxConcurrency bounds parallel object evaluation in RunDue.
	defaultMaxConcurrency = 4
	// persistTimeout caps a single check upsert.
	persistTimeout = 10 * time.Second
)

// ObjectStore is the engine's view of the domain object store. The engine
// never interprets identifiers beyond equality and lookup.
type ObjectStore interface {
	// Lookup resolves an object by type and identifier. A missing object
	// returns ErrObjectNotFound.
	Lookup(ctx context.Context, objectType, objectID string) (Resolvable, error)
	// ListIDs returns the identifiers of every object of the given type
	// that rules should be evaluated against.
	ListIDs(ctx context.Context, objectType string) ([]string, error)
}

// Engine is the check registry: it evaluates rules against domain objects,
// persists one check result per (object, rule) pair, schedules
// re-evaluation, and aggregates status. Construct with NewEngine; there is
// no ambient global instance.
type Engine struct {
	db        *gorm.DB
	store     ObjectStore
	evaluator *Evaluator
	custom    *CustomRegistry
	now       func() time.Time

	// concurrency resolves the worker bound per run; injectable so runtime
	// settings can tune it without restarting.
	concurrency func() int
}

// EngineOption customises engine construction.
type EngineOption func(*Engine)

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithConcurrency injects a resolver for the per-run worker bound.
func WithConcurrency(fn func() int) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.concurrency = fn
		}
	}
}

// NewEngine constructs an engine with injected dependencies.
func NewEngine(db *gorm.DB, store ObjectStore, custom *CustomRegistry, opts ...EngineOption) *Engine {
	if custom == nil {
		custom = NewCustomRegistry()
	}
	engine := &Engine{
		db:          db,
		store:       store,
		custom:      custom,
		now:         time.Now,
		concurrency: func() int { return defaultMaxConcurrency },
	}
	for _, opt := range opts {
		opt(engine)
	}
	engine.evaluator = NewEvaluator(NewFieldResolver(), custom, engine.now)
	return engine
}

// Custom returns the engine's custom check registry.
func (e *Engine) Custom() *CustomRegistry {
	return e.custom
}

// LoadRules returns all active, well-formed rules. Misconfigured rules are
// flagged inactive with the configuration error recorded, never silently
// defaulted, and are excluded from the result.
func (e *Engine) LoadRules(ctx context.Context) ([]models.ComplianceRule, error) {
	var rules []models.ComplianceRule
	if errFind := e.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("code ASC").
		Find(&rules).Error; errFind != nil {
		return nil, errFind
	}

	valid := rules[:0]
	for i := range rules {
		rule := &rules[i]
		if configErr := ValidateRule(rule); configErr != nil {
			log.WithError(configErr).Warnf("compliance: disabling misconfigured rule %s", rule.Code)
			if errFlag := e.db.WithContext(ctx).
				Model(&models.ComplianceRule{}).
				Where("id = ?", rule.ID).
				Updates(map[string]any{
					"is_active":  false,
					"last_error": configErr.Reason,
				}).Error; errFlag != nil {
				log.WithError(errFlag).Warnf("compliance: flag rule %s failed", rule.Code)
			}
			continue
		}
		valid = append(valid, *rule)
	}
	return valid, nil
}

// CheckObject evaluates the given rules against one object, upserting one
// check row per rule, and returns the aggregated result. A nil rules slice
// evaluates every loaded rule applicable to the object's type.
func (e *Engine) CheckObject(ctx context.Context, obj Resolvable, rules []models.ComplianceRule, actor string) (ObjectResult, error) {
	if rules == nil {
		loaded, errLoad := e.LoadRules(ctx)
		if errLoad != nil {
			return ObjectResult{}, errLoad
		}
		rules = loaded
	}

	now := e.now().UTC()
	result := ObjectResult{
		ObjectType: obj.ObjectType(),
		ObjectID:   obj.ObjectID(),
		Overall:    models.StatusGreen,
		Timestamp:  now,
	}

	for i := range rules {
		rule := &rules[i]
		if rule.TargetObjectType != obj.ObjectType() {
			continue
		}

		verdict := e.evaluator.Evaluate(rule, obj)
		if errUpsert := e.upsertCheck(ctx, obj, rule, verdict, now, actor); errUpsert != nil {
			return result, fmt.Errorf("compliance: persist check %s/%s %s: %w",
				obj.ObjectType(), obj.ObjectID(), rule.Code, errUpsert)
		}

		result.Performed++
		if verdict.Status == models.StatusGreen {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Overall = result.Overall.Worse(verdict.Status)
		result.Results = append(result.Results, RuleResult{
			RuleCode: rule.Code,
			Status:   verdict.Status,
			Message:  verdict.Message,
			Meta:     verdict.Meta,
		})
	}

	return result, nil
}

// EvaluateObject looks up an object and evaluates all applicable rules,
// returning a live aggregate verdict.
func (e *Engine) EvaluateObject(ctx context.Context, objectType, objectID string) (ObjectResult, error) {
	obj, errLookup := e.store.Lookup(ctx, objectType, objectID)
	if errLookup != nil {
		return ObjectResult{}, errLookup
	}
	return e.CheckObject(ctx, obj, nil, "")
}

// AggregateStatus derives an object's overall status from its stored check
// rows for active rules: any red wins, then any yellow, else green. With no
// rows at all the object is green, compliant by default.
func (e *Engine) AggregateStatus(ctx context.Context, objectType, objectID string) (models.Status, error) {
	var statuses []models.Status
	if errFind := e.db.WithContext(ctx).
		Model(&models.ComplianceCheck{}).
		Joins("JOIN compliance_rules ON compliance_rules.id = compliance_checks.rule_id").
		Where("compliance_checks.object_type = ? AND compliance_checks.object_id = ? AND compliance_rules.is_active = ?",
			objectType, objectID, true).
		Pluck("compliance_checks.status", &statuses).Error; errFind != nil {
		return "", errFind
	}

	overall := models.StatusGreen
	for _, status := range statuses {
		overall = overall.Worse(status)
	}
	return overall, nil
}

// CheckMany evaluates rules against a batch of objects and aggregates
// per-object results with system-wide counts.
func (e *Engine) CheckMany(ctx context.Context, objects []Resolvable, rules []models.ComplianceRule) (BulkResult, error) {
	if rules == nil {
		loaded, errLoad := e.LoadRules(ctx)
		if errLoad != nil {
			return BulkResult{}, errLoad
		}
		rules = loaded
	}

	bulk := BulkResult{Total: len(objects), Timestamp: e.now().UTC()}
	for _, obj := range objects {
		objResult, errCheck := e.CheckObject(ctx, obj, rules, "")
		if errCheck != nil {
			return bulk, errCheck
		}
		switch objResult.Overall {
		case models.StatusGreen:
			bulk.Compliant++
		case models.StatusYellow:
			bulk.Warning++
		default:
			bulk.NonCompliant++
		}
		bulk.Objects = append(bulk.Objects, objResult)
	}
	return bulk, nil
}

// RunDue evaluates every (object, rule) pair whose next check is due at
// now, including pairs that have never been evaluated. Objects are
// processed in parallel under the configured bound; a failing pair is
// recorded and stays due rather than aborting the run.
func (e *Engine) RunDue(ctx context.Context, now time.Time) (RunReport, error) {
	now = now.UTC()
	report := RunReport{Timestamp: now}

	rules, errLoad := e.LoadRules(ctx)
	if errLoad != nil {
		return report, errLoad
	}
	ruleByID := make(map[uint64]*models.ComplianceRule, len(rules))
	for i := range rules {
		ruleByID[rules[i].ID] = &rules[i]
	}

	groups, errCollect := e.collectDue(ctx, now, rules)
	if errCollect != nil {
		return report, errCollect
	}
	for _, pending := range groups {
		report.Due += len(pending)
	}

	limit := e.concurrency()
	if limit <= 0 {
		limit = 1
	}

	var mu sync.Mutex
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(limit)

	for key, pending := range groups {
		key, pending := key, pending
		grp.Go(func() error {
			if grpCtx.Err() != nil {
				// Cancellation stops dispatch; pairs not reached stay due.
				return nil
			}

			obj, errLookup := e.store.Lookup(grpCtx, key.objectType, key.objectID)
			if errLookup != nil {
				mu.Lock()
				for _, p := range pending {
					report.Errors = append(report.Errors, PairError{
						ObjectType: p.ObjectType, ObjectID: p.ObjectID,
						RuleCode: p.RuleCode, Err: errLookup.Error(),
					})
				}
				mu.Unlock()
				return nil
			}

			for _, p := range pending {
				rule, ok := ruleByID[p.RuleID]
				if !ok {
					continue
				}
				verdict := e.evaluator.Evaluate(rule, obj)
				errUpsert := e.upsertCheck(grpCtx, obj, rule, verdict, now, "")

				mu.Lock()
				if errUpsert != nil {
					report.Errors = append(report.Errors, PairError{
						ObjectType: p.ObjectType, ObjectID: p.ObjectID,
						RuleCode: p.RuleCode, Err: errUpsert.Error(),
					})
				} else {
					report.Processed++
					if verdict.Status == models.StatusGreen {
						report.Passed++
					} else {
						report.FailedCompliance++
					}
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if errWait := grp.Wait(); errWait != nil {
		return report, errWait
	}
	return report, nil
}

// GetOverdue lists every (object, rule) pair due for evaluation at now,
// including never-evaluated pairs, sorted for stable dashboard output.
func (e *Engine) GetOverdue(ctx context.Context, now time.Time) ([]PendingCheck, error) {
	rules, errLoad := e.LoadRules(ctx)
	if errLoad != nil {
		return nil, errLoad
	}
	groups, errCollect := e.collectDue(ctx, now.UTC(), rules)
	if errCollect != nil {
		return nil, errCollect
	}

	var out []PendingCheck
	for _, pending := range groups {
		out = append(out, pending...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ObjectType != out[j].ObjectType {
			return out[i].ObjectType < out[j].ObjectType
		}
		if out[i].ObjectID != out[j].ObjectID {
			return out[i].ObjectID < out[j].ObjectID
		}
		return out[i].RuleCode < out[j].RuleCode
	})
	return out, nil
}

// Failure is one failing check joined with its rule and the stored
// failure detail.
type Failure struct {
	ObjectType  string    `json:"object_type"`
	ObjectID    string    `json:"object_id"`
	RuleCode    string    `json:"rule_code"`
	RuleName    string    `json:"rule_name"`
	Detail      string    `json:"detail"`
	LastChecked time.Time `json:"last_checked"`
}

// Failures lists red checks for active rules, most recent first. The
// failure detail is pulled out of the stored details JSON.
func (e *Engine) Failures(ctx context.Context, limit int) ([]Failure, error) {
	if limit <= 0 {
		limit = 50
	}
	detailExpr := db.JSONExtractTextExpr(e.db, "compliance_checks.details", "detail")
	var out []Failure
	errFind := e.db.WithContext(ctx).
		Model(&models.ComplianceCheck{}).
		Select("compliance_checks.object_type, compliance_checks.object_id, "+
			"compliance_rules.code AS rule_code, compliance_rules.name AS rule_name, "+
			detailExpr+" AS detail, compliance_checks.last_checked").
		Joins("JOIN compliance_rules ON compliance_rules.id = compliance_checks.rule_id").
		Where("compliance_rules.is_active = ? AND compliance_checks.status = ?", true, models.StatusRed).
		Order("compliance_checks.last_checked DESC").
		Limit(limit).
		Scan(&out).Error
	return out, errFind
}

// Dashboard assembles the system-wide compliance snapshot.
func (e *Engine) Dashboard(ctx context.Context) (DashboardData, error) {
	now := e.now().UTC()
	data := DashboardData{Timestamp: now}

	countByStatus := func(status models.Status) (int64, error) {
		var n int64
		errCount := e.db.WithContext(ctx).
			Model(&models.ComplianceCheck{}).
			Joins("JOIN compliance_rules ON compliance_rules.id = compliance_checks.rule_id").
			Where("compliance_rules.is_active = ? AND compliance_checks.status = ?", true, status).
			Count(&n).Error
		return n, errCount
	}

	for _, entry := range []struct {
		status models.Status
		dest   *int
	}{
		{models.StatusGreen, &data.GreenChecks},
		{models.StatusYellow, &data.YellowChecks},
		{models.StatusRed, &data.RedChecks},
	} {
		n, errCount := countByStatus(entry.status)
		if errCount != nil {
			return data, errCount
		}
		*entry.dest = int(n)
	}
	data.TotalChecks = data.GreenChecks + data.YellowChecks + data.RedChecks

	if data.TotalChecks > 0 {
		total := float64(data.TotalChecks)
		data.GreenPercentage = float64(data.GreenChecks) / total * 100
		data.YellowPercentage = float64(data.YellowChecks) / total * 100
		data.RedPercentage = float64(data.RedChecks) / total * 100
	} else {
		data.GreenPercentage = 100
	}

	rules, errLoad := e.LoadRules(ctx)
	if errLoad != nil {
		return data, errLoad
	}
	data.TotalRules = len(rules)
	for i := range rules {
		switch rules[i].Severity {
		case models.StatusRed:
			data.CriticalRules++
		case models.StatusYellow:
			data.WarningRules++
		}
	}

	groups, errCollect := e.collectDue(ctx, now, rules)
	if errCollect != nil {
		return data, errCollect
	}
	for _, pending := range groups {
		for _, p := range pending {
			if p.NextDue == nil {
				data.NeverEvaluated++
			}
			data.OverdueChecks = append(data.OverdueChecks, p)
		}
	}

	failures, errFailures := e.Failures(ctx, 10)
	if errFailures != nil {
		return data, errFailures
	}
	data.RecentFailures = failures
	return data, nil
}

// pairKey groups due pairs by object so each object is resolved once per
// run and no pair can be dispatched twice within a single pass.
type pairKey struct {
	objectType string
	objectID   string
}

// collectDue gathers stored checks past their next-due timestamp plus
// virtual pending pairs for (object, active rule) combinations that have
// never been evaluated, grouped by object.
func (e *Engine) collectDue(ctx context.Context, now time.Time, rules []models.ComplianceRule) (map[pairKey][]PendingCheck, error) {
	groups := map[pairKey][]PendingCheck{}
	seen := map[pairKey]map[uint64]struct{}{}

	add := func(p PendingCheck) {
		key := pairKey{objectType: p.ObjectType, objectID: p.ObjectID}
		byRule, ok := seen[key]
		if !ok {
			byRule = map[uint64]struct{}{}
			seen[key] = byRule
		}
		if _, dup := byRule[p.RuleID]; dup {
			return
		}
		byRule[p.RuleID] = struct{}{}
		groups[key] = append(groups[key], p)
	}

	ruleByID := make(map[uint64]*models.ComplianceRule, len(rules))
	activeIDs := make([]uint64, 0, len(rules))
	for i := range rules {
		ruleByID[rules[i].ID] = &rules[i]
		activeIDs = append(activeIDs, rules[i].ID)
	}
	if len(activeIDs) == 0 {
		return groups, nil
	}

	// Stored checks that have come due.
	var dueRows []models.ComplianceCheck
	if errFind := e.db.WithContext(ctx).
		Where("rule_id IN ? AND next_due IS NOT NULL AND next_due <= ?", activeIDs, now).
		Find(&dueRows).Error; errFind != nil {
		return nil, errFind
	}
	for i := range dueRows {
		row := &dueRows[i]
		rule, ok := ruleByID[row.RuleID]
		if !ok {
			continue
		}
		add(PendingCheck{
			ObjectType: row.ObjectType,
			ObjectID:   row.ObjectID,
			RuleID:     row.RuleID,
			RuleCode:   rule.Code,
			NextDue:    row.NextDue,
		})
	}

	// Virtual pending pairs: objects an active rule has never evaluated.
	byType := map[string][]*models.ComplianceRule{}
	for i := range rules {
		byType[rules[i].TargetObjectType] = append(byType[rules[i].TargetObjectType], &rules[i])
	}
	for objectType, typeRules := range byType {
		ids, errList := e.store.ListIDs(ctx, objectType)
		if errList != nil {
			return nil, fmt.Errorf("compliance: list %s objects: %w", objectType, errList)
		}
		if len(ids) == 0 {
			continue
		}

		ruleIDs := make([]uint64, 0, len(typeRules))
		for _, rule := range typeRules {
			ruleIDs = append(ruleIDs, rule.ID)
		}
		var existing []models.ComplianceCheck
		if errFind := e.db.WithContext(ctx).
			Select("object_id", "rule_id").
			Where("object_type = ? AND rule_id IN ?", objectType, ruleIDs).
			Find(&existing).Error; errFind != nil {
			return nil, errFind
		}
		evaluated := map[string]map[uint64]struct{}{}
		for i := range existing {
			row := &existing[i]
			if evaluated[row.ObjectID] == nil {
				evaluated[row.ObjectID] = map[uint64]struct{}{}
			}
			evaluated[row.ObjectID][row.RuleID] = struct{}{}
		}

		for _, objectID := range ids {
			for _, rule := range typeRules {
				if _, done := evaluated[objectID][rule.ID]; done {
					continue
				}
				add(PendingCheck{
					ObjectType: objectType,
					ObjectID:   objectID,
					RuleID:     rule.ID,
					RuleCode:   rule.Code,
				})
			}
		}
	}

	return groups, nil
}

// upsertCheck writes the verdict for one pair, updating in place on the
// unique (object_type, object_id, rule_id) key so re-evaluation never
// duplicates rows and concurrent scans cannot lose updates.
func (e *Engine) upsertCheck(ctx context.Context, obj Resolvable, rule *models.ComplianceRule, verdict Verdict, now time.Time, actor string) error {
	details, errMarshal := json.Marshal(verdict.Meta)
	if errMarshal != nil {
		details = []byte("{}")
	}
	nextDue := now.Add(rule.CheckFrequency())

	row := models.ComplianceCheck{
		ObjectType:  obj.ObjectType(),
		ObjectID:    obj.ObjectID(),
		RuleID:      rule.ID,
		Status:      verdict.Status,
		LastChecked: now,
		NextDue:     &nextDue,
		Details:     datatypes.JSON(details),
		CheckedBy:   actor,
	}

	persistCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	return e.db.WithContext(persistCtx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "object_type"}, {Name: "object_id"}, {Name: "rule_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "last_checked", "next_due", "details", "checked_by",
			}),
		}).
		Create(&row).Error
}
