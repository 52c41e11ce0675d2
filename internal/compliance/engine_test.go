package compliance

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/db"
	"github.com/djorigin/rpasops/internal/models"
)

// fakeStore serves fakeObject instances by type and identifier. IDs listed
// in extraIDs but absent from objects simulate records that vanish between
// listing and lookup.
type fakeStore struct {
	objects  map[string]map[string]*fakeObject
	extraIDs map[string][]string
}

func (s *fakeStore) Lookup(_ context.Context, objectType, objectID string) (Resolvable, error) {
	obj, ok := s.objects[objectType][objectID]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", objectType, objectID, ErrObjectNotFound)
	}
	return obj, nil
}

func (s *fakeStore) ListIDs(_ context.Context, objectType string) ([]string, error) {
	ids := make([]string, 0, len(s.objects[objectType]))
	for id := range s.objects[objectType] {
		ids = append(ids, id)
	}
	ids = append(ids, s.extraIDs[objectType]...)
	sort.Strings(ids)
	return ids, nil
}

func newTestEngine(t *testing.T, store ObjectStore) (*Engine, *gorm.DB) {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewEngine(conn, store, nil, WithClock(fixedClock(t))), conn
}

func seedAircraftRules(t *testing.T, conn *gorm.DB) []models.ComplianceRule {
	t.Helper()
	rules := []models.ComplianceRule{
		{
			Code: "REG_001", Name: "Registration current",
			TargetObjectType: "aircraft", FieldPath: "registration_expiry",
			EvaluationType: models.EvalDatePast, Severity: models.StatusRed,
			IsActive: true, CheckFrequencyHours: 24,
		},
		{
			Code: "SVC_001", Name: "Aircraft serviceable",
			TargetObjectType: "aircraft", FieldPath: "is_serviceable",
			EvaluationType: models.EvalBooleanTrue, Severity: models.StatusYellow,
			IsActive: true, CheckFrequencyHours: 24,
		},
	}
	for i := range rules {
		if errCreate := conn.Create(&rules[i]).Error; errCreate != nil {
			t.Fatalf("seed rule %s: %v", rules[i].Code, errCreate)
		}
	}
	return rules
}

func testAircraft(id string, expiry time.Time, serviceable bool) *fakeObject {
	return &fakeObject{
		objectType: "aircraft",
		objectID:   id,
		fields: map[string]any{
			"registration_expiry": expiry,
			"is_serviceable":      serviceable,
		},
	}
}

func checkRowCount(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	if errCount := conn.Model(&models.ComplianceCheck{}).Count(&n).Error; errCount != nil {
		t.Fatalf("count checks: %v", errCount)
	}
	return n
}

func TestRunDueProcessesPendingPairsOnce(t *testing.T) {
	now := fixedClock(t)()
	store := &fakeStore{objects: map[string]map[string]*fakeObject{
		"aircraft": {
			"1": testAircraft("1", now.AddDate(1, 0, 0), true),
			"2": testAircraft("2", now.AddDate(-1, 0, 0), false),
		},
	}}
	engine, conn := newTestEngine(t, store)
	seedAircraftRules(t, conn)

	report, errRun := engine.RunDue(context.Background(), now)
	if errRun != nil {
		t.Fatalf("first run: %v", errRun)
	}
	if report.Due != 4 || report.Processed != 4 {
		t.Fatalf("expected 4 due and 4 processed, got %d/%d", report.Due, report.Processed)
	}
	if report.Passed != 2 || report.FailedCompliance != 2 {
		t.Fatalf("expected 2 passed and 2 failed, got %d/%d", report.Passed, report.FailedCompliance)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected pair errors: %+v", report.Errors)
	}
	if n := checkRowCount(t, conn); n != 4 {
		t.Fatalf("expected 4 check rows, got %d", n)
	}

	// Every pair was just evaluated, so an immediate re-run finds nothing.
	report, errRun = engine.RunDue(context.Background(), now)
	if errRun != nil {
		t.Fatalf("second run: %v", errRun)
	}
	if report.Due != 0 || report.Processed != 0 {
		t.Fatalf("expected idle second run, got %d due %d processed", report.Due, report.Processed)
	}

	// Past the rule frequency every pair comes due again, updating the same
	// rows rather than inserting new ones.
	report, errRun = engine.RunDue(context.Background(), now.Add(25*time.Hour))
	if errRun != nil {
		t.Fatalf("third run: %v", errRun)
	}
	if report.Due != 4 || report.Processed != 4 {
		t.Fatalf("expected 4 due after frequency elapsed, got %d/%d", report.Due, report.Processed)
	}
	if n := checkRowCount(t, conn); n != 4 {
		t.Fatalf("expected upsert to keep 4 rows, got %d", n)
	}
}

func TestRunDueRecordsLookupFailures(t *testing.T) {
	now := fixedClock(t)()
	store := &fakeStore{
		objects: map[string]map[string]*fakeObject{
			"aircraft": {"1": testAircraft("1", now.AddDate(1, 0, 0), true)},
		},
		extraIDs: map[string][]string{"aircraft": {"9"}},
	}
	engine, conn := newTestEngine(t, store)
	seedAircraftRules(t, conn)

	report, errRun := engine.RunDue(context.Background(), now)
	if errRun != nil {
		t.Fatalf("run: %v", errRun)
	}
	if report.Due != 4 {
		t.Fatalf("expected 4 due pairs, got %d", report.Due)
	}
	if report.Processed != 2 {
		t.Fatalf("expected only the resolvable object processed, got %d", report.Processed)
	}
	if len(report.Errors) != 2 {
		t.Fatalf("expected both pairs of the missing object recorded, got %+v", report.Errors)
	}
	for _, pairErr := range report.Errors {
		if pairErr.ObjectID != "9" {
			t.Fatalf("unexpected failing object %s", pairErr.ObjectID)
		}
	}
	if n := checkRowCount(t, conn); n != 2 {
		t.Fatalf("expected no rows for the missing object, got %d", n)
	}

	// Failed pairs were never persisted and stay due on the next pass.
	report, errRun = engine.RunDue(context.Background(), now)
	if errRun != nil {
		t.Fatalf("retry run: %v", errRun)
	}
	if report.Due != 2 {
		t.Fatalf("expected failed pairs still due, got %d", report.Due)
	}
}

func TestAggregateStatusWorstWins(t *testing.T) {
	now := fixedClock(t)()
	store := &fakeStore{objects: map[string]map[string]*fakeObject{
		"aircraft": {
			"1": testAircraft("1", now.AddDate(1, 0, 0), true),
			"2": testAircraft("2", now.AddDate(-1, 0, 0), false),
		},
	}}
	engine, conn := newTestEngine(t, store)
	seedAircraftRules(t, conn)

	if _, errRun := engine.RunDue(context.Background(), now); errRun != nil {
		t.Fatalf("run: %v", errRun)
	}

	status, errAgg := engine.AggregateStatus(context.Background(), "aircraft", "1")
	if errAgg != nil || status != models.StatusGreen {
		t.Fatalf("expected green for passing object, got %s (%v)", status, errAgg)
	}
	status, errAgg = engine.AggregateStatus(context.Background(), "aircraft", "2")
	if errAgg != nil || status != models.StatusRed {
		t.Fatalf("expected red to dominate yellow, got %s (%v)", status, errAgg)
	}

	// No stored rows at all means compliant by default.
	status, errAgg = engine.AggregateStatus(context.Background(), "aircraft", "99")
	if errAgg != nil || status != models.StatusGreen {
		t.Fatalf("expected green for unchecked object, got %s (%v)", status, errAgg)
	}

	// Deactivating the red rule drops its rows from the aggregate.
	if errUpdate := conn.Model(&models.ComplianceRule{}).
		Where("code = ?", "REG_001").
		Update("is_active", false).Error; errUpdate != nil {
		t.Fatalf("deactivate rule: %v", errUpdate)
	}
	status, errAgg = engine.AggregateStatus(context.Background(), "aircraft", "2")
	if errAgg != nil || status != models.StatusYellow {
		t.Fatalf("expected yellow once red rule inactive, got %s (%v)", status, errAgg)
	}
}

func TestCheckManyAggregatesCounts(t *testing.T) {
	now := fixedClock(t)()
	green := testAircraft("1", now.AddDate(1, 0, 0), true)
	yellow := testAircraft("2", now.AddDate(1, 0, 0), false)
	red := testAircraft("3", now.AddDate(-1, 0, 0), true)
	store := &fakeStore{objects: map[string]map[string]*fakeObject{
		"aircraft": {"1": green, "2": yellow, "3": red},
	}}
	engine, conn := newTestEngine(t, store)
	seedAircraftRules(t, conn)

	bulk, errCheck := engine.CheckMany(context.Background(), []Resolvable{green, yellow, red}, nil)
	if errCheck != nil {
		t.Fatalf("check many: %v", errCheck)
	}
	if bulk.Total != 3 {
		t.Fatalf("expected 3 objects, got %d", bulk.Total)
	}
	if bulk.Compliant != 1 || bulk.Warning != 1 || bulk.NonCompliant != 1 {
		t.Fatalf("unexpected counts: compliant=%d warning=%d noncompliant=%d",
			bulk.Compliant, bulk.Warning, bulk.NonCompliant)
	}
	if len(bulk.Objects) != 3 || bulk.Objects[0].Performed != 2 {
		t.Fatalf("unexpected per-object results: %+v", bulk.Objects)
	}
}

func TestDashboardTracksNeverEvaluated(t *testing.T) {
	now := fixedClock(t)()
	store := &fakeStore{objects: map[string]map[string]*fakeObject{
		"aircraft": {"1": testAircraft("1", now.AddDate(1, 0, 0), true)},
	}}
	engine, conn := newTestEngine(t, store)
	seedAircraftRules(t, conn)

	data, errDash := engine.Dashboard(context.Background())
	if errDash != nil {
		t.Fatalf("dashboard before run: %v", errDash)
	}
	if data.TotalChecks != 0 || data.GreenPercentage != 100 {
		t.Fatalf("expected empty registry to read 100%% green, got %+v", data)
	}
	if data.NeverEvaluated != 2 || len(data.OverdueChecks) != 2 {
		t.Fatalf("expected both pairs never evaluated, got %+v", data)
	}
	if data.TotalRules != 2 || data.CriticalRules != 1 || data.WarningRules != 1 {
		t.Fatalf("unexpected rule counts: %+v", data)
	}

	if _, errRun := engine.RunDue(context.Background(), now); errRun != nil {
		t.Fatalf("run: %v", errRun)
	}
	data, errDash = engine.Dashboard(context.Background())
	if errDash != nil {
		t.Fatalf("dashboard after run: %v", errDash)
	}
	if data.TotalChecks != 2 || data.GreenChecks != 2 {
		t.Fatalf("expected 2 green checks, got %+v", data)
	}
	if data.NeverEvaluated != 0 || len(data.OverdueChecks) != 0 {
		t.Fatalf("expected nothing pending after run, got %+v", data)
	}
	if data.GreenPercentage != 100 {
		t.Fatalf("expected 100%% green, got %f", data.GreenPercentage)
	}
}

func TestLoadRulesFlagsMisconfigured(t *testing.T) {
	store := &fakeStore{objects: map[string]map[string]*fakeObject{}}
	engine, conn := newTestEngine(t, store)
	seedAircraftRules(t, conn)

	broken := models.ComplianceRule{
		Code: "BAD_001", Name: "Missing threshold",
		TargetObjectType: "aircraft", FieldPath: "defects",
		EvaluationType: models.EvalRelatedCount, Severity: models.StatusRed,
		IsActive: true,
	}
	if errCreate := conn.Create(&broken).Error; errCreate != nil {
		t.Fatalf("seed broken rule: %v", errCreate)
	}

	rules, errLoad := engine.LoadRules(context.Background())
	if errLoad != nil {
		t.Fatalf("load rules: %v", errLoad)
	}
	for _, rule := range rules {
		if rule.Code == "BAD_001" {
			t.Fatalf("misconfigured rule must be excluded")
		}
	}
	if len(rules) != 2 {
		t.Fatalf("expected the 2 valid rules, got %d", len(rules))
	}

	var flagged models.ComplianceRule
	if errFind := conn.Where("code = ?", "BAD_001").First(&flagged).Error; errFind != nil {
		t.Fatalf("reload broken rule: %v", errFind)
	}
	if flagged.IsActive || flagged.LastError == "" {
		t.Fatalf("expected rule flagged inactive with error, got active=%v error=%q",
			flagged.IsActive, flagged.LastError)
	}
}

func TestFailuresExtractsDetails(t *testing.T) {
	now := fixedClock(t)()
	expired := now.AddDate(-1, 0, 0)
	store := &fakeStore{objects: map[string]map[string]*fakeObject{
		"aircraft": {
			"1": testAircraft("1", now.AddDate(1, 0, 0), true),
			"2": testAircraft("2", expired, true),
		},
	}}
	engine, conn := newTestEngine(t, store)
	seedAircraftRules(t, conn)

	if _, errRun := engine.RunDue(context.Background(), now); errRun != nil {
		t.Fatalf("run: %v", errRun)
	}

	failures, errList := engine.Failures(context.Background(), 0)
	if errList != nil {
		t.Fatalf("failures: %v", errList)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 red failure, got %d: %+v", len(failures), failures)
	}
	got := failures[0]
	if got.ObjectID != "2" || got.RuleCode != "REG_001" {
		t.Fatalf("unexpected failure row: %+v", got)
	}
	wantDetail := fmt.Sprintf("date %s has passed", expired.Format("2006-01-02"))
	if got.Detail != wantDetail {
		t.Fatalf("expected detail %q, got %q", wantDetail, got.Detail)
	}
}
