package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/compliance"
	"github.com/djorigin/rpasops/internal/db"
	"github.com/djorigin/rpasops/internal/fleet"
	"github.com/djorigin/rpasops/internal/maintenance"
	"github.com/djorigin/rpasops/internal/models"
	"github.com/djorigin/rpasops/internal/risk"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	custom := compliance.NewCustomRegistry()
	fleet.RegisterCustomChecks(custom)
	store := fleet.NewStore(conn, nil)
	complianceEngine := compliance.NewEngine(conn, store, custom)
	riskService := risk.NewService(conn, nil)
	maintenanceEngine := maintenance.NewEngine(conn, riskService, nil)

	router := gin.New()
	RegisterAdminRoutes(router, conn, complianceEngine, maintenanceEngine, riskService)
	return router, conn
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	decoded := map[string]any{}
	if rec.Body.Len() > 0 {
		if errDecode := json.Unmarshal(rec.Body.Bytes(), &decoded); errDecode != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), errDecode)
		}
	}
	return rec, decoded
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	rec, _ := doJSON(t, router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRulesLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	payload := `{
		"code": "REG_001",
		"name": "Registration current",
		"target_object_type": "aircraft",
		"field_path": "registration_expiry",
		"evaluation_type": "date_past",
		"severity": "red"
	}`
	rec, body := doJSON(t, router, http.MethodPost, "/v0/admin/compliance/rules", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["code"] != "REG_001" || body["is_active"] != true {
		t.Fatalf("unexpected created rule %v", body)
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/v0/admin/compliance/rules", payload)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	invalid := `{
		"code": "DEF_001",
		"name": "Defect count",
		"target_object_type": "aircraft",
		"field_path": "defects",
		"evaluation_type": "related_count",
		"severity": "red"
	}`
	rec, _ = doJSON(t, router, http.MethodPost, "/v0/admin/compliance/rules", invalid)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing threshold: expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	rec, body = doJSON(t, router, http.MethodGet, "/v0/admin/compliance/rules", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	rules, ok := body["rules"].([]any)
	if !ok || len(rules) != 1 {
		t.Fatalf("expected 1 stored rule, got %v", body)
	}

	rec, body = doJSON(t, router, http.MethodDelete, "/v0/admin/compliance/rules/REG_001", "")
	if rec.Code != http.StatusOK || body["is_active"] != false {
		t.Fatalf("deactivate: expected 200 inactive, got %d %v", rec.Code, body)
	}

	rec, _ = doJSON(t, router, http.MethodDelete, "/v0/admin/compliance/rules/NOPE_001", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deactivate unknown: expected 404, got %d", rec.Code)
	}
}

func TestSeedAndEvaluate(t *testing.T) {
	router, conn := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/v0/admin/compliance/rules/seed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("seed: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["seeded"] != float64(len(compliance.StandardRules())) {
		t.Fatalf("unexpected seed count %v", body["seeded"])
	}

	expiry := time.Now().UTC().AddDate(1, 0, 0)
	operator := models.Operator{
		Name: "Test Operator", CertificateNumber: "RE-0001",
		CertificateExpiry: &expiry, IsActive: true,
	}
	if errCreate := conn.Create(&operator).Error; errCreate != nil {
		t.Fatalf("seed operator: %v", errCreate)
	}
	aircraft := models.Aircraft{
		OperatorID: operator.ID, Serial: "SN-001", Model: "M300",
		RegistrationNumber: "CASA-1234",
		RegistrationExpiry: &expiry, InsuranceExpiry: &expiry,
		IsActive: true, IsServiceable: true,
	}
	if errCreate := conn.Create(&aircraft).Error; errCreate != nil {
		t.Fatalf("seed aircraft: %v", errCreate)
	}

	rec, body = doJSON(t, router, http.MethodPost, "/v0/admin/compliance/evaluate/aircraft/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["overall_status"] != "green" {
		t.Fatalf("expected compliant aircraft, got %s", rec.Body.String())
	}

	rec, body = doJSON(t, router, http.MethodGet, "/v0/admin/compliance/status/aircraft/1", "")
	if rec.Code != http.StatusOK || body["status"] != "green" {
		t.Fatalf("status: expected green, got %d %v", rec.Code, body)
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/v0/admin/compliance/evaluate/aircraft/99", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("evaluate missing: expected 404, got %d", rec.Code)
	}
}

func TestRiskScorePreview(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/v0/admin/risks/score",
		`{"inherent_likelihood":5,"inherent_consequence":5,"residual_likelihood":2,"residual_consequence":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("score: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["inherent_rating"] != "extreme" || body["residual_rating"] != "low" {
		t.Fatalf("unexpected ratings: %v", body)
	}
	if body["control_effectiveness"] != float64(84) {
		t.Fatalf("expected 84%% control effectiveness, got %v", body["control_effectiveness"])
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/v0/admin/risks/score",
		`{"inherent_likelihood":2,"inherent_consequence":2,"residual_likelihood":5,"residual_consequence":5}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("residual above inherent: expected 400, got %d", rec.Code)
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/v0/admin/risks/score",
		`{"category_id":99,"inherent_likelihood":3,"inherent_consequence":3,"residual_likelihood":1,"residual_consequence":1}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing category: expected 404, got %d", rec.Code)
	}
}
