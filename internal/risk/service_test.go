package risk

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/db"
	"github.com/djorigin/rpasops/internal/models"
)

var testNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewService(conn, func() time.Time { return testNow }), conn
}

func seedCategory(t *testing.T, conn *gorm.DB, code string, affectsAircraft bool) models.RiskCategory {
	t.Helper()
	category := models.RiskCategory{
		Code: code, Name: code + " category",
		LikelihoodModifier: 1.0, ConsequenceModifier: 1.0,
		AffectsAircraft: affectsAircraft, IsActive: true,
	}
	if errCreate := conn.Create(&category).Error; errCreate != nil {
		t.Fatalf("seed category %s: %v", code, errCreate)
	}
	return category
}

func seedOperator(t *testing.T, conn *gorm.DB) models.Operator {
	t.Helper()
	operator := models.Operator{
		Name: "Test Operator", CertificateNumber: "RE-0001", IsActive: true,
	}
	if errCreate := conn.Create(&operator).Error; errCreate != nil {
		t.Fatalf("seed operator: %v", errCreate)
	}
	return operator
}

func TestCreateAssignsNumberAndDefaults(t *testing.T) {
	service, conn := newTestService(t)
	category := seedCategory(t, conn, "AO", true)
	operator := seedOperator(t, conn)

	stored, errCreate := service.Create(context.Background(), models.RiskEntry{
		Title:               "Battery thermal runaway",
		CategoryID:          category.ID,
		OperatorID:          operator.ID,
		InherentLikelihood:  4,
		InherentConsequence: 5,
		ResidualLikelihood:  2,
		ResidualConsequence: 3,
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	if stored.RiskNumber != "RISK-AO-2026-001" {
		t.Fatalf("expected first number of the year, got %s", stored.RiskNumber)
	}
	if stored.Status != models.RiskStatusDraft {
		t.Fatalf("expected draft status, got %s", stored.Status)
	}
	if stored.InherentRating != models.RatingExtreme {
		t.Fatalf("expected 20 to rate extreme, got %s", stored.InherentRating)
	}
	if stored.ResidualRating != models.RatingLow {
		t.Fatalf("expected 6 to rate low, got %s", stored.ResidualRating)
	}
	if stored.Ref == "" {
		t.Fatalf("expected external ref assigned")
	}
	wantReview := stored.AssessmentDate.AddDate(0, 0, 24*30)
	if !stored.ReviewDate.Equal(wantReview) {
		t.Fatalf("expected review at %s for low rating, got %s", wantReview, stored.ReviewDate)
	}

	second, errSecond := service.Create(context.Background(), models.RiskEntry{
		Title:               "Lost link over populous area",
		CategoryID:          category.ID,
		OperatorID:          operator.ID,
		InherentLikelihood:  3,
		InherentConsequence: 4,
		ResidualLikelihood:  2,
		ResidualConsequence: 2,
	})
	if errSecond != nil {
		t.Fatalf("second create: %v", errSecond)
	}
	if second.RiskNumber != "RISK-AO-2026-002" {
		t.Fatalf("expected sequence to advance, got %s", second.RiskNumber)
	}
}

func TestCreateRejectsInvalidEntries(t *testing.T) {
	service, conn := newTestService(t)
	category := seedCategory(t, conn, "AO", true)
	operator := seedOperator(t, conn)

	_, errCreate := service.Create(context.Background(), models.RiskEntry{
		Title:               "Unknown category",
		CategoryID:          category.ID + 100,
		OperatorID:          operator.ID,
		InherentLikelihood:  3,
		InherentConsequence: 3,
		ResidualLikelihood:  2,
		ResidualConsequence: 2,
	})
	if !IsValidationError(errCreate) {
		t.Fatalf("expected validation error for unknown category, got %v", errCreate)
	}

	_, errCreate = service.Create(context.Background(), models.RiskEntry{
		Title:               "Score off matrix",
		CategoryID:          category.ID,
		OperatorID:          operator.ID,
		InherentLikelihood:  6,
		InherentConsequence: 3,
		ResidualLikelihood:  2,
		ResidualConsequence: 2,
	})
	if !IsValidationError(errCreate) {
		t.Fatalf("expected validation error for score 6, got %v", errCreate)
	}

	var count int64
	if errCount := conn.Model(&models.RiskEntry{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count entries: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected rejected entries not written, found %d rows", count)
	}
}

func TestReassessRecomputesRatings(t *testing.T) {
	service, conn := newTestService(t)
	category := seedCategory(t, conn, "AO", true)
	operator := seedOperator(t, conn)

	stored, errCreate := service.Create(context.Background(), models.RiskEntry{
		Title:               "Propeller failure",
		CategoryID:          category.ID,
		OperatorID:          operator.ID,
		InherentLikelihood:  4,
		InherentConsequence: 4,
		ResidualLikelihood:  4,
		ResidualConsequence: 4,
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	updated, errReassess := service.Reassess(context.Background(), stored.Ref, models.RiskEntry{
		InherentLikelihood:  4,
		InherentConsequence: 4,
		ResidualLikelihood:  1,
		ResidualConsequence: 2,
		Status:              models.RiskStatusOpen,
	})
	if errReassess != nil {
		t.Fatalf("reassess: %v", errReassess)
	}
	if updated.ResidualRating != models.RatingNegligible {
		t.Fatalf("expected 2 to rate negligible, got %s", updated.ResidualRating)
	}
	if updated.Status != models.RiskStatusOpen {
		t.Fatalf("expected status updated, got %s", updated.Status)
	}
	if updated.RiskNumber != stored.RiskNumber {
		t.Fatalf("expected number kept, got %s", updated.RiskNumber)
	}
	wantReview := updated.AssessmentDate.AddDate(0, 0, 36*30)
	if !updated.ReviewDate.Equal(wantReview) {
		t.Fatalf("expected review rescheduled to %s, got %s", wantReview, updated.ReviewDate)
	}

	// Worsened residual above inherent leaves the stored row untouched.
	_, errReassess = service.Reassess(context.Background(), stored.Ref, models.RiskEntry{
		InherentLikelihood:  2,
		InherentConsequence: 2,
		ResidualLikelihood:  5,
		ResidualConsequence: 5,
	})
	if !IsValidationError(errReassess) {
		t.Fatalf("expected validation error, got %v", errReassess)
	}
	var reloaded models.RiskEntry
	if errFind := conn.First(&reloaded, "ref = ?", stored.Ref).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.ResidualLikelihood != 1 || reloaded.ResidualConsequence != 2 {
		t.Fatalf("expected stored scores unchanged, got %d/%d",
			reloaded.ResidualLikelihood, reloaded.ResidualConsequence)
	}
}

func TestOverdueReviews(t *testing.T) {
	service, conn := newTestService(t)
	category := seedCategory(t, conn, "AO", true)
	operator := seedOperator(t, conn)

	create := func(title, status string, review time.Time) {
		t.Helper()
		_, errCreate := service.Create(context.Background(), models.RiskEntry{
			Title:               title,
			CategoryID:          category.ID,
			OperatorID:          operator.ID,
			InherentLikelihood:  3,
			InherentConsequence: 3,
			ResidualLikelihood:  2,
			ResidualConsequence: 2,
			Status:              status,
			AssessmentDate:      testNow.AddDate(-1, 0, 0),
			ReviewDate:          review,
		})
		if errCreate != nil {
			t.Fatalf("create %s: %v", title, errCreate)
		}
	}

	create("open and overdue", models.RiskStatusOpen, testNow.AddDate(0, -1, 0))
	create("monitoring and overdue", models.RiskStatusMonitoring, testNow.AddDate(0, -2, 0))
	create("draft and overdue", models.RiskStatusDraft, testNow.AddDate(0, -1, 0))
	create("open and current", models.RiskStatusOpen, testNow.AddDate(0, 1, 0))

	overdue, errList := service.OverdueReviews(context.Background(), testNow)
	if errList != nil {
		t.Fatalf("list overdue: %v", errList)
	}
	if len(overdue) != 2 {
		t.Fatalf("expected 2 overdue entries, got %d", len(overdue))
	}
	if overdue[0].Title != "monitoring and overdue" {
		t.Fatalf("expected oldest review first, got %s", overdue[0].Title)
	}
}

func TestHighOpenRisksFilters(t *testing.T) {
	service, conn := newTestService(t)
	aircraftCat := seedCategory(t, conn, "AO", true)
	adminCat := seedCategory(t, conn, "ADM", false)
	operator := seedOperator(t, conn)

	create := func(title string, categoryID uint64, status string, residualL, residualC int, integration bool) {
		t.Helper()
		_, errCreate := service.Create(context.Background(), models.RiskEntry{
			Title:                  title,
			CategoryID:             categoryID,
			OperatorID:             operator.ID,
			InherentLikelihood:     5,
			InherentConsequence:    5,
			ResidualLikelihood:     residualL,
			ResidualConsequence:    residualC,
			Status:                 status,
			MaintenanceIntegration: integration,
		})
		if errCreate != nil {
			t.Fatalf("create %s: %v", title, errCreate)
		}
	}

	create("qualifying high", aircraftCat.ID, models.RiskStatusOpen, 4, 4, true)
	create("qualifying extreme", aircraftCat.ID, models.RiskStatusOpen, 5, 5, true)
	create("not integrated", aircraftCat.ID, models.RiskStatusOpen, 4, 4, false)
	create("wrong status", aircraftCat.ID, models.RiskStatusDraft, 4, 4, true)
	create("low residual", aircraftCat.ID, models.RiskStatusOpen, 2, 2, true)
	create("non aircraft", adminCat.ID, models.RiskStatusOpen, 4, 4, true)

	entries, errList := service.HighOpenRisks(context.Background())
	if errList != nil {
		t.Fatalf("list high open: %v", errList)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 qualifying entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if !entry.RequiresImmediateAction() {
			t.Fatalf("entry %s should demand action", entry.Title)
		}
		if entry.Category.Code != "AO" {
			t.Fatalf("expected category preloaded, got %q", entry.Category.Code)
		}
	}
}
