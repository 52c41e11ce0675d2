// Package admin registers the operations API surface.
package admin

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/compliance"
	"github.com/djorigin/rpasops/internal/http/api/admin/handlers"
	"github.com/djorigin/rpasops/internal/maintenance"
	"github.com/djorigin/rpasops/internal/risk"
)

// RegisterAdminRoutes wires the admin API onto the gin engine.
func RegisterAdminRoutes(engine *gin.Engine, conn *gorm.DB,
	complianceEngine *compliance.Engine, maintenanceEngine *maintenance.Engine,
	riskService *risk.Service) {

	health := handlers.NewHealthHandler(conn)
	engine.GET("/healthz", health.Healthz)

	rules := handlers.NewRulesHandler(conn)
	checks := handlers.NewChecksHandler(complianceEngine)
	dashboard := handlers.NewDashboardHandler(complianceEngine)
	risks := handlers.NewRisksHandler(conn, riskService)
	maint := handlers.NewMaintenanceHandler(conn, maintenanceEngine)
	fleet := handlers.NewFleetHandler(conn)
	settings := handlers.NewSettingsHandler(conn)

	v0 := engine.Group("/v0/admin")

	v0.GET("/compliance/rules", rules.List)
	v0.POST("/compliance/rules", rules.Create)
	v0.PUT("/compliance/rules/:code", rules.Update)
	v0.DELETE("/compliance/rules/:code", rules.Deactivate)
	v0.POST("/compliance/rules/seed", rules.Seed)

	v0.POST("/compliance/run", checks.Run)
	v0.GET("/compliance/overdue", checks.Overdue)
	v0.GET("/compliance/failures", checks.Failures)
	v0.GET("/compliance/status/:type/:id", checks.ObjectStatus)
	v0.POST("/compliance/evaluate/:type/:id", checks.Evaluate)
	v0.GET("/compliance/dashboard", dashboard.Dashboard)

	v0.GET("/risks", risks.List)
	v0.POST("/risks", risks.Create)
	v0.POST("/risks/score", risks.ScorePreview)
	v0.PUT("/risks/:ref", risks.Reassess)
	v0.GET("/risks/overdue-reviews", risks.OverdueReviews)
	v0.GET("/risks/categories", risks.ListCategories)
	v0.POST("/risks/categories", risks.CreateCategory)

	v0.GET("/maintenance/schedules", maint.ListSchedules)
	v0.POST("/maintenance/schedules", maint.CreateSchedule)
	v0.POST("/maintenance/scan", maint.Scan)
	v0.GET("/maintenance/work-items", maint.ListWorkItems)
	v0.POST("/maintenance/work-items/:ref/complete", maint.Complete)

	v0.GET("/fleet/operators", fleet.ListOperators)
	v0.POST("/fleet/operators", fleet.CreateOperator)
	v0.GET("/fleet/aircraft", fleet.ListAircraft)
	v0.POST("/fleet/aircraft", fleet.CreateAircraft)
	v0.POST("/fleet/defects", fleet.CreateDefect)
	v0.POST("/fleet/defects/:id/rectify", fleet.RectifyDefect)

	v0.GET("/settings", settings.Get)
	v0.PUT("/settings", settings.Put)
}
