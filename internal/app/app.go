// Package app wires configuration, storage, engines, pollers, and the HTTP
// server into a runnable process.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/djorigin/rpasops/internal/compliance"
	"github.com/djorigin/rpasops/internal/config"
	"github.com/djorigin/rpasops/internal/db"
	"github.com/djorigin/rpasops/internal/fleet"
	relayhttp "github.com/djorigin/rpasops/internal/http"
	"github.com/djorigin/rpasops/internal/http/api/admin"
	"github.com/djorigin/rpasops/internal/logging"
	"github.com/djorigin/rpasops/internal/maintenance"
	"github.com/djorigin/rpasops/internal/risk"
	"github.com/djorigin/rpasops/internal/scheduler"
	internalsettings "github.com/djorigin/rpasops/internal/settings"
)

const shutdownGrace = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	fileCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(fileCfg.Database.DSN)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the compliance server with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	fileCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if errLog := logging.Setup(fileCfg); errLog != nil {
		return errLog
	}

	conn, err := db.Open(fileCfg.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSettings := internalsettings.RefreshDBConfigSnapshot(ctx, conn); errSettings != nil {
		return errSettings
	}

	custom := compliance.NewCustomRegistry()
	fleet.RegisterCustomChecks(custom)

	store := fleet.NewStore(conn, nil)
	complianceEngine := compliance.NewEngine(conn, store, custom,
		compliance.WithConcurrency(scheduler.ResolveMaxConcurrency))

	riskService := risk.NewService(conn, nil)
	maintenanceEngine := maintenance.NewEngine(conn, riskService, nil)

	complianceOn, maintenanceOn := fileCfg.SchedulerEnabled()
	if complianceOn {
		scheduler.NewCompliancePoller(complianceEngine).Start(ctx)
	}
	if maintenanceOn {
		scheduler.NewMaintenancePoller(maintenanceEngine).Start(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), relayhttp.RequestLogMiddleware())
	admin.RegisterAdminRoutes(engine, conn, complianceEngine, maintenanceEngine, riskService)

	server := &http.Server{
		Addr:    fileCfg.Server.Listen,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", fileCfg.Server.Listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}
