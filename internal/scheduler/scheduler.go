// Package scheduler runs the periodic compliance and maintenance cycles.
// Intervals and concurrency come from DB-backed settings so they can be
// tuned without a restart.
package scheduler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/djorigin/rpasops/internal/compliance"
	"github.com/djorigin/rpasops/internal/maintenance"
	internalsettings "github.com/djorigin/rpasops/internal/settings"
)

// maxConcurrency caps the settings-driven parallelism of a compliance run.
const maxConcurrency = 16

// CompliancePoller periodically evaluates due compliance checks.
type CompliancePoller struct {
	engine *compliance.Engine
}

// NewCompliancePoller constructs a compliance poller.
func NewCompliancePoller(engine *compliance.Engine) *CompliancePoller {
	if engine == nil {
		return nil
	}
	return &CompliancePoller{engine: engine}
}

// Start launches the polling loop in a background goroutine.
func (p *CompliancePoller) Start(ctx context.Context) {
	if p == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go p.run(ctx)
	log.Infof("compliance poller started (interval=%s)", resolveComplianceInterval())
}

func (p *CompliancePoller) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.poll(ctx)
		if ctx.Err() != nil {
			return
		}
		timer := time.NewTimer(resolveComplianceInterval())
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

func (p *CompliancePoller) poll(ctx context.Context) {
	report, err := p.engine.RunDue(ctx, time.Now())
	if err != nil {
		log.WithError(err).Warn("compliance poller: run failed")
		return
	}
	if report.Due == 0 {
		return
	}
	log.Infof("compliance poller: due=%d processed=%d passed=%d failed=%d errors=%d",
		report.Due, report.Processed, report.Passed, report.FailedCompliance, len(report.Errors))
}

// MaintenancePoller periodically scans maintenance schedules and risks and
// refreshes work item overdue flags.
type MaintenancePoller struct {
	engine *maintenance.Engine
}

// NewMaintenancePoller constructs a maintenance poller.
func NewMaintenancePoller(engine *maintenance.Engine) *MaintenancePoller {
	if engine == nil {
		return nil
	}
	return &MaintenancePoller{engine: engine}
}

// Start launches the polling loop in a background goroutine.
func (p *MaintenancePoller) Start(ctx context.Context) {
	if p == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go p.run(ctx)
	log.Infof("maintenance poller started (interval=%s)", resolveMaintenanceInterval())
}

func (p *MaintenancePoller) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.poll(ctx)
		if ctx.Err() != nil {
			return
		}
		timer := time.NewTimer(resolveMaintenanceInterval())
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

func (p *MaintenancePoller) poll(ctx context.Context) {
	if changed, err := p.engine.RefreshOverdue(ctx); err != nil {
		log.WithError(err).Warn("maintenance poller: overdue refresh failed")
	} else if changed > 0 {
		log.Infof("maintenance poller: overdue flags updated on %d work items", changed)
	}

	report, err := p.engine.ScanAll(ctx)
	if err != nil {
		log.WithError(err).Warn("maintenance poller: schedule scan failed")
	} else if report.Generated > 0 || len(report.Errors) > 0 {
		log.Infof("maintenance poller: schedules=%d triggered=%d generated=%d errors=%d",
			report.SchedulesChecked, report.Triggered, report.Generated, len(report.Errors))
	}

	riskReport, err := p.engine.ScanRisks(ctx)
	if err != nil {
		log.WithError(err).Warn("maintenance poller: risk scan failed")
	} else if riskReport.Generated > 0 {
		log.Infof("maintenance poller: risk mitigation items generated=%d", riskReport.Generated)
	}
}

func resolveComplianceInterval() time.Duration {
	seconds := internalsettings.IntSetting(
		internalsettings.ComplianceRunIntervalSecondsKey,
		internalsettings.DefaultComplianceRunIntervalSeconds)
	return time.Duration(seconds) * time.Second
}

func resolveMaintenanceInterval() time.Duration {
	seconds := internalsettings.IntSetting(
		internalsettings.MaintenanceScanIntervalSecondsKey,
		internalsettings.DefaultMaintenanceScanIntervalSeconds)
	return time.Duration(seconds) * time.Second
}

// ResolveMaxConcurrency reads the compliance run concurrency setting,
// bounded to keep one run from starving the database.
func ResolveMaxConcurrency() int {
	value := internalsettings.IntSetting(
		internalsettings.ComplianceMaxConcurrencyKey,
		internalsettings.DefaultComplianceMaxConcurrency)
	if value > maxConcurrency {
		return maxConcurrency
	}
	return value
}
