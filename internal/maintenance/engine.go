// Package maintenance derives maintenance work items from schedule trigger
// rules and from escalated safety risks. Trigger state is read-derived on
// every scan rather than persisted, so a scan can always be re-run safely.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/db"
	"github.com/djorigin/rpasops/internal/models"
	"github.com/djorigin/rpasops/internal/util"
)

const (
	// itemPrefixLen is how much of a schedule's item description keys the
	// completed-maintenance lookup. Matches by prefix so reworded tails of
	// the same item still line up with their history.
	itemPrefixLen = 20

	riskItemPrefix       = "SAFETY RISK MITIGATION: "
	riskDescriptionLimit = 200
	riskLeadDays         = 7
)

// TriggerResult reports whether a schedule fired for an aircraft and why.
type TriggerResult struct {
	Triggered bool   `json:"triggered"`
	Reason    string `json:"reason"`
}

// ScanEntry records the outcome of one schedule/aircraft pair in a scan.
type ScanEntry struct {
	ScheduleID uint64 `json:"schedule_id"`
	AircraftID uint64 `json:"aircraft_id"`
	Triggered  bool   `json:"triggered"`
	Reason     string `json:"reason"`
	Generated  bool   `json:"generated"`
	ItemRef    string `json:"item_ref,omitempty"`
}

// ScanError records a pair the scan could not process. The scan carries on.
type ScanError struct {
	ScheduleID uint64 `json:"schedule_id"`
	AircraftID uint64 `json:"aircraft_id"`
	Err        string `json:"error"`
}

// ScanReport summarizes one full scan cycle. Deduplicated counts triggers
// already covered by an open work item; SkippedInactive counts schedules
// whose aircraft is missing or retired.
type ScanReport struct {
	SchedulesChecked int         `json:"schedules_checked"`
	Triggered        int         `json:"triggered"`
	Generated        int         `json:"generated"`
	Deduplicated     int         `json:"deduplicated"`
	SkippedInactive  int         `json:"skipped_inactive"`
	Entries          []ScanEntry `json:"entries"`
	Errors           []ScanError `json:"errors,omitempty"`
	Timestamp        time.Time   `json:"timestamp"`
}

// RiskSource supplies open escalated risks for mitigation item generation.
type RiskSource interface {
	HighOpenRisks(ctx context.Context) ([]models.RiskEntry, error)
}

// Engine evaluates maintenance schedules and generates work items.
type Engine struct {
	db    *gorm.DB
	risks RiskSource
	now   func() time.Time
}

// NewEngine constructs a maintenance engine. risks may be nil when risk
// integration is not wired; now nil falls back to time.Now.
func NewEngine(conn *gorm.DB, risks RiskSource, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{db: conn, risks: risks, now: now}
}

// CheckTrigger evaluates one schedule against one aircraft without writing
// anything.
func (e *Engine) CheckTrigger(ctx context.Context, sched models.MaintenanceSchedule, aircraft models.Aircraft) (TriggerResult, error) {
	if !sched.IsActive {
		return TriggerResult{Reason: "schedule is inactive"}, nil
	}

	switch sched.ScheduleType {
	case models.ScheduleCalendar:
		if sched.IntervalDays == nil {
			return TriggerResult{}, &ValidationError{Field: "interval_days", Reason: "calendar schedule has no interval"}
		}
		last, err := e.lastCompleted(ctx, aircraft.ID, itemPrefix(sched.Item))
		if err != nil {
			return TriggerResult{}, err
		}
		if last == nil {
			return TriggerResult{Triggered: true, Reason: "no previous maintenance recorded"}, nil
		}
		daysSince := util.DaysBetween(*last.CompletedDate, e.now())
		if daysSince >= *sched.IntervalDays-sched.AdvanceNoticeDays {
			return TriggerResult{
				Triggered: true,
				Reason:    fmt.Sprintf("calendar interval reached: %d days since last maintenance", daysSince),
			}, nil
		}
		return TriggerResult{Reason: fmt.Sprintf("%d days since last maintenance, interval not reached", daysSince)}, nil

	case models.ScheduleFlightHours:
		if sched.IntervalHours == nil {
			return TriggerResult{}, &ValidationError{Field: "interval_hours", Reason: "flight hour schedule has no interval"}
		}
		threshold := *sched.IntervalHours - sched.AdvanceNoticeHours
		last, err := e.lastCompleted(ctx, aircraft.ID, itemPrefix(sched.Item))
		if err != nil {
			return TriggerResult{}, err
		}
		if aircraft.FlightHours >= threshold {
			reason := fmt.Sprintf("flight hour interval reached: %.1f hours flown", aircraft.FlightHours)
			if last == nil {
				reason = fmt.Sprintf("initial flight hour interval reached: %.1f hours flown", aircraft.FlightHours)
			}
			return TriggerResult{Triggered: true, Reason: reason}, nil
		}
		return TriggerResult{Reason: fmt.Sprintf("%.1f of %.1f flight hours", aircraft.FlightHours, threshold)}, nil

	default:
		return TriggerResult{}, &ValidationError{Field: "schedule_type", Reason: fmt.Sprintf("unknown schedule type %q", sched.ScheduleType)}
	}
}

// Generate creates a work item for a fired schedule. It returns the item and
// whether one was generated; generation is skipped when auto-generation is
// off or an uncompleted item with the same description prefix already exists.
func (e *Engine) Generate(ctx context.Context, sched *models.MaintenanceSchedule, aircraft models.Aircraft, reason string) (*models.MaintenanceWorkItem, bool, error) {
	if !sched.AutoGenerate {
		return nil, false, nil
	}

	pending, err := e.hasPending(ctx, aircraft.ID, itemPrefix(sched.Item))
	if err != nil {
		return nil, false, err
	}
	if pending {
		return nil, false, nil
	}

	today := util.DateOnly(e.now())
	due := today
	if sched.ScheduleType == models.ScheduleCalendar {
		due = today.AddDate(0, 0, sched.AdvanceNoticeDays)
	}

	description := sched.Item
	if reason != "" {
		description = fmt.Sprintf("%s [Trigger: %s]", sched.Item, reason)
	}

	item := models.MaintenanceWorkItem{
		AircraftID: aircraft.ID,
		Item:       description,
		DueDate:    due,
		Priority:   sched.Priority,
	}
	if err := e.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, false, fmt.Errorf("maintenance: create work item: %w", err)
	}

	now := e.now().UTC()
	if err := e.db.WithContext(ctx).
		Model(&models.MaintenanceSchedule{}).
		Where("id = ?", sched.ID).
		Updates(map[string]any{
			"total_generated":   gorm.Expr("total_generated + 1"),
			"last_generated_at": now,
		}).Error; err != nil {
		return nil, false, fmt.Errorf("maintenance: update schedule counters: %w", err)
	}
	sched.TotalGenerated++
	sched.LastGeneratedAt = &now

	log.Infof("maintenance: generated work item %s for aircraft %d (schedule %d)", item.Ref, aircraft.ID, sched.ID)
	return &item, true, nil
}

// ScanAll runs every active schedule against its aircraft. Failures on one
// pair are recorded in the report and the scan continues.
func (e *Engine) ScanAll(ctx context.Context) (*ScanReport, error) {
	report := &ScanReport{Timestamp: e.now().UTC()}

	var schedules []models.MaintenanceSchedule
	if err := e.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("maintenance: load schedules: %w", err)
	}
	report.SchedulesChecked = len(schedules)

	for i := range schedules {
		sched := &schedules[i]

		var aircraft models.Aircraft
		err := e.db.WithContext(ctx).
			First(&aircraft, "id = ? AND is_active = ?", sched.AircraftID, true).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			report.SkippedInactive++
			continue
		}
		if err != nil {
			report.Errors = append(report.Errors, ScanError{ScheduleID: sched.ID, AircraftID: sched.AircraftID, Err: err.Error()})
			continue
		}

		trigger, err := e.CheckTrigger(ctx, *sched, aircraft)
		if err != nil {
			report.Errors = append(report.Errors, ScanError{ScheduleID: sched.ID, AircraftID: aircraft.ID, Err: err.Error()})
			continue
		}

		entry := ScanEntry{ScheduleID: sched.ID, AircraftID: aircraft.ID, Triggered: trigger.Triggered, Reason: trigger.Reason}
		if trigger.Triggered {
			report.Triggered++
			item, generated, err := e.Generate(ctx, sched, aircraft, trigger.Reason)
			if err != nil {
				report.Errors = append(report.Errors, ScanError{ScheduleID: sched.ID, AircraftID: aircraft.ID, Err: err.Error()})
				report.Entries = append(report.Entries, entry)
				continue
			}
			entry.Generated = generated
			if generated {
				entry.ItemRef = item.Ref
				report.Generated++
			} else {
				report.Deduplicated++
			}
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}

// ScanRisks generates mitigation work items for open high and extreme risks
// flagged for maintenance integration, one per serviceable aircraft of the
// risk's operator. Items are deduplicated per risk number, so one still-open
// mitigation item never blocks items for other risks.
func (e *Engine) ScanRisks(ctx context.Context) (*ScanReport, error) {
	report := &ScanReport{Timestamp: e.now().UTC()}
	if e.risks == nil {
		return report, nil
	}

	entries, err := e.risks.HighOpenRisks(ctx)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		// The risk number sits directly after the prefix so each risk
		// dedupes independently of every other open risk.
		dedupPrefix := riskItemPrefix + entry.RiskNumber
		description := fmt.Sprintf("%s %s - %s",
			dedupPrefix, entry.Title, util.Truncate(entry.Description, riskDescriptionLimit))
		due := util.DateOnly(e.now()).AddDate(0, 0, riskLeadDays)

		priority := models.PriorityHigh
		if entry.ResidualRating == models.RatingExtreme {
			priority = models.PriorityCritical
		}

		var fleet []models.Aircraft
		if err := e.db.WithContext(ctx).
			Where("operator_id = ? AND is_active = ? AND is_serviceable = ?",
				entry.OperatorID, true, true).
			Find(&fleet).Error; err != nil {
			report.Errors = append(report.Errors, ScanError{Err: fmt.Sprintf("risk %s: list aircraft: %v", entry.RiskNumber, err)})
			continue
		}

		for _, aircraft := range fleet {
			pending, err := e.hasPending(ctx, aircraft.ID, dedupPrefix)
			if err != nil {
				report.Errors = append(report.Errors, ScanError{AircraftID: aircraft.ID, Err: err.Error()})
				continue
			}
			if pending {
				report.Deduplicated++
				continue
			}

			item := models.MaintenanceWorkItem{
				AircraftID: aircraft.ID,
				Item:       description,
				DueDate:    due,
				Priority:   priority,
			}
			if err := e.db.WithContext(ctx).Create(&item).Error; err != nil {
				report.Errors = append(report.Errors, ScanError{AircraftID: aircraft.ID, Err: err.Error()})
				continue
			}
			report.Generated++
			report.Entries = append(report.Entries, ScanEntry{
				AircraftID: aircraft.ID,
				Triggered:  true,
				Reason:     fmt.Sprintf("risk %s residual rating %s", entry.RiskNumber, entry.ResidualRating),
				Generated:  true,
				ItemRef:    item.Ref,
			})
			log.Infof("maintenance: generated risk mitigation item %s for aircraft %d (risk %s)", item.Ref, aircraft.ID, entry.RiskNumber)
		}
	}
	return report, nil
}

// RefreshOverdue recomputes the overdue flag on uncompleted work items from
// their due dates. It returns how many rows changed.
func (e *Engine) RefreshOverdue(ctx context.Context) (int64, error) {
	today := util.DateOnly(e.now())

	marked := e.db.WithContext(ctx).
		Model(&models.MaintenanceWorkItem{}).
		Where("is_completed = ? AND is_overdue = ? AND due_date < ?", false, false, today).
		Update("is_overdue", true)
	if marked.Error != nil {
		return 0, fmt.Errorf("maintenance: mark overdue: %w", marked.Error)
	}

	cleared := e.db.WithContext(ctx).
		Model(&models.MaintenanceWorkItem{}).
		Where("is_overdue = ? AND (is_completed = ? OR due_date >= ?)", true, true, today).
		Update("is_overdue", false)
	if cleared.Error != nil {
		return marked.RowsAffected, fmt.Errorf("maintenance: clear overdue: %w", cleared.Error)
	}
	return marked.RowsAffected + cleared.RowsAffected, nil
}

// MarkCompleted records completion of a work item. All three completion
// fields must be supplied together; partial completion is rejected without
// touching the stored row.
func (e *Engine) MarkCompleted(ctx context.Context, ref string, date time.Time, name, credentialID string) (*models.MaintenanceWorkItem, error) {
	if date.IsZero() {
		return nil, &ValidationError{Field: "completed_date", Reason: "completion date is required"}
	}
	if name == "" {
		return nil, &ValidationError{Field: "completed_by_name", Reason: "completer name is required"}
	}
	if credentialID == "" {
		return nil, &ValidationError{Field: "completed_by_credential_id", Reason: "completer credential is required"}
	}

	var item models.MaintenanceWorkItem
	if err := e.db.WithContext(ctx).First(&item, "ref = ?", ref).Error; err != nil {
		return nil, err
	}
	if item.IsCompleted {
		return nil, &ValidationError{Field: "ref", Reason: "work item is already completed"}
	}

	completed := util.DateOnly(date)
	if err := e.db.WithContext(ctx).
		Model(&models.MaintenanceWorkItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"completed_date":             completed,
			"completed_by_name":          name,
			"completed_by_credential_id": credentialID,
			"is_completed":               true,
			"is_overdue":                 false,
		}).Error; err != nil {
		return nil, fmt.Errorf("maintenance: complete work item: %w", err)
	}

	item.CompletedDate = &completed
	item.CompletedByName = name
	item.CompletedByCredentialID = credentialID
	item.IsCompleted = true
	item.IsOverdue = false
	return &item, nil
}

func itemPrefix(item string) string {
	return util.Truncate(item, itemPrefixLen)
}

func (e *Engine) lastCompleted(ctx context.Context, aircraftID uint64, prefix string) (*models.MaintenanceWorkItem, error) {
	var item models.MaintenanceWorkItem
	err := e.db.WithContext(ctx).
		Where("aircraft_id = ? AND is_completed = ?", aircraftID, true).
		Where(db.CaseInsensitiveLikeExpr(e.db, "item"), db.NormalizeLikePattern(e.db, prefix+"%")).
		Order("completed_date DESC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("maintenance: lookup completed items: %w", err)
	}
	return &item, nil
}

func (e *Engine) hasPending(ctx context.Context, aircraftID uint64, prefix string) (bool, error) {
	var count int64
	err := e.db.WithContext(ctx).
		Model(&models.MaintenanceWorkItem{}).
		Where("aircraft_id = ? AND is_completed = ?", aircraftID, false).
		Where(db.CaseInsensitiveLikeExpr(e.db, "item"), db.NormalizeLikePattern(e.db, prefix+"%")).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("maintenance: count pending items: %w", err)
	}
	return count > 0, nil
}
