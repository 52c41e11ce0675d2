package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScheduleType selects how a maintenance trigger rule fires.
type ScheduleType string

// ScheduleType constants.
const (
	// ScheduleCalendar fires after a number of elapsed days.
	ScheduleCalendar ScheduleType = "calendar"
	// ScheduleFlightHours fires when cumulative flight hours reach an interval.
	ScheduleFlightHours ScheduleType = "flight_hours"
)

// Work item priorities.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityNormal   = "normal"
	PriorityLow      = "low"
	PriorityRoutine  = "routine"
)

// MaintenanceSchedule is a trigger rule that generates maintenance work
// items for an aircraft when its calendar or usage interval elapses.
type MaintenanceSchedule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	AircraftID    uint64 `gorm:"not null;index" json:"aircraft_id"`
	AircraftModel string `gorm:"type:varchar(100);not null" json:"aircraft_model"`

	Name         string       `gorm:"type:varchar(200);not null" json:"name"`
	ScheduleType ScheduleType `gorm:"type:varchar(20);not null" json:"schedule_type"`

	// Item describes the maintenance work; its prefix keys completed-item
	// lookups when deciding whether the schedule is due.
	Item         string `gorm:"type:text;not null" json:"item"`
	Instructions string `gorm:"type:text" json:"instructions"`

	IntervalDays  *int     `gorm:"" json:"interval_days"`
	IntervalHours *float64 `gorm:"" json:"interval_hours"`

	// AdvanceNoticeDays pulls calendar triggers forward for planning lead
	// time; AdvanceNoticeHours is the flight hour margin before the interval.
	AdvanceNoticeDays  int     `gorm:"not null;default:7" json:"advance_notice_days"`
	AdvanceNoticeHours float64 `gorm:"not null;default:5" json:"advance_notice_hours"`

	Priority     string `gorm:"type:varchar(10);not null;default:routine" json:"priority"`
	AutoGenerate bool   `gorm:"not null;default:true" json:"auto_generate"`
	IsActive     bool   `gorm:"not null;default:true" json:"is_active"`

	TotalGenerated  int        `gorm:"not null;default:0" json:"total_generated"`
	LastGeneratedAt *time.Time `gorm:"" json:"last_generated_at"`

	Aircraft Aircraft `gorm:"foreignKey:AircraftID" json:"aircraft,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// MaintenanceWorkItem is a pending or completed maintenance task for an
// aircraft. Completion requires the date, name, and credential ID together;
// partial completion data is rejected at write time.
type MaintenanceWorkItem struct {
	ID  uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Ref string `gorm:"type:varchar(36);not null;uniqueIndex" json:"ref"`

	AircraftID uint64    `gorm:"not null;index" json:"aircraft_id"`
	Item       string    `gorm:"type:text;not null" json:"item"`
	DueDate    time.Time `gorm:"type:date;not null;index" json:"due_date"`

	CompletedDate           *time.Time `gorm:"type:date" json:"completed_date"`
	CompletedByName         string     `gorm:"type:varchar(200)" json:"completed_by_name"`
	CompletedByCredentialID string     `gorm:"type:varchar(20)" json:"completed_by_credential_id"`

	IsOverdue   bool `gorm:"not null;default:false;index" json:"is_overdue"`
	IsCompleted bool `gorm:"not null;default:false;index" json:"is_completed"`

	Priority string `gorm:"type:varchar(10);not null;default:normal" json:"priority"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the external reference when absent.
func (w *MaintenanceWorkItem) BeforeCreate(*gorm.DB) error {
	if w.Ref == "" {
		w.Ref = uuid.NewString()
	}
	return nil
}

// CompletionValid reports whether all three completion fields are present.
func (w *MaintenanceWorkItem) CompletionValid() bool {
	return w.CompletedDate != nil && w.CompletedByName != "" && w.CompletedByCredentialID != ""
}

// PartiallyCompleted reports whether some but not all completion fields
// are present, which is invalid.
func (w *MaintenanceWorkItem) PartiallyCompleted() bool {
	any := w.CompletedDate != nil || w.CompletedByName != "" || w.CompletedByCredentialID != ""
	return any && !w.CompletionValid()
}

// DaysUntilDue returns the number of whole days until the due date,
// negative when past due.
func (w *MaintenanceWorkItem) DaysUntilDue(now time.Time) int {
	due := time.Date(w.DueDate.Year(), w.DueDate.Month(), w.DueDate.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(due.Sub(today).Hours() / 24)
}
