package models

import (
	"time"

	"gorm.io/datatypes"
)

// ComplianceCheck stores the latest evaluation result for one
// (object, rule) pair. Re-evaluation updates the row in place; the unique
// index guarantees at most one row per pair.
type ComplianceCheck struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	ObjectType string `gorm:"type:varchar(100);not null;uniqueIndex:idx_check_pair,priority:1" json:"object_type"`
	ObjectID   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_check_pair,priority:2" json:"object_id"`
	RuleID     uint64 `gorm:"not null;uniqueIndex:idx_check_pair,priority:3;index" json:"rule_id"`

	Status Status `gorm:"type:varchar(10);not null" json:"status"`

	LastChecked time.Time  `gorm:"not null;index" json:"last_checked"`
	NextDue     *time.Time `gorm:"index" json:"next_due"`

	Details   datatypes.JSON `gorm:"type:jsonb" json:"details"`
	CheckedBy string         `gorm:"type:varchar(100)" json:"checked_by"`

	Rule ComplianceRule `gorm:"foreignKey:RuleID" json:"rule,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// IsOverdue reports whether the pair is due for re-evaluation at now.
func (c *ComplianceCheck) IsOverdue(now time.Time) bool {
	if c.NextDue == nil {
		return false
	}
	return now.After(*c.NextDue)
}
