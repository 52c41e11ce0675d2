package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting stores a key/value runtime configuration entry in the database.
// Values are JSON-encoded so a single table carries every setting type.
type Setting struct {
	Key       string         `gorm:"type:varchar(255);primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"type:jsonb" json:"value"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
