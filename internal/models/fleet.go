package models

import "time"

// Operator is a certified RPAS operator.
type Operator struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Name              string     `gorm:"type:varchar(200);not null" json:"name"`
	CertificateNumber string     `gorm:"type:varchar(50);not null;uniqueIndex" json:"certificate_number"`
	CertificateExpiry *time.Time `gorm:"type:date" json:"certificate_expiry"`

	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// Aircraft is a registered RPAS airframe with the currency dates and usage
// counters the compliance rules and maintenance triggers read.
type Aircraft struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	OperatorID uint64 `gorm:"not null;index" json:"operator_id"`

	Serial string `gorm:"type:varchar(100);not null;uniqueIndex" json:"serial"`
	Model  string `gorm:"type:varchar(100);not null;index" json:"model"`

	RegistrationNumber string     `gorm:"type:varchar(50)" json:"registration_number"`
	RegistrationExpiry *time.Time `gorm:"type:date" json:"registration_expiry"`
	InsuranceExpiry    *time.Time `gorm:"type:date" json:"insurance_expiry"`

	FlightHours float64 `gorm:"not null;default:0" json:"flight_hours"`

	IsActive      bool `gorm:"not null;default:true" json:"is_active"`
	IsServiceable bool `gorm:"not null;default:true" json:"is_serviceable"`

	Operator Operator `gorm:"foreignKey:OperatorID" json:"operator,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// Defect severities.
const (
	DefectMajor = "major"
	DefectMinor = "minor"
)

// Defect records an airworthiness defect found on an aircraft. An
// unrectified major defect grounds the aircraft under the standard rules.
type Defect struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	AircraftID uint64 `gorm:"not null;index" json:"aircraft_id"`

	Description string `gorm:"type:text;not null" json:"description"`
	Severity    string `gorm:"type:varchar(10);not null;default:minor" json:"severity"`

	DiscoveryDate time.Time  `gorm:"type:date;not null" json:"discovery_date"`
	RectifiedDate *time.Time `gorm:"type:date" json:"rectified_date"`

	RectifiedByName string `gorm:"type:varchar(200)" json:"rectified_by_name"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// IsOutstanding reports whether the defect has not been rectified.
func (d *Defect) IsOutstanding() bool {
	return d.RectifiedDate == nil
}
