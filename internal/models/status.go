package models

// Status is the three-color compliance verdict scale.
type Status string

// Status constants define the three-color scale.
const (
	// StatusGreen marks a compliant result.
	StatusGreen Status = "green"
	// StatusYellow marks a warning result.
	StatusYellow Status = "yellow"
	// StatusRed marks a non-compliant result.
	StatusRed Status = "red"
)

// Valid reports whether the status is one of the three known colors.
func (s Status) Valid() bool {
	switch s {
	case StatusGreen, StatusYellow, StatusRed:
		return true
	default:
		return false
	}
}

// Worse returns the more severe of the two statuses.
func (s Status) Worse(other Status) Status {
	if s == StatusRed || other == StatusRed {
		return StatusRed
	}
	if s == StatusYellow || other == StatusYellow {
		return StatusYellow
	}
	return StatusGreen
}
