package maintenance

import (
	"errors"
	"fmt"
)

// ValidationError reports invalid completion or schedule data. The write
// is rejected and the stored record is left untouched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("maintenance: invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
