package compliance

import (
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned by object stores when an identifier does
// not resolve to a domain object.
var ErrObjectNotFound = errors.New("compliance: object not found")

// ConfigurationError marks a malformed rule definition: an unknown
// evaluation type, a missing required threshold, or an unparseable field
// path. It is raised at rule-load time, never per object.
type ConfigurationError struct {
	RuleCode string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("compliance: rule %s misconfigured: %s", e.RuleCode, e.Reason)
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var configErr *ConfigurationError
	return errors.As(err, &configErr)
}
