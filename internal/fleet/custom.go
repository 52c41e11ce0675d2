package fleet

import (
	"github.com/djorigin/rpasops/internal/compliance"
)

// RegisterCustomChecks installs the named callback checks rules of type
// custom_method can reference.
func RegisterCustomChecks(reg *compliance.CustomRegistry) {
	// airworthy: serviceable with no outstanding major defects.
	reg.Register(TypeAircraft, "airworthy", func(obj compliance.Resolvable) bool {
		serviceable, ok := obj.Field("is_serviceable")
		if !ok || serviceable != true {
			return false
		}
		count, ok := obj.RelatedCount("defects", "severity == major && rectified_date == null")
		return ok && count == 0
	})

	// certified: operator holds a certificate number.
	reg.Register(TypeOperator, "certified", func(obj compliance.Resolvable) bool {
		number, ok := obj.Field("certificate_number")
		if !ok {
			return false
		}
		s, isString := number.(string)
		return isString && s != ""
	})
}
