package fleet

import (
	"context"
	"strconv"

	"github.com/djorigin/rpasops/internal/compliance"
	"github.com/djorigin/rpasops/internal/models"
)

// aircraftResolvable exposes an aircraft record to rule evaluation. The
// lookup context is carried so related-count queries run under the same
// deadline as the evaluation that asked for the object.
type aircraftResolvable struct {
	store    *Store
	ctx      context.Context
	aircraft models.Aircraft
}

func (a *aircraftResolvable) ObjectType() string { return TypeAircraft }

func (a *aircraftResolvable) ObjectID() string {
	return strconv.FormatUint(a.aircraft.ID, 10)
}

func (a *aircraftResolvable) Field(name string) (any, bool) {
	switch name {
	case "serial":
		return a.aircraft.Serial, true
	case "model":
		return a.aircraft.Model, true
	case "registration_number":
		return a.aircraft.RegistrationNumber, true
	case "registration_expiry":
		return deref(a.aircraft.RegistrationExpiry), true
	case "insurance_expiry":
		return deref(a.aircraft.InsuranceExpiry), true
	case "flight_hours":
		return a.aircraft.FlightHours, true
	case "is_active":
		return a.aircraft.IsActive, true
	case "is_serviceable":
		return a.aircraft.IsServiceable, true
	case "operator":
		return compliance.Resolvable(&operatorResolvable{store: a.store, ctx: a.ctx, operator: a.aircraft.Operator}), true
	}
	return nil, false
}

func (a *aircraftResolvable) RelatedCount(relation, filter string) (int, bool) {
	switch relation {
	case "defects":
		return countFiltered(a.ctx, a.store, relation,
			"aircraft_id = ?", []any{a.aircraft.ID}, defectFields, filter)
	case "work_items":
		return countFiltered(a.ctx, a.store, relation,
			"aircraft_id = ?", []any{a.aircraft.ID}, workItemFields, filter)
	}
	return 0, false
}

// operatorResolvable exposes an operator record to rule evaluation.
type operatorResolvable struct {
	store    *Store
	ctx      context.Context
	operator models.Operator
}

func (o *operatorResolvable) ObjectType() string { return TypeOperator }

func (o *operatorResolvable) ObjectID() string {
	return strconv.FormatUint(o.operator.ID, 10)
}

func (o *operatorResolvable) Field(name string) (any, bool) {
	switch name {
	case "name":
		return o.operator.Name, true
	case "certificate_number":
		return o.operator.CertificateNumber, true
	case "certificate_expiry":
		return deref(o.operator.CertificateExpiry), true
	case "is_active":
		return o.operator.IsActive, true
	}
	return nil, false
}

func (o *operatorResolvable) RelatedCount(relation, filter string) (int, bool) {
	if relation != "aircraft" {
		return 0, false
	}
	return countFiltered(o.ctx, o.store, relation,
		"operator_id = ?", []any{o.operator.ID}, aircraftFields, filter)
}

func defectFields(d *models.Defect) fieldGetter {
	return func(name string) (any, bool) {
		switch name {
		case "severity":
			return d.Severity, true
		case "description":
			return d.Description, true
		case "discovery_date":
			return d.DiscoveryDate, true
		case "rectified_date":
			return deref(d.RectifiedDate), true
		}
		return nil, false
	}
}

func workItemFields(w *models.MaintenanceWorkItem) fieldGetter {
	return func(name string) (any, bool) {
		switch name {
		case "item":
			return w.Item, true
		case "priority":
			return w.Priority, true
		case "due_date":
			return w.DueDate, true
		case "completed_date":
			return deref(w.CompletedDate), true
		case "is_completed":
			return w.IsCompleted, true
		case "is_overdue":
			return w.IsOverdue, true
		}
		return nil, false
	}
}

func aircraftFields(a *models.Aircraft) fieldGetter {
	return func(name string) (any, bool) {
		switch name {
		case "serial":
			return a.Serial, true
		case "model":
			return a.Model, true
		case "registration_expiry":
			return deref(a.RegistrationExpiry), true
		case "insurance_expiry":
			return deref(a.InsuranceExpiry), true
		case "flight_hours":
			return a.FlightHours, true
		case "is_active":
			return a.IsActive, true
		case "is_serviceable":
			return a.IsServiceable, true
		}
		return nil, false
	}
}

// deref collapses a nil *time.Time into an untyped nil so unset dates read
// as absent values rather than typed nil pointers.
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
