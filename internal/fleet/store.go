// Package fleet adapts the persisted operator, aircraft, defect, and work
// item records into the object interface the compliance engine evaluates
// rules against.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/compliance"
	"github.com/djorigin/rpasops/internal/models"
)

// Object type names used in rule targeting.
const (
	TypeAircraft = "aircraft"
	TypeOperator = "operator"
)

// Store looks up fleet records as compliance.Resolvable objects.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore constructs a store. A nil now falls back to time.Now.
func NewStore(conn *gorm.DB, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{db: conn, now: now}
}

// Lookup implements compliance.ObjectStore.
func (s *Store) Lookup(ctx context.Context, objectType, objectID string) (compliance.Resolvable, error) {
	id, err := strconv.ParseUint(objectID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("fleet: %w: bad %s id %q", compliance.ErrObjectNotFound, objectType, objectID)
	}

	switch objectType {
	case TypeAircraft:
		var aircraft models.Aircraft
		err := s.db.WithContext(ctx).Preload("Operator").First(&aircraft, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fleet: %w: aircraft %s", compliance.ErrObjectNotFound, objectID)
		}
		if err != nil {
			return nil, fmt.Errorf("fleet: lookup aircraft %s: %w", objectID, err)
		}
		return &aircraftResolvable{store: s, ctx: ctx, aircraft: aircraft}, nil

	case TypeOperator:
		var operator models.Operator
		err := s.db.WithContext(ctx).First(&operator, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fleet: %w: operator %s", compliance.ErrObjectNotFound, objectID)
		}
		if err != nil {
			return nil, fmt.Errorf("fleet: lookup operator %s: %w", objectID, err)
		}
		return &operatorResolvable{store: s, ctx: ctx, operator: operator}, nil
	}
	return nil, fmt.Errorf("fleet: %w: unknown object type %q", compliance.ErrObjectNotFound, objectType)
}

// ListIDs implements compliance.ObjectStore. Only active records are
// evaluated.
func (s *Store) ListIDs(ctx context.Context, objectType string) ([]string, error) {
	var ids []uint64
	switch objectType {
	case TypeAircraft:
		if err := s.db.WithContext(ctx).Model(&models.Aircraft{}).
			Where("is_active = ?", true).Order("id").Pluck("id", &ids).Error; err != nil {
			return nil, fmt.Errorf("fleet: list aircraft: %w", err)
		}
	case TypeOperator:
		if err := s.db.WithContext(ctx).Model(&models.Operator{}).
			Where("is_active = ?", true).Order("id").Pluck("id", &ids).Error; err != nil {
			return nil, fmt.Errorf("fleet: list operators: %w", err)
		}
	default:
		return nil, nil
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatUint(id, 10))
	}
	return out, nil
}

// countFiltered loads related records and applies the filter in memory. The
// record sets per aircraft are small, so post-filtering keeps the filter
// language independent of SQL dialects.
func countFiltered[T any](ctx context.Context, s *Store, relation string, where string, args []any, get func(*T) fieldGetter, filter string) (int, bool) {
	conds, err := parseFilter(filter)
	if err != nil {
		log.WithError(err).Warnf("fleet: rejecting filter on %s", relation)
		return 0, false
	}

	var records []T
	if err := s.db.WithContext(ctx).Where(where, args...).Find(&records).Error; err != nil {
		log.WithError(err).Warnf("fleet: counting %s failed", relation)
		return 0, false
	}

	now := s.now()
	count := 0
	for i := range records {
		matched, ok := matchAll(conds, get(&records[i]), now)
		if !ok {
			return 0, false
		}
		if matched {
			count++
		}
	}
	return count, true
}
