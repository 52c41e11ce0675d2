package compliance

import (
	"fmt"
	"strings"
)

// Resolvable is the capability interface domain objects implement so rules
// can be evaluated against them without reflection. Field returns a terminal
// value or a nested Resolvable for single-valued relationships; RelatedCount
// answers filtered collection counts.
type Resolvable interface {
	// ObjectType returns the stable type name used in rule targeting.
	ObjectType() string
	// ObjectID returns the opaque identifier of the object.
	ObjectID() string
	// Field returns a named field value. A known-but-unset field returns
	// (nil, true); an unknown field returns (nil, false).
	Field(name string) (any, bool)
	// RelatedCount counts a named relationship after applying a filter
	// expression. Unknown relationships or unsupported filters return
	// (0, false).
	RelatedCount(relation, filter string) (int, bool)
}

// FieldResolver resolves dotted field paths and relationship filter
// expressions against Resolvable objects. Pure read, no side effects.
type FieldResolver struct{}

// NewFieldResolver constructs a resolver.
func NewFieldResolver() *FieldResolver {
	return &FieldResolver{}
}

// Resolve resolves path against obj. Supported forms:
//
//	field
//	rel.field, rel.rel.field
//	rel.filter(expr)  -> integer count of matching related records
//
// Unknown segments yield found=false, not an error; only malformed path
// syntax is an error.
func (r *FieldResolver) Resolve(obj Resolvable, path string) (any, bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false, fmt.Errorf("compliance: empty field path")
	}

	if relation, filter, ok, errParse := splitFilterPath(path); errParse != nil {
		return nil, false, errParse
	} else if ok {
		count, found := obj.RelatedCount(relation, filter)
		if !found {
			return nil, false, nil
		}
		return count, true, nil
	}

	current := obj
	segments := strings.Split(path, ".")
	for i, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			return nil, false, fmt.Errorf("compliance: malformed field path: %s", path)
		}

		value, found := current.Field(segment)
		if !found {
			return nil, false, nil
		}
		if i == len(segments)-1 {
			return value, true, nil
		}

		next, ok := value.(Resolvable)
		if !ok || next == nil {
			// Intermediate segment is unset or not traversable.
			return nil, false, nil
		}
		current = next
	}

	return nil, false, nil
}

// splitFilterPath recognises the "relation.filter(expr)" form. It returns
// ok=false for plain dotted paths and an error for unbalanced syntax.
func splitFilterPath(path string) (relation, filter string, ok bool, err error) {
	marker := ".filter("
	idx := strings.Index(path, marker)
	if idx < 0 {
		return "", "", false, nil
	}
	if idx == 0 {
		return "", "", false, fmt.Errorf("compliance: filter path missing relation: %s", path)
	}
	if !strings.HasSuffix(path, ")") {
		return "", "", false, fmt.Errorf("compliance: unterminated filter expression: %s", path)
	}

	relation = path[:idx]
	filter = strings.TrimSpace(path[idx+len(marker) : len(path)-1])
	if strings.Contains(relation, "(") || strings.Contains(relation, ")") {
		return "", "", false, fmt.Errorf("compliance: malformed filter path: %s", path)
	}
	return relation, filter, true, nil
}
