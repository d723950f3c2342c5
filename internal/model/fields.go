package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldKind is the expected type of a spec field.
type FieldKind string

const (
	KindNumeric FieldKind = "numeric"
	KindString  FieldKind = "string"
	KindEnum    FieldKind = "enum"
)

// SpecField describes one field the technical check inspects. Paths are
// dotted spec-tree paths; brand, model_year, model_code and price refer
// to record-level fields injected into the flattened view.
type SpecField struct {
	Path     string    `json:"path" yaml:"path"`
	Kind     FieldKind `json:"kind" yaml:"kind"`
	Required bool      `json:"required,omitempty" yaml:"required,omitempty"`
	// Hard marks fields whose absence or type failure fails the record
	// outright instead of just lowering the technical score.
	Hard    bool     `json:"hard,omitempty" yaml:"hard,omitempty"`
	Allowed []string `json:"allowed,omitempty" yaml:"allowed,omitempty"`
	Min     float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max     float64  `json:"max,omitempty" yaml:"max,omitempty"`
	Default any      `json:"default,omitempty" yaml:"default,omitempty"`

	allowedSet map[string]struct{}
}

// Check reports whether v is well-typed for the descriptor.
func (f *SpecField) Check(v any) bool {
	switch f.Kind {
	case KindNumeric:
		n, ok := NumericValue(v)
		if !ok {
			return false
		}
		if n < f.Min {
			return false
		}
		if f.Max > 0 && n > f.Max {
			return false
		}
		return true
	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return false
		}
		if f.allowedSet == nil {
			return strings.TrimSpace(s) != ""
		}
		_, found := f.allowedSet[strings.ToLower(strings.TrimSpace(s))]
		return found
	case KindString:
		s, ok := v.(string)
		return ok && strings.TrimSpace(s) != ""
	default:
		return v != nil
	}
}

// SpecFieldRegistry is an indexed collection of spec field descriptors.
type SpecFieldRegistry struct {
	Fields   []SpecField
	byPath   map[string]*SpecField
	required []*SpecField
	hard     []*SpecField
}

// NewSpecFieldRegistry indexes the descriptors and precompiles enum sets.
func NewSpecFieldRegistry(fields []SpecField) *SpecFieldRegistry {
	r := &SpecFieldRegistry{
		Fields: fields,
		byPath: make(map[string]*SpecField, len(fields)),
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		if len(f.Allowed) > 0 {
			f.allowedSet = make(map[string]struct{}, len(f.Allowed))
			for _, a := range f.Allowed {
				f.allowedSet[strings.ToLower(a)] = struct{}{}
			}
		}
		r.byPath[f.Path] = f
		if f.Required {
			r.required = append(r.required, f)
		}
		if f.Hard {
			r.hard = append(r.hard, f)
		}
	}
	return r
}

// ByPath returns the descriptor for the given path, or nil if not found.
func (r *SpecFieldRegistry) ByPath(path string) *SpecField {
	return r.byPath[path]
}

// Required returns all mandatory field descriptors in declaration order.
func (r *SpecFieldRegistry) Required() []*SpecField {
	return r.required
}

// Hard returns the descriptors that fail a record outright.
func (r *SpecFieldRegistry) Hard() []*SpecField {
	return r.hard
}

// NumericValue coerces the numeric representations YAML, JSON and decimal
// decoding produce.
func NumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case decimal.Decimal:
		return n.InexactFloat64(), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// DefaultSpecFields is the built-in descriptor set for snowmobile
// records. Deployments override it from a fixture file.
func DefaultSpecFields() []SpecField {
	return []SpecField{
		{Path: "brand", Kind: KindString, Required: true, Hard: true},
		{Path: "model_year", Kind: KindNumeric, Required: true, Hard: true, Min: 1990, Max: 2100},
		{Path: "model_code", Kind: KindString, Required: true, Hard: true},
		{Path: "price", Kind: KindNumeric, Required: true, Hard: true, Min: 1},
		{Path: "engine.displacement_cc", Kind: KindNumeric, Required: true, Min: 120, Max: 1200},
		{Path: "track.length_mm", Kind: KindNumeric, Required: true, Min: 2200, Max: 4600},
		{Path: "dry_weight_kg", Kind: KindNumeric, Required: true, Min: 150, Max: 500},
		{Path: "category", Kind: KindEnum, Required: true, Allowed: []string{"touring", "crossover", "mountain", "trail", "utility", "sport"}},
		{Path: "engine.type", Kind: KindString},
		{Path: "track.width_mm", Kind: KindNumeric, Min: 300, Max: 700},
		{Path: "starter.type", Kind: KindString, Default: "manual"},
		{Path: "display.type", Kind: KindString},
		{Path: "color.name", Kind: KindString},
		{Path: "suspension.front", Kind: KindString},
		{Path: "suspension.rear", Kind: KindString},
		{Path: "fuel_tank_l", Kind: KindNumeric, Min: 10, Max: 100},
	}
}
