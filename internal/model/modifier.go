package model

import (
	"fmt"
	"strings"
	"time"
)

// ModifierCategory classifies what a spring option changes on the sled.
type ModifierCategory string

const (
	CategoryColor      ModifierCategory = "color"
	CategoryTrack      ModifierCategory = "track"
	CategorySuspension ModifierCategory = "suspension"
	CategoryGauge      ModifierCategory = "gauge"
	CategoryStarter    ModifierCategory = "starter"
	CategoryFeature    ModifierCategory = "feature"
	CategoryAccessory  ModifierCategory = "accessory"
)

// DeltaOp says how a FieldDelta lands in the spec tree.
type DeltaOp string

const (
	// OpReplace overwrites the value at the delta's path.
	OpReplace DeltaOp = "replace"
	// OpMerge appends the value to the list at the delta's path.
	OpMerge DeltaOp = "merge"
)

// FieldDelta is one change an option modifier applies to an assembled
// spec.
type FieldDelta struct {
	Path  string  `json:"path" yaml:"path"`
	Op    DeltaOp `json:"op" yaml:"op"`
	Value any     `json:"value" yaml:"value"`
}

// ModifierSource records where a modifier definition came from.
type ModifierSource string

const (
	SourceRegistry ModifierSource = "registry"
	SourceExternal ModifierSource = "external"
)

// OptionModifierRecord is a spring-option definition held in the modifier
// registry. ModelFamily and ModelYear scope the entry; empty family or
// zero year means it applies brand-wide.
type OptionModifierRecord struct {
	ID          string           `json:"id"`
	Brand       string           `json:"brand" yaml:"brand"`
	Name        string           `json:"name" yaml:"name"`
	ModelFamily string           `json:"model_family,omitempty" yaml:"model_family,omitempty"`
	ModelYear   int              `json:"model_year,omitempty" yaml:"model_year,omitempty"`
	Category    ModifierCategory `json:"category" yaml:"category"`
	Deltas      []FieldDelta     `json:"deltas" yaml:"deltas"`
	Confidence  float64          `json:"confidence" yaml:"confidence"`
	Source      ModifierSource   `json:"source,omitempty"`
	Sightings   int              `json:"sightings,omitempty"`
	CreatedAt   time.Time        `json:"created_at,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at,omitempty"`
}

// Key returns the registry dedup key for the entry. Matching is
// case-insensitive on brand and name.
func (m *OptionModifierRecord) Key() string {
	return fmt.Sprintf("%s|%s|%d",
		strings.ToUpper(strings.TrimSpace(m.Brand)),
		strings.ToUpper(strings.TrimSpace(m.Name)),
		m.ModelYear,
	)
}

// ResolutionMethod says how a modifier token was resolved during
// assembly.
type ResolutionMethod string

const (
	ResolutionRegistry   ResolutionMethod = "registry"
	ResolutionExternal   ResolutionMethod = "external"
	ResolutionUnresolved ResolutionMethod = "unresolved"
)

// ModifierApplication is the per-token outcome recorded on the final
// record. Deltas are retained so external resolutions can later be
// promoted into the registry.
type ModifierApplication struct {
	Token         string           `json:"token"`
	Method        ResolutionMethod `json:"method"`
	Category      ModifierCategory `json:"category,omitempty"`
	Deltas        []FieldDelta     `json:"deltas,omitempty"`
	FieldsChanged []string         `json:"fields_changed,omitempty"`
	Confidence    float64          `json:"confidence"`
}
