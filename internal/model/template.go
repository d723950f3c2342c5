package model

// Axis identifies one variant dimension of a base model.
type Axis string

const (
	AxisEngine  Axis = "engine"
	AxisTrack   Axis = "track"
	AxisStarter Axis = "starter"
	AxisDisplay Axis = "display"
	AxisColor   Axis = "color"
)

// AllAxes returns the variant axes in resolution order. The order is
// load-bearing: ambiguous variant matches fall back to the first
// candidate, and audit entries are emitted in this sequence.
func AllAxes() []Axis {
	return []Axis{AxisEngine, AxisTrack, AxisStarter, AxisDisplay, AxisColor}
}

// Option is a single selectable variant with its attribute bundle.
type Option struct {
	Token string   `json:"token" yaml:"token"`
	Attrs SpecTree `json:"attrs" yaml:"attrs"`
}

// BaseModelTemplate is the canonical specification for one model family
// and year: fixed platform attributes plus the selectable options per
// axis.
type BaseModelTemplate struct {
	Brand       string            `json:"brand" yaml:"brand"`
	ModelFamily string            `json:"model_family" yaml:"model_family"`
	ModelYear   int               `json:"model_year" yaml:"model_year"`
	Platform    SpecTree          `json:"platform" yaml:"platform"`
	OptionSets  map[Axis][]Option `json:"option_sets" yaml:"option_sets"`
}

// DeepCopy returns an independent copy safe to mutate during assembly.
func (t *BaseModelTemplate) DeepCopy() *BaseModelTemplate {
	if t == nil {
		return nil
	}
	out := &BaseModelTemplate{
		Brand:       t.Brand,
		ModelFamily: t.ModelFamily,
		ModelYear:   t.ModelYear,
		Platform:    t.Platform.DeepCopy(),
	}
	if t.OptionSets != nil {
		out.OptionSets = make(map[Axis][]Option, len(t.OptionSets))
		for axis, opts := range t.OptionSets {
			copied := make([]Option, len(opts))
			for i, opt := range opts {
				copied[i] = Option{Token: opt.Token, Attrs: opt.Attrs.DeepCopy()}
			}
			out.OptionSets[axis] = copied
		}
	}
	return out
}

// Options returns the option set for an axis, nil when the template does
// not declare one.
func (t *BaseModelTemplate) Options(a Axis) []Option {
	if t.OptionSets == nil {
		return nil
	}
	return t.OptionSets[a]
}
