package engine

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/catalog"
	"github.com/borealmotors/reconcile-cli/internal/model"
)

const (
	methodExact     = "exact"
	methodSubstring = "substring"
	methodNumeric   = "numeric"
)

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// selectVariants narrows each variant axis of the row against the
// working template's option sets, in the fixed axis order. A unique
// match flattens the option's attribute bundle into the spec; an
// ambiguous match takes the first option in declaration order; no
// match leaves the axis unresolved. None of these outcomes is fatal.
func (e *Engine) selectVariants(rec *model.FinalProductRecord, working *model.BaseModelTemplate, row model.PriceListRow) {
	for _, axis := range model.AllAxes() {
		opts := working.Options(axis)
		token := strings.TrimSpace(row.AxisToken(axis))
		if len(opts) == 0 && token == "" {
			continue
		}

		m := matchOptions(token, opts)
		if len(m.indexes) == 0 {
			rec.UnresolvedAxes = append(rec.UnresolvedAxes, axis)
			rec.AuditTrail = append(rec.AuditTrail, model.AuditEntry{
				Stage:    model.StageVariants,
				Decision: "unresolved",
				Inputs:   map[string]any{"axis": string(axis), "token": token},
			})
			if token != "" {
				zap.L().Warn("engine: variant token matched no option",
					zap.String("model_code", row.ModelCode),
					zap.String("axis", string(axis)),
					zap.String("token", token),
				)
			}
			continue
		}

		opt := opts[m.indexes[0]]
		attrs := opt.Attrs
		if attrs == nil {
			attrs = make(model.SpecTree)
		}
		rec.Spec[string(axis)] = attrs

		entry := model.AuditEntry{
			Stage:    model.StageVariants,
			Decision: "matched",
			Inputs: map[string]any{
				"axis":   string(axis),
				"token":  token,
				"option": opt.Token,
				"method": m.method,
			},
			ConfidenceContribution: 1.0,
		}
		if len(m.indexes) > 1 {
			entry.Decision = "ambiguous"
			entry.Inputs["candidates"] = len(m.indexes)
			entry.ConfidenceContribution = 0.7
			zap.L().Warn("engine: ambiguous variant token, using first option",
				zap.String("model_code", row.ModelCode),
				zap.String("axis", string(axis)),
				zap.String("token", token),
				zap.Int("candidates", len(m.indexes)),
			)
		}
		rec.AuditTrail = append(rec.AuditTrail, entry)
	}
}

type axisMatch struct {
	method  string
	indexes []int
}

// matchOptions compares a row token against the option tokens with
// three methods in order: normalized equality, normalized substring
// containment in either direction, then shared extracted numbers. The
// first method producing exactly one candidate wins; failing that, the
// first method producing any candidates is returned as an ambiguous
// result in declaration order.
func matchOptions(token string, opts []model.Option) axisMatch {
	norm := catalog.Normalize(token)
	if norm == "" {
		return axisMatch{}
	}

	var exact, substr, numeric []int
	rowNums := extractNumbers(token)
	for i, opt := range opts {
		optNorm := catalog.Normalize(opt.Token)
		if optNorm == "" {
			continue
		}
		if optNorm == norm {
			exact = append(exact, i)
		}
		if strings.Contains(norm, optNorm) || strings.Contains(optNorm, norm) {
			substr = append(substr, i)
		}
		if sharesNumber(rowNums, extractNumbers(opt.Token)) {
			numeric = append(numeric, i)
		}
	}

	ladder := []axisMatch{
		{methodExact, exact},
		{methodSubstring, substr},
		{methodNumeric, numeric},
	}
	for _, m := range ladder {
		if len(m.indexes) == 1 {
			return m
		}
	}
	for _, m := range ladder {
		if len(m.indexes) > 1 {
			return m
		}
	}
	return axisMatch{}
}

// extractNumbers pulls every numeric literal out of a token, treating
// commas as decimal separators ("3,5" and "3.5" compare equal).
func extractNumbers(s string) []float64 {
	var nums []float64
	for _, match := range numberPattern.FindAllString(s, -1) {
		n, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	return nums
}

func sharesNumber(a, b []float64) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
