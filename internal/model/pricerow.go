package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// PriceListRow is one line of a distributor price list after ingestion.
// Brand and ModelYear are stamped onto every row from the sheet header so
// rows stay self-contained when processed in parallel.
type PriceListRow struct {
	Brand           string          `json:"brand"`
	ModelYear       int             `json:"model_year"`
	ModelCode       string          `json:"model_code"`
	ModelName       string          `json:"model_name"`
	Package         string          `json:"package,omitempty"`
	EngineToken     string          `json:"engine_token,omitempty"`
	TrackToken      string          `json:"track_token,omitempty"`
	StarterToken    string          `json:"starter_token,omitempty"`
	DisplayToken    string          `json:"display_token,omitempty"`
	OptionModifiers string          `json:"option_modifiers,omitempty"`
	Color           string          `json:"color,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency"`
	Market          string          `json:"market"`
	RawText         string          `json:"raw_text,omitempty"`
}

// AxisToken returns the raw variant token the row carries for an axis.
func (r *PriceListRow) AxisToken(a Axis) string {
	switch a {
	case AxisEngine:
		return r.EngineToken
	case AxisTrack:
		return r.TrackToken
	case AxisStarter:
		return r.StarterToken
	case AxisDisplay:
		return r.DisplayToken
	case AxisColor:
		return r.Color
	default:
		return ""
	}
}

// ModifierTokens splits the option_modifiers cell into individual trimmed
// tokens, dropping empties.
func (r *PriceListRow) ModifierTokens() []string {
	if strings.TrimSpace(r.OptionModifiers) == "" {
		return nil
	}
	parts := strings.Split(r.OptionModifiers, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Text returns the original price-list line for semantic comparison,
// reconstructing one from the structured fields when ingestion did not
// keep the raw cells.
func (r *PriceListRow) Text() string {
	if r.RawText != "" {
		return r.RawText
	}
	parts := []string{
		r.ModelCode,
		r.ModelName,
		r.Package,
		r.EngineToken,
		r.TrackToken,
		r.StarterToken,
		r.DisplayToken,
		r.OptionModifiers,
		r.Color,
		r.Price.String() + " " + r.Currency,
		r.Market,
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " | ")
}

// Validate rejects malformed rows before they enter the engine.
func (r *PriceListRow) Validate() error {
	if strings.TrimSpace(r.Brand) == "" {
		return eris.New("model: row missing brand")
	}
	if r.ModelYear < 1990 || r.ModelYear > 2100 {
		return eris.Errorf("model: row %s: implausible model year %d", r.ModelCode, r.ModelYear)
	}
	if strings.TrimSpace(r.ModelCode) == "" {
		return eris.New("model: row missing model code")
	}
	if strings.TrimSpace(r.ModelName) == "" {
		return eris.Errorf("model: row %s missing model name", r.ModelCode)
	}
	if r.Price.Sign() <= 0 {
		return eris.Errorf("model: row %s: price must be positive, got %s", r.ModelCode, r.Price)
	}
	return nil
}
