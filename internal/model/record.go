package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Stage names one step of the reconciliation pipeline in audit entries.
type Stage string

const (
	StageLookup     Stage = "base_model_lookup"
	StageInherit    Stage = "inheritance"
	StageVariants   Stage = "variant_selection"
	StageModifiers  Stage = "modifier_resolution"
	StageValidation Stage = "validation"
)

// ValidationStatus is the state of a record in the confidence validator.
type ValidationStatus string

const (
	StatusPending        ValidationStatus = "pending"
	StatusPassed         ValidationStatus = "passed"
	StatusFailed         ValidationStatus = "failed"
	StatusRequiresReview ValidationStatus = "requires_review"
)

// AuditEntry records one decision made while assembling a record.
// Entries carry no timestamps so repeated runs over the same row
// serialize byte-identically.
type AuditEntry struct {
	Stage                  Stage          `json:"stage"`
	Decision               string         `json:"decision"`
	Inputs                 map[string]any `json:"inputs,omitempty"`
	ConfidenceContribution float64        `json:"confidence_contribution"`
}

// ScoreBreakdown holds the three check scores and their weighted final.
type ScoreBreakdown struct {
	Tech     float64 `json:"tech"`
	Business float64 `json:"business"`
	Semantic float64 `json:"semantic"`
	Final    float64 `json:"final"`
}

// FinalProductRecord is a fully assembled and validated product.
type FinalProductRecord struct {
	ID               string                `json:"id"`
	Row              PriceListRow          `json:"row"`
	Brand            string                `json:"brand"`
	ModelFamily      string                `json:"model_family,omitempty"`
	ModelYear        int                   `json:"model_year"`
	LookupKey        string                `json:"lookup_key,omitempty"`
	Spec             SpecTree              `json:"spec,omitempty"`
	UnresolvedAxes   []Axis                `json:"unresolved_axes,omitempty"`
	Modifiers        []ModifierApplication `json:"modifiers,omitempty"`
	Scores           ScoreBreakdown        `json:"scores"`
	ValidationStatus ValidationStatus      `json:"validation_status"`
	AutoAccepted     bool                  `json:"auto_accepted"`
	FailureReason    string                `json:"failure_reason,omitempty"`
	HardViolations   []string              `json:"hard_violations,omitempty"`
	AuditTrail       []AuditEntry          `json:"audit_trail"`
	CreatedAt        time.Time             `json:"created_at,omitempty"`
}

// Confidence returns the final weighted score.
func (r *FinalProductRecord) Confidence() float64 {
	return r.Scores.Final
}

// RecordID derives a stable identifier from the row's natural key, so
// re-running a row upserts the same record instead of minting a new one.
func RecordID(row PriceListRow) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s",
		strings.ToUpper(strings.TrimSpace(row.Brand)),
		row.ModelYear,
		strings.ToUpper(strings.TrimSpace(row.ModelCode)),
		strings.ToUpper(strings.TrimSpace(row.Market)),
	)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// ReviewStatus tracks a review queue entry's lifecycle.
type ReviewStatus string

const (
	ReviewOpen     ReviewStatus = "open"
	ReviewResolved ReviewStatus = "resolved"
)

// ReviewItem is a record parked for human review.
type ReviewItem struct {
	ID           string       `json:"id"`
	RecordID     string       `json:"record_id"`
	Brand        string       `json:"brand"`
	ModelCode    string       `json:"model_code"`
	Reason       string       `json:"reason"`
	Confidence   float64      `json:"confidence"`
	Status       ReviewStatus `json:"status"`
	NotionPageID string       `json:"notion_page_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at,omitempty"`
}
