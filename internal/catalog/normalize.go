// Package catalog resolves price-list model names to base model
// templates through normalized lookup keys.
package catalog

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

// foldMarks strips combining marks after NFD decomposition, so Nordic
// letters fold to their ASCII base (Å→A, ä→a, ö→o).
var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes catalog text: diacritics fold to ASCII,
// punctuation collapses to single spaces, everything is uppercased and
// trimmed. "Ski-Doo Grand Touring™" becomes "SKI DOO GRAND TOURING".
func Normalize(s string) string {
	folded, _, err := transform.String(foldMarks, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// LookupKey builds the catalog key for a price row:
// BRAND_MODELNAME_PACKAGE_YEAR with all segments normalized and inner
// spaces replaced by underscores.
func LookupKey(brand, modelName, pkg string, year int) string {
	name := Normalize(strings.TrimSpace(modelName + " " + pkg))
	parts := []string{
		strings.ReplaceAll(Normalize(brand), " ", "_"),
		strings.ReplaceAll(name, " ", "_"),
		strconv.Itoa(year),
	}
	return strings.Join(parts, "_")
}

// TemplateKey returns the lookup key a template is stored under. The
// model family carries the package name when one applies, so the package
// segment stays empty here.
func TemplateKey(t *model.BaseModelTemplate) string {
	return LookupKey(t.Brand, t.ModelFamily, "", t.ModelYear)
}
