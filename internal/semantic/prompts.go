package semantic

import (
	"fmt"
	"strings"
)

const matchSystemPrompt = `You are matching snowmobile price list entries to a catalog of base model families.

You will be given one price list entry and the list of model families the catalog holds for that brand and year. Pick the family the entry belongs to.

Rules:
- Choose only from the candidate list. Never invent a family.
- Ignore engine names, track lengths and trim codes when comparing: "RAVE RE 850 E-TEC SHOT" belongs to the "Rave RE" family.
- If no candidate is plausible, answer with family "none".

Return a valid JSON object:
{"family": "<candidate or none>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`

const modifierSystemPrompt = `You classify snowmobile spring option tokens found on distributor price lists.

A token names a factory option that changes the assembled sled, such as a studded track, an upgraded gauge, electric start or a color edition.

Return a valid JSON object:
{
  "category": "<one of: color, track, suspension, gauge, starter, feature, accessory>",
  "confidence": <0.0-1.0>,
  "deltas": [{"path": "<dotted spec path>", "op": "<replace or merge>", "value": <new value>}]
}

Delta paths follow the catalog spec layout, e.g. "track.studded", "display.type", "starter.type", "color.name", "features".
Use "merge" only for list fields like "features". Use an empty deltas list when the option changes nothing measurable.`

const consistencySystemPrompt = `You check an assembled snowmobile specification against the price list line it was built from.

Score how well the specification agrees with the source text. Contradictions matter; fields the text never mentions do not.

Scoring guide:
- 1.0: nothing in the text contradicts the specification
- 0.7-0.9: minor disagreement, e.g. a track length one size off
- 0.3-0.6: a clear contradiction in engine, track or package
- 0.0-0.2: the specification describes a different sled

Return a valid JSON object:
{"score": <0.0-1.0>, "issues": ["<short description per contradiction>"]}`

func matchUserPrompt(q MatchQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Brand: %s\nModel year: %d\nEntry: %s", q.Brand, q.ModelYear, q.ModelName)
	if q.Package != "" {
		fmt.Fprintf(&b, "\nPackage: %s", q.Package)
	}
	b.WriteString("\n\nCandidates:\n")
	for _, c := range q.Candidates {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	return b.String()
}

func modifierUserPrompt(q ModifierQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Brand: %s\nToken: %s", q.Brand, q.Token)
	if q.ModelFamily != "" {
		fmt.Fprintf(&b, "\nModel family: %s", q.ModelFamily)
	}
	if q.ModelYear != 0 {
		fmt.Fprintf(&b, "\nModel year: %d", q.ModelYear)
	}
	return b.String()
}

func consistencyUserPrompt(rowText, specJSON string) string {
	return fmt.Sprintf("Price list line:\n%s\n\nAssembled specification:\n%s", rowText, specJSON)
}
