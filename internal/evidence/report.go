package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Report bundles the ledger, score, and gap map for one claim into two
// renderable forms: JSON with stable key ordering, and Markdown with a
// fixed section order, so identical inputs always yield identical bytes.
type Report struct {
	Claim  ClaimContext   `json:"claim"`
	Ledger EvidenceLedger `json:"ledger"`
	Score  Grade          `json:"score"`
	Gaps   GapMap         `json:"gaps"`
}

// BuildReport assembles a Report from the pipeline's three outputs.
func BuildReport(claim ClaimContext, ledger EvidenceLedger, score Grade, gaps GapMap) Report {
	return Report{Claim: claim, Ledger: ledger, Score: score, Gaps: gaps}
}

// MarshalJSON renders the report with Go's default struct-field
// ordering (stable: encoding/json always emits struct fields in
// declaration order, and map keys are sorted automatically), which is
// what gives repeated calls byte-identical output.
func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(alias(r))
}

// RenderMarkdown renders the fixed section order the spec names:
// Summary, Confidence, Evidence Table, Gaps, What Would Change The
// Score.
func (r Report) RenderMarkdown() string {
	var b bytes.Buffer

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "- Claim: %s\n", orNA(r.Claim.Query))
	fmt.Fprintf(&b, "- Intervention: %s\n", orNA(r.Claim.Intervention))
	fmt.Fprintf(&b, "- Population: %s\n", orNA(r.Claim.Population))
	fmt.Fprintf(&b, "- Outcome: %s\n", orNA(r.Claim.Outcome))
	fmt.Fprintf(&b, "- Studies considered: %d\n\n", len(r.Ledger.Records))

	fmt.Fprintf(&b, "## Confidence\n\n")
	fmt.Fprintf(&b, "- Score: %.3f\n", r.Score.Score)
	fmt.Fprintf(&b, "- Label: %s\n", r.Score.Label)
	fmt.Fprintf(&b, "- Confidence band: %s\n\n", r.Score.Confidence)

	fmt.Fprintf(&b, "## Evidence Table\n\n")
	fmt.Fprintf(&b, "| Study | Level | Population | Endpoint | Source |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|\n")
	for _, rec := range r.Ledger.Records {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			orNA(derefStr(rec.Title)), levelDisplay(rec.EvidenceLevel), rec.PopulationClass, rec.EndpointClass, rec.Source)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Gaps\n\n")
	for _, g := range r.Gaps.MissingEvidence {
		fmt.Fprintf(&b, "- %s\n", g)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## What Would Change The Score\n\n")
	for _, w := range r.Gaps.WhatWouldChangeScore {
		fmt.Fprintf(&b, "- %s\n", w)
	}

	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "n/a"
	}
	return s
}

func levelDisplay(level *int) string {
	if level == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *level)
}
