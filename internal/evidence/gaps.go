package evidence

import "strings"

// GapMap names the missing evidence levels, the human-endpoint
// mismatch signals, and the concrete next studies that would move a
// claim's score.
type GapMap struct {
	MissingEvidence       []string         `json:"missing_evidence"`
	MissingLevels         []int            `json:"missing_levels"`
	MismatchSignals       []string         `json:"mismatch_signals"`
	WhatWouldChangeScore  []string         `json:"what_would_change_score"`
	NextBestStudies       []map[string]any `json:"next_best_studies"`
}

// BuildGapMap derives the gap map for a claim from its ledger and
// (optionally) its score. score may be nil; claim may be the zero
// value when no clarified claim context is available.
func BuildGapMap(ledger EvidenceLedger, claim ClaimContext, score *Grade) GapMap {
	levelsPresent := map[int]struct{}{}
	for _, r := range ledger.Records {
		if r.EvidenceLevel != nil {
			levelsPresent[*r.EvidenceLevel] = struct{}{}
		}
	}
	var missingLevels []int
	for _, level := range []int{1, 2, 3, 4, 5, 6} {
		if _, ok := levelsPresent[level]; !ok {
			missingLevels = append(missingLevels, level)
		}
	}

	var humanRecords []StudyRecord
	for _, r := range ledger.Records {
		lvl := 0
		if r.EvidenceLevel != nil {
			lvl = *r.EvidenceLevel
		}
		if lvl == 1 || lvl == 2 || lvl == 3 {
			humanRecords = append(humanRecords, r)
		}
	}
	hasHardEndpointHuman := false
	for _, r := range humanRecords {
		if r.EndpointClass == "clinical_hard" || r.EndpointClass == "clinical_intermediate" {
			hasHardEndpointHuman = true
			break
		}
	}

	var mismatchFlags []string
	for _, r := range ledger.Records {
		severity, _ := r.Metadata["mismatch_severity"].(string)
		severity = strings.ToLower(strings.TrimSpace(severity))
		if severity != "" {
			mismatchFlags = append(mismatchFlags, severity)
		}
	}

	missingLevelSet := map[int]struct{}{}
	for _, l := range missingLevels {
		missingLevelSet[l] = struct{}{}
	}
	_, missing1 := missingLevelSet[1]
	_, missing2 := missingLevelSet[2]

	var missing []string
	if missing1 {
		missing = append(missing, "No systematic review/meta-analysis evidence in scope.")
	}
	if missing2 {
		missing = append(missing, "No randomized/interventional human trial evidence in scope.")
	}
	if !hasHardEndpointHuman {
		missing = append(missing, "Human evidence lacks hard/intermediate clinical endpoints.")
	}
	if len(mismatchFlags) > 0 {
		missing = append(missing, "Registry-publication mismatch signals detected.")
	}

	var whatChanges []string
	if missing2 {
		whatChanges = append(whatChanges, "A preregistered interventional trial in the target population with >=12 months follow-up and functional endpoints.")
	}
	if !hasHardEndpointHuman {
		whatChanges = append(whatChanges, "At least one replicated human study with clinical outcomes (frailty/function/morbidity), not biomarker-only endpoints.")
	}
	if missing1 {
		whatChanges = append(whatChanges, "A high-quality systematic review/meta-analysis synthesizing the intervention evidence in comparable populations.")
	}

	outcome := strings.TrimSpace(claim.Outcome)
	population := strings.TrimSpace(claim.Population)

	nextBest := []map[string]any{
		{
			"name":        "Definitive human RCT",
			"design":      "Interventional randomized controlled trial",
			"population":  orDefault(population, "target older adult population"),
			"outcome":     orDefault(outcome, "healthspan-oriented clinical endpoints"),
			"minimum_specs": []string{"n>=200", "follow-up>=12 months", "pre-registered outcomes", "adverse events reporting"},
		},
	}
	if score != nil && score.Score < 50.0 {
		nextBest = append(nextBest, map[string]any{
			"name":        "Independent replication cohort",
			"design":      "Prospective independent cohort/RCT replication",
			"population":  orDefault(population, "similar target population"),
			"outcome":     orDefault(outcome, "same clinical endpoint set"),
			"minimum_specs": []string{"independent site", "comparable intervention protocol", "transparent data release"},
		})
	}

	return GapMap{
		MissingEvidence:      nonNilStrs(missing),
		MissingLevels:        nonNilInts(missingLevels),
		MismatchSignals:      nonNilStrs(mismatchFlags),
		WhatWouldChangeScore: nonNilStrs(whatChanges),
		NextBestStudies:      nextBest,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
