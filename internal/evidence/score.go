package evidence

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

var levelPoints = map[int]float64{
	1: 40.0, 2: 28.0, 3: 16.0, 4: 8.0, 5: 4.0, 6: 2.0,
}

// levelOrder fixes the iteration order over levelPoints so
// ces_components is built deterministically (Go map iteration is
// randomized; Python dict literal order is insertion order 1..6).
var levelOrder = []int{1, 2, 3, 4, 5, 6}

type qualityPenalty struct {
	flag   string
	weight float64
}

// qualityPenalties fixes iteration order to match the Python dict
// literal's insertion order, since penalty entries are appended in
// this order and that order is user-visible in the trace.
var qualityPenalties = []qualityPenalty{
	{"limited_metadata", 1.5},
	{"population_unspecified", 1.5},
	{"observational_risk_confounding", 1.5},
	{"preclinical_translation_risk", 1.0},
	{"small_n_or_unknown", 2.0},
	{"not_completed", 2.0},
	{"no_registry_results", 1.5},
}

func labelForScore(score float64) (label, confidence string) {
	switch {
	case score >= 85:
		return "A", "high"
	case score >= 70:
		return "B", "moderate_high"
	case score >= 55:
		return "C", "moderate"
	case score >= 40:
		return "D", "low"
	default:
		return "E", "very_low"
	}
}

func recordHallmarkTags(r StudyRecord) []string {
	raw, _ := r.Metadata["hallmark_tags"].([]any)
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		if s, ok := tag.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// GradeLedger runs the deterministic hybrid scoring algorithm over a
// built ledger and returns the final Grade with a full audit trace.
// Every constant, ordering, and rounding point is fixed so the same
// ledger always grades to byte-identical output.
func GradeLedger(ledger EvidenceLedger) Grade {
	levelCounts := map[int]int{}
	qualityFlags := map[string]int{}
	endpointCounts := map[string]int{}
	hallmarkTags := map[string]struct{}{}

	humanCount := 0
	for _, r := range ledger.Records {
		if r.EvidenceLevel != nil {
			levelCounts[*r.EvidenceLevel]++
		}
		endpoint := r.EndpointClass
		if endpoint == "" {
			endpoint = "unknown"
		}
		endpointCounts[endpoint]++
		for _, flag := range r.QualityFlags {
			qualityFlags[flag]++
		}
		for _, tag := range recordHallmarkTags(r) {
			hallmarkTags[tag] = struct{}{}
		}
		if r.PopulationClass == "human" || r.PopulationClass == "human_registry" {
			humanCount++
		}
	}

	cesComponents := map[string]any{}
	ces := 0.0
	for _, level := range levelOrder {
		count := levelCounts[level]
		if count <= 0 {
			continue
		}
		base := levelPoints[level]
		coverageFactor := math.Min(1.0, 0.45+0.2*float64(minInt(count, 3)))
		contribution := round3(base * coverageFactor)
		ces += contribution
		cesComponents["level_"+strconv.Itoa(level)] = contribution
	}
	ces = math.Min(70.0, round3(ces))

	qualityPenalty := 0.0
	var penalties []map[string]any
	for _, qp := range qualityPenalties {
		count := qualityFlags[qp.flag]
		if count <= 0 {
			continue
		}
		penalty := math.Min(qp.weight*float64(count), qp.weight*4)
		qualityPenalty += penalty
		penalties = append(penalties, map[string]any{
			"kind": "quality", "flag": qp.flag, "count": count, "delta": -round3(penalty),
		})
	}
	qualityPenalty = round3(qualityPenalty)

	consistencyBonus := 0.0
	var bonuses []map[string]any
	if levelCounts[1] >= 1 && levelCounts[2] >= 1 {
		consistencyBonus += 4.0
		bonuses = append(bonuses, map[string]any{"kind": "consistency", "reason": "level1_plus_level2_present", "delta": 4.0})
	} else if levelCounts[2] >= 2 {
		consistencyBonus += 2.5
		bonuses = append(bonuses, map[string]any{"kind": "consistency", "reason": "multiple_level2", "delta": 2.5})
	}

	mp := 8.0 + math.Min(18.0, float64(len(hallmarkTags))*2.0)
	if endpointCounts["clinical_hard"] > 0 {
		mp += 3.0
	}
	if endpointCounts["surrogate_biomarker"] > endpointCounts["clinical_hard"] {
		mp -= 2.0
	}
	mp = math.Max(0.0, math.Min(30.0, round3(mp)))

	raw := ces + mp + consistencyBonus - qualityPenalty
	var capsApplied []map[string]any

	hasLevel12 := levelCounts[1] > 0 || levelCounts[2] > 0
	if humanCount == 0 {
		raw = math.Min(raw, 45.0)
		capsApplied = append(capsApplied, map[string]any{"cap": 45.0, "reason": "no_human_evidence"})
	} else if !hasLevel12 {
		raw = math.Min(raw, 70.0)
		capsApplied = append(capsApplied, map[string]any{"cap": 70.0, "reason": "no_level1_level2"})
	}

	if endpointCounts["surrogate_biomarker"] > 0 && endpointCounts["clinical_hard"] == 0 {
		raw = math.Min(raw, 60.0)
		capsApplied = append(capsApplied, map[string]any{"cap": 60.0, "reason": "surrogate_only_endpoints"})
	}

	final := math.Max(0.0, math.Min(100.0, round3(raw)))
	label, confidence := labelForScore(final)

	sortedLevelCounts := map[string]int{}
	for _, lvl := range sortedIntKeys(levelCounts) {
		sortedLevelCounts[strconv.Itoa(lvl)] = levelCounts[lvl]
	}

	trace := ScoreTrace{
		CES:             round3(ces),
		MP:              round3(mp),
		FinalConfidence: final,
		Penalties:       nonNilMaps(penalties),
		Bonuses:         nonNilMaps(bonuses),
		CapsApplied:     nonNilMaps(capsApplied),
		Components: map[string]any{
			"level_counts":       sortedLevelCounts,
			"ces_components":     cesComponents,
			"endpoint_counts":    endpointCounts,
			"quality_flags":      qualityFlags,
			"hallmark_tag_count": len(hallmarkTags),
			"human_count":        humanCount,
			"quality_penalty":    qualityPenalty,
			"consistency_bonus":  consistencyBonus,
		},
	}

	var notes []string
	if humanCount == 0 {
		notes = append(notes, "No human evidence detected; score is capped for translational uncertainty.")
	}
	if endpointCounts["clinical_hard"] == 0 {
		notes = append(notes, "No hard clinical endpoints detected.")
	}

	return Grade{
		Score:      final,
		Label:      label,
		Confidence: confidence,
		Trace:      trace,
		Notes:      nonNilStrs(notes),
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func sortedIntKeys(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func nonNilMaps(v []map[string]any) []map[string]any {
	if v == nil {
		return []map[string]any{}
	}
	return v
}

func nonNilStrs(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

