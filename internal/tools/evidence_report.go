package tools

import (
	"context"

	"evidentia/internal/evidence"
	"evidentia/internal/lineage"
	"evidentia/internal/toolenvelope"
)

// BuildEvidenceReportSpec builds the tool that runs the full scoring
// pipeline (ledger -> grade -> gap map -> report) over a set of
// already-classified study stubs the model has accumulated from the
// search tools in this turn.
func BuildEvidenceReportSpec() Spec {
	return Spec{
		Name: "build_evidence_report",
		Description: DescriptionPolicy{
			Purpose:      "Deduplicate, grade, and summarize a set of classified studies into a confidence report.",
			When:         []string{"enough studies have been gathered via the search tools to answer the user's evidence question"},
			Avoid:        []string{"calling this before any search tool has returned studies"},
			CriticalArgs: []string{"studies (array of study objects, required)", "claim (object: query/intervention/population/outcome/comparator)"},
			Returns:      "An aggregate envelope with data.report containing claim, ledger, score, and gaps, plus data.markdown.",
			FailsIf:      []string{"studies is missing or not an array"},
		}.Render(),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"studies": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
				"claim": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query":        map[string]any{"type": "string"},
						"intervention": map[string]any{"type": "string"},
						"population":   map[string]any{"type": "string"},
						"outcome":      map[string]any{"type": "string"},
						"comparator":   map[string]any{"type": "string"},
					},
				},
			},
			"required": []string{"studies"},
		},
		Handler: buildEvidenceReportHandler,
	}
}

func buildEvidenceReportHandler(ctx context.Context, tc lineage.Context, args map[string]any) (any, error) {
	rawStudies, ok := args["studies"].([]any)
	if !ok {
		return nil, NewExecutionError(ErrValidation, "studies must be an array of study objects", false, nil)
	}
	records := make([]evidence.StudyRecord, 0, len(rawStudies))
	for _, raw := range rawStudies {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, studyFromMap(m))
	}

	claim := evidence.NewClaimContext("", "", "", "", "")
	if c, ok := args["claim"].(map[string]any); ok {
		claim = evidence.NewClaimContext(
			strField(c, "query"), strField(c, "intervention"), strField(c, "population"),
			strField(c, "outcome"), strField(c, "comparator"),
		)
	}

	ledger := evidence.BuildLedger(records)
	grade := evidence.GradeLedger(ledger)
	gaps := evidence.BuildGapMap(ledger, claim, &grade)
	report := evidence.BuildReport(claim, ledger, grade, gaps)

	return toolenvelope.Make("internal", "Evidence report: score "+report.Score.Label, toolenvelope.Options{
		ResultKind: toolenvelope.ResultKindAggregate,
		Data: map[string]any{
			"report":   report,
			"markdown": report.RenderMarkdown(),
		},
		AuthConfigured: true,
	}, tc.Lineage()), nil
}

func strField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func studyFromMap(m map[string]any) evidence.StudyRecord {
	s := evidence.NewStudyRecord(strField(m, "study_key"), strField(m, "source"))
	if title := strField(m, "title"); title != "" {
		s.Title = &title
	}
	if year, ok := m["year"].(float64); ok {
		yi := int(year)
		s.Year = &yi
	}
	if ids, ok := m["ids"].(map[string]any); ok {
		idm := make(map[string]string, len(ids))
		for k, v := range ids {
			if sv, ok := v.(string); ok {
				idm[k] = sv
			}
		}
		s.IDs = idm
	}
	if level, ok := m["evidence_level"].(float64); ok {
		li := int(level)
		s.EvidenceLevel = &li
	}
	if st := strField(m, "study_type"); st != "" {
		s.StudyType = st
	}
	if pc := strField(m, "population_class"); pc != "" {
		s.PopulationClass = pc
	}
	if ec := strField(m, "endpoint_class"); ec != "" {
		s.EndpointClass = ec
	}
	s.QualityFlags = stringsFromAny(m["quality_flags"])
	s.DirectnessFlags = stringsFromAny(m["directness_flags"])
	if ed := strField(m, "effect_direction"); ed != "" {
		s.EffectDirection = ed
	}
	if md, ok := m["metadata"].(map[string]any); ok {
		s.Metadata = md
	}
	return s
}

func stringsFromAny(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
