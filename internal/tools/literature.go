package tools

import (
	"context"
	"fmt"

	"evidentia/internal/evidence"
	"evidentia/internal/lineage"
	"evidentia/internal/sources"
	"evidentia/internal/toolenvelope"
)

func recordString(r sources.Record, key string) string {
	s, _ := r[key].(string)
	return s
}

func recordStringSlice(r sources.Record, key string) []string {
	raw, ok := r[key].([]string)
	if ok {
		return raw
	}
	anySlice, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(anySlice))
	for _, v := range anySlice {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func recordBool(r sources.Record, key string) bool {
	b, _ := r[key].(bool)
	return b
}

func pubMedRecordToStudy(r sources.Record) evidence.StudyRecord {
	pm := evidence.PubMedRecord{
		PublicationTypes: recordStringSlice(r, "publication_types"),
		MeSHTerms:        recordStringSlice(r, "mesh_terms"),
		Abstract:         recordString(r, "abstract"),
		Title:            recordString(r, "title"),
	}
	c := evidence.ClassifyPubMedRecord(pm)
	study := evidence.NewStudyRecord("pubmed:"+recordString(r, "pmid"), string(sources.NamePubMed))
	title := recordString(r, "title")
	study.Title = &title
	if year, ok := r["year"].(int); ok {
		study.Year = &year
	}
	study.IDs = map[string]string{"pmid": recordString(r, "pmid")}
	if doi := recordString(r, "doi"); doi != "" {
		study.IDs["doi"] = doi
	}
	level := c.EvidenceLevel
	study.EvidenceLevel = &level
	study.StudyType = c.StudyType
	study.PopulationClass = c.PopulationClass
	study.EndpointClass = c.EndpointClass
	study.QualityFlags = c.QualityFlags
	study.DirectnessFlags = c.DirectnessFlags
	study.Metadata = map[string]any{"hallmark_tags": evidence.ExtractHallmarkTags(pm.Title + " " + pm.Abstract)}
	return study
}

func trialRecordToStudy(r sources.Record) evidence.StudyRecord {
	t := evidence.ClinicalTrial{
		StudyType:      recordString(r, "study_type"),
		Status:         recordString(r, "status"),
		HasResults:     recordBool(r, "has_results"),
		IsRegistryOnly: recordBool(r, "is_registry_only"),
	}
	c := evidence.ClassifyTrialRecord(t)
	study := evidence.NewStudyRecord("nct:"+recordString(r, "nct"), string(sources.NameClinicalTrials))
	title := recordString(r, "title")
	study.Title = &title
	study.IDs = map[string]string{"nct": recordString(r, "nct")}
	level := c.EvidenceLevel
	study.EvidenceLevel = &level
	study.StudyType = c.StudyType
	study.PopulationClass = c.PopulationClass
	study.EndpointClass = c.EndpointClass
	study.QualityFlags = c.QualityFlags
	study.DirectnessFlags = c.DirectnessFlags
	return study
}

func studyToMap(s evidence.StudyRecord) map[string]any {
	return map[string]any{
		"study_key":        s.StudyKey,
		"source":           s.Source,
		"title":            derefStrOrEmpty(s.Title),
		"year":             derefIntOrNil(s.Year),
		"ids":              s.IDs,
		"evidence_level":   derefIntOrNil(s.EvidenceLevel),
		"study_type":       s.StudyType,
		"population_class": s.PopulationClass,
		"endpoint_class":   s.EndpointClass,
		"quality_flags":    s.QualityFlags,
		"directness_flags": s.DirectnessFlags,
		"effect_direction": s.EffectDirection,
		"metadata":         s.Metadata,
	}
}

func derefStrOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefIntOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// SearchPubMedSpec builds the literature-search tool backed by the
// deterministic PubMed fixture; classification runs inline so the
// model receives already-graded study stubs ready for
// build_evidence_report.
func SearchPubMedSpec(fetcher sources.Fetcher) Spec {
	return Spec{
		Name: "search_pubmed_literature",
		Description: DescriptionPolicy{
			Purpose:      "Search PubMed for studies related to a biomedical claim and classify each hit.",
			When:         []string{"the conversation needs literature evidence for a claim about an intervention/outcome"},
			Avoid:        []string{"drug label or adverse-event lookups - use the dedicated tools for those"},
			CriticalArgs: []string{"query (string, required)", "limit (integer, optional, default 10)"},
			Returns:      "A record_list envelope whose data.studies are pre-classified study records ready for build_evidence_report.",
			FailsIf:      []string{"query is empty"},
		}.Render(),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer"},
			},
			"required": []string{"query"},
		},
		Source: string(sources.NamePubMed),
		Handler: func(ctx context.Context, tc lineage.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return nil, NewExecutionError(ErrValidation, "query is required", false, nil)
			}
			limit := 10
			if l, ok := args["limit"].(float64); ok && l > 0 {
				limit = int(l)
			}
			recs, err := fetcher.Search(ctx, query, limit)
			if err != nil {
				return nil, NewExecutionError(ErrUpstream, err.Error(), true, nil)
			}
			studies := make([]map[string]any, 0, len(recs))
			ids := make([]any, 0, len(recs))
			for _, r := range recs {
				s := pubMedRecordToStudy(r)
				studies = append(studies, studyToMap(s))
				ids = append(ids, s.StudyKey)
			}
			return toolenvelope.Make(string(sources.NamePubMed), fmt.Sprintf("%d PubMed records matched %q", len(studies), query), toolenvelope.Options{
				ResultKind:     toolenvelope.ResultKindRecordList,
				Data:           map[string]any{"studies": studies},
				IDs:            ids,
				AuthConfigured: true,
			}, tc.Lineage()), nil
		},
	}
}

// GetPubMedRecordSpec builds the single-record lookup tool.
func GetPubMedRecordSpec(fetcher sources.Fetcher) Spec {
	return Spec{
		Name: "get_pubmed_record",
		Description: DescriptionPolicy{
			Purpose:      "Fetch and classify one PubMed record by its PMID.",
			When:         []string{"a specific PMID was already surfaced and needs full classification"},
			Avoid:        []string{"broad discovery - use search_pubmed_literature instead"},
			CriticalArgs: []string{"pmid (string, required)"},
			Returns:      "A document envelope with data.study the classified record.",
			FailsIf:      []string{"pmid is empty", "no record exists with that pmid"},
		}.Render(),
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"pmid": map[string]any{"type": "string"}},
			"required":   []string{"pmid"},
		},
		Source: string(sources.NamePubMed),
		Handler: func(ctx context.Context, tc lineage.Context, args map[string]any) (any, error) {
			pmid, _ := args["pmid"].(string)
			if pmid == "" {
				return nil, NewExecutionError(ErrValidation, "pmid is required", false, nil)
			}
			rec, err := fetcher.Get(ctx, pmid)
			if err != nil {
				if _, ok := err.(*sources.NotFoundError); ok {
					return nil, NewExecutionError(ErrNotFound, err.Error(), false, nil)
				}
				return nil, NewExecutionError(ErrUpstream, err.Error(), true, nil)
			}
			s := pubMedRecordToStudy(rec)
			return toolenvelope.Make(string(sources.NamePubMed), "Fetched and classified "+pmid, toolenvelope.Options{
				ResultKind:     toolenvelope.ResultKindDocument,
				Data:           map[string]any{"study": studyToMap(s)},
				AuthConfigured: true,
			}, tc.Lineage()), nil
		},
	}
}

// SearchClinicalTrialsSpec builds the trial-registry search tool.
func SearchClinicalTrialsSpec(fetcher sources.Fetcher) Spec {
	return Spec{
		Name: "search_clinical_trials",
		Description: DescriptionPolicy{
			Purpose:      "Search ClinicalTrials.gov for registered studies and classify each hit.",
			When:         []string{"the conversation needs registry/trial evidence for a claim"},
			Avoid:        []string{"published-literature lookups - use search_pubmed_literature"},
			CriticalArgs: []string{"query (string, required)", "limit (integer, optional)"},
			Returns:      "A record_list envelope whose data.studies are pre-classified trial records.",
			FailsIf:      []string{"query is empty"},
		}.Render(),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer"},
			},
			"required": []string{"query"},
		},
		Source: string(sources.NameClinicalTrials),
		Handler: func(ctx context.Context, tc lineage.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return nil, NewExecutionError(ErrValidation, "query is required", false, nil)
			}
			limit := 10
			if l, ok := args["limit"].(float64); ok && l > 0 {
				limit = int(l)
			}
			recs, err := fetcher.Search(ctx, query, limit)
			if err != nil {
				return nil, NewExecutionError(ErrUpstream, err.Error(), true, nil)
			}
			studies := make([]map[string]any, 0, len(recs))
			ids := make([]any, 0, len(recs))
			for _, r := range recs {
				s := trialRecordToStudy(r)
				studies = append(studies, studyToMap(s))
				ids = append(ids, s.StudyKey)
			}
			return toolenvelope.Make(string(sources.NameClinicalTrials), fmt.Sprintf("%d trials matched %q", len(studies), query), toolenvelope.Options{
				ResultKind:     toolenvelope.ResultKindRecordList,
				Data:           map[string]any{"studies": studies},
				IDs:            ids,
				AuthConfigured: true,
			}, tc.Lineage()), nil
		},
	}
}

// SearchDrugLabelSpec builds the DailyMed drug-label lookup tool: a
// credentialed-optional source. When the fixture reports itself
// unconfigured, the handler returns a typed UNCONFIGURED error instead
// of silently succeeding.
func SearchDrugLabelSpec(fetcher interface {
	sources.Fetcher
	sources.AuthRequirement
}) Spec {
	return Spec{
		Name: "search_drug_label",
		Description: DescriptionPolicy{
			Purpose:      "Search DailyMed structured product labels for a drug name.",
			When:         []string{"the user asks about dosing, pharmacology, or label language for a specific product"},
			Avoid:        []string{"adverse-event frequency questions - use search_adverse_events"},
			CriticalArgs: []string{"query (string, required)"},
			Returns:      "A record_list envelope of matching label sections.",
			FailsIf:      []string{"query is empty", "DailyMed credentials are not configured"},
		}.Render(),
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []string{"query"},
		},
		Source: string(sources.NameDailyMed),
		Handler: func(ctx context.Context, tc lineage.Context, args map[string]any) (any, error) {
			if fetcher.AuthRequired() && !fetcher.AuthConfigured() {
				return nil, NewExecutionError(ErrUnconfigured, "DailyMed credentials are not configured", false, nil)
			}
			query, _ := args["query"].(string)
			if query == "" {
				return nil, NewExecutionError(ErrValidation, "query is required", false, nil)
			}
			recs, err := fetcher.Search(ctx, query, 10)
			if err != nil {
				return nil, NewExecutionError(ErrUpstream, err.Error(), true, nil)
			}
			items := make([]map[string]any, 0, len(recs))
			for _, r := range recs {
				items = append(items, map[string]any(r))
			}
			return toolenvelope.Make(string(sources.NameDailyMed), fmt.Sprintf("%d label sections matched %q", len(items), query), toolenvelope.Options{
				ResultKind:     toolenvelope.ResultKindRecordList,
				Data:           map[string]any{"items": items},
				AuthRequired:   fetcher.AuthRequired(),
				AuthConfigured: fetcher.AuthConfigured(),
			}, tc.Lineage()), nil
		},
	}
}

// SearchAdverseEventsSpec builds the openFDA adverse-event search tool.
func SearchAdverseEventsSpec(fetcher sources.Fetcher) Spec {
	return Spec{
		Name: "search_adverse_events",
		Description: DescriptionPolicy{
			Purpose:      "Search openFDA adverse-event reports for a drug or reaction term.",
			When:         []string{"the user asks about safety signals or reported adverse reactions"},
			Avoid:        []string{"efficacy or label-dosing questions"},
			CriticalArgs: []string{"query (string, required)"},
			Returns:      "A record_list envelope of matching adverse-event reports.",
			FailsIf:      []string{"query is empty"},
		}.Render(),
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []string{"query"},
		},
		Source: string(sources.NameOpenFDA),
		Handler: func(ctx context.Context, tc lineage.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return nil, NewExecutionError(ErrValidation, "query is required", false, nil)
			}
			recs, err := fetcher.Search(ctx, query, 25)
			if err != nil {
				return nil, NewExecutionError(ErrUpstream, err.Error(), true, nil)
			}
			items := make([]map[string]any, 0, len(recs))
			for _, r := range recs {
				items = append(items, map[string]any(r))
			}
			return toolenvelope.Make(string(sources.NameOpenFDA), fmt.Sprintf("%d adverse event reports matched %q", len(items), query), toolenvelope.Options{
				ResultKind:     toolenvelope.ResultKindRecordList,
				Data:           map[string]any{"items": items},
				AuthConfigured: true,
			}, tc.Lineage()), nil
		},
	}
}

// SearchCitationGraphSpec builds the OpenAlex citation-count lookup
// tool, used to enrich a study's apparent influence.
func SearchCitationGraphSpec(fetcher sources.Fetcher) Spec {
	return Spec{
		Name: "search_citation_graph",
		Description: DescriptionPolicy{
			Purpose:      "Look up OpenAlex citation counts for a DOI.",
			When:         []string{"a study's citation count is needed to contextualize its influence"},
			Avoid:        []string{"classification or scoring - this tool only returns citation metadata"},
			CriticalArgs: []string{"query (string, required - a DOI or DOI fragment)"},
			Returns:      "A record_list envelope of matching OpenAlex works.",
			FailsIf:      []string{"query is empty"},
		}.Render(),
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []string{"query"},
		},
		Source: string(sources.NameOpenAlex),
		Handler: func(ctx context.Context, tc lineage.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return nil, NewExecutionError(ErrValidation, "query is required", false, nil)
			}
			recs, err := fetcher.Search(ctx, query, 10)
			if err != nil {
				return nil, NewExecutionError(ErrUpstream, err.Error(), true, nil)
			}
			items := make([]map[string]any, 0, len(recs))
			for _, r := range recs {
				items = append(items, map[string]any(r))
			}
			return toolenvelope.Make(string(sources.NameOpenAlex), fmt.Sprintf("%d OpenAlex works matched %q", len(items), query), toolenvelope.Options{
				ResultKind:     toolenvelope.ResultKindRecordList,
				Data:           map[string]any{"items": items},
				AuthConfigured: true,
			}, tc.Lineage()), nil
		},
	}
}
