package sources

import (
	"context"
	"strings"
)

// PubMedFixture is a deterministic stand-in for a PubMed E-utilities
// client: a small curated corpus of records relevant to the
// NAD+/longevity-supplement queries the agent is exercised against in
// tests and in mock-provider mode.
type PubMedFixture struct {
	records map[string]Record
}

// NewPubMedFixture returns a fixture seeded with a fixed corpus spanning
// a systematic review, an RCT with unspecified species, an observational
// cohort, an animal study, and a "canada cohort study of NR
// supplementation" record that exercises the endpoint classifier's
// word-boundary matching.
func NewPubMedFixture() *PubMedFixture {
	return &PubMedFixture{records: map[string]Record{
		"pmid:10000001": {
			"pmid": "10000001", "doi": "10.1000/sr.0001", "year": 2022,
			"title":             "Nicotinamide riboside supplementation and healthspan: a systematic review and meta-analysis",
			"abstract":          "We systematically reviewed randomized trials of nicotinamide riboside on mortality and functional status in older adults.",
			"publication_types": []string{"Systematic Review", "Meta-Analysis"},
			"mesh_terms":        []string{"Humans", "Aged"},
		},
		"pmid:10000002": {
			"pmid": "10000002", "doi": "10.1000/rct.0002", "year": 2021,
			"title":             "A randomized controlled trial of NAD+ precursor supplementation on frailty and falls",
			"abstract":          "In this randomized controlled trial, NAD+ precursor supplementation reduced falls and improved functional status versus placebo.",
			"publication_types": []string{"Randomized Controlled Trial"},
			"mesh_terms":        []string{},
		},
		"pmid:10000003": {
			"pmid": "10000003", "doi": "10.1000/obs.0003", "year": 2020,
			"title":             "Observational cohort study of dietary NAD+ precursors and cognitive decline",
			"abstract":          "A prospective cohort study evaluated the association between dietary NAD+ precursor intake and cognitive decline.",
			"publication_types": []string{"Cohort Study"},
			"mesh_terms":        []string{"Humans"},
		},
		"pmid:10000004": {
			"pmid": "10000004", "doi": "10.1000/mouse.0004", "year": 2019,
			"title":             "Mitochondrial dysfunction and senescence reversal by NAD+ repletion in aged mice",
			"abstract":          "In aged mice, NAD+ repletion reversed markers of mitochondrial dysfunction and cellular senescence.",
			"publication_types": []string{"Journal Article"},
			"mesh_terms":        []string{"Animals", "Mice"},
		},
		"pmid:10000005": {
			"pmid": "10000005", "doi": "10.1000/mech.0005", "year": 2023,
			"title":             "Mechanistic review of autophagy and proteostasis in aging",
			"abstract":          "This review discusses autophagy, proteostasis, and epigenetic alterations as hallmarks of aging relevant to intervention design.",
			"publication_types": []string{"Review"},
			"mesh_terms":        []string{"Humans"},
		},
		"pmid:10000006": {
			"pmid": "10000006", "doi": "10.1000/nr.0006", "year": 2018,
			"title":             "A Canada cohort study of NR supplementation and inflammaging",
			"abstract":          "This Canada-based cohort study examined NR supplementation and markers of inflammaging in community-dwelling adults.",
			"publication_types": []string{"Cohort Study"},
			"mesh_terms":        []string{"Humans"},
		},
	}}
}

func (f *PubMedFixture) Source() Name { return NamePubMed }

func (f *PubMedFixture) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	limit = clampLimit(limit, 10)
	var out []Record
	for _, key := range sortedByKey(f.records) {
		r := f.records[key]
		haystack := asString(r["title"]) + " " + asString(r["abstract"])
		if matchesQuery(haystack, query) {
			out = append(out, r)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *PubMedFixture) Get(ctx context.Context, id string) (Record, error) {
	if r, ok := f.records["pmid:"+strings.TrimPrefix(id, "pmid:")]; ok {
		return r, nil
	}
	return nil, &NotFoundError{Source: NamePubMed, ID: id}
}

func (f *PubMedFixture) AuthRequired() bool   { return false }
func (f *PubMedFixture) AuthConfigured() bool { return true }

// ClinicalTrialsFixture is a deterministic stand-in for a
// ClinicalTrials.gov client.
type ClinicalTrialsFixture struct {
	records map[string]Record
}

func NewClinicalTrialsFixture() *ClinicalTrialsFixture {
	return &ClinicalTrialsFixture{records: map[string]Record{
		"nct:NCT01000001": {
			"nct": "NCT01000001", "title": "Nicotinamide Riboside for Functional Decline in Older Adults",
			"study_type": "Interventional", "status": "Completed", "has_results": true, "is_registry_only": false,
		},
		"nct:NCT01000002": {
			"nct": "NCT01000002", "title": "NAD+ Precursor Supplementation Registry",
			"study_type": "Observational", "status": "Recruiting", "has_results": false, "is_registry_only": true,
		},
		"nct:NCT01000003": {
			"nct": "NCT01000003", "title": "NR Supplementation in Frailty: An Ongoing Interventional Trial",
			"study_type": "Interventional", "status": "Recruiting", "has_results": false, "is_registry_only": false,
		},
	}}
}

func (f *ClinicalTrialsFixture) Source() Name { return NameClinicalTrials }

func (f *ClinicalTrialsFixture) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	limit = clampLimit(limit, 10)
	var out []Record
	for _, key := range sortedByKey(f.records) {
		r := f.records[key]
		if matchesQuery(asString(r["title"]), query) {
			out = append(out, r)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *ClinicalTrialsFixture) Get(ctx context.Context, id string) (Record, error) {
	if r, ok := f.records["nct:"+strings.TrimPrefix(id, "nct:")]; ok {
		return r, nil
	}
	return nil, &NotFoundError{Source: NameClinicalTrials, ID: id}
}

func (f *ClinicalTrialsFixture) AuthRequired() bool   { return false }
func (f *ClinicalTrialsFixture) AuthConfigured() bool { return true }

// DailyMedFixture is a deterministic stand-in for DailyMed drug-label
// lookups; it is an optional, credentialed source (source_meta.auth.required
// is true) so the registry can demonstrate the UNCONFIGURED error path
// when no API key is set.
type DailyMedFixture struct {
	configured bool
	records    map[string]Record
}

func NewDailyMedFixture(configured bool) *DailyMedFixture {
	return &DailyMedFixture{configured: configured, records: map[string]Record{
		"setid:abc123": {
			"setid": "abc123", "drug_name": "Nicotinamide Riboside Chloride", "label_section": "Clinical Pharmacology",
			"text": "Nicotinamide riboside chloride is a precursor of nicotinamide adenine dinucleotide (NAD+).",
		},
	}}
}

func (f *DailyMedFixture) Source() Name { return NameDailyMed }

func (f *DailyMedFixture) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	limit = clampLimit(limit, 10)
	var out []Record
	for _, key := range sortedByKey(f.records) {
		r := f.records[key]
		if matchesQuery(asString(r["drug_name"])+" "+asString(r["text"]), query) {
			out = append(out, r)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *DailyMedFixture) Get(ctx context.Context, id string) (Record, error) {
	if r, ok := f.records["setid:"+strings.TrimPrefix(id, "setid:")]; ok {
		return r, nil
	}
	return nil, &NotFoundError{Source: NameDailyMed, ID: id}
}

func (f *DailyMedFixture) AuthRequired() bool   { return true }
func (f *DailyMedFixture) AuthConfigured() bool { return f.configured }

// OpenFDAFixture is a deterministic stand-in for openFDA adverse-event
// lookups.
type OpenFDAFixture struct {
	records map[string]Record
}

func NewOpenFDAFixture() *OpenFDAFixture {
	return &OpenFDAFixture{records: map[string]Record{
		"report:9000001": {
			"safetyreportid": "9000001", "drug_name": "Nicotinamide Riboside",
			"reaction": "Nausea", "serious": false,
		},
		"report:9000002": {
			"safetyreportid": "9000002", "drug_name": "Nicotinamide Riboside",
			"reaction": "Headache", "serious": false,
		},
	}}
}

func (f *OpenFDAFixture) Source() Name { return NameOpenFDA }

func (f *OpenFDAFixture) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	limit = clampLimit(limit, 10)
	var out []Record
	for _, key := range sortedByKey(f.records) {
		r := f.records[key]
		if matchesQuery(asString(r["drug_name"])+" "+asString(r["reaction"]), query) {
			out = append(out, r)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *OpenFDAFixture) Get(ctx context.Context, id string) (Record, error) {
	if r, ok := f.records["report:"+strings.TrimPrefix(id, "report:")]; ok {
		return r, nil
	}
	return nil, &NotFoundError{Source: NameOpenFDA, ID: id}
}

func (f *OpenFDAFixture) AuthRequired() bool   { return false }
func (f *OpenFDAFixture) AuthConfigured() bool { return true }

// OpenAlexFixture is a deterministic stand-in for OpenAlex citation
// graph lookups, used to enrich a study record's citation count.
type OpenAlexFixture struct {
	records map[string]Record
}

func NewOpenAlexFixture() *OpenAlexFixture {
	return &OpenAlexFixture{records: map[string]Record{
		"work:W1000000001": {
			"openalex_id": "W1000000001", "doi": "10.1000/sr.0001", "cited_by_count": 42,
		},
		"work:W1000000002": {
			"openalex_id": "W1000000002", "doi": "10.1000/rct.0002", "cited_by_count": 11,
		},
	}}
}

func (f *OpenAlexFixture) Source() Name { return NameOpenAlex }

func (f *OpenAlexFixture) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	limit = clampLimit(limit, 10)
	var out []Record
	for _, key := range sortedByKey(f.records) {
		r := f.records[key]
		if matchesQuery(asString(r["doi"]), query) {
			out = append(out, r)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *OpenAlexFixture) Get(ctx context.Context, id string) (Record, error) {
	if r, ok := f.records["work:"+strings.TrimPrefix(id, "work:")]; ok {
		return r, nil
	}
	return nil, &NotFoundError{Source: NameOpenAlex, ID: id}
}

func (f *OpenAlexFixture) AuthRequired() bool   { return false }
func (f *OpenAlexFixture) AuthConfigured() bool { return true }

func asString(v any) string {
	s, _ := v.(string)
	return s
}
