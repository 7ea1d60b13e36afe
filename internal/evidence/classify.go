package evidence

import (
	"regexp"
	"strings"
)

// PubMedRecord is the subset of a PubMed-style record classification
// reads: its declared publication types, MeSH terms, and abstract
// text. The concrete PubMed fetcher lives behind internal/sources and
// is out of scope here; this type is the classifier's input contract.
type PubMedRecord struct {
	PublicationTypes []string
	MeSHTerms        []string
	Abstract         string
	Title            string
}

// Classification is what ClassifyPubMedRecord / ClassifyTrialRecord
// return: the fields a StudyRecord needs filled in from raw source
// data.
type Classification struct {
	EvidenceLevel   int
	StudyType       string
	PopulationClass string
	EndpointClass   string
	QualityFlags    []string
	DirectnessFlags []string
}

var speciesMeSHTerms = map[string]struct{}{
	"humans": {}, "human": {},
}

func containsFold(list []string, needle string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), needle) {
			return true
		}
	}
	return false
}

func hasSpeciesMeSH(terms []string) bool {
	for _, t := range terms {
		if _, ok := speciesMeSHTerms[strings.ToLower(strings.TrimSpace(t))]; ok {
			return true
		}
	}
	return false
}

// ClassifyPubMedRecord maps a PubMed-style record to evidence_level,
// study_type, population_class, endpoint_class, and quality/directness
// flags: systematic review/meta-analysis -> level 1; RCT -> level 2
// (population_unspecified flag when no species MeSH term is present);
// observational/cohort -> level 3; animal/cell -> level 5; otherwise
// level 6.
func ClassifyPubMedRecord(r PubMedRecord) Classification {
	text := r.Title + " " + r.Abstract
	endpointClass := ClassifyEndpointClass(text)
	hasHumanSpecies := hasSpeciesMeSH(r.MeSHTerms)

	switch {
	case containsFold(r.PublicationTypes, "systematic review") || containsFold(r.PublicationTypes, "meta-analysis"):
		return Classification{
			EvidenceLevel:   1,
			StudyType:       "systematic_review",
			PopulationClass: populationClassFor(hasHumanSpecies, r),
			EndpointClass:   endpointClass,
		}
	case containsFold(r.PublicationTypes, "randomized controlled trial"):
		flags := []string{}
		if !hasHumanSpecies {
			flags = append(flags, "population_unspecified")
		}
		return Classification{
			EvidenceLevel:   2,
			StudyType:       "randomized_controlled_trial",
			PopulationClass: populationClassFor(hasHumanSpecies, r),
			EndpointClass:   endpointClass,
			QualityFlags:    flags,
		}
	case containsFold(r.PublicationTypes, "observational study") || containsFold(r.PublicationTypes, "cohort study") ||
		containsFold(r.PublicationTypes, "comparative study"):
		return Classification{
			EvidenceLevel:   3,
			StudyType:       "observational",
			PopulationClass: populationClassFor(hasHumanSpecies, r),
			EndpointClass:   endpointClass,
			QualityFlags:    []string{"observational_risk_confounding"},
		}
	case isAnimalOrCell(r):
		return Classification{
			EvidenceLevel:   5,
			StudyType:       "preclinical",
			PopulationClass: animalOrCellPopulation(r),
			EndpointClass:   endpointClass,
			QualityFlags:    []string{"preclinical_translation_risk"},
		}
	default:
		return Classification{
			EvidenceLevel:   6,
			StudyType:       "other",
			PopulationClass: populationClassFor(hasHumanSpecies, r),
			EndpointClass:   endpointClass,
			QualityFlags:    []string{"limited_metadata"},
		}
	}
}

func populationClassFor(hasHumanSpecies bool, r PubMedRecord) string {
	if hasHumanSpecies {
		return "human"
	}
	if containsFold(r.MeSHTerms, "animals") {
		return "animal"
	}
	return "unknown"
}

func isAnimalOrCell(r PubMedRecord) bool {
	return containsFold(r.MeSHTerms, "animals") || containsFold(r.MeSHTerms, "cells, cultured") ||
		regexp.MustCompile(`(?i)\b(mouse|mice|rat|rats|in vitro|cell line)\b`).MatchString(r.Title+" "+r.Abstract)
}

func animalOrCellPopulation(r PubMedRecord) string {
	if containsFold(r.MeSHTerms, "cells, cultured") || regexp.MustCompile(`(?i)\b(in vitro|cell line)\b`).MatchString(r.Abstract) {
		return "cell"
	}
	return "animal"
}

// ClinicalTrial is the subset of a ClinicalTrials.gov study that
// classify_trial_record reads.
type ClinicalTrial struct {
	StudyType    string // "Interventional" or "Observational"
	Status       string
	HasResults   bool
	IsRegistryOnly bool
}

// ClassifyTrialRecord maps a registered trial to level 2 when
// interventional (flagging not_completed / no_registry_results as
// applicable), or level 4 for registry-only records.
func ClassifyTrialRecord(t ClinicalTrial) Classification {
	if t.IsRegistryOnly {
		return Classification{EvidenceLevel: 4, StudyType: "registry_only", PopulationClass: "human_registry", EndpointClass: "mechanistic_only"}
	}
	var flags []string
	if !strings.EqualFold(t.Status, "completed") {
		flags = append(flags, "not_completed")
	}
	if !t.HasResults {
		flags = append(flags, "no_registry_results")
	}
	if strings.EqualFold(t.StudyType, "Interventional") {
		return Classification{
			EvidenceLevel:   2,
			StudyType:       "interventional_trial",
			PopulationClass: "human",
			EndpointClass:   "clinical_intermediate",
			QualityFlags:    flags,
		}
	}
	return Classification{
		EvidenceLevel:   3,
		StudyType:       "observational_trial",
		PopulationClass: "human",
		EndpointClass:   "clinical_intermediate",
		QualityFlags:    flags,
	}
}

// endpointKeywords maps each surface keyword to the endpoint class it
// indicates. Every pattern is wrapped in \b so "canada" never matches
// the "nad" keyword and similar substring collisions.
var endpointKeywords = []struct {
	class   string
	pattern *regexp.Regexp
}{
	{"clinical_hard", regexp.MustCompile(`(?i)\b(mortality|survival|myocardial infarction|stroke|hospitalization|all-cause death)\b`)},
	{"clinical_intermediate", regexp.MustCompile(`(?i)\b(frailty|function(al)? status|disability|falls|cognitive decline)\b`)},
	{"surrogate_biomarker", regexp.MustCompile(`(?i)\b(biomarker|nad\+?|nad levels|hba1c|ldl|crp|inflammatory marker)\b`)},
}

// ClassifyEndpointClass performs word-boundary keyword detection over
// free text and returns the closed endpoint_class enum: a phrase like
// "canada cohort study" must not match the "NAD" biomarker keyword.
func ClassifyEndpointClass(text string) string {
	for _, kw := range endpointKeywords {
		if kw.pattern.MatchString(text) {
			return kw.class
		}
	}
	return "mechanistic_only"
}

// hallmarkTags are the closed set of aging-hallmark keywords
// extract_hallmark_tags looks for.
var hallmarkTags = []struct {
	tag     string
	pattern *regexp.Regexp
}{
	{"genomic_instability", regexp.MustCompile(`(?i)\bgenomic instability\b`)},
	{"telomere_attrition", regexp.MustCompile(`(?i)\btelomere\b`)},
	{"epigenetic_alterations", regexp.MustCompile(`(?i)\bepigenetic\b`)},
	{"loss_of_proteostasis", regexp.MustCompile(`(?i)\bproteostasis\b`)},
	{"mitochondrial_dysfunction", regexp.MustCompile(`(?i)\bmitochondria(l)?\b`)},
	{"cellular_senescence", regexp.MustCompile(`(?i)\bsenescen(t|ce)\b`)},
	{"stem_cell_exhaustion", regexp.MustCompile(`(?i)\bstem cell exhaustion\b`)},
	{"altered_intercellular_communication", regexp.MustCompile(`(?i)\binflammaging\b`)},
	{"deregulated_nutrient_sensing", regexp.MustCompile(`(?i)\b(mtor|ampk|insulin signaling)\b`)},
	{"disabled_macroautophagy", regexp.MustCompile(`(?i)\bautophagy\b`)},
}

// ExtractHallmarkTags returns the deduplicated subset of aging-hallmark
// tags mentioned in text, in a fixed declared order.
func ExtractHallmarkTags(text string) []string {
	var out []string
	for _, h := range hallmarkTags {
		if h.pattern.MatchString(text) {
			out = append(out, h.tag)
		}
	}
	return nonNilStrs(out)
}
