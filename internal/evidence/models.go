// Package evidence implements the deterministic evidence scoring
// pipeline: classification, ledger construction, hybrid scoring,
// gap-map analysis, and report assembly.
package evidence

// ClaimContext captures the biomedical claim being evaluated: what
// intervention, population, outcome, and comparator the user asked
// about, plus any ambiguity the classifier flagged along the way.
type ClaimContext struct {
	Query               string   `json:"query"`
	Intervention        string   `json:"intervention"`
	Population          string   `json:"population"`
	Outcome             string   `json:"outcome"`
	Comparator          string   `json:"comparator"`
	ClaimMode           string   `json:"claim_mode"`
	AskClarify          bool     `json:"ask_clarify"`
	DirectnessWarnings  []string `json:"directness_warnings"`
	AmbiguityWarnings   []string `json:"ambiguity_warnings"`
}

// NewClaimContext fills in the same defaults the Python dataclass
// gives ClaimContext.claim_mode.
func NewClaimContext(query, intervention, population, outcome, comparator string) ClaimContext {
	return ClaimContext{
		Query: query, Intervention: intervention, Population: population,
		Outcome: outcome, Comparator: comparator, ClaimMode: "explicit",
		DirectnessWarnings: []string{}, AmbiguityWarnings: []string{},
	}
}

// StudyRecord is one classified study pulled from an upstream source.
type StudyRecord struct {
	StudyKey        string            `json:"study_key"`
	Source          string            `json:"source"`
	Title           *string           `json:"title"`
	Year            *int              `json:"year"`
	IDs             map[string]string `json:"ids"`
	EvidenceLevel   *int              `json:"evidence_level"`
	StudyType       string            `json:"study_type"`
	PopulationClass string            `json:"population_class"`
	EndpointClass   string            `json:"endpoint_class"`
	QualityFlags    []string          `json:"quality_flags"`
	DirectnessFlags []string          `json:"directness_flags"`
	EffectDirection string            `json:"effect_direction"`
	Citations       []map[string]any  `json:"citations"`
	Metadata        map[string]any    `json:"metadata"`
}

// NewStudyRecord fills in the same field defaults as the Python
// dataclass (study_type="unknown", endpoint_class="mechanistic_only",
// effect_direction="unknown", all slices/maps non-nil).
func NewStudyRecord(studyKey, source string) StudyRecord {
	return StudyRecord{
		StudyKey: studyKey, Source: source,
		IDs: map[string]string{}, StudyType: "unknown",
		PopulationClass: "unknown", EndpointClass: "mechanistic_only",
		QualityFlags: []string{}, DirectnessFlags: []string{},
		EffectDirection: "unknown", Citations: []map[string]any{},
		Metadata: map[string]any{},
	}
}

// EvidenceLedger is the deduplicated, counted collection of study
// records for one claim, ready for scoring.
type EvidenceLedger struct {
	Records              []StudyRecord    `json:"records"`
	DedupeStats          map[string]int   `json:"dedupe_stats"`
	CountsByLevel        map[string]int   `json:"counts_by_level"`
	CountsByEndpoint     map[string]int   `json:"counts_by_endpoint"`
	CountsBySource       map[string]int   `json:"counts_by_source"`
	CoverageGaps         []string         `json:"coverage_gaps"`
	OptionalSourceStatus []map[string]any `json:"optional_source_status"`
}

// NewEvidenceLedger returns an empty ledger with every container
// initialized (never nil), matching the Python dataclass defaults.
func NewEvidenceLedger() EvidenceLedger {
	return EvidenceLedger{
		Records: []StudyRecord{}, DedupeStats: map[string]int{},
		CountsByLevel: map[string]int{}, CountsByEndpoint: map[string]int{},
		CountsBySource: map[string]int{}, CoverageGaps: []string{},
		OptionalSourceStatus: []map[string]any{},
	}
}

// ScoreTrace records exactly how a final score was derived: the two
// subscores, every penalty/bonus/cap applied in order, and the raw
// component counts a reviewer would want to audit.
type ScoreTrace struct {
	CES             float64          `json:"ces"`
	MP              float64          `json:"mp"`
	FinalConfidence float64          `json:"final_confidence"`
	Penalties       []map[string]any `json:"penalties"`
	Bonuses         []map[string]any `json:"bonuses"`
	CapsApplied     []map[string]any `json:"caps_applied"`
	Components      map[string]any   `json:"components"`
}

// Grade is the final scored verdict for a claim: a 0-100 score, its
// A-E label, a qualitative confidence band, the full trace, and any
// free-text notes a reader should see alongside the number.
type Grade struct {
	Score      float64    `json:"score"`
	Label      string     `json:"label"`
	Confidence string     `json:"confidence"`
	Trace      ScoreTrace `json:"trace"`
	Notes      []string   `json:"notes"`
}
