package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func TestClassifyEndpointClassWordBoundaryDiscipline(t *testing.T) {
	assert.NotEqual(t, "surrogate_biomarker", ClassifyEndpointClass("canada cohort study of NR supplementation"))
}

func TestClassifyEndpointClassMatchesSurrogate(t *testing.T) {
	assert.Equal(t, "surrogate_biomarker", ClassifyEndpointClass("NAD+ levels increased after supplementation"))
}

func TestClassifyPubMedRecordSystematicReview(t *testing.T) {
	c := ClassifyPubMedRecord(PubMedRecord{
		PublicationTypes: []string{"Systematic Review"},
		MeSHTerms:        []string{"Humans"},
		Abstract:         "mortality outcomes",
	})
	assert.Equal(t, 1, c.EvidenceLevel)
	assert.Equal(t, "clinical_hard", c.EndpointClass)
}

func TestClassifyPubMedRecordRCTWithoutSpeciesFlagsPopulationUnspecified(t *testing.T) {
	c := ClassifyPubMedRecord(PubMedRecord{PublicationTypes: []string{"Randomized Controlled Trial"}})
	assert.Equal(t, 2, c.EvidenceLevel)
	assert.Contains(t, c.QualityFlags, "population_unspecified")
}

func TestBuildLedgerDedupesByIdentifierThenTitle(t *testing.T) {
	recs := []StudyRecord{
		withTitle(withIDs(NewStudyRecord("a", "pubmed"), "doi", "10.1/x"), "Effects of NR on aging"),
		withTitle(withIDs(NewStudyRecord("b", "pubmed"), "doi", "10.1/x"), "Different title entirely"),
		withTitle(NewStudyRecord("c", "ctgov"), "Effects of NR on Aging"), // dup by normalized title
	}
	ledger := BuildLedger(recs)
	assert.Len(t, ledger.Records, 1)
	assert.Equal(t, 3, ledger.DedupeStats["input_count"])
	assert.Equal(t, 1, ledger.DedupeStats["kept_count"])
}

func withIDs(r StudyRecord, k, v string) StudyRecord {
	r.IDs[k] = v
	return r
}

func withTitle(r StudyRecord, title string) StudyRecord {
	r.Title = strPtr(title)
	return r
}

func humanRecord(level int, endpoint string, flags ...string) StudyRecord {
	r := NewStudyRecord("k", "pubmed")
	r.EvidenceLevel = intPtr(level)
	r.PopulationClass = "human"
	r.EndpointClass = endpoint
	r.QualityFlags = flags
	return r
}

func TestGradeLedgerNoHumanEvidenceCapsAt45(t *testing.T) {
	r := NewStudyRecord("animal1", "pubmed")
	r.EvidenceLevel = intPtr(5)
	r.PopulationClass = "animal"
	r.EndpointClass = "mechanistic_only"
	ledger := NewEvidenceLedger()
	ledger.Records = []StudyRecord{r}

	grade := GradeLedger(ledger)
	assert.LessOrEqual(t, grade.Score, 45.0)
	assertCapReason(t, grade, "no_human_evidence")
}

func TestGradeLedgerSurrogateOnlyCapsAt60(t *testing.T) {
	ledger := NewEvidenceLedger()
	ledger.Records = []StudyRecord{
		humanRecord(1, "surrogate_biomarker"),
		humanRecord(2, "surrogate_biomarker"),
	}
	grade := GradeLedger(ledger)
	assert.LessOrEqual(t, grade.Score, 60.0)
	assertCapReason(t, grade, "surrogate_only_endpoints")
}

func TestGradeLedgerScoreWithinBounds(t *testing.T) {
	ledger := NewEvidenceLedger()
	ledger.Records = []StudyRecord{humanRecord(1, "clinical_hard"), humanRecord(2, "clinical_hard")}
	grade := GradeLedger(ledger)
	assert.GreaterOrEqual(t, grade.Score, 0.0)
	assert.LessOrEqual(t, grade.Score, 100.0)
}

func TestGradeLedgerIsDeterministic(t *testing.T) {
	ledger := NewEvidenceLedger()
	ledger.Records = []StudyRecord{humanRecord(1, "clinical_hard"), humanRecord(2, "clinical_intermediate")}
	a := GradeLedger(ledger)
	b := GradeLedger(ledger)
	assert.Equal(t, a, b)
}

func assertCapReason(t *testing.T, grade Grade, reason string) {
	t.Helper()
	for _, cap := range grade.Trace.CapsApplied {
		if cap["reason"] == reason {
			return
		}
	}
	t.Fatalf("expected cap reason %q in %v", reason, grade.Trace.CapsApplied)
}

func TestBuildGapMapMissingLevels(t *testing.T) {
	ledger := NewEvidenceLedger()
	ledger.Records = []StudyRecord{humanRecord(3, "clinical_intermediate")}
	gaps := BuildGapMap(ledger, ClaimContext{}, nil)
	assert.Contains(t, gaps.MissingLevels, 1)
	assert.Contains(t, gaps.MissingLevels, 2)
	assert.NotEmpty(t, gaps.NextBestStudies)
}

func TestBuildGapMapAddsReplicationStudyWhenLowScore(t *testing.T) {
	ledger := NewEvidenceLedger()
	grade := Grade{Score: 30}
	gaps := BuildGapMap(ledger, ClaimContext{}, &grade)
	assert.Len(t, gaps.NextBestStudies, 2)
}

func TestReportRendersFixedMarkdownSectionOrder(t *testing.T) {
	ledger := NewEvidenceLedger()
	grade := GradeLedger(ledger)
	gaps := BuildGapMap(ledger, ClaimContext{}, &grade)
	report := BuildReport(ClaimContext{Query: "does NR extend healthspan?"}, ledger, grade, gaps)

	md := report.RenderMarkdown()
	summaryIdx := indexOf(md, "## Summary")
	confidenceIdx := indexOf(md, "## Confidence")
	tableIdx := indexOf(md, "## Evidence Table")
	gapsIdx := indexOf(md, "## Gaps")
	changeIdx := indexOf(md, "## What Would Change The Score")

	require.True(t, summaryIdx < confidenceIdx)
	require.True(t, confidenceIdx < tableIdx)
	require.True(t, tableIdx < gapsIdx)
	require.True(t, gapsIdx < changeIdx)
}

func TestReportIsReproducible(t *testing.T) {
	ledger := NewEvidenceLedger()
	ledger.Records = []StudyRecord{humanRecord(1, "clinical_hard")}
	grade := GradeLedger(ledger)
	gaps := BuildGapMap(ledger, ClaimContext{}, &grade)
	report := BuildReport(ClaimContext{}, ledger, grade, gaps)

	md1 := report.RenderMarkdown()
	md2 := report.RenderMarkdown()
	assert.Equal(t, md1, md2)

	j1, err := report.MarshalJSON()
	require.NoError(t, err)
	j2, err := report.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, j1, j2)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
