package tools

import (
	"context"
	"testing"

	"evidentia/internal/evidence"
	"evidentia/internal/lineage"
	"evidentia/internal/toolenvelope"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEvidenceReportRejectsMissingStudies(t *testing.T) {
	spec := BuildEvidenceReportSpec()
	_, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{})
	require.Error(t, err)
	ee, ok := err.(*ExecutionError)
	require.True(t, ok)
	assert.Equal(t, ErrValidation, ee.Code)
}

func TestBuildEvidenceReportComposesPipeline(t *testing.T) {
	spec := BuildEvidenceReportSpec()
	studies := []any{
		studyToMap(pubMedRecordToStudy(map[string]any{
			"pmid": "10000002", "doi": "10.1000/rct.0002",
			"title":             "A randomized controlled trial of NAD+ precursor supplementation on frailty and falls",
			"abstract":          "In this randomized controlled trial, NAD+ precursor supplementation reduced falls and improved functional status versus placebo.",
			"publication_types": []string{"Randomized Controlled Trial"},
			"mesh_terms":        []string{},
		})),
	}
	out, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{
		"studies": studies,
		"claim": map[string]any{
			"query": "Does NAD+ precursor supplementation reduce frailty?",
		},
	})
	require.NoError(t, err)
	env := out.(toolenvelope.Envelope)
	data := env.Data.(map[string]any)
	report := data["report"].(evidence.Report)
	assert.Len(t, report.Ledger.Records, 1)
	assert.NotEmpty(t, report.Score.Label)
	assert.Contains(t, data["markdown"].(string), "## Summary")
}
