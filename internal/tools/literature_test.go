package tools

import (
	"context"
	"testing"

	"evidentia/internal/lineage"
	"evidentia/internal/sources"
	"evidentia/internal/toolenvelope"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchPubMedClassifiesHits(t *testing.T) {
	spec := SearchPubMedSpec(sources.NewPubMedFixture())
	out, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{"query": "systematic review"})
	require.NoError(t, err)
	env := out.(toolenvelope.Envelope)
	data := env.Data.(map[string]any)
	studies := data["studies"].([]map[string]any)
	require.Len(t, studies, 2)
	assert.Equal(t, 1, studies[0]["evidence_level"])
	assert.Equal(t, "systematic_review", studies[0]["study_type"])
}

func TestGetPubMedRecordNotFound(t *testing.T) {
	spec := GetPubMedRecordSpec(sources.NewPubMedFixture())
	_, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{"pmid": "0"})
	require.Error(t, err)
	ee, ok := err.(*ExecutionError)
	require.True(t, ok)
	assert.Equal(t, ErrNotFound, ee.Code)
}

func TestSearchClinicalTrialsClassifiesRegistryOnly(t *testing.T) {
	spec := SearchClinicalTrialsSpec(sources.NewClinicalTrialsFixture())
	out, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{"query": "NAD+ Precursor Supplementation Registry"})
	require.NoError(t, err)
	env := out.(toolenvelope.Envelope)
	data := env.Data.(map[string]any)
	studies := data["studies"].([]map[string]any)
	require.Len(t, studies, 2)
	assert.Equal(t, 4, studies[0]["evidence_level"])
}

func TestSearchDrugLabelReturnsUnconfiguredWhenNotConfigured(t *testing.T) {
	spec := SearchDrugLabelSpec(sources.NewDailyMedFixture(false))
	_, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{"query": "nicotinamide riboside"})
	require.Error(t, err)
	ee, ok := err.(*ExecutionError)
	require.True(t, ok)
	assert.Equal(t, ErrUnconfigured, ee.Code)
}

func TestSearchDrugLabelSucceedsWhenConfigured(t *testing.T) {
	spec := SearchDrugLabelSpec(sources.NewDailyMedFixture(true))
	out, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{"query": "nicotinamide riboside"})
	require.NoError(t, err)
	env := out.(toolenvelope.Envelope)
	assert.True(t, env.SourceMeta.Auth.Configured)
}

func TestSearchAdverseEventsReturnsMatches(t *testing.T) {
	spec := SearchAdverseEventsSpec(sources.NewOpenFDAFixture())
	out, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{"query": "nausea"})
	require.NoError(t, err)
	env := out.(toolenvelope.Envelope)
	data := env.Data.(map[string]any)
	assert.Len(t, data["items"].([]map[string]any), 1)
}

func TestSearchCitationGraphReturnsMatches(t *testing.T) {
	spec := SearchCitationGraphSpec(sources.NewOpenAlexFixture())
	out, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{"query": "10.1000/sr.0001"})
	require.NoError(t, err)
	env := out.(toolenvelope.Envelope)
	data := env.Data.(map[string]any)
	assert.Len(t, data["items"].([]map[string]any), 1)
}
