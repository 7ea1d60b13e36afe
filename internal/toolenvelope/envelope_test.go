package toolenvelope

import (
	"encoding/json"
	"testing"

	"evidentia/internal/lineage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLineage() lineage.Lineage {
	return lineage.Lineage{ThreadID: "t1", RunID: "r1", ToolUseID: "tu1"}
}

func TestMakeDefaults(t *testing.T) {
	env := Make("pubmed", "found 3 studies", Options{}, testLineage())
	assert.Equal(t, ContractVersion, env.ContractVersion)
	assert.Equal(t, ResultKindRecordList, env.ResultKind)
	assert.Equal(t, []any{}, env.IDs)
	assert.False(t, env.Pagination.HasMore)
	assert.Equal(t, "pubmed", env.SourceMeta.Source)
	assert.Equal(t, "v1", env.SourceMeta.DataSchemaVersion)
}

func TestMakeCoercesUnknownResultKind(t *testing.T) {
	env := Make("pubmed", "x", Options{ResultKind: "bogus"}, testLineage())
	assert.Equal(t, ResultKindRecordList, env.ResultKind)
}

func TestNormalizeNonObjectBecomesStatus(t *testing.T) {
	env := Normalize(json.RawMessage(`"plain string"`), "manual", testLineage())
	assert.Equal(t, ResultKindStatus, env.ResultKind)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "plain string", data["value"])
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := json.RawMessage(`{"ids":["1"],"records":[{"a":1}]}`)
	once := Normalize(raw, "pubmed", testLineage())
	onceJSON, err := json.Marshal(once)
	require.NoError(t, err)

	twice := Normalize(onceJSON, "pubmed", testLineage())
	twiceJSON, err := json.Marshal(twice)
	require.NoError(t, err)

	assert.JSONEq(t, string(onceJSON), string(twiceJSON))
}

func TestNormalizePreservesContractShape(t *testing.T) {
	raw := json.RawMessage(`{
		"summary": "ok",
		"data": {"x": 1},
		"ids": ["a"],
		"citations": [],
		"warnings": [],
		"artifacts": [],
		"pagination": {"next_page_token": null, "has_more": false},
		"source_meta": {"source": "manual-override"}
	}`)
	env := Normalize(raw, "pubmed", testLineage())
	assert.Equal(t, "manual-override", env.SourceMeta.Source)
	assert.Equal(t, "ok", env.Summary)
	assert.True(t, env.SourceMeta.Auth.Configured)
}
