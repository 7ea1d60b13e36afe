package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"evidentia/internal/lineage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCtx(t *testing.T, root string) lineage.Context {
	t.Helper()
	return lineage.Context{
		ThreadID:     "thread-1",
		RunID:        "run-1",
		ToolUseID:    "tu-1",
		ToolName:     "pubmed_search",
		ArtifactRoot: root,
	}
}

func TestInvocationDirLayout(t *testing.T) {
	s := New("/tmp/artroot")
	dir := s.InvocationDir(testCtx(t, "/tmp/artroot"))
	assert.Equal(t, filepath.Join("/tmp/artroot", "threads", "thread-1", "lineages", "run-1", "tools", "pubmed_search", "tu-1"), dir)
}

func TestInvocationDirEmptyWithoutIdentity(t *testing.T) {
	s := New("/tmp/artroot")
	dir := s.InvocationDir(lineage.Context{ArtifactRoot: "/tmp/artroot"})
	assert.Empty(t, dir)
}

func TestWriteRequestResponseAndManifest(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	ctx := testCtx(t, root)

	reqPath, err := s.WriteRequest(ctx, map[string]any{"query": "aspirin"})
	require.NoError(t, err)
	assert.FileExists(t, reqPath)

	respPath, err := s.WriteResponse(ctx, map[string]any{"ok": true})
	require.NoError(t, err)
	assert.FileExists(t, respPath)

	entry, err := s.WriteRawJSON(ctx, "raw-hit", map[string]any{"pmid": "123"})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "raw_json", entry.Kind)
	assert.Len(t, entry.SHA256, 64)

	textEntry, err := s.WriteTextFile(ctx, "notes.md", "hello", "")
	require.NoError(t, err)
	require.NotNil(t, textEntry)

	manifestPath, err := s.FinalizeManifest(ctx, nil)
	require.NoError(t, err)
	assert.FileExists(t, manifestPath)

	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "raw-hit.json")
	assert.Contains(t, string(data), "notes.md")
}

func TestSafeSegmentSanitizesPathCharacters(t *testing.T) {
	assert.Equal(t, "a_b_c", safeSegment("a/b c", "fallback"))
	assert.Equal(t, "fallback", safeSegment("   ", "fallback"))
}
