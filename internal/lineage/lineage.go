// Package lineage carries the thread/run/tool_use_id triple (plus
// positional context) that ties a tool invocation back to the turn
// that made it.
package lineage

// Lineage is the provenance block embedded in every tool envelope's
// source_meta.lineage field.
type Lineage struct {
	ThreadID      string `json:"thread_id"`
	RunID         string `json:"run_id"`
	ToolUseID     string `json:"tool_use_id"`
	RequestIndex  int    `json:"request_index,omitempty"`
	UserMsgIndex  int    `json:"user_msg_index,omitempty"`
	ToolName      string `json:"tool_name,omitempty"`
}

// Context is the per-invocation environment passed to every tool
// Execute call: the thread/run identity, where this call falls in the
// turn, and the filesystem roots the artifact store uses.
type Context struct {
	ThreadID        string
	RunID           string
	RequestIndex    int
	UserMsgIndex    int
	ToolUseID       string
	ToolName        string
	ArtifactRoot    string
	SourceCacheRoot string
}

// WithTool returns a copy of c scoped to a specific tool invocation,
// the Go equivalent of ToolContext.with_tool.
func (c Context) WithTool(toolName, artifactRoot, sourceCacheRoot string) Context {
	out := c
	out.ToolName = toolName
	if artifactRoot != "" {
		out.ArtifactRoot = artifactRoot
	}
	if sourceCacheRoot != "" {
		out.SourceCacheRoot = sourceCacheRoot
	}
	return out
}

// Lineage extracts the lineage block recorded into every tool result.
func (c Context) Lineage() Lineage {
	return Lineage{
		ThreadID:     c.ThreadID,
		RunID:        c.RunID,
		ToolUseID:    c.ToolUseID,
		RequestIndex: c.RequestIndex,
		UserMsgIndex: c.UserMsgIndex,
		ToolName:     c.ToolName,
	}
}
