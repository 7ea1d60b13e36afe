package tools

import (
	"context"
	"sort"
	"sync"

	"evidentia/internal/artifacts"
	"evidentia/internal/lineage"
	"evidentia/internal/toolenvelope"
)

// Handler executes one tool call against validated input and returns a
// value toolenvelope.Normalize can turn into an envelope, or an
// *ExecutionError / plain error on failure.
type Handler func(ctx context.Context, tc lineage.Context, args map[string]any) (any, error)

// Spec is the static description of a tool: its name, provider-facing
// description, JSON Schema for arguments, and the handler that
// executes it.
type Spec struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler
	Source      string // defaults to "internal" when empty
}

func (s Spec) source() string {
	if s.Source == "" {
		return "internal"
	}
	return s.Source
}

// OpenAISchema renders the tool in the `{"type":"function","function":{...}}`
// shape the OpenAI tool-calling API expects.
func (s Spec) OpenAISchema() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        s.Name,
			"description": descriptionWithPolicy(s.Description),
			"parameters":  s.InputSchema,
		},
	}
}

// AnthropicSchema renders the tool in Anthropic's flat
// `{"name","description","input_schema"}` shape.
func (s Spec) AnthropicSchema() map[string]any {
	return map[string]any{
		"name":        s.Name,
		"description": descriptionWithPolicy(s.Description),
		"input_schema": s.InputSchema,
	}
}

// Outcome is what Registry.Execute returns: either a normalized
// envelope on success, or a typed error payload on failure. Exactly
// one of Output/Error is set.
type Outcome struct {
	Status string               `json:"status"` // "success" or "error"
	Output *toolenvelope.Envelope `json:"output,omitempty"`
	Error  *ErrorPayload        `json:"error,omitempty"`
}

// Registry holds every tool available to the turn engine and runs the
// execute() pipeline: artifact persistence wrapping handler dispatch
// and envelope normalization.
type Registry struct {
	mu              sync.RWMutex
	byName          map[string]Spec
	artifacts       *artifacts.Store
	sourceCacheRoot string
}

// NewRegistry builds a Registry over the given specs. artifactStore
// may be nil, in which case no request/response/manifest artifacts are
// ever written (mirrors ctx.artifact_root is None short-circuiting the
// original's writers).
func NewRegistry(specs []Spec, artifactStore *artifacts.Store, sourceCacheRoot string) *Registry {
	byName := make(map[string]Spec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}
	return &Registry{byName: byName, artifacts: artifactStore, sourceCacheRoot: sourceCacheRoot}
}

// Register adds or replaces a tool spec after construction (used by
// tests and by optional-source wiring that depends on runtime config).
func (r *Registry) Register(s Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[s.Name] = s
}

// Names returns every registered tool name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// OpenAISchemas returns every tool's OpenAI-shaped schema.
func (r *Registry) OpenAISchemas() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]map[string]any, 0, len(r.byName))
	for _, name := range r.sortedNamesLocked() {
		out = append(out, r.byName[name].OpenAISchema())
	}
	return out
}

// AnthropicSchemas returns every tool's Anthropic-shaped schema.
func (r *Registry) AnthropicSchemas() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]map[string]any, 0, len(r.byName))
	for _, name := range r.sortedNamesLocked() {
		out = append(out, r.byName[name].AnthropicSchema())
	}
	return out
}

func (r *Registry) sortedNamesLocked() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Specs returns every registered tool spec, sorted by name, for callers
// (the provider adapter) that need the name/description/schema triple
// without either wire-format rendering.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.byName))
	for _, name := range r.sortedNamesLocked() {
		out = append(out, r.byName[name])
	}
	return out
}

// GetSpec looks up a tool by name.
func (r *Registry) GetSpec(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// Execute runs one tool call end to end: artifact request write,
// handler dispatch, envelope normalization, artifact response write
// and manifest finalization, typed error handling.
func (r *Registry) Execute(ctx context.Context, toolName string, args map[string]any, tc lineage.Context) Outcome {
	spec, ok := r.GetSpec(toolName)
	if !ok {
		return Outcome{
			Status: "error",
			Error: &ErrorPayload{
				Code:      ErrNotFound,
				Message:   "unknown tool '" + toolName + "'",
				Retryable: false,
				Details:   map[string]any{},
			},
		}
	}

	effective := tc
	if r.artifacts != nil {
		effective = tc.WithTool(toolName, r.artifacts.Root, r.sourceCacheRoot)
		_, _ = r.artifacts.WriteRequest(effective, args) // best-effort, mirrors the swallowed exception in the original
	}

	raw, err := spec.Handler(ctx, effective, args)
	if err != nil {
		payload := errorPayloadFrom(err)
		out := Outcome{Status: "error", Error: &payload}
		r.finalizeArtifacts(effective, out, nil)
		return out
	}

	rawJSON, marshalErr := marshalAny(raw)
	if marshalErr != nil {
		payload := UnknownErrorPayload(marshalErr)
		out := Outcome{Status: "error", Error: &payload}
		r.finalizeArtifacts(effective, out, nil)
		return out
	}
	normalized := toolenvelope.Normalize(rawJSON, spec.source(), effective.Lineage())
	out := Outcome{Status: "success", Output: &normalized}
	r.finalizeArtifacts(effective, out, normalized.Artifacts)
	return out
}

func (r *Registry) finalizeArtifacts(tc lineage.Context, out Outcome, extraArtifacts []any) {
	if r.artifacts == nil {
		return
	}
	_, _ = r.artifacts.WriteResponse(tc, out)
	_, _ = r.artifacts.FinalizeManifest(tc, nil)
	_ = extraArtifacts // manifest entries for tool-produced artifacts are recorded by the writer calls themselves
}

func errorPayloadFrom(err error) ErrorPayload {
	if ee, ok := err.(*ExecutionError); ok {
		return ee.ToErrorPayload()
	}
	return UnknownErrorPayload(err)
}
