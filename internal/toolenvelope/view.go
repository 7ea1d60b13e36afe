package toolenvelope

// ToolResultView is a read-only ergonomic accessor over an Envelope.
// Records/Items/Studies fall back to each other in that order when a
// result only populates one of the three data keys.
type ToolResultView struct {
	env Envelope
}

// NewToolResultView wraps env for ergonomic access by callers (turn
// engine transcripts, tests) that don't want to reach into data by hand.
func NewToolResultView(env Envelope) ToolResultView {
	return ToolResultView{env: env}
}

func (v ToolResultView) dataMap() map[string]any {
	m, _ := v.env.Data.(map[string]any)
	return m
}

func asAnySlice(v any) []any {
	arr, _ := v.([]any)
	return arr
}

// Records returns data.records, falling back to data.items then
// data.studies if records is absent.
func (v ToolResultView) Records() []any {
	m := v.dataMap()
	if r, ok := m["records"]; ok {
		return asAnySlice(r)
	}
	return v.Items()
}

// Items returns data.items, falling back to data.studies if absent.
func (v ToolResultView) Items() []any {
	m := v.dataMap()
	if it, ok := m["items"]; ok {
		return asAnySlice(it)
	}
	return v.Studies()
}

// Studies returns data.studies, or an empty slice if the result never
// populated any of records/items/studies.
func (v ToolResultView) Studies() []any {
	m := v.dataMap()
	return asAnySlice(m["studies"])
}

func (v ToolResultView) IDs() []any          { return v.env.IDs }
func (v ToolResultView) Citations() []any    { return v.env.Citations }
func (v ToolResultView) Warnings() []string  { return v.env.Warnings }
func (v ToolResultView) Artifacts() []any    { return v.env.Artifacts }
func (v ToolResultView) SourceMeta() SourceMeta { return v.env.SourceMeta }
func (v ToolResultView) Summary() string     { return v.env.Summary }
func (v ToolResultView) Raw() Envelope       { return v.env }
