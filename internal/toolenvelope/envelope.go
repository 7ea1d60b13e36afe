// Package toolenvelope defines the uniform tool result contract every
// tool invocation is normalized into before it reaches the turn engine
// or the conversation event store.
package toolenvelope

import (
	"encoding/json"
	"strings"
	"time"

	"evidentia/internal/lineage"
)

// ContractVersion is stamped onto every envelope this package produces.
const ContractVersion = "2.0"

// ResultKind enumerates the shapes a tool's data payload may take.
type ResultKind string

const (
	ResultKindIDList     ResultKind = "id_list"
	ResultKindRecordList ResultKind = "record_list"
	ResultKindDocument   ResultKind = "document"
	ResultKindAggregate  ResultKind = "aggregate"
	ResultKindStatus     ResultKind = "status"
)

func validResultKinds() map[ResultKind]struct{} {
	return map[ResultKind]struct{}{
		ResultKindIDList: {}, ResultKindRecordList: {}, ResultKindDocument: {},
		ResultKindAggregate: {}, ResultKindStatus: {},
	}
}

// Auth describes whether a source needs credentials and whether this
// process has them configured.
type Auth struct {
	Required   bool `json:"required"`
	Configured bool `json:"configured"`
}

// SourceMeta carries provenance for a tool result.
type SourceMeta struct {
	Source            string           `json:"source"`
	RequestID         *string          `json:"request_id"`
	RetrievedAt       string           `json:"retrieved_at"`
	DataSchemaVersion string           `json:"data_schema_version"`
	Auth              Auth             `json:"auth"`
	Lineage           lineage.Lineage  `json:"lineage"`
}

// Pagination describes whether more pages of a result_kind=id_list or
// record_list result exist.
type Pagination struct {
	NextPageToken *string `json:"next_page_token"`
	HasMore       bool    `json:"has_more"`
}

// Envelope is the uniform tool result contract. Field order here
// matches the key order emitted by MarshalJSON so JSON output is
// stable across runs (needed for the deterministic report invariant).
type Envelope struct {
	ContractVersion string          `json:"contract_version"`
	ResultKind      ResultKind      `json:"result_kind"`
	Summary         string          `json:"summary"`
	Data            any             `json:"data"`
	IDs             []any           `json:"ids"`
	Citations       []any           `json:"citations"`
	Warnings        []string        `json:"warnings"`
	Artifacts       []any           `json:"artifacts"`
	Pagination      Pagination      `json:"pagination"`
	SourceMeta      SourceMeta      `json:"source_meta"`
}

// Options configures Make. Zero-valued fields use the same defaults
// as the Python make_tool_output.
type Options struct {
	ResultKind        ResultKind
	Data              any
	IDs               []any
	Citations         []any
	Warnings          []string
	Artifacts         []any
	Pagination        *Pagination
	AuthRequired      bool
	AuthConfigured    bool
	RequestID         *string
	DataSchemaVersion string
}

// Make builds a fresh envelope from scratch - the equivalent of
// make_tool_output.
func Make(source, summary string, opts Options, lin lineage.Lineage) Envelope {
	kind := coerceResultKind(string(opts.ResultKind))
	schemaVersion := opts.DataSchemaVersion
	if schemaVersion == "" {
		schemaVersion = "v1"
	}
	data := opts.Data
	if data == nil {
		data = map[string]any{}
	}
	pagination := Pagination{HasMore: false}
	if opts.Pagination != nil {
		pagination = *opts.Pagination
	}
	authConfigured := opts.AuthConfigured
	if opts.ResultKind == "" {
		// Options zero value: AuthConfigured defaults false in Go but
		// the Python default is True. With an empty ResultKind,
		// Configured is always true whatever AuthConfigured says; an
		// explicit false takes effect only alongside a ResultKind.
		authConfigured = true
	}
	return Envelope{
		ContractVersion: ContractVersion,
		ResultKind:      kind,
		Summary:         summary,
		Data:            data,
		IDs:             nonNil(opts.IDs),
		Citations:       nonNil(opts.Citations),
		Warnings:        nonNilStr(opts.Warnings),
		Artifacts:       nonNil(opts.Artifacts),
		Pagination:      pagination,
		SourceMeta: SourceMeta{
			Source:            source,
			RequestID:         opts.RequestID,
			RetrievedAt:       utcISO(),
			DataSchemaVersion: schemaVersion,
			Auth:              Auth{Required: opts.AuthRequired, Configured: authConfigured},
			Lineage:           lin,
		},
	}
}

// Normalize accepts an arbitrary JSON value returned by a tool
// implementation and coerces it into a well-formed Envelope. If the raw
// value already carries every contract field, it is passed through
// with only the version/result_kind/source_meta fields repaired.
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw json.RawMessage, source string, lin lineage.Lineage) Envelope {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil || generic == nil {
		var anyVal any
		_ = json.Unmarshal(raw, &anyVal)
		return Make(source, "Tool completed.", Options{
			ResultKind: ResultKindStatus,
			Data:       map[string]any{"value": anyVal},
		}, lin)
	}

	if hasContractShape(generic) {
		return repairContract(generic, source, lin)
	}

	summary := "Tool completed."
	if s, ok := generic["summary"].(string); ok && s != "" {
		summary = s
	}
	data := generic["data"]
	if _, ok := generic["data"]; !ok {
		data = generic
	}
	return Make(source, summary, Options{
		ResultKind:        ResultKind(strOrEmpty(generic["result_kind"])),
		Data:              data,
		IDs:               toAnySlice(generic["ids"]),
		Citations:         toAnySlice(generic["citations"]),
		Warnings:          toStrSlice(generic["warnings"]),
		Artifacts:         toAnySlice(generic["artifacts"]),
		Pagination:        paginationFrom(generic["pagination"]),
		AuthRequired:      authField(generic, "required"),
		AuthConfigured:    authFieldDefault(generic, "configured", true),
		RequestID:         requestIDFrom(generic),
		DataSchemaVersion: dataSchemaVersionFrom(generic),
	}, lin)
}

func hasContractShape(m map[string]any) bool {
	for _, key := range []string{"summary", "data", "ids", "citations", "warnings", "artifacts", "pagination", "source_meta"} {
		if _, ok := m[key]; !ok {
			return false
		}
	}
	return true
}

func repairContract(m map[string]any, source string, lin lineage.Lineage) Envelope {
	env := Envelope{
		ContractVersion: ContractVersion,
		ResultKind:      coerceResultKind(strOrEmpty(m["result_kind"])),
		Summary:         strOrEmpty(m["summary"]),
		Data:            m["data"],
		IDs:             toAnySlice(m["ids"]),
		Citations:       toAnySlice(m["citations"]),
		Warnings:        toStrSlice(m["warnings"]),
		Artifacts:       toAnySlice(m["artifacts"]),
		Pagination:      paginationFrom(m["pagination"]),
	}
	sm, _ := m["source_meta"].(map[string]any)
	if sm == nil {
		sm = map[string]any{}
	}
	env.SourceMeta = SourceMeta{
		Source:            orDefault(strOrEmpty(sm["source"]), source),
		RequestID:         requestIDFrom(sm),
		RetrievedAt:       orDefault(strOrEmpty(sm["retrieved_at"]), utcISO()),
		DataSchemaVersion: orDefault(strOrEmpty(sm["data_schema_version"]), "v1"),
		Auth: Auth{
			Required:   authField(sm, "required"),
			Configured: authFieldDefault(sm, "configured", true),
		},
		Lineage: lineageFrom(sm, lin),
	}
	return env
}

func lineageFrom(sm map[string]any, fallback lineage.Lineage) lineage.Lineage {
	raw, ok := sm["lineage"].(map[string]any)
	if !ok {
		return fallback
	}
	requestIndex, _ := raw["request_index"].(float64)
	userMsgIndex, _ := raw["user_msg_index"].(float64)
	return lineage.Lineage{
		ThreadID:     strOrEmpty(raw["thread_id"]),
		RunID:        strOrEmpty(raw["run_id"]),
		ToolUseID:    strOrEmpty(raw["tool_use_id"]),
		RequestIndex: int(requestIndex),
		UserMsgIndex: int(userMsgIndex),
		ToolName:     strOrEmpty(raw["tool_name"]),
	}
}

func coerceResultKind(v string) ResultKind {
	candidate := ResultKind(strings.ToLower(strings.TrimSpace(v)))
	if _, ok := validResultKinds()[candidate]; ok {
		return candidate
	}
	return ResultKindRecordList
}

func utcISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.999999999Z")
}

func nonNil(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}

func nonNilStr(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func strOrEmpty(v any) string {
	s, _ := v.(string)
	return s
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func toAnySlice(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	return []any{}
}

func toStrSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func paginationFrom(v any) Pagination {
	m, ok := v.(map[string]any)
	if !ok {
		return Pagination{HasMore: false}
	}
	p := Pagination{}
	if tok, ok := m["next_page_token"].(string); ok {
		p.NextPageToken = &tok
	}
	if hm, ok := m["has_more"].(bool); ok {
		p.HasMore = hm
	}
	return p
}

func authField(m map[string]any, key string) bool {
	auth, ok := m["auth"].(map[string]any)
	if !ok {
		return false
	}
	b, _ := auth[key].(bool)
	return b
}

func authFieldDefault(m map[string]any, key string, def bool) bool {
	auth, ok := m["auth"].(map[string]any)
	if !ok {
		return def
	}
	v, present := auth[key]
	if !present {
		return def
	}
	b, _ := v.(bool)
	return b
}

func requestIDFrom(m map[string]any) *string {
	v, ok := m["request_id"]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func dataSchemaVersionFrom(m map[string]any) string {
	sm, ok := m["source_meta"].(map[string]any)
	if !ok {
		return "v1"
	}
	return orDefault(strOrEmpty(sm["data_schema_version"]), "v1")
}
