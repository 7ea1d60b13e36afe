// Package artifacts implements the per-invocation artifact store: a
// directory layout under <artifact_root>/threads/<thread>/lineages/<run>/
// tools/<tool>/<tool_use_id>/ that durably records request/response
// payloads, raw JSON dumps, and binary files for a single tool call,
// plus a manifest with sha256 checksums.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"evidentia/internal/lineage"
)

// Entry describes one file recorded in a manifest or returned as part
// of a tool envelope's artifacts list.
type Entry struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

// Manifest is written once a tool invocation finishes, listing every
// file it produced.
type Manifest struct {
	ProducedAt string          `json:"produced_at"`
	Lineage    lineage.Lineage `json:"lineage"`
	Entries    []ManifestEntry `json:"entries"`
}

// ManifestEntry is a manifest line item (no "kind"/"name" - mirrors the
// Python manifest, which only records path/sha256/size_bytes).
type ManifestEntry struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

// Store writes and reads the artifact tree rooted at Root.
type Store struct {
	Root string
}

// New returns a Store rooted at root. root may not exist yet.
func New(root string) *Store { return &Store{Root: root} }

// InvocationDir returns the directory a tool invocation's artifacts
// live under, or "" if ctx lacks enough identity to place one (no
// artifact root, no thread, or no run).
func (s *Store) InvocationDir(ctx lineage.Context) string {
	if s.Root == "" || ctx.ThreadID == "" || ctx.RunID == "" {
		return ""
	}
	toolName := safeSegment(ctx.ToolName, "unknown_tool")
	toolUseID := safeSegment(ctx.ToolUseID, "manual")
	return filepath.Join(
		s.Root, "threads", safeSegment(ctx.ThreadID, "unknown_thread"),
		"lineages", safeSegment(ctx.RunID, "unknown_run"),
		"tools", toolName, toolUseID,
	)
}

// WriteRequest persists the raw arguments a tool was called with.
func (s *Store) WriteRequest(ctx lineage.Context, payload any) (string, error) {
	return s.writeJSON(ctx, "request.json", payload)
}

// WriteResponse persists the normalized envelope a tool returned.
func (s *Store) WriteResponse(ctx lineage.Context, payload any) (string, error) {
	return s.writeJSON(ctx, "response.json", payload)
}

func (s *Store) writeJSON(ctx lineage.Context, filename string, payload any) (string, error) {
	base := s.InvocationDir(ctx)
	if base == "" {
		return "", nil
	}
	path := filepath.Join(base, filename)
	if err := jsonWrite(path, payload); err != nil {
		return "", err
	}
	return path, nil
}

// WriteRawJSON dumps an arbitrary JSON payload under raw/<name>.json
// and returns the artifact entry describing it.
func (s *Store) WriteRawJSON(ctx lineage.Context, name string, payload any) (*Entry, error) {
	base := s.InvocationDir(ctx)
	if base == "" {
		return nil, nil
	}
	fileName := safeSegment(name, "raw") + ".json"
	path := filepath.Join(base, "raw", fileName)
	if err := jsonWrite(path, payload); err != nil {
		return nil, err
	}
	return entryFor("raw_json", fileName, path)
}

// WriteTextFile writes content under <subdir>/<name> (subdir defaults
// to "files") and returns the artifact entry describing it.
func (s *Store) WriteTextFile(ctx lineage.Context, name, content, subdir string) (*Entry, error) {
	return s.writeFile(ctx, name, []byte(content), subdir)
}

// WriteBinaryFile writes raw bytes under <subdir>/<name>.
func (s *Store) WriteBinaryFile(ctx lineage.Context, name string, data []byte, subdir string) (*Entry, error) {
	return s.writeFile(ctx, name, data, subdir)
}

func (s *Store) writeFile(ctx lineage.Context, name string, data []byte, subdir string) (*Entry, error) {
	base := s.InvocationDir(ctx)
	if base == "" {
		return nil, nil
	}
	if subdir == "" {
		subdir = "files"
	}
	fileName := safeSegment(name, "artifact")
	path := filepath.Join(base, subdir, fileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("artifacts: write file: %w", err)
	}
	return entryFor("file", fileName, path)
}

// FinalizeManifest walks raw/ and files/ under the invocation
// directory, hashes every file, and writes manifest.json. extra lets
// callers fold in artifact entries that were recorded elsewhere (e.g.
// produced by a nested agent delegation).
func (s *Store) FinalizeManifest(ctx lineage.Context, extra []ManifestEntry) (string, error) {
	base := s.InvocationDir(ctx)
	if base == "" {
		return "", nil
	}
	var entries []ManifestEntry
	for _, folder := range []string{"raw", "files"} {
		dir := filepath.Join(base, folder)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		var paths []string
		_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			paths = append(paths, p)
			return nil
		})
		sort.Strings(paths)
		for _, p := range paths {
			sum, size, err := sha256File(p)
			if err != nil {
				return "", err
			}
			entries = append(entries, ManifestEntry{Path: p, SHA256: sum, SizeBytes: size})
		}
	}
	entries = append(entries, extra...)

	manifest := Manifest{
		ProducedAt: time.Now().UTC().Format("2006-01-02T15:04:05.999999999Z"),
		Lineage:    ctx.Lineage(),
		Entries:    entries,
	}
	path := filepath.Join(base, "manifest.json")
	if err := jsonWrite(path, manifest); err != nil {
		return "", err
	}
	return path, nil
}

// SourceCacheDir returns (and creates) the per-source content cache
// directory for sourceName, or "" if no source cache root is set.
func (s *Store) SourceCacheDir(sourceCacheRoot, sourceName string) (string, error) {
	if sourceCacheRoot == "" {
		return "", nil
	}
	path := filepath.Join(sourceCacheRoot, safeSegment(sourceName, "source"))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("artifacts: mkdir source cache: %w", err)
	}
	return path, nil
}

func entryFor(kind, name, path string) (*Entry, error) {
	sum, size, err := sha256File(path)
	if err != nil {
		return nil, err
	}
	return &Entry{Kind: kind, Name: name, Path: path, SHA256: sum, SizeBytes: size}, nil
}

func sha256File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("artifacts: open for hashing: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", 0, fmt.Errorf("artifacts: hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), info.Size(), nil
}

func jsonWrite(path string, payload any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifacts: mkdir: %w", err)
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("artifacts: marshal: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

func safeSegment(value, fallback string) string {
	text := strings.TrimSpace(value)
	if text == "" {
		return fallback
	}
	var b strings.Builder
	for _, ch := range text {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '-' || ch == '_' || ch == '.' {
			b.WriteRune(ch)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
