// Package sources defines the narrow black-box fetcher interface the
// tool layer calls to retrieve raw biomedical records, and ships
// deterministic in-memory fixtures behind it. Concrete HTTP clients for
// PubMed/ClinicalTrials.gov/DailyMed/openFDA/OpenAlex are intentionally
// out of scope; every fixture here returns data drawn from a small
// curated corpus so the agent turn engine and evidence pipeline can be
// exercised end to end without network access, against the same input
// contracts (evidence.PubMedRecord / evidence.ClinicalTrial) a live
// client would eventually populate.
package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Name identifies a registered upstream source.
type Name string

const (
	NamePubMed         Name = "pubmed"
	NameClinicalTrials Name = "clinicaltrials"
	NameDailyMed       Name = "dailymed"
	NameOpenFDA        Name = "openfda"
	NameOpenAlex       Name = "openalex"
)

// Record is a raw upstream record as a fetcher returns it: an opaque
// bag of fields keyed however the source's wire format keys them. The
// tool layer is responsible for shaping these into evidence.PubMedRecord
// / evidence.ClinicalTrial before classification.
type Record map[string]any

// Fetcher is the black-box contract every upstream source satisfies.
// Search returns raw records matching any query term, in ascending
// source-native id order;
// Get returns a single record by its source-native id.
type Fetcher interface {
	Source() Name
	Search(ctx context.Context, query string, limit int) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
}

// AuthRequirement reports whether a fetcher needs credentials, and
// whether this process has them configured - the pair a tool handler
// stamps onto source_meta.auth.
type AuthRequirement interface {
	AuthRequired() bool
	AuthConfigured() bool
}

func matchesQuery(haystack, query string) bool {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return true
	}
	haystack = strings.ToLower(haystack)
	for _, term := range strings.Fields(query) {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}

// NotFoundError is returned by Get when no fixture record has the
// requested id, letting tool handlers translate it into a typed
// NOT_FOUND ToolExecutionError.
type NotFoundError struct {
	Source Name
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("sources: %s: no record with id %q", e.Source, e.ID)
}

func sortedByKey(records map[string]Record) []string {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
