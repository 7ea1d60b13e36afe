package evidence

import (
	"regexp"
	"strconv"
	"strings"
)

var titleNormalizeRe = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeTitle(title string) string {
	return strings.Trim(titleNormalizeRe.ReplaceAllString(strings.ToLower(title), " "), " ")
}

func identifierKeys(r StudyRecord) []string {
	var keys []string
	for _, field := range []string{"doi", "pmid", "nct"} {
		if v := strings.TrimSpace(r.IDs[field]); v != "" {
			keys = append(keys, field+":"+strings.ToLower(v))
		}
	}
	return keys
}

// BuildLedger merges classified records from every source, deduplicates
// by the union of available identifiers (doi/pmid/nct) and then by
// normalized title, and computes per-level/endpoint/source counts and
// coverage gaps.
func BuildLedger(records []StudyRecord) EvidenceLedger {
	ledger := NewEvidenceLedger()
	seenByID := map[string]int{} // identifier key -> index into ledger.Records
	seenByTitle := map[string]int{}
	duplicatesByID := 0
	duplicatesByTitle := 0

	for _, r := range records {
		dupIdx := -1
		for _, key := range identifierKeys(r) {
			if idx, ok := seenByID[key]; ok {
				dupIdx = idx
				break
			}
		}
		if dupIdx == -1 {
			if title := normalizeTitle(derefStr(r.Title)); title != "" {
				if idx, ok := seenByTitle[title]; ok {
					dupIdx = idx
					duplicatesByTitle++
				}
			}
		} else {
			duplicatesByID++
		}

		if dupIdx != -1 {
			continue
		}

		idx := len(ledger.Records)
		ledger.Records = append(ledger.Records, r)
		for _, key := range identifierKeys(r) {
			seenByID[key] = idx
		}
		if title := normalizeTitle(derefStr(r.Title)); title != "" {
			seenByTitle[title] = idx
		}
	}

	ledger.DedupeStats = map[string]int{
		"input_count":          len(records),
		"kept_count":           len(ledger.Records),
		"duplicates_by_id":     duplicatesByID,
		"duplicates_by_title":  duplicatesByTitle,
	}

	for _, r := range ledger.Records {
		if r.EvidenceLevel != nil {
			ledger.CountsByLevel[levelKey(*r.EvidenceLevel)]++
		}
		ledger.CountsByEndpoint[r.EndpointClass]++
		ledger.CountsBySource[r.Source]++
	}

	ledger.CoverageGaps = coverageGapsFor(ledger)
	return ledger
}

func levelKey(level int) string {
	return strconv.Itoa(level)
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func coverageGapsFor(ledger EvidenceLedger) []string {
	var gaps []string
	for _, level := range []string{"1", "2"} {
		if ledger.CountsByLevel[level] == 0 {
			gaps = append(gaps, "no level "+level+" evidence")
		}
	}
	if ledger.CountsByEndpoint["clinical_hard"] == 0 {
		gaps = append(gaps, "no hard clinical endpoints")
	}
	return nonNilStrs(gaps)
}
