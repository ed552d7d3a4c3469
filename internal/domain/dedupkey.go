package domain

import (
	"regexp"
	"strings"
)

// DedupKeyKind tags which identifier a DedupKey was built from. Matching
// precedence is DOI > PMID > ScholarID > Fuzzy, per spec §3/§4.3.
type DedupKeyKind int

const (
	DedupKeyDOI DedupKeyKind = iota
	DedupKeyPMID
	DedupKeyScholarID
	DedupKeyFuzzy
)

// DedupKey is the tagged union used to bucket publications before
// merging. Fuzzy keys additionally carry a normalized title and year.
type DedupKey struct {
	Kind           DedupKeyKind
	Value          string // DOI / PMID / ScholarID value, empty for Fuzzy
	NormalizedTitle string // set only for Fuzzy
	Year            int    // set only for Fuzzy; 0 means absent
}

// KeyFor returns the highest-precedence DedupKey present on p, per the
// partition rule in spec §4.3 step 1.
func KeyFor(p *Publication) DedupKey {
	if p.DOI != "" {
		return DedupKey{Kind: DedupKeyDOI, Value: NormalizeDOI(p.DOI)}
	}
	if p.PMID != "" {
		return DedupKey{Kind: DedupKeyPMID, Value: p.PMID}
	}
	if p.ScholarID != "" {
		return DedupKey{Kind: DedupKeyScholarID, Value: p.ScholarID}
	}
	return DedupKey{Kind: DedupKeyFuzzy, NormalizedTitle: NormalizeTitle(p.Title), Year: p.Year}
}

var (
	doiPrefix   = regexp.MustCompile(`^(https?://)?(dx\.)?doi\.org/`)
	punctuation = regexp.MustCompile(`[^\w\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// NormalizeDOI strips protocol/host prefixes and lowercases a DOI so
// that "https://doi.org/10.1/X" and "10.1/x" collide.
func NormalizeDOI(doi string) string {
	d := doiPrefix.ReplaceAllString(strings.TrimSpace(doi), "")
	return strings.ToLower(d)
}

// NormalizeTitle implements the fuzzy-key normalization from spec §4.3
// step 2: lowercase, strip punctuation, collapse whitespace.
func NormalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = punctuation.ReplaceAllString(t, "")
	t = whitespace.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}
