package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// CacheKey is a SHA-256 digest over the canonical form of a query plus
// its enabled toggles and sorted parameters (spec §3).
type CacheKey string

// BuildCacheKey computes the CacheKey for a query under a SearchConfig.
// Toggle and parameter order is normalized (sorted) before hashing so
// two logically-identical configs always hash identically regardless
// of field construction order.
func BuildCacheKey(query string, cfg SearchConfig) CacheKey {
	var parts []string
	parts = append(parts, "q="+strings.TrimSpace(strings.ToLower(query)))

	toggles := map[string]bool{
		"pubmed":            cfg.EnablePubMed,
		"scholar":           cfg.EnableScholar,
		"europe_pmc":        cfg.EnableEuropePMC,
		"semantic_scholar":  cfg.EnableSemanticScholar,
		"openalex":          cfg.EnableOpenAlex,
		"unpaywall":         cfg.EnableUnpaywall,
		"citation_tracking": cfg.EnableCitationTracking,
		"full_text_resolve": cfg.EnableFullTextResolve,
		"pdf_download":      cfg.EnablePDFDownload,
		"institutional":     cfg.EnableInstitutionalAccess,
		"web_scrape":        cfg.EnableWebScrape,
	}
	var toggleNames []string
	for k := range toggles {
		toggleNames = append(toggleNames, k)
	}
	sort.Strings(toggleNames)
	for _, k := range toggleNames {
		parts = append(parts, fmt.Sprintf("%s=%v", k, toggles[k]))
	}

	parts = append(parts,
		fmt.Sprintf("max_results=%d", cfg.MaxResults),
		fmt.Sprintf("year_from=%d", cfg.QueryYearFrom),
		fmt.Sprintf("year_to=%d", cfg.QueryYearTo),
		fmt.Sprintf("shape=%s", cfg.RequestedShape),
	)

	canonical := strings.Join(parts, "&")
	sum := sha256.Sum256([]byte(canonical))
	return CacheKey(hex.EncodeToString(sum[:]))
}

func (k CacheKey) String() string { return string(k) }
