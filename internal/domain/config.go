package domain

import "time"

// SourceConfig holds per-source tuning: request pacing, timeouts,
// result caps and optional credentials/proxying.
type SourceConfig struct {
	MaxResults       int           `json:"max_results"`
	RateLimitSeconds float64       `json:"rate_limit_seconds"`
	TimeoutSeconds   int           `json:"timeout_seconds"`
	ProxyURL         string        `json:"proxy_url,omitempty"`
	APIKey           string        `json:"api_key,omitempty"`
}

func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		MaxResults:       20,
		RateLimitSeconds: 1.0,
		TimeoutSeconds:   30,
	}
}

// SearchConfig is the explicit, serializable replacement for duck-typed
// config objects (spec §9): every feature toggle is a boolean field,
// every per-source config is a nested struct with defaults.
type SearchConfig struct {
	EnablePubMed             bool `json:"enable_pubmed"`
	EnableScholar             bool `json:"enable_scholar"`
	EnableEuropePMC           bool `json:"enable_europe_pmc"`
	EnableSemanticScholar     bool `json:"enable_semantic_scholar"`
	EnableOpenAlex            bool `json:"enable_openalex"`
	EnableUnpaywall           bool `json:"enable_unpaywall"`
	EnableCitationTracking    bool `json:"enable_citation_tracking"`
	EnableFullTextResolve     bool `json:"enable_full_text_resolve"`
	EnablePDFDownload         bool `json:"enable_pdf_download"`
	EnableInstitutionalAccess bool `json:"enable_institutional_access"`
	EnableCache               bool `json:"enable_cache"`
	EnableWebScrape           bool `json:"enable_web_scrape"`

	PubMed         SourceConfig `json:"pubmed"`
	Scholar        SourceConfig `json:"scholar"`
	EuropePMC      SourceConfig `json:"europe_pmc"`
	SemanticScholar SourceConfig `json:"semantic_scholar"`
	OpenAlex       SourceConfig `json:"openalex"`
	Unpaywall      SourceConfig `json:"unpaywall"`

	MaxResults int `json:"max_results"`

	TopKForEnrichment  int `json:"top_k_for_enrichment"`
	MaxConcurrentDownloads int `json:"max_concurrent_downloads"`
	MaxPDFBytes        int64 `json:"max_pdf_bytes"`

	Institutions []InstitutionConfig `json:"institutions,omitempty"`

	GlobalDeadline         time.Duration `json:"-"`
	ReturnPartialOnCancel  bool          `json:"return_partial_on_cancel"`
	CacheTTL               time.Duration `json:"-"`

	// QueryYearFrom / QueryYearTo optionally bound publication years.
	QueryYearFrom int `json:"query_year_from,omitempty"`
	QueryYearTo   int `json:"query_year_to,omitempty"`

	// RequestedShape selects an Adapter for non-canonical output, empty
	// means canonical shape (spec §4.10).
	RequestedShape string `json:"requested_shape,omitempty"`
}

// InstitutionConfig describes one EZProxy-fronted institution used by
// the Institutional Resolver.
type InstitutionConfig struct {
	Name         string `json:"name"`
	EZProxyHost  string `json:"ezproxy_host"`
}

// DefaultSearchConfig returns a config with every source enabled and
// spec-mandated defaults (30s per-source timeout, 60s global deadline,
// 4 concurrent downloads, 200MB PDF cap, top-20 enrichment).
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		EnablePubMed:              true,
		EnableScholar:             true,
		EnableEuropePMC:           true,
		EnableSemanticScholar:     true,
		EnableOpenAlex:            true,
		EnableUnpaywall:           true,
		EnableCitationTracking:    false,
		EnableFullTextResolve:     false,
		EnablePDFDownload:         false,
		EnableInstitutionalAccess: false,
		EnableCache:               true,
		EnableWebScrape:           false,

		PubMed:          DefaultSourceConfig(),
		Scholar:         DefaultSourceConfig(),
		EuropePMC:       DefaultSourceConfig(),
		SemanticScholar: DefaultSourceConfig(),
		OpenAlex:        DefaultSourceConfig(),
		Unpaywall:       DefaultSourceConfig(),

		MaxResults:             20,
		TopKForEnrichment:       20,
		MaxConcurrentDownloads:  4,
		MaxPDFBytes:             200 * 1024 * 1024,
		GlobalDeadline:          60 * time.Second,
		CacheTTL:                30 * 24 * time.Hour,
	}
}

// EnabledSources returns the source tags enabled by this config, in a
// fixed, deterministic order (so fan-out task creation order, though
// not completion order, is reproducible for tests).
func (c SearchConfig) EnabledSources() []string {
	var out []string
	if c.EnablePubMed {
		out = append(out, "pubmed")
	}
	if c.EnableEuropePMC {
		out = append(out, "europe_pmc")
	}
	if c.EnableSemanticScholar {
		out = append(out, "semantic_scholar")
	}
	if c.EnableOpenAlex {
		out = append(out, "openalex")
	}
	if c.EnableScholar {
		out = append(out, "scholar")
	}
	return out
}

// Validate returns an InvalidInput error if the config is internally
// inconsistent (spec §4.8 step 1): at least one source enabled, and a
// sane year range if both bounds are present.
func (c SearchConfig) Validate() error {
	if len(c.EnabledSources()) == 0 {
		return NewError(ErrKindInvalidInput, "", "no sources enabled")
	}
	if c.QueryYearFrom != 0 && c.QueryYearTo != 0 && c.QueryYearFrom > c.QueryYearTo {
		return NewError(ErrKindInvalidInput, "", "query_year_from must be <= query_year_to")
	}
	return nil
}
