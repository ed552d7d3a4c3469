// Package config loads a domain.SearchConfig from environment
// variables for library callers and the CLI, extending the teacher's
// getEnv/getDurationEnv/getSliceEnv helper shape (originally used to
// load ServerConfig/JWTConfig/etc. for the HTTP gateway) to the
// env vars spec §6 names for this module's toggles and per-source
// tuning.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

// RuntimeConfig carries the ambient settings that sit alongside a
// SearchConfig but aren't part of its serializable shape: where the
// cache lives, where PDFs get written, and per-source API credentials
// the Source Clients read at construction time rather than per call.
type RuntimeConfig struct {
	Search domain.SearchConfig

	CacheURL     string
	CacheEnabled bool
	PDFBaseDir   string

	PubMedAPIKey string
	S2APIKey     string

	HTTPTimeout time.Duration
}

// Load builds a RuntimeConfig from the process environment, starting
// from domain.DefaultSearchConfig and overriding only what spec §6
// names as recognized environment variables.
func Load() RuntimeConfig {
	cfg := domain.DefaultSearchConfig()

	cfg.PubMed.APIKey = getEnv("PUBMED_API_KEY", "")
	cfg.SemanticScholar.APIKey = getEnv("S2_API_KEY", "")

	if maxBytes := getEnv("MAX_PDF_BYTES", ""); maxBytes != "" {
		if n, err := strconv.ParseInt(maxBytes, 10, 64); err == nil && n > 0 {
			cfg.MaxPDFBytes = n
		}
	}

	timeout := getDurationEnv("HTTP_TIMEOUT_SECONDS", 30*time.Second)
	for _, sc := range []*domain.SourceConfig{
		&cfg.PubMed, &cfg.Scholar, &cfg.EuropePMC,
		&cfg.SemanticScholar, &cfg.OpenAlex, &cfg.Unpaywall,
	} {
		sc.TimeoutSeconds = int(timeout.Seconds())
	}

	cfg.Institutions = institutionsFromEnv()

	cacheEnabled := getBoolEnv("CACHE_ENABLED", true)
	cfg.EnableCache = cacheEnabled

	return RuntimeConfig{
		Search:       cfg,
		CacheURL:     getEnv("CACHE_URL", ""),
		CacheEnabled: cacheEnabled,
		PDFBaseDir:   getEnv("PDF_BASE_DIR", "./pdfs"),
		PubMedAPIKey: cfg.PubMed.APIKey,
		S2APIKey:     cfg.SemanticScholar.APIKey,
		HTTPTimeout:  timeout,
	}
}

// institutionsFromEnv reads INSTITUTIONS as a comma-separated list of
// "Name=ezproxy-host" pairs (e.g. "Duke=duke.idm.oclc.org"), matching
// spec §6's "per-institution EZProxy hostnames" env var without
// inventing a naming scheme per institution.
func institutionsFromEnv() []domain.InstitutionConfig {
	raw := getEnv("INSTITUTIONS", "")
	if raw == "" {
		return nil
	}
	var out []domain.InstitutionConfig
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, domain.InstitutionConfig{
			Name:        strings.TrimSpace(parts[0]),
			EZProxyHost: strings.TrimSpace(parts[1]),
		})
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
