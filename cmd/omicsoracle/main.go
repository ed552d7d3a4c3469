// omicsoracle is the CLI surface for the publication discovery core
// (spec §6): a single `search` command that fans a query out across
// the configured Source Clients and prints the ranked result as JSON.
//
// Usage:
//
//	omicsoracle --query "CRISPR gene editing review" \
//	  --source pubmed,europe_pmc \
//	  --max-results 20 \
//	  --download-pdfs \
//	  --output result.json
//
// Exit codes: 0 success; 2 invalid args; 3 all sources failed; 4
// cancelled/deadline exceeded.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sdodlapa/omicsoracle/internal/cache"
	"github.com/sdodlapa/omicsoracle/internal/citation"
	"github.com/sdodlapa/omicsoracle/internal/config"
	"github.com/sdodlapa/omicsoracle/internal/domain"
	"github.com/sdodlapa/omicsoracle/internal/fulltext"
	"github.com/sdodlapa/omicsoracle/internal/pdf"
	"github.com/sdodlapa/omicsoracle/internal/pipeline"
	"github.com/sdodlapa/omicsoracle/internal/ratelimit"
	"github.com/sdodlapa/omicsoracle/internal/source"
	"github.com/sdodlapa/omicsoracle/pkg/europepmc"
	"github.com/sdodlapa/omicsoracle/pkg/openalex"
	"github.com/sdodlapa/omicsoracle/pkg/preprint"
	"github.com/sdodlapa/omicsoracle/pkg/pubmed"
	"github.com/sdodlapa/omicsoracle/pkg/scholar"
	"github.com/sdodlapa/omicsoracle/pkg/semanticscholar"
	"github.com/sdodlapa/omicsoracle/pkg/unpaywall"
)

const (
	exitOK           = 0
	exitInvalidArgs  = 2
	exitAllFailed    = 3
	exitCancelled    = 4
)

func main() {
	query := flag.String("query", "", "natural-language biomedical query (required)")
	sourcesFlag := flag.String("source", "pubmed,europe_pmc,semantic_scholar,openalex", "comma-separated source tags to query")
	maxResults := flag.Int("max-results", 20, "max results per source")
	noCache := flag.Bool("no-cache", false, "disable the result cache for this call")
	downloadPDFs := flag.Bool("download-pdfs", false, "resolve and download full-text PDFs for top results")
	output := flag.String("output", "", "write JSON result to this path instead of stdout")
	deadline := flag.Duration("deadline", 60*time.Second, "global deadline for the search")
	flag.Parse()

	if strings.TrimSpace(*query) == "" {
		fmt.Fprintln(os.Stderr, "omicsoracle: --query is required")
		os.Exit(exitInvalidArgs)
	}

	rc := config.Load()
	cfg := rc.Search
	cfg.GlobalDeadline = *deadline
	cfg.MaxResults = *maxResults
	cfg.EnableCache = cfg.EnableCache && !*noCache
	cfg.EnablePDFDownload = *downloadPDFs
	cfg.EnableFullTextResolve = cfg.EnableFullTextResolve || *downloadPDFs
	applyEnabledSources(&cfg, strings.Split(*sourcesFlag, ","))

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "omicsoracle: %v\n", err)
		os.Exit(exitInvalidArgs)
	}

	p := buildPipeline(rc, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := p.Search(ctx, *query, cfg)
	if err != nil {
		de, ok := err.(*domain.Error)
		if ok && (de.Kind == domain.ErrKindCancelled || de.Kind == domain.ErrKindDeadlineExceeded) {
			fmt.Fprintf(os.Stderr, "omicsoracle: %v\n", err)
			os.Exit(exitCancelled)
		}
		fmt.Fprintf(os.Stderr, "omicsoracle: %v\n", err)
		os.Exit(exitInvalidArgs)
	}

	if len(result.Publications) == 0 && len(result.Failures) == len(cfg.EnabledSources()) && len(cfg.EnabledSources()) > 0 {
		fmt.Fprintln(os.Stderr, "omicsoracle: all sources failed")
		writeResult(result, *output)
		os.Exit(exitAllFailed)
	}

	writeResult(result, *output)
	os.Exit(exitOK)
}

func applyEnabledSources(cfg *domain.SearchConfig, tags []string) {
	wanted := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			wanted[t] = true
		}
	}
	cfg.EnablePubMed = wanted["pubmed"]
	cfg.EnableScholar = wanted["scholar"]
	cfg.EnableEuropePMC = wanted["europe_pmc"]
	cfg.EnableSemanticScholar = wanted["semantic_scholar"]
	cfg.EnableOpenAlex = wanted["openalex"]
	cfg.EnableUnpaywall = wanted["unpaywall"]
}

// buildPipeline wires every Source Client, the shared rate limiter
// registry, the cache, and the optional full-text/PDF stack into one
// Pipeline, exactly the explicit construction spec §9 calls for ("pass
// the Cache and Rate Limiter registry explicitly through the Pipeline
// constructor").
func buildPipeline(rc config.RuntimeConfig, cfg domain.SearchConfig) *pipeline.Pipeline {
	s2Client := semanticscholar.New(rc.S2APIKey)

	sources := map[string]source.Searcher{
		"pubmed":           pubmed.New(rc.PubMedAPIKey),
		"europe_pmc":       europepmc.New(),
		"semantic_scholar": s2Client,
		"openalex":         openalex.New("omicsoracle@example.org"),
		"scholar":          scholar.New(),
	}

	p := pipeline.New(sources, ratelimit.NewRegistry(), cache.New(rc.CacheURL))
	p.Logger = log.New(os.Stderr, "", log.LstdFlags)

	if cfg.EnableFullTextResolve {
		p.Fulltext = &fulltext.Resolver{
			Unpaywall:    unpaywall.New("omicsoracle@example.org"),
			EuropePMC:    europepmc.New(),
			Preprint:     preprint.New(),
			Institutions: cfg.Institutions,
			EnableScrape: cfg.EnableWebScrape,
		}
	}
	if cfg.EnablePDFDownload {
		p.Download = pdf.New(cfg.MaxPDFBytes)
		p.PDFBaseDir = rc.PDFBaseDir
	}
	if cfg.EnableCitationTracking {
		p.Tracker = citation.New(s2Client, p.Logger)
	}

	return p
}

func writeResult(result *domain.PublicationResult, path string) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "omicsoracle: marshal result: %v\n", err)
		return
	}
	if path == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "omicsoracle: write output: %v\n", err)
	}
}
