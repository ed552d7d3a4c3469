// Package pipeline implements the search() orchestrator from spec
// §4.8: fan out to every enabled Source Client, fan in under a
// deadline, deduplicate, rank, and optionally enrich with full-text
// resolution, PDF download, and citation tracking. The fan-out/fan-in
// shape over channels follows the teacher's harvest-worker pattern in
// cmd/harvest, generalized from a fixed OAI-PMH source to an arbitrary
// set of Source Clients.
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sdodlapa/omicsoracle/internal/adapter"
	"github.com/sdodlapa/omicsoracle/internal/cache"
	"github.com/sdodlapa/omicsoracle/internal/citation"
	"github.com/sdodlapa/omicsoracle/internal/dedup"
	"github.com/sdodlapa/omicsoracle/internal/domain"
	"github.com/sdodlapa/omicsoracle/internal/fulltext"
	"github.com/sdodlapa/omicsoracle/internal/pdf"
	"github.com/sdodlapa/omicsoracle/internal/rank"
	"github.com/sdodlapa/omicsoracle/internal/ratelimit"
	"github.com/sdodlapa/omicsoracle/internal/resilience"
	"github.com/sdodlapa/omicsoracle/internal/source"
)

// Pipeline wires every stage from §4.8 together. All dependencies are
// constructed once by the caller and passed in explicitly (spec §9:
// "pass the Cache and Rate Limiter registry explicitly through the
// Pipeline constructor" — no implicit globals).
type Pipeline struct {
	Sources  map[string]source.Searcher
	Limiters *ratelimit.Registry
	Cache    *cache.Cache
	Fulltext *fulltext.Resolver
	Download *pdf.Downloader
	Tracker  *citation.Tracker
	Logger   *log.Logger

	PDFBaseDir string
}

// New builds a Pipeline. sources maps a source tag to its client;
// every other dependency is optional (nil disables that enrichment
// stage regardless of what SearchConfig requests).
func New(sources map[string]source.Searcher, limiters *ratelimit.Registry, c *cache.Cache) *Pipeline {
	return &Pipeline{
		Sources:  sources,
		Limiters: limiters,
		Cache:    c,
		Logger:   log.Default(),
	}
}

// newBreaker builds a fresh circuit breaker for tag. Breakers are
// scoped to a single Search() call (built fresh in fanOut, one per
// enabled source, before any goroutine starts) rather than cached on
// the Pipeline: spec §5 marks a source unhealthy "for the remainder of
// the call", not across unrelated later calls, so nothing here may
// outlive the fanOut that created it.
func (p *Pipeline) newBreaker(tag string) *resilience.Breaker {
	return resilience.New(tag, 3, func(source string) {
		p.Logger.Printf("[pipeline] circuit breaker open for %s", source)
	})
}

type sourceOutcome struct {
	tag   string
	pubs  []*domain.Publication
	err   error
	elaps time.Duration
}

// Search implements spec §4.8's full sequence. datasets, if supplied,
// are GEO series metadata accompanying this query; when citation
// tracking is enabled each dataset's CitingPapers is populated in
// place (spec §9: citing papers embedded by value under the dataset,
// never a back-pointer from the Publication).
func (p *Pipeline) Search(ctx context.Context, query string, cfg domain.SearchConfig, datasets ...*domain.GEOSeriesMetadata) (*domain.PublicationResult, error) {
	if query == "" {
		return nil, domain.NewError(domain.ErrKindInvalidInput, "", "empty query")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cacheKey := domain.BuildCacheKey(query, cfg)
	if cfg.EnableCache && p.Cache != nil {
		if cached, ok := p.Cache.Get(ctx, cacheKey); ok {
			cached.CacheHit = true
			return cached, nil
		}
	}

	deadline := cfg.GlobalDeadline
	if deadline <= 0 {
		deadline = 60 * time.Second
	}
	searchCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	timings := make(map[string]int64)
	fanOutStart := time.Now()
	outcomes := p.fanOut(searchCtx, query, cfg)
	timings["fan_out_ms"] = time.Since(fanOutStart).Milliseconds()

	var staged []*domain.Publication
	perSourceCounts := make(map[string]int)
	var failures []domain.SourceFailure

	for _, o := range outcomes {
		if o.err != nil {
			failures = append(failures, sourceFailure(o.tag, o.err))
			p.Logger.Printf("[pipeline] source %s failed: %v", o.tag, o.err)
			continue
		}
		perSourceCounts[o.tag] = len(o.pubs)
		staged = append(staged, o.pubs...)
	}

	// Check searchCtx, not ctx: searchCtx carries cfg.GlobalDeadline and
	// is the context that actually expires when the global deadline
	// elapses (ctx.Err() stays nil until the caller's own context is
	// cancelled). Prefer ctx.Err() when set so a caller-initiated
	// cancellation is still reported as Cancelled rather than
	// DeadlineExceeded.
	if deadlineErr := searchCtx.Err(); deadlineErr != nil {
		if !cfg.ReturnPartialOnCancel {
			if ctx.Err() != nil {
				return nil, domain.NewError(domain.ErrKindCancelled, "", "search cancelled")
			}
			return nil, domain.NewError(domain.ErrKindDeadlineExceeded, "", "global deadline exceeded")
		}
	}

	for i, pb := range staged {
		pb.SetInsertionIndex(i)
	}

	dedupStart := time.Now()
	deduped := dedup.Deduplicate(staged)
	timings["dedup_ms"] = time.Since(dedupStart).Milliseconds()

	rankStart := time.Now()
	ranked := rank.Rank(deduped, query, time.Now())
	timings["rank_ms"] = time.Since(rankStart).Milliseconds()

	topK := cfg.TopKForEnrichment
	if topK <= 0 {
		topK = 20
	}
	top := ranked
	if len(top) > topK {
		top = top[:topK]
	}

	if cfg.EnableFullTextResolve && p.Fulltext != nil {
		p.resolveFullText(searchCtx, top)
	}

	if cfg.EnablePDFDownload && p.Download != nil {
		p.downloadPDFs(searchCtx, top, cfg)
	}

	if cfg.EnableCitationTracking && p.Tracker != nil {
		for _, ds := range datasets {
			ds.CitingPapers = p.Tracker.Track(searchCtx, ds, time.Now())
		}
	}

	result := &domain.PublicationResult{
		Publications:    ranked,
		TotalFound:      len(ranked),
		PerSourceCounts: perSourceCounts,
		QueryEcho:       query,
		Timings:         timings,
		Failures:        failures,
	}

	if cfg.EnableCache && p.Cache != nil {
		if err := p.Cache.Set(ctx, cacheKey, result, cfg.CacheTTL); err != nil {
			p.Logger.Printf("[pipeline] cache write failed: %v", err)
		}
	}

	return result, nil
}

// SearchAdapted runs Search and then applies the adapter named by
// cfg.RequestedShape (spec §4.8 step 11). An empty RequestedShape
// returns the canonical result unchanged (as `any`, for a uniform
// call shape across callers that may request either form). Unknown
// shapes are an InvalidInput error rather than a silent pass-through,
// since adapters never guess at a caller's intent.
func (p *Pipeline) SearchAdapted(ctx context.Context, query string, cfg domain.SearchConfig, datasets ...*domain.GEOSeriesMetadata) (any, error) {
	result, err := p.Search(ctx, query, cfg, datasets...)
	if err != nil {
		return nil, err
	}
	switch cfg.RequestedShape {
	case "", "canonical":
		return result, nil
	case "geo_style":
		shaped := adapter.ResultToGEOStyle(result)
		return &shaped, nil
	default:
		return nil, domain.NewError(domain.ErrKindInvalidInput, "", "unknown requested_shape: "+cfg.RequestedShape)
	}
}

// fanOut starts one task per enabled source and waits for every task
// to return. A task does not run past its own per-source timeout or
// the end of ctx: the context it runs under is cancelled then, and the
// task returns with that error.
//
// This uses errgroup.Group purely as a join point, not for its
// error-cancels-siblings behavior: every goroutine captures its own
// source's error into sourceOutcome and always returns nil to the
// group, so one source failing never cancels ctx for the others
// (spec §5: "one failing source never prevents others from
// contributing").
func (p *Pipeline) fanOut(ctx context.Context, query string, cfg domain.SearchConfig) []sourceOutcome {
	tags := cfg.EnabledSources()
	results := make(chan sourceOutcome, len(tags))
	var g errgroup.Group

	// Breakers are built once per tag, here, before any goroutine
	// starts; each goroutine below only ever touches the single
	// breaker for its own tag, so no further synchronization is
	// needed even though the goroutines run concurrently.
	breakers := make(map[string]*resilience.Breaker, len(tags))
	for _, tag := range tags {
		breakers[tag] = p.newBreaker(tag)
	}

	for _, tag := range tags {
		client, ok := p.Sources[tag]
		if !ok {
			results <- sourceOutcome{tag: tag, err: domain.NewError(domain.ErrKindSourceNotFound, tag, "no client registered")}
			continue
		}
		sc := sourceConfigFor(cfg, tag)
		breaker := breakers[tag]

		tag, client, sc, breaker := tag, client, sc, breaker
		g.Go(func() error {
			start := time.Now()
			pubs, err := p.runSource(ctx, tag, client, query, cfg, sc, breaker)
			results <- sourceOutcome{tag: tag, pubs: pubs, err: err, elaps: time.Since(start)}
			return nil
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	var outcomes []sourceOutcome
	for o := range results {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (p *Pipeline) runSource(ctx context.Context, tag string, client source.Searcher, query string, cfg domain.SearchConfig, sc domain.SourceConfig, breaker *resilience.Breaker) ([]*domain.Publication, error) {
	timeout := time.Duration(sc.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sourceCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if p.Limiters != nil {
		maxConcurrent := 4
		if tag == "scholar" {
			maxConcurrent = 1
		}
		limiter := p.Limiters.ForSource(tag, sc.RateLimitSeconds, maxConcurrent)
		release, err := limiter.Acquire(sourceCtx)
		if err != nil {
			return nil, domain.WrapError(domain.ErrKindSourceTimeout, tag, err)
		}
		defer release()
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = sc.MaxResults
	}

	var pubs []*domain.Publication
	err := breaker.Do(sourceCtx, tag, func(ctx context.Context) error {
		var err error
		pubs, err = client.Search(ctx, query, maxResults, cfg.QueryYearFrom, cfg.QueryYearTo)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pubs, nil
}

func sourceConfigFor(cfg domain.SearchConfig, tag string) domain.SourceConfig {
	switch tag {
	case "pubmed":
		return cfg.PubMed
	case "scholar":
		return cfg.Scholar
	case "europe_pmc":
		return cfg.EuropePMC
	case "semantic_scholar":
		return cfg.SemanticScholar
	case "openalex":
		return cfg.OpenAlex
	case "unpaywall":
		return cfg.Unpaywall
	default:
		return domain.DefaultSourceConfig()
	}
}

func sourceFailure(tag string, err error) domain.SourceFailure {
	if de, ok := err.(*domain.Error); ok {
		return domain.SourceFailure{Source: tag, Kind: string(de.Kind), Detail: de.Message}
	}
	return domain.SourceFailure{Source: tag, Kind: "unknown", Detail: err.Error()}
}

func (p *Pipeline) resolveFullText(ctx context.Context, pubs []*domain.Publication) {
	for _, pb := range pubs {
		candidates := p.Fulltext.Resolve(ctx, pb)
		if len(candidates) > 0 && !candidates[0].RequiresManualAuth {
			pb.FulltextURL = candidates[0].URL
		}
		for _, c := range candidates {
			if c.RequiresManualAuth {
				pb.InstitutionalURLs = append(pb.InstitutionalURLs, domain.InstitutionalURL{
					URL: c.URL, Kind: c.Kind, RequiresManualAuth: true,
				})
			}
		}
	}
}

// downloadPDFs fetches PDFs for pubs with a bounded concurrency and
// records the pdf_local_path on success, never failing the batch for
// one publication's exhausted candidates (spec §7 AllDownloadsFailed).
func (p *Pipeline) downloadPDFs(ctx context.Context, pubs []*domain.Publication, cfg domain.SearchConfig) {
	if p.Fulltext == nil {
		return
	}
	maxConcurrent := cfg.MaxConcurrentDownloads
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for _, pb := range pubs {
		candidates := p.Fulltext.Resolve(ctx, pb)
		if len(candidates) == 0 {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(pb *domain.Publication, candidates []fulltext.Candidate) {
			defer wg.Done()
			defer func() { <-sem }()

			report := p.Download.Download(ctx, candidates, p.PDFBaseDir)
			if report.Success {
				pb.PDFLocalPath = report.LocalPath
			}
		}(pb, candidates)
	}
	wg.Wait()
}

