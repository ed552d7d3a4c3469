// Package source defines the contract every publication Source Client
// implements (spec §4.1): a capability set of {Search, FetchByID?,
// GetCitations?} plus a static source tag, expressed as Go interface
// polymorphism rather than runtime reflection (spec §9).
package source

import (
	"context"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

// Searcher is the mandatory capability every Source Client has.
type Searcher interface {
	// SourceName returns the static tag this client contributes to
	// Publication.Sources.
	SourceName() string
	// Search queries the source and returns normalized publications in
	// source-native relevance order. query is non-empty UTF-8;
	// maxResults is in [1,200]; yearFrom/yearTo (0 = unbounded) must
	// form a valid range if both are set.
	Search(ctx context.Context, query string, maxResults int, yearFrom, yearTo int) ([]*domain.Publication, error)
}

// IDFetcher is an optional capability: fetch a single publication by
// the source's native identifier.
type IDFetcher interface {
	FetchByID(ctx context.Context, id string) (*domain.Publication, error)
}

// DOIFetcher is an optional capability: fetch by DOI (used by clients
// like Unpaywall that are identifier-only, never a search surface).
type DOIFetcher interface {
	FetchByDOI(ctx context.Context, doi string) (*domain.Publication, error)
}

// CitationCounter is an optional capability: retrieve a fresh citation
// count for a given publication.
type CitationCounter interface {
	GetCitations(ctx context.Context, p *domain.Publication) (int, error)
}

// Capabilities reports, for a given client value, which optional
// interfaces it implements — the Go-idiomatic analogue of spec §9's
// "capability set plus static tag" for clients enumerable by tag.
type Capabilities struct {
	Search      bool
	FetchByID   bool
	FetchByDOI  bool
	GetCitations bool
}

// Describe inspects a Searcher and reports which optional capabilities
// it also implements.
func Describe(s Searcher) Capabilities {
	_, hasID := s.(IDFetcher)
	_, hasDOI := s.(DOIFetcher)
	_, hasCite := s.(CitationCounter)
	return Capabilities{Search: true, FetchByID: hasID, FetchByDOI: hasDOI, GetCitations: hasCite}
}
