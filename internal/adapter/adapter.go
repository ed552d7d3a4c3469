// Package adapter transforms between the canonical domain.Publication /
// domain.PublicationResult shapes and external or legacy request and
// response schemas (spec §4.10). Adapters are pure functions: they
// never reach the network and never mutate the values they are given,
// following the teacher's domainPaperToDoc/osPaperDocToDomain converter
// pair in internal/usecase/paper_usecase.go, generalized from one
// fixed (Postgres, OpenSearch) pair to one adapter per external shape.
package adapter

import (
	"strings"
	"time"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

// LegacySearchRequest is the pre-canonical request shape some callers
// still send: a list of bare search terms instead of one query string,
// plus a flat result cap. RequestFromLegacy folds it into the
// (query, SearchConfig) pair Pipeline.Search expects.
type LegacySearchRequest struct {
	SearchTerms []string `json:"search_terms"`
	MaxResults  int      `json:"max_results"`
}

// RequestFromLegacy joins SearchTerms into a single query string (space
// separated, empty terms dropped) and applies MaxResults, if positive,
// as the canonical config's MaxResults. The caller supplies base so
// toggles and per-source tuning are not silently reset to defaults.
func RequestFromLegacy(req LegacySearchRequest, base domain.SearchConfig) (string, domain.SearchConfig) {
	terms := make([]string, 0, len(req.SearchTerms))
	for _, t := range req.SearchTerms {
		t = strings.TrimSpace(t)
		if t != "" {
			terms = append(terms, t)
		}
	}
	query := strings.Join(terms, " ")
	cfg := base
	if req.MaxResults > 0 {
		cfg.MaxResults = req.MaxResults
	}
	return query, cfg
}

// GEOStylePaper is the GEO-oriented response shape a legacy dataset
// caller expects in place of domain.Publication: accession-flavored
// field names, a single "cited_by" count instead of the full impact
// block, and no score breakdown.
type GEOStylePaper struct {
	Accession     string   `json:"accession,omitempty"`
	ArticleTitle  string   `json:"article_title"`
	PubDate       string   `json:"pub_date,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	CitedBy       int      `json:"cited_by"`
	OpenAccessURL string   `json:"open_access_url,omitempty"`
	Relevance     float64  `json:"relevance"`
}

// GEOStyleResult is the legacy GEO-oriented response envelope.
type GEOStyleResult struct {
	Query    string          `json:"query"`
	Papers   []GEOStylePaper `json:"papers"`
	NumFound int             `json:"num_found"`
}

// ResultToGEOStyle converts a canonical PublicationResult into the
// legacy GEO-oriented shape. PMID is preferred for Accession since
// GEO-side callers key on PubMed identifiers; DOI is used only when
// PMID is absent, never fabricated.
func ResultToGEOStyle(result *domain.PublicationResult) GEOStyleResult {
	papers := make([]GEOStylePaper, 0, len(result.Publications))
	for _, p := range result.Publications {
		papers = append(papers, publicationToGEOStyle(p))
	}
	return GEOStyleResult{
		Query:    result.QueryEcho,
		Papers:   papers,
		NumFound: result.TotalFound,
	}
}

func publicationToGEOStyle(p *domain.Publication) GEOStylePaper {
	accession := p.PMID
	if accession == "" {
		accession = p.DOI
	}
	var pubDate string
	if p.PublicationDate != nil {
		pubDate = p.PublicationDate.Format("2006-01-02")
	}
	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		authors = append(authors, a.Name)
	}
	url := p.FulltextURL
	if url == "" && p.IsOpenAccess {
		for _, iu := range p.InstitutionalURLs {
			if !iu.RequiresManualAuth {
				url = iu.URL
				break
			}
		}
	}
	return GEOStylePaper{
		Accession:     accession,
		ArticleTitle:  p.Title,
		PubDate:       pubDate,
		Authors:       authors,
		CitedBy:       p.Citations,
		OpenAccessURL: url,
		Relevance:     p.Score,
	}
}

// GEOStylePaperToPublication reconstructs a minimal canonical
// Publication from a legacy GEOStylePaper, used when a legacy caller
// feeds previously-adapted results back into the pipeline (e.g. a
// cached dataset citation list stored in the old shape). Accession is
// treated as a PMID when it is all-digits, otherwise as a DOI.
func GEOStylePaperToPublication(gp GEOStylePaper) *domain.Publication {
	p := &domain.Publication{
		Title:        gp.ArticleTitle,
		Citations:    gp.CitedBy,
		Score:        gp.Relevance,
		FulltextURL:  gp.OpenAccessURL,
		IsOpenAccess: gp.OpenAccessURL != "",
	}
	if isAllDigits(gp.Accession) {
		p.PMID = gp.Accession
	} else {
		p.DOI = gp.Accession
	}
	for _, name := range gp.Authors {
		p.Authors = append(p.Authors, domain.Author{Name: name})
	}
	if gp.PubDate != "" {
		if t, err := time.Parse("2006-01-02", gp.PubDate); err == nil {
			p.PublicationDate = &t
			p.Year = t.Year()
		}
	}
	return p
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
