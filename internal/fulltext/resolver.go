// Package fulltext builds the ordered candidate-URL chain for a
// publication's PDF per spec §4.5. Each step is a pure lookup step
// consulted in order; the resolver itself performs no downloading
// (that is internal/pdf's job) and concatenates every step's
// candidates into one ordered chain rather than stopping at the first
// match, mirroring the teacher's style of composing small
// single-purpose lookup functions in its usecase layer.
package fulltext

import (
	"context"
	"fmt"

	"github.com/sdodlapa/omicsoracle/internal/domain"
	"github.com/sdodlapa/omicsoracle/pkg/europepmc"
	"github.com/sdodlapa/omicsoracle/pkg/institutional"
	"github.com/sdodlapa/omicsoracle/pkg/preprint"
	"github.com/sdodlapa/omicsoracle/pkg/scholar"
	"github.com/sdodlapa/omicsoracle/pkg/unpaywall"
)

// Candidate is one resolved access point for a publication's full text.
type Candidate struct {
	URL                string
	Kind               string
	RequiresManualAuth bool
}

// Resolver chains the lookup steps from spec §4.5. All dependencies
// are optional; a nil dependency simply causes its step to be skipped,
// so the pipeline can wire in only the sources a SearchConfig enables.
type Resolver struct {
	Unpaywall    *unpaywall.Client
	EuropePMC    *europepmc.Client
	Preprint     *preprint.Client
	Scholar      *scholar.Client
	Institutions []domain.InstitutionConfig
	EnableScrape bool
}

// Resolve walks every step from spec §4.5 in order and appends each
// step's candidate(s) to one ordered chain; it never stops at the
// first step that matches. internal/pdf.Downloader needs the full
// chain to fall through to the next source when an earlier candidate
// turns out not to actually be a PDF (spec §4.6's "multi-source
// fallback on any non-retriable failure") — a resolver that quit at
// the first match could never produce more than one candidate for any
// publication with a DOI, which is most of them.
func (r *Resolver) Resolve(ctx context.Context, p *domain.Publication) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)

	add := func(c Candidate) {
		if c.URL == "" || seen[c.URL] {
			return
		}
		seen[c.URL] = true
		out = append(out, c)
	}

	if p.PMCID != "" {
		add(Candidate{
			URL:  fmt.Sprintf("https://www.ncbi.nlm.nih.gov/pmc/articles/%s/pdf/", p.PMCID),
			Kind: "pmc",
		})
	}

	if r.Unpaywall != nil && p.DOI != "" {
		if pub, err := r.Unpaywall.FetchByDOI(ctx, p.DOI); err == nil && pub != nil && pub.FulltextURL != "" {
			add(Candidate{URL: pub.FulltextURL, Kind: "unpaywall"})
		}
	}

	if p.DOI != "" {
		add(Candidate{URL: "https://doi.org/" + p.DOI, Kind: "publisher_landing"})
	}

	if r.EuropePMC != nil && (p.PMID != "" || p.PMCID != "") {
		if c := r.europePMCCandidate(p); c != nil {
			add(*c)
		}
	}

	if len(r.Institutions) > 0 {
		target := p.DOI
		if target != "" {
			target = "https://doi.org/" + target
		}
		if target != "" {
			for _, u := range institutional.Resolve(target, r.Institutions) {
				add(Candidate{URL: u.URL, Kind: u.Kind, RequiresManualAuth: u.RequiresManualAuth})
			}
		}
	}

	if r.Preprint != nil {
		if url, err := r.Preprint.FindOnArxiv(ctx, p.Title); err == nil && url != "" {
			add(Candidate{URL: url, Kind: "preprint_arxiv"})
		}
		if p.DOI != "" {
			if url, err := r.Preprint.FindOnBiorxiv(ctx, p.DOI); err == nil && url != "" {
				add(Candidate{URL: url, Kind: "preprint_biorxiv"})
			}
			if url, err := r.Preprint.FindOnMedrxiv(ctx, p.DOI); err == nil && url != "" {
				add(Candidate{URL: url, Kind: "preprint_medrxiv"})
			}
		}
	}

	if r.EnableScrape && r.Scholar != nil {
		if results, err := r.Scholar.Search(ctx, p.Title, 1, 0, 0); err == nil && len(results) > 0 && results[0].FulltextURL != "" {
			add(Candidate{URL: results[0].FulltextURL, Kind: "web_scrape"})
		}
	}

	return out
}

func (r *Resolver) europePMCCandidate(p *domain.Publication) *Candidate {
	if p.PMCID != "" {
		return &Candidate{URL: fmt.Sprintf("https://europepmc.org/article/PMC/%s", p.PMCID), Kind: "europe_pmc"}
	}
	if p.PMID != "" {
		return &Candidate{URL: fmt.Sprintf("https://europepmc.org/article/MED/%s", p.PMID), Kind: "europe_pmc"}
	}
	return nil
}
