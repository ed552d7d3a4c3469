package fulltext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdodlapa/omicsoracle/internal/domain"
	"github.com/sdodlapa/omicsoracle/pkg/europepmc"
)

func TestResolve_ConcatenatesAcrossSteps(t *testing.T) {
	r := &Resolver{
		EuropePMC:    europepmc.New(),
		Institutions: []domain.InstitutionConfig{{Name: "MIT", EZProxyHost: "mit.idm.oclc.org"}},
	}
	p := &domain.Publication{PMCID: "PMC12345", DOI: "10.1/x", PMID: "999"}
	candidates := r.Resolve(context.Background(), p)

	kinds := make([]string, len(candidates))
	for i, c := range candidates {
		kinds[i] = c.Kind
	}
	// PMC first, then publisher landing (no Unpaywall configured), then
	// Europe PMC, then institutional access — never short-circuited by
	// an earlier step matching.
	assert.Equal(t, []string{"pmc", "publisher_landing", "europe_pmc", "ezproxy"}, kinds)
	assert.Contains(t, candidates[0].URL, "PMC12345")
}

func TestResolve_FallsBackToPublisherLandingWhenNoPMCID(t *testing.T) {
	r := &Resolver{}
	p := &domain.Publication{DOI: "10.1/y"}
	candidates := r.Resolve(context.Background(), p)
	require.Len(t, candidates, 1)
	assert.Equal(t, "publisher_landing", candidates[0].Kind)
	assert.Equal(t, "https://doi.org/10.1/y", candidates[0].URL)
}

func TestResolve_InstitutionalAppendedAfterPublisherLanding(t *testing.T) {
	r := &Resolver{
		Institutions: []domain.InstitutionConfig{{Name: "MIT", EZProxyHost: "mit.idm.oclc.org"}},
	}
	p := &domain.Publication{DOI: "10.1/z"}
	candidates := r.Resolve(context.Background(), p)
	require.Len(t, candidates, 2)
	assert.Equal(t, "publisher_landing", candidates[0].Kind)
	assert.Equal(t, "ezproxy", candidates[1].Kind)
	assert.True(t, candidates[1].RequiresManualAuth)
}

func TestResolve_NoCandidates(t *testing.T) {
	r := &Resolver{}
	p := &domain.Publication{Title: "untitled work"}
	candidates := r.Resolve(context.Background(), p)
	assert.Empty(t, candidates)
}
