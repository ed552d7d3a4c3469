package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

func TestRequestFromLegacy(t *testing.T) {
	base := domain.DefaultSearchConfig()
	query, cfg := RequestFromLegacy(LegacySearchRequest{
		SearchTerms: []string{"CRISPR", " ", "gene editing"},
		MaxResults:  50,
	}, base)

	assert.Equal(t, "CRISPR gene editing", query)
	assert.Equal(t, 50, cfg.MaxResults)
	assert.Equal(t, base.EnablePubMed, cfg.EnablePubMed)
}

func TestRequestFromLegacy_ZeroMaxResultsKeepsBase(t *testing.T) {
	base := domain.DefaultSearchConfig()
	base.MaxResults = 20
	_, cfg := RequestFromLegacy(LegacySearchRequest{SearchTerms: []string{"x"}}, base)
	assert.Equal(t, 20, cfg.MaxResults)
}

func TestResultToGEOStyle(t *testing.T) {
	date := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	result := &domain.PublicationResult{
		QueryEcho:  "crispr",
		TotalFound: 1,
		Publications: []*domain.Publication{
			{
				PMID:            "123",
				DOI:             "10.1/x",
				Title:           "A Study",
				PublicationDate: &date,
				Authors:         []domain.Author{{Name: "A. Author"}},
				Citations:       42,
				Score:           0.87,
				IsOpenAccess:    true,
				FulltextURL:     "https://example.org/a.pdf",
			},
		},
	}

	shaped := ResultToGEOStyle(result)
	require.Len(t, shaped.Papers, 1)
	p := shaped.Papers[0]
	assert.Equal(t, "123", p.Accession, "PMID preferred over DOI for accession")
	assert.Equal(t, "A Study", p.ArticleTitle)
	assert.Equal(t, "2023-05-01", p.PubDate)
	assert.Equal(t, 42, p.CitedBy)
	assert.Equal(t, 0.87, p.Relevance)
	assert.Equal(t, "https://example.org/a.pdf", p.OpenAccessURL)
	assert.Equal(t, 1, shaped.NumFound)
}

func TestResultToGEOStyle_DOIFallbackWhenNoPMID(t *testing.T) {
	result := &domain.PublicationResult{
		Publications: []*domain.Publication{
			{DOI: "10.1/y", Title: "No PMID"},
		},
	}
	shaped := ResultToGEOStyle(result)
	assert.Equal(t, "10.1/y", shaped.Papers[0].Accession)
}

func TestGEOStylePaperToPublication_RoundTripsDigitsAsPMID(t *testing.T) {
	p := GEOStylePaperToPublication(GEOStylePaper{
		Accession:    "456",
		ArticleTitle: "Round Trip",
		CitedBy:      3,
		PubDate:      "2022-01-15",
		Authors:      []string{"B. Author"},
	})
	assert.Equal(t, "456", p.PMID)
	assert.Empty(t, p.DOI)
	assert.Equal(t, 2022, p.Year)
	require.Len(t, p.Authors, 1)
	assert.Equal(t, "B. Author", p.Authors[0].Name)
}

func TestGEOStylePaperToPublication_NonDigitAccessionIsDOI(t *testing.T) {
	p := GEOStylePaperToPublication(GEOStylePaper{Accession: "10.1/z", ArticleTitle: "Has DOI"})
	assert.Equal(t, "10.1/z", p.DOI)
	assert.Empty(t, p.PMID)
}
