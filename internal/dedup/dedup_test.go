package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

func pub(title string, opts ...func(*domain.Publication)) *domain.Publication {
	p := &domain.Publication{Title: title}
	for _, o := range opts {
		o(p)
	}
	return p
}

func withDOI(doi string) func(*domain.Publication)       { return func(p *domain.Publication) { p.DOI = doi } }
func withSource(s string) func(*domain.Publication)      { return func(p *domain.Publication) { p.AddSource(s) } }
func withYear(y int) func(*domain.Publication)           { return func(p *domain.Publication) { p.Year = y } }
func withCitations(c int) func(*domain.Publication)      { return func(p *domain.Publication) { p.Citations = c } }
func withAuthors(names ...string) func(*domain.Publication) {
	return func(p *domain.Publication) {
		for _, n := range names {
			p.Authors = append(p.Authors, domain.Author{Name: n})
		}
	}
}

func TestDeduplicate_MergesSameDOI(t *testing.T) {
	pubs := []*domain.Publication{
		pub("Kidney atlas", withDOI("10.1/x"), withSource("pubmed"), withCitations(5)),
		pub("Kidney atlas", withDOI("10.1/X"), withSource("openalex"), withCitations(12)),
	}

	out := Deduplicate(pubs)
	require.Len(t, out, 1)
	assert.Equal(t, 12, out[0].Citations)
	assert.True(t, out[0].Sources["pubmed"])
	assert.True(t, out[0].Sources["openalex"])
}

func TestDeduplicate_FuzzyMergesCloseTitles(t *testing.T) {
	pubs := []*domain.Publication{
		pub("Single-cell atlas of the human kidney", withYear(2022), withSource("scholar"), withAuthors("Jane Smith")),
		pub("Single cell atlas of the human kidney", withYear(2022), withSource("europe_pmc"), withAuthors("Jane Smith", "Bob Lee")),
	}

	out := Deduplicate(pubs)
	require.Len(t, out, 1)
	assert.True(t, out[0].Sources["scholar"])
	assert.True(t, out[0].Sources["europe_pmc"])
	assert.Len(t, out[0].Authors, 2)
}

func TestDeduplicate_DistinctTitlesNotMerged(t *testing.T) {
	pubs := []*domain.Publication{
		pub("Single-cell atlas of the human kidney", withYear(2022)),
		pub("Bulk RNA-seq of mouse liver", withYear(2022)),
	}
	out := Deduplicate(pubs)
	assert.Len(t, out, 2)
}

func TestDeduplicate_YearMismatchPreventsFuzzyMerge(t *testing.T) {
	pubs := []*domain.Publication{
		pub("Single-cell atlas of the human kidney", withYear(2015)),
		pub("Single-cell atlas of the human kidney", withYear(2022)),
	}
	out := Deduplicate(pubs)
	assert.Len(t, out, 2)
}

func TestDeduplicate_PreservesAnchorOrder(t *testing.T) {
	pubs := []*domain.Publication{
		pub("B paper", withDOI("10.1/b")),
		pub("A paper", withDOI("10.1/a")),
		pub("B paper dup", withDOI("10.1/b")),
	}
	out := Deduplicate(pubs)
	require.Len(t, out, 2)
	assert.Equal(t, "B paper", out[0].Title)
	assert.Equal(t, "A paper", out[1].Title)
}

func TestDeduplicate_SourcePrecedenceForTitle(t *testing.T) {
	pubs := []*domain.Publication{
		pub("scholar version of title", withDOI("10.1/c"), withSource("scholar")),
		pub("PubMed canonical title", withDOI("10.1/c"), withSource("pubmed")),
	}
	out := Deduplicate(pubs)
	require.Len(t, out, 1)
	assert.Equal(t, "PubMed canonical title", out[0].Title)
}

func TestDeduplicate_ConflictingDatesFlagged(t *testing.T) {
	d1 := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	pubs := []*domain.Publication{
		pub("conflicting dates paper", withDOI("10.1/d")),
		pub("conflicting dates paper", withDOI("10.1/d")),
	}
	pubs[0].PublicationDate = &d1
	pubs[1].PublicationDate = &d2

	out := Deduplicate(pubs)
	require.Len(t, out, 1)
	assert.Equal(t, d1, *out[0].PublicationDate)
	require.NotNil(t, out[0].SourceSpecific)
	assert.Contains(t, out[0].SourceSpecific, "_merge")
}
