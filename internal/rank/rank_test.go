package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

var now = time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		query string
		want  domain.Intent
	}{
		{"a systematic review of kidney organoids", domain.IntentReview},
		{"recent advances in spatial transcriptomics", domain.IntentRecent},
		{"single cell studies 2026", domain.IntentRecent},
		{"protocol for library preparation", domain.IntentMethod},
		{"GSE123456 dataset reuse", domain.IntentDataset},
		{"kidney organoid development", domain.IntentBalanced},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DetectIntent(c.query, now), c.query)
	}
}

func TestRank_OrdersByScoreDescending(t *testing.T) {
	pubs := []*domain.Publication{
		{Title: "unrelated topic entirely", Abstract: "nothing matches here", Citations: 0},
		{Title: "single cell atlas of kidney development", Abstract: "we profiled kidney cells", Citations: 50},
	}
	ranked := Rank(pubs, "kidney single cell atlas", now)
	require.Len(t, ranked, 2)
	assert.Equal(t, "single cell atlas of kidney development", ranked[0].Title)
	assert.Equal(t, 1, ranked[0].Rank)
}

func TestRank_TieBreaksByDateWhenScoreAndCitationsEqual(t *testing.T) {
	// Both dates lie after now, so both ages clamp to 0 and the recency
	// factors (and hence the scores) are equal; only the date differs.
	older := now.AddDate(1, 0, 0)
	newer := now.AddDate(2, 0, 0)
	a := &domain.Publication{Title: "", Abstract: "", Citations: 0, PublicationDate: &older}
	b := &domain.Publication{Title: "", Abstract: "", Citations: 0, PublicationDate: &newer}
	ranked := Rank([]*domain.Publication{a, b}, "zzz-nomatch", now)
	assert.Equal(t, b, ranked[0])
}

func TestCitationFactor_ZeroWhenNoCitations(t *testing.T) {
	p := &domain.Publication{Title: "x", Citations: 0}
	assert.Equal(t, 0.0, citationFactor(p, now))
}

func TestCitationFactor_BoostsWhenRecentRateExceedsHistorical(t *testing.T) {
	old := now.AddDate(-10, 0, 0)
	last3 := 300
	p := &domain.Publication{
		Title:               "x",
		Citations:           310,
		PublicationDate:     &old,
		CitationsLast3Years: &last3,
	}
	boosted := citationFactor(p, now)

	p2 := &domain.Publication{Title: "x", Citations: 310, PublicationDate: &old}
	unboosted := citationFactor(p2, now)
	assert.Greater(t, boosted, unboosted)
}

func TestRecencyFactor_MissingDateIsZero(t *testing.T) {
	p := &domain.Publication{Title: "x"}
	assert.Equal(t, 0.0, recencyFactor(p, now))
}

func TestTextScore_PhraseBonusCapped(t *testing.T) {
	score := textScore([]string{"kidney", "organoid"}, "kidney organoid", "a kidney organoid model of development")
	assert.LessOrEqual(t, score, 1.0)
	assert.Greater(t, score, 0.0)
}

func TestRecencyFactor_BoundaryValues(t *testing.T) {
	today := now
	zero := now
	p0 := &domain.Publication{Title: "x", PublicationDate: &zero}
	assert.InDelta(t, 1.0, recencyFactor(p0, today), 1e-9)

	tenYearsAgo := now.AddDate(-10, 0, 0)
	p10 := &domain.Publication{Title: "x", PublicationDate: &tenYearsAgo}
	assert.InDelta(t, 0.223, recencyFactor(p10, today), 2e-3)
}

// TestCitationFactor_AbsoluteTierBoundaries isolates the three-tier
// dampening formula's absolute component from its velocity blend by
// giving every case a publication age so large that the historical
// velocity (citations per year of age) is negligible; citationFactor is
// then 0.6*absolute to within the test tolerance, so dividing it back
// out recovers the documented boundary values (spec §8).
func TestCitationFactor_AbsoluteTierBoundaries(t *testing.T) {
	veryOld := now.AddDate(-10_000_000, 0, 0)

	cases := []struct {
		citations    int
		wantAbsolute float64
	}{
		{100, 0.6},
		{1000, 0.8},
		{100000, 1.0},
	}
	for _, c := range cases {
		p := &domain.Publication{Title: "x", Citations: c.citations, PublicationDate: &veryOld}
		got := citationFactor(p, now)
		assert.InDelta(t, c.wantAbsolute, got/0.6, 1e-3, "citations=%d", c.citations)
	}
}

func TestCitationFactor_IsClampedToUnitInterval(t *testing.T) {
	p := &domain.Publication{Title: "x", Citations: 10_000_000, PublicationDate: &now}
	got := citationFactor(p, now)
	assert.LessOrEqual(t, got, 1.0)
	assert.GreaterOrEqual(t, got, 0.0)
}
