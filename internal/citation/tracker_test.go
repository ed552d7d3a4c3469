package citation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdodlapa/omicsoracle/internal/domain"
	"github.com/sdodlapa/omicsoracle/pkg/semanticscholar"
)

var now = time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

func TestTrack_RecentDatasetReturnsOriginalOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"paperId":"p1","title":"Original paper","year":2026,"citationCount":2}`))
	}))
	defer srv.Close()

	client := semanticscholar.NewWithBaseURL("", srv.URL)
	tracker := New(client, nil)

	recent := now.AddDate(0, 0, -30)
	series := &domain.GEOSeriesMetadata{GEOID: "GSE999999", PublicationDate: &recent, PubMedIDs: []string{"123"}}

	out := tracker.Track(context.Background(), series, now)
	require.Len(t, out, 1)
	assert.Equal(t, "Original paper", out[0].Title)
}

func TestTrack_NoPubMedIDsReturnsEmpty(t *testing.T) {
	tracker := New(semanticscholar.New(""), nil)
	series := &domain.GEOSeriesMetadata{GEOID: "GSE1", PubMedIDs: nil}
	out := tracker.Track(context.Background(), series, now)
	assert.Empty(t, out)
}

func TestTrack_FiltersAndRanksOldDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"title": "Original",
			"year": 2015,
			"citationCount": 80,
			"citations": [
				{"title": "Too old", "year": 2010, "citationCount": 200, "openAccessPdf": {"url": "https://x/pdf"}},
				{"title": "Recent high impact", "year": 2025, "citationCount": 120, "openAccessPdf": {"url": "https://x/pdf"}},
				{"title": "Recent low impact closed", "year": 2024, "citationCount": 1}
			]
		}`))
	}))
	defer srv.Close()

	client := semanticscholar.NewWithBaseURL("", srv.URL)
	tracker := New(client, nil)

	old := now.AddDate(-10, 0, 0)
	series := &domain.GEOSeriesMetadata{GEOID: "GSE2", PublicationDate: &old, PubMedIDs: []string{"1"}}

	out := tracker.Track(context.Background(), series, now)
	require.Len(t, out, 2)
	assert.Equal(t, "Recent high impact", out[0].Title)
	for _, p := range out {
		assert.NotEqual(t, "Too old", p.Title)
	}
}

func TestTrack_UpstreamFailureYieldsEmptyNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := semanticscholar.NewWithBaseURL("", srv.URL)
	tracker := New(client, nil)

	old := now.AddDate(-5, 0, 0)
	series := &domain.GEOSeriesMetadata{GEOID: "GSE3", PublicationDate: &old, PubMedIDs: []string{"1"}}

	assert.NotPanics(t, func() {
		out := tracker.Track(context.Background(), series, now)
		assert.Empty(t, out)
	})
}
