package openalex

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "meta": {"count": 1},
  "results": [
    {
      "id": "https://openalex.org/W123",
      "doi": "https://doi.org/10.1234/abcd",
      "title": "Spatial transcriptomics of the developing kidney",
      "publication_year": 2023,
      "publication_date": "2023-05-10",
      "cited_by_count": 42,
      "counts_by_year": [{"year": %[1]d, "cited_by_count": 30}, {"year": %[2]d, "cited_by_count": 12}],
      "authorships": [{"author": {"display_name": "Jane Doe"}, "institutions": [{"display_name": "MIT"}]}],
      "primary_location": {"pdf_url": "https://example.org/paper.pdf", "source": {"display_name": "Nature Methods"}},
      "open_access": {"is_oa": true, "oa_url": "https://example.org/oa.pdf"},
      "ids": {"pmid": "https://pubmed.ncbi.nlm.nih.gov/87654321"},
      "abstract_inverted_index": {"Spatial": [0], "transcriptomics": [1], "atlas": [2]}
    }
  ]
}`

func newTestClient(t *testing.T, body string, status int) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != 0 {
			w.WriteHeader(status)
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return NewWithBaseURL("", server.URL)
}

func TestClient_Search(t *testing.T) {
	// The last-3-years window is relative to the current year, so the
	// counts_by_year entries are placed in this year and five years ago.
	body := fmt.Sprintf(sampleResponse, time.Now().Year(), time.Now().Year()-5)
	client := newTestClient(t, body, http.StatusOK)

	pubs, err := client.Search(context.Background(), "kidney transcriptomics", 20, 0, 0)
	require.NoError(t, err)
	require.Len(t, pubs, 1)

	p := pubs[0]
	assert.Equal(t, "10.1234/abcd", p.DOI)
	assert.Equal(t, "87654321", p.PMID)
	assert.Equal(t, "Spatial transcriptomics of the developing kidney", p.Title)
	assert.Equal(t, 2023, p.Year)
	assert.Equal(t, 42, p.Citations)
	require.NotNil(t, p.CitationsLast3Years)
	assert.Equal(t, 30, *p.CitationsLast3Years)
	assert.True(t, p.IsOpenAccess)
	assert.Equal(t, "Nature Methods", p.Venue)
	assert.Equal(t, "Spatial transcriptomics atlas", p.Abstract)
	require.Len(t, p.Authors, 1)
	assert.Equal(t, "Jane Doe", p.Authors[0].Name)
	assert.Equal(t, "MIT", p.Authors[0].Affiliation)
	assert.True(t, p.Sources["openalex"])
}

func TestClient_Search_EmptyQuery(t *testing.T) {
	client := New("")
	_, err := client.Search(context.Background(), "", 10, 0, 0)
	assert.Error(t, err)
}

func TestClient_Search_RateLimited(t *testing.T) {
	client := newTestClient(t, `{}`, http.StatusTooManyRequests)
	_, err := client.Search(context.Background(), "kidney", 10, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_rate_limited")
}

func TestReconstructAbstract_Empty(t *testing.T) {
	assert.Equal(t, "", reconstructAbstract(nil))
}
