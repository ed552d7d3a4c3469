package unpaywall

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "doi": "10.1/ABC",
  "title": "Open access genomics pipeline",
  "is_oa": true,
  "best_oa_location": {"url_for_pdf": "https://repo.org/paper.pdf", "url": "https://repo.org/paper"}
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
	return NewWithBaseURL("me@example.org", server.URL)
}

func TestClient_FetchByDOI(t *testing.T) {
	client := newTestClient(t, sampleResponse, http.StatusOK)

	p, err := client.FetchByDOI(context.Background(), "10.1/abc")
	require.NoError(t, err)
	assert.True(t, p.IsOpenAccess)
	assert.Equal(t, "https://repo.org/paper.pdf", p.FulltextURL)
	assert.True(t, p.Sources["unpaywall"])
}

func TestClient_FetchByDOI_RequiresEmail(t *testing.T) {
	client := New("")
	_, err := client.FetchByDOI(context.Background(), "10.1/abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_auth_required")
}

func TestClient_FetchByDOI_NotFound(t *testing.T) {
	client := newTestClient(t, `{}`, http.StatusNotFound)
	_, err := client.FetchByDOI(context.Background(), "10.1/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_not_found")
}
