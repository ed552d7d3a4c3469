// Package semanticscholar implements a Source Client for the Semantic
// Scholar Graph API, adapted from the teacher implementation's
// pkg/semanticscholar/client.go search flow and its pkg/s2/graphapi.go
// batch/fields-selector lookup pattern (now folded into this single
// package since both hit the same Graph API). Reused directly by
// internal/citation for fresh citation counts.
package semanticscholar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

const (
	SourceName     = "semantic_scholar"
	defaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	searchFields = "title,abstract,year,citationCount,influentialCitationCount,externalIds,openAccessPdf,publicationDate,authors,venue"
)

// Client is a Semantic Scholar Graph API client. apiKey raises the
// per-second rate allowance (spec §6 recognizes S2_API_KEY) but the
// search and batch endpoints work unauthenticated at a lower rate.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func New(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
	}
}

func NewWithBaseURL(apiKey, baseURL string) *Client {
	c := New(apiKey)
	c.baseURL = baseURL
	return c
}

func (c *Client) SourceName() string { return SourceName }

type searchResponse struct {
	Total int           `json:"total"`
	Data  []paperResult `json:"data"`
}

type paperResult struct {
	PaperID                  string         `json:"paperId"`
	Title                    string         `json:"title"`
	Abstract                 string         `json:"abstract"`
	Year                     int            `json:"year"`
	CitationCount            int            `json:"citationCount"`
	InfluentialCitationCount int            `json:"influentialCitationCount"`
	Venue                    string         `json:"venue"`
	Authors                  []authorInfo   `json:"authors"`
	ExternalIDs              externalIDs    `json:"externalIds"`
	OpenAccessPDF            *openAccessPDF `json:"openAccessPdf"`
	PublicationDate          string         `json:"publicationDate"`
}

type authorInfo struct {
	Name string `json:"name"`
}

type externalIDs struct {
	ArXiv  string `json:"ArXiv"`
	DOI    string `json:"DOI"`
	PubMed string `json:"PubMed"`
	PMCID  string `json:"PMCID"`
}

type openAccessPDF struct {
	URL string `json:"url"`
}

func (c *Client) authHeader(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	req.Header.Set("User-Agent", "OmicsOracle/1.0 (academic-reader)")
}

// Search implements source.Searcher.
func (c *Client) Search(ctx context.Context, query string, maxResults int, yearFrom, yearTo int) ([]*domain.Publication, error) {
	if query == "" {
		return nil, domain.NewError(domain.ErrKindInvalidInput, SourceName, "empty query")
	}
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 20
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(maxResults))
	params.Set("fields", searchFields)
	if yearFrom != 0 || yearTo != 0 {
		from, to := yearFrom, yearTo
		if from == 0 {
			from = 1800
		}
		if to == 0 {
			to = time.Now().Year()
		}
		params.Set("year", fmt.Sprintf("%d-%d", from, to))
	}

	reqURL := fmt.Sprintf("%s/paper/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	c.authHeader(req)

	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if err := statusToError(status, body); err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, fmt.Errorf("parse response: %w", err))
	}

	pubs := make([]*domain.Publication, 0, len(parsed.Data))
	for i := range parsed.Data {
		if p := resultToPublication(&parsed.Data[i]); p != nil {
			pubs = append(pubs, p)
		}
	}
	return pubs, nil
}

// FetchByID implements source.IDFetcher for an S2 paper ID.
func (c *Client) FetchByID(ctx context.Context, paperID string) (*domain.Publication, error) {
	reqURL := fmt.Sprintf("%s/paper/%s?fields=%s", c.baseURL, url.PathEscape(paperID), url.QueryEscape(searchFields))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	c.authHeader(req)

	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, domain.NewError(domain.ErrKindSourceNotFound, SourceName, "paper not found: "+paperID)
	}
	if err := statusToError(status, body); err != nil {
		return nil, err
	}

	var r paperResult
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, fmt.Errorf("parse response: %w", err))
	}
	return resultToPublication(&r), nil
}

// BatchFetch resolves many paper IDs in one request via the Graph
// API's batch endpoint instead of one HTTP round trip per paper.
func (c *Client) BatchFetch(ctx context.Context, paperIDs []string) ([]*domain.Publication, error) {
	if len(paperIDs) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(map[string][]string{"ids": paperIDs})
	if err != nil {
		return nil, err
	}
	reqURL := fmt.Sprintf("%s/paper/batch?fields=%s", c.baseURL, url.QueryEscape(searchFields))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authHeader(req)

	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if err := statusToError(status, body); err != nil {
		return nil, err
	}

	var results []*paperResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, fmt.Errorf("parse batch response: %w", err))
	}
	pubs := make([]*domain.Publication, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		if p := resultToPublication(r); p != nil {
			pubs = append(pubs, p)
		}
	}
	return pubs, nil
}

// GetCitations implements source.CitationCounter, preferring the S2
// paper ID when already known and falling back to DOI lookup.
func (c *Client) GetCitations(ctx context.Context, p *domain.Publication) (int, error) {
	id := p.S2PaperID
	if id == "" && p.DOI != "" {
		id = "DOI:" + p.DOI
	}
	if id == "" {
		return 0, domain.NewError(domain.ErrKindSourceNotFound, SourceName, "no s2 id or doi to look up citations")
	}
	pub, err := c.FetchByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return pub.Citations, nil
}

const citationFields = "title,year,citationCount,citations.title,citations.year,citations.citationCount"

type citationsOfResult struct {
	Title         string        `json:"title"`
	Year          int           `json:"year"`
	CitationCount int           `json:"citationCount"`
	Citations     []paperResult `json:"citations"`
}

// FetchCitationsByPMID returns the papers that cite the paper
// identified by a PubMed ID, per spec §4.7 step 2; the cited paper
// itself is not included in the result. Citing
// papers are thin (title/year/citationCount only, as the API returns
// for nested citation lists) so downstream conversion must not expect
// identifiers beyond what resultToPublication can fill in.
func (c *Client) FetchCitationsByPMID(ctx context.Context, pmid string) ([]*domain.Publication, error) {
	reqURL := fmt.Sprintf("%s/paper/PMID:%s?fields=%s", c.baseURL, url.PathEscape(pmid), url.QueryEscape(citationFields))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	c.authHeader(req)

	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, domain.NewError(domain.ErrKindSourceNotFound, SourceName, "pmid not found: "+pmid)
	}
	if err := statusToError(status, body); err != nil {
		return nil, err
	}

	var r citationsOfResult
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, fmt.Errorf("parse response: %w", err))
	}

	pubs := make([]*domain.Publication, 0, len(r.Citations))
	for i := range r.Citations {
		if p := resultToPublication(&r.Citations[i]); p != nil {
			pubs = append(pubs, p)
		}
	}
	return pubs, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, 0, domain.WrapError(domain.ErrKindSourceTimeout, SourceName, err)
		}
		return nil, 0, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, err)
	}
	return body, resp.StatusCode, nil
}

func statusToError(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return domain.NewError(domain.ErrKindSourceRateLimited, SourceName, "rate limited")
	case status >= 500:
		return domain.NewError(domain.ErrKindSourceUpstream, SourceName, fmt.Sprintf("upstream status %d", status))
	default:
		return domain.NewError(domain.ErrKindSourceUpstream, SourceName, fmt.Sprintf("status %d: %s", status, string(body)))
	}
}

func resultToPublication(r *paperResult) *domain.Publication {
	if r.Title == "" {
		return nil
	}

	var authors []domain.Author
	for _, a := range r.Authors {
		if a.Name != "" {
			authors = append(authors, domain.Author{Name: strings.TrimSpace(a.Name)})
		}
	}

	var pubDate *time.Time
	if r.PublicationDate != "" {
		if t, err := time.Parse("2006-01-02", r.PublicationDate); err == nil {
			pubDate = &t
		}
	} else if r.Year > 0 {
		t := time.Date(r.Year, 1, 1, 0, 0, 0, 0, time.UTC)
		pubDate = &t
	}

	fulltextURL := ""
	isOA := false
	if r.OpenAccessPDF != nil && r.OpenAccessPDF.URL != "" {
		fulltextURL = r.OpenAccessPDF.URL
		isOA = true
	}

	influential := r.InfluentialCitationCount

	p := &domain.Publication{
		S2PaperID:            r.PaperID,
		DOI:                  r.ExternalIDs.DOI,
		PMID:                 r.ExternalIDs.PubMed,
		PMCID:                r.ExternalIDs.PMCID,
		Title:                strings.TrimSpace(r.Title),
		Abstract:             strings.TrimSpace(r.Abstract),
		Authors:              authors,
		Year:                 r.Year,
		PublicationDate:      pubDate,
		Venue:                r.Venue,
		Citations:            r.CitationCount,
		InfluentialCitations: &influential,
		IsOpenAccess:         isOA,
		FulltextURL:          fulltextURL,
	}
	p.AddSource(SourceName)
	return p
}
