// Package unpaywall implements an identifier-only lookup client for
// the Unpaywall API. Unlike the other source clients it never
// implements source.Searcher — Unpaywall has no query search surface,
// only DOI-keyed lookup — so internal/fulltext calls it directly as a
// source.DOIFetcher rather than through the Source Client fan-out.
package unpaywall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

const (
	SourceName     = "unpaywall"
	defaultBaseURL = "https://api.unpaywall.org/v2"
)

// Client looks up open-access locations for a DOI.
type Client struct {
	httpClient *http.Client
	email      string // Unpaywall requires a contact email on every request
	baseURL    string
}

func New(email string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		email:      email,
		baseURL:    defaultBaseURL,
	}
}

func NewWithBaseURL(email, baseURL string) *Client {
	c := New(email)
	c.baseURL = baseURL
	return c
}

type doiResponse struct {
	DOI             string     `json:"doi"`
	Title           string     `json:"title"`
	IsOA            bool       `json:"is_oa"`
	BestOALocation  *oaLocation `json:"best_oa_location"`
	OALocations     []oaLocation `json:"oa_locations"`
}

type oaLocation struct {
	URLForPDF string `json:"url_for_pdf"`
	URL       string `json:"url"`
}

// FetchByDOI implements source.DOIFetcher.
func (c *Client) FetchByDOI(ctx context.Context, doi string) (*domain.Publication, error) {
	if doi == "" {
		return nil, domain.NewError(domain.ErrKindInvalidInput, SourceName, "empty doi")
	}
	if c.email == "" {
		return nil, domain.NewError(domain.ErrKindSourceAuthRequired, SourceName, "unpaywall requires a contact email")
	}

	reqURL := fmt.Sprintf("%s/%s?email=%s", c.baseURL, url.PathEscape(doi), url.QueryEscape(c.email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.WrapError(domain.ErrKindSourceTimeout, SourceName, err)
		}
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewError(domain.ErrKindSourceNotFound, SourceName, "doi not found: "+doi)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.NewError(domain.ErrKindSourceRateLimited, SourceName, "rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.ErrKindSourceUpstream, SourceName, fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed doiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, fmt.Errorf("parse response: %w", err))
	}

	fulltextURL := ""
	if parsed.BestOALocation != nil {
		if parsed.BestOALocation.URLForPDF != "" {
			fulltextURL = parsed.BestOALocation.URLForPDF
		} else {
			fulltextURL = parsed.BestOALocation.URL
		}
	}

	p := &domain.Publication{
		DOI:          strings.ToLower(parsed.DOI),
		Title:        parsed.Title,
		IsOpenAccess: parsed.IsOA,
		FulltextURL:  fulltextURL,
	}
	p.AddSource(SourceName)
	return p, nil
}
