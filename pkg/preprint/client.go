// Package preprint implements lookups against preprint servers
// (arXiv, bioRxiv, medRxiv) used only as a step inside
// internal/fulltext's candidate chain, never as a general-purpose
// Source Client. The Atom-feed parsing shape is adapted from the
// teacher's original pkg/arxiv client; bioRxiv/medRxiv share the same
// underlying API (the Crossref-backed biorxiv.org /details endpoint)
// and are implemented alongside it.
package preprint

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

const (
	arxivAPIURL    = "https://export.arxiv.org/api/query"
	biorxivAPIURL  = "https://api.biorxiv.org/details/biorxiv"
	medrxivAPIURL  = "https://api.biorxiv.org/details/medrxiv"
)

// Client looks up candidate preprint versions of a publication by
// title or DOI.
type Client struct {
	httpClient *http.Client
	arxivURL   string
	biorxivURL string
	medrxivURL string
}

func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		arxivURL:   arxivAPIURL,
		biorxivURL: biorxivAPIURL,
		medrxivURL: medrxivAPIURL,
	}
}

// NewWithBaseURLs overrides the three upstream endpoints, used by tests.
func NewWithBaseURLs(arxiv, biorxiv, medrxiv string) *Client {
	return &Client{httpClient: &http.Client{Timeout: 15 * time.Second}, arxivURL: arxiv, biorxivURL: biorxiv, medrxivURL: medrxiv}
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Links   []struct {
		Href string `xml:"href,attr"`
		Type string `xml:"type,attr"`
	} `xml:"link"`
}

// FindOnArxiv searches arXiv by title and returns the best candidate
// fulltext PDF URL, or "" if nothing close enough was found.
func (c *Client) FindOnArxiv(ctx context.Context, title string) (string, error) {
	if title == "" {
		return "", nil
	}
	params := url.Values{}
	params.Set("search_query", "ti:\""+title+"\"")
	params.Set("max_results", "1")

	reqURL := fmt.Sprintf("%s?%s", c.arxivURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.WrapError(domain.ErrKindSourceTimeout, "arxiv", err)
		}
		return "", domain.WrapError(domain.ErrKindSourceUpstream, "arxiv", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.WrapError(domain.ErrKindSourceUpstream, "arxiv", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.NewError(domain.ErrKindSourceUpstream, "arxiv", fmt.Sprintf("status %d", resp.StatusCode))
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return "", domain.WrapError(domain.ErrKindSourceUpstream, "arxiv", fmt.Errorf("parse feed: %w", err))
	}
	if len(feed.Entries) == 0 {
		return "", nil
	}
	entry := feed.Entries[0]
	if !strings.EqualFold(strings.TrimSpace(entry.Title), strings.TrimSpace(title)) {
		return "", nil
	}
	for _, l := range entry.Links {
		if l.Type == "application/pdf" {
			return l.Href, nil
		}
	}
	return "", nil
}

type biorxivResponse struct {
	Collection []biorxivRecord `json:"collection"`
}

type biorxivRecord struct {
	DOI   string `json:"doi"`
	Title string `json:"title"`
}

// FindOnBiorxiv looks up doi on the bioRxiv details API and returns a
// landing-page URL candidate, or "" if not present.
func (c *Client) FindOnBiorxiv(ctx context.Context, doi string) (string, error) {
	return c.findOnPreprintServer(ctx, c.biorxivURL, doi)
}

// FindOnMedrxiv is the medRxiv analogue of FindOnBiorxiv.
func (c *Client) FindOnMedrxiv(ctx context.Context, doi string) (string, error) {
	return c.findOnPreprintServer(ctx, c.medrxivURL, doi)
}

func (c *Client) findOnPreprintServer(ctx context.Context, baseURL, doi string) (string, error) {
	if doi == "" {
		return "", nil
	}
	reqURL := fmt.Sprintf("%s/%s", strings.TrimSuffix(baseURL, "/"), url.PathEscape(doi))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.WrapError(domain.ErrKindSourceTimeout, "preprint", err)
		}
		return "", domain.WrapError(domain.ErrKindSourceUpstream, "preprint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.WrapError(domain.ErrKindSourceUpstream, "preprint", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.NewError(domain.ErrKindSourceUpstream, "preprint", fmt.Sprintf("status %d", resp.StatusCode))
	}

	var parsed biorxivResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", domain.WrapError(domain.ErrKindSourceUpstream, "preprint", fmt.Errorf("parse response: %w", err))
	}
	if len(parsed.Collection) == 0 {
		return "", nil
	}
	return fmt.Sprintf("https://doi.org/%s", parsed.Collection[0].DOI), nil
}
