// Package openalex implements a Source Client for the OpenAlex works
// API, adapted from the teacher implementation's pkg/openalex/client.go
// (the same inverted-index abstract reconstruction and authorship
// parsing), retargeted at domain.Publication and extended to surface
// citations_last_3_years from OpenAlex's counts_by_year field.
package openalex

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
	SourceName     = "openalex"
	defaultBaseURL = "https://api.openalex.org"
)

// Client is an OpenAlex API client. OpenAlex has no hard rate limit
// for the "polite pool" (requests that identify a contact email), but
// the pipeline still paces it through internal/ratelimit like every
// other source.
type Client struct {
	httpClient *http.Client
	email      string
	baseURL    string
}

// New creates an OpenAlex client. email is optional but recommended —
// it enters the polite pool for faster, more reliable responses.
func New(email string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		email:      email,
		baseURL:    defaultBaseURL,
	}
}

// NewWithBaseURL overrides the API root, used by tests.
func NewWithBaseURL(email, baseURL string) *Client {
	c := New(email)
	c.baseURL = baseURL
	return c
}

func (c *Client) SourceName() string { return SourceName }

type searchResponse struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Results []workResult `json:"results"`
}

type workResult struct {
	ID                    string                 `json:"id"`
	DOI                   string                 `json:"doi"`
	Title                 string                 `json:"title"`
	DisplayName           string                 `json:"display_name"`
	PublicationYear       int                    `json:"publication_year"`
	PublicationDate       string                 `json:"publication_date"`
	CitedByCount          int                    `json:"cited_by_count"`
	CountsByYear          []countByYear          `json:"counts_by_year"`
	Authorships           []authorship           `json:"authorships"`
	PrimaryLocation       *location              `json:"primary_location"`
	OpenAccess            *openAccess            `json:"open_access"`
	IDs                   map[string]interface{} `json:"ids"`
	AbstractInvertedIndex map[string][]int       `json:"abstract_inverted_index"`
}

type countByYear struct {
	Year        int `json:"year"`
	CitedByCount int `json:"cited_by_count"`
}

type authorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
	Institutions []struct {
		DisplayName string `json:"display_name"`
	} `json:"institutions"`
}

type location struct {
	PDFURL string  `json:"pdf_url"`
	Source *source `json:"source"`
}

type source struct {
	DisplayName string `json:"display_name"`
}

type openAccess struct {
	IsOA  bool   `json:"is_oa"`
	OAURL string `json:"oa_url"`
}

// Search implements source.Searcher.
func (c *Client) Search(ctx context.Context, query string, maxResults int, yearFrom, yearTo int) ([]*domain.Publication, error) {
	if query == "" {
		return nil, domain.NewError(domain.ErrKindInvalidInput, SourceName, "empty query")
	}
	if maxResults <= 0 || maxResults > 200 {
		maxResults = 20
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("per_page", fmt.Sprintf("%d", maxResults))
	if yearFrom != 0 || yearTo != 0 {
		from, to := yearFrom, yearTo
		if from == 0 {
			from = 1800
		}
		if to == 0 {
			to = time.Now().Year()
		}
		params.Set("filter", fmt.Sprintf("publication_year:%d-%d", from, to))
	}
	if c.email != "" {
		params.Set("mailto", c.email)
	}

	reqURL := fmt.Sprintf("%s/works?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	ua := "OmicsOracle/1.0 (academic-reader)"
	if c.email != "" {
		ua = fmt.Sprintf("OmicsOracle/1.0 (mailto:%s)", c.email)
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.WrapError(domain.ErrKindSourceTimeout, SourceName, err)
		}
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, err)
	}
	defer resp.Body.Close()

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

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, fmt.Errorf("parse response: %w", err))
	}

	pubs := make([]*domain.Publication, 0, len(parsed.Results))
	for i := range parsed.Results {
		if p := workToPublication(&parsed.Results[i]); p != nil {
			pubs = append(pubs, p)
		}
	}
	return pubs, nil
}

func workToPublication(w *workResult) *domain.Publication {
	title := w.Title
	if title == "" {
		title = w.DisplayName
	}
	if title == "" {
		return nil
	}

	var authors []domain.Author
	for _, a := range w.Authorships {
		if a.Author.DisplayName == "" {
			continue
		}
		author := domain.Author{Name: strings.TrimSpace(a.Author.DisplayName)}
		if len(a.Institutions) > 0 {
			author.Affiliation = a.Institutions[0].DisplayName
		}
		authors = append(authors, author)
	}

	var pubDate *time.Time
	if w.PublicationDate != "" {
		if t, err := time.Parse("2006-01-02", w.PublicationDate); err == nil {
			pubDate = &t
		}
	}
	if pubDate == nil && w.PublicationYear > 0 {
		t := time.Date(w.PublicationYear, 1, 1, 0, 0, 0, 0, time.UTC)
		pubDate = &t
	}

	fulltextURL := ""
	isOA := false
	if w.PrimaryLocation != nil && w.PrimaryLocation.PDFURL != "" {
		fulltextURL = w.PrimaryLocation.PDFURL
	} else if w.OpenAccess != nil && w.OpenAccess.OAURL != "" {
		fulltextURL = w.OpenAccess.OAURL
	}
	if w.OpenAccess != nil {
		isOA = w.OpenAccess.IsOA
	}

	venue := ""
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		venue = w.PrimaryLocation.Source.DisplayName
	}

	doi := strings.TrimPrefix(w.DOI, "https://doi.org/")
	pmid := extractPMID(w)

	last3 := citationsLast3Years(w.CountsByYear)

	p := &domain.Publication{
		DOI:                 doi,
		PMID:                pmid,
		Title:               strings.TrimSpace(title),
		Abstract:            reconstructAbstract(w.AbstractInvertedIndex),
		Authors:             authors,
		Year:                w.PublicationYear,
		PublicationDate:     pubDate,
		Venue:               venue,
		Citations:           w.CitedByCount,
		CitationsLast3Years: &last3,
		IsOpenAccess:        isOA,
		FulltextURL:         fulltextURL,
	}
	p.AddSource(SourceName)
	return p
}

func extractPMID(w *workResult) string {
	if pmid, ok := w.IDs["pmid"]; ok {
		if pmidStr, ok := pmid.(string); ok {
			return strings.Trim(strings.TrimPrefix(pmidStr, "https://pubmed.ncbi.nlm.nih.gov/"), "/")
		}
	}
	return ""
}

func citationsLast3Years(counts []countByYear) int {
	now := time.Now().Year()
	total := 0
	for _, c := range counts {
		if c.Year >= now-2 {
			total += c.CitedByCount
		}
	}
	return total
}

// reconstructAbstract rebuilds plain text from OpenAlex's inverted
// index abstract representation ({"word": [positions...]}).
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}
	maxPos := 0
	for _, positions := range invertedIndex {
		for _, pos := range positions {
			if pos > maxPos {
				maxPos = pos
			}
		}
	}
	words := make([]string, maxPos+1)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			if pos >= 0 && pos <= maxPos {
				words[pos] = word
			}
		}
	}
	var sb strings.Builder
	for _, word := range words {
		if word == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(word)
	}
	return sb.String()
}
