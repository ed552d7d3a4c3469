// Package scholar implements a best-effort Google Scholar Source
// Client via HTML scraping, grounded on the goquery-based DOM
// traversal pattern seen in the pack's curbon-search academic source
// (internal/pipeline/sources/academic.go). Scholar serves no stable
// API and blocks aggressively, so every caller of this client is
// expected to wrap it in internal/resilience.Breaker and treat
// failures as non-fatal (spec §4.1, §5).
package scholar

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

const (
	SourceName     = "scholar"
	defaultBaseURL = "https://scholar.google.com/scholar"
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var citedByPattern = regexp.MustCompile(`Cited by (\d+)`)
var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Client scrapes Google Scholar search result pages.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

func NewWithBaseURL(baseURL string) *Client {
	return &Client{httpClient: &http.Client{Timeout: 20 * time.Second}, baseURL: baseURL}
}

func (c *Client) SourceName() string { return SourceName }

// Search implements source.Searcher. Callers must route this through
// a circuit breaker; a change in Scholar's markup degrades to zero
// results rather than an error, since there is no documented contract
// to parse against.
func (c *Client) Search(ctx context.Context, query string, maxResults int, yearFrom, yearTo int) ([]*domain.Publication, error) {
	if query == "" {
		return nil, domain.NewError(domain.ErrKindInvalidInput, SourceName, "empty query")
	}
	if maxResults <= 0 || maxResults > 20 {
		maxResults = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", "en")
	if yearFrom != 0 {
		params.Set("as_ylo", strconv.Itoa(yearFrom))
	}
	if yearTo != 0 {
		params.Set("as_yhi", strconv.Itoa(yearTo))
	}

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.WrapError(domain.ErrKindSourceTimeout, SourceName, err)
		}
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		return nil, domain.NewError(domain.ErrKindSourceBlocked, SourceName, "blocked by anti-scraping defenses")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.ErrKindSourceUpstream, SourceName, fmt.Sprintf("status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, fmt.Errorf("parse html: %w", err))
	}

	var pubs []*domain.Publication
	doc.Find("div.gs_r.gs_or.gs_scl").Each(func(i int, s *goquery.Selection) {
		if len(pubs) >= maxResults {
			return
		}
		p := entryToPublication(s)
		if p != nil {
			pubs = append(pubs, p)
		}
	})
	return pubs, nil
}

func entryToPublication(s *goquery.Selection) *domain.Publication {
	titleSel := s.Find("h3.gs_rt a")
	title := strings.TrimSpace(titleSel.Text())
	if title == "" {
		title = strings.TrimSpace(s.Find("h3.gs_rt").Text())
	}
	if title == "" {
		return nil
	}
	link, _ := titleSel.Attr("href")

	byline := strings.TrimSpace(s.Find("div.gs_a").Text())
	var authors []domain.Author
	if idx := strings.Index(byline, " - "); idx > 0 {
		for _, name := range strings.Split(byline[:idx], ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				authors = append(authors, domain.Author{Name: name})
			}
		}
	}

	year := 0
	if m := yearPattern.FindString(byline); m != "" {
		year, _ = strconv.Atoi(m)
	}

	citations := 0
	footer := s.Find("div.gs_fl")
	if m := citedByPattern.FindStringSubmatch(footer.Text()); len(m) == 2 {
		citations, _ = strconv.Atoi(m[1])
	}

	p := &domain.Publication{
		Title:       title,
		Authors:     authors,
		Year:        year,
		Citations:   citations,
		FulltextURL: link,
	}
	if year > 0 {
		t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		p.PublicationDate = &t
	}
	p.AddSource(SourceName)
	return p
}
