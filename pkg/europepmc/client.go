// Package europepmc implements a Source Client for the Europe PMC REST
// API, built in the same shape as the teacher's pkg/openalex and
// pkg/semanticscholar clients (single GET, query-param search, JSON
// decode into a source-native result struct, then a pure conversion
// function into domain.Publication).
package europepmc

import (
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
	SourceName     = "europe_pmc"
	defaultBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"
)

// Client queries the Europe PMC REST API.
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

type searchResponse struct {
	HitCount int `json:"hitCount"`
	ResultList struct {
		Result []resultItem `json:"result"`
	} `json:"resultList"`
}

type resultItem struct {
	ID              string       `json:"id"`
	PMID            string       `json:"pmid"`
	PMCID           string       `json:"pmcid"`
	DOI             string       `json:"doi"`
	Title           string       `json:"title"`
	AbstractText    string       `json:"abstractText"`
	JournalTitle    string       `json:"journalTitle"`
	PubYear         string       `json:"pubYear"`
	FirstPublicationDate string  `json:"firstPublicationDate"`
	CitedByCount    int          `json:"citedByCount"`
	IsOpenAccess    string       `json:"isOpenAccess"`
	AuthorList      *authorList  `json:"authorList"`
	FullTextURLList *fullTextURLList `json:"fullTextUrlList"`
}

type authorList struct {
	Author []struct {
		FullName    string `json:"fullName"`
		Affiliation string `json:"affiliation"`
	} `json:"author"`
}

type fullTextURLList struct {
	FullTextURL []struct {
		DocumentStyle string `json:"documentStyle"`
		URL           string `json:"url"`
	} `json:"fullTextUrl"`
}

// Search implements source.Searcher.
func (c *Client) Search(ctx context.Context, query string, maxResults int, yearFrom, yearTo int) ([]*domain.Publication, error) {
	if query == "" {
		return nil, domain.NewError(domain.ErrKindInvalidInput, SourceName, "empty query")
	}
	if maxResults <= 0 || maxResults > 1000 {
		maxResults = 20
	}

	q := query
	if yearFrom != 0 || yearTo != 0 {
		from, to := yearFrom, yearTo
		if from == 0 {
			from = 1800
		}
		if to == 0 {
			to = time.Now().Year()
		}
		q = fmt.Sprintf("%s AND PUB_YEAR:[%d TO %d]", query, from, to)
	}

	params := url.Values{}
	params.Set("query", q)
	params.Set("format", "json")
	params.Set("pageSize", strconv.Itoa(maxResults))
	params.Set("resultType", "core")

	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
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

	pubs := make([]*domain.Publication, 0, len(parsed.ResultList.Result))
	for i := range parsed.ResultList.Result {
		if p := resultToPublication(&parsed.ResultList.Result[i]); p != nil {
			pubs = append(pubs, p)
		}
	}
	return pubs, nil
}

func resultToPublication(r *resultItem) *domain.Publication {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return nil
	}

	var authors []domain.Author
	if r.AuthorList != nil {
		for _, a := range r.AuthorList.Author {
			if a.FullName == "" {
				continue
			}
			authors = append(authors, domain.Author{Name: a.FullName, Affiliation: a.Affiliation})
		}
	}

	var pubDate *time.Time
	if r.FirstPublicationDate != "" {
		if t, err := time.Parse("2006-01-02", r.FirstPublicationDate); err == nil {
			pubDate = &t
		}
	}
	year := 0
	if r.PubYear != "" {
		year, _ = strconv.Atoi(r.PubYear)
	}
	if pubDate == nil && year > 0 {
		t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		pubDate = &t
	}

	fulltextURL := ""
	if r.FullTextURLList != nil {
		for _, u := range r.FullTextURLList.FullTextURL {
			if u.DocumentStyle == "pdf" {
				fulltextURL = u.URL
				break
			}
		}
		if fulltextURL == "" && len(r.FullTextURLList.FullTextURL) > 0 {
			fulltextURL = r.FullTextURLList.FullTextURL[0].URL
		}
	}

	p := &domain.Publication{
		PMID:            r.PMID,
		PMCID:           r.PMCID,
		DOI:             r.DOI,
		Title:           title,
		Abstract:        strings.TrimSpace(r.AbstractText),
		Authors:         authors,
		Year:            year,
		PublicationDate: pubDate,
		Venue:           r.JournalTitle,
		Citations:       r.CitedByCount,
		IsOpenAccess:    r.IsOpenAccess == "Y",
		FulltextURL:     fulltextURL,
	}
	p.AddSource(SourceName)
	return p
}
