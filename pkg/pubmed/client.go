// Package pubmed implements a Source Client for NCBI PubMed via the
// E-utilities API. The two-step esearch/efetch XML flow and its
// article-parsing shape are adapted from the teacher implementation's
// pkg/pubmed/client.go.
package pubmed

import (
	"context"
	"encoding/xml"
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
	SourceName = "pubmed"

	esearchURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	efetchURL  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"
)

// Client queries NCBI PubMed E-utilities.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	esearchBase string
	efetchBase  string
}

// New creates a PubMed client. apiKey is optional; NCBI grants a
// higher rate allowance with one (spec §6 recognizes PUBMED_API_KEY).
func New(apiKey string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		apiKey:      apiKey,
		esearchBase: esearchURL,
		efetchBase:  efetchURL,
	}
}

// NewWithBaseURL is used by tests to point the client at an
// httptest.Server instead of the live NCBI endpoints.
func NewWithBaseURL(apiKey, baseURL string) *Client {
	c := New(apiKey)
	c.esearchBase = baseURL + "/esearch.fcgi"
	c.efetchBase = baseURL + "/efetch.fcgi"
	return c
}

func (c *Client) SourceName() string { return SourceName }

type eSearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
}

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Journal struct {
				Title   string `xml:"Title"`
				PubDate struct {
					Year  string `xml:"Year"`
					Month string `xml:"Month"`
					Day   string `xml:"Day"`
				} `xml:"JournalIssue>PubDate"`
			} `xml:"Journal"`
			ArticleTitle string `xml:"ArticleTitle"`
			Abstract     struct {
				AbstractTexts []struct {
					Label string `xml:"Label,attr"`
					Text  string `xml:",chardata"`
				} `xml:"AbstractText"`
			} `xml:"Abstract"`
			AuthorList struct {
				Authors []struct {
					LastName    string   `xml:"LastName"`
					ForeName    string   `xml:"ForeName"`
					Affiliation []string `xml:"AffiliationInfo>Affiliation"`
				} `xml:"Author"`
			} `xml:"AuthorList"`
			ELocationIDList []struct {
				EIdType string `xml:"EIdType,attr"`
				Value   string `xml:",chardata"`
			} `xml:"ELocationID"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	PubmedData struct {
		ArticleIDList struct {
			ArticleIDs []struct {
				IDType string `xml:"IdType,attr"`
				Value  string `xml:",chardata"`
			} `xml:"ArticleId"`
		} `xml:"ArticleIdList"`
	} `xml:"PubmedData"`
}

// Search implements source.Searcher. yearFrom/yearTo of 0 mean unbounded.
func (c *Client) Search(ctx context.Context, query string, maxResults int, yearFrom, yearTo int) ([]*domain.Publication, error) {
	if query == "" {
		return nil, domain.NewError(domain.ErrKindInvalidInput, SourceName, "empty query")
	}
	if maxResults <= 0 || maxResults > 200 {
		maxResults = 20
	}

	term := query
	if yearFrom != 0 || yearTo != 0 {
		from, to := yearFrom, yearTo
		if from == 0 {
			from = 1800
		}
		if to == 0 {
			to = time.Now().Year()
		}
		term = fmt.Sprintf("(%s) AND (%d:%d[pdat])", query, from, to)
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("sort", "relevance")
	params.Set("retmode", "xml")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	body, err := c.get(ctx, c.esearchBase+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var searchResult eSearchResult
	if err := xml.Unmarshal(body, &searchResult); err != nil {
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, fmt.Errorf("parse esearch response: %w", err))
	}
	if len(searchResult.IDList.IDs) == 0 {
		return nil, nil
	}

	return c.fetchArticles(ctx, searchResult.IDList.IDs)
}

// FetchByID implements source.IDFetcher for a PMID.
func (c *Client) FetchByID(ctx context.Context, pmid string) (*domain.Publication, error) {
	pubs, err := c.fetchArticles(ctx, []string{pmid})
	if err != nil {
		return nil, err
	}
	if len(pubs) == 0 {
		return nil, domain.NewError(domain.ErrKindSourceNotFound, SourceName, "pmid not found: "+pmid)
	}
	return pubs[0], nil
}

func (c *Client) fetchArticles(ctx context.Context, pmids []string) ([]*domain.Publication, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")
	params.Set("rettype", "abstract")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	body, err := c.get(ctx, c.efetchBase+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, fmt.Errorf("parse efetch response: %w", err))
	}

	pubs := make([]*domain.Publication, 0, len(set.Articles))
	for i := range set.Articles {
		if p := articleToPublication(&set.Articles[i]); p != nil {
			pubs = append(pubs, p)
		}
	}
	return pubs, nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
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

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 0
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			retryAfter, _ = strconv.Atoi(ra)
		}
		return nil, &domain.Error{Kind: domain.ErrKindSourceRateLimited, Source: SourceName, Message: "rate limited", RetryAfter: retryAfter}
	}
	if resp.StatusCode >= 500 {
		return nil, domain.NewError(domain.ErrKindSourceUpstream, SourceName, fmt.Sprintf("upstream status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.ErrKindSourceUpstream, SourceName, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrKindSourceUpstream, SourceName, err)
	}
	return body, nil
}

func articleToPublication(a *pubmedArticle) *domain.Publication {
	pmid := a.MedlineCitation.PMID
	if pmid == "" {
		return nil
	}

	title := strings.TrimSpace(a.MedlineCitation.Article.ArticleTitle)
	if title == "" {
		return nil
	}

	var abstractParts []string
	for _, t := range a.MedlineCitation.Article.Abstract.AbstractTexts {
		if t.Label != "" {
			abstractParts = append(abstractParts, fmt.Sprintf("%s: %s", t.Label, t.Text))
		} else {
			abstractParts = append(abstractParts, t.Text)
		}
	}

	var authors []domain.Author
	for _, au := range a.MedlineCitation.Article.AuthorList.Authors {
		name := strings.TrimSpace(au.ForeName + " " + au.LastName)
		if name == "" {
			continue
		}
		affiliation := ""
		if len(au.Affiliation) > 0 {
			affiliation = au.Affiliation[0]
		}
		authors = append(authors, domain.Author{Name: name, Affiliation: affiliation})
	}

	var pubDate *time.Time
	pd := a.MedlineCitation.Article.Journal.PubDate
	if pd.Year != "" {
		dateStr, format := pd.Year, "2006"
		if pd.Month != "" {
			dateStr += " " + pd.Month
			format += " Jan"
			if pd.Day != "" {
				dateStr += " " + pd.Day
				format += " 2"
			}
		}
		if t, err := time.Parse(format, dateStr); err == nil {
			pubDate = &t
		}
	}

	var doi, pmcid string
	for _, id := range a.PubmedData.ArticleIDList.ArticleIDs {
		switch id.IDType {
		case "doi":
			doi = id.Value
		case "pmc":
			pmcid = id.Value
		}
	}
	if doi == "" {
		for _, e := range a.MedlineCitation.Article.ELocationIDList {
			if e.EIdType == "doi" {
				doi = e.Value
			}
		}
	}

	year := 0
	if pd.Year != "" {
		year, _ = strconv.Atoi(pd.Year)
	}

	p := &domain.Publication{
		PMID:            pmid,
		PMCID:           pmcid,
		DOI:             doi,
		Title:           title,
		Abstract:        strings.Join(abstractParts, "\n\n"),
		Authors:         authors,
		Year:            year,
		PublicationDate: pubDate,
		Venue:           a.MedlineCitation.Article.Journal.Title,
	}
	p.AddSource(SourceName)
	return p
}
