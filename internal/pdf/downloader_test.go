package pdf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdodlapa/omicsoracle/internal/fulltext"
)

func validPDFBody() string {
	return "%PDF-1.4\n" + strings.Repeat("x", 11*1024)
}

func TestDownload_SucceedsOnValidPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(validPDFBody()))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(0)
	candidate := fulltext.Candidate{URL: srv.URL, Kind: "test"}
	report := d.Download(context.Background(), []fulltext.Candidate{candidate}, dir)

	require.True(t, report.Success)
	assert.Equal(t, basenameForURL(candidate.URL)+".pdf", filepathBase(report.LocalPath))
	assert.FileExists(t, report.LocalPath)
	assert.Equal(t, 1, report.Attempts[0].Attempts)
}

func filepathBase(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return p
	}
	return p[idx+1:]
}

func TestDownload_RejectsTooSmallFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-tiny"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(0)
	report := d.Download(context.Background(), []fulltext.Candidate{{URL: srv.URL, Kind: "test"}}, dir)

	assert.False(t, report.Success)
	assert.Empty(t, report.LocalPath)
}

func TestDownload_RejectsNonPDFContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>" + strings.Repeat("x", 11*1024) + "</html>"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(0)
	report := d.Download(context.Background(), []fulltext.Candidate{{URL: srv.URL, Kind: "test"}}, dir)

	assert.False(t, report.Success)
}

func TestDownload_FallsBackToNextCandidateOnNotFound(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(validPDFBody()))
	}))
	defer good.Close()

	dir := t.TempDir()
	d := New(0)
	report := d.Download(context.Background(), []fulltext.Candidate{
		{URL: bad.URL, Kind: "first"},
		{URL: good.URL, Kind: "second"},
	}, dir)

	require.True(t, report.Success)
	assert.Equal(t, good.URL, report.FinalURL)
	assert.Len(t, report.Attempts, 2)
}

func TestDownload_SkipsManualAuthCandidates(t *testing.T) {
	dir := t.TempDir()
	d := New(0)
	report := d.Download(context.Background(), []fulltext.Candidate{
		{URL: "https://library.example/login", Kind: "ezproxy", RequiresManualAuth: true},
	}, dir)

	assert.False(t, report.Success)
	assert.Contains(t, report.Attempts[0].Error, "manual authentication")
}

func TestDownload_NoCandidatesYieldsEmptyReport(t *testing.T) {
	dir := t.TempDir()
	d := New(0)
	report := d.Download(context.Background(), nil, dir)
	assert.False(t, report.Success)
	assert.Empty(t, report.Attempts)
}

// TestDownload_FallsThroughThreeCandidates reproduces spec §8 scenario
// 6: a PMC candidate 404s, an Unpaywall candidate resolves to HTML
// instead of a PDF and is rejected, and a preprint-server candidate
// finally yields real PDF bytes and is accepted.
func TestDownload_FallsThroughThreeCandidates(t *testing.T) {
	pmc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer pmc.Close()
	unpaywall := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>" + strings.Repeat("x", 11*1024) + "</html>"))
	}))
	defer unpaywall.Close()
	preprint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(validPDFBody()))
	}))
	defer preprint.Close()

	dir := t.TempDir()
	d := New(0)
	report := d.Download(context.Background(), []fulltext.Candidate{
		{URL: pmc.URL, Kind: "pmc"},
		{URL: unpaywall.URL, Kind: "unpaywall"},
		{URL: preprint.URL, Kind: "preprint_arxiv"},
	}, dir)

	require.True(t, report.Success)
	assert.Equal(t, preprint.URL, report.FinalURL)
	assert.Len(t, report.Attempts, 3)
	assert.False(t, report.Attempts[0].Success)
	assert.False(t, report.Attempts[1].Success)
	assert.True(t, report.Attempts[2].Success)
}

func TestDownload_DoesNotLeaveTempFileOnRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-tiny"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(0)
	candidate := fulltext.Candidate{URL: srv.URL, Kind: "test"}
	d.Download(context.Background(), []fulltext.Candidate{candidate}, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
