// Package pdf streams a resolved full-text candidate to disk. It is
// the only package in this module that writes publication content to
// the filesystem; everything else deals in URLs and metadata. The
// retry/backoff and atomic-rename shape follows the teacher's
// checkpoint- and harvest-client idioms elsewhere in the pack; temp
// file names use github.com/google/uuid, the teacher's own ID library
// (internal/domain.Paper.ID), to keep concurrent downloads of the same
// URL from colliding before their atomic rename.
package pdf

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sdodlapa/omicsoracle/internal/domain"
	"github.com/sdodlapa/omicsoracle/internal/fulltext"
)

const (
	minPDFBytes     = 10 * 1024
	maxRedirects    = 10
	maxAttempts     = 3
	initialBackoff  = 2 * time.Second
	userAgent       = "Mozilla/5.0 (compatible; OmicsOracleBot/1.0; +https://example.invalid/bot)"
	streamBufBytes  = 32 * 1024
)

// Downloader fetches candidate URLs to local files.
type Downloader struct {
	HTTPClient  *http.Client
	MaxPDFBytes int64
}

// New returns a Downloader with spec-mandated defaults: a client that
// caps redirects at 10 and a 200 MB PDF size ceiling.
func New(maxPDFBytes int64) *Downloader {
	if maxPDFBytes <= 0 {
		maxPDFBytes = 200 * 1024 * 1024
	}
	return &Downloader{
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		MaxPDFBytes: maxPDFBytes,
	}
}

// Download walks candidates in order, attempting each with retries,
// and writes the first successful one to destDir/<sha256-of-url>.pdf
// (spec §6: filenames are derived from the URL, never caller-supplied,
// so no directory traversal or path outside destDir is ever written).
// It returns the aggregated report regardless of overall success so
// callers can inspect every attempt.
func (d *Downloader) Download(ctx context.Context, candidates []fulltext.Candidate, destDir string) domain.DownloadReport {
	report := domain.DownloadReport{}

	for _, c := range candidates {
		if c.RequiresManualAuth {
			report.Attempts = append(report.Attempts, domain.DownloadAttempt{
				URL: c.URL, Kind: c.Kind, Success: false,
				Error: "requires manual authentication, not attempted",
			})
			continue
		}

		attempt, localPath := d.attemptWithRetries(ctx, c, destDir)
		report.Attempts = append(report.Attempts, attempt)
		if attempt.Success {
			report.Success = true
			report.FinalURL = c.URL
			report.LocalPath = localPath
			return report
		}
	}

	return report
}

func basenameForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// attemptWithRetries runs up to maxAttempts tries of one candidate,
// honoring Retry-After on rate limiting and backing off exponentially
// otherwise. Returns the attempt record for the candidate and, on
// success, the local path of the written file.
func (d *Downloader) attemptWithRetries(ctx context.Context, c fulltext.Candidate, destDir string) (domain.DownloadAttempt, string) {
	backoff := initialBackoff
	var lastErr error
	start := time.Now()
	basename := basenameForURL(c.URL)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		localPath, bytesWritten, retryAfter, err := d.fetchOnce(ctx, c.URL, destDir, basename)
		if err == nil {
			return domain.DownloadAttempt{
				URL: c.URL, Kind: c.Kind, Success: true,
				Bytes: bytesWritten, LatencyMS: time.Since(start).Milliseconds(),
				Attempts: attempt,
			}, localPath
		}
		lastErr = err

		de, ok := err.(*domain.Error)
		if !ok || !de.Retryable() {
			break
		}
		if attempt == maxAttempts {
			break
		}

		wait := backoff
		if retryAfter > 0 {
			wait = retryAfter
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = maxAttempts
		case <-time.After(wait):
		}
		backoff *= 2
	}

	return domain.DownloadAttempt{
		URL: c.URL, Kind: c.Kind, Success: false,
		LatencyMS: time.Since(start).Milliseconds(),
		Attempts:  maxAttempts,
		Error:     errString(lastErr),
	}, ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// fetchOnce performs one GET, validates, and streams to a temp file
// that is atomically renamed into place on success. Any validation
// failure removes the temp file and returns a non-retriable error,
// except rate limiting which is retriable.
func (d *Downloader) fetchOnce(ctx context.Context, url, destDir, basename string) (localPath string, bytesWritten int64, retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, 0, domain.NewError(domain.ErrKindInvalidInput, "", "build request: "+err.Error())
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/pdf,*/*")

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, 0, domain.NewError(domain.ErrKindSourceTimeout, "", ctx.Err().Error())
		}
		return "", 0, 0, domain.NewError(domain.ErrKindSourceUpstream, "", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		ra := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", 0, ra, domain.NewError(domain.ErrKindSourceRateLimited, "", fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, domain.NewError(domain.ErrKindSourceUpstream, "", fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", 0, 0, domain.NewError(domain.ErrKindDownloadFailed, "", "mkdir: "+err.Error())
	}
	finalPath := filepath.Join(destDir, basename+".pdf")
	// A uuid-suffixed temp name (rather than finalPath+".tmp") keeps
	// concurrent downloads of the same URL from two different
	// Publications from colliding on one temp file before either
	// reaches its atomic rename.
	tmpPath := finalPath + "." + uuid.NewString() + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", 0, 0, domain.NewError(domain.ErrKindDownloadFailed, "", "create temp file: "+err.Error())
	}

	n, magicOK, err := streamBounded(resp.Body, f, d.MaxPDFBytes)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", 0, 0, domain.NewError(domain.ErrKindDownloadFailed, "", err.Error())
	}

	if n < minPDFBytes {
		os.Remove(tmpPath)
		return "", 0, 0, domain.NewError(domain.ErrKindDownloadFailed, "", fmt.Sprintf("file too small: %d bytes", n))
	}
	if !magicOK && !isPDFContentType(resp.Header.Get("Content-Type")) {
		os.Remove(tmpPath)
		return "", 0, 0, domain.NewError(domain.ErrKindDownloadFailed, "", "not a PDF: bad content-type and magic bytes")
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", 0, 0, domain.NewError(domain.ErrKindDownloadFailed, "", "rename: "+err.Error())
	}

	return finalPath, n, 0, nil
}

// streamBounded copies src into dst up to maxBytes+1 (to detect
// overflow without buffering the whole body), returning the observed
// byte count and whether the first 5 bytes were the PDF magic number.
func streamBounded(src io.Reader, dst io.Writer, maxBytes int64) (int64, bool, error) {
	r := bufio.NewReaderSize(src, streamBufBytes)
	head, _ := r.Peek(5)
	magicOK := len(head) >= 5 && string(head) == "%PDF-"

	limited := io.LimitReader(r, maxBytes+1)
	n, err := io.Copy(dst, limited)
	if err != nil {
		return n, magicOK, err
	}
	if n > maxBytes {
		return n, magicOK, fmt.Errorf("exceeds max_pdf_bytes (%d)", maxBytes)
	}
	return n, magicOK, nil
}

func isPDFContentType(header string) bool {
	return len(header) >= 15 && header[:15] == "application/pdf"
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
