// Package institutional builds EZProxy-rewritten access URLs for
// configured institutions. It performs no network I/O: it is a pure
// URL transform consumed by internal/fulltext's institutional-access
// step (spec §4.5).
package institutional

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

// Resolve builds the EZProxy-rewritten candidate URLs for target
// across every configured institution. The EZProxy rewrite passes the
// whole target URL, query-escaped, as the url parameter of the proxy's
// login path:
// https://example.com/article -> https://<proxy-host>/login?url=https%3A%2F%2Fexample.com%2Farticle
func Resolve(target string, institutions []domain.InstitutionConfig) []domain.InstitutionalURL {
	if target == "" || len(institutions) == 0 {
		return nil
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil
	}

	out := make([]domain.InstitutionalURL, 0, len(institutions))
	for _, inst := range institutions {
		if inst.EZProxyHost == "" {
			continue
		}
		rewritten := fmt.Sprintf("https://%s/login?url=%s", strings.TrimSuffix(inst.EZProxyHost, "/"), url.QueryEscape(target))
		out = append(out, domain.InstitutionalURL{
			URL:                rewritten,
			Kind:               "ezproxy",
			RequiresManualAuth: true,
		})
	}
	return out
}
