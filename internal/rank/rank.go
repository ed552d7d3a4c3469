// Package rank scores and orders deduplicated publications against a
// query, the last stage before a Publication Pipeline result is
// returned. The staged score/sort shape follows the teacher's
// usecase-layer orchestration pattern of composing small pure
// functions over a slice rather than one large scoring method.
package rank

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "on": true,
	"and": true, "or": true, "for": true, "to": true, "with": true, "is": true,
	"are": true, "was": true, "were": true, "by": true, "at": true, "as": true,
	"this": true, "that": true, "from": true, "be": true, "it": true, "its": true,
}

var (
	reviewKeywords  = []string{"review", "overview", "survey", "meta-analysis"}
	recentKeywords  = []string{"recent", "latest", "new"}
	methodKeywords  = []string{"method", "protocol", "technique", "how to", "analysis"}
	datasetKeywords = []string{"dataset", "gse", "geo", "data"}
	yearPattern     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// DetectIntent classifies a query per spec §4.4's ordered keyword
// rules, evaluated case-insensitively. The first matching rule wins.
func DetectIntent(query string, now time.Time) domain.Intent {
	lower := strings.ToLower(query)

	if containsAny(lower, reviewKeywords) {
		return domain.IntentReview
	}
	if containsAny(lower, recentKeywords) || hasRecentYear(lower, now) {
		return domain.IntentRecent
	}
	if containsAny(lower, methodKeywords) {
		return domain.IntentMethod
	}
	if containsAny(lower, datasetKeywords) {
		return domain.IntentDataset
	}
	return domain.IntentBalanced
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func hasRecentYear(s string, now time.Time) bool {
	for _, m := range yearPattern.FindAllString(s, -1) {
		year := 0
		for _, c := range m {
			year = year*10 + int(c-'0')
		}
		if year >= now.Year()-1 {
			return true
		}
	}
	return false
}

// Rank scores every publication against query and returns them sorted
// descending by score, ties broken by citations, publication_date,
// then original insertion order (spec §4.4).
func Rank(pubs []*domain.Publication, query string, now time.Time) []*domain.Publication {
	intent := DetectIntent(query, now)
	weights := domain.WeightsForIntent(intent)

	queryTokens := tokenize(query)
	normalizedQuery := strings.Join(queryTokens, " ")

	for _, p := range pubs {
		titleScore := textScore(queryTokens, normalizedQuery, p.Title)
		abstractScore := textScore(queryTokens, normalizedQuery, p.Abstract)
		citationScore := citationFactor(p, now)
		recencyScore := recencyFactor(p, now)

		p.ScoreBreakdown = domain.ScoreBreakdown{
			Title:     titleScore,
			Abstract:  abstractScore,
			Citations: citationScore,
			Recency:   recencyScore,
		}
		p.Score = weights.Title*titleScore + weights.Abstract*abstractScore +
			weights.Citations*citationScore + weights.Recency*recencyScore
	}

	sort.SliceStable(pubs, func(i, j int) bool {
		a, b := pubs[i], pubs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Citations != b.Citations {
			return a.Citations > b.Citations
		}
		ad, bd := dateOrZero(a), dateOrZero(b)
		if !ad.Equal(bd) {
			return ad.After(bd)
		}
		return a.InsertionIndex() < b.InsertionIndex()
	})

	for i, p := range pubs {
		p.Rank = i + 1
	}
	return pubs
}

func dateOrZero(p *domain.Publication) time.Time {
	if p.PublicationDate == nil {
		return time.Time{}
	}
	return *p.PublicationDate
}

func tokenize(s string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(s), -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if !stopwords[t] {
			out = append(out, t)
		}
	}
	return out
}

// textScore implements the token-overlap cosine-like measure from
// spec §4.4, plus a capped phrase-match bonus.
func textScore(queryTokens []string, normalizedQuery, field string) float64 {
	if len(queryTokens) == 0 || field == "" {
		return 0
	}
	fieldTokens := tokenize(field)
	if len(fieldTokens) == 0 {
		return 0
	}

	qSet := toSet(queryTokens)
	dSet := toSet(fieldTokens)
	overlap := 0
	for t := range qSet {
		if dSet[t] {
			overlap++
		}
	}
	score := float64(overlap) / math.Sqrt(float64(len(qSet))*float64(len(dSet)))

	normalizedField := strings.Join(fieldTokens, " ")
	if normalizedQuery != "" && strings.Contains(normalizedField, normalizedQuery) {
		score += 0.2
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// recencyFactor implements spec §4.4's exponential decay, 0 for a
// publication with no known date.
func recencyFactor(p *domain.Publication, now time.Time) float64 {
	if p.PublicationDate == nil {
		return 0
	}
	age := p.AgeYears(now)
	if age < 0 {
		age = 0
	}
	r := math.Exp(-0.15 * age)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// citationFactor implements the three-tier dampening plus
// velocity/recent-velocity blend from spec §4.4. A publication with no
// recorded citations scores 0, never fabricated.
func citationFactor(p *domain.Publication, now time.Time) float64 {
	c := float64(p.Citations)
	if c <= 0 {
		return 0
	}

	var absolute float64
	switch {
	case c <= 100:
		absolute = (c / 100) * 0.6
	case c <= 1000:
		absolute = 0.6 + math.Sqrt((c-100)/900)*0.2
	default:
		absolute = 0.8 + clamp((math.Log10(c)-3)/2, 0, 1)*0.2
	}

	age := p.AgeYears(now)
	if age < 0.1 {
		age = 0.1
	}
	historicalVelocity := clamp((c/age)/50, 0, 1)

	velocity := historicalVelocity
	usingRecent := false
	var recentVelocity float64
	if p.CitationsLast3Years != nil {
		recentVelocity = clamp((float64(*p.CitationsLast3Years)/3)/50, 0, 1)
		velocity = recentVelocity
		usingRecent = true
	}

	citation := 0.6*absolute + 0.4*velocity

	if usingRecent && historicalVelocity*1.5 <= recentVelocity {
		citation = clamp(citation*1.15, 0, 1)
	}

	return clamp(citation, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
