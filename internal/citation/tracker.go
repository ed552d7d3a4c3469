// Package citation finds papers that cite a GEO series' original
// publication, per spec §4.7. It is a thin orchestration layer over
// pkg/semanticscholar, following the teacher's pattern of keeping
// scoring and filtering logic separate from the HTTP client it scores
// results from.
package citation

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"github.com/sdodlapa/omicsoracle/internal/domain"
	"github.com/sdodlapa/omicsoracle/pkg/semanticscholar"
)

const defaultYearsBack = 5

// Tracker finds and ranks citing papers for a dataset's original
// publication.
type Tracker struct {
	Client *semanticscholar.Client
	Logger *log.Logger

	YearsBack int
	MaxPapers int
}

// New returns a Tracker with spec defaults (5-year window, top 10).
func New(client *semanticscholar.Client, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default()
	}
	return &Tracker{Client: client, Logger: logger, YearsBack: defaultYearsBack, MaxPapers: 10}
}

// Track implements spec §4.7's full contract. It never returns an
// error: transient upstream failures are logged and yield an empty
// result, since citation tracking is enrichment, not a hard
// dependency of a search.
func (t *Tracker) Track(ctx context.Context, series *domain.GEOSeriesMetadata, now time.Time) []*domain.Publication {
	if series.IsRecent(365, now) || len(series.PubMedIDs) == 0 {
		return t.originalPaperOnly(ctx, series)
	}

	var all []*domain.Publication
	for _, pmid := range series.PubMedIDs {
		citing, err := t.Client.FetchCitationsByPMID(ctx, pmid)
		if err != nil {
			t.Logger.Printf("[citation] lookup failed for pmid %s: %v", pmid, err)
			continue
		}
		all = append(all, citing...)
	}
	if len(all) == 0 {
		return nil
	}

	yearsBack := t.yearsBack()
	minYear := now.Year() - yearsBack
	filtered := make([]*domain.Publication, 0, len(all))
	for _, p := range all {
		if p.Year >= minYear {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	rank(filtered, minYear, yearsBack)
	return top(filtered, t.maxPapers())
}

// originalPaperOnly handles the recent-dataset / no-pubmed-ids case:
// never fabricate citing papers, optionally surface the original.
func (t *Tracker) originalPaperOnly(ctx context.Context, series *domain.GEOSeriesMetadata) []*domain.Publication {
	if len(series.PubMedIDs) == 0 {
		return nil
	}
	pub, err := t.Client.FetchByID(ctx, "PMID:"+series.PubMedIDs[0])
	if err != nil || pub == nil {
		return nil
	}
	return []*domain.Publication{pub}
}

func (t *Tracker) yearsBack() int {
	if t.YearsBack <= 0 {
		return defaultYearsBack
	}
	return t.YearsBack
}

func (t *Tracker) maxPapers() int {
	if t.MaxPapers <= 0 {
		return 10
	}
	return t.MaxPapers
}

// rank scores and sorts filtered in place per spec §4.7 step 5.
func rank(filtered []*domain.Publication, minYear, yearsBack int) {
	scores := make(map[*domain.Publication]float64, len(filtered))
	for _, p := range filtered {
		recencyNorm := clamp(float64(p.Year-minYear)/float64(yearsBack), 0, 1)
		impactNorm := math.Min(float64(p.Citations)/100, 1)
		accessScore := 0.5
		if p.IsOpenAccess {
			accessScore = 1
		}
		scores[p] = 0.4*recencyNorm + 0.3*impactNorm + 0.3*accessScore
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return scores[filtered[i]] > scores[filtered[j]]
	})
}

func top(pubs []*domain.Publication, n int) []*domain.Publication {
	if len(pubs) <= n {
		return pubs
	}
	return pubs[:n]
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
