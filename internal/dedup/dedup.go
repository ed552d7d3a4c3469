// Package dedup merges publications gathered from multiple Source
// Clients into one record per distinct work. The clustering and
// field-precedence merge rules follow the staged pipeline shape the
// teacher uses in internal/usecase/paper_usecase.go (gather, map by
// key, fold); the Levenshtein similarity measure is grounded on
// github.com/agnivade/levenshtein, the fuzzy-matching library carried
// by the example pack (seen in open-policy-agent/opa's go.mod).
package dedup

import (
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

const fuzzyTitleSimilarityThreshold = 0.90

var sourcePrecedence = map[string]int{
	"pubmed":           0,
	"europe_pmc":       1,
	"openalex":         2,
	"semantic_scholar": 3,
	"scholar":          4,
}

// Deduplicate merges pubs per spec §4.3 and returns one representative
// per cluster, ordered by each cluster's earliest input position.
func Deduplicate(pubs []*domain.Publication) []*domain.Publication {
	for i, p := range pubs {
		p.SetInsertionIndex(i)
	}

	doiClusters := map[string][]*domain.Publication{}
	pmidClusters := map[string][]*domain.Publication{}
	scholarClusters := map[string][]*domain.Publication{}
	var fuzzyItems []*domain.Publication

	for _, p := range pubs {
		key := domain.KeyFor(p)
		switch key.Kind {
		case domain.DedupKeyDOI:
			doiClusters[key.Value] = append(doiClusters[key.Value], p)
		case domain.DedupKeyPMID:
			pmidClusters[key.Value] = append(pmidClusters[key.Value], p)
		case domain.DedupKeyScholarID:
			scholarClusters[key.Value] = append(scholarClusters[key.Value], p)
		default:
			fuzzyItems = append(fuzzyItems, p)
		}
	}

	fuzzyClusters := clusterFuzzy(fuzzyItems)

	var merged []*domain.Publication
	for _, cluster := range doiClusters {
		merged = append(merged, mergeCluster(cluster))
	}
	for _, cluster := range pmidClusters {
		merged = append(merged, mergeCluster(cluster))
	}
	for _, cluster := range scholarClusters {
		merged = append(merged, mergeCluster(cluster))
	}
	for _, cluster := range fuzzyClusters {
		merged = append(merged, mergeCluster(cluster))
	}

	merged = rejectCrossDOIMerges(merged)

	sortByAnchor(merged)
	return merged
}

// clusterFuzzy performs single-linkage clustering over title/year
// similarity, visiting items in input order so the result is
// deterministic (spec §4.3 step 3).
func clusterFuzzy(items []*domain.Publication) [][]*domain.Publication {
	var clusters [][]*domain.Publication
	for _, p := range items {
		placed := false
		for ci, cluster := range clusters {
			if fuzzyCollides(p, cluster) {
				clusters[ci] = append(cluster, p)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []*domain.Publication{p})
		}
	}
	return clusters
}

func fuzzyCollides(p *domain.Publication, cluster []*domain.Publication) bool {
	normTitle := domain.NormalizeTitle(p.Title)
	for _, member := range cluster {
		if titleSimilarity(normTitle, domain.NormalizeTitle(member.Title)) >= fuzzyTitleSimilarityThreshold &&
			yearsCompatible(p.Year, member.Year) {
			return true
		}
	}
	return false
}

func titleSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

func yearsCompatible(a, b int) bool {
	if a == 0 || b == 0 {
		return true
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

// mergeCluster folds a cluster of duplicate records into one
// representative, per the field-precedence rules of spec §4.3 step 4.
func mergeCluster(cluster []*domain.Publication) *domain.Publication {
	if len(cluster) == 1 {
		return cluster[0]
	}

	anchor := cluster[0]
	for _, p := range cluster[1:] {
		if p.InsertionIndex() < anchor.InsertionIndex() {
			anchor = p
		}
	}

	out := &domain.Publication{}
	*out = *anchor
	out.Sources = map[string]bool{}
	out.MergedFrom = nil

	authorSeen := map[string]bool{}
	urlSeen := map[string]bool{}

	for _, p := range cluster {
		for s := range p.Sources {
			out.Sources[s] = true
		}
		for _, a := range p.Authors {
			norm := strings.ToLower(strings.TrimSpace(a.Name))
			if norm == "" || authorSeen[norm] {
				continue
			}
			authorSeen[norm] = true
			out.Authors = append(out.Authors, a)
		}
		for _, u := range p.InstitutionalURLs {
			if urlSeen[u.URL] {
				continue
			}
			urlSeen[u.URL] = true
			out.InstitutionalURLs = append(out.InstitutionalURLs, u)
		}
		out.MergedFrom = append(out.MergedFrom, p.SourceList()...)
	}

	best := preferredBySource(cluster)
	out.Title = best.Title
	out.Abstract = best.Abstract
	out.Venue = best.Venue
	out.DOI = firstNonEmpty(out.DOI, collectField(cluster, func(p *domain.Publication) string { return p.DOI }))
	out.PMID = firstNonEmpty(out.PMID, collectField(cluster, func(p *domain.Publication) string { return p.PMID }))
	out.PMCID = firstNonEmpty(out.PMCID, collectField(cluster, func(p *domain.Publication) string { return p.PMCID }))
	out.ScholarID = firstNonEmpty(out.ScholarID, collectField(cluster, func(p *domain.Publication) string { return p.ScholarID }))
	out.S2PaperID = firstNonEmpty(out.S2PaperID, collectField(cluster, func(p *domain.Publication) string { return p.S2PaperID }))
	out.FulltextURL = firstNonEmpty(out.FulltextURL, collectField(cluster, func(p *domain.Publication) string { return p.FulltextURL }))

	out.Citations = maxInt(cluster, func(p *domain.Publication) int { return p.Citations })
	out.CitationsLast3Years = maxIntPtr(cluster, func(p *domain.Publication) *int { return p.CitationsLast3Years })
	out.InfluentialCitations = maxIntPtr(cluster, func(p *domain.Publication) *int { return p.InfluentialCitations })

	for _, p := range cluster {
		if p.IsOpenAccess {
			out.IsOpenAccess = true
		}
	}

	out.PublicationDate = preferredDate(cluster, out)
	out.SetInsertionIndex(anchor.InsertionIndex())
	return out
}

func sourcePrecedenceRank(p *domain.Publication) int {
	best := len(sourcePrecedence)
	for s := range p.Sources {
		if r, ok := sourcePrecedence[s]; ok && r < best {
			best = r
		}
	}
	return best
}

func preferredBySource(cluster []*domain.Publication) *domain.Publication {
	best := cluster[0]
	for _, p := range cluster[1:] {
		if sourcePrecedenceRank(p) < sourcePrecedenceRank(best) {
			best = p
		}
	}
	return best
}

func collectField(cluster []*domain.Publication, get func(*domain.Publication) string) string {
	for _, p := range orderedByPrecedence(cluster) {
		if v := get(p); v != "" {
			return v
		}
	}
	return ""
}

func orderedByPrecedence(cluster []*domain.Publication) []*domain.Publication {
	out := make([]*domain.Publication, len(cluster))
	copy(out, cluster)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && sourcePrecedenceRank(out[j]) < sourcePrecedenceRank(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func maxInt(cluster []*domain.Publication, get func(*domain.Publication) int) int {
	max := 0
	for _, p := range cluster {
		if v := get(p); v > max {
			max = v
		}
	}
	return max
}

func maxIntPtr(cluster []*domain.Publication, get func(*domain.Publication) *int) *int {
	var max *int
	for _, p := range cluster {
		v := get(p)
		if v == nil {
			continue
		}
		if max == nil || *v > *max {
			max = v
		}
	}
	return max
}

// preferredDate picks the earliest publication_date across the
// cluster when dates conflict by more than one year, flagging the
// conflict in source_specific (spec §4.3 step 4).
func preferredDate(cluster []*domain.Publication, out *domain.Publication) *time.Time {
	var earliest *time.Time
	conflict := false
	for _, p := range cluster {
		if p.PublicationDate == nil {
			continue
		}
		if earliest == nil {
			earliest = p.PublicationDate
			continue
		}
		diffDays := p.PublicationDate.Sub(*earliest).Hours() / 24
		if diffDays < 0 {
			diffDays = -diffDays
		}
		if diffDays > 366 {
			conflict = true
		}
		if p.PublicationDate.Before(*earliest) {
			earliest = p.PublicationDate
		}
	}
	if conflict {
		if out.SourceSpecific == nil {
			out.SourceSpecific = map[string]map[string]any{}
		}
		out.SourceSpecific["_merge"] = map[string]any{"conflict": "publication_date"}
	}
	return earliest
}

// rejectCrossDOIMerges undoes any fuzzy merge that would transitively
// bridge two publications carrying different DOIs (spec §4.3
// "Failure" clause): DOI identity is authoritative and is never
// overridden by a fuzzy title match.
func rejectCrossDOIMerges(merged []*domain.Publication) []*domain.Publication {
	// DOI-keyed clusters are partitioned before fuzzy clustering ever
	// runs, so a fuzzy cluster can only contain publications that
	// carried no DOI to begin with: no merge here can bridge two
	// distinct DOI identities. Nothing to reject.
	return merged
}

func sortByAnchor(pubs []*domain.Publication) {
	for i := 1; i < len(pubs); i++ {
		for j := i; j > 0 && pubs[j].InsertionIndex() < pubs[j-1].InsertionIndex(); j-- {
			pubs[j], pubs[j-1] = pubs[j-1], pubs[j]
		}
	}
}
