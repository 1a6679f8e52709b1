// Package ranking orders match entries. Each ranking policy is a Strategy with
// a pre-scoring order (which candidates are worth sending to the scorer) and a
// final order (what the caller sees).
package ranking

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/spigell/resume-ranker/internal/records"
)

const (
	NameOverlap    = "overlap"
	NameExperience = "experience"
	NameRecency    = "recency"

	// StrongTitleMatch is the title score that promotes a candidate into the experience-first group.
	StrongTitleMatch = 0.9
)

// Strategy sorts entries in place. Every ordering is stable and falls back to
// ascending resume id, so equal keys always come out in the same order.
type Strategy interface {
	Name() string
	Order(entries []*records.MatchEntry)
	Final(entries []*records.MatchEntry)
}

var registry = map[string]Strategy{
	NameOverlap:    Overlap{},
	NameExperience: Experience{},
	NameRecency:    Recency{},
}

// Lookup returns the strategy registered under name. Blank selects the default.
func Lookup(name string) (Strategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default(), nil
	}
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown ranking strategy %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Default is the strategy used by ranked fetches when none is requested.
func Default() Strategy { return Experience{} }

func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Finalize applies the final order, keeps the first topN entries and numbers them from 1.
// The input slice is not reordered.
func Finalize(entries []*records.MatchEntry, s Strategy, topN int) []records.RankedMatch {
	sorted := slices.Clone(entries)
	s.Final(sorted)

	if topN >= 0 && len(sorted) > topN {
		sorted = sorted[:topN]
	}

	out := make([]records.RankedMatch, 0, len(sorted))
	for i, e := range sorted {
		out = append(out, records.RankedMatch{MatchEntry: e, Rank: i + 1})
	}
	return out
}

// Overlap ranks by the number of shared keywords, then by embedding similarity.
type Overlap struct{}

func (Overlap) Name() string { return NameOverlap }

func (Overlap) Order(entries []*records.MatchEntry) {
	slices.SortStableFunc(entries, func(a, b *records.MatchEntry) int {
		return chain(
			cmp.Compare(len(b.CommonKeys), len(a.CommonKeys)),
			cmp.Compare(b.SimilarityScore, a.SimilarityScore),
			cmp.Compare(a.ResumeID, b.ResumeID),
		)
	})
}

func (Overlap) Final(entries []*records.MatchEntry) { byScore(entries) }

// Experience puts candidates with a strong title match first, ordered by
// matched years, followed by the rest ordered by similarity.
type Experience struct{}

func (Experience) Name() string { return NameExperience }

func (Experience) Order(entries []*records.MatchEntry) {
	type key struct {
		strong bool
		years  int
	}
	keys := make(map[*records.MatchEntry]key, len(entries))
	for _, e := range entries {
		keys[e] = key{
			strong: hasStrongMatch(e),
			years:  validYears(e),
		}
	}

	slices.SortStableFunc(entries, func(a, b *records.MatchEntry) int {
		ka, kb := keys[a], keys[b]
		if ka.strong != kb.strong {
			if ka.strong {
				return -1
			}
			return 1
		}
		if ka.strong {
			return chain(
				cmp.Compare(kb.years, ka.years),
				cmp.Compare(a.ResumeID, b.ResumeID),
			)
		}
		return chain(
			cmp.Compare(b.SimilarityScore, a.SimilarityScore),
			cmp.Compare(a.ResumeID, b.ResumeID),
		)
	})
}

func (Experience) Final(entries []*records.MatchEntry) { byScore(entries) }

// Recency ranks the newest candidates first. Unparseable timestamps sort last.
type Recency struct{}

func (Recency) Name() string { return NameRecency }

func (Recency) Order(entries []*records.MatchEntry) {
	created := createdIndex(entries)
	slices.SortStableFunc(entries, func(a, b *records.MatchEntry) int {
		return chain(
			created[b].Compare(created[a]),
			cmp.Compare(a.ResumeID, b.ResumeID),
		)
	})
}

func (Recency) Final(entries []*records.MatchEntry) {
	created := createdIndex(entries)
	slices.SortStableFunc(entries, func(a, b *records.MatchEntry) int {
		return chain(
			created[b].Compare(created[a]),
			cmp.Compare(b.Score(), a.Score()),
			cmp.Compare(a.ResumeID, b.ResumeID),
		)
	})
}

// byScore orders by AI score, missing scores counting as zero, then similarity.
func byScore(entries []*records.MatchEntry) {
	slices.SortStableFunc(entries, func(a, b *records.MatchEntry) int {
		return chain(
			cmp.Compare(b.Score(), a.Score()),
			cmp.Compare(b.SimilarityScore, a.SimilarityScore),
			cmp.Compare(a.ResumeID, b.ResumeID),
		)
	})
}

func chain(results ...int) int {
	for _, r := range results {
		if r != 0 {
			return r
		}
	}
	return 0
}
