package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-ranker/internal/records"
)

func score(v float64) *float64 { return &v }

func ids(entries []*records.MatchEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ResumeID)
	}
	return out
}

func TestOverlapOrderPrefersOverlapCount(t *testing.T) {
	t.Parallel()

	entries := []*records.MatchEntry{
		{ResumeID: "A", CommonKeys: []string{"python"}, SimilarityScore: 0.92},
		{ResumeID: "B", CommonKeys: []string{"aws", "python"}, SimilarityScore: 0.80},
	}

	Overlap{}.Order(entries)
	assert.Equal(t, []string{"B", "A"}, ids(entries))
}

func TestOverlapOrderTieBreaks(t *testing.T) {
	t.Parallel()

	entries := []*records.MatchEntry{
		{ResumeID: "c", CommonKeys: []string{"go"}, SimilarityScore: 0.5},
		{ResumeID: "a", CommonKeys: []string{"go"}, SimilarityScore: 0.5},
		{ResumeID: "b", CommonKeys: []string{"go"}, SimilarityScore: 0.7},
	}

	Overlap{}.Order(entries)
	assert.Equal(t, []string{"b", "a", "c"}, ids(entries))
}

func TestExperienceOrder(t *testing.T) {
	t.Parallel()

	entries := []*records.MatchEntry{
		{ResumeID: "b-high-sim", SimilarityScore: 0.99},
		{ResumeID: "a-short", SimilarityScore: 0.1, CommonExperiences: []records.CommonExperience{
			{MatchScore: 0.95, ResumeDuration: 1},
		}},
		{ResumeID: "a-long", SimilarityScore: 0.2, CommonExperiences: []records.CommonExperience{
			{MatchScore: 0.9, ResumeDuration: "3"},
			{MatchScore: 0.86, ResumeDuration: 4},
		}},
		{ResumeID: "b-low-sim", SimilarityScore: 0.3, CommonExperiences: []records.CommonExperience{
			{MatchScore: 0.89, ResumeDuration: 20},
		}},
	}

	Experience{}.Order(entries)
	assert.Equal(t, []string{"a-long", "a-short", "b-high-sim", "b-low-sim"}, ids(entries))
}

func TestRecencyOrder(t *testing.T) {
	t.Parallel()

	entries := []*records.MatchEntry{
		{ResumeID: "bad", Profile: records.Profile{CreatedOn: "not a date"}},
		{ResumeID: "old", Profile: records.Profile{CreatedOn: int64(1600000000000)}},
		{ResumeID: "new", Profile: records.Profile{CreatedOn: "2024-05-01T10:00:00Z"}},
		{ResumeID: "mid", Profile: records.Profile{CreatedOn: "1700000000000"}},
	}

	Recency{}.Order(entries)
	assert.Equal(t, []string{"new", "mid", "old", "bad"}, ids(entries))
}

func TestRecencyFinalBreaksTiesByScore(t *testing.T) {
	t.Parallel()

	created := int64(1700000000000)
	entries := []*records.MatchEntry{
		{ResumeID: "low", Profile: records.Profile{CreatedOn: created}, Assessment: records.Assessment{AIScore: score(40)}},
		{ResumeID: "high", Profile: records.Profile{CreatedOn: created}, Assessment: records.Assessment{AIScore: score(90)}},
	}

	Recency{}.Final(entries)
	assert.Equal(t, []string{"high", "low"}, ids(entries))
}

func TestFinalizeRanksAndCaps(t *testing.T) {
	t.Parallel()

	entries := []*records.MatchEntry{
		{ResumeID: "r1", SimilarityScore: 0.9},
		{ResumeID: "r2", SimilarityScore: 0.5, Assessment: records.Assessment{AIScore: score(80)}},
		{ResumeID: "r3", SimilarityScore: 0.7, Assessment: records.Assessment{AIScore: score(80)}},
		{ResumeID: "r4", SimilarityScore: 0.1, Assessment: records.Assessment{AIScore: score(95)}},
		{ResumeID: "r5", SimilarityScore: 0.2},
	}

	got := Finalize(entries, Experience{}, 3)
	require.Len(t, got, 3)

	order := make([]string, 0, len(got))
	for i, m := range got {
		assert.Equal(t, i+1, m.Rank)
		order = append(order, m.ResumeID)
	}
	assert.Equal(t, []string{"r4", "r3", "r2"}, order)

	assert.Equal(t, "r1", entries[0].ResumeID, "input must not be reordered")
}

func TestFinalizeFewerThanTop(t *testing.T) {
	t.Parallel()

	got := Finalize([]*records.MatchEntry{{ResumeID: "only"}}, Overlap{}, 5)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Rank)

	assert.Empty(t, Finalize(nil, Overlap{}, 5))
}

func TestLookup(t *testing.T) {
	t.Parallel()

	s, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, NameExperience, s.Name())

	s, err = Lookup(" Recency ")
	require.NoError(t, err)
	assert.Equal(t, NameRecency, s.Name())

	_, err = Lookup("random")
	require.Error(t, err)
	assert.Equal(t, []string{"experience", "overlap", "recency"}, Names())
}
