package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-ranker/internal/records"
)

const indiaRegion = "9e21a39d-d1a6-4aca-bfc2-4a241d4cbec8"

func TestCountry(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "india", Country("  India "))
	assert.Equal(t, "", Country("   "))
}

func TestCatalogCountries(t *testing.T) {
	t.Parallel()

	catalog := DefaultCatalog()

	got, ok := catalog.Countries(indiaRegion)
	require.True(t, ok)
	assert.Equal(t, []string{"ind", "india"}, got)

	_, ok = catalog.Countries("unknown")
	assert.False(t, ok)
}

func TestCatalogContains(t *testing.T) {
	t.Parallel()

	catalog := DefaultCatalog()

	assert.True(t, catalog.Contains(indiaRegion, " INDIA "))
	assert.True(t, catalog.Contains(indiaRegion, "Ind"))
	assert.False(t, catalog.Contains(indiaRegion, "Indiana"))
	assert.False(t, catalog.Contains("missing", "India"))
}

func TestYears(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  any
		expect int
		ok     bool
	}{
		{name: "int", input: 3, expect: 3, ok: true},
		{name: "int64", input: int64(7), expect: 7, ok: true},
		{name: "float truncates", input: 2.9, expect: 2, ok: true},
		{name: "numeric string", input: " 4.5 ", expect: 4, ok: true},
		{name: "garbage string", input: "five", ok: false},
		{name: "nil", input: nil, ok: false},
		{name: "slice", input: []string{"1"}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Years(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestTotalExperience(t *testing.T) {
	t.Parallel()

	exps := []records.Experience{
		{Title: "a", Duration: 2},
		{Title: "b", Duration: "3.7"},
		{Title: "c", Duration: -1},
		{Title: "d", Duration: "n/a"},
		{Title: "e"},
	}
	assert.Equal(t, 5, TotalExperience(exps))
}

func TestValidExperience(t *testing.T) {
	t.Parallel()

	exps := []records.CommonExperience{
		{ResumeDuration: 4},
		{ResumeDuration: "2"},
		{ResumeDuration: "2.5"},
		{ResumeDuration: 0},
		{ResumeDuration: nil},
	}
	assert.Equal(t, 6, ValidExperience(exps))
}

func TestHasStrongTitleMatch(t *testing.T) {
	t.Parallel()

	assert.True(t, HasStrongTitleMatch([]records.CommonExperience{{MatchScore: 0.86}, {MatchScore: 0.9}}, 0.9))
	assert.False(t, HasStrongTitleMatch([]records.CommonExperience{{MatchScore: 0.89}}, 0.9))
	assert.False(t, HasStrongTitleMatch(nil, 0.9))
}

func TestCreatedOn(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ms := want.UnixMilli()

	assert.Equal(t, want, CreatedOn(ms))
	assert.Equal(t, want, CreatedOn(float64(ms)))
	assert.Equal(t, want, CreatedOn("1709294400000"))
	assert.Equal(t, want, CreatedOn("2024-03-01T12:00:00Z"))
	assert.Equal(t, want, CreatedOn("2024-03-01T12:00:00"))

	assert.True(t, CreatedOn("yesterday").IsZero())
	assert.True(t, CreatedOn(nil).IsZero())
	assert.True(t, CreatedOn(map[string]any{}).IsZero())
}
