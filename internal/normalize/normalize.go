// Package normalize derives comparable values from loosely typed candidate data.
// Ingestion and query paths both go through it so stored and computed values agree.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/resume-ranker/internal/records"
)

// Country lowercases and trims a country name.
func Country(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Years converts a duration value to whole years, truncating fractions.
// Unparseable values report ok=false.
func Years(v any) (int, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case int:
		return val, true
	case int32:
		return int(val), true
	case int64:
		return int(val), true
	case float32:
		return truncate(float64(val))
	case float64:
		return truncate(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return truncate(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return truncate(f)
	default:
		return 0, false
	}
}

// IntYears is the strict variant used for stored match durations: only
// integral values are accepted, matching how scores were computed historically.
func IntYears(v any) (int, bool) {
	switch val := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, false
		}
		return n, true
	case float32, float64:
		return Years(val)
	default:
		return Years(v)
	}
}

func truncate(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// TotalExperience sums the positive durations of a resume's experiences.
func TotalExperience(exps []records.Experience) int {
	total := 0
	for _, e := range exps {
		if y, ok := Years(e.Duration); ok && y > 0 {
			total += y
		}
	}
	return total
}

// ValidExperience sums the positive resume durations of matched experiences.
func ValidExperience(exps []records.CommonExperience) int {
	total := 0
	for _, e := range exps {
		if y, ok := IntYears(e.ResumeDuration); ok && y > 0 {
			total += y
		}
	}
	return total
}

// HasStrongTitleMatch reports whether any matched experience scored at least min.
func HasStrongTitleMatch(exps []records.CommonExperience, min float64) bool {
	for _, e := range exps {
		if e.MatchScore >= min {
			return true
		}
	}
	return false
}

// CreatedOn parses the creation timestamp of a candidate. Epoch milliseconds
// (numeric or string) and ISO-8601 strings are accepted. Anything else yields
// the zero time, which orders before every valid timestamp.
func CreatedOn(v any) time.Time {
	switch val := v.(type) {
	case int:
		return time.UnixMilli(int64(val)).UTC()
	case int32:
		return time.UnixMilli(int64(val)).UTC()
	case int64:
		return time.UnixMilli(val).UTC()
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return time.Time{}
		}
		return time.UnixMilli(int64(val)).UTC()
	case time.Time:
		return val.UTC()
	case string:
		return parseCreatedOnString(strings.TrimSpace(val))
	default:
		return time.Time{}
	}
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseCreatedOnString(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}
