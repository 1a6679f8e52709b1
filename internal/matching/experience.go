package matching

import (
	"math"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/spigell/resume-ranker/internal/records"
)

// DefaultTitleThreshold is the similarity a title pair has to clear to be kept.
const DefaultTitleThreshold = 0.85

// Threshold decides whether a title similarity counts as a match.
// Inclusive switches the comparison from > to >=.
type Threshold struct {
	Value     float64
	Inclusive bool
}

// DefaultThreshold is strict: a pair scoring exactly 0.85 is dropped.
func DefaultThreshold() Threshold {
	return Threshold{Value: DefaultTitleThreshold}
}

func (t Threshold) Pass(score float64) bool {
	if t.Inclusive {
		return score >= t.Value
	}
	return score > t.Value
}

// NormalizeTitle lowercases and trims a job title.
func NormalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TitleScore returns the longest-matching-blocks ratio (2*M/T) of two titles
// after normalization. The pair is ordered before comparison, so the result
// does not depend on argument order.
func TitleScore(a, b string) float64 {
	a, b = NormalizeTitle(a), NormalizeTitle(b)
	if a == "" && b == "" {
		return 1
	}
	if b < a {
		a, b = b, a
	}
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// CommonExperiences pairs every resume experience with every job experience and
// keeps those whose titles clear the threshold. Entries with an empty title are skipped.
func CommonExperiences(resume, job []records.Experience, th Threshold) []records.CommonExperience {
	out := make([]records.CommonExperience, 0)
	for _, r := range resume {
		rTitle := NormalizeTitle(r.Title)
		if rTitle == "" {
			continue
		}
		for _, j := range job {
			jTitle := NormalizeTitle(j.Title)
			if jTitle == "" {
				continue
			}

			score := TitleScore(rTitle, jTitle)
			if !th.Pass(score) {
				continue
			}

			out = append(out, records.CommonExperience{
				ResumeTitle:    rTitle,
				JDTitle:        jTitle,
				ResumeDuration: r.Duration,
				JDDuration:     j.Duration,
				MatchScore:     Round2(score),
			})
		}
	}
	return out
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
