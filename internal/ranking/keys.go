package ranking

import (
	"time"

	"github.com/spigell/resume-ranker/internal/normalize"
	"github.com/spigell/resume-ranker/internal/records"
)

func hasStrongMatch(e *records.MatchEntry) bool {
	return normalize.HasStrongTitleMatch(e.CommonExperiences, StrongTitleMatch)
}

func validYears(e *records.MatchEntry) int {
	return normalize.ValidExperience(e.CommonExperiences)
}

func createdIndex(entries []*records.MatchEntry) map[*records.MatchEntry]time.Time {
	idx := make(map[*records.MatchEntry]time.Time, len(entries))
	for _, e := range entries {
		idx[e] = normalize.CreatedOn(e.CreatedOn)
	}
	return idx
}
