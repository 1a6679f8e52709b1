package filtering

import (
	"context"
	"strings"

	"github.com/spigell/resume-ranker/internal/records"
)

type keywordsFilter struct {
	required []string
	enabled  bool
	reason   string
}

// NewKeywords creates a filter that keeps entries whose shared keywords
// include every required keyword. An empty list disables the filter.
func NewKeywords(required []string) Filter {
	cleaned := make([]string, 0, len(required))
	for _, k := range required {
		if strings.TrimSpace(k) != "" {
			cleaned = append(cleaned, k)
		}
	}

	f := &keywordsFilter{required: cleaned, enabled: true}
	if len(cleaned) == 0 {
		f.Disable("no keywords requested")
	}
	return f
}

func (f *keywordsFilter) Name() string { return "keywords" }

func (f *keywordsFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *keywordsFilter) IsEnabled() bool { return f.enabled }

func (f *keywordsFilter) Validate() error { return nil }

func (f *keywordsFilter) Apply(_ context.Context, entries []*records.MatchEntry) ([]*records.MatchEntry, Step, error) {
	out, step := keep(entries, func(e *records.MatchEntry) bool {
		have := make(map[string]struct{}, len(e.CommonKeys))
		for _, k := range e.CommonKeys {
			have[k] = struct{}{}
		}
		for _, k := range f.required {
			if _, ok := have[k]; !ok {
				return false
			}
		}
		return true
	})
	return out, step, nil
}

func (f *keywordsFilter) Status() Status {
	details := map[string]string{}
	if len(f.required) > 0 {
		details["keywords"] = strings.Join(f.required, ",")
	}
	return Status{Name: f.Name(), Enabled: f.enabled, Reason: f.reason, Details: details}
}
