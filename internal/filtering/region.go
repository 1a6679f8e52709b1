package filtering

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/resume-ranker/internal/normalize"
	"github.com/spigell/resume-ranker/internal/records"
)

type regionFilter struct {
	regionID  string
	countries map[string]struct{}
	enabled   bool
	reason    string
}

// NewRegion creates a filter that keeps entries whose country belongs to the region.
// A blank or unknown region id disables the filter, so every entry passes.
func NewRegion(regionID string, catalog normalize.Catalog) Filter {
	f := &regionFilter{regionID: strings.TrimSpace(regionID), enabled: true}

	switch names, ok := catalog.Countries(f.regionID); {
	case f.regionID == "":
		f.Disable("no region requested")
	case !ok:
		f.Disable(fmt.Sprintf("region %q is not in the catalog", f.regionID))
	default:
		f.countries = make(map[string]struct{}, len(names))
		for _, n := range names {
			f.countries[n] = struct{}{}
		}
	}
	return f
}

func (f *regionFilter) Name() string { return "region" }

func (f *regionFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *regionFilter) IsEnabled() bool { return f.enabled }

func (f *regionFilter) Validate() error {
	if len(f.countries) == 0 {
		return fmt.Errorf("region %q has no countries", f.regionID)
	}
	return nil
}

func (f *regionFilter) Apply(_ context.Context, entries []*records.MatchEntry) ([]*records.MatchEntry, Step, error) {
	out, step := keep(entries, func(e *records.MatchEntry) bool {
		_, ok := f.countries[normalize.Country(e.Country)]
		return ok
	})
	return out, step, nil
}

func (f *regionFilter) Status() Status {
	details := map[string]string{}
	if f.regionID != "" {
		details["region_id"] = f.regionID
	}
	return Status{Name: f.Name(), Enabled: f.enabled, Reason: f.reason, Details: details}
}
