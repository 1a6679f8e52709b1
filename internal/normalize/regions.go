package normalize

import (
	"sort"
	"strings"
)

// Catalog maps a region id to the country spellings accepted for it.
type Catalog map[string][]string

// DefaultCatalog lists the regions known to the recruiting backend.
func DefaultCatalog() Catalog {
	return Catalog{
		"0966bbc7-8d15-11ef-a224-000c29dc611c": {"Australia"},
		"2039bca5-8d14-11ef-a224-000c29dc611c": {"United Arab Emirates", "Uae"},
		"2853b6af-04af-11f0-b74e-52540e737e83": {"Hong Kong", "Hong Kong Sar"},
		"28820f8a-04af-11f0-b74e-52540e737e83": {"Japan"},
		"28cccee1-04af-11f0-b74e-52540e737e83": {"Germany"},
		"29ef8adf-8d16-11ef-a224-000c29dc611c": {"Saudi Arabia", "Ksa"},
		"3e58491b-8d13-11ef-a224-000c29dc611c": {"Philippines", "The Philippines"},
		"6f48aadb-08a0-11f0-a380-5254828ec570": {"Singapore"},
		"7c1f71d7-8d25-11ef-a224-000c29dc611c": {"Thailand"},
		"9a7be17b-8d15-11ef-a224-000c29dc611c": {"New Zealand"},
		"9e21a39d-d1a6-4aca-bfc2-4a241d4cbec8": {"India", "Ind"},
		"a227528b-8d13-11ef-a224-000c29dc611c": {"Malaysia"},
		"ba184d1f-8d14-11ef-a224-000c29dc611c": {"United States", "Usa", "Us"},
		"c7c45e99-ff53-42e1-981b-3ba1f0794b24": {"Indonesia"},
		"e573ba69-2886-11ef-b4be-000c29dc611c": {"Vietnam", "Viet Nam", "Vn", "Vietnamese"},
	}
}

// Countries returns the normalized spellings for a region, sorted.
// ok is false for unknown or blank ids.
func (c Catalog) Countries(regionID string) ([]string, bool) {
	names, ok := c[strings.TrimSpace(regionID)]
	if !ok {
		return nil, false
	}

	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = Country(n); n != "" {
			set[n] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, true
}

// Contains reports whether country belongs to the region after normalization.
func (c Catalog) Contains(regionID, country string) bool {
	names, ok := c.Countries(regionID)
	if !ok {
		return false
	}
	country = Country(country)
	for _, n := range names {
		if n == country {
			return true
		}
	}
	return false
}
