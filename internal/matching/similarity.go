// Package matching contains the pure scoring primitives used by the ranking pipeline.
package matching

import (
	"errors"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned when two embeddings have different lengths.
var ErrDimensionMismatch = errors.New("embedding dimensions differ")

// Cosine returns the cosine similarity of a and b.
// A zero-magnitude vector on either side yields 0.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}

	if na == 0 || nb == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Overlap returns the unique values present in both lists, sorted ascending.
// Comparison is exact: no case folding or trimming.
func Overlap(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}

	common := make([]string, 0)
	for _, v := range b {
		if _, ok := seen[v]; ok {
			common = append(common, v)
			delete(seen, v)
		}
	}

	sort.Strings(common)
	return common
}
