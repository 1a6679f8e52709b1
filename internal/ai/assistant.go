package ai

import (
	"context"

	"github.com/spigell/resume-ranker/internal/records"
)

// Candidate is one resume sent to the scorer. Text is preferred when present;
// otherwise Resume is serialized.
type Candidate struct {
	ResumeID string
	Text     string
	Resume   *records.Resume
}

// Scorer assesses a batch of candidates against a job. The returned map is
// keyed by resume id. Any error means the whole batch produced nothing.
type Scorer interface {
	ScoreBatch(ctx context.Context, job *records.JobDescription, batch []Candidate) (map[string]records.Assessment, error)
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Extractor derives a structured query from free job description text.
type Extractor interface {
	Extract(ctx context.Context, jobText string) (records.StructuredQuery, error)
}
