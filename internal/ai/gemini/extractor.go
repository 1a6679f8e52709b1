package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/ai"
	"github.com/spigell/resume-ranker/internal/records"
)

//go:embed extract_prompt.md
var extractPrompt string

// Extractor builds a structured query out of a free-text job description.
type Extractor struct {
	generator contentGenerator
	logger    *zap.Logger
}

var (
	_ ai.Extractor = (*Extractor)(nil)
	_ ai.Embedder  = (*Generator)(nil)
)

func NewExtractor(generator contentGenerator, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{generator: generator, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, jobText string) (records.StructuredQuery, error) {
	var q records.StructuredQuery

	jobText = strings.TrimSpace(jobText)
	if jobText == "" {
		return q, errors.New("job description must not be empty")
	}

	raw, err := e.generator.GenerateContent(ctx, extractPrompt, jobText)
	if err != nil {
		return q, err
	}

	if err := json.Unmarshal([]byte(extractJSON(raw)), &q); err != nil {
		return q, fmt.Errorf("parse extracted query: %w", err)
	}

	q.Keywords = trimAll(q.Keywords)
	q.Skills = trimSkills(q.Skills)
	if q.Empty() {
		return q, errors.New("extracted query is empty")
	}

	e.logger.Debug("structured query extracted",
		zap.Int("keywords", len(q.Keywords)),
		zap.Int("experiences", len(q.JobExperiences)),
	)
	return q, nil
}
