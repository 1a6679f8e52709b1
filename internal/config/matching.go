// Package config holds the tunables of the matching pipeline.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spigell/resume-ranker/internal/matching"
	"github.com/spigell/resume-ranker/internal/ranking"
)

const (
	DefaultCandidatesToScore  = 20
	DefaultTopResultsReturned = 5
	DefaultBatchSize          = 5
	DefaultParallelWorkers    = 4
	DefaultTopLimit           = 500
	DefaultScoreTimeout       = 90 * time.Second
)

// Matching is the explicit configuration of the ranking pipeline.
type Matching struct {
	// CandidatesToScore of 0 turns qualitative scoring off.
	CandidatesToScore        int           `mapstructure:"candidates-to-score"`
	TopResultsReturned       int           `mapstructure:"top-results-returned"`
	BatchSize                int           `mapstructure:"batch-size"`
	ParallelWorkers          int           `mapstructure:"parallel-workers"`
	TitleSimilarityThreshold float64       `mapstructure:"title-similarity-threshold"`
	TitleThresholdInclusive  bool          `mapstructure:"title-threshold-inclusive"`
	TopLimit                 int           `mapstructure:"top-limit"`
	ScoreTimeout             time.Duration `mapstructure:"score-timeout"`
	Strategy                 string        `mapstructure:"strategy"`
}

// DefaultMatching returns the production defaults.
func DefaultMatching() Matching {
	return Matching{
		CandidatesToScore:        DefaultCandidatesToScore,
		TopResultsReturned:       DefaultTopResultsReturned,
		BatchSize:                DefaultBatchSize,
		ParallelWorkers:          DefaultParallelWorkers,
		TitleSimilarityThreshold: matching.DefaultTitleThreshold,
		TopLimit:                 DefaultTopLimit,
		ScoreTimeout:             DefaultScoreTimeout,
		Strategy:                 ranking.NameExperience,
	}
}

// WithDefaults fills zero values from DefaultMatching. CandidatesToScore is
// left alone since zero is a valid setting.
func (m Matching) WithDefaults() Matching {
	d := DefaultMatching()
	if m.TopResultsReturned == 0 {
		m.TopResultsReturned = d.TopResultsReturned
	}
	if m.BatchSize == 0 {
		m.BatchSize = d.BatchSize
	}
	if m.ParallelWorkers == 0 {
		m.ParallelWorkers = d.ParallelWorkers
	}
	if m.TitleSimilarityThreshold == 0 {
		m.TitleSimilarityThreshold = d.TitleSimilarityThreshold
	}
	if m.TopLimit == 0 {
		m.TopLimit = d.TopLimit
	}
	if m.ScoreTimeout == 0 {
		m.ScoreTimeout = d.ScoreTimeout
	}
	if m.Strategy == "" {
		m.Strategy = d.Strategy
	}
	return m
}

func (m Matching) Validate() error {
	var errs []error
	if m.CandidatesToScore < 0 {
		errs = append(errs, fmt.Errorf("candidates-to-score must not be negative, got %d", m.CandidatesToScore))
	}
	if m.TopResultsReturned < 1 {
		errs = append(errs, fmt.Errorf("top-results-returned must be positive, got %d", m.TopResultsReturned))
	}
	if m.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch-size must be positive, got %d", m.BatchSize))
	}
	if m.ParallelWorkers < 1 {
		errs = append(errs, fmt.Errorf("parallel-workers must be positive, got %d", m.ParallelWorkers))
	}
	if m.TitleSimilarityThreshold < 0 || m.TitleSimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("title-similarity-threshold must be within [0,1], got %v", m.TitleSimilarityThreshold))
	}
	if m.TopLimit < 1 {
		errs = append(errs, fmt.Errorf("top-limit must be positive, got %d", m.TopLimit))
	}
	if m.ScoreTimeout < 0 {
		errs = append(errs, fmt.Errorf("score-timeout must not be negative, got %s", m.ScoreTimeout))
	}
	if _, err := ranking.Lookup(m.Strategy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Threshold returns the title matching threshold.
func (m Matching) Threshold() matching.Threshold {
	return matching.Threshold{Value: m.TitleSimilarityThreshold, Inclusive: m.TitleThresholdInclusive}
}
