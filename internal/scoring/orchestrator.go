// Package scoring sends the head of a ranked candidate list to the external
// qualitative scorer and writes the assessments back to the match record.
package scoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/resume-ranker/internal/ai"
	"github.com/spigell/resume-ranker/internal/config"
	"github.com/spigell/resume-ranker/internal/logger"
	"github.com/spigell/resume-ranker/internal/records"
	"github.com/spigell/resume-ranker/internal/store"
)

// Orchestrator runs bounded, batched scoring for one job at a time.
type Orchestrator struct {
	store  store.Store
	scorer ai.Scorer
	cfg    config.Matching
	logger *zap.Logger
}

// Result summarizes one Score call.
type Result struct {
	Candidates    int
	Batches       int
	FailedBatches int
	Scored        int
}

func NewOrchestrator(st store.Store, scorer ai.Scorer, cfg config.Matching, log *zap.Logger) (*Orchestrator, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Orchestrator{store: st, scorer: scorer, cfg: cfg, logger: log}, nil
}

// Score assesses the unscored entries among the first CandidatesToScore of
// ordered. The entries in ordered are updated in place with the merged
// assessments. Batch failures are logged and leave their entries unscored.
func (o *Orchestrator) Score(ctx context.Context, job *records.JobDescription, ordered []*records.MatchEntry) (Result, error) {
	var res Result
	if job == nil {
		return res, fmt.Errorf("job description is required")
	}
	log := logger.WithFields(o.logger, logger.JobFields(job.JobID, "")...)

	head := ordered
	if len(head) > o.cfg.CandidatesToScore {
		head = head[:o.cfg.CandidatesToScore]
	}

	pending := make([]*records.MatchEntry, 0, len(head))
	for _, e := range head {
		if !e.Scored() {
			pending = append(pending, e)
		}
	}
	res.Candidates = len(pending)
	if len(pending) == 0 {
		log.Debug("nothing to score")
		return res, nil
	}

	candidates, err := o.candidates(ctx, pending)
	if err != nil {
		return res, err
	}

	batches := partition(candidates, o.cfg.BatchSize)
	res.Batches = len(batches)

	var (
		mu     sync.Mutex
		merged = make(map[string]records.Assessment, len(candidates))
		failed int
	)

	// Workers never return an error; a failed batch only loses its own scores.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ParallelWorkers)

	for i, batch := range batches {
		g.Go(func() error {
			scores, err := o.scoreBatch(gctx, job, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				log.Warn("scoring batch failed",
					zap.Int("batch", i),
					zap.Int("size", len(batch)),
					zap.Error(err),
				)
				return nil
			}
			for id, a := range scores {
				merged[id] = a
			}
			return nil
		})
	}
	_ = g.Wait()
	res.FailedBatches = failed

	for _, e := range pending {
		a, ok := merged[e.ResumeID]
		if !ok {
			continue
		}
		if err := o.store.SetAssessment(ctx, job.JobID, e.ResumeID, a); err != nil {
			return res, fmt.Errorf("store assessment for %s: %w", e.ResumeID, err)
		}
		e.Assessment = a
		res.Scored++
	}

	log.Info("scoring finished",
		zap.Int("candidates", res.Candidates),
		zap.Int("batches", res.Batches),
		zap.Int("failed_batches", res.FailedBatches),
		zap.Int("scored", res.Scored),
	)
	return res, nil
}

func (o *Orchestrator) scoreBatch(ctx context.Context, job *records.JobDescription, batch []ai.Candidate) (map[string]records.Assessment, error) {
	if o.cfg.ScoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ScoreTimeout)
		defer cancel()
	}

	start := time.Now()
	scores, err := o.scorer.ScoreBatch(ctx, job, batch)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	o.logger.Debug("scoring batch done", zap.Int("size", len(batch)), zap.Duration("took", time.Since(start)))
	return scores, err
}

// candidates loads the resume documents and free-text bodies of entries.
// Entries whose resume no longer exists are dropped.
func (o *Orchestrator) candidates(ctx context.Context, entries []*records.MatchEntry) ([]ai.Candidate, error) {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ResumeID)
	}

	resumes, err := o.store.GetResumes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load resumes: %w", err)
	}
	texts, err := o.store.GetResumeTexts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load resume texts: %w", err)
	}

	byID := make(map[string]*records.Resume, len(resumes))
	for _, r := range resumes {
		byID[r.ResumeID] = r
	}

	out := make([]ai.Candidate, 0, len(ids))
	for _, id := range ids {
		c := ai.Candidate{ResumeID: id, Text: texts[id], Resume: byID[id]}
		if c.Text == "" && c.Resume == nil {
			o.logger.Warn("resume for match entry is missing", logger.JobFields("", id)...)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func partition(items []ai.Candidate, size int) [][]ai.Candidate {
	if size < 1 {
		size = 1
	}
	batches := make([][]ai.Candidate, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}
