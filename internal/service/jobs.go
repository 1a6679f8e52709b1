package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/bulk"
	"github.com/spigell/resume-ranker/internal/filtering"
	"github.com/spigell/resume-ranker/internal/logger"
	"github.com/spigell/resume-ranker/internal/ranking"
	"github.com/spigell/resume-ranker/internal/records"
	"github.com/spigell/resume-ranker/internal/scoring"
	"github.com/spigell/resume-ranker/internal/store"
	"github.com/spigell/resume-ranker/internal/trigger"
)

type JobRequest struct {
	JobID           string                   `json:"jobId" validate:"required"`
	JobDescription  string                   `json:"jobDescription" validate:"required"`
	StructuredQuery *records.StructuredQuery `json:"structured_query,omitempty"`
	Update          bool                     `json:"-"`
}

// IngestJob stores a job description and schedules its matching pass.
func (s *Service) IngestJob(ctx context.Context, req JobRequest) (*records.JobDescription, error) {
	req.JobID = strings.TrimSpace(req.JobID)
	req.JobDescription = strings.TrimSpace(req.JobDescription)
	if req.JobID == "" {
		return nil, invalid("jobId is required")
	}
	if req.JobDescription == "" {
		return nil, invalid("jobDescription is required")
	}
	log := logger.WithFields(s.logger, logger.JobFields(req.JobID, "")...)

	if req.Update {
		if err := s.DeleteJob(ctx, req.JobID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	} else if _, err := s.store.GetJob(ctx, req.JobID); err == nil {
		return nil, fmt.Errorf("job %s: %w", req.JobID, store.ErrDuplicate)
	}

	var query records.StructuredQuery
	if req.StructuredQuery != nil {
		query = *req.StructuredQuery
	}
	if query.Empty() {
		if s.extractor == nil {
			return nil, invalid("structured_query is required")
		}
		extracted, err := s.extractor.Extract(ctx, req.JobDescription)
		if err != nil {
			return nil, fmt.Errorf("%w: extract structured query: %v", ErrUpstream, err)
		}
		query = extracted
	}

	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal structured query: %w", err)
	}
	embedding, err := s.embedder.Embed(ctx, string(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: embed job: %v", ErrUpstream, err)
	}

	job := &records.JobDescription{
		JobID:           req.JobID,
		JobDescription:  req.JobDescription,
		StructuredQuery: query,
		Embedding:       embedding,
		ProcessingState: records.StatePending,
	}
	if err := s.store.InsertJob(ctx, job); err != nil {
		return nil, err
	}
	log.Info("job stored", zap.Int("keywords", len(query.Keywords)), zap.Int("dims", len(embedding)))

	if s.trigger != nil {
		if err := s.trigger.Submit(ctx, trigger.NewTask(job.JobID)); err != nil {
			// The job stays pending and is picked up by the next pending pass.
			log.Warn("failed to submit matching task", zap.Error(err))
		}
	}

	return job.WithoutEmbedding(), nil
}

// DeleteJob removes a job together with its match record and every reverse
// index entry that points at it.
func (s *Service) DeleteJob(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return invalid("jobId is required")
	}

	unlock, err := s.locker.Lock(ctx, bulk.JobLockKey(jobID))
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info("job deleted", logger.JobFields(jobID, "")...)
	return nil
}

// ProcessJob runs the bulk matching pass for one job synchronously.
func (s *Service) ProcessJob(ctx context.Context, jobID string) (bulk.Stats, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return bulk.Stats{}, invalid("jobId is required")
	}
	return s.matcher.ProcessJob(ctx, jobID)
}

// ProcessPending runs the bulk matching pass for every pending job.
func (s *Service) ProcessPending(ctx context.Context) (int, error) {
	return s.matcher.ProcessPending(ctx)
}

type RankRequest struct {
	JobID          string   `json:"jobId" validate:"required"`
	FilterKeywords []string `json:"filterKeywords,omitempty"`
	RegionID       string   `json:"regionId,omitempty"`
	Strategy       string   `json:"strategy,omitempty"`
}

// FetchRanked returns the final shortlist of a job. The head of the filtered
// candidate list is scored first; scoring failures only leave entries unscored.
func (s *Service) FetchRanked(ctx context.Context, req RankRequest) (*records.RankedResult, error) {
	req.JobID = strings.TrimSpace(req.JobID)
	if req.JobID == "" {
		return nil, invalid("jobId is required")
	}

	name := strings.TrimSpace(req.Strategy)
	if name == "" {
		name = s.cfg.Strategy
	}
	strategy, err := ranking.Lookup(name)
	if err != nil {
		return nil, invalid("%v", err)
	}

	regionID := strings.TrimSpace(req.RegionID)
	if regionID != "" {
		if _, ok := s.catalog.Countries(regionID); !ok {
			return nil, invalid("unknown regionId %q", regionID)
		}
	}

	job, err := s.store.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	log := logger.WithFields(s.logger, logger.JobFields(job.JobID, "")...)

	filters := func() *filtering.Filtering {
		return filtering.New([]filtering.Filter{
			filtering.NewKeywords(req.FilterKeywords),
			filtering.NewRegion(regionID, s.catalog),
		}, log)
	}

	head := filters()
	log.Debug("filters configured", zap.Any("filters", head.Describe()))

	res, err := s.scoreHead(ctx, job, head, strategy)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.GetMatches(ctx, job.JobID)
	if err != nil {
		return nil, err
	}
	tail := filters()
	final, err := tail.RunFilters(ctx, rec.Matches)
	if err != nil {
		return nil, invalid("%v", err)
	}
	ranked := ranking.Finalize(final, strategy, s.cfg.TopResultsReturned)

	log.Info("ranked candidates fetched",
		zap.String("strategy", strategy.Name()),
		zap.Int("candidates", len(final)),
		zap.Int("scored", res.Scored),
		zap.Int("returned", len(ranked)),
		zap.Any("filter_steps", tail.Steps()),
	)

	return &records.RankedResult{JobDescription: job.WithoutEmbedding(), Matches: ranked}, nil
}

func (s *Service) scoreHead(ctx context.Context, job *records.JobDescription, f *filtering.Filtering, strategy ranking.Strategy) (scoring.Result, error) {
	unlock, err := s.locker.Lock(ctx, bulk.JobLockKey(job.JobID))
	if err != nil {
		return scoring.Result{}, err
	}
	defer unlock()

	rec, err := s.store.GetMatches(ctx, job.JobID)
	if err != nil {
		return scoring.Result{}, err
	}
	entries, err := f.RunFilters(ctx, rec.Matches)
	if err != nil {
		return scoring.Result{}, invalid("%v", err)
	}
	strategy.Order(entries)

	return s.scoring.Score(ctx, job, entries)
}
