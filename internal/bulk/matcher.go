// Package bulk computes the per-job candidate lists over the whole resume corpus.
package bulk

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/config"
	"github.com/spigell/resume-ranker/internal/lock"
	"github.com/spigell/resume-ranker/internal/logger"
	"github.com/spigell/resume-ranker/internal/matching"
	"github.com/spigell/resume-ranker/internal/ranking"
	"github.com/spigell/resume-ranker/internal/records"
	"github.com/spigell/resume-ranker/internal/store"
	"github.com/spigell/resume-ranker/internal/trigger"
)

// Matcher builds and persists match records.
type Matcher struct {
	store  store.Store
	locker lock.Locker
	cfg    config.Matching
	logger *zap.Logger
}

// Stats describes one ProcessJob run.
type Stats struct {
	Scanned  int
	Skipped  int
	Matched  int
	Retained int
}

func New(st store.Store, locker lock.Locker, cfg config.Matching, log *zap.Logger) (*Matcher, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{store: st, locker: locker, cfg: cfg, logger: log}, nil
}

// JobLockKey is the lock key that serializes all writes to a job's match record.
func JobLockKey(jobID string) string { return "job:" + jobID }

// Entry scores resume against job. It returns nil when the two share no
// keyword or skill.
func (m *Matcher) Entry(job *records.JobDescription, resume *records.Resume) *records.MatchEntry {
	tokens := resume.Tokens()
	if len(tokens) == 0 {
		return nil
	}
	common := matching.Overlap(job.StructuredQuery.Keywords, tokens)
	if len(common) == 0 {
		return nil
	}

	similarity, err := matching.Cosine(job.Embedding, resume.Embedding)
	if err != nil {
		m.logger.Warn("embedding dimensions differ, similarity set to zero",
			append(logger.JobFields(job.JobID, resume.ResumeID),
				zap.Int("job_dims", len(job.Embedding)),
				zap.Int("resume_dims", len(resume.Embedding)),
			)...,
		)
		similarity = 0
	}

	return &records.MatchEntry{
		ResumeID:          resume.ResumeID,
		Profile:           resume.Profile,
		CommonKeys:        common,
		SimilarityScore:   similarity,
		CommonExperiences: matching.CommonExperiences(resume.JobExperiences, job.StructuredQuery.JobExperiences, m.cfg.Threshold()),
	}
}

// ProcessJob rebuilds the match record of jobID from the resume corpus. It is
// idempotent and keeps assessments already stored for retained resumes.
func (m *Matcher) ProcessJob(ctx context.Context, jobID string) (Stats, error) {
	var stats Stats
	log := logger.WithFields(m.logger, logger.JobFields(jobID, "")...)

	unlock, err := m.locker.Lock(ctx, JobLockKey(jobID))
	if err != nil {
		return stats, fmt.Errorf("lock job %s: %w", jobID, err)
	}
	defer unlock()

	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return stats, err
	}

	entries := make([]*records.MatchEntry, 0)
	err = m.store.ScanResumes(ctx, func(r *records.Resume) error {
		stats.Scanned++
		if r.ResumeID == "" {
			stats.Skipped++
			log.Warn("skipping resume without id")
			return nil
		}
		if e := m.Entry(job, r); e != nil {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("scan resumes: %w", err)
	}
	stats.Matched = len(entries)

	ranking.Overlap{}.Order(entries)
	if len(entries) > m.cfg.TopLimit {
		entries = entries[:m.cfg.TopLimit]
	}
	stats.Retained = len(entries)

	previous, err := m.store.GetMatches(ctx, jobID)
	if err != nil {
		return stats, fmt.Errorf("load previous matches: %w", err)
	}
	carryAssessments(entries, previous.Matches)

	if err := m.store.ReplaceMatches(ctx, jobID, entries); err != nil {
		return stats, fmt.Errorf("store matches: %w", err)
	}
	if err := m.store.PullReverseJob(ctx, jobID); err != nil {
		return stats, fmt.Errorf("prune reverse index: %w", err)
	}
	for _, e := range entries {
		if err := m.store.PushReverse(ctx, e.ResumeID, e.Reverse(job)); err != nil {
			return stats, fmt.Errorf("update reverse index for %s: %w", e.ResumeID, err)
		}
	}
	if err := m.store.SetJobState(ctx, jobID, records.StateCompleted); err != nil {
		return stats, err
	}

	log.Info("job matched",
		zap.Int("scanned", stats.Scanned),
		zap.Int("matched", stats.Matched),
		zap.Int("retained", stats.Retained),
	)
	return stats, nil
}

// ProcessPending runs ProcessJob for every pending job. A failing job is
// logged and does not stop the others; the joined error is returned.
func (m *Matcher) ProcessPending(ctx context.Context) (int, error) {
	jobs, err := m.store.ListJobs(ctx, records.StatePending)
	if err != nil {
		return 0, err
	}

	var (
		done int
		errs []error
	)
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := m.ProcessJob(ctx, job.JobID); err != nil {
			m.logger.Error("processing pending job failed", append(logger.JobFields(job.JobID, ""), zap.Error(err))...)
			errs = append(errs, fmt.Errorf("job %s: %w", job.JobID, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// ProcessResume matches a single resume against every job and rewrites its
// reverse record. Jobs it no longer overlaps lose their stale entry for the
// resume, and no job record grows past TopLimit.
func (m *Matcher) ProcessResume(ctx context.Context, resumeID string) (int, error) {
	resume, err := m.store.GetResume(ctx, resumeID)
	if err != nil {
		return 0, err
	}
	jobs, err := m.store.ListJobs(ctx, "")
	if err != nil {
		return 0, err
	}

	reverse := make([]*records.ReverseEntry, 0)
	for _, job := range jobs {
		kept, err := m.reconcile(ctx, job, resume)
		if err != nil {
			return len(reverse), err
		}
		if kept != nil {
			reverse = append(reverse, kept.Reverse(job))
		}
	}

	if err := m.store.ReplaceReverse(ctx, resumeID, reverse); err != nil {
		return len(reverse), fmt.Errorf("store reverse index: %w", err)
	}
	if err := m.store.SetResumeState(ctx, resumeID, records.StateCompleted); err != nil {
		return len(reverse), err
	}

	m.logger.Info("resume matched", append(logger.JobFields("", resumeID), zap.Int("jobs", len(reverse)))...)
	return len(reverse), nil
}

// reconcile brings the match record of job up to date for one resume under
// the job lock. It returns the stored entry, or nil when the resume is not
// part of the record afterwards.
func (m *Matcher) reconcile(ctx context.Context, job *records.JobDescription, resume *records.Resume) (*records.MatchEntry, error) {
	unlock, err := m.locker.Lock(ctx, JobLockKey(job.JobID))
	if err != nil {
		return nil, fmt.Errorf("lock job %s: %w", job.JobID, err)
	}
	defer unlock()

	previous, err := m.store.GetMatches(ctx, job.JobID)
	if err != nil {
		return nil, err
	}
	others := make([]*records.MatchEntry, 0, len(previous.Matches))
	stale := false
	for _, p := range previous.Matches {
		if p.ResumeID == resume.ResumeID {
			stale = true
			continue
		}
		others = append(others, p)
	}

	e := m.Entry(job, resume)
	if e == nil {
		if !stale {
			return nil, nil
		}
		if err := m.store.ReplaceMatches(ctx, job.JobID, others); err != nil {
			return nil, fmt.Errorf("prune match %s/%s: %w", job.JobID, resume.ResumeID, err)
		}
		return nil, nil
	}
	carryAssessments([]*records.MatchEntry{e}, previous.Matches)

	if len(others) < m.cfg.TopLimit {
		if err := m.store.UpsertMatch(ctx, job.JobID, e); err != nil {
			return nil, fmt.Errorf("store match for job %s: %w", job.JobID, err)
		}
		return e, nil
	}

	merged := append(others, e)
	ranking.Overlap{}.Order(merged)
	evicted := merged[m.cfg.TopLimit:]
	merged = merged[:m.cfg.TopLimit]
	if err := m.store.ReplaceMatches(ctx, job.JobID, merged); err != nil {
		return nil, fmt.Errorf("store matches of job %s: %w", job.JobID, err)
	}

	var kept *records.MatchEntry
	for _, x := range merged {
		if x == e {
			kept = e
		}
	}
	for _, x := range evicted {
		if x == e {
			continue
		}
		if err := m.dropReverse(ctx, x.ResumeID, job.JobID); err != nil {
			return kept, err
		}
	}
	return kept, nil
}

func (m *Matcher) dropReverse(ctx context.Context, resumeID, jobID string) error {
	rec, err := m.store.GetReverse(ctx, resumeID)
	if err != nil {
		return fmt.Errorf("load reverse index of %s: %w", resumeID, err)
	}
	kept := make([]*records.ReverseEntry, 0, len(rec.Matches))
	for _, r := range rec.Matches {
		if r.JobID != jobID {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(rec.Matches) {
		return nil
	}
	if err := m.store.ReplaceReverse(ctx, resumeID, kept); err != nil {
		return fmt.Errorf("store reverse index of %s: %w", resumeID, err)
	}
	return nil
}

// RemoveResume deletes a resume with its match and reverse entries. It then
// waits for matching passes already holding a job lock and deletes again
// whatever those passes wrote for the resume.
func (m *Matcher) RemoveResume(ctx context.Context, resumeID string) error {
	if err := m.store.DeleteResume(ctx, resumeID); err != nil {
		return err
	}

	jobs, err := m.store.ListJobs(ctx, "")
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	for _, job := range jobs {
		unlock, err := m.locker.Lock(ctx, JobLockKey(job.JobID))
		if err != nil {
			return fmt.Errorf("lock job %s: %w", job.JobID, err)
		}
		unlock()
	}

	if err := m.store.DeleteResume(ctx, resumeID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	m.logger.Info("resume removed", logger.JobFields("", resumeID)...)
	return nil
}

func carryAssessments(entries, previous []*records.MatchEntry) {
	if len(previous) == 0 {
		return
	}
	scored := make(map[string]records.Assessment, len(previous))
	for _, p := range previous {
		if p.Scored() {
			scored[p.ResumeID] = p.Assessment
		}
	}
	for _, e := range entries {
		if a, ok := scored[e.ResumeID]; ok {
			e.Assessment = a
		}
	}
}

// Handle runs the matching pass a background task asks for. A task without a
// job id processes every pending job.
func (m *Matcher) Handle(ctx context.Context, task trigger.Task) error {
	if task.JobID == "" {
		_, err := m.ProcessPending(ctx)
		return err
	}
	_, err := m.ProcessJob(ctx, task.JobID)
	return err
}
