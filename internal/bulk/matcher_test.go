package bulk

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/resume-ranker/internal/config"
	"github.com/spigell/resume-ranker/internal/lock"
	"github.com/spigell/resume-ranker/internal/records"
	"github.com/spigell/resume-ranker/internal/store"
	"github.com/spigell/resume-ranker/internal/trigger"
)

func newMatcher(t *testing.T, st store.Store, cfg config.Matching, log *zap.Logger) *Matcher {
	t.Helper()
	m, err := New(st, lock.NewLocal(), cfg, log)
	require.NoError(t, err)
	return m
}

func pythonAWSJob() *records.JobDescription {
	return &records.JobDescription{
		JobID:          "job-1",
		JobDescription: "Python developer with AWS",
		StructuredQuery: records.StructuredQuery{
			Keywords:       []string{"python", "aws"},
			JobExperiences: []records.Experience{{Title: "Backend Engineer", Duration: 3}},
		},
		Embedding:       []float64{1, 0},
		ProcessingState: records.StatePending,
	}
}

func matchIDs(rec *records.MatchRecord) []string {
	out := make([]string, 0, len(rec.Matches))
	for _, e := range rec.Matches {
		out = append(out, e.ResumeID)
	}
	return out
}

func TestProcessJobRanksByOverlapCount(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.InsertJob(ctx, pythonAWSJob()))

	// A: similarity 0.92, overlap 1. B: similarity 0.80, overlap 2.
	require.NoError(t, st.InsertResume(ctx, &records.Resume{
		ResumeID:       "A",
		Keywords:       []string{"python", "docker"},
		Embedding:      []float64{0.92, 0.39191835884530846},
		JobExperiences: []records.Experience{{Title: " backend engineer", Duration: "4"}},
	}))
	require.NoError(t, st.InsertResume(ctx, &records.Resume{
		ResumeID:  "B",
		Keywords:  []string{"python"},
		Skills:    []records.Skill{{SkillName: "aws"}},
		Embedding: []float64{0.8, 0.6},
	}))
	require.NoError(t, st.InsertResume(ctx, &records.Resume{
		ResumeID:  "C",
		Keywords:  []string{"java"},
		Embedding: []float64{1, 0},
	}))

	m := newMatcher(t, st, config.DefaultMatching(), nil)
	stats, err := m.ProcessJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, Stats{Scanned: 3, Matched: 2, Retained: 2}, stats)

	rec, err := st.GetMatches(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, []string{"B", "A"}, matchIDs(rec))

	assert.Equal(t, []string{"aws", "python"}, rec.Matches[0].CommonKeys)
	assert.InDelta(t, 0.92, rec.Matches[1].SimilarityScore, 1e-9)
	require.Len(t, rec.Matches[1].CommonExperiences, 1)
	assert.Equal(t, 1.0, rec.Matches[1].CommonExperiences[0].MatchScore)
	for _, e := range rec.Matches {
		assert.NotEmpty(t, e.CommonKeys)
	}

	job, err := st.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, records.StateCompleted, job.ProcessingState)

	rev, err := st.GetReverse(ctx, "A")
	require.NoError(t, err)
	require.Len(t, rev.Matches, 1)
	assert.Equal(t, "job-1", rev.Matches[0].JobID)
}

func TestProcessJobCapsAtTopLimit(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.InsertJob(ctx, pythonAWSJob()))

	for i := range 8 {
		keywords := []string{"python"}
		if i%2 == 0 {
			keywords = append(keywords, "aws")
		}
		require.NoError(t, st.InsertResume(ctx, &records.Resume{
			ResumeID:  fmt.Sprintf("r%d", i),
			Keywords:  keywords,
			Embedding: []float64{1, float64(i)},
		}))
	}

	cfg := config.DefaultMatching()
	cfg.TopLimit = 3
	m := newMatcher(t, st, cfg, nil)

	stats, err := m.ProcessJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 8, stats.Matched)
	assert.Equal(t, 3, stats.Retained)

	rec, err := st.GetMatches(ctx, "job-1")
	require.NoError(t, err)
	// Overlap 2 first, then higher similarity (smaller second component).
	assert.Equal(t, []string{"r0", "r2", "r4"}, matchIDs(rec))

	rev, err := st.GetReverse(ctx, "r6")
	require.NoError(t, err)
	assert.Empty(t, rev.Matches)
}

func TestProcessJobIsIdempotentAndKeepsScores(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.InsertJob(ctx, pythonAWSJob()))
	require.NoError(t, st.InsertResume(ctx, &records.Resume{ResumeID: "A", Keywords: []string{"python"}, Embedding: []float64{1, 0}}))

	m := newMatcher(t, st, config.DefaultMatching(), nil)
	_, err := m.ProcessJob(ctx, "job-1")
	require.NoError(t, err)

	score := 77.0
	require.NoError(t, st.SetAssessment(ctx, "job-1", "A", records.Assessment{AIScore: &score}))

	_, err = m.ProcessJob(ctx, "job-1")
	require.NoError(t, err)

	rec, err := st.GetMatches(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, rec.Matches, 1)
	assert.Equal(t, 77.0, rec.Matches[0].Score())

	rev, err := st.GetReverse(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, rev.Matches, 1)
}

func TestProcessJobDimensionMismatchWarns(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.InsertJob(ctx, pythonAWSJob()))
	require.NoError(t, st.InsertResume(ctx, &records.Resume{ResumeID: "A", Keywords: []string{"aws"}, Embedding: []float64{1, 0, 0}}))

	core, logs := observer.New(zapcore.WarnLevel)
	m := newMatcher(t, st, config.DefaultMatching(), zap.New(core))

	_, err := m.ProcessJob(ctx, "job-1")
	require.NoError(t, err)

	rec, err := st.GetMatches(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, rec.Matches, 1)
	assert.Zero(t, rec.Matches[0].SimilarityScore)
	assert.Equal(t, 1, logs.FilterMessageSnippet("dimensions differ").Len())
}

func TestProcessJobUnknownJob(t *testing.T) {
	m := newMatcher(t, store.NewMemory(), config.DefaultMatching(), nil)
	_, err := m.ProcessJob(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.InsertJob(ctx, pythonAWSJob()))
	done := pythonAWSJob()
	done.JobID = "job-2"
	done.ProcessingState = records.StateCompleted
	require.NoError(t, st.InsertJob(ctx, done))

	m := newMatcher(t, st, config.DefaultMatching(), nil)
	n, err := m.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := st.ListJobs(ctx, records.StatePending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessResume(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.InsertJob(ctx, pythonAWSJob()))
	other := pythonAWSJob()
	other.JobID = "job-2"
	other.StructuredQuery.Keywords = []string{"golang"}
	require.NoError(t, st.InsertJob(ctx, other))

	require.NoError(t, st.InsertResume(ctx, &records.Resume{ResumeID: "A", Keywords: []string{"python"}, Embedding: []float64{0, 1}}))
	score := 60.0
	require.NoError(t, st.ReplaceMatches(ctx, "job-1", []*records.MatchEntry{
		{ResumeID: "A", CommonKeys: []string{"old"}, Assessment: records.Assessment{AIScore: &score}},
		{ResumeID: "Z", CommonKeys: []string{"python"}},
	}))

	m := newMatcher(t, st, config.DefaultMatching(), nil)
	n, err := m.ProcessResume(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := st.GetMatches(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, rec.Matches, 2)
	var a *records.MatchEntry
	for _, e := range rec.Matches {
		if e.ResumeID == "A" {
			a = e
		}
	}
	require.NotNil(t, a)
	assert.Equal(t, []string{"python"}, a.CommonKeys)
	assert.Equal(t, 60.0, a.Score())

	rev, err := st.GetReverse(ctx, "A")
	require.NoError(t, err)
	require.Len(t, rev.Matches, 1)
	assert.Equal(t, "job-1", rev.Matches[0].JobID)

	resume, err := st.GetResume(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, records.StateCompleted, resume.ProcessingState)
}

func TestHandleDispatchesTasks(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.InsertJob(ctx, pythonAWSJob()))

	m := newMatcher(t, st, config.DefaultMatching(), nil)
	require.NoError(t, m.Handle(ctx, trigger.NewTask("")))

	job, err := st.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, records.StateCompleted, job.ProcessingState)

	assert.ErrorIs(t, m.Handle(ctx, trigger.NewTask("nope")), store.ErrNotFound)
}

func TestProcessResumePrunesStaleEntry(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.InsertJob(ctx, pythonAWSJob()))
	require.NoError(t, st.InsertResume(ctx, &records.Resume{ResumeID: "A", Keywords: []string{"java"}}))
	require.NoError(t, st.ReplaceMatches(ctx, "job-1", []*records.MatchEntry{
		{ResumeID: "A", CommonKeys: []string{"python"}},
		{ResumeID: "Z", CommonKeys: []string{"python"}},
	}))

	m := newMatcher(t, st, config.DefaultMatching(), nil)
	n, err := m.ProcessResume(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rec, err := st.GetMatches(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Z"}, matchIDs(rec))
}

func TestProcessResumeRespectsTopLimit(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	job := pythonAWSJob()
	require.NoError(t, st.InsertJob(ctx, job))

	existing := []*records.MatchEntry{
		{ResumeID: "a", CommonKeys: []string{"python"}, SimilarityScore: 0.5},
		{ResumeID: "b", CommonKeys: []string{"python"}, SimilarityScore: 0.4},
	}
	require.NoError(t, st.ReplaceMatches(ctx, "job-1", existing))
	for _, e := range existing {
		require.NoError(t, st.PushReverse(ctx, e.ResumeID, e.Reverse(job)))
	}

	cfg := config.DefaultMatching()
	cfg.TopLimit = 2
	m := newMatcher(t, st, cfg, nil)

	require.NoError(t, st.InsertResume(ctx, &records.Resume{ResumeID: "strong", Keywords: []string{"python", "aws"}, Embedding: []float64{1, 0}}))
	n, err := m.ProcessResume(ctx, "strong")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := st.GetMatches(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"strong", "a"}, matchIDs(rec))

	rev, err := st.GetReverse(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, rev.Matches)

	require.NoError(t, st.InsertResume(ctx, &records.Resume{ResumeID: "weak", Keywords: []string{"python"}, Embedding: []float64{0, 1}}))
	n, err = m.ProcessResume(ctx, "weak")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rec, err = st.GetMatches(ctx, "job-1")
	require.NoError(t, err)
	assert.Len(t, rec.Matches, 2)
	assert.NotContains(t, matchIDs(rec), "weak")
}

func TestRemoveResumeWaitsForRunningPass(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	job := pythonAWSJob()
	require.NoError(t, st.InsertJob(ctx, job))
	require.NoError(t, st.InsertResume(ctx, &records.Resume{ResumeID: "A", Keywords: []string{"python"}}))

	locker := lock.NewLocal()
	m, err := New(st, locker, config.DefaultMatching(), nil)
	require.NoError(t, err)

	// A pass that already scanned "A" holds the job lock.
	unlock, err := locker.Lock(ctx, JobLockKey("job-1"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.RemoveResume(ctx, "A") }()

	require.Eventually(t, func() bool {
		_, err := st.GetResume(ctx, "A")
		return errors.Is(err, store.ErrNotFound)
	}, time.Second, time.Millisecond)

	stale := &records.MatchEntry{ResumeID: "A", CommonKeys: []string{"python"}}
	require.NoError(t, st.ReplaceMatches(ctx, "job-1", []*records.MatchEntry{stale}))
	require.NoError(t, st.PushReverse(ctx, "A", stale.Reverse(job)))
	unlock()

	require.NoError(t, <-done)

	rec, err := st.GetMatches(ctx, "job-1")
	require.NoError(t, err)
	assert.Empty(t, rec.Matches)
	rev, err := st.GetReverse(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, rev.Matches)

	assert.ErrorIs(t, m.RemoveResume(ctx, "A"), store.ErrNotFound)
}
