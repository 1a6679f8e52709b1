package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spigell/resume-ranker/internal/normalize"
	"github.com/spigell/resume-ranker/internal/records"
)

// Memory is an in-process Store. Values are copied on the way in and out so
// callers cannot mutate stored state by accident.
type Memory struct {
	mu sync.RWMutex

	jobs    map[string]*records.JobDescription
	resumes map[string]*records.Resume
	texts   map[string]string
	matches map[string][]*records.MatchEntry
	reverse map[string]*records.ReverseRecord

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		jobs:    make(map[string]*records.JobDescription),
		resumes: make(map[string]*records.Resume),
		texts:   make(map[string]string),
		matches: make(map[string][]*records.MatchEntry),
		reverse: make(map[string]*records.ReverseRecord),
		now:     time.Now,
	}
}

func (m *Memory) GetJob(_ context.Context, jobID string) (*records.JobDescription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	c := *job
	return &c, nil
}

func (m *Memory) InsertJob(_ context.Context, job *records.JobDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.JobID]; ok {
		return fmt.Errorf("job %s: %w", job.JobID, ErrDuplicate)
	}
	c := *job
	m.jobs[job.JobID] = &c
	return nil
}

func (m *Memory) ListJobs(_ context.Context, state records.ProcessingState) ([]*records.JobDescription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*records.JobDescription, 0)
	for _, job := range m.jobs {
		if state != "" && job.ProcessingState != state {
			continue
		}
		c := *job
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out, nil
}

func (m *Memory) SetJobState(_ context.Context, jobID string, state records.ProcessingState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	job.ProcessingState = state
	return nil
}

func (m *Memory) DeleteJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.jobs[jobID]
	delete(m.jobs, jobID)
	delete(m.matches, jobID)
	m.pullReverseJobLocked(jobID)

	if !ok {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

func (m *Memory) GetResume(_ context.Context, resumeID string) (*records.Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.resumes[resumeID]
	if !ok {
		return nil, fmt.Errorf("resume %s: %w", resumeID, ErrNotFound)
	}
	c := *r
	return &c, nil
}

func (m *Memory) GetResumes(_ context.Context, resumeIDs []string) ([]*records.Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*records.Resume, 0, len(resumeIDs))
	for _, id := range resumeIDs {
		if r, ok := m.resumes[id]; ok {
			out = append(out, r.WithoutEmbedding())
		}
	}
	return out, nil
}

func (m *Memory) InsertResume(_ context.Context, resume *records.Resume) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.resumes[resume.ResumeID]; ok {
		return fmt.Errorf("resume %s: %w", resume.ResumeID, ErrDuplicate)
	}
	c := *resume
	m.resumes[resume.ResumeID] = &c
	return nil
}

func (m *Memory) ScanResumes(ctx context.Context, fn func(*records.Resume) error) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.resumes))
	for id := range m.resumes {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := m.GetResume(ctx, id)
		if err != nil {
			continue
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) SearchResumes(_ context.Context, q ResumeQuery) ([]*records.Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	countries := make(map[string]struct{}, len(q.Countries))
	for _, c := range q.Countries {
		countries[normalize.Country(c)] = struct{}{}
	}

	out := make([]*records.Resume, 0)
	for _, r := range m.resumes {
		if len(countries) > 0 {
			if _, ok := countries[normalize.Country(r.Country)]; !ok {
				continue
			}
		}
		if !containsAll(r.Keywords, q.Keywords) {
			continue
		}
		out = append(out, r.WithoutEmbedding())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ResumeID < out[j].ResumeID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

func (m *Memory) SetResumeState(_ context.Context, resumeID string, state records.ProcessingState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.resumes[resumeID]
	if !ok {
		return fmt.Errorf("resume %s: %w", resumeID, ErrNotFound)
	}
	r.ProcessingState = state
	return nil
}

func (m *Memory) DeleteResume(_ context.Context, resumeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.resumes[resumeID]
	delete(m.resumes, resumeID)
	delete(m.reverse, resumeID)
	for jobID, entries := range m.matches {
		m.matches[jobID] = withoutResume(entries, resumeID)
	}

	if !ok {
		return fmt.Errorf("resume %s: %w", resumeID, ErrNotFound)
	}
	return nil
}

func (m *Memory) PutResumeText(_ context.Context, text *records.ResumeText, replace bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.texts[text.ResumeID]; ok && !replace {
		return fmt.Errorf("resume text %s: %w", text.ResumeID, ErrDuplicate)
	}
	m.texts[text.ResumeID] = text.ResumeText
	return nil
}

func (m *Memory) GetResumeTexts(_ context.Context, resumeIDs []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(resumeIDs))
	for _, id := range resumeIDs {
		if t, ok := m.texts[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func (m *Memory) GetMatches(_ context.Context, jobID string) (*records.MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return &records.MatchRecord{JobID: jobID, Matches: cloneEntries(m.matches[jobID])}, nil
}

func (m *Memory) ReplaceMatches(_ context.Context, jobID string, entries []*records.MatchEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.matches[jobID] = cloneEntries(entries)
	return nil
}

func (m *Memory) UpsertMatch(_ context.Context, jobID string, entry *records.MatchEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *entry
	m.matches[jobID] = append(withoutResume(m.matches[jobID], entry.ResumeID), &c)
	return nil
}

func (m *Memory) SetAssessment(_ context.Context, jobID, resumeID string, a records.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.matches[jobID] {
		if e.ResumeID == resumeID {
			e.Assessment = a
			return nil
		}
	}
	return fmt.Errorf("match %s/%s: %w", jobID, resumeID, ErrNotFound)
}

func (m *Memory) GetReverse(_ context.Context, resumeID string) (*records.ReverseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.reverse[resumeID]
	if !ok {
		return &records.ReverseRecord{ResumeID: resumeID, Matches: []*records.ReverseEntry{}}, nil
	}
	c := *rec
	c.Matches = append([]*records.ReverseEntry(nil), rec.Matches...)
	return &c, nil
}

func (m *Memory) ReplaceReverse(_ context.Context, resumeID string, entries []*records.ReverseEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reverse[resumeID] = &records.ReverseRecord{
		ResumeID:    resumeID,
		Matches:     append([]*records.ReverseEntry{}, entries...),
		LastUpdated: m.today(),
	}
	return nil
}

func (m *Memory) PushReverse(_ context.Context, resumeID string, entry *records.ReverseEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.reverse[resumeID]
	if !ok {
		rec = &records.ReverseRecord{ResumeID: resumeID}
		m.reverse[resumeID] = rec
	}

	kept := rec.Matches[:0:0]
	for _, e := range rec.Matches {
		if e.JobID != entry.JobID {
			kept = append(kept, e)
		}
	}
	c := *entry
	rec.Matches = append(kept, &c)
	rec.LastUpdated = m.today()
	return nil
}

func (m *Memory) PullReverseJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pullReverseJobLocked(jobID)
	return nil
}

func (m *Memory) pullReverseJobLocked(jobID string) {
	for _, rec := range m.reverse {
		kept := rec.Matches[:0:0]
		for _, e := range rec.Matches {
			if e.JobID != jobID {
				kept = append(kept, e)
			}
		}
		rec.Matches = kept
	}
}

func (m *Memory) today() string {
	return m.now().UTC().Format(time.DateOnly)
}

func withoutResume(entries []*records.MatchEntry, resumeID string) []*records.MatchEntry {
	out := make([]*records.MatchEntry, 0, len(entries))
	for _, e := range entries {
		if e.ResumeID != resumeID {
			out = append(out, e)
		}
	}
	return out
}

func cloneEntries(entries []*records.MatchEntry) []*records.MatchEntry {
	out := make([]*records.MatchEntry, 0, len(entries))
	for _, e := range entries {
		c := *e
		out = append(out, &c)
	}
	return out
}
