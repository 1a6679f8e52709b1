// Package store persists resumes, job descriptions and the match records that link them.
package store

import (
	"context"
	"errors"

	"github.com/spigell/resume-ranker/internal/records"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// ResumeQuery selects resumes by normalized country and required keywords.
type ResumeQuery struct {
	Countries []string
	Keywords  []string
	Limit     int
}

// Store is the document store used by the pipeline.
//
// Match records and the reverse index are kept consistent by the callers; the
// delete operations cascade into both so no dangling references remain.
type Store interface {
	GetJob(ctx context.Context, jobID string) (*records.JobDescription, error)
	InsertJob(ctx context.Context, job *records.JobDescription) error
	ListJobs(ctx context.Context, state records.ProcessingState) ([]*records.JobDescription, error)
	SetJobState(ctx context.Context, jobID string, state records.ProcessingState) error
	DeleteJob(ctx context.Context, jobID string) error

	GetResume(ctx context.Context, resumeID string) (*records.Resume, error)
	GetResumes(ctx context.Context, resumeIDs []string) ([]*records.Resume, error)
	InsertResume(ctx context.Context, resume *records.Resume) error
	ScanResumes(ctx context.Context, fn func(*records.Resume) error) error
	SearchResumes(ctx context.Context, q ResumeQuery) ([]*records.Resume, error)
	SetResumeState(ctx context.Context, resumeID string, state records.ProcessingState) error
	DeleteResume(ctx context.Context, resumeID string) error

	PutResumeText(ctx context.Context, text *records.ResumeText, replace bool) error
	GetResumeTexts(ctx context.Context, resumeIDs []string) (map[string]string, error)

	// GetMatches returns an empty record when the job has no matches yet.
	GetMatches(ctx context.Context, jobID string) (*records.MatchRecord, error)
	ReplaceMatches(ctx context.Context, jobID string, entries []*records.MatchEntry) error
	// UpsertMatch replaces the entry of entry.ResumeID inside the job's record.
	UpsertMatch(ctx context.Context, jobID string, entry *records.MatchEntry) error
	// SetAssessment point-updates one entry of a job's record.
	SetAssessment(ctx context.Context, jobID, resumeID string, a records.Assessment) error

	GetReverse(ctx context.Context, resumeID string) (*records.ReverseRecord, error)
	ReplaceReverse(ctx context.Context, resumeID string, entries []*records.ReverseEntry) error
	// PushReverse replaces the entry for entry.JobID inside the resume's reverse record.
	PushReverse(ctx context.Context, resumeID string, entry *records.ReverseEntry) error
	// PullReverseJob removes a job from every reverse record.
	PullReverseJob(ctx context.Context, jobID string) error
}
