package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/logger"
	"github.com/spigell/resume-ranker/internal/normalize"
	"github.com/spigell/resume-ranker/internal/records"
	"github.com/spigell/resume-ranker/internal/store"
)

type ResumeRequest struct {
	Resume records.Resume
	Update bool
}

// ResumeResult reports what happened to an ingested resume. A failed matching
// pass is reported in MatchError; the resume itself is stored.
type ResumeResult struct {
	ResumeID        string   `json:"resumeId"`
	TotalExperience int      `json:"totalExperience"`
	MissingKeys     []string `json:"missingKeys,omitempty"`
	MatchedJobs     int      `json:"matchedJobs"`
	MatchError      string   `json:"matchError,omitempty"`
}

// IngestResume stores a resume with its derived fields and matches it
// against every stored job.
func (s *Service) IngestResume(ctx context.Context, req ResumeRequest) (*ResumeResult, error) {
	resume := req.Resume
	resume.ResumeID = strings.TrimSpace(resume.ResumeID)
	if resume.ResumeID == "" {
		return nil, invalid("resumeId is required")
	}
	log := logger.WithFields(s.logger, logger.JobFields("", resume.ResumeID)...)

	if req.Update {
		if err := s.store.DeleteResume(ctx, resume.ResumeID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	} else if _, err := s.store.GetResume(ctx, resume.ResumeID); err == nil {
		return nil, fmt.Errorf("resume %s: %w", resume.ResumeID, store.ErrDuplicate)
	}

	result := &ResumeResult{ResumeID: resume.ResumeID, MissingKeys: missingKeys(&resume)}
	if len(result.MissingKeys) > 0 {
		log.Info("resume has missing keys", zap.Strings("keys", result.MissingKeys))
	}

	resume.TotalExperience = normalize.TotalExperience(resume.JobExperiences)
	result.TotalExperience = resume.TotalExperience

	payload, err := json.Marshal(resume.EmbeddingSource())
	if err != nil {
		return nil, fmt.Errorf("marshal resume: %w", err)
	}
	embedding, err := s.embedder.Embed(ctx, string(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: embed resume: %v", ErrUpstream, err)
	}
	resume.Embedding = embedding
	resume.ProcessingState = records.StatePending

	if err := s.store.InsertResume(ctx, &resume); err != nil {
		return nil, err
	}

	matched, err := s.matcher.ProcessResume(ctx, resume.ResumeID)
	result.MatchedJobs = matched
	if err != nil {
		log.Warn("matching resume failed", zap.Error(err))
		result.MatchError = err.Error()
	}

	log.Info("resume stored", zap.Int("matched_jobs", matched), zap.Int("total_experience", resume.TotalExperience))
	return result, nil
}

func missingKeys(r *records.Resume) []string {
	checks := []struct {
		key     string
		present bool
	}{
		{"name", strings.TrimSpace(r.Name) != ""},
		{"email", strings.TrimSpace(r.Email) != ""},
		{"contactNo", strings.TrimSpace(r.ContactNo) != ""},
		{"country", strings.TrimSpace(r.Country) != ""},
		{"educationalQualifications", len(r.EducationalQualifications) > 0},
		{"jobExperiences", len(r.JobExperiences) > 0},
		{"skills", len(r.Skills) > 0},
		{"keywords", len(r.Keywords) > 0},
	}

	var missing []string
	for _, c := range checks {
		if !c.present {
			missing = append(missing, c.key)
		}
	}
	return missing
}

// PutResumeText stores the free-text body of a resume. Without update an
// existing body is a duplicate.
func (s *Service) PutResumeText(ctx context.Context, resumeID, text string, update bool) error {
	resumeID = strings.TrimSpace(resumeID)
	if resumeID == "" {
		return invalid("resumeId is required")
	}
	if strings.TrimSpace(text) == "" {
		return invalid("resumeText is required")
	}
	return s.store.PutResumeText(ctx, &records.ResumeText{ResumeID: resumeID, ResumeText: text}, update)
}

// DeleteResume removes a resume from the corpus, its reverse record and every
// job's match record, including entries written by passes that were running.
func (s *Service) DeleteResume(ctx context.Context, resumeID string) error {
	resumeID = strings.TrimSpace(resumeID)
	if resumeID == "" {
		return invalid("resumeId is required")
	}
	return s.matcher.RemoveResume(ctx, resumeID)
}

// ResumeView is a resume with the jobs it matched.
type ResumeView struct {
	Resume  *records.Resume         `json:"resume"`
	Matches []*records.ReverseEntry `json:"matches"`
}

func (s *Service) ResumeMatches(ctx context.Context, resumeID string) (*ResumeView, error) {
	resumeID = strings.TrimSpace(resumeID)
	if resumeID == "" {
		return nil, invalid("resumeId is required")
	}

	resume, err := s.store.GetResume(ctx, resumeID)
	if err != nil {
		return nil, err
	}
	rev, err := s.store.GetReverse(ctx, resumeID)
	if err != nil {
		return nil, err
	}
	return &ResumeView{Resume: resume.WithoutEmbedding(), Matches: rev.Matches}, nil
}

// SearchResumes lists resumes located in the region that carry every keyword.
func (s *Service) SearchResumes(ctx context.Context, regionID string, keywords []string, limit int) ([]*records.Resume, error) {
	q := store.ResumeQuery{Keywords: keywords, Limit: limit}

	if regionID = strings.TrimSpace(regionID); regionID != "" {
		countries, ok := s.catalog.Countries(regionID)
		if !ok {
			return nil, invalid("unknown regionId %q", regionID)
		}
		q.Countries = countries
	}
	if len(q.Countries) == 0 && len(q.Keywords) == 0 {
		return nil, invalid("regionId or keywords is required")
	}

	return s.store.SearchResumes(ctx, q)
}
