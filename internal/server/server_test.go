package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-ranker/internal/bulk"
	"github.com/spigell/resume-ranker/internal/records"
	"github.com/spigell/resume-ranker/internal/service"
	"github.com/spigell/resume-ranker/internal/store"
)

type fakeRanker struct {
	jobReq    service.JobRequest
	rankReq   service.RankRequest
	resumeReq service.ResumeRequest
	text      string
	update    bool
	region    string
	keywords  []string
	limit     int
	err       error
}

func (f *fakeRanker) IngestJob(_ context.Context, req service.JobRequest) (*records.JobDescription, error) {
	f.jobReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &records.JobDescription{JobID: req.JobID, JobDescription: req.JobDescription, ProcessingState: records.StatePending}, nil
}

func (f *fakeRanker) DeleteJob(context.Context, string) error { return f.err }

func (f *fakeRanker) ProcessJob(context.Context, string) (bulk.Stats, error) {
	return bulk.Stats{Scanned: 4, Matched: 2, Retained: 2}, f.err
}

func (f *fakeRanker) FetchRanked(_ context.Context, req service.RankRequest) (*records.RankedResult, error) {
	f.rankReq = req
	if f.err != nil {
		return nil, f.err
	}
	score := 88.0
	return &records.RankedResult{
		JobDescription: &records.JobDescription{JobID: req.JobID},
		Matches: []records.RankedMatch{{
			MatchEntry: &records.MatchEntry{ResumeID: "r1", CommonKeys: []string{"python"}, Assessment: records.Assessment{AIScore: &score}},
			Rank:       1,
		}},
	}, nil
}

func (f *fakeRanker) IngestResume(_ context.Context, req service.ResumeRequest) (*service.ResumeResult, error) {
	f.resumeReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &service.ResumeResult{ResumeID: req.Resume.ResumeID, MatchedJobs: 1}, nil
}

func (f *fakeRanker) PutResumeText(_ context.Context, _ string, text string, update bool) error {
	f.text, f.update = text, update
	return f.err
}

func (f *fakeRanker) DeleteResume(context.Context, string) error { return f.err }

func (f *fakeRanker) ResumeMatches(_ context.Context, id string) (*service.ResumeView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.ResumeView{Resume: &records.Resume{ResumeID: id}, Matches: []*records.ReverseEntry{{JobID: "job-1"}}}, nil
}

func (f *fakeRanker) SearchResumes(_ context.Context, regionID string, keywords []string, limit int) ([]*records.Resume, error) {
	f.region, f.keywords, f.limit = regionID, keywords, limit
	return []*records.Resume{{ResumeID: "r1"}}, f.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func newServer(t *testing.T, f *fakeRanker) *Server {
	t.Helper()
	s, err := New(f, nil)
	require.NoError(t, err)
	return s
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateJob(t *testing.T) {
	f := &fakeRanker{}
	s := newServer(t, f)

	rec := do(t, s, http.MethodPost, "/jobs", `{"jobId":"job-1","jobDescription":"python","update":"yes","structured_query":{"keywords":["python"]}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, f.jobReq.Update)
	assert.Equal(t, []string{"python"}, f.jobReq.StructuredQuery.Keywords)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = do(t, s, http.MethodPost, "/jobs", `{"jobId":"job-1","update":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, CodeValidationFailed, body.Code)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "JobDescription", body.Details[0].Field)
	assert.NotEmpty(t, body.RequestID)

	rec = do(t, s, http.MethodPost, "/jobs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidJSON, decodeError(t, rec).Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{err: fmt.Errorf("job x: %w", store.ErrNotFound), status: http.StatusNotFound, code: CodeNotFound},
		{err: fmt.Errorf("job x: %w", store.ErrDuplicate), status: http.StatusConflict, code: CodeAlreadyExists},
		{err: fmt.Errorf("%w: bad", service.ErrInvalidInput), status: http.StatusBadRequest, code: CodeInvalidRequest},
		{err: fmt.Errorf("%w: quota", service.ErrUpstream), status: http.StatusBadGateway, code: CodeUpstreamFailed},
		{err: errors.New("disk on fire"), status: http.StatusInternalServerError, code: CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			s := newServer(t, &fakeRanker{err: tt.err})
			rec := do(t, s, http.MethodDelete, "/jobs/x", "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestFetchRanked(t *testing.T) {
	f := &fakeRanker{}
	s := newServer(t, f)

	rec := do(t, s, http.MethodPost, "/jobs/ranked", `{"jobId":"job-1","filterKeywords":["aws"],"regionId":"r","strategy":"recency"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.RankRequest{JobID: "job-1", FilterKeywords: []string{"aws"}, RegionID: "r", Strategy: "recency"}, f.rankReq)

	var body struct {
		JobDescription map[string]any   `json:"jobDescription"`
		Matches        []map[string]any `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Matches, 1)
	assert.Equal(t, "r1", body.Matches[0]["resumeId"])
	assert.EqualValues(t, 1, body.Matches[0]["rank"])
	assert.EqualValues(t, 88, body.Matches[0]["aiScore"])
	assert.NotContains(t, body.JobDescription, "embedding")

	rec = do(t, s, http.MethodPost, "/jobs/ranked", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResumeRoutes(t *testing.T) {
	f := &fakeRanker{}
	s := newServer(t, f)

	rec := do(t, s, http.MethodPost, "/resumes", `{"resumeId":"r1","country":"India","keywords":["go"],"update":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "India", f.resumeReq.Resume.Country)
	assert.True(t, f.resumeReq.Update)

	rec = do(t, s, http.MethodPut, "/resumes/r1/text", `{"resumeText":"ten years of go"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ten years of go", f.text)
	assert.False(t, f.update)

	rec = do(t, s, http.MethodGet, "/resumes?regionId=abc&keywords=go,%20aws,&limit=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", f.region)
	assert.Equal(t, []string{"go", "aws"}, f.keywords)
	assert.Equal(t, 3, f.limit)

	rec = do(t, s, http.MethodGet, "/resumes?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/resumes/r1/matches", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"jobId":"job-1"`)

	rec = do(t, s, http.MethodDelete, "/resumes/r1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProcessJobAndHealth(t *testing.T) {
	s := newServer(t, &fakeRanker{})

	rec := do(t, s, http.MethodPost, "/jobs/job-1/process", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jobId":"job-1","scanned":4,"matched":2,"retained":2}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newServer(t, &fakeRanker{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}
