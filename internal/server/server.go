// Package server exposes the ranker over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/bulk"
	"github.com/spigell/resume-ranker/internal/records"
	"github.com/spigell/resume-ranker/internal/service"
)

// Ranker is the set of operations served over HTTP.
type Ranker interface {
	IngestJob(ctx context.Context, req service.JobRequest) (*records.JobDescription, error)
	DeleteJob(ctx context.Context, jobID string) error
	ProcessJob(ctx context.Context, jobID string) (bulk.Stats, error)
	FetchRanked(ctx context.Context, req service.RankRequest) (*records.RankedResult, error)
	IngestResume(ctx context.Context, req service.ResumeRequest) (*service.ResumeResult, error)
	PutResumeText(ctx context.Context, resumeID, text string, update bool) error
	DeleteResume(ctx context.Context, resumeID string) error
	ResumeMatches(ctx context.Context, resumeID string) (*service.ResumeView, error)
	SearchResumes(ctx context.Context, regionID string, keywords []string, limit int) ([]*records.Resume, error)
}

type Server struct {
	ranker   Ranker
	validate *validator.Validate
	logger   *zap.Logger
	router   *gin.Engine
}

func New(ranker Ranker, logger *zap.Logger) (*Server, error) {
	if ranker == nil {
		return nil, errors.New("ranker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{ranker: ranker, validate: validator.New(), logger: logger}

	router := gin.New()
	router.Use(requestID(), recovery(logger), accessLog(logger))
	s.routes(router)
	s.router = router

	return s, nil
}

func (s *Server) routes(router *gin.Engine) {
	router.GET("/healthz", s.health)

	jobs := router.Group("/jobs")
	{
		jobs.POST("", s.createJob)
		jobs.POST("/ranked", s.fetchRanked)
		jobs.POST("/:id/process", s.processJob)
		jobs.DELETE("/:id", s.deleteJob)
	}

	resumes := router.Group("/resumes")
	{
		resumes.POST("", s.createResume)
		resumes.GET("", s.searchResumes)
		resumes.PUT("/:id/text", s.putResumeText)
		resumes.GET("/:id/matches", s.resumeMatches)
		resumes.DELETE("/:id", s.deleteResume)
	}
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// flag accepts true/false as well as the "1"/"yes" strings older clients send.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	*f = flag(service.ParseFlag(strings.Trim(string(data), `"`)))
	return nil
}

func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		sendError(c, http.StatusBadRequest, CodeInvalidJSON, "invalid JSON in request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		sendServiceError(c, err)
		return false
	}
	return true
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createJobRequest struct {
	service.JobRequest
	Update flag `json:"update"`
}

func (s *Server) createJob(c *gin.Context) {
	var req createJobRequest
	if !s.bind(c, &req) {
		return
	}
	req.JobRequest.Update = bool(req.Update)

	job, err := s.ranker.IngestJob(c.Request.Context(), req.JobRequest)
	if err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "job description stored", "job": job})
}

func (s *Server) deleteJob(c *gin.Context) {
	if err := s.ranker.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job description deleted", "jobId": c.Param("id")})
}

func (s *Server) processJob(c *gin.Context) {
	stats, err := s.ranker.ProcessJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobId":    c.Param("id"),
		"scanned":  stats.Scanned,
		"matched":  stats.Matched,
		"retained": stats.Retained,
	})
}

func (s *Server) fetchRanked(c *gin.Context) {
	var req service.RankRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.ranker.FetchRanked(c.Request.Context(), req)
	if err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type createResumeRequest struct {
	records.Resume
	Update flag `json:"update"`
}

func (s *Server) createResume(c *gin.Context) {
	var req createResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, CodeInvalidJSON, "invalid JSON in request body: "+err.Error())
		return
	}

	res, err := s.ranker.IngestResume(c.Request.Context(), service.ResumeRequest{Resume: req.Resume, Update: bool(req.Update)})
	if err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type resumeTextRequest struct {
	ResumeText string `json:"resumeText" validate:"required"`
	Update     flag   `json:"update"`
}

func (s *Server) putResumeText(c *gin.Context) {
	var req resumeTextRequest
	if !s.bind(c, &req) {
		return
	}

	if err := s.ranker.PutResumeText(c.Request.Context(), c.Param("id"), req.ResumeText, bool(req.Update)); err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "resume text stored", "resumeId": c.Param("id")})
}

func (s *Server) searchResumes(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			sendError(c, http.StatusBadRequest, CodeInvalidRequest, "limit must be a non-negative integer",
				ErrorDetail{Field: "limit", Message: raw})
			return
		}
		limit = n
	}

	var keywords []string
	for _, k := range strings.Split(c.Query("keywords"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}

	found, err := s.ranker.SearchResumes(c.Request.Context(), c.Query("regionId"), keywords, limit)
	if err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(found), "resumes": found})
}

func (s *Server) resumeMatches(c *gin.Context) {
	view, err := s.ranker.ResumeMatches(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) deleteResume(c *gin.Context) {
	if err := s.ranker.DeleteResume(c.Request.Context(), c.Param("id")); err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "resume deleted", "resumeId": c.Param("id")})
}
