// Package service implements the user-facing operations of the ranker on top
// of the store, the bulk matcher and the scoring orchestrator.
package service

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/ai"
	"github.com/spigell/resume-ranker/internal/bulk"
	"github.com/spigell/resume-ranker/internal/config"
	"github.com/spigell/resume-ranker/internal/lock"
	"github.com/spigell/resume-ranker/internal/normalize"
	"github.com/spigell/resume-ranker/internal/scoring"
	"github.com/spigell/resume-ranker/internal/store"
	"github.com/spigell/resume-ranker/internal/trigger"
)

var (
	// ErrInvalidInput marks requests that are rejected before any work is done.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstream marks failures of the embedding or extraction collaborators.
	ErrUpstream = errors.New("upstream failure")
)

// Deps are the collaborators of a Service. Extractor and Trigger are optional.
type Deps struct {
	Store     store.Store
	Locker    lock.Locker
	Matcher   *bulk.Matcher
	Scoring   *scoring.Orchestrator
	Embedder  ai.Embedder
	Extractor ai.Extractor
	Trigger   trigger.Submitter
	Catalog   normalize.Catalog
	Config    config.Matching
	Logger    *zap.Logger
}

type Service struct {
	store     store.Store
	locker    lock.Locker
	matcher   *bulk.Matcher
	scoring   *scoring.Orchestrator
	embedder  ai.Embedder
	extractor ai.Extractor
	trigger   trigger.Submitter
	catalog   normalize.Catalog
	cfg       config.Matching
	logger    *zap.Logger
}

func New(d Deps) (*Service, error) {
	var missing []string
	if d.Store == nil {
		missing = append(missing, "store")
	}
	if d.Locker == nil {
		missing = append(missing, "locker")
	}
	if d.Matcher == nil {
		missing = append(missing, "matcher")
	}
	if d.Scoring == nil {
		missing = append(missing, "scoring orchestrator")
	}
	if d.Embedder == nil {
		missing = append(missing, "embedder")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("service dependencies missing: %s", strings.Join(missing, ", "))
	}

	cfg := d.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching config: %w", err)
	}

	catalog := d.Catalog
	if catalog == nil {
		catalog = normalize.DefaultCatalog()
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		store:     d.Store,
		locker:    d.Locker,
		matcher:   d.Matcher,
		scoring:   d.Scoring,
		embedder:  d.Embedder,
		extractor: d.Extractor,
		trigger:   d.Trigger,
		catalog:   catalog,
		cfg:       cfg,
		logger:    log,
	}, nil
}

// ParseFlag interprets the loose boolean flags accepted by the API ("1", "true", "yes").
func ParseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
