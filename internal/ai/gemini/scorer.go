package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/ai"
	"github.com/spigell/resume-ranker/internal/logger"
	"github.com/spigell/resume-ranker/internal/records"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed scoring_prompt.md
var scoringPrompt string

//go:embed score_result.schema.json
var scoreResultSchema string

const defaultMaxLogLength = 200

// Scorer asks Gemini for a qualitative assessment of a batch of resumes.
type Scorer struct {
	generator contentGenerator
	schema    *gojsonschema.Schema
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Scorer = (*Scorer)(nil)

func NewScorer(generator contentGenerator, maxLogLength int, logger *zap.Logger) (*Scorer, error) {
	if generator == nil {
		return nil, errors.New("content generator is required")
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(scoreResultSchema))
	if err != nil {
		return nil, fmt.Errorf("load score result schema: %w", err)
	}

	return &Scorer{
		generator: generator,
		schema:    schema,
		logger:    logger,
		maxLogLen: maxLogLength,
	}, nil
}

func (s *Scorer) ScoreBatch(ctx context.Context, job *records.JobDescription, batch []ai.Candidate) (map[string]records.Assessment, error) {
	if job == nil {
		return nil, errors.New("job description is required")
	}
	if len(batch) == 0 {
		return map[string]records.Assessment{}, nil
	}

	prompt, ids, err := buildScoringPrompt(job.JobDescription, batch)
	if err != nil {
		return nil, err
	}

	log := logger.WithFields(s.logger, logger.JobFields(job.JobID, "")...)
	log.Debug("gemini scoring request",
		zap.Strings("resume_ids", ids),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, scoringPrompt, prompt)
	if err != nil {
		return nil, err
	}

	log.Debug("gemini scoring response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
	)

	return s.parseScores(raw, ids, log)
}

func buildScoringPrompt(jobText string, batch []ai.Candidate) (string, []string, error) {
	ids := make([]string, 0, len(batch))
	blocks := make([]string, 0, len(batch))

	for _, c := range batch {
		id := strings.TrimSpace(c.ResumeID)
		if id == "" {
			continue
		}

		if text := strings.TrimSpace(c.Text); text != "" {
			blocks = append(blocks, fmt.Sprintf("### Resume ID: %s ###\n\"\"\"\n%s\n\"\"\"", id, text))
		} else {
			if c.Resume == nil {
				continue
			}
			payload, err := json.MarshalIndent(c.Resume.WithoutEmbedding(), "", "  ")
			if err != nil {
				return "", nil, fmt.Errorf("marshal resume %s: %w", id, err)
			}
			blocks = append(blocks, fmt.Sprintf("### Resume ID: %s ###\n%s", id, payload))
		}
		ids = append(ids, id)
	}

	if len(blocks) == 0 {
		return "", nil, errors.New("batch has no usable candidates")
	}

	prompt := fmt.Sprintf("Here is the job description:\n\"\"\"%s\"\"\"\n\nHere are the resumes:\n%s\n\n"+
		"Evaluate each resume individually and return only JSON in the exact format described above.",
		strings.TrimSpace(jobText), strings.Join(blocks, "\n"))

	return prompt, ids, nil
}

type resultItem struct {
	ResumeID             string   `mapstructure:"resumeId"`
	AIScore              float64  `mapstructure:"aiScore"`
	KeyMatchPoints       []string `mapstructure:"keyMatchPoints"`
	CompensationFit      string   `mapstructure:"compensationFit"`
	LocationStatus       string   `mapstructure:"locationStatus"`
	AvailabilityMatch    string   `mapstructure:"availabilityMatch"`
	HiringRecommendation string   `mapstructure:"hiringRecommendation"`
}

// parseScores validates raw against the result schema and keeps items for
// resumes that were part of the request.
func (s *Scorer) parseScores(raw string, requested []string, log *zap.Logger) (map[string]records.Assessment, error) {
	cleaned := extractJSON(raw)

	result, err := s.schema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("gemini response does not match schema: %s", strings.Join(msgs, "; "))
	}

	var doc struct {
		Result []map[string]any `json:"result"`
	}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	wanted := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		wanted[id] = struct{}{}
	}

	scores := make(map[string]records.Assessment, len(doc.Result))
	for _, rawItem := range doc.Result {
		var item resultItem
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &item,
		})
		if err != nil {
			return nil, fmt.Errorf("create decoder: %w", err)
		}
		if err := decoder.Decode(rawItem); err != nil {
			log.Warn("skipping undecodable score item", zap.Any("item", rawItem), zap.Error(err))
			continue
		}

		id := strings.TrimSpace(item.ResumeID)
		if _, ok := wanted[id]; !ok {
			log.Warn("scorer returned an unknown resume id", zap.String("resume_id", id))
			continue
		}
		if math.IsNaN(item.AIScore) || math.IsInf(item.AIScore, 0) {
			log.Warn("scorer returned an invalid score", zap.String("resume_id", id))
			continue
		}

		score := math.Max(0, math.Min(100, item.AIScore))
		scores[id] = records.Assessment{
			AIScore:              &score,
			KeyMatchPoints:       trimAll(item.KeyMatchPoints),
			CompensationFit:      strings.TrimSpace(item.CompensationFit),
			LocationStatus:       strings.TrimSpace(item.LocationStatus),
			AvailabilityMatch:    strings.TrimSpace(item.AvailabilityMatch),
			HiringRecommendation: strings.TrimSpace(item.HiringRecommendation),
		}
	}

	if missing := len(requested) - len(scores); missing > 0 {
		log.Info("scorer left resumes unscored", zap.Int("missing", missing))
	}

	return scores, nil
}
