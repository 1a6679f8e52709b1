// Package records holds the documents exchanged between the store, the
// matching pipeline and the API layer.
package records

import "strings"

// ProcessingState tracks whether a document has gone through the bulk matching pass.
type ProcessingState string

const (
	StatePending   ProcessingState = "pending"
	StateCompleted ProcessingState = "completed"
)

// Experience is a single job title with a free-form duration in years.
// Duration is kept untyped because upstream extraction produces ints, floats and strings.
type Experience struct {
	Title    string `bson:"title" json:"title"`
	Duration any    `bson:"duration,omitempty" json:"duration,omitempty"`
}

// Skill is shared by resumes and structured job queries. SkillID is often null
// in stored documents.
type Skill struct {
	SkillID   any    `bson:"skillId,omitempty" json:"skillId,omitempty"`
	SkillName string `bson:"skillName" json:"skillName"`
}

// Profile carries the candidate fields that are copied onto every match entry.
type Profile struct {
	Name            string `bson:"name,omitempty" json:"name,omitempty"`
	Email           string `bson:"email,omitempty" json:"email,omitempty"`
	ContactNo       string `bson:"contactNo,omitempty" json:"contactNo,omitempty"`
	Address         string `bson:"address,omitempty" json:"address,omitempty"`
	City            string `bson:"city,omitempty" json:"city,omitempty"`
	State           string `bson:"state,omitempty" json:"state,omitempty"`
	Country         string `bson:"country,omitempty" json:"country,omitempty"`
	CreatedOn       any    `bson:"createdOn,omitempty" json:"createdOn,omitempty"`
	OwnedBy         string `bson:"ownedBy,omitempty" json:"ownedBy,omitempty"`
	NoticePeriod    any    `bson:"noticePeriod,omitempty" json:"noticePeriod,omitempty"`
	ExpectedCTC     any    `bson:"expectedCTC,omitempty" json:"expectedCTC,omitempty"`
	TotalExperience int    `bson:"totalExperience" json:"totalExperience"`
}

type Resume struct {
	ResumeID string `bson:"resumeId" json:"resumeId"`
	Profile  `bson:",inline"`

	EducationalQualifications []map[string]any `bson:"educationalQualifications,omitempty" json:"educationalQualifications,omitempty"`
	JobExperiences            []Experience     `bson:"jobExperiences,omitempty" json:"jobExperiences,omitempty"`
	Skills                    []Skill          `bson:"skills,omitempty" json:"skills,omitempty"`
	Keywords                  []string         `bson:"keywords,omitempty" json:"keywords,omitempty"`

	Embedding       []float64       `bson:"embedding,omitempty" json:"embedding,omitempty"`
	ProcessingState ProcessingState `bson:"processingState,omitempty" json:"processingState,omitempty"`
}

// Tokens returns the keywords followed by the skill names, skipping blanks.
func (r *Resume) Tokens() []string {
	tokens := make([]string, 0, len(r.Keywords)+len(r.Skills))
	for _, k := range r.Keywords {
		if strings.TrimSpace(k) != "" {
			tokens = append(tokens, k)
		}
	}
	for _, s := range r.Skills {
		if strings.TrimSpace(s.SkillName) != "" {
			tokens = append(tokens, s.SkillName)
		}
	}
	return tokens
}

// EmbeddingSource is the part of a resume that is fed to the embedding generator.
func (r *Resume) EmbeddingSource() map[string]any {
	return map[string]any{
		"educationalQualifications": r.EducationalQualifications,
		"jobExperiences":            r.JobExperiences,
		"keywords":                  r.Keywords,
		"skills":                    r.Skills,
	}
}

// WithoutEmbedding returns a shallow copy that is safe to send to clients.
func (r *Resume) WithoutEmbedding() *Resume {
	c := *r
	c.Embedding = nil
	return &c
}

type StructuredQuery struct {
	Keywords                  []string         `bson:"keywords,omitempty" json:"keywords,omitempty"`
	JobExperiences            []Experience     `bson:"jobExperiences,omitempty" json:"jobExperiences,omitempty"`
	Skills                    []Skill          `bson:"skills,omitempty" json:"skills,omitempty"`
	EducationalQualifications []map[string]any `bson:"educationalQualifications,omitempty" json:"educationalQualifications,omitempty"`
}

// Empty reports whether nothing usable was extracted.
func (q StructuredQuery) Empty() bool {
	return len(q.Keywords) == 0 && len(q.JobExperiences) == 0 && len(q.Skills) == 0 && len(q.EducationalQualifications) == 0
}

type JobDescription struct {
	JobID           string          `bson:"jobId" json:"jobId"`
	JobDescription  string          `bson:"jobDescription" json:"jobDescription"`
	StructuredQuery StructuredQuery `bson:"structured_query" json:"structured_query"`
	Embedding       []float64       `bson:"embedding,omitempty" json:"embedding,omitempty"`
	ProcessingState ProcessingState `bson:"processingState,omitempty" json:"processingState,omitempty"`
}

func (j *JobDescription) WithoutEmbedding() *JobDescription {
	c := *j
	c.Embedding = nil
	return &c
}

type CommonExperience struct {
	ResumeTitle    string  `bson:"resumeTitle" json:"resumeTitle"`
	JDTitle        string  `bson:"jdTitle" json:"jdTitle"`
	ResumeDuration any     `bson:"resumeDuration" json:"resumeDuration"`
	JDDuration     any     `bson:"jdDuration" json:"jdDuration"`
	MatchScore     float64 `bson:"matchScore" json:"matchScore"`
}

// Assessment is the qualitative output of the external scorer.
type Assessment struct {
	AIScore              *float64 `bson:"aiScore,omitempty" json:"aiScore,omitempty"`
	KeyMatchPoints       []string `bson:"keyMatchPoints,omitempty" json:"keyMatchPoints,omitempty"`
	CompensationFit      string   `bson:"compensationFit,omitempty" json:"compensationFit,omitempty"`
	LocationStatus       string   `bson:"locationStatus,omitempty" json:"locationStatus,omitempty"`
	AvailabilityMatch    string   `bson:"availabilityMatch,omitempty" json:"availabilityMatch,omitempty"`
	HiringRecommendation string   `bson:"hiringRecommendation,omitempty" json:"hiringRecommendation,omitempty"`
}

// Scored reports whether the external scorer has already assessed the entry.
func (a Assessment) Scored() bool { return a.AIScore != nil }

// Score returns the AI score or zero when missing.
func (a Assessment) Score() float64 {
	if a.AIScore == nil {
		return 0
	}
	return *a.AIScore
}

// MatchEntry is one candidate inside a job's match record.
type MatchEntry struct {
	ResumeID string `bson:"resumeId" json:"resumeId"`
	Profile  `bson:",inline"`

	CommonKeys        []string           `bson:"commonKeys" json:"commonKeys"`
	SimilarityScore   float64            `bson:"similarityScore" json:"similarityScore"`
	CommonExperiences []CommonExperience `bson:"commonExperiences" json:"commonExperiences"`

	Assessment `bson:",inline"`
}

type MatchRecord struct {
	JobID   string        `bson:"jobId" json:"jobId"`
	Matches []*MatchEntry `bson:"matches" json:"matches"`
}

// ReverseEntry is the per-resume view of a job match.
type ReverseEntry struct {
	JobID             string             `bson:"jobId" json:"jobId"`
	JobDescription    string             `bson:"jobDescription" json:"jobDescription"`
	CommonKeys        []string           `bson:"commonKeys" json:"commonKeys"`
	SimilarityScore   float64            `bson:"similarityScore" json:"similarityScore"`
	CommonExperiences []CommonExperience `bson:"commonExperiences" json:"commonExperiences"`
}

type ReverseRecord struct {
	ResumeID    string          `bson:"resumeId" json:"resumeId"`
	Matches     []*ReverseEntry `bson:"matches" json:"matches"`
	LastUpdated string          `bson:"lastUpdated,omitempty" json:"lastUpdated,omitempty"`
}

// Reverse builds the resume-side copy of a match entry.
func (e *MatchEntry) Reverse(job *JobDescription) *ReverseEntry {
	return &ReverseEntry{
		JobID:             job.JobID,
		JobDescription:    job.JobDescription,
		CommonKeys:        e.CommonKeys,
		SimilarityScore:   e.SimilarityScore,
		CommonExperiences: e.CommonExperiences,
	}
}

type ResumeText struct {
	ResumeID   string `bson:"resumeId" json:"resumeId"`
	ResumeText string `bson:"resumeText" json:"resumeText"`
}

// RankedMatch is a match entry as returned to callers, with its 1-based position.
type RankedMatch struct {
	*MatchEntry
	Rank int `json:"rank"`
}

// RankedResult is the response of a ranked fetch.
type RankedResult struct {
	JobDescription *JobDescription `json:"jobDescription"`
	Matches        []RankedMatch   `json:"matches"`
}
