package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/records"
)

const (
	DefaultDatabase = "resumes_database"

	collResumes       = "resumes"
	collJobs          = "job_description"
	collMatches       = "matches"
	collResumeMatches = "resume_matches"
	collResumeText    = "resume_text"
)

var (
	_ Store = (*Mongo)(nil)
	_ Store = (*Memory)(nil)
)

// Mongo is the MongoDB-backed Store.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewMongo connects to uri and checks the connection.
func NewMongo(ctx context.Context, uri, database string, logger *zap.Logger) (*Mongo, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(database) == "" {
		database = DefaultDatabase
	}

	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Mongo{client: client, db: client.Database(database), logger: logger}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique key indexes the store relies on for duplicate detection.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	unique := map[string]string{
		collResumes:       "resumeId",
		collJobs:          "jobId",
		collMatches:       "jobId",
		collResumeMatches: "resumeId",
		collResumeText:    "resumeId",
	}
	for coll, key := range unique {
		_, err := m.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: key, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("create index on %s.%s: %w", coll, key, err)
		}
	}

	_, err := m.db.Collection(collJobs).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "processingState", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create index on %s.processingState: %w", collJobs, err)
	}
	return nil
}

func (m *Mongo) GetJob(ctx context.Context, jobID string) (*records.JobDescription, error) {
	var job records.JobDescription
	err := m.db.Collection(collJobs).FindOne(ctx, bson.M{"jobId": jobID}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", jobID, err)
	}
	return &job, nil
}

func (m *Mongo) InsertJob(ctx context.Context, job *records.JobDescription) error {
	if err := m.ensureAbsent(ctx, collJobs, bson.M{"jobId": job.JobID}); err != nil {
		return fmt.Errorf("job %s: %w", job.JobID, err)
	}
	if _, err := m.db.Collection(collJobs).InsertOne(ctx, job); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("job %s: %w", job.JobID, ErrDuplicate)
		}
		return fmt.Errorf("insert job %s: %w", job.JobID, err)
	}
	return nil
}

func (m *Mongo) ListJobs(ctx context.Context, state records.ProcessingState) ([]*records.JobDescription, error) {
	filter := bson.M{}
	if state != "" {
		filter["processingState"] = state
	}

	cur, err := m.db.Collection(collJobs).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "jobId", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]*records.JobDescription, 0)
	for cur.Next(ctx) {
		var job records.JobDescription
		if err := cur.Decode(&job); err != nil {
			m.logger.Warn("skipping malformed job document", zap.Error(err))
			continue
		}
		out = append(out, &job)
	}
	return out, cur.Err()
}

func (m *Mongo) SetJobState(ctx context.Context, jobID string, state records.ProcessingState) error {
	res, err := m.db.Collection(collJobs).UpdateOne(ctx,
		bson.M{"jobId": jobID},
		bson.M{"$set": bson.M{"processingState": state}},
	)
	if err != nil {
		return fmt.Errorf("set job %s state: %w", jobID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

func (m *Mongo) DeleteJob(ctx context.Context, jobID string) error {
	res, err := m.db.Collection(collJobs).DeleteMany(ctx, bson.M{"jobId": jobID})
	if err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	if _, err := m.db.Collection(collMatches).DeleteMany(ctx, bson.M{"jobId": jobID}); err != nil {
		return fmt.Errorf("delete matches of job %s: %w", jobID, err)
	}
	if err := m.PullReverseJob(ctx, jobID); err != nil {
		return err
	}

	m.logger.Debug("job deleted", zap.String("job_id", jobID), zap.Int64("deleted", res.DeletedCount))
	if res.DeletedCount == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

func (m *Mongo) GetResume(ctx context.Context, resumeID string) (*records.Resume, error) {
	var r records.Resume
	err := m.db.Collection(collResumes).FindOne(ctx, bson.M{"resumeId": resumeID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("resume %s: %w", resumeID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find resume %s: %w", resumeID, err)
	}
	return &r, nil
}

func (m *Mongo) GetResumes(ctx context.Context, resumeIDs []string) ([]*records.Resume, error) {
	if len(resumeIDs) == 0 {
		return []*records.Resume{}, nil
	}
	return m.findResumes(ctx, bson.M{"resumeId": bson.M{"$in": resumeIDs}}, options.Find().SetProjection(bson.M{"embedding": 0}))
}

func (m *Mongo) findResumes(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*records.Resume, error) {
	cur, err := m.db.Collection(collResumes).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find resumes: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]*records.Resume, 0)
	for cur.Next(ctx) {
		var r records.Resume
		if err := cur.Decode(&r); err != nil {
			m.logger.Warn("skipping malformed resume document", zap.Error(err))
			continue
		}
		out = append(out, &r)
	}
	return out, cur.Err()
}

func (m *Mongo) InsertResume(ctx context.Context, resume *records.Resume) error {
	if err := m.ensureAbsent(ctx, collResumes, bson.M{"resumeId": resume.ResumeID}); err != nil {
		return fmt.Errorf("resume %s: %w", resume.ResumeID, err)
	}
	if _, err := m.db.Collection(collResumes).InsertOne(ctx, resume); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("resume %s: %w", resume.ResumeID, ErrDuplicate)
		}
		return fmt.Errorf("insert resume %s: %w", resume.ResumeID, err)
	}
	return nil
}

// ScanResumes streams the whole corpus. Documents that fail to decode are logged and skipped.
func (m *Mongo) ScanResumes(ctx context.Context, fn func(*records.Resume) error) error {
	cur, err := m.db.Collection(collResumes).Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("scan resumes: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var r records.Resume
		if err := cur.Decode(&r); err != nil {
			m.logger.Warn("skipping malformed resume document",
				zap.Stringer("resume_id", cur.Current.Lookup("resumeId")),
				zap.Error(err),
			)
			continue
		}
		if err := fn(&r); err != nil {
			return err
		}
	}
	return cur.Err()
}

// SearchResumes matches countries case-insensitively, tolerating surrounding whitespace.
func (m *Mongo) SearchResumes(ctx context.Context, q ResumeQuery) ([]*records.Resume, error) {
	filter := bson.M{}
	if len(q.Countries) > 0 {
		filter["country"] = bson.M{"$regex": countryPattern(q.Countries), "$options": "i"}
	}
	if len(q.Keywords) > 0 {
		filter["keywords"] = bson.M{"$all": q.Keywords}
	}

	opts := options.Find().
		SetProjection(bson.M{"embedding": 0}).
		SetSort(bson.D{{Key: "resumeId", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return m.findResumes(ctx, filter, opts)
}

func countryPattern(countries []string) string {
	quoted := make([]string, 0, len(countries))
	for _, c := range countries {
		if c = strings.TrimSpace(c); c != "" {
			quoted = append(quoted, regexp.QuoteMeta(c))
		}
	}
	return `^\s*(` + strings.Join(quoted, "|") + `)\s*$`
}

func (m *Mongo) SetResumeState(ctx context.Context, resumeID string, state records.ProcessingState) error {
	res, err := m.db.Collection(collResumes).UpdateOne(ctx,
		bson.M{"resumeId": resumeID},
		bson.M{"$set": bson.M{"processingState": state}},
	)
	if err != nil {
		return fmt.Errorf("set resume %s state: %w", resumeID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("resume %s: %w", resumeID, ErrNotFound)
	}
	return nil
}

func (m *Mongo) DeleteResume(ctx context.Context, resumeID string) error {
	res, err := m.db.Collection(collResumes).DeleteMany(ctx, bson.M{"resumeId": resumeID})
	if err != nil {
		return fmt.Errorf("delete resume %s: %w", resumeID, err)
	}
	if _, err := m.db.Collection(collResumeMatches).DeleteMany(ctx, bson.M{"resumeId": resumeID}); err != nil {
		return fmt.Errorf("delete reverse matches of resume %s: %w", resumeID, err)
	}
	_, err = m.db.Collection(collMatches).UpdateMany(ctx,
		bson.M{"matches.resumeId": resumeID},
		bson.M{"$pull": bson.M{"matches": bson.M{"resumeId": resumeID}}},
	)
	if err != nil {
		return fmt.Errorf("pull resume %s from matches: %w", resumeID, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("resume %s: %w", resumeID, ErrNotFound)
	}
	return nil
}

func (m *Mongo) PutResumeText(ctx context.Context, text *records.ResumeText, replace bool) error {
	coll := m.db.Collection(collResumeText)
	if replace {
		_, err := coll.ReplaceOne(ctx, bson.M{"resumeId": text.ResumeID}, text, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("replace resume text %s: %w", text.ResumeID, err)
		}
		return nil
	}

	if err := m.ensureAbsent(ctx, collResumeText, bson.M{"resumeId": text.ResumeID}); err != nil {
		return fmt.Errorf("resume text %s: %w", text.ResumeID, err)
	}
	if _, err := coll.InsertOne(ctx, text); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("resume text %s: %w", text.ResumeID, ErrDuplicate)
		}
		return fmt.Errorf("insert resume text %s: %w", text.ResumeID, err)
	}
	return nil
}

func (m *Mongo) GetResumeTexts(ctx context.Context, resumeIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(resumeIDs))
	if len(resumeIDs) == 0 {
		return out, nil
	}

	cur, err := m.db.Collection(collResumeText).Find(ctx,
		bson.M{"resumeId": bson.M{"$in": resumeIDs}},
		options.Find().SetProjection(bson.M{"_id": 0, "resumeId": 1, "resumeText": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("find resume texts: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var t records.ResumeText
		if err := cur.Decode(&t); err != nil {
			m.logger.Warn("skipping malformed resume text document", zap.Error(err))
			continue
		}
		if strings.TrimSpace(t.ResumeText) != "" {
			out[t.ResumeID] = t.ResumeText
		}
	}
	return out, cur.Err()
}

func (m *Mongo) GetMatches(ctx context.Context, jobID string) (*records.MatchRecord, error) {
	var rec records.MatchRecord
	err := m.db.Collection(collMatches).FindOne(ctx, bson.M{"jobId": jobID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &records.MatchRecord{JobID: jobID, Matches: []*records.MatchEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find matches of job %s: %w", jobID, err)
	}
	if rec.Matches == nil {
		rec.Matches = []*records.MatchEntry{}
	}
	return &rec, nil
}

func (m *Mongo) ReplaceMatches(ctx context.Context, jobID string, entries []*records.MatchEntry) error {
	if entries == nil {
		entries = []*records.MatchEntry{}
	}
	_, err := m.db.Collection(collMatches).UpdateOne(ctx,
		bson.M{"jobId": jobID},
		bson.M{"$set": bson.M{"matches": entries}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replace matches of job %s: %w", jobID, err)
	}
	return nil
}

func (m *Mongo) UpsertMatch(ctx context.Context, jobID string, entry *records.MatchEntry) error {
	coll := m.db.Collection(collMatches)
	_, err := coll.UpdateOne(ctx,
		bson.M{"jobId": jobID},
		bson.M{"$pull": bson.M{"matches": bson.M{"resumeId": entry.ResumeID}}},
	)
	if err != nil {
		return fmt.Errorf("pull match %s/%s: %w", jobID, entry.ResumeID, err)
	}
	_, err = coll.UpdateOne(ctx,
		bson.M{"jobId": jobID},
		bson.M{"$push": bson.M{"matches": entry}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("push match %s/%s: %w", jobID, entry.ResumeID, err)
	}
	return nil
}

// SetAssessment updates a single array element through the positional operator.
func (m *Mongo) SetAssessment(ctx context.Context, jobID, resumeID string, a records.Assessment) error {
	set := bson.M{}
	if a.AIScore != nil {
		set["matches.$.aiScore"] = *a.AIScore
	}
	if len(a.KeyMatchPoints) > 0 {
		set["matches.$.keyMatchPoints"] = a.KeyMatchPoints
	}
	if a.CompensationFit != "" {
		set["matches.$.compensationFit"] = a.CompensationFit
	}
	if a.LocationStatus != "" {
		set["matches.$.locationStatus"] = a.LocationStatus
	}
	if a.AvailabilityMatch != "" {
		set["matches.$.availabilityMatch"] = a.AvailabilityMatch
	}
	if a.HiringRecommendation != "" {
		set["matches.$.hiringRecommendation"] = a.HiringRecommendation
	}
	if len(set) == 0 {
		return nil
	}

	res, err := m.db.Collection(collMatches).UpdateOne(ctx,
		bson.M{"jobId": jobID, "matches.resumeId": resumeID},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("set assessment %s/%s: %w", jobID, resumeID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("match %s/%s: %w", jobID, resumeID, ErrNotFound)
	}
	return nil
}

func (m *Mongo) GetReverse(ctx context.Context, resumeID string) (*records.ReverseRecord, error) {
	var rec records.ReverseRecord
	err := m.db.Collection(collResumeMatches).FindOne(ctx, bson.M{"resumeId": resumeID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &records.ReverseRecord{ResumeID: resumeID, Matches: []*records.ReverseEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find reverse matches of resume %s: %w", resumeID, err)
	}
	if rec.Matches == nil {
		rec.Matches = []*records.ReverseEntry{}
	}
	return &rec, nil
}

func (m *Mongo) ReplaceReverse(ctx context.Context, resumeID string, entries []*records.ReverseEntry) error {
	if entries == nil {
		entries = []*records.ReverseEntry{}
	}
	_, err := m.db.Collection(collResumeMatches).UpdateOne(ctx,
		bson.M{"resumeId": resumeID},
		bson.M{"$set": bson.M{"matches": entries, "lastUpdated": today()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replace reverse matches of resume %s: %w", resumeID, err)
	}
	return nil
}

func (m *Mongo) PushReverse(ctx context.Context, resumeID string, entry *records.ReverseEntry) error {
	coll := m.db.Collection(collResumeMatches)
	_, err := coll.UpdateOne(ctx,
		bson.M{"resumeId": resumeID},
		bson.M{"$pull": bson.M{"matches": bson.M{"jobId": entry.JobID}}},
	)
	if err != nil {
		return fmt.Errorf("pull reverse match %s/%s: %w", resumeID, entry.JobID, err)
	}
	_, err = coll.UpdateOne(ctx,
		bson.M{"resumeId": resumeID},
		bson.M{
			"$push": bson.M{"matches": entry},
			"$set":  bson.M{"lastUpdated": today()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("push reverse match %s/%s: %w", resumeID, entry.JobID, err)
	}
	return nil
}

func (m *Mongo) PullReverseJob(ctx context.Context, jobID string) error {
	_, err := m.db.Collection(collResumeMatches).UpdateMany(ctx,
		bson.M{"matches.jobId": jobID},
		bson.M{"$pull": bson.M{"matches": bson.M{"jobId": jobID}}},
	)
	if err != nil {
		return fmt.Errorf("pull job %s from reverse matches: %w", jobID, err)
	}
	return nil
}

func (m *Mongo) ensureAbsent(ctx context.Context, coll string, filter bson.M) error {
	n, err := m.db.Collection(coll).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("count %s: %w", coll, err)
	}
	if n > 0 {
		return ErrDuplicate
	}
	return nil
}

func today() string {
	return time.Now().UTC().Format(time.DateOnly)
}
