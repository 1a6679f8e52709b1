package records

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

const storedJob = `{
	"jobId": "jd-1",
	"jobDescription": "Go developer",
	"structured_query": {
		"keywords": ["go", "kubernetes"],
		"jobExperiences": [{"title": "Backend Engineer", "duration": "3"}],
		"skills": [{"skillId": null, "skillName": "go"}, {"skillId": "s-2", "skillName": "docker"}]
	},
	"processingState": "pending"
}`

func assertStoredJob(t *testing.T, job JobDescription) {
	t.Helper()
	assert.Equal(t, "jd-1", job.JobID)
	assert.Equal(t, []string{"go", "kubernetes"}, job.StructuredQuery.Keywords)
	require.Len(t, job.StructuredQuery.Skills, 2)
	assert.Nil(t, job.StructuredQuery.Skills[0].SkillID)
	assert.Equal(t, "go", job.StructuredQuery.Skills[0].SkillName)
	assert.Equal(t, "s-2", job.StructuredQuery.Skills[1].SkillID)
	assert.Equal(t, StatePending, job.ProcessingState)
}

func TestJobDescriptionDecodesSkillObjectsFromJSON(t *testing.T) {
	var job JobDescription
	require.NoError(t, json.Unmarshal([]byte(storedJob), &job))
	assertStoredJob(t, job)

	raw, err := json.Marshal(job)
	require.NoError(t, err)
	var again JobDescription
	require.NoError(t, json.Unmarshal(raw, &again))
	assertStoredJob(t, again)
}

func TestJobDescriptionDecodesSkillObjectsFromBSON(t *testing.T) {
	doc := bson.M{
		"jobId":          "jd-1",
		"jobDescription": "Go developer",
		"structured_query": bson.M{
			"keywords":       bson.A{"go", "kubernetes"},
			"jobExperiences": bson.A{bson.M{"title": "Backend Engineer", "duration": "3"}},
			"skills": bson.A{
				bson.M{"skillId": nil, "skillName": "go"},
				bson.M{"skillId": "s-2", "skillName": "docker"},
			},
		},
		"processingState": "pending",
	}
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var job JobDescription
	require.NoError(t, bson.Unmarshal(raw, &job))
	assertStoredJob(t, job)

	raw, err = bson.Marshal(job)
	require.NoError(t, err)
	var again JobDescription
	require.NoError(t, bson.Unmarshal(raw, &again))
	assertStoredJob(t, again)
}

func TestResumeTokensUseSkillNames(t *testing.T) {
	r := Resume{Keywords: []string{"go", " "}, Skills: []Skill{{SkillID: 7, SkillName: "docker"}, {SkillName: ""}}}
	assert.Equal(t, []string{"go", "docker"}, r.Tokens())
}
