package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kreeda/resumatch/internal/domain"
)

func TestNormalizeCohort_MinMaxSpreadsKeywordScores(t *testing.T) {
	scores := []domain.ScoreRecord{
		{ResumeID: "r1", KeywordScore: 0.4},
		{ResumeID: "r2", KeywordScore: 0.7},
		{ResumeID: "r3", KeywordScore: 0.7},
	}
	resumes := map[string]domain.Resume{
		"r1": {ID: "r1"}, "r2": {ID: "r2"}, "r3": {ID: "r3"},
	}

	out := normalizeCohort(scores, resumes, domain.JobDescription{})
	require.Len(t, out, 3)
	assert.Equal(t, 0.0, out[0].KeywordScore)
	assert.Equal(t, 1.0, out[1].KeywordScore)
	assert.Equal(t, 1.0, out[2].KeywordScore)
}

func TestNormalizeCohort_RecomputesFinalScore(t *testing.T) {
	scores := []domain.ScoreRecord{
		{ResumeID: "r1", KeywordScore: 0.2, SemanticScore: 0.2, ProjectScore: 0.5, HardRequirementsPassed: true, HardRequirementsScore: 1},
		{ResumeID: "r2", KeywordScore: 0.9, SemanticScore: 0.9, ProjectScore: 0.5, HardRequirementsPassed: true, HardRequirementsScore: 1},
	}
	resumes := map[string]domain.Resume{"r1": {ID: "r1"}, "r2": {ID: "r2"}}

	out := normalizeCohort(scores, resumes, domain.JobDescription{})
	require.Len(t, out, 2)
	assert.Greater(t, out[1].FinalScore, out[0].FinalScore)
	assert.NotEmpty(t, out[0].RankingTier)
}

func TestBuildCandidateSummary_CapsSkillsAndProjects(t *testing.T) {
	resume := domain.Resume{ID: "r1", Name: "Jane Doe"}
	resume.CanonicalSkills = map[string][]string{"languages": {
		"go", "python", "java", "rust", "c", "cpp", "ruby", "scala", "kotlin", "swift", "erlang", "elixir",
	}}
	for i := 0; i < 5; i++ {
		resume.Projects = append(resume.Projects, domain.Project{Name: "p", TechKeywords: []string{"go"}})
	}

	summary := buildCandidateSummary(domain.ScoreRecord{ResumeID: "r1"}, resume)
	assert.LessOrEqual(t, len(summary.TopSkills), 10)
	assert.LessOrEqual(t, len(summary.Projects), 3)
}

func TestRerankCriteriaFor_CollectsSpecifiedFields(t *testing.T) {
	jd := domain.JobDescription{
		FilterRequirements: domain.FilterRequirements{
			MandatoryCompliances: domain.ComplianceBlock{
				RawPrompt: "5+ years experience",
				Structured: map[string]domain.RequirementSpec{
					"experience": {Specified: true},
					"location":   {Specified: false},
				},
			},
			SoftCompliances: domain.ComplianceBlock{
				RawPrompt: "prefer a Masters degree",
				Structured: map[string]domain.RequirementSpec{
					"education": {Specified: true},
				},
			},
		},
	}
	criteria := rerankCriteriaFor(jd)
	assert.Equal(t, []string{"education", "experience"}, criteria.AllowedFields)
	assert.Contains(t, criteria.RawPrompt, "5+ years experience")
	assert.Contains(t, criteria.RawPrompt, "prefer a Masters degree")
}
