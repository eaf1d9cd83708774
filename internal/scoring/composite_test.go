package scoring

import (
	"testing"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestExperienceWeight_MeetsRequirementIsOne(t *testing.T) {
	assert.Equal(t, 1.0, ExperienceWeight(6, 5))
	assert.Equal(t, 1.0, ExperienceWeight(5, 5))
}

func TestExperienceWeight_NoRequirementIsOne(t *testing.T) {
	assert.Equal(t, 1.0, ExperienceWeight(0, 0))
}

func TestExperienceWeight_HalfwayRamp(t *testing.T) {
	got := ExperienceWeight(2.5, 5)
	assert.InDelta(t, 0.75, got, 1e-9)
}

func TestExperienceWeight_BelowHalfwayRamp(t *testing.T) {
	got := ExperienceWeight(1, 5)
	assert.InDelta(t, 0.26, got, 1e-9)
}

func TestEducationWeight_NoEducationFallsBackToFloor(t *testing.T) {
	assert.Equal(t, 0.3, EducationWeight(nil, ""))
}

func TestEducationWeight_PicksBestMatch(t *testing.T) {
	edu := []domain.Education{{Degree: "Certificate in Cloud"}, {Degree: "Master of Science"}}
	assert.InDelta(t, 0.9, EducationWeight(edu, ""), 1e-9)
}

func TestEducationWeight_FieldBonusCapsAtOne(t *testing.T) {
	edu := []domain.Education{{Degree: "PhD", FieldOfStudy: "Computer Science"}}
	assert.Equal(t, 1.0, EducationWeight(edu, "computer science"))
}

func TestCompositeScore_PenaltyAppliedWhenHardRequirementsFail(t *testing.T) {
	base := CompositeScoreInputs{
		HardRequirementsScore: 1.0,
		KeywordScore:          1.0,
		SemanticScore:         1.0,
		ProjectScore:          1.0,
		ResumeYears:           10,
		RequiredYears:         5,
		Educations:            []domain.Education{{Degree: "PhD"}},
	}
	passed := base
	passed.HardRequirementsPassed = true
	failed := base
	failed.HardRequirementsPassed = false

	passedResult := CompositeScore(passed)
	failedResult := CompositeScore(failed)
	assert.Greater(t, passedResult.FinalScore, failedResult.FinalScore)
}

func TestCompositeScore_CapsAtOne(t *testing.T) {
	in := CompositeScoreInputs{
		HardRequirementsPassed: true,
		HardRequirementsScore:  1.0,
		KeywordScore:           1.0,
		SemanticScore:          1.0,
		ProjectScore:           1.0,
		ResumeYears:            20,
		RequiredYears:          5,
		Educations:             []domain.Education{{Degree: "PhD"}},
	}
	got := CompositeScore(in)
	assert.LessOrEqual(t, got.FinalScore, 1.0)
	assert.Equal(t, TierExcellent, got.RankingTier)
}

func TestCompositeScore_RankingTierBands(t *testing.T) {
	for _, tt := range []struct {
		score float64
		tier  string
	}{
		{0.9, TierExcellent},
		{0.75, TierGood},
		{0.6, TierAverage},
		{0.45, TierBelowAverage},
		{0.1, TierPoor},
	} {
		assert.Equal(t, tt.tier, rankingTier(tt.score))
	}
}

func TestRankingPosition_TopScorerIsFirst(t *testing.T) {
	all := []float64{0.9, 0.7, 0.5, 0.3}
	pos, pct, category := RankingPosition(0.9, all)
	assert.Equal(t, 1, pos)
	assert.InDelta(t, 100.0, pct, 1e-9)
	assert.Equal(t, "top_10_percent", category)
}

func TestRankingPosition_LowestScorerIsLast(t *testing.T) {
	all := []float64{0.9, 0.7, 0.5, 0.3}
	pos, pct, _ := RankingPosition(0.3, all)
	assert.Equal(t, 4, pos)
	assert.InDelta(t, 25.0, pct, 1e-9)
}

func TestRankingPosition_EmptyCohort(t *testing.T) {
	pos, pct, _ := RankingPosition(0.5, nil)
	assert.Equal(t, 0, pos)
	assert.Equal(t, 0.0, pct)
}
