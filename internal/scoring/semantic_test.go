package scoring

import (
	"math"
	"testing"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSectionScore_WorkedExample(t *testing.T) {
	jd := domain.EmbeddingMatrix{
		{1, 0},
		{0, 1},
	}
	resume := domain.EmbeddingMatrix{
		{0.9, float32(math.Sqrt(1 - 0.9*0.9))},
		{0.6, 0.8},
		{-1, 0},
	}

	got := SectionScore(jd, resume)
	assert.InDelta(t, 0.90667, got, 0.001)
}

func TestSectionScore_EmptyJDReturnsNeutral(t *testing.T) {
	assert.Equal(t, 0.5, SectionScore(nil, domain.EmbeddingMatrix{{1, 0}}))
}

func TestSectionScore_EmptyResumeReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, SectionScore(domain.EmbeddingMatrix{{1, 0}}, nil))
}

func TestCosineSim_IdenticalVectorsIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSim([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
}

func TestCosineSim_OrthogonalIsZero(t *testing.T) {
	assert.InDelta(t, 0.0, CosineSim([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

func TestCosineSim_ZeroVectorIsZero(t *testing.T) {
	assert.Equal(t, 0.0, CosineSim([]float32{0, 0}, []float32{1, 1}))
}

func TestSplitSentences_DropsShortFragments(t *testing.T) {
	got := SplitSentences("Built scalable systems. Ok. Led a team of five engineers!")
	assert.Equal(t, []string{"Built scalable systems", "Led a team of five engineers"}, got)
}

func TestOverallSemanticScore_WeightsSumToOne(t *testing.T) {
	var total float64
	for _, w := range SectionWeights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestOverallSemanticScore_NoEmbeddingsIsNeutral(t *testing.T) {
	score, breakdown := OverallSemanticScore(domain.JobDescription{}, domain.Resume{})
	assert.InDelta(t, 0.5, score, 1e-9)
	for _, v := range breakdown {
		assert.Equal(t, 0.5, v)
	}
}

func TestExtractResumeSections_EducationFallsBackToATSLine(t *testing.T) {
	r := domain.Resume{ATSBoostLine: "Strong background in distributed systems engineering."}
	sections := ExtractResumeSections(r)
	assert.NotEmpty(t, sections["education"])
}
