package scoring

import (
	"sort"
	"strings"

	"github.com/kreeda/resumatch/internal/domain"
)

// BaseCompositeWeights are the composite-score component weights.
var BaseCompositeWeights = map[string]float64{
	"hard_requirements":   0.25,
	"keyword_matching":    0.25,
	"semantic_similarity": 0.20,
	"project_relevance":   0.15,
	"experience_bonus":    0.10,
	"education_bonus":     0.05,
}

// Ranking tier bands, evaluated highest-first.
const (
	TierExcellent    = "Excellent"
	TierGood         = "Good"
	TierAverage      = "Average"
	TierBelowAverage = "Below Average"
	TierPoor         = "Poor"
)

var educationScores = map[string]float64{
	"phd": 1.0, "doctorate": 1.0, "doctoral": 1.0,
	"masters": 0.9, "master": 0.9, "msc": 0.9, "mba": 0.9,
	"bachelors": 0.7, "bachelor": 0.7, "bsc": 0.7, "btech": 0.7, "be": 0.7,
	"diploma": 0.5, "associate": 0.5,
	"certificate": 0.3, "certification": 0.3,
}

// EducationWeight returns the best-matching education_scores entry across
// every education record, with a +10% bonus (capped at 1.0) when the
// field of study appears in requiredField, and a 0.3 floor whether or not
// any entry matched (including when the resume has no education entries
// at all).
func EducationWeight(educations []domain.Education, requiredField string) float64 {
	best := 0.0
	want := norm(requiredField)
	for _, e := range educations {
		degree := norm(e.Degree)
		score, ok := bestEducationScore(degree)
		if !ok {
			continue
		}
		if want != "" && strings.Contains(norm(e.FieldOfStudy), want) {
			score = min1(score * 1.1)
		}
		if score > best {
			best = score
		}
	}
	if best < 0.3 {
		best = 0.3
	}
	return best
}

func bestEducationScore(degree string) (float64, bool) {
	best := 0.0
	found := false
	for key, score := range educationScores {
		if strings.Contains(degree, key) {
			found = true
			if score > best {
				best = score
			}
		}
	}
	return best, found
}

func min1(x float64) float64 {
	if x > 1.0 {
		return 1.0
	}
	return x
}

// ExperienceWeight implements the experience-weight formula: 1.0 once
// resumeYears reaches requiredYears, a linear ramp from 0.5 once it
// reaches half of requiredYears, and a shallower ramp from 0.2 below that.
// A non-positive requiredYears means the JD stated no minimum, which
// always weighs as the 1.0 ceiling.
func ExperienceWeight(resumeYears, requiredYears float64) float64 {
	if requiredYears <= 0 || resumeYears >= requiredYears {
		return 1.0
	}
	if resumeYears >= requiredYears/2 {
		return 0.5 + (resumeYears/requiredYears)*0.5
	}
	denom := requiredYears
	if denom < 1 {
		denom = 1
	}
	return 0.2 + (resumeYears/denom)*0.3
}

// CompositeResult is the full output of CompositeScore: the capped final
// score, ranking tier, confidence score, and a breakdown map suitable for
// ScoreRecord.ScoreBreakdown.
type CompositeResult struct {
	FinalScore      float64
	RankingTier     string
	ConfidenceScore float64
	Breakdown       map[string]any
}

// CompositeScoreInputs bundles every component the composite formula needs.
type CompositeScoreInputs struct {
	HardRequirementsPassed bool
	HardRequirementsScore  float64
	KeywordScore           float64
	SemanticScore          float64
	ProjectScore           float64
	ResumeYears            float64
	RequiredYears          float64
	Educations             []domain.Education
	RequiredFieldOfStudy   string
}

// CompositeScore computes the composite final score: a penalised,
// weighted sum of the six component scores, lifted by
// experience/education multipliers derived from their respective weights,
// capped at 1.0, and mapped into a ranking tier and confidence score.
func CompositeScore(in CompositeScoreInputs) CompositeResult {
	experienceWeight := ExperienceWeight(in.ResumeYears, in.RequiredYears)
	educationWeight := EducationWeight(in.Educations, in.RequiredFieldOfStudy)

	components := map[string]float64{
		"hard_requirements":   in.HardRequirementsScore,
		"keyword_matching":    in.KeywordScore,
		"semantic_similarity": in.SemanticScore,
		"project_relevance":   in.ProjectScore,
		"experience_bonus":    experienceWeight,
		"education_bonus":     educationWeight,
	}

	var rawScore float64
	for name, weight := range BaseCompositeWeights {
		rawScore += components[name] * weight
	}

	penaltyFactor := 1.0
	if !in.HardRequirementsPassed {
		penaltyFactor = 0.3
	}
	finalScore := rawScore * penaltyFactor

	experienceMultiplier := 1.0 + (experienceWeight-0.5)*0.4
	if experienceMultiplier > 1.2 {
		experienceMultiplier = 1.2
	}
	educationMultiplier := 1.0 + (educationWeight-0.5)*0.2
	if educationMultiplier > 1.1 {
		educationMultiplier = 1.1
	}

	enhancedScore := finalScore * experienceMultiplier * educationMultiplier
	cappedScore := min1(enhancedScore)

	hardReqForConfidence := in.HardRequirementsScore
	if !in.HardRequirementsPassed {
		hardReqForConfidence = 0.2
	}
	confidence := (hardReqForConfidence + in.KeywordScore + in.SemanticScore +
		min1(experienceWeight) + min1(educationWeight)) / 5.0

	breakdown := map[string]any{
		"raw_score":             rawScore,
		"penalty_factor":        penaltyFactor,
		"final_score":           finalScore,
		"experience_weight":     experienceWeight,
		"education_weight":      educationWeight,
		"experience_multiplier": experienceMultiplier,
		"education_multiplier":  educationMultiplier,
		"enhanced_score":        enhancedScore,
		"capped_score":          cappedScore,
		"component_scores":      components,
	}

	return CompositeResult{
		FinalScore:      cappedScore,
		RankingTier:     rankingTier(cappedScore),
		ConfidenceScore: confidence,
		Breakdown:       breakdown,
	}
}

func rankingTier(score float64) string {
	switch {
	case score >= 0.85:
		return TierExcellent
	case score >= 0.70:
		return TierGood
	case score >= 0.55:
		return TierAverage
	case score >= 0.40:
		return TierBelowAverage
	default:
		return TierPoor
	}
}

// RankingPosition returns candidateScore's 1-based rank within allScores
// (sorted descending; ties share the same rank as the first equal-or-lower
// score encountered), its percentile, and a rank_category band.
func RankingPosition(candidateScore float64, allScores []float64) (position int, percentile float64, category string) {
	total := len(allScores)
	if total == 0 {
		return 0, 0, rankCategory(0)
	}
	sorted := append([]float64(nil), allScores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	rank := total
	for i, s := range sorted {
		if s <= candidateScore {
			rank = i + 1
			break
		}
	}
	pct := float64(total-rank+1) / float64(total) * 100
	return rank, pct, rankCategory(pct)
}

func rankCategory(percentile float64) string {
	switch {
	case percentile >= 90:
		return "top_10_percent"
	case percentile >= 75:
		return "top_25_percent"
	case percentile >= 50:
		return "top_50_percent"
	case percentile >= 25:
		return "top_75_percent"
	default:
		return "bottom_25_percent"
	}
}
