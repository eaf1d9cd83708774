package handlers

import (
	"sort"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/scoring"
)

// normalizeCohort re-derives each score record's keyword_score and
// semantic_score as a cohort-wide min-max normalisation once every
// candidate's raw scores exist, then recomputes the composite
// final_score/ranking_tier from the normalised components. The stage pipeline persists raw per-resume scores
// since each resume runs in isolation; the ranking fan-in is the first
// point at which the full cohort is known, so normalisation happens here.
func normalizeCohort(scores []domain.ScoreRecord, resumes map[string]domain.Resume, jd domain.JobDescription) []domain.ScoreRecord {
	if len(scores) == 0 {
		return scores
	}

	rawKeyword := make([]float64, len(scores))
	rawSemantic := make([]float64, len(scores))
	for i, s := range scores {
		rawKeyword[i] = s.KeywordScore
		rawSemantic[i] = s.SemanticScore
	}
	normKeyword := scoring.NormalizeMinMax(rawKeyword)
	normSemantic := scoring.NormalizeMinMax(rawSemantic)

	out := make([]domain.ScoreRecord, len(scores))
	for i, s := range scores {
		s.KeywordScore = normKeyword[i]
		s.SemanticScore = normSemantic[i]

		resume := resumes[s.ResumeID]
		composite := scoring.CompositeScore(scoring.CompositeScoreInputs{
			HardRequirementsPassed: s.HardRequirementsPassed,
			HardRequirementsScore:  s.HardRequirementsScore,
			KeywordScore:           s.KeywordScore,
			SemanticScore:          s.SemanticScore,
			ProjectScore:           s.ProjectScore,
			ResumeYears:            resume.YearsExperience,
			RequiredYears:          jd.MinimumExperienceYears,
			Educations:             resume.Education,
			RequiredFieldOfStudy:   jd.RequiredEducation,
		})
		s.FinalScore = composite.FinalScore
		s.RankingTier = composite.RankingTier
		s.ConfidenceScore = composite.ConfidenceScore
		if s.ComponentScores == nil {
			s.ComponentScores = map[string]float64{}
		}
		s.ComponentScores["hard_requirements"] = s.HardRequirementsScore
		s.ComponentScores["keyword"] = s.KeywordScore
		s.ComponentScores["semantic"] = s.SemanticScore
		s.ComponentScores["project"] = s.ProjectScore

		out[i] = s
	}
	return out
}

// buildCandidateSummary assembles the abbreviated per-candidate record the
// rerank function schema consumes: up to 10 skills, up to 3
// projects, and the programmatic compliance sub-record.
func buildCandidateSummary(score domain.ScoreRecord, resume domain.Resume) domain.CandidateSummary {
	role := ""
	if len(resume.Experience) > 0 {
		role = resume.Experience[0].Title
	}

	skills := flattenSkills(resume)
	if len(skills) > 10 {
		skills = skills[:10]
	}

	var projects []domain.ProjectTuple
	for i, p := range resume.Projects {
		if i >= 3 {
			break
		}
		projects = append(projects, domain.ProjectTuple{Name: p.Name, Approach: p.Approach, Tech: p.TechKeywords})
	}

	return domain.CandidateSummary{
		ResumeID:        resume.ID,
		Name:            resume.Name,
		ProjectScore:    score.ProjectScore,
		KeywordScore:    score.KeywordScore,
		SemanticScore:   score.SemanticScore,
		FinalScore:      score.FinalScore,
		YearsExperience: resume.YearsExperience,
		Location:        resume.Location,
		Role:            role,
		TopSkills:       skills,
		Projects:        projects,
		Compliance: domain.ComplianceSummary{
			MeetsAll: score.HardRequirementsPassed,
			Met:      score.HardRequirementsMet,
			Missing:  score.HardRequirementsMissing,
		},
	}
}

func flattenSkills(r domain.Resume) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	categories := make([]string, 0, len(r.CanonicalSkills))
	for cat := range r.CanonicalSkills {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		for _, skill := range r.CanonicalSkills[cat] {
			add(skill)
		}
	}
	for _, s := range r.InferredSkills {
		if s.Confidence >= 0.6 {
			add(s.Skill)
		}
	}
	return out
}

// rerankCriteriaFor derives the RerankCriteria used for one ranking batch's
// LLM call: the allowed fields are every HR-specified mandatory/soft
// compliance field name, and the raw prompt concatenates both blocks' free
// text so the model sees the hiring manager's original language.
func rerankCriteriaFor(jd domain.JobDescription) domain.RerankCriteria {
	allowed := jd.FilterRequirements.AllowedFields()
	fields := make([]string, 0, len(allowed))
	for name := range allowed {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	prompt := jd.FilterRequirements.MandatoryCompliances.RawPrompt
	if soft := jd.FilterRequirements.SoftCompliances.RawPrompt; soft != "" {
		if prompt != "" {
			prompt += "\n"
		}
		prompt += soft
	}

	return domain.RerankCriteria{RawPrompt: prompt, AllowedFields: fields}
}
