package scoring

import "github.com/kreeda/resumatch/internal/domain"

// ProjectMetricsKeywordScore is the "keyword mode" project component used
// inside CompositeKeywordScore: the mean of skill_relevance, domain_relevance,
// and execution_quality across all projects, or 0.5 when the resume has no
// projects.
func ProjectMetricsKeywordScore(r domain.Resume) float64 {
	if len(r.Projects) == 0 {
		return 0.5
	}
	var sum float64
	for _, p := range r.Projects {
		sum += (p.Metrics.SkillRelevance + p.Metrics.DomainRelevance + p.Metrics.ExecutionQuality) / 3
	}
	return sum / float64(len(r.Projects))
}

// TechnicalDepthScore is the mean technical_depth rating across all
// projects, or 0.5 when the resume has no projects. It feeds the
// "technical_depth" term of CompositeKeywordScore, since the dictionary's
// weight for that term has no other natural home in the keyword comparator.
func TechnicalDepthScore(r domain.Resume) float64 {
	if len(r.Projects) == 0 {
		return 0.5
	}
	var sum float64
	for _, p := range r.Projects {
		sum += p.Metrics.TechnicalDepth
	}
	return sum / float64(len(r.Projects))
}

// ProjectAggregateScore is the project-aggregate score: the mean,
// across all seven ProjectMetrics ratings of every project, weighted
// equally (1/7 each). Returns 0.5 when the resume has no projects, the
// kernel's "no constraint" default.
func ProjectAggregateScore(r domain.Resume) float64 {
	if len(r.Projects) == 0 {
		return 0.5
	}
	var sum float64
	for _, p := range r.Projects {
		m := p.Metrics
		sum += (m.Difficulty + m.Novelty + m.SkillRelevance + m.Complexity +
			m.TechnicalDepth + m.DomainRelevance + m.ExecutionQuality) / 7
	}
	return sum / float64(len(r.Projects))
}
