// Package scoring implements the pure, deterministic scoring kernel:
// keyword overlap, section-wise semantic similarity, project aggregation,
// hard-requirement checks, and the composite final score. None of these
// functions perform I/O; the stage pipeline supplies already-fetched JD and
// resume records.
package scoring

import (
	"sort"
	"strings"

	"github.com/kreeda/resumatch/internal/domain"
)

// DefaultCompositeKeywordWeights are the default weights for
// CompositeKeywordScore, overridden by a JD's own Weighting map when
// non-empty.
var DefaultCompositeKeywordWeights = map[string]float64{
	"required_skills":     0.18,
	"preferred_skills":    0.08,
	"weighted_keywords":   0.15,
	"experience_keywords": 0.25,
	"domain_relevance":    0.10,
	"technical_depth":     0.10,
	"project_metrics":     0.09,
	"responsibilities":    0.03,
	"education":           0.02,
}

// ExperienceKeywordWeights is the fixed action-verb dictionary used by
// ExperienceKeywordScore.
var ExperienceKeywordWeights = map[string]float64{
	"lead": 4.0, "led": 4.0, "manager": 4.0, "managed": 4.0, "architect": 4.0,
	"architected": 4.0, "designed": 3.6, "design": 3.6, "owned": 3.6,
	"implemented": 3.2, "built": 3.6, "scaled": 3.4, "scale": 3.4,
	"optimized": 3.2, "deployed": 3.2, "productionized": 3.6,
	"mentored": 2.8, "coach": 2.8, "contributed": 2.4, "contributed to": 2.4,
	"improved": 3.0, "reduced": 3.0, "increased": 3.0, "automated": 3.2,
	"orchestrated": 3.4,
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func splitPhrase(phrase string) []string {
	if phrase == "" {
		return nil
	}
	replaced := strings.NewReplacer("/", ",", ";", ",").Replace(phrase)
	var out []string
	for _, part := range strings.Split(replaced, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, norm(p))
		}
	}
	for _, word := range strings.Fields(phrase) {
		out = append(out, norm(word))
	}
	return out
}

// CollectResumeTokens gathers every token the keyword comparator treats as
// evidence of a skill: canonical skills, confident inferred skills,
// self-reported proficiencies, project/experience tech keywords, the
// comma/slash/semicolon-split and whitespace-split profile/ATS lines, and
// domain tags.
func CollectResumeTokens(r domain.Resume) map[string]struct{} {
	tokens := make(map[string]struct{})
	add := func(s string) {
		if s = norm(s); s != "" {
			tokens[s] = struct{}{}
		}
	}

	for _, vals := range r.CanonicalSkills {
		for _, v := range vals {
			add(v)
		}
	}
	for _, inf := range r.InferredSkills {
		if inf.Confidence >= 0.6 {
			add(inf.Skill)
		}
	}
	for _, sp := range r.SkillProficiency {
		add(sp.Skill)
	}
	for _, proj := range r.Projects {
		for _, t := range proj.TechKeywords {
			add(t)
		}
		for _, t := range proj.PrimarySkills {
			add(t)
		}
	}
	for _, exp := range r.Experience {
		for _, t := range exp.PrimaryTech {
			add(t)
		}
		for _, t := range exp.ResponsibilitiesKeywords {
			add(t)
		}
	}
	for _, phrase := range []string{r.ProfileKeywordsLine, r.ATSBoostLine} {
		for _, t := range splitPhrase(phrase) {
			add(t)
		}
	}
	for _, t := range r.DomainTags {
		add(t)
	}
	return tokens
}

// Overlap returns |jdList ∩ tokens| / |jdList|, or 0.5 when jdList is empty
// ("no constraint").
func Overlap(jdList []string, tokens map[string]struct{}) float64 {
	if len(jdList) == 0 {
		return 0.5
	}
	matched := 0
	for _, kw := range jdList {
		if _, ok := tokens[norm(kw)]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(jdList))
}

// WeightedKeywordScore returns Σw_k·[k∈tokens] / Σw_k, or 0.5 when weighted
// is empty.
func WeightedKeywordScore(weighted map[string]float64, tokens map[string]struct{}) float64 {
	if len(weighted) == 0 {
		return 0.5
	}
	var matched, total float64
	for kw, w := range weighted {
		total += w
		if _, ok := tokens[norm(kw)]; ok {
			matched += w
		}
	}
	if total <= 0 {
		return 0.5
	}
	return matched / total
}

// ExperienceKeywordScore sums ExperienceKeywordWeights entries whose
// keyword appears in the lowercased concatenation of
// responsibilities_keywords, achievements, profile_keywords_line, and
// ats_boost_line, divided by the dictionary's total weight.
func ExperienceKeywordScore(r domain.Resume) float64 {
	var sources []string
	for _, exp := range r.Experience {
		sources = append(sources, exp.ResponsibilitiesKeywords...)
		sources = append(sources, exp.Achievements...)
	}
	sources = append(sources, r.ProfileKeywordsLine, r.ATSBoostLine)

	joined := norm(strings.Join(sources, " "))

	var matched, maxPossible float64
	for kw, w := range ExperienceKeywordWeights {
		maxPossible += w
		if strings.Contains(joined, kw) {
			matched += w
		}
	}
	if maxPossible <= 0 {
		return 0.0
	}
	return matched / maxPossible
}

// CompositeKeywordScore computes the weighted-sum keyword match score:
// required/preferred-skill overlap,
// weighted-keyword overlap, the experience-action-verb score, domain/
// responsibility/education overlap, the technical-depth project rating,
// and the project_metrics keyword-mode component. weighting overrides
// DefaultCompositeKeywordWeights entry-by-entry when non-empty.
func CompositeKeywordScore(jd domain.JobDescription, r domain.Resume) (float64, map[string]float64) {
	weights := make(map[string]float64, len(DefaultCompositeKeywordWeights))
	for k, v := range DefaultCompositeKeywordWeights {
		weights[k] = v
	}
	for k, v := range jd.Weighting {
		if _, known := weights[k]; known {
			weights[k] = v
		}
	}

	tokens := CollectResumeTokens(r)

	required := Overlap(jd.RequiredSkills, tokens)
	preferred := Overlap(jd.PreferredSkills, tokens)
	weightedKw := WeightedKeywordScore(jd.WeightedKeywords, tokens)
	domainRel := Overlap(jd.DomainTags, tokens)
	responsibilities := Overlap(jd.Responsibilities, tokens)
	eduReqs := append(append([]string{}, jd.EducationRequirements...), jd.CertificationsRequired...)
	education := Overlap(eduReqs, tokens)
	experience := ExperienceKeywordScore(r)
	projectMetrics := ProjectMetricsKeywordScore(r)
	technicalDepth := TechnicalDepthScore(r)

	breakdown := map[string]float64{
		"required_skills":     required * weights["required_skills"],
		"preferred_skills":    preferred * weights["preferred_skills"],
		"weighted_keywords":   weightedKw * weights["weighted_keywords"],
		"experience_keywords": experience * weights["experience_keywords"],
		"domain_relevance":    domainRel * weights["domain_relevance"],
		"technical_depth":     technicalDepth * weights["technical_depth"],
		"project_metrics":     projectMetrics * weights["project_metrics"],
		"responsibilities":    responsibilities * weights["responsibilities"],
		"education":           education * weights["education"],
	}

	var total float64
	for _, v := range breakdown {
		total += v
	}
	return total, breakdown
}

// NormalizeMinMax min-max normalises a cohort of raw scores: if max==min
// every entry becomes 1.0, otherwise each maps to (x-min)/(max-min).
func NormalizeMinMax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	min, max := sorted[0], sorted[len(sorted)-1]
	for i, s := range scores {
		if max == min {
			out[i] = 1.0
			continue
		}
		out[i] = (s - min) / (max - min)
	}
	return out
}
