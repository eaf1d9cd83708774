package scoring

import (
	"math"
	"regexp"
	"strings"

	"github.com/kreeda/resumatch/internal/domain"
)

// Thresholds and weights for section-wise semantic similarity.
const (
	// TauCov is the cosine-similarity threshold above which a JD sentence
	// counts as "covered" by its best-matching resume sentence.
	TauCov = 0.65
	// TauResume is the threshold used by the density term: the fraction
	// of resume rows whose best match against the JD clears it.
	TauResume = 0.55
	// MaxSentencesPerSection caps how many sentences of a section are
	// embedded, matching the upstream batching limit.
	MaxSentencesPerSection = 200
)

// sectionCoverageWeight, sectionDepthWeight, sectionDensityWeight combine
// into one section's semantic score: 0.5*coverage + 0.4*depth + 0.1*density.
const (
	sectionCoverageWeight = 0.5
	sectionDepthWeight    = 0.4
	sectionDensityWeight  = 0.1
)

// SectionWeights combine each section's score into the overall semantic
// score. They sum to 1.0.
var SectionWeights = map[string]float64{
	"skills":           0.30,
	"projects":         0.25,
	"responsibilities": 0.20,
	"profile":          0.10,
	"education":        0.05,
	"overall":          0.10,
}

var sentenceSplitter = regexp.MustCompile(`[.!?]+`)

// SplitSentences splits text on terminal punctuation and drops any segment
// with fewer than three words (the comparator's noise filter), capping the
// result at MaxSentencesPerSection.
func SplitSentences(text string) []string {
	var out []string
	for _, seg := range sentenceSplitter.Split(text, -1) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if len(strings.Fields(seg)) < 3 {
			continue
		}
		out = append(out, seg)
		if len(out) >= MaxSentencesPerSection {
			break
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ExtractJDSections splits a JD's text fields into the six named sections
// the embed stage sends for embedding: profile, skills, projects,
// responsibilities, education, overall.
func ExtractJDSections(jd domain.JobDescription) map[string][]string {
	sections := map[string][]string{}

	var skills []string
	skills = append(skills, jd.RequiredSkills...)
	skills = append(skills, jd.PreferredSkills...)
	for kw := range jd.WeightedKeywords {
		skills = append(skills, kw)
	}
	sections["skills"] = dedupe(skills)

	sections["responsibilities"] = dedupe(jd.Responsibilities)

	var education []string
	education = append(education, jd.EducationRequirements...)
	education = append(education, jd.CertificationsRequired...)
	if jd.RequiredEducation != "" {
		education = append(education, jd.RequiredEducation)
	}
	sections["education"] = dedupe(education)

	sections["profile"] = dedupe(SplitSentences(jd.Title))

	var overall []string
	overall = append(overall, SplitSentences(jd.RawText)...)
	sections["overall"] = dedupe(overall)

	// JD postings carry no "projects" section of their own; leave empty so
	// OverallSemanticScore falls back to the neutral default for it.
	sections["projects"] = nil

	return sections
}

// ExtractResumeSections splits a resume's fields into the same six named
// sections, using fixed per-section extraction rules: profile from
// profile_keywords_line, skills from
// canonical_skills plus confident (>=0.6) inferred skills, projects from
// name+approach+tech_keywords, responsibilities from
// responsibilities_keywords+achievements+primary_tech, education from
// education entries (falling back to ats_boost_line when empty), and
// overall from profile+project approaches+responsibilities+ats_boost_line.
func ExtractResumeSections(r domain.Resume) map[string][]string {
	sections := map[string][]string{}

	sections["profile"] = dedupe(SplitSentences(r.ProfileKeywordsLine))

	var skills []string
	for _, vals := range r.CanonicalSkills {
		skills = append(skills, vals...)
	}
	for _, inf := range r.InferredSkills {
		if inf.Confidence >= 0.6 {
			skills = append(skills, inf.Skill)
		}
	}
	sections["skills"] = dedupe(skills)

	var projects []string
	var projectApproaches []string
	for _, p := range r.Projects {
		var parts []string
		if p.Name != "" {
			parts = append(parts, p.Name)
		}
		if p.Approach != "" {
			parts = append(parts, p.Approach)
			projectApproaches = append(projectApproaches, p.Approach)
		}
		parts = append(parts, p.TechKeywords...)
		if sent := strings.Join(parts, " "); sent != "" {
			projects = append(projects, sent)
		}
	}
	sections["projects"] = dedupe(projects)

	var responsibilities []string
	for _, exp := range r.Experience {
		responsibilities = append(responsibilities, exp.ResponsibilitiesKeywords...)
		responsibilities = append(responsibilities, exp.Achievements...)
		responsibilities = append(responsibilities, exp.PrimaryTech...)
	}
	sections["responsibilities"] = dedupe(responsibilities)

	var education []string
	for _, e := range r.Education {
		var parts []string
		if e.Degree != "" {
			parts = append(parts, e.Degree)
		}
		if e.FieldOfStudy != "" {
			parts = append(parts, e.FieldOfStudy)
		}
		if e.Institution != "" {
			parts = append(parts, e.Institution)
		}
		if sent := strings.Join(parts, " "); sent != "" {
			education = append(education, sent)
		}
	}
	if len(education) == 0 {
		education = SplitSentences(r.ATSBoostLine)
	}
	sections["education"] = dedupe(education)

	var overall []string
	overall = append(overall, SplitSentences(r.ProfileKeywordsLine)...)
	overall = append(overall, projectApproaches...)
	overall = append(overall, responsibilities...)
	overall = append(overall, SplitSentences(r.ATSBoostLine)...)
	sections["overall"] = dedupe(overall)

	return sections
}

// CosineSim computes the cosine similarity of two vectors. Embeddings
// produced by EmbedBatch are already L2-normalised, so this reduces to a
// dot product; it still divides by the norms defensively for callers that
// pass in raw vectors.
func CosineSim(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SectionScore computes one section's semantic score from its JD matrix J
// (m rows) and resume matrix R (n rows) via the cosine matrix C = J·Rᵀ:
// coverage is the fraction of J's rows whose best match across R clears
// TauCov, depth is the mean of every J row's best match, and density is
// the fraction of R's rows whose best match across J clears TauResume.
// Returns 0.5 (the kernel's "no constraint" default) when J is empty, and
// 0 when R is empty but J is not.
func SectionScore(jdRows, resumeRows domain.EmbeddingMatrix) float64 {
	if len(jdRows) == 0 {
		return 0.5
	}
	if len(resumeRows) == 0 {
		return 0
	}

	covered := 0
	var depthSum float64
	for _, jdRow := range jdRows {
		best := -1.0
		for _, resumeRow := range resumeRows {
			if sim := CosineSim(jdRow, resumeRow); sim > best {
				best = sim
			}
		}
		depthSum += best
		if best >= TauCov {
			covered++
		}
	}
	coverage := float64(covered) / float64(len(jdRows))
	depth := depthSum / float64(len(jdRows))

	denseRows := 0
	for _, resumeRow := range resumeRows {
		best := -1.0
		for _, jdRow := range jdRows {
			if sim := CosineSim(jdRow, resumeRow); sim > best {
				best = sim
			}
		}
		if best >= TauResume {
			denseRows++
		}
	}
	density := float64(denseRows) / float64(len(resumeRows))

	return sectionCoverageWeight*coverage + sectionDepthWeight*depth + sectionDensityWeight*density
}

// OverallSemanticScore combines every section's SectionScore by
// SectionWeights. A section absent from both the JD and resume
// (profile/education/overall always present once raw text exists;
// "projects" is the common empty case on the JD side) scores 0.5 so its
// weight neither rewards nor penalises the candidate.
func OverallSemanticScore(jd domain.JobDescription, r domain.Resume) (float64, map[string]float64) {
	jdSections := jd.SectionEmbeddings
	resumeSections := r.SectionEmbeddings

	breakdown := make(map[string]float64, len(SectionWeights))
	var total float64
	for name, weight := range SectionWeights {
		score := SectionScore(jdSections[name], resumeSections[name])
		breakdown[name] = score
		total += score * weight
	}
	return total, breakdown
}
