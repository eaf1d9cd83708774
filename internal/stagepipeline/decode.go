package stagepipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kreeda/resumatch/internal/domain"
)

// parsedProjectMetrics/-Project/-Experience/-Education/-InferredSkill/
// -SkillProficiency/-Resume are wire-format mirrors of the
// parse_resume_detailed function arguments (see
// internal/llmgateway/schemas.go's resumeParseFunction), carrying the
// snake_case json tags the model's JSON uses so encoding/json can decode it;
// the domain.Resume/Project/... types carry no json tags since they are the
// kernel's internal shapes, not a wire format.
type parsedProjectMetrics struct {
	Difficulty       float64 `json:"difficulty"`
	Novelty          float64 `json:"novelty"`
	SkillRelevance   float64 `json:"skill_relevance"`
	Complexity       float64 `json:"complexity"`
	TechnicalDepth   float64 `json:"technical_depth"`
	DomainRelevance  float64 `json:"domain_relevance"`
	ExecutionQuality float64 `json:"execution_quality"`
}

type parsedProject struct {
	Name          string               `json:"name"`
	Approach      string               `json:"approach"`
	TechKeywords  []string             `json:"tech_keywords"`
	PrimarySkills []string             `json:"primary_skills"`
	Metrics       parsedProjectMetrics `json:"metrics"`
}

type parsedExperience struct {
	Company                  string   `json:"company"`
	Title                    string   `json:"title"`
	PeriodStart              string   `json:"period_start"`
	PeriodEnd                string   `json:"period_end"`
	ResponsibilitiesKeywords []string `json:"responsibilities_keywords"`
	Achievements             []string `json:"achievements"`
	PrimaryTech              []string `json:"primary_tech"`
}

type parsedEducation struct {
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
}

type parsedInferredSkill struct {
	Skill      string   `json:"skill"`
	Confidence float64  `json:"confidence"`
	Provenance []string `json:"provenance"`
}

type parsedSkillProficiency struct {
	Skill string `json:"skill"`
	Level string `json:"level"`
}

type parsedResume struct {
	Name                string                   `json:"name"`
	Email               string                   `json:"email"`
	Phone               string                   `json:"phone"`
	Location            string                   `json:"location"`
	YearsExperience     float64                  `json:"years_experience"`
	DomainTags          []string                 `json:"domain_tags"`
	ProfileKeywordsLine string                   `json:"profile_keywords_line"`
	ATSBoostLine        string                   `json:"ats_boost_line"`
	CanonicalSkills     map[string][]string      `json:"canonical_skills"`
	InferredSkills      []parsedInferredSkill    `json:"inferred_skills"`
	SkillProficiency    []parsedSkillProficiency `json:"skill_proficiency"`
	Projects            []parsedProject          `json:"projects"`
	ExperienceEntries   []parsedExperience       `json:"experience_entries"`
	Education           []parsedEducation        `json:"education"`
}

// applyParsedResume decodes the ai_parse stage's raw function arguments and
// merges them onto an existing domain.Resume (the fetch_resume stage's
// result), leaving any field the model omitted untouched.
func applyParsedResume(r *domain.Resume, args map[string]any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("op=stagepipeline.applyParsedResume: re-encode arguments: %w", err)
	}
	var p parsedResume
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("op=stagepipeline.applyParsedResume: decode arguments: %w", err)
	}

	if p.Name != "" {
		r.Name = p.Name
	}
	if p.Email != "" {
		r.Email = p.Email
	}
	if p.Phone != "" {
		r.Phone = p.Phone
	}
	if p.Location != "" {
		r.Location = p.Location
	}
	if p.YearsExperience > 0 {
		r.YearsExperience = p.YearsExperience
	}
	if len(p.DomainTags) > 0 {
		r.DomainTags = p.DomainTags
	}
	if p.ProfileKeywordsLine != "" {
		r.ProfileKeywordsLine = p.ProfileKeywordsLine
	}
	if p.ATSBoostLine != "" {
		r.ATSBoostLine = p.ATSBoostLine
	}
	if len(p.CanonicalSkills) > 0 {
		r.CanonicalSkills = canonicalizeSkills(p.CanonicalSkills)
	}
	if r.CandidateID == "" {
		r.CandidateID = domain.DeriveCandidateID(r.Email, r.Phone, r.Name)
	}

	for _, s := range p.InferredSkills {
		r.InferredSkills = append(r.InferredSkills, domain.InferredSkill{Skill: s.Skill, Confidence: s.Confidence, Provenance: s.Provenance})
	}
	for _, s := range p.SkillProficiency {
		r.SkillProficiency = append(r.SkillProficiency, domain.SkillProficiency{Skill: s.Skill, Level: s.Level})
	}
	for _, e := range p.Education {
		r.Education = append(r.Education, domain.Education{
			Degree:       e.Degree,
			FieldOfStudy: e.Field,
			Institution:  e.Institution,
			Year:         parseYear(e.Year),
		})
	}
	for _, x := range p.ExperienceEntries {
		r.Experience = append(r.Experience, domain.Experience{
			Title:                    x.Title,
			Company:                  x.Company,
			StartDate:                x.PeriodStart,
			EndDate:                  x.PeriodEnd,
			PrimaryTech:              x.PrimaryTech,
			ResponsibilitiesKeywords: x.ResponsibilitiesKeywords,
			Achievements:             x.Achievements,
		})
	}
	for _, proj := range p.Projects {
		r.Projects = append(r.Projects, domain.Project{
			Name:          proj.Name,
			Approach:      proj.Approach,
			TechKeywords:  proj.TechKeywords,
			PrimarySkills: proj.PrimarySkills,
			Metrics: domain.ProjectMetrics{
				Difficulty:       proj.Metrics.Difficulty,
				Novelty:          proj.Metrics.Novelty,
				SkillRelevance:   proj.Metrics.SkillRelevance,
				Complexity:       proj.Metrics.Complexity,
				TechnicalDepth:   proj.Metrics.TechnicalDepth,
				DomainRelevance:  proj.Metrics.DomainRelevance,
				ExecutionQuality: proj.Metrics.ExecutionQuality,
			},
		})
	}

	if r.YearsExperience == 0 {
		r.YearsExperience = deriveYearsExperience(r.Experience)
	}

	return nil
}

// canonicalizeSkills lowercases, dedupes, and sorts every category's
// tokens so canonical_skills is a sorted set regardless of what the model
// returned.
func canonicalizeSkills(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for cat, skills := range in {
		seen := make(map[string]struct{}, len(skills))
		var cleaned []string
		for _, s := range skills {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			cleaned = append(cleaned, s)
		}
		sort.Strings(cleaned)
		out[cat] = cleaned
	}
	return out
}

// deriveYearsExperience sums year-granular durations across experience
// entries when the model did not supply years_experience; month precision
// in period strings is intentionally dropped.
func deriveYearsExperience(entries []domain.Experience) float64 {
	var total float64
	for _, e := range entries {
		start := parseYear(e.StartDate)
		end := parseYear(e.EndDate)
		if start > 0 && end >= start {
			total += float64(end - start)
		}
	}
	return total
}

// parseYear extracts the first four-digit year from a free-text date field
// (e.g. "2021", "2021-05", "May 2021"), defaulting to 0 when absent.
var yearPattern = regexp.MustCompile(`\d{4}`)

func parseYear(s string) int {
	match := yearPattern.FindString(s)
	if match == "" {
		return 0
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return year
}
