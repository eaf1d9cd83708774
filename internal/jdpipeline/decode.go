package jdpipeline

import (
	"encoding/json"
	"fmt"

	"github.com/kreeda/resumatch/internal/domain"
)

// parsedJD is the wire-format mirror of the parse_jd_detailed function
// arguments (see internal/llmgateway/schemas.go's jdParseFunction),
// carrying the snake_case json tags the model's JSON uses.
type parsedJD struct {
	RoleTitle               string             `json:"role_title"`
	SeniorityLevel          string             `json:"seniority_level"`
	DomainTags              []string           `json:"domain_tags"`
	RequiredSkills          []string           `json:"required_skills"`
	PreferredSkills         []string           `json:"preferred_skills"`
	YearsExperienceRequired float64            `json:"years_experience_required"`
	MinDegreeLevel          string             `json:"min_degree_level"`
	EducationRequirements   []string           `json:"education_requirements"`
	CertificationsRequired  []string           `json:"certifications_required"`
	Responsibilities        []string           `json:"responsibilities"`
	WeightedKeywords        map[string]float64 `json:"weighted_keywords"`
	Weighting               map[string]float64 `json:"weighting"`
}

// applyParsedJD decodes the ai_parse stage's raw function arguments and
// merges them onto an existing domain.JobDescription, leaving any field the
// model omitted untouched. canonical_skills is accepted by the schema but
// not currently surfaced on domain.JobDescription, so it is ignored here.
func applyParsedJD(jd *domain.JobDescription, args map[string]any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("op=jdpipeline.applyParsedJD: re-encode arguments: %w", err)
	}
	var p parsedJD
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("op=jdpipeline.applyParsedJD: decode arguments: %w", err)
	}

	if p.RoleTitle != "" {
		jd.Title = p.RoleTitle
	}
	if p.SeniorityLevel != "" {
		jd.Seniority = p.SeniorityLevel
	}
	if len(p.DomainTags) > 0 {
		jd.DomainTags = p.DomainTags
	}
	if len(p.RequiredSkills) > 0 {
		jd.RequiredSkills = p.RequiredSkills
	}
	if len(p.PreferredSkills) > 0 {
		jd.PreferredSkills = p.PreferredSkills
	}
	if p.YearsExperienceRequired > 0 {
		jd.MinimumExperienceYears = p.YearsExperienceRequired
	}
	if p.MinDegreeLevel != "" {
		jd.RequiredEducation = p.MinDegreeLevel
	}
	if len(p.EducationRequirements) > 0 {
		jd.EducationRequirements = p.EducationRequirements
	}
	if len(p.CertificationsRequired) > 0 {
		jd.CertificationsRequired = p.CertificationsRequired
	}
	if len(p.Responsibilities) > 0 {
		jd.Responsibilities = p.Responsibilities
	}
	if len(p.WeightedKeywords) > 0 {
		jd.WeightedKeywords = p.WeightedKeywords
	}
	if len(p.Weighting) > 0 {
		jd.Weighting = p.Weighting
	}

	jd.HRNotes = domain.ExtractHRNotes(jd.DomainTags)
	return nil
}

// parsedRequirementSpec is the wire mirror of one parse_hr_requirements
// structured entry.
type parsedRequirementSpec struct {
	Type      string   `json:"type"`
	Specified bool     `json:"specified"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
	Required  []string `json:"required"`
	Degree    string   `json:"degree"`
	Location  string   `json:"location"`
}

// applyCompliance decodes a parse_hr_requirements call's structured map
// into a domain.ComplianceBlock, carrying rawPrompt through verbatim. A
// field's presence in the model's response with max > 0 sets HasMax, since
// the schema has no separate has_max flag.
func applyCompliance(rawPrompt string, args map[string]any) (domain.ComplianceBlock, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return domain.ComplianceBlock{}, fmt.Errorf("op=jdpipeline.applyCompliance: re-encode arguments: %w", err)
	}
	var decoded struct {
		Structured map[string]parsedRequirementSpec `json:"structured"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.ComplianceBlock{}, fmt.Errorf("op=jdpipeline.applyCompliance: decode arguments: %w", err)
	}

	structured := make(map[string]domain.RequirementSpec, len(decoded.Structured))
	for name, spec := range decoded.Structured {
		structured[name] = domain.RequirementSpec{
			Type:      spec.Type,
			Specified: spec.Specified,
			Min:       spec.Min,
			Max:       spec.Max,
			HasMax:    spec.Max > 0,
			Required:  spec.Required,
			Degree:    spec.Degree,
			Location:  spec.Location,
		}
	}
	return domain.ComplianceBlock{RawPrompt: rawPrompt, Structured: structured}, nil
}
