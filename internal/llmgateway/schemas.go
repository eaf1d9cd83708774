package llmgateway

import (
	"fmt"
	"sort"

	"github.com/kreeda/resumatch/internal/domain"
)

// functionSchema is the JSON-Schema-shaped body of one OpenAI-style
// function/tool declaration.
type functionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func arr(item map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": item}
}

func str() map[string]any { return map[string]any{"type": "string"} }
func num() map[string]any { return map[string]any{"type": "number"} }

func strArr() map[string]any { return arr(str()) }

// jdParseFunction is the kind=jd tool schema: role identity, required/
// preferred skills, weighted keywords, canonical skills, domain tags, and
// an optional weighting vector.
func jdParseFunction() functionSchema {
	return functionSchema{
		Name:        "parse_jd_detailed",
		Description: "Return a structured Job Description record for ATS and semantic matching: identity, required/preferred skills, weighted keywords, canonical skills, domain tags, and a weighting vector.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"role_title":                str(),
				"seniority_level":           str(),
				"domain_tags":               strArr(),
				"required_skills":           strArr(),
				"preferred_skills":          strArr(),
				"years_experience_required": num(),
				"min_degree_level":          str(),
				"education_requirements":    strArr(),
				"certifications_required":   strArr(),
				"responsibilities":          strArr(),
				"weighted_keywords": map[string]any{
					"type":                 "object",
					"description":          "Mapping of keyword to weight in [0,1]",
					"additionalProperties": num(),
				},
				"canonical_skills": map[string]any{
					"type":                 "object",
					"additionalProperties": strArr(),
				},
				"weighting": map[string]any{
					"type":                 "object",
					"description":          "Optional override of the scoring kernel's composite weight vector",
					"additionalProperties": num(),
				},
			},
			"required": []string{"role_title", "required_skills"},
		},
	}
}

// resumeParseFunction is the kind=resume tool schema.
func resumeParseFunction() functionSchema {
	metrics := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"difficulty":         num(),
			"novelty":            num(),
			"skill_relevance":    num(),
			"complexity":         num(),
			"technical_depth":    num(),
			"domain_relevance":   num(),
			"execution_quality":  num(),
		},
		"required": []string{"difficulty", "novelty", "skill_relevance", "complexity", "technical_depth", "domain_relevance", "execution_quality"},
	}
	project := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":           str(),
			"approach":       str(),
			"tech_keywords":  strArr(),
			"primary_skills": strArr(),
			"metrics":        metrics,
		},
	}
	experience := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"company":                   str(),
			"title":                     str(),
			"period_start":              str(),
			"period_end":                str(),
			"responsibilities_keywords": strArr(),
			"achievements":              strArr(),
			"primary_tech":              strArr(),
		},
	}
	education := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"degree":      str(),
			"field":       str(),
			"institution": str(),
			"year":        str(),
		},
	}
	inferredSkill := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"skill":      str(),
			"confidence": num(),
			"provenance": strArr(),
		},
	}
	skillProficiency := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"skill": str(),
			"level": str(),
		},
	}
	return functionSchema{
		Name:        "parse_resume_detailed",
		Description: "Return a richly-structured JSON resume for ATS and LLM ranking: canonical skills, inferred skills with confidence, projects with seven quality metrics, experience, education, domain tags.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":                   str(),
				"email":                  str(),
				"phone":                  str(),
				"location":               str(),
				"years_experience":       num(),
				"domain_tags":            strArr(),
				"profile_keywords_line":  str(),
				"ats_boost_line":         str(),
				"canonical_skills": map[string]any{
					"type":                 "object",
					"additionalProperties": strArr(),
				},
				"inferred_skills":   arr(inferredSkill),
				"skill_proficiency": arr(skillProficiency),
				"projects":          arr(project),
				"experience_entries": arr(experience),
				"education":          arr(education),
			},
			"required": []string{"name", "profile_keywords_line", "canonical_skills", "ats_boost_line"},
		},
	}
}

// complianceParseFunction is the kind=compliance tool schema: a structured
// field->spec map with type/specified/constraints per recognised
// requirement kind.
func complianceParseFunction() functionSchema {
	fieldSpec := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type":      str(),
			"specified": map[string]any{"type": "boolean"},
			"min":       num(),
			"max":       num(),
			"required":  strArr(),
			"degree":    str(),
			"location":  str(),
		},
	}
	return functionSchema{
		Name:        "parse_hr_requirements",
		Description: "Parse free-text HR requirements into a structured field->spec map. Use standard field names: hard_skills, experience, education, location. Each field must carry \"specified\": true when present in the prompt.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"structured": map[string]any{
					"type":                 "object",
					"description":          "Field name -> requirement spec",
					"additionalProperties": fieldSpec,
				},
			},
			"required": []string{"structured"},
		},
	}
}

// schemaForKind resolves the tool/function schema used by ParseText for a
// given kind.
func schemaForKind(kind domain.ParseKind) (functionSchema, error) {
	switch kind {
	case domain.ParseKindJD:
		return jdParseFunction(), nil
	case domain.ParseKindResume:
		return resumeParseFunction(), nil
	case domain.ParseKindCompliance:
		return complianceParseFunction(), nil
	default:
		return functionSchema{}, fmt.Errorf("llmgateway: unknown parse kind %q", kind)
	}
}

// rerankFunction builds the re_rank_candidates tool schema for one batch,
// injecting allowedFields into the requirements_met/requirements_missing
// item descriptions so the model only returns recognised field names.
func rerankFunction(allowedFields []string) functionSchema {
	sorted := append([]string(nil), allowedFields...)
	sort.Strings(sorted)
	fieldsDesc := "NONE - no requirements specified"
	if len(sorted) > 0 {
		fieldsDesc = fmt.Sprintf("%v", sorted)
	}

	candidate := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"candidate_id":       str(),
			"re_rank_score":      map[string]any{"type": "number", "description": "Re-ranked score (0-1)"},
			"meets_requirements": map[string]any{"type": "boolean"},
			"requirements_met": map[string]any{
				"type":        "array",
				"items":       str(),
				"description": "Validated list of requirement types from this set that candidate meets: " + fieldsDesc + ". Validate programmatic results and correct if needed.",
			},
			"requirements_missing": map[string]any{
				"type":        "array",
				"items":       str(),
				"description": "Validated list of requirement types from this set that candidate is missing: " + fieldsDesc + ". Validate programmatic results and correct if needed.",
			},
		},
		"required": []string{"candidate_id", "re_rank_score", "meets_requirements", "requirements_met", "requirements_missing"},
	}

	return functionSchema{
		Name:        "re_rank_candidates",
		Description: "Re-rank candidates based on filter requirements and all ranking scores. Validate compliance results and return validated requirements.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ranked_candidates": arr(candidate),
			},
			"required": []string{"ranked_candidates"},
		},
	}
}
