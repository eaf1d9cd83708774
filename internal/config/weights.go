package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScoringWeightsYAML mirrors scoring.BaseCompositeWeights' shape so an
// operator can retune the composite formula without a redeploy. Any key
// omitted from the file keeps its built-in default.
type ScoringWeightsYAML struct {
	HardRequirements   *float64 `yaml:"hard_requirements"`
	KeywordMatching    *float64 `yaml:"keyword_matching"`
	SemanticSimilarity *float64 `yaml:"semantic_similarity"`
	ProjectRelevance   *float64 `yaml:"project_relevance"`
	ExperienceBonus    *float64 `yaml:"experience_bonus"`
	EducationBonus     *float64 `yaml:"education_bonus"`
}

// LoadScoringWeights reads path (e.g. "configs/scoring_weights.yaml") and
// returns the overrides present in it keyed the same as
// scoring.BaseCompositeWeights. A missing file is not an error: it means
// "use the built-in defaults", matching how ScoringWeightsPath defaults to
// empty in Config.
func LoadScoringWeights(path string) (map[string]float64, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadScoringWeights: read %s: %w", path, err)
	}

	var doc ScoringWeightsYAML
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("op=config.LoadScoringWeights: parse %s: %w", path, err)
	}

	out := make(map[string]float64, 6)
	set := func(name string, v *float64) {
		if v != nil {
			out[name] = *v
		}
	}
	set("hard_requirements", doc.HardRequirements)
	set("keyword_matching", doc.KeywordMatching)
	set("semantic_similarity", doc.SemanticSimilarity)
	set("project_relevance", doc.ProjectRelevance)
	set("experience_bonus", doc.ExperienceBonus)
	set("education_bonus", doc.EducationBonus)
	return out, nil
}
