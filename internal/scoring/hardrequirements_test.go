package scoring

import (
	"strings"
	"testing"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCheckHardRequirements_NoneSpecifiedPasses(t *testing.T) {
	got := CheckHardRequirements(domain.Resume{}, domain.FilterRequirements{})
	assert.True(t, got.Passed)
	assert.Equal(t, 1.0, got.ComplianceScore)
}

func TestCheckHardRequirements_ExperienceFailsBelowMinimum(t *testing.T) {
	r := domain.Resume{YearsExperience: 2}
	fr := domain.FilterRequirements{
		MandatoryCompliances: domain.ComplianceBlock{
			Structured: map[string]domain.RequirementSpec{
				"experience": {Specified: true, Min: 5},
			},
		},
	}
	got := CheckHardRequirements(r, fr)
	assert.False(t, got.Passed)
	assert.Contains(t, got.Missing, "experience")
	assert.Contains(t, got.FilterReason, "requires 5.0+ years, candidate has 2.0")
	assert.Equal(t, 0.0, got.ComplianceScore)
}

func TestCheckHardRequirements_SkillsSubstringMatchEitherDirection(t *testing.T) {
	r := domain.Resume{CanonicalSkills: map[string][]string{"languages": {"golang"}}}
	fr := domain.FilterRequirements{
		MandatoryCompliances: domain.ComplianceBlock{
			Structured: map[string]domain.RequirementSpec{
				"hard_skills": {Specified: true, Required: []string{"go"}},
			},
		},
	}
	got := CheckHardRequirements(r, fr)
	assert.True(t, got.Passed)
	assert.Contains(t, got.Met, "hard_skills")
}

func TestCheckHardRequirements_LocationSpecialCasesRemote(t *testing.T) {
	r := domain.Resume{Location: "Bangalore, India"}
	fr := domain.FilterRequirements{
		MandatoryCompliances: domain.ComplianceBlock{
			Structured: map[string]domain.RequirementSpec{
				"location": {Specified: true, Location: "remote"},
			},
		},
	}
	got := CheckHardRequirements(r, fr)
	assert.True(t, got.Passed)
}

func TestCheckHardRequirements_EducationSubstringMatch(t *testing.T) {
	r := domain.Resume{Education: []domain.Education{{Degree: "Bachelor of Science in Computer Science"}}}
	fr := domain.FilterRequirements{
		MandatoryCompliances: domain.ComplianceBlock{
			Structured: map[string]domain.RequirementSpec{
				"education": {Specified: true, Degree: "bachelor"},
			},
		},
	}
	got := CheckHardRequirements(r, fr)
	assert.True(t, got.Passed)
}

func TestCheckHardRequirements_UnrecognisedFieldPassesByDefault(t *testing.T) {
	fr := domain.FilterRequirements{
		MandatoryCompliances: domain.ComplianceBlock{
			Structured: map[string]domain.RequirementSpec{
				"visa_sponsorship": {Specified: true},
			},
		},
	}
	got := CheckHardRequirements(domain.Resume{}, fr)
	assert.True(t, got.Passed)
	assert.Contains(t, got.Met, "visa_sponsorship")
}

func TestCheckHardRequirements_SoftFailuresDoNotFailOverall(t *testing.T) {
	fr := domain.FilterRequirements{
		SoftCompliances: domain.ComplianceBlock{
			Structured: map[string]domain.RequirementSpec{
				"experience": {Specified: true, Min: 10},
			},
		},
	}
	got := CheckHardRequirements(domain.Resume{YearsExperience: 1}, fr)
	assert.True(t, got.Passed)
	assert.Contains(t, got.Missing, "experience")
}

func TestCheckHardRequirements_FilterReasonCapsAtThree(t *testing.T) {
	fr := domain.FilterRequirements{
		MandatoryCompliances: domain.ComplianceBlock{
			Structured: map[string]domain.RequirementSpec{
				"experience":  {Specified: true, Min: 10},
				"education":   {Specified: true, Degree: "phd"},
				"location":    {Specified: true, Location: "berlin"},
				"hard_skills": {Specified: true, Required: []string{"rust", "erlang"}},
			},
		},
	}
	got := CheckHardRequirements(domain.Resume{}, fr)
	assert.False(t, got.Passed)
	assert.Len(t, got.Missing, 4)
	assert.LessOrEqual(t, len(splitReason(got.FilterReason)), 3)
}

func splitReason(reason string) []string {
	if reason == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(reason, "; ") {
		parts = append(parts, p)
	}
	return parts
}
