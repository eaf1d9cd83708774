package scoring

import (
	"fmt"
	"strings"

	"github.com/kreeda/resumatch/internal/domain"
)

// HardRequirementsResult is the outcome of CheckHardRequirements: which
// named fields passed or failed, an overall pass/fail, and the compliance
// ratio met/total (1.0 when nothing was specified).
type HardRequirementsResult struct {
	Passed          bool
	ComplianceScore float64
	Met             []string
	Missing         []string
	FilterReason    string
}

// CheckHardRequirements evaluates every specified compliance field
// (mandatory ∪ soft) against the resume, dispatching by field name to the
// experience, hard_skills, education, and location checks; any
// other field name passes by default. Fields are visited in map order, so
// which three failure reasons FilterReason keeps is not fixed. The overall
// Passed flag and
// ComplianceScore only reflect mandatory fields; soft fields are reported
// for visibility but never fail the check. Met and Missing carry bare
// field names (the shape the rerank allowed-fields filter expects);
// human-readable failure detail goes to FilterReason.
func CheckHardRequirements(r domain.Resume, fr domain.FilterRequirements) HardRequirementsResult {
	mandatoryMet, mandatoryMissing, mandatoryReasons := evalComplianceBlock(r, fr.MandatoryCompliances)
	softMet, softMissing, _ := evalComplianceBlock(r, fr.SoftCompliances)

	total := len(mandatoryMet) + len(mandatoryMissing)
	score := 1.0
	if total > 0 {
		score = float64(len(mandatoryMet)) / float64(total)
	}

	reasonParts := mandatoryReasons
	if len(reasonParts) > 3 {
		reasonParts = reasonParts[:3]
	}

	// A field failing in either block is reported missing; Met and Missing
	// stay disjoint even when mandatory and soft specify the same field.
	missing := dedupeNames(append(mandatoryMissing, softMissing...))
	missingSet := make(map[string]struct{}, len(missing))
	for _, name := range missing {
		missingSet[name] = struct{}{}
	}
	var met []string
	for _, name := range dedupeNames(append(mandatoryMet, softMet...)) {
		if _, clash := missingSet[name]; !clash {
			met = append(met, name)
		}
	}

	return HardRequirementsResult{
		Passed:          len(mandatoryMissing) == 0,
		ComplianceScore: score,
		Met:             met,
		Missing:         missing,
		FilterReason:    strings.Join(reasonParts, "; "),
	}
}

func dedupeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func evalComplianceBlock(r domain.Resume, block domain.ComplianceBlock) (met, missing, reasons []string) {
	for name, spec := range block.Structured {
		if !spec.Specified {
			continue
		}
		ok, reason := checkRequirement(r, name, spec)
		if ok {
			met = append(met, name)
		} else {
			missing = append(missing, name)
			reasons = append(reasons, fmt.Sprintf("%s: %s", name, reason))
		}
	}
	return met, missing, reasons
}

func checkRequirement(r domain.Resume, name string, spec domain.RequirementSpec) (bool, string) {
	switch name {
	case "experience":
		return checkExperience(r, spec)
	case "hard_skills":
		return checkSkills(r, spec)
	case "education":
		return checkEducation(r, spec)
	case "location":
		return checkLocation(r, spec)
	default:
		// Unrecognised fields pass by default; new kinds are added
		// explicitly.
		return true, ""
	}
}

func checkExperience(r domain.Resume, spec domain.RequirementSpec) (bool, string) {
	if spec.Min <= 0 {
		return true, ""
	}
	if r.YearsExperience >= spec.Min {
		return true, ""
	}
	return false, fmt.Sprintf("requires %.1f+ years, candidate has %.1f", spec.Min, r.YearsExperience)
}

func checkSkills(r domain.Resume, spec domain.RequirementSpec) (bool, string) {
	if len(spec.Required) == 0 {
		return true, ""
	}
	resumeSkills := CollectResumeTokens(r)
	var missing []string
	for _, required := range spec.Required {
		if skillSatisfied(required, resumeSkills) {
			continue
		}
		missing = append(missing, required)
	}
	if len(missing) == 0 {
		return true, ""
	}
	return false, fmt.Sprintf("missing required skills: %s", strings.Join(missing, ", "))
}

// skillSatisfied does a substring match in either direction, a tolerant
// comparison where required "go" matches resume token "golang" and vice
// versa.
func skillSatisfied(required string, resumeSkills map[string]struct{}) bool {
	req := norm(required)
	for token := range resumeSkills {
		if strings.Contains(token, req) || strings.Contains(req, token) {
			return true
		}
	}
	return false
}

func checkEducation(r domain.Resume, spec domain.RequirementSpec) (bool, string) {
	if spec.Degree == "" {
		return true, ""
	}
	want := norm(spec.Degree)
	for _, e := range r.Education {
		have := norm(e.Degree)
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("requires education matching %q", spec.Degree)
}

var locationAlwaysOK = map[string]struct{}{
	"remote": {}, "any": {}, "anywhere": {}, "flexible": {},
}

func checkLocation(r domain.Resume, spec domain.RequirementSpec) (bool, string) {
	if spec.Location == "" {
		return true, ""
	}
	want := norm(spec.Location)
	if _, ok := locationAlwaysOK[want]; ok {
		return true, ""
	}
	have := norm(r.Location)
	if have == "" {
		return false, fmt.Sprintf("requires location matching %q, candidate location unknown", spec.Location)
	}
	if strings.Contains(have, want) || strings.Contains(want, have) {
		return true, ""
	}
	return false, fmt.Sprintf("requires location matching %q, candidate is %q", spec.Location, r.Location)
}
