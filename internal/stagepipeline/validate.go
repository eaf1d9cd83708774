package stagepipeline

import (
	"fmt"
	"regexp"
)

// resumeIndicators are term groups whose presence marks extracted text as a
// plausible resume. Each group counts at most once.
var resumeIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:experience|education|skills|projects|work)\b`),
	regexp.MustCompile(`(?i)\b(?:email|phone|contact)\b`),
	regexp.MustCompile(`(?i)\b(?:university|college|degree)\b`),
}

const minResumeTextLength = 100

// validateResumeText rejects extraction output that cannot plausibly be a
// resume: under 100 characters, or matching fewer than two of the
// indicator-term groups. Failing validation is fatal for the extract_text
// stage.
func validateResumeText(text string) error {
	if len(text) < minResumeTextLength {
		return fmt.Errorf("extracted text too short (%d chars, need %d)", len(text), minResumeTextLength)
	}
	found := 0
	for _, re := range resumeIndicators {
		if re.MatchString(text) {
			found++
		}
	}
	if found < 2 {
		return fmt.Errorf("extracted text does not look like a resume (%d/%d indicator groups)", found, len(resumeIndicators))
	}
	return nil
}
