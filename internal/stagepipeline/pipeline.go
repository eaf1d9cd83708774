// Package stagepipeline runs the eleven ordered stages a single resume goes
// through against one job description: fetch_resume, fetch_job,
// extract_text, ai_parse, embed, hard_requirements, project_score,
// keyword_score, semantic_score, composite, persist. Each stage reports its
// own progress band through progress.Tracker.UpdateWithStage and is
// classified fatal or skippable on failure.
package stagepipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/observability"
	"github.com/kreeda/resumatch/internal/progress"
	"github.com/kreeda/resumatch/internal/scoring"
)

const totalStages = 11

const (
	stageFetchResume      = "fetch_resume"
	stageFetchJob         = "fetch_job"
	stageExtractText      = "extract_text"
	stageAIParse          = "ai_parse"
	stageEmbed            = "embed"
	stageHardRequirements = "hard_requirements"
	stageProjectScore     = "project_score"
	stageKeywordScore     = "keyword_score"
	stageSemanticScore    = "semantic_score"
	stageComposite        = "composite"
	stagePersist          = "persist"
)

var stageIndex = map[string]int{
	stageFetchResume:      1,
	stageFetchJob:         2,
	stageExtractText:      3,
	stageAIParse:          4,
	stageEmbed:            5,
	stageHardRequirements: 6,
	stageProjectScore:     7,
	stageKeywordScore:     8,
	stageSemanticScore:    9,
	stageComposite:        10,
	stagePersist:          11,
}

// Deps bundles the pipeline's external collaborators.
type Deps struct {
	UploadsRoot string
	Extractor   domain.TextExtractor
	Gateway     domain.LLMGateway
	JobRepo     domain.JobRepository
	ResumeRepo  domain.ResumeRepository
	ScoreRepo   domain.ScoreRepository
}

// Pipeline executes the eleven-stage per-resume flow.
type Pipeline struct {
	deps Deps
}

// New builds a Pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

func (p *Pipeline) announce(ctx domain.Context, tracker *progress.Tracker, clock *stageClock, stage, message string) {
	clock.advance(stage)
	if err := tracker.UpdateWithStage(ctx, stage, 0, totalStages, stageIndex[stage], message); err != nil {
		slog.Default().Warn("progress push failed", slog.String("stage", stage), slog.Any("error", err))
	}
}

// stageClock times consecutive stages of one pipeline run, recording each
// stage's duration when the next one begins (or Run finishes).
type stageClock struct {
	stage string
	since time.Time
}

func (c *stageClock) advance(stage string) {
	if c.stage != "" {
		observability.ObserveStage(c.stage, time.Since(c.since))
	}
	c.stage = stage
	c.since = time.Now()
}

// Run executes every stage for one (jobID, resumeID) pair and returns the
// computed ScoreRecord. A fatal stage failure aborts and returns a
// *domain.FatalJobError; a skippable stage failure is logged, appended to
// DefaultedStages, and the pipeline proceeds with a neutral contribution.
func (p *Pipeline) Run(ctx domain.Context, tracker *progress.Tracker, jobID, resumeID string) (domain.ScoreRecord, error) {
	var defaulted []string
	clock := &stageClock{}
	defer clock.advance("")

	p.announce(ctx, tracker, clock, stageFetchResume, "loading resume record")
	resume, err := p.deps.ResumeRepo.Get(ctx, resumeID)
	if err != nil {
		return domain.ScoreRecord{}, domain.NewFatalJobError(stageFetchResume, err)
	}

	p.announce(ctx, tracker, clock, stageFetchJob, "loading job description")
	jd, err := p.deps.JobRepo.Get(ctx, jobID)
	if err != nil {
		return domain.ScoreRecord{}, domain.NewFatalJobError(stageFetchJob, err)
	}

	p.announce(ctx, tracker, clock, stageExtractText, "extracting resume text")
	if resume.RawText == "" {
		text, err := p.extractText(ctx, resume)
		if err != nil {
			p.setStage(ctx, resumeID, domain.StageFieldExtraction, domain.StageFailed)
			return domain.ScoreRecord{}, domain.NewFatalJobError(stageExtractText, err)
		}
		resume.RawText = text
	}
	p.setStage(ctx, resumeID, domain.StageFieldExtraction, domain.StageSuccess)

	p.announce(ctx, tracker, clock, stageAIParse, "parsing resume with the LLM Gateway")
	if resume.ParsingStatus == domain.StageSuccess {
		// A previous run already parsed this resume; its parsed content
		// came back with the fetch_resume stage.
		slog.Default().Debug("skipping ai_parse, already parsed", slog.String("resume_id", resumeID))
	} else {
		if err := p.runAIParse(ctx, &resume); err != nil {
			p.setStage(ctx, resumeID, domain.StageFieldParsing, domain.StageFailed)
			return domain.ScoreRecord{}, domain.NewFatalJobError(stageAIParse, err)
		}
		if err := p.deps.ResumeRepo.UpdateParsedContent(ctx, resume); err != nil {
			slog.Default().Warn("failed to persist parsed content", slog.String("resume_id", resumeID), slog.Any("error", err))
		}
		p.setStage(ctx, resumeID, domain.StageFieldParsing, domain.StageSuccess)
	}

	p.announce(ctx, tracker, clock, stageEmbed, "embedding resume sections")
	if resume.EmbeddingStatus == domain.StageSuccess && len(resume.SectionEmbeddings) > 0 {
		slog.Default().Debug("skipping embed, embeddings already persisted", slog.String("resume_id", resumeID))
	} else if err := p.runEmbed(ctx, &resume); err != nil {
		slog.Default().Warn("embed stage defaulted", slog.String("resume_id", resumeID), slog.Any("error", err))
		defaulted = append(defaulted, stageEmbed)
		p.setStage(ctx, resumeID, domain.StageFieldEmbedding, domain.StageFailed)
	} else {
		if err := p.deps.ResumeRepo.UpdateEmbeddings(ctx, resumeID, resume.SectionEmbeddings); err != nil {
			slog.Default().Warn("failed to persist resume embeddings", slog.String("resume_id", resumeID), slog.Any("error", err))
		}
		p.setStage(ctx, resumeID, domain.StageFieldEmbedding, domain.StageSuccess)
	}

	p.announce(ctx, tracker, clock, stageHardRequirements, "checking hard requirements")
	hr := scoring.CheckHardRequirements(resume, jd.FilterRequirements)

	p.announce(ctx, tracker, clock, stageProjectScore, "scoring projects")
	projectScore := scoring.ProjectAggregateScore(resume)

	p.announce(ctx, tracker, clock, stageKeywordScore, "scoring keyword overlap")
	keywordScore, keywordBreakdown := scoring.CompositeKeywordScore(jd, resume)

	p.announce(ctx, tracker, clock, stageSemanticScore, "scoring semantic similarity")
	semanticScore, semanticBreakdown := scoring.OverallSemanticScore(jd, resume)

	p.announce(ctx, tracker, clock, stageComposite, "computing composite score")
	composite := scoring.CompositeScore(scoring.CompositeScoreInputs{
		HardRequirementsPassed: hr.Passed,
		HardRequirementsScore:  hr.ComplianceScore,
		KeywordScore:           keywordScore,
		SemanticScore:          semanticScore,
		ProjectScore:           projectScore,
		ResumeYears:            resume.YearsExperience,
		RequiredYears:          jd.MinimumExperienceYears,
		Educations:             resume.Education,
		RequiredFieldOfStudy:   jd.RequiredEducation,
	})

	score := domain.ScoreRecord{
		JobID:                   jobID,
		ResumeID:                resumeID,
		HardRequirementsPassed:  hr.Passed,
		HardRequirementsScore:   hr.ComplianceScore,
		HardRequirementsMet:     hr.Met,
		HardRequirementsMissing: hr.Missing,
		KeywordScore:            keywordScore,
		SemanticScore:           semanticScore,
		ProjectScore:            projectScore,
		FinalScore:              composite.FinalScore,
		RankingTier:             composite.RankingTier,
		ConfidenceScore:         composite.ConfidenceScore,
		ComponentScores: map[string]float64{
			"hard_requirements": hr.ComplianceScore,
			"keyword":           keywordScore,
			"semantic":          semanticScore,
			"project":           projectScore,
		},
		ScoreBreakdown: map[string]any{
			"composite": composite.Breakdown,
			"keyword":   keywordBreakdown,
			"semantic":  semanticBreakdown,
		},
		DefaultedStages: defaulted,
	}

	p.announce(ctx, tracker, clock, stagePersist, "persisting score record")
	if err := p.deps.ScoreRepo.Upsert(ctx, score); err != nil {
		return domain.ScoreRecord{}, domain.NewFatalJobError(stagePersist, err)
	}
	if err := p.deps.ResumeRepo.UpdateStatus(ctx, resumeID, domain.StatusCompleted, nil); err != nil {
		return domain.ScoreRecord{}, domain.NewFatalJobError(stagePersist, err)
	}
	observability.ObserveFinalScore(score.FinalScore)

	return score, nil
}

// setStage writes a per-stage status field, logging rather than failing the
// pipeline if the write itself fails — the stage's own pass/fail outcome
// already drives the pipeline's control flow.
func (p *Pipeline) setStage(ctx domain.Context, resumeID, field string, status domain.StageStatus) {
	if err := p.deps.ResumeRepo.UpdateStage(ctx, resumeID, field, status); err != nil {
		slog.Default().Warn("failed to write stage status", slog.String("resume_id", resumeID), slog.String("field", field), slog.Any("error", err))
	}
}

func (p *Pipeline) extractText(ctx domain.Context, resume domain.Resume) (string, error) {
	path := uploadPath(p.deps.UploadsRoot, resume.GroupID, resume.Filename)

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("op=stagepipeline.extractText: detect content type: %w", err)
	}
	slog.Default().Debug("detected resume content type", slog.String("resume_id", resume.ID), slog.String("mime", mtype.String()))

	text, err := p.deps.Extractor.ExtractPath(ctx, resume.Filename, path)
	if err != nil {
		return "", fmt.Errorf("op=stagepipeline.extractText: %w", err)
	}
	if err := validateResumeText(text); err != nil {
		return "", fmt.Errorf("op=stagepipeline.extractText: %w", err)
	}
	return text, nil
}

// uploadPath resolves an uploaded resume's on-disk location:
// {uploadsRoot}/{groupID}/resumes/{filename}, with the group segment
// omitted for ungrouped uploads.
func uploadPath(uploadsRoot, groupID, filename string) string {
	if groupID == "" {
		return filepath.Join(uploadsRoot, "resumes", filename)
	}
	return filepath.Join(uploadsRoot, groupID, "resumes", filename)
}

func (p *Pipeline) runAIParse(ctx domain.Context, resume *domain.Resume) error {
	args, err := p.deps.Gateway.ParseText(ctx, domain.ParseKindResume, resume.RawText, nil)
	if err != nil {
		return err
	}
	return applyParsedResume(resume, args)
}

func (p *Pipeline) runEmbed(ctx domain.Context, resume *domain.Resume) error {
	sections := scoring.ExtractResumeSections(*resume)
	if resume.SectionEmbeddings == nil {
		resume.SectionEmbeddings = make(map[string]domain.EmbeddingMatrix)
	}

	var firstErr error
	for name, sentences := range sections {
		if len(sentences) == 0 {
			continue
		}
		vectors, err := p.deps.Gateway.EmbedBatch(ctx, sentences)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("section %q: %w", name, err)
			}
			continue
		}
		matrix := make(domain.EmbeddingMatrix, len(vectors))
		copy(matrix, vectors)
		resume.SectionEmbeddings[name] = matrix
	}
	return firstErr
}
