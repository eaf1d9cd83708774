// Package jdpipeline runs the single-JD parse flow the jd-processing queue
// serves (concurrency 1, job name parse-jd): fetch the JD, parse it with
// the LLM Gateway, parse its mandatory/soft compliance prompts, compute its
// six section embeddings, and write every stage back to the backend as it
// completes so a crash mid-run loses no already-persisted work.
package jdpipeline

import (
	"fmt"
	"log/slog"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/progress"
	"github.com/kreeda/resumatch/internal/scoring"
)

// Writer is the subset of the backend JD write-back surface this
// pipeline drives: persisting the parsed analysis, the compliance blocks,
// and the section embeddings independently, so a failure after one write
// does not roll back the others.
type Writer interface {
	UpdateParsed(ctx domain.Context, jd domain.JobDescription) error
	UpdateCompliance(ctx domain.Context, jobID string, fr domain.FilterRequirements) error
	UpdateEmbeddings(ctx domain.Context, jobID string, embeddings map[string]domain.EmbeddingMatrix) error
}

// Deps bundles the pipeline's external collaborators.
type Deps struct {
	JobRepo domain.JobRepository
	Writer  Writer
	Gateway domain.LLMGateway
}

// Pipeline executes the JD parse/compliance/embed flow for one job.
type Pipeline struct {
	deps Deps
}

// New builds a Pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Run fetches, parses, and persists one JD's full analysis. A failure at
// any stage is fatal: the JD pipeline runs once per content hash and has
// nothing useful to rank against until it completes.
func (p *Pipeline) Run(ctx domain.Context, tracker *progress.Tracker, jobID string) error {
	if err := tracker.Update(ctx, 5, "fetch_job", "loading job description", "fetch_job", nil); err != nil {
		slog.Default().Warn("progress push failed", slog.Any("error", err))
	}
	jd, err := p.deps.JobRepo.Get(ctx, jobID)
	if err != nil {
		return p.fail(ctx, tracker, "fetch_job", err)
	}

	// Parse-once-per-content rule: the backend resets status when a JD's
	// content hash changes, so a completed job with an analysis needs no
	// re-parse and the handler stays idempotent on redelivery.
	if jd.Status == domain.StatusCompleted && jd.Title != "" {
		slog.Default().Info("jd already parsed, skipping", slog.String("job_id", jobID))
		if err := tracker.Complete(ctx, map[string]any{"job_id": jobID, "cached": true}); err != nil {
			slog.Default().Warn("progress push failed", slog.Any("error", err))
		}
		return nil
	}

	if err := tracker.Update(ctx, 20, "ai_parse", "parsing job description with the LLM Gateway", "ai_parse", nil); err != nil {
		slog.Default().Warn("progress push failed", slog.Any("error", err))
	}
	args, err := p.deps.Gateway.ParseText(ctx, domain.ParseKindJD, jd.RawText, nil)
	if err != nil {
		return p.fail(ctx, tracker, "ai_parse", err)
	}
	if err := applyParsedJD(&jd, args); err != nil {
		return p.fail(ctx, tracker, "ai_parse", err)
	}
	if err := p.deps.Writer.UpdateParsed(ctx, jd); err != nil {
		return p.fail(ctx, tracker, "ai_parse", err)
	}

	if err := tracker.Update(ctx, 45, "compliance", "parsing mandatory/soft compliance prompts", "compliance", nil); err != nil {
		slog.Default().Warn("progress push failed", slog.Any("error", err))
	}
	fr, err := p.parseCompliance(ctx, jd.FilterRequirements)
	if err != nil {
		return p.fail(ctx, tracker, "compliance", err)
	}
	jd.FilterRequirements = fr
	if err := p.deps.Writer.UpdateCompliance(ctx, jobID, fr); err != nil {
		return p.fail(ctx, tracker, "compliance", err)
	}

	if err := tracker.Update(ctx, 70, "embed", "embedding job description sections", "embed", nil); err != nil {
		slog.Default().Warn("progress push failed", slog.Any("error", err))
	}
	embeddings, err := p.embedSections(ctx, jd)
	if err != nil {
		return p.fail(ctx, tracker, "embed", err)
	}
	if err := p.deps.Writer.UpdateEmbeddings(ctx, jobID, embeddings); err != nil {
		return p.fail(ctx, tracker, "embed", err)
	}

	if err := p.deps.JobRepo.UpdateStatus(ctx, jobID, domain.StatusCompleted, nil); err != nil {
		return p.fail(ctx, tracker, "persist", err)
	}

	if err := tracker.Complete(ctx, map[string]any{"job_id": jobID}); err != nil {
		slog.Default().Warn("progress push failed", slog.Any("error", err))
	}
	return nil
}

// parseCompliance runs the compliance parse function once per non-empty
// compliance block's raw_prompt (mandatory, then soft), leaving a block
// with no raw_prompt untouched (no HR text was ever supplied for it).
func (p *Pipeline) parseCompliance(ctx domain.Context, fr domain.FilterRequirements) (domain.FilterRequirements, error) {
	mandatory, err := p.parseBlock(ctx, fr.MandatoryCompliances)
	if err != nil {
		return domain.FilterRequirements{}, fmt.Errorf("mandatory_compliances: %w", err)
	}
	soft, err := p.parseBlock(ctx, fr.SoftCompliances)
	if err != nil {
		return domain.FilterRequirements{}, fmt.Errorf("soft_compliances: %w", err)
	}
	return domain.FilterRequirements{MandatoryCompliances: mandatory, SoftCompliances: soft}, nil
}

func (p *Pipeline) parseBlock(ctx domain.Context, block domain.ComplianceBlock) (domain.ComplianceBlock, error) {
	if block.RawPrompt == "" {
		return block, nil
	}
	args, err := p.deps.Gateway.ParseText(ctx, domain.ParseKindCompliance, block.RawPrompt, nil)
	if err != nil {
		return domain.ComplianceBlock{}, err
	}
	return applyCompliance(block.RawPrompt, args)
}

// embedSections extracts the six named sections from the JD and embeds
// each non-empty one. A failing section is skipped and logged, and its
// absence reads as "no constraint" downstream (semantic scorer returns
// 0.5); an error is returned only when no section embedded at all.
func (p *Pipeline) embedSections(ctx domain.Context, jd domain.JobDescription) (map[string]domain.EmbeddingMatrix, error) {
	sections := scoring.ExtractJDSections(jd)
	out := make(map[string]domain.EmbeddingMatrix, len(sections))

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
			slog.Default().Warn("jd section embed failed", slog.String("section", name), slog.Any("error", err))
			continue
		}
		matrix := make(domain.EmbeddingMatrix, len(vectors))
		copy(matrix, vectors)
		out[name] = matrix
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (p *Pipeline) fail(ctx domain.Context, tracker *progress.Tracker, stage string, err error) error {
	if pushErr := tracker.Failed(ctx, err, "FatalJobError", stage, false, map[string]any{"stage": stage}); pushErr != nil {
		slog.Default().Warn("progress push failed", slog.Any("error", pushErr))
	}
	return domain.NewFatalJobError(stage, err)
}
