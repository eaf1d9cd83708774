package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/progress"
	"github.com/kreeda/resumatch/internal/scoring"
)

// RankingDeps bundles the ranking handler's external collaborators.
type RankingDeps struct {
	JobRepo    domain.JobRepository
	ResumeRepo domain.ResumeRepository
	ScoreRepo  domain.ScoreRepository
	Gateway    domain.LLMGateway
	Pusher     domain.ProgressPusher
}

// RankingHandler serves the ranking queue's rank-batch job name.
type RankingHandler struct {
	deps RankingDeps
}

// NewRankingHandler builds a RankingHandler.
func NewRankingHandler(deps RankingDeps) *RankingHandler {
	return &RankingHandler{deps: deps}
}

// Handle decodes a domain.RankingTaskPayload, re-ranks its batch of
// candidates against the LLM Gateway, and persists the re-rank fields onto
// each candidate's score record. Every batch independently re-derives the
// cohort-wide keyword/semantic normalisation against the job's full
// score set, since stage-pipeline runs scored each resume in isolation.
func (h *RankingHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var payload domain.RankingTaskPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.NewFatalJobError("decode", fmt.Errorf("op=handlers.RankingHandler.Handle: %w", err))
	}
	if err := validatePayload(payload); err != nil {
		return domain.NewFatalJobError("decode", fmt.Errorf("op=handlers.RankingHandler.Handle: %w", err))
	}

	prefix := fmt.Sprintf("[%d/%d][%s]", payload.BatchIndex+1, payload.TotalBatches, payload.JobID)
	tracker := progress.NewTracker(h.deps.Pusher, payload.JobID, prefix)

	if err := tracker.Update(ctx, 5, "fetch_job", "loading job description", "fetch_job", nil); err != nil {
		slog.Default().Warn("progress push failed", slog.Any("error", err))
	}
	jd, err := h.deps.JobRepo.Get(ctx, payload.JobID)
	if err != nil {
		return h.fail(ctx, tracker, "fetch_job", err)
	}

	if err := tracker.Update(ctx, 15, "fetch_scores", "loading cohort score records", "fetch_scores", nil); err != nil {
		slog.Default().Warn("progress push failed", slog.Any("error", err))
	}
	allScores, err := h.deps.ScoreRepo.GetByJobID(ctx, payload.JobID)
	if err != nil {
		return h.fail(ctx, tracker, "fetch_scores", err)
	}

	resumes, err := h.fetchResumes(ctx, allScores)
	if err != nil {
		return h.fail(ctx, tracker, "fetch_resumes", err)
	}

	normalized := normalizeCohort(allScores, resumes, jd)
	byID := make(map[string]domain.ScoreRecord, len(normalized))
	for _, s := range normalized {
		byID[s.ResumeID] = s
	}

	var batch []domain.ScoreRecord
	for _, id := range payload.ScoreResultIDs {
		if s, ok := byID[id]; ok {
			batch = append(batch, s)
		}
	}
	if len(batch) == 0 {
		return h.fail(ctx, tracker, "fetch_scores", fmt.Errorf("no score records found for batch %d of job %s", payload.BatchIndex, payload.JobID))
	}

	candidates := make([]domain.CandidateSummary, 0, len(batch))
	for _, s := range batch {
		candidates = append(candidates, buildCandidateSummary(s, resumes[s.ResumeID]))
	}

	if err := tracker.Update(ctx, 40, "rerank", fmt.Sprintf("re-ranking %d candidates", len(candidates)), "rerank", nil); err != nil {
		slog.Default().Warn("progress push failed", slog.Any("error", err))
	}
	criteria := rerankCriteriaFor(jd)
	ranked, err := h.deps.Gateway.RerankBatch(ctx, candidates, criteria)
	if err != nil {
		return h.fail(ctx, tracker, "rerank", err)
	}

	allFinal := make([]float64, len(normalized))
	for i, s := range normalized {
		allFinal[i] = s.FinalScore
	}

	if err := tracker.Update(ctx, 80, "persist", "persisting re-rank results", "persist", nil); err != nil {
		slog.Default().Warn("progress push failed", slog.Any("error", err))
	}
	result := make([]domain.RankedCandidate, 0, len(ranked))
	for _, rc := range ranked {
		score, ok := byID[rc.ResumeID]
		if !ok {
			continue
		}
		score.ReRankScore = rc.ReRankScore
		score.ReRankApplied = true
		score.RequirementsMet = rc.RequirementsMet
		score.RequirementsMissing = rc.RequirementsMissing
		score.ComplianceReport = rc.ComplianceReport
		if err := h.deps.ScoreRepo.Upsert(ctx, score); err != nil {
			return h.fail(ctx, tracker, "persist", err)
		}

		position, percentile, category := scoring.RankingPosition(score.FinalScore, allFinal)
		rc.FinalScore = score.FinalScore
		rc.RankPosition = position
		rc.Percentile = percentile
		rc.RankCategory = category
		result = append(result, rc)
	}

	if err := tracker.Complete(ctx, map[string]any{
		"batch_index":   payload.BatchIndex,
		"total_batches": payload.TotalBatches,
		"ranked":        result,
	}); err != nil {
		slog.Default().Warn("progress push failed", slog.Any("error", err))
	}
	return nil
}

func (h *RankingHandler) fetchResumes(ctx context.Context, scores []domain.ScoreRecord) (map[string]domain.Resume, error) {
	out := make(map[string]domain.Resume, len(scores))
	for _, s := range scores {
		resume, err := h.deps.ResumeRepo.Get(ctx, s.ResumeID)
		if err != nil {
			return nil, fmt.Errorf("resume %s: %w", s.ResumeID, err)
		}
		out[s.ResumeID] = resume
	}
	return out, nil
}

func (h *RankingHandler) fail(ctx context.Context, tracker *progress.Tracker, stage string, err error) error {
	if pushErr := tracker.Failed(ctx, err, "FatalJobError", stage, false, map[string]any{"stage": stage}); pushErr != nil {
		slog.Default().Warn("progress push failed", slog.Any("error", pushErr))
	}
	return domain.NewFatalJobError(stage, err)
}
