package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/progress"
	"github.com/kreeda/resumatch/internal/stagepipeline"
)

// Resume queue job names: process-resume-group is the parent fan-out
// marker, process-resume scores one candidate against one job.
const (
	JobNameProcessResumeGroup = "process-resume-group"
	JobNameProcessResume      = "process-resume"
)

// ResumeHandler serves the resume queue's two job names. It keeps an
// in-process registry of ParentTrackers keyed by job id so every
// process-resume child sharing a worker process can tally into the same
// parent, regardless of which arrived first — the group job and its
// children are dispatched independently and may interleave.
type ResumeHandler struct {
	pipeline *stagepipeline.Pipeline
	pusher   domain.ProgressPusher

	rankingQueue domain.Queue
	scoreRepo    domain.ScoreRepository

	mu      sync.Mutex
	parents map[string]*progress.ParentTracker
}

// NewResumeHandler builds a ResumeHandler.
func NewResumeHandler(pipeline *stagepipeline.Pipeline, pusher domain.ProgressPusher) *ResumeHandler {
	return &ResumeHandler{
		pipeline: pipeline,
		pusher:   pusher,
		parents:  make(map[string]*progress.ParentTracker),
	}
}

// WithRankingFanOut makes the handler enqueue the job's re-rank batches
// (ceil(N/30) of them) once every resume in a group has reported in. Without
// it, ranking jobs are expected to be enqueued externally.
func (h *ResumeHandler) WithRankingFanOut(q domain.Queue, scores domain.ScoreRepository) *ResumeHandler {
	h.rankingQueue = q
	h.scoreRepo = scores
	return h
}

func (h *ResumeHandler) parentFor(jobID string, total int) *progress.ParentTracker {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.parents[jobID]; ok {
		return p
	}
	p := progress.NewParentTracker(h.pusher, jobID, fmt.Sprintf("[%s]", jobID), total)
	h.parents[jobID] = p
	return p
}

func (h *ResumeHandler) dropParent(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.parents, jobID)
}

// Handle decodes a domain.ResumeTaskPayload and dispatches on its JobName.
func (h *ResumeHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var payload domain.ResumeTaskPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.NewFatalJobError("decode", fmt.Errorf("op=handlers.ResumeHandler.Handle: %w", err))
	}
	if err := validatePayload(payload); err != nil {
		return domain.NewFatalJobError("decode", fmt.Errorf("op=handlers.ResumeHandler.Handle: %w", err))
	}

	switch payload.JobName {
	case JobNameProcessResumeGroup:
		return h.handleGroup(ctx, payload)
	default:
		return h.handleChild(ctx, payload)
	}
}

// handleGroup carries no work of its own: its children are created
// externally. It registers the group's ParentTracker (so children that
// race ahead of it still find it) and echoes one tracking record.
func (h *ResumeHandler) handleGroup(ctx context.Context, payload domain.ResumeTaskPayload) error {
	parent := h.parentFor(payload.JobID, payload.TotalResumes)
	return parent.Update(ctx, 0, "group-queued", fmt.Sprintf("dispatching %d resumes", payload.TotalResumes), "", map[string]any{
		"total_resumes": payload.TotalResumes,
	})
}

// handleChild runs one resume through the stage pipeline and tallies its
// outcome into the job's ParentTracker, completing the parent once every
// expected child has reported in.
func (h *ResumeHandler) handleChild(ctx context.Context, payload domain.ResumeTaskPayload) error {
	prefix := fmt.Sprintf("[%d/%d][%s]", payload.Index+1, payload.Total, payload.ResumeID)
	tracker := progress.NewTracker(h.pusher, payload.JobID, prefix)

	_, err := h.pipeline.Run(ctx, tracker, payload.JobID, payload.ResumeID)

	parent := h.parentFor(payload.JobID, payload.TotalResumes)
	if err != nil {
		if tallyErr := parent.ChildFailed(ctx, payload.ResumeID); tallyErr != nil {
			slog.Default().Warn("parent tally push failed", slog.Any("error", tallyErr))
		}
	} else if tallyErr := parent.ChildCompleted(ctx, payload.ResumeID); tallyErr != nil {
		slog.Default().Warn("parent tally push failed", slog.Any("error", tallyErr))
	}

	if completed, total, _ := parent.Tally(); total > 0 && completed >= total {
		if compErr := parent.CompleteParent(ctx); compErr != nil {
			slog.Default().Warn("parent completion push failed", slog.Any("error", compErr))
		}
		h.dropParent(payload.JobID)
		if fanErr := h.fanOutRanking(ctx, payload.JobID); fanErr != nil {
			slog.Default().Error("ranking fan-out failed", slog.String("job_id", payload.JobID), slog.Any("error", fanErr))
		}
	}

	return err
}

// rerankBatchSize is the maximum number of candidates per re-rank batch.
const rerankBatchSize = 30

// fanOutRanking enqueues one rank-batch job per chunk of up to 30 persisted
// score records, so ranking proceeds over whichever scores exist even when
// some resumes in the group failed.
func (h *ResumeHandler) fanOutRanking(ctx context.Context, jobID string) error {
	if h.rankingQueue == nil || h.scoreRepo == nil {
		return nil
	}
	scores, err := h.scoreRepo.GetByJobID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("op=handlers.ResumeHandler.fanOutRanking: %w", err)
	}
	if len(scores) == 0 {
		slog.Default().Warn("no persisted scores to rank", slog.String("job_id", jobID))
		return nil
	}

	ids := make([]string, len(scores))
	for i, s := range scores {
		ids[i] = s.ResumeID
	}
	totalBatches := (len(ids) + rerankBatchSize - 1) / rerankBatchSize

	for batch := 0; batch < totalBatches; batch++ {
		start := batch * rerankBatchSize
		end := start + rerankBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		if _, err := h.rankingQueue.EnqueueRanking(ctx, domain.RankingTaskPayload{
			JobID:          jobID,
			ScoreResultIDs: ids[start:end],
			BatchIndex:     batch,
			TotalBatches:   totalBatches,
		}); err != nil {
			return fmt.Errorf("op=handlers.ResumeHandler.fanOutRanking: batch %d: %w", batch, err)
		}
	}
	slog.Default().Info("ranking batches enqueued", slog.String("job_id", jobID), slog.Int("batches", totalBatches), slog.Int("candidates", len(ids)))
	return nil
}
