// Package progress implements the standardised progress/completion/failure
// event protocol: every tracker call produces a timestamped,
// duration-stamped ProgressRecord and pushes it through the queue
// substrate's progress channel via domain.ProgressPusher.
package progress

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/observability"
)

// Tracker tracks one job's progress against a fixed start time, logging a
// single emoji-tagged line per event and forwarding a ProgressRecord to the
// queue substrate.
type Tracker struct {
	pusher    domain.ProgressPusher
	jobID     string
	prefix    string
	startedAt time.Time
	lastPct   int
}

// NewTracker starts a Tracker for jobID. prefix is rendered verbatim at the
// front of every log line, e.g. "[jobId]" or "[3/10][resumeId]".
func NewTracker(pusher domain.ProgressPusher, jobID, prefix string) *Tracker {
	return &Tracker{
		pusher:    pusher,
		jobID:     jobID,
		prefix:    prefix,
		startedAt: time.Now(),
	}
}

func (t *Tracker) duration() int64 {
	return time.Since(t.startedAt).Milliseconds()
}

// Update clamps percent to [0,100] (logging a warning when the raw value
// was out of range), builds a ProgressRecord, logs it, and pushes it.
// Non-monotonic updates are allowed.
func (t *Tracker) Update(ctx domain.Context, percent int, step, message, stage string, metadata map[string]any) error {
	clamped := clampPercent(ctx, percent)
	t.lastPct = clamped

	record := domain.ProgressRecord{
		Percent:    clamped,
		Step:       step,
		Message:    message,
		Stage:      stage,
		Metadata:   metadata,
		Timestamp:  time.Now().UTC(),
		DurationMS: t.duration(),
	}

	observability.LoggerFromContext(ctx).Info(fmt.Sprintf("%s ⚙️ %s (%d%%) %s", t.prefix, step, clamped, message))
	return t.pusher.PushProgress(ctx, t.jobID, record)
}

// Complete pushes a terminal 100%/"complete" record carrying summary, and
// logs a ✅ line.
func (t *Tracker) Complete(ctx domain.Context, summary map[string]any) error {
	t.lastPct = 100
	record := domain.ProgressRecord{
		Percent:    100,
		Step:       "complete",
		Timestamp:  time.Now().UTC(),
		DurationMS: t.duration(),
		Success:    true,
		Summary:    summary,
	}
	observability.LoggerFromContext(ctx).Info(fmt.Sprintf("%s ✅ complete (100%%)", t.prefix))
	return t.pusher.PushProgress(ctx, t.jobID, record)
}

// Failed pushes a failure record and logs a ❌ line. step defaults to
// "failed" when empty.
func (t *Tracker) Failed(ctx domain.Context, err error, kind, step string, retryable bool, metadata map[string]any) error {
	if step == "" {
		step = "failed"
	}
	record := domain.ProgressRecord{
		Percent:    t.lastPct,
		Step:       step,
		Metadata:   metadata,
		Timestamp:  time.Now().UTC(),
		DurationMS: t.duration(),
		Error:      err.Error(),
		ErrorKind:  kind,
		Retryable:  retryable,
		Success:    false,
	}
	observability.LoggerFromContext(ctx).Error(fmt.Sprintf("%s ❌ %s: %v", t.prefix, step, err))
	return t.pusher.PushProgress(ctx, t.jobID, record)
}

// UpdateWithStage maps one stage-local percent onto the job's overall
// percent band and pushes it: overall = ((currentStage-1)/totalStages*100)
// + (stagePercent/totalStages). currentStage is 1-indexed. Used by the
// stage pipeline to drive its eleven stage bands from a single stage-local
// percent without each stage needing to know its own band boundaries.
func (t *Tracker) UpdateWithStage(ctx domain.Context, stageName string, stagePercent, totalStages, currentStage int, message string) error {
	if totalStages <= 0 {
		totalStages = 1
	}
	base := float64(currentStage-1) / float64(totalStages) * 100
	overall := base + float64(stagePercent)/float64(totalStages)
	return t.Update(ctx, int(overall), stageName, message, stageName, map[string]any{
		"stage":          stageName,
		"stage_percent":  stagePercent,
		"current_stage":  currentStage,
		"total_stages":   totalStages,
	})
}

func clampPercent(ctx domain.Context, percent int) int {
	if percent < 0 {
		observability.LoggerFromContext(ctx).Warn("progress percent below 0, clamping", slog.Int("percent", percent))
		return 0
	}
	if percent > 100 {
		observability.LoggerFromContext(ctx).Warn("progress percent above 100, clamping", slog.Int("percent", percent))
		return 100
	}
	return percent
}
