// Package handlers adapts the three queue.Handler entrypoints (jd, resume,
// ranking) to the jdpipeline/stagepipeline/llmgateway components: decoding
// each queue's task payload, building the right progress.Tracker prefix,
// and translating pipeline results into completion/failure progress
// records.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/jdpipeline"
	"github.com/kreeda/resumatch/internal/progress"
)

// JDHandler serves the jd queue's single job name, parse-jd.
type JDHandler struct {
	pipeline *jdpipeline.Pipeline
	pusher   domain.ProgressPusher
}

// NewJDHandler builds a JDHandler.
func NewJDHandler(pipeline *jdpipeline.Pipeline, pusher domain.ProgressPusher) *JDHandler {
	return &JDHandler{pipeline: pipeline, pusher: pusher}
}

// Handle decodes a domain.JDTaskPayload and runs the JD pipeline to
// completion.
func (h *JDHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var payload domain.JDTaskPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.NewFatalJobError("decode", fmt.Errorf("op=handlers.JDHandler.Handle: %w", err))
	}
	if err := validatePayload(payload); err != nil {
		return domain.NewFatalJobError("decode", fmt.Errorf("op=handlers.JDHandler.Handle: %w", err))
	}

	tracker := progress.NewTracker(h.pusher, payload.JobID, fmt.Sprintf("[%s]", payload.JobID))
	return h.pipeline.Run(ctx, tracker, payload.JobID)
}
