package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/jdpipeline"
)

func TestJDHandler_Handle_DecodesAndRunsPipeline(t *testing.T) {
	jobRepo := &fakeJobRepo{jd: domain.JobDescription{ID: "job-1", RawText: "Go backend role."}}
	writer := &fakeJDWriter{}
	pipeline := jdpipeline.New(jdpipeline.Deps{JobRepo: jobRepo, Writer: writer, Gateway: &fakeGateway{}})
	pusher := &recordingPusher{}
	handler := NewJDHandler(pipeline, pusher)

	payload, err := json.Marshal(domain.JDTaskPayload{JobID: "job-1"})
	require.NoError(t, err)

	err = handler.Handle(context.Background(), payload)
	require.NoError(t, err)
	require.NotEmpty(t, pusher.records)
}

type fakeJDWriter struct {
	parsed domain.JobDescription
}

func (w *fakeJDWriter) UpdateParsed(ctx domain.Context, jd domain.JobDescription) error {
	w.parsed = jd
	return nil
}
func (w *fakeJDWriter) UpdateCompliance(ctx domain.Context, jobID string, fr domain.FilterRequirements) error {
	return nil
}
func (w *fakeJDWriter) UpdateEmbeddings(ctx domain.Context, jobID string, embeddings map[string]domain.EmbeddingMatrix) error {
	return nil
}
