package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kreeda/resumatch/internal/domain"
)

func TestRankingHandler_Handle_PersistsReRankFields(t *testing.T) {
	jobRepo := &fakeJobRepo{jd: domain.JobDescription{ID: "job-1", RawText: "Go backend role."}}
	resumeRepo := &fakeResumeRepo{resumes: map[string]domain.Resume{
		"resume-1": {ID: "resume-1", JobID: "job-1", Filename: "resume-1.pdf"},
		"resume-2": {ID: "resume-2", JobID: "job-1", Filename: "resume-2.pdf"},
	}}
	scoreRepo := &fakeScoreRepo{byJob: map[string][]domain.ScoreRecord{
		"job-1": {
			{JobID: "job-1", ResumeID: "resume-1", FinalScore: 0.9},
			{JobID: "job-1", ResumeID: "resume-2", FinalScore: 0.5},
		},
	}}
	pusher := &recordingPusher{}
	gateway := &fakeGateway{}
	handler := NewRankingHandler(RankingDeps{
		JobRepo:    jobRepo,
		ResumeRepo: resumeRepo,
		ScoreRepo:  scoreRepo,
		Gateway:    gateway,
		Pusher:     pusher,
	})

	payload, err := json.Marshal(domain.RankingTaskPayload{
		JobID:          "job-1",
		ScoreResultIDs: []string{"resume-1", "resume-2"},
		BatchIndex:     0,
		TotalBatches:   1,
	})
	require.NoError(t, err)

	require.NoError(t, handler.Handle(context.Background(), payload))

	require.Len(t, scoreRepo.upserted, 2)
	for _, s := range scoreRepo.upserted {
		require.True(t, s.ReRankApplied)
	}

	var sawComplete bool
	for _, rec := range pusher.records {
		if rec.Success {
			sawComplete = true
			ranked, ok := rec.Summary["ranked"].([]domain.RankedCandidate)
			require.True(t, ok)
			require.Len(t, ranked, 2)
		}
	}
	require.True(t, sawComplete)
}

func TestRankingHandler_Handle_FailsWhenBatchIDsMissFromCohort(t *testing.T) {
	jobRepo := &fakeJobRepo{jd: domain.JobDescription{ID: "job-1"}}
	resumeRepo := &fakeResumeRepo{resumes: map[string]domain.Resume{}}
	scoreRepo := &fakeScoreRepo{byJob: map[string][]domain.ScoreRecord{"job-1": {}}}
	handler := NewRankingHandler(RankingDeps{
		JobRepo:    jobRepo,
		ResumeRepo: resumeRepo,
		ScoreRepo:  scoreRepo,
		Gateway:    &fakeGateway{},
		Pusher:     &recordingPusher{},
	})

	payload, err := json.Marshal(domain.RankingTaskPayload{
		JobID:          "job-1",
		ScoreResultIDs: []string{"missing-resume"},
		BatchIndex:     0,
		TotalBatches:   1,
	})
	require.NoError(t, err)

	err = handler.Handle(context.Background(), payload)
	require.Error(t, err)
}

func TestRankingHandler_Handle_RejectsMissingJobID(t *testing.T) {
	handler := NewRankingHandler(RankingDeps{
		JobRepo:    &fakeJobRepo{},
		ResumeRepo: &fakeResumeRepo{},
		ScoreRepo:  &fakeScoreRepo{},
		Gateway:    &fakeGateway{},
		Pusher:     &recordingPusher{},
	})

	payload, err := json.Marshal(domain.RankingTaskPayload{
		ScoreResultIDs: []string{"resume-1"},
		TotalBatches:   1,
	})
	require.NoError(t, err)

	err = handler.Handle(context.Background(), payload)
	require.Error(t, err)
}
