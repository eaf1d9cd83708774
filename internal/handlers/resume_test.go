package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/stagepipeline"
)

func newTestResumePipeline(jobRepo *fakeJobRepo, resumeRepo *fakeResumeRepo, scoreRepo *fakeScoreRepo) *stagepipeline.Pipeline {
	return stagepipeline.New(stagepipeline.Deps{
		UploadsRoot: "/tmp",
		Extractor:   &fakeExtractor{},
		Gateway:     &fakeGateway{},
		JobRepo:     jobRepo,
		ResumeRepo:  resumeRepo,
		ScoreRepo:   scoreRepo,
	})
}

func TestResumeHandler_Group_EchoesTrackingRecord(t *testing.T) {
	jobRepo := &fakeJobRepo{}
	resumeRepo := &fakeResumeRepo{}
	scoreRepo := &fakeScoreRepo{}
	pusher := &recordingPusher{}
	handler := NewResumeHandler(newTestResumePipeline(jobRepo, resumeRepo, scoreRepo), pusher)

	payload, err := json.Marshal(domain.ResumeTaskPayload{
		JobName:      JobNameProcessResumeGroup,
		JobID:        "job-1",
		TotalResumes: 2,
	})
	require.NoError(t, err)

	require.NoError(t, handler.Handle(context.Background(), payload))
	require.NotEmpty(t, pusher.records)
	require.Equal(t, 2, pusher.records[0].Metadata["total_resumes"])
}

func TestResumeHandler_Child_ScoresResumeAndTalliesParent(t *testing.T) {
	jobRepo := &fakeJobRepo{jd: domain.JobDescription{ID: "job-1", RawText: "Go backend role.", MinimumExperienceYears: 2}}
	resumeRepo := &fakeResumeRepo{resumes: map[string]domain.Resume{
		"resume-1": {ID: "resume-1", JobID: "job-1", RawText: "Experienced Go engineer.", Filename: "resume-1.pdf"},
	}}
	scoreRepo := &fakeScoreRepo{}
	pusher := &recordingPusher{}
	handler := NewResumeHandler(newTestResumePipeline(jobRepo, resumeRepo, scoreRepo), pusher)

	// Register the group first so the child's tally lands on the same parent.
	groupPayload, err := json.Marshal(domain.ResumeTaskPayload{
		JobName:      JobNameProcessResumeGroup,
		JobID:        "job-1",
		TotalResumes: 1,
	})
	require.NoError(t, err)
	require.NoError(t, handler.Handle(context.Background(), groupPayload))

	childPayload, err := json.Marshal(domain.ResumeTaskPayload{
		JobName:      JobNameProcessResume,
		JobID:        "job-1",
		ResumeID:     "resume-1",
		Index:        0,
		Total:        1,
		TotalResumes: 1,
	})
	require.NoError(t, err)

	require.NoError(t, handler.Handle(context.Background(), childPayload))

	require.Len(t, scoreRepo.upserted, 1)
	require.Equal(t, "resume-1", scoreRepo.upserted[0].ResumeID)

	var sawComplete bool
	for _, rec := range pusher.records {
		if rec.Success {
			sawComplete = true
		}
	}
	require.True(t, sawComplete, "expected the parent tracker to complete once its only child finishes")
}

type recordingQueue struct {
	ranking []domain.RankingTaskPayload
}

func (q *recordingQueue) EnqueueJD(ctx domain.Context, payload domain.JDTaskPayload) (string, error) {
	return "", nil
}
func (q *recordingQueue) EnqueueResume(ctx domain.Context, payload domain.ResumeTaskPayload) (string, error) {
	return "", nil
}
func (q *recordingQueue) EnqueueRanking(ctx domain.Context, payload domain.RankingTaskPayload) (string, error) {
	q.ranking = append(q.ranking, payload)
	return "", nil
}

func TestResumeHandler_FanOutRanking_SplitsIntoBatchesOf30(t *testing.T) {
	scores := make([]domain.ScoreRecord, 31)
	for i := range scores {
		scores[i] = domain.ScoreRecord{JobID: "job-1", ResumeID: fmt.Sprintf("resume-%02d", i)}
	}
	scoreRepo := &fakeScoreRepo{byJob: map[string][]domain.ScoreRecord{"job-1": scores}}
	q := &recordingQueue{}
	handler := NewResumeHandler(newTestResumePipeline(&fakeJobRepo{}, &fakeResumeRepo{}, scoreRepo), &recordingPusher{}).
		WithRankingFanOut(q, scoreRepo)

	require.NoError(t, handler.fanOutRanking(context.Background(), "job-1"))

	require.Len(t, q.ranking, 2)
	require.Len(t, q.ranking[0].ScoreResultIDs, 30)
	require.Len(t, q.ranking[1].ScoreResultIDs, 1)
	require.Equal(t, 2, q.ranking[0].TotalBatches)
	require.Equal(t, 1, q.ranking[1].BatchIndex)

	seen := make(map[string]bool)
	for _, batch := range q.ranking {
		for _, id := range batch.ScoreResultIDs {
			require.False(t, seen[id], "candidate %s appears in more than one batch", id)
			seen[id] = true
		}
	}
	require.Len(t, seen, 31)
}

func TestResumeHandler_Handle_RejectsMissingJobID(t *testing.T) {
	handler := NewResumeHandler(newTestResumePipeline(&fakeJobRepo{}, &fakeResumeRepo{}, &fakeScoreRepo{}), &recordingPusher{})

	payload, err := json.Marshal(domain.ResumeTaskPayload{JobName: JobNameProcessResumeGroup, TotalResumes: 1})
	require.NoError(t, err)

	err = handler.Handle(context.Background(), payload)
	require.Error(t, err)
}
