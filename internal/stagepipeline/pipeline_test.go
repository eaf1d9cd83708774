package stagepipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/progress"
)

type fakeJobRepo struct {
	jd domain.JobDescription
}

func (f *fakeJobRepo) Create(ctx domain.Context, jd domain.JobDescription) (string, error) { return "", nil }
func (f *fakeJobRepo) UpdateStatus(ctx domain.Context, id string, status domain.JobStatus, errMsg *string) error {
	return nil
}
func (f *fakeJobRepo) Get(ctx domain.Context, id string) (domain.JobDescription, error) {
	return f.jd, nil
}

type fakeResumeRepo struct {
	resume       domain.Resume
	statusErr    error
	lastStatus   domain.JobStatus
	stageUpdates map[string]domain.StageStatus
}

func (f *fakeResumeRepo) Create(ctx domain.Context, r domain.Resume) (string, error) { return "", nil }
func (f *fakeResumeRepo) UpdateStatus(ctx domain.Context, id string, status domain.JobStatus, errMsg *string) error {
	f.lastStatus = status
	return f.statusErr
}
func (f *fakeResumeRepo) Get(ctx domain.Context, id string) (domain.Resume, error) {
	return f.resume, nil
}
func (f *fakeResumeRepo) UpdateStage(ctx domain.Context, id, field string, status domain.StageStatus) error {
	if f.stageUpdates == nil {
		f.stageUpdates = make(map[string]domain.StageStatus)
	}
	f.stageUpdates[field] = status
	return nil
}
func (f *fakeResumeRepo) UpdateParsedContent(ctx domain.Context, r domain.Resume) error { return nil }
func (f *fakeResumeRepo) UpdateEmbeddings(ctx domain.Context, id string, embeddings map[string]domain.EmbeddingMatrix) error {
	return nil
}

type fakeScoreRepo struct {
	upserted domain.ScoreRecord
	err      error
}

func (f *fakeScoreRepo) Upsert(ctx domain.Context, s domain.ScoreRecord) error {
	f.upserted = s
	return f.err
}
func (f *fakeScoreRepo) GetByJobID(ctx domain.Context, jobID string) ([]domain.ScoreRecord, error) {
	return nil, nil
}

type fakeGateway struct {
	parseErr error
	embedErr error
}

func (g *fakeGateway) ParseText(ctx domain.Context, kind domain.ParseKind, text string, llmCtx map[string]any) (map[string]any, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	return map[string]any{
		"name":                  "Jane Doe",
		"profile_keywords_line": "go backend engineer",
		"ats_boost_line":        "go, postgres, redis",
		"years_experience":      5.0,
		"canonical_skills":      map[string]any{"languages": []any{"go"}},
	}, nil
}

func (g *fakeGateway) EmbedBatch(ctx domain.Context, texts []string) ([][]float32, error) {
	if g.embedErr != nil {
		return nil, g.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (g *fakeGateway) RerankBatch(ctx domain.Context, candidates []domain.CandidateSummary, criteria domain.RerankCriteria) ([]domain.RankedCandidate, error) {
	return nil, nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) ExtractPath(ctx domain.Context, fileName, path string) (string, error) {
	return e.text, e.err
}

type recordingPusher struct {
	records []domain.ProgressRecord
}

func (r *recordingPusher) PushProgress(_ domain.Context, _ string, record domain.ProgressRecord) error {
	r.records = append(r.records, record)
	return nil
}

func TestPipeline_Run_HappyPath(t *testing.T) {
	jd := domain.JobDescription{
		ID:                     "job-1",
		RequiredSkills:         []string{"go"},
		MinimumExperienceYears: 3,
	}
	resume := domain.Resume{ID: "res-1", JobID: "job-1", RawText: "Experienced Go engineer with 5 years building backend services."}

	deps := Deps{
		UploadsRoot: "/tmp/uploads",
		Extractor:   &fakeExtractor{text: "irrelevant"},
		Gateway:     &fakeGateway{},
		JobRepo:     &fakeJobRepo{jd: jd},
		ResumeRepo:  &fakeResumeRepo{resume: resume},
		ScoreRepo:   &fakeScoreRepo{},
	}
	pipeline := New(deps)
	pusher := &recordingPusher{}
	tracker := progress.NewTracker(pusher, "job-1", "[job-1][res-1]")

	score, err := pipeline.Run(context.Background(), tracker, "job-1", "res-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", score.JobID)
	assert.Equal(t, "res-1", score.ResumeID)
	assert.Empty(t, score.DefaultedStages)
	assert.NotEmpty(t, pusher.records)
}

func TestPipeline_Run_AIParseFailureIsFatal(t *testing.T) {
	jd := domain.JobDescription{ID: "job-1"}
	resume := domain.Resume{ID: "res-1", JobID: "job-1", RawText: "some text"}

	resumeRepo := &fakeResumeRepo{resume: resume}
	deps := Deps{
		Extractor:  &fakeExtractor{text: "irrelevant"},
		Gateway:    &fakeGateway{parseErr: assertErr{}},
		JobRepo:    &fakeJobRepo{jd: jd},
		ResumeRepo: resumeRepo,
		ScoreRepo:  &fakeScoreRepo{},
	}
	pipeline := New(deps)
	pusher := &recordingPusher{}
	tracker := progress.NewTracker(pusher, "job-1", "[job-1][res-1]")

	_, err := pipeline.Run(context.Background(), tracker, "job-1", "res-1")
	require.Error(t, err)
	var fatal *domain.FatalJobError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "ai_parse", fatal.Stage)
	assert.Equal(t, domain.StageFailed, resumeRepo.stageUpdates[domain.StageFieldParsing])
}

func TestPipeline_Run_EmbedFailureIsSkippable(t *testing.T) {
	jd := domain.JobDescription{ID: "job-1"}
	resume := domain.Resume{ID: "res-1", JobID: "job-1", RawText: "some text"}

	scoreRepo := &fakeScoreRepo{}
	resumeRepo := &fakeResumeRepo{resume: resume}
	deps := Deps{
		Extractor:  &fakeExtractor{text: "irrelevant"},
		Gateway:    &fakeGateway{embedErr: assertErr{}},
		JobRepo:    &fakeJobRepo{jd: jd},
		ResumeRepo: resumeRepo,
		ScoreRepo:  scoreRepo,
	}
	pipeline := New(deps)
	pusher := &recordingPusher{}
	tracker := progress.NewTracker(pusher, "job-1", "[job-1][res-1]")

	score, err := pipeline.Run(context.Background(), tracker, "job-1", "res-1")
	require.NoError(t, err)
	assert.Contains(t, score.DefaultedStages, "embed")
	assert.Equal(t, domain.StageFailed, resumeRepo.stageUpdates[domain.StageFieldEmbedding])
	assert.Equal(t, "res-1", scoreRepo.upserted.ResumeID)
}

func TestPipeline_Run_FetchResumeFailureIsFatal(t *testing.T) {
	jd := domain.JobDescription{ID: "job-1"}
	deps := Deps{
		Extractor:  &fakeExtractor{},
		Gateway:    &fakeGateway{},
		JobRepo:    &fakeJobRepo{jd: jd},
		ResumeRepo: &erroringResumeRepo{},
		ScoreRepo:  &fakeScoreRepo{},
	}
	pipeline := New(deps)
	pusher := &recordingPusher{}
	tracker := progress.NewTracker(pusher, "job-1", "[job-1][res-1]")

	_, err := pipeline.Run(context.Background(), tracker, "job-1", "res-1")
	require.Error(t, err)
	var fatal *domain.FatalJobError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "fetch_resume", fatal.Stage)
}

type erroringResumeRepo struct{}

func (e *erroringResumeRepo) Create(ctx domain.Context, r domain.Resume) (string, error) { return "", nil }
func (e *erroringResumeRepo) UpdateStatus(ctx domain.Context, id string, status domain.JobStatus, errMsg *string) error {
	return nil
}
func (e *erroringResumeRepo) Get(ctx domain.Context, id string) (domain.Resume, error) {
	return domain.Resume{}, assertErr{}
}
func (e *erroringResumeRepo) UpdateStage(ctx domain.Context, id, field string, status domain.StageStatus) error {
	return nil
}
func (e *erroringResumeRepo) UpdateParsedContent(ctx domain.Context, r domain.Resume) error {
	return nil
}
func (e *erroringResumeRepo) UpdateEmbeddings(ctx domain.Context, id string, embeddings map[string]domain.EmbeddingMatrix) error {
	return nil
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
