package handlers

import (
	"github.com/kreeda/resumatch/internal/domain"
)

// Shared fakes for jd_test.go/resume_test.go/ranking_test.go.

type fakeJobRepo struct {
	jd     domain.JobDescription
	getErr error
}

func (f *fakeJobRepo) Create(ctx domain.Context, jd domain.JobDescription) (string, error) { return "", nil }
func (f *fakeJobRepo) UpdateStatus(ctx domain.Context, id string, status domain.JobStatus, errMsg *string) error {
	return nil
}
func (f *fakeJobRepo) Get(ctx domain.Context, id string) (domain.JobDescription, error) {
	return f.jd, f.getErr
}

type fakeResumeRepo struct {
	resumes map[string]domain.Resume
	getErr  error
}

func (f *fakeResumeRepo) Create(ctx domain.Context, r domain.Resume) (string, error) { return "", nil }
func (f *fakeResumeRepo) UpdateStatus(ctx domain.Context, id string, status domain.JobStatus, errMsg *string) error {
	return nil
}
func (f *fakeResumeRepo) Get(ctx domain.Context, id string) (domain.Resume, error) {
	if f.getErr != nil {
		return domain.Resume{}, f.getErr
	}
	return f.resumes[id], nil
}
func (f *fakeResumeRepo) UpdateStage(ctx domain.Context, id, field string, status domain.StageStatus) error {
	return nil
}
func (f *fakeResumeRepo) UpdateParsedContent(ctx domain.Context, r domain.Resume) error { return nil }
func (f *fakeResumeRepo) UpdateEmbeddings(ctx domain.Context, id string, embeddings map[string]domain.EmbeddingMatrix) error {
	return nil
}

type fakeScoreRepo struct {
	byJob    map[string][]domain.ScoreRecord
	upserted []domain.ScoreRecord
}

func (f *fakeScoreRepo) Upsert(ctx domain.Context, s domain.ScoreRecord) error {
	f.upserted = append(f.upserted, s)
	return nil
}
func (f *fakeScoreRepo) GetByJobID(ctx domain.Context, jobID string) ([]domain.ScoreRecord, error) {
	return f.byJob[jobID], nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) ExtractPath(ctx domain.Context, fileName, path string) (string, error) {
	return e.text, e.err
}

type fakeGateway struct {
	rerankResult []domain.RankedCandidate
	rerankErr    error
}

func (g *fakeGateway) ParseText(ctx domain.Context, kind domain.ParseKind, text string, llmCtx map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

func (g *fakeGateway) EmbedBatch(ctx domain.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (g *fakeGateway) RerankBatch(ctx domain.Context, candidates []domain.CandidateSummary, criteria domain.RerankCriteria) ([]domain.RankedCandidate, error) {
	if g.rerankErr != nil {
		return nil, g.rerankErr
	}
	if g.rerankResult != nil {
		return g.rerankResult, nil
	}
	out := make([]domain.RankedCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = domain.RankedCandidate{
			ResumeID:            c.ResumeID,
			ReRankScore:         c.FinalScore,
			MeetsRequirements:   c.Compliance.MeetsAll,
			RequirementsMet:     c.Compliance.Met,
			RequirementsMissing: c.Compliance.Missing,
		}
	}
	return out, nil
}

type recordingPusher struct {
	records []domain.ProgressRecord
}

func (r *recordingPusher) PushProgress(_ domain.Context, _ string, record domain.ProgressRecord) error {
	r.records = append(r.records, record)
	return nil
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
