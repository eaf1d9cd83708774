// Package domain defines core entities, ports, and domain-specific errors
// shared across the resume/job matching pipeline.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrInternal          = errors.New("internal error")
)

// Context is a type alias to stdlib context.Context for convenience across layers.
type Context = context.Context

// JobStatus captures the lifecycle state of a job description or resume.
type JobStatus string

// Lifecycle status values shared by JD and Resume records.
const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// JobDescription is the domain model for a parsed job posting.
type JobDescription struct {
	ID      string
	GroupID string
	Status  JobStatus

	ContentHash string // cache key for the parse-once-per-content rule

	RawText string

	// Identity
	Title      string
	Seniority  string
	DomainTags []string

	RequiredSkills  []string
	PreferredSkills []string
	// WeightedKeywords maps a keyword to a weight in [0,1] (keywords_weighted).
	WeightedKeywords map[string]float64

	MinimumExperienceYears float64
	RequiredEducation      string

	Responsibilities       []string
	EducationRequirements  []string
	CertificationsRequired []string

	FilterRequirements FilterRequirements

	// SectionEmbeddings holds one L2-normalised sentence matrix per section:
	// profile, skills, projects, responsibilities, education, overall.
	SectionEmbeddings map[string]EmbeddingMatrix
	// SectionTexts holds the source sentences embedded into SectionEmbeddings,
	// kept alongside so re-embedding on cache-miss can be retried per section.
	SectionTexts map[string][]string

	// Weighting overrides the scoring kernel's DefaultCompositeKeywordWeights
	// when non-empty (JD-supplied weighting vector).
	Weighting map[string]float64

	// HRNotes is the structured decode of legacy domain_tags HR_NOTE: entries.
	HRNotes []HRNote

	CreatedAt time.Time
	UpdatedAt time.Time
	Error     string
}

// EmbeddingMatrix is a sequence of L2-normalised embedding rows, one per
// sentence/token, all of the same dimension.
type EmbeddingMatrix [][]float32

// FilterRequirements mirrors the filter_requirements block consulted by the
// hard-requirements check: two compliance blocks (mandatory, soft), each
// with a raw HR prompt and a structured field->spec mapping.
type FilterRequirements struct {
	MandatoryCompliances ComplianceBlock
	SoftCompliances      ComplianceBlock
}

// ComplianceBlock pairs the raw HR prompt text with its structured,
// field-by-field requirement specs.
type ComplianceBlock struct {
	RawPrompt  string
	Structured map[string]RequirementSpec
}

// AllowedFields returns the set of field names the HR prompt explicitly
// specified (mandatory ∪ soft), i.e. the allowed_fields the LLM Gateway's
// rerank output is filtered against.
func (fr FilterRequirements) AllowedFields() map[string]bool {
	allowed := make(map[string]bool)
	for name, spec := range fr.MandatoryCompliances.Structured {
		if spec.Specified {
			allowed[name] = true
		}
	}
	for name, spec := range fr.SoftCompliances.Structured {
		if spec.Specified {
			allowed[name] = true
		}
	}
	return allowed
}

// RequirementSpec describes a single compliance requirement for one field
// (experience, hard_skills, education, location, or an unrecognised field
// that passes by default).
type RequirementSpec struct {
	Type      string
	Specified bool
	Min       float64
	Max       float64
	HasMax    bool
	Required  []string // hard_skills required list
	Degree    string   // education minimum/required degree
	Location  string   // location requirement value
}

// HRNote is the structured form of a legacy domain_tags HR_NOTE string.
type HRNote struct {
	Category string
	Type     string
	Impact   float64
	Note     string
}

// StageStatus is a per-stage status field on a Resume record
// (extraction_status, parsing_status, embedding_status). It advances from
// "pending" to "success"|"failed" exactly once per pipeline run.
type StageStatus string

// Stage status values.
const (
	StagePending StageStatus = "pending"
	StageSuccess StageStatus = "success"
	StageFailed  StageStatus = "failed"
)

// Resume is the domain model for an uploaded, parsed candidate resume.
type Resume struct {
	ID      string
	GroupID string
	JobID   string
	Status  JobStatus

	Filename string
	MIME     string
	Size     int64

	ResumeContentHash string // cache key for per-(resume,jd) reuse of parsed_content

	RawText string

	// Identity
	CandidateID     string // deterministic hash of email|phone|name, see DeriveCandidateID
	Name            string
	Email           string
	Phone           string
	Location        string
	YearsExperience float64

	CanonicalSkills  map[string][]string // category -> sorted, deduped, lowercased tokens
	InferredSkills   []InferredSkill
	SkillProficiency []SkillProficiency
	Education        []Education
	Experience       []Experience
	Projects         []Project

	// Flat keyword lines the keyword comparator tokenizes alongside the
	// structured fields.
	ProfileKeywordsLine string
	ATSBoostLine        string
	DomainTags          []string

	// SectionEmbeddings holds one L2-normalised sentence matrix per section:
	// profile, skills, projects, responsibilities, education, overall.
	SectionEmbeddings map[string]EmbeddingMatrix

	ExtractionStatus StageStatus
	ParsingStatus    StageStatus
	EmbeddingStatus  StageStatus

	CreatedAt time.Time
	UpdatedAt time.Time
	Error     string
}

// InferredSkill is a skill the parser inferred rather than read literally.
// Provenance names the resume fragments the inference came from.
type InferredSkill struct {
	Skill      string
	Confidence float64
	Provenance []string
}

// SkillProficiency pairs a named skill with a self-reported or inferred level.
type SkillProficiency struct {
	Skill string
	Level string
}

// Education captures one education entry parsed from a resume.
type Education struct {
	Degree       string
	FieldOfStudy string
	Institution  string
	Year         int
}

// Experience captures one work-history entry parsed from a resume.
type Experience struct {
	Title                    string
	Company                  string
	StartDate                string
	EndDate                  string
	DurationYears            float64
	PrimaryTech              []string
	ResponsibilitiesKeywords []string
	Achievements             []string
	Description              string
}

// ProjectMetrics holds the seven [0,1] project quality ratings the scoring
// kernel's project-aggregate function averages.
type ProjectMetrics struct {
	Difficulty       float64
	Novelty          float64
	SkillRelevance   float64
	Complexity       float64
	TechnicalDepth   float64
	DomainRelevance  float64
	ExecutionQuality float64
}

// Project captures one project entry parsed from a resume.
type Project struct {
	Name          string
	Approach      string
	TechKeywords  []string
	PrimarySkills []string
	Metrics       ProjectMetrics
}

// ScoreRecord stores the evaluation output for one resume against one JD.
// DefaultedStages lists which sub-scores were defaulted because their
// pipeline stage failed non-fatally.
type ScoreRecord struct {
	JobID                   string
	ResumeID                string
	HardRequirementsPassed  bool
	HardRequirementsScore   float64
	HardRequirementsMet     []string
	HardRequirementsMissing []string
	KeywordScore            float64
	SemanticScore           float64
	ProjectScore            float64
	FinalScore              float64
	RankingTier             string
	ConfidenceScore         float64
	ComponentScores         map[string]float64
	ScoreBreakdown          map[string]any
	DefaultedStages         []string

	// Supplemented by rerank: see RankedCandidate.
	ReRankScore         float64
	ReRankApplied       bool
	RequirementsMet     []string
	RequirementsMissing []string
	ComplianceReport    string

	CreatedAt time.Time
}

// RankingBatch is one batch of the final ranking fan-in stage (≤30
// candidates). Each batch is processed independently by the LLM Gateway;
// the union of all batches' outputs is the full ranking.
type RankingBatch struct {
	JobID           string
	ResumeGroupID   string
	BatchIndex      int
	TotalBatches    int
	ScoreResultIDs  []string
	RankingCriteria map[string]any
}

// RankedCandidate is one entry of a completed rerank batch, restricted to
// the allowed_fields the HR prompt specified, plus position/percentile
// supplements.
type RankedCandidate struct {
	ResumeID            string
	ReRankScore         float64
	MeetsRequirements   bool
	RequirementsMet     []string
	RequirementsMissing []string
	ComplianceReport    string

	FinalScore   float64
	RankPosition int
	TotalCount   int
	Percentile   float64
	RankCategory string
}

// CandidateSummary is the abbreviated per-candidate record the LLM Gateway
// sends in a rerank batch: id, name, abbreviated scores (p/k/s/f),
// experience, location, role, up to 10 skills, up to 3 project tuples, and
// a programmatic compliance sub-record.
type CandidateSummary struct {
	ResumeID        string
	Name            string
	ProjectScore    float64 // p
	KeywordScore    float64 // k
	SemanticScore   float64 // s
	FinalScore      float64 // f
	YearsExperience float64
	Location        string
	Role            string
	TopSkills       []string // up to 10
	Projects        []ProjectTuple
	Compliance      ComplianceSummary
}

// ProjectTuple is an abbreviated project entry (name, a short approach
// blurb, primary tech) included in a rerank candidate summary. Up to 3 per
// candidate.
type ProjectTuple struct {
	Name     string
	Approach string
	Tech     []string
}

// ComplianceSummary is the programmatic hard-requirements result attached
// to a rerank candidate summary so the model can see it alongside its own
// judgement.
type ComplianceSummary struct {
	MeetsAll bool
	Met      []string
	Missing  []string
}

// RerankCriteria bundles the compliance context a rerank batch needs:
// the raw HR hiring-criteria prompt and the set of field names the model's
// requirements_met/requirements_missing output is restricted to.
type RerankCriteria struct {
	RawPrompt     string
	AllowedFields []string
}

// Repositories / external collaborators (ports)

// JobRepository manages job description persistence via the external backend.
type JobRepository interface {
	Create(ctx Context, jd JobDescription) (string, error)
	UpdateStatus(ctx Context, id string, status JobStatus, errMsg *string) error
	Get(ctx Context, id string) (JobDescription, error)
}

// ResumeRepository manages resume persistence via the external backend.
type ResumeRepository interface {
	Create(ctx Context, r Resume) (string, error)
	UpdateStatus(ctx Context, id string, status JobStatus, errMsg *string) error
	Get(ctx Context, id string) (Resume, error)
	// UpdateStage writes one of the per-stage status fields
	// (extraction_status, parsing_status, embedding_status), which advance
	// from pending to success|failed exactly once per run.
	UpdateStage(ctx Context, id, field string, status StageStatus) error
	// UpdateParsedContent persists the AI-parsed resume fields so a crash
	// after the ai_parse stage loses no completed work.
	UpdateParsedContent(ctx Context, r Resume) error
	// UpdateEmbeddings persists the six section embedding matrices after
	// the embed stage.
	UpdateEmbeddings(ctx Context, id string, embeddings map[string]EmbeddingMatrix) error
}

// Resume stage-status field names, as written via ResumeRepository.UpdateStage.
const (
	StageFieldExtraction = "extraction_status"
	StageFieldParsing    = "parsing_status"
	StageFieldEmbedding  = "embedding_status"
)

// ScoreRepository manages score-record persistence via the external backend.
type ScoreRepository interface {
	Upsert(ctx Context, s ScoreRecord) error
	GetByJobID(ctx Context, jobID string) ([]ScoreRecord, error)
}

// ParseKind distinguishes the tool/function schema used by ParseText.
type ParseKind string

// Parse kinds recognised by the LLM Gateway.
const (
	ParseKindJD         ParseKind = "jd"
	ParseKindResume     ParseKind = "resume"
	ParseKindCompliance ParseKind = "compliance"
)

// LLMGateway is the typed boundary to the chat/embedding LLM service.
// Implementations own retries, circuit breaking, and batch/backoff
// policy; callers see plain Go errors, including *ParseError for unusable
// function-call output and *CircuitOpenError while a model's breaker is
// open. These typed errors do not wrap the sentinel errors above.
type LLMGateway interface {
	// ParseText invokes a strict tool/function-call completion for one of
	// the declared schema kinds and returns the parsed arguments as a
	// map, ready for a typed decode by the caller.
	ParseText(ctx Context, kind ParseKind, text string, context map[string]any) (map[string]any, error)
	// EmbedBatch returns one L2-normalised vector per input text, batched
	// at EmbedBatchSize and deduplicated via the embed cache.
	EmbedBatch(ctx Context, texts []string) ([][]float32, error)
	// RerankBatch submits up to 30 candidate summaries for LLM-refined
	// re-ranking against hiring criteria, returning one RankedCandidate
	// per input candidate (order not guaranteed).
	RerankBatch(ctx Context, candidates []CandidateSummary, criteria RerankCriteria) ([]RankedCandidate, error)
}

// ProgressRecord is one standardised progress/completion/failure event
// pushed to the queue substrate's progress channel.
type ProgressRecord struct {
	Percent   int
	Step      string
	Message   string
	Stage     string
	Metadata  map[string]any
	Timestamp time.Time
	// Duration since the tracker's associated job started, in milliseconds.
	DurationMS int64
	// Populated only on a failure record.
	Error     string
	ErrorKind string
	Retryable bool
	// Populated only on a completion record.
	Success bool
	Summary map[string]any
}

// ProgressPusher delivers a ProgressRecord to the queue substrate's
// per-job progress channel.
type ProgressPusher interface {
	PushProgress(ctx Context, jobID string, record ProgressRecord) error
}

// Queue enqueues work onto the jd/resume/ranking queues.
type Queue interface {
	EnqueueJD(ctx Context, payload JDTaskPayload) (string, error)
	EnqueueResume(ctx Context, payload ResumeTaskPayload) (string, error)
	EnqueueRanking(ctx Context, payload RankingTaskPayload) (string, error)
}

// TextExtractor extracts text from an uploaded resume file. Implementations
// call out to an external extraction collaborator; extraction internals are
// out of scope here.
type TextExtractor interface {
	ExtractPath(ctx Context, fileName, path string) (string, error)
}

// JDTaskPayload is the payload enqueued on the jd queue.
type JDTaskPayload struct {
	JobID   string `validate:"required"`
	GroupID string
}

// ResumeTaskPayload is the payload enqueued on the resume queue. JobName
// distinguishes a parent tracking job ("process-resume-group") from a
// child per-resume job ("process-resume").
type ResumeTaskPayload struct {
	JobName      string `validate:"required"`
	ResumeID     string `validate:"required_unless=JobName process-resume-group"`
	JobID        string `validate:"required"`
	Index        int    `validate:"gte=0"`
	Total        int    `validate:"gte=0"`
	TotalResumes int    `validate:"gte=0"`
}

// RankingTaskPayload is the payload enqueued on the ranking queue.
type RankingTaskPayload struct {
	JobID           string   `validate:"required"`
	ResumeGroupID   string
	ScoreResultIDs  []string `validate:"required,max=30,dive,required"`
	BatchIndex      int      `validate:"gte=0"`
	TotalBatches    int      `validate:"gte=1"`
	RankingCriteria map[string]any
}
