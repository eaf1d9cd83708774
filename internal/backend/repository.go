package backend

import (
	"context"
	"fmt"

	"github.com/kreeda/resumatch/internal/domain"
)

// jobPayload/resumePayload/scorePayload are the wire-format mirrors of the
// domain structs sent to and received from the external backend. Keeping
// them distinct from the domain types lets the backend's field names and
// nesting evolve independently of the scoring kernel's internal shapes.

type jobPayload struct {
	ID                     string                            `json:"id,omitempty"`
	GroupID                string                            `json:"group_id"`
	Status                 domain.JobStatus                  `json:"status,omitempty"`
	ContentHash            string                            `json:"content_hash"`
	RawText                string                            `json:"raw_text"`
	Title                  string                            `json:"title"`
	Seniority              string                            `json:"seniority"`
	DomainTags             []string                          `json:"domain_tags"`
	RequiredSkills         []string                          `json:"required_skills"`
	PreferredSkills        []string                          `json:"preferred_skills"`
	WeightedKeywords       map[string]float64                `json:"weighted_keywords"`
	MinimumExperienceYears float64                           `json:"minimum_experience_years"`
	RequiredEducation      string                            `json:"required_education"`
	Responsibilities       []string                          `json:"responsibilities"`
	EducationRequirements  []string                          `json:"education_requirements"`
	CertificationsRequired []string                          `json:"certifications_required"`
	Weighting              map[string]float64                `json:"weighting"`
	FilterRequirements     *filterRequirementsValue          `json:"filter_requirements,omitempty"`
	JDEmbeddings           map[string]domain.EmbeddingMatrix `json:"jd_embedding,omitempty"`
	ErrorMessage           *string                           `json:"error_message,omitempty"`
}

// GetJob fetches a job description by id.
func (c *Client) GetJob(ctx context.Context, id string) (domain.JobDescription, error) {
	var p jobPayload
	if err := c.do(ctx, "GET", fmt.Sprintf("jobs/%s", id), nil, &p); err != nil {
		return domain.JobDescription{}, err
	}
	return jobFromPayload(p), nil
}

// Create persists a new job description, returning the backend-assigned id.
func (c *Client) Create(ctx context.Context, jd domain.JobDescription) (string, error) {
	p := jobToPayload(jd)
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "POST", "jobs", p, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// UpdateStatus sets a job description's lifecycle status
// (POST /updates/jd/status).
func (c *Client) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMsg *string) error {
	body := map[string]any{"job_id": id, "status": status}
	if errMsg != nil {
		body["error_message"] = *errMsg
	}
	return c.do(ctx, "POST", "updates/jd/status", body, nil)
}

// Get implements domain.JobRepository.Get.
func (c *Client) Get(ctx context.Context, id string) (domain.JobDescription, error) {
	return c.GetJob(ctx, id)
}

func jobToPayload(jd domain.JobDescription) jobPayload {
	return jobPayload{
		ID:                     jd.ID,
		GroupID:                jd.GroupID,
		Status:                 jd.Status,
		ContentHash:            jd.ContentHash,
		RawText:                jd.RawText,
		Title:                  jd.Title,
		Seniority:              jd.Seniority,
		DomainTags:             jd.DomainTags,
		RequiredSkills:         jd.RequiredSkills,
		PreferredSkills:        jd.PreferredSkills,
		WeightedKeywords:       jd.WeightedKeywords,
		MinimumExperienceYears: jd.MinimumExperienceYears,
		RequiredEducation:      jd.RequiredEducation,
		Responsibilities:       jd.Responsibilities,
		EducationRequirements:  jd.EducationRequirements,
		CertificationsRequired: jd.CertificationsRequired,
		Weighting:              jd.Weighting,
	}
}

func jobFromPayload(p jobPayload) domain.JobDescription {
	var fr domain.FilterRequirements
	if p.FilterRequirements != nil {
		fr = domain.FilterRequirements{
			MandatoryCompliances: blockFromPayload(p.FilterRequirements.MandatoryCompliances),
			SoftCompliances:      blockFromPayload(p.FilterRequirements.SoftCompliances),
		}
	}
	return domain.JobDescription{
		ID:                     p.ID,
		GroupID:                p.GroupID,
		Status:                 p.Status,
		ContentHash:            p.ContentHash,
		RawText:                p.RawText,
		Title:                  p.Title,
		Seniority:              p.Seniority,
		DomainTags:             p.DomainTags,
		RequiredSkills:         p.RequiredSkills,
		PreferredSkills:        p.PreferredSkills,
		WeightedKeywords:       p.WeightedKeywords,
		MinimumExperienceYears: p.MinimumExperienceYears,
		RequiredEducation:      p.RequiredEducation,
		Responsibilities:       p.Responsibilities,
		EducationRequirements:  p.EducationRequirements,
		CertificationsRequired: p.CertificationsRequired,
		Weighting:              p.Weighting,
		FilterRequirements:     fr,
		SectionEmbeddings:      p.JDEmbeddings,
	}
}

func blockFromPayload(b complianceBlockPayload) domain.ComplianceBlock {
	structured := make(map[string]domain.RequirementSpec, len(b.Structured))
	for name, spec := range b.Structured {
		structured[name] = domain.RequirementSpec{
			Type:      spec.Type,
			Specified: spec.Specified,
			Min:       spec.Min,
			Max:       spec.Max,
			HasMax:    spec.HasMax,
			Required:  spec.Required,
			Degree:    spec.Degree,
			Location:  spec.Location,
		}
	}
	return domain.ComplianceBlock{RawPrompt: b.RawPrompt, Structured: structured}
}

// ResumeClient adapts Client to domain.ResumeRepository. It holds no job id
// of its own: Create posts under the resume's JobID (jobs/{jobID}/resumes),
// and the other methods address a resume by id alone (updates/resume/{id}).
type ResumeClient struct {
	*Client
}

// NewResumeClient builds a domain.ResumeRepository over an existing Client.
func NewResumeClient(c *Client) *ResumeClient {
	return &ResumeClient{Client: c}
}

type inferredSkillPayload struct {
	Skill      string   `json:"skill"`
	Confidence float64  `json:"confidence"`
	Provenance []string `json:"provenance,omitempty"`
}

type skillProficiencyPayload struct {
	Skill string `json:"skill"`
	Level string `json:"level"`
}

type educationPayload struct {
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"field_of_study"`
	Institution  string `json:"institution"`
	Year         int    `json:"year"`
}

type experiencePayload struct {
	Title                    string   `json:"title"`
	Company                  string   `json:"company"`
	StartDate                string   `json:"start_date"`
	EndDate                  string   `json:"end_date"`
	DurationYears            float64  `json:"duration_years"`
	PrimaryTech              []string `json:"primary_tech"`
	ResponsibilitiesKeywords []string `json:"responsibilities_keywords"`
	Achievements             []string `json:"achievements"`
	Description              string   `json:"description"`
}

type projectMetricsPayload struct {
	Difficulty       float64 `json:"difficulty"`
	Novelty          float64 `json:"novelty"`
	SkillRelevance   float64 `json:"skill_relevance"`
	Complexity       float64 `json:"complexity"`
	TechnicalDepth   float64 `json:"technical_depth"`
	DomainRelevance  float64 `json:"domain_relevance"`
	ExecutionQuality float64 `json:"execution_quality"`
}

type projectPayload struct {
	Name          string                `json:"name"`
	Approach      string                `json:"approach"`
	TechKeywords  []string              `json:"tech_keywords"`
	PrimarySkills []string              `json:"primary_skills"`
	Metrics       projectMetricsPayload `json:"metrics"`
}

type resumePayload struct {
	ID                  string                            `json:"id,omitempty"`
	GroupID             string                            `json:"group_id"`
	JobID               string                            `json:"job_id"`
	Status              domain.JobStatus                  `json:"status,omitempty"`
	Filename            string                            `json:"filename"`
	MIME                string                            `json:"mime"`
	Size                int64                             `json:"size"`
	ResumeContentHash   string                            `json:"resume_content_hash"`
	RawText             string                            `json:"raw_text"`
	CandidateID         string                            `json:"candidate_id"`
	Name                string                            `json:"name"`
	Email               string                            `json:"email"`
	Phone               string                            `json:"phone"`
	Location            string                            `json:"location"`
	YearsExperience     float64                           `json:"years_experience"`
	CanonicalSkills     map[string][]string               `json:"canonical_skills"`
	InferredSkills      []inferredSkillPayload            `json:"inferred_skills"`
	SkillProficiency    []skillProficiencyPayload         `json:"skill_proficiency"`
	Education           []educationPayload                `json:"education"`
	Experience          []experiencePayload               `json:"experience"`
	Projects            []projectPayload                  `json:"projects"`
	ProfileKeywordsLine string                            `json:"profile_keywords_line"`
	ATSBoostLine        string                            `json:"ats_boost_line"`
	DomainTags          []string                          `json:"domain_tags"`
	SectionEmbeddings   map[string]domain.EmbeddingMatrix `json:"resume_embedding,omitempty"`
	ExtractionStatus    domain.StageStatus                `json:"extraction_status,omitempty"`
	ParsingStatus       domain.StageStatus                `json:"parsing_status,omitempty"`
	EmbeddingStatus     domain.StageStatus                `json:"embedding_status,omitempty"`
	ErrorMessage        *string                           `json:"error_message,omitempty"`
}

// Create persists a new resume record.
func (rc *ResumeClient) Create(ctx context.Context, r domain.Resume) (string, error) {
	p := resumeToPayload(r)
	var out struct {
		ID string `json:"id"`
	}
	if err := rc.do(ctx, "POST", fmt.Sprintf("jobs/%s/resumes", r.JobID), p, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// UpdateStatus sets a resume's lifecycle status via a partial
// PUT /updates/resume/{id}.
func (rc *ResumeClient) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMsg *string) error {
	body := map[string]any{"status": status}
	if errMsg != nil {
		body["error_message"] = *errMsg
	}
	return rc.do(ctx, "PUT", fmt.Sprintf("updates/resume/%s", id), body, nil)
}

// UpdateStage writes one per-stage status field (extraction_status,
// parsing_status, embedding_status) on the resume record.
func (rc *ResumeClient) UpdateStage(ctx context.Context, id, field string, status domain.StageStatus) error {
	return rc.do(ctx, "PUT", fmt.Sprintf("updates/resume/%s", id), map[string]any{field: status}, nil)
}

// UpdateParsedContent persists the AI-parsed resume fields (partial PUT of
// parsed_content) so a crash after the ai_parse stage loses no work.
func (rc *ResumeClient) UpdateParsedContent(ctx context.Context, r domain.Resume) error {
	body := map[string]any{"parsed_content": resumeToPayload(r)}
	return rc.do(ctx, "PUT", fmt.Sprintf("updates/resume/%s", r.ID), body, nil)
}

// UpdateEmbeddings persists the resume's six section embedding matrices
// (partial PUT of resume_embedding).
func (rc *ResumeClient) UpdateEmbeddings(ctx context.Context, id string, embeddings map[string]domain.EmbeddingMatrix) error {
	body := map[string]any{"resume_embedding": embeddings}
	return rc.do(ctx, "PUT", fmt.Sprintf("updates/resume/%s", id), body, nil)
}

// Get fetches a resume by id (GET /updates/resume/{id}).
func (rc *ResumeClient) Get(ctx context.Context, id string) (domain.Resume, error) {
	var p resumePayload
	if err := rc.do(ctx, "GET", fmt.Sprintf("updates/resume/%s", id), nil, &p); err != nil {
		return domain.Resume{}, err
	}
	return resumeFromPayload(p), nil
}

func resumeToPayload(r domain.Resume) resumePayload {
	inferred := make([]inferredSkillPayload, len(r.InferredSkills))
	for i, s := range r.InferredSkills {
		inferred[i] = inferredSkillPayload{Skill: s.Skill, Confidence: s.Confidence, Provenance: s.Provenance}
	}
	proficiency := make([]skillProficiencyPayload, len(r.SkillProficiency))
	for i, s := range r.SkillProficiency {
		proficiency[i] = skillProficiencyPayload{Skill: s.Skill, Level: s.Level}
	}
	education := make([]educationPayload, len(r.Education))
	for i, e := range r.Education {
		education[i] = educationPayload{Degree: e.Degree, FieldOfStudy: e.FieldOfStudy, Institution: e.Institution, Year: e.Year}
	}
	experience := make([]experiencePayload, len(r.Experience))
	for i, x := range r.Experience {
		experience[i] = experiencePayload{
			Title:                    x.Title,
			Company:                  x.Company,
			StartDate:                x.StartDate,
			EndDate:                  x.EndDate,
			DurationYears:            x.DurationYears,
			PrimaryTech:              x.PrimaryTech,
			ResponsibilitiesKeywords: x.ResponsibilitiesKeywords,
			Achievements:             x.Achievements,
			Description:              x.Description,
		}
	}
	projects := make([]projectPayload, len(r.Projects))
	for i, p := range r.Projects {
		projects[i] = projectPayload{
			Name:          p.Name,
			Approach:      p.Approach,
			TechKeywords:  p.TechKeywords,
			PrimarySkills: p.PrimarySkills,
			Metrics: projectMetricsPayload{
				Difficulty:       p.Metrics.Difficulty,
				Novelty:          p.Metrics.Novelty,
				SkillRelevance:   p.Metrics.SkillRelevance,
				Complexity:       p.Metrics.Complexity,
				TechnicalDepth:   p.Metrics.TechnicalDepth,
				DomainRelevance:  p.Metrics.DomainRelevance,
				ExecutionQuality: p.Metrics.ExecutionQuality,
			},
		}
	}

	return resumePayload{
		ID:                  r.ID,
		GroupID:             r.GroupID,
		JobID:               r.JobID,
		Status:              r.Status,
		Filename:            r.Filename,
		MIME:                r.MIME,
		Size:                r.Size,
		ResumeContentHash:   r.ResumeContentHash,
		RawText:             r.RawText,
		CandidateID:         r.CandidateID,
		Name:                r.Name,
		Email:               r.Email,
		Phone:               r.Phone,
		Location:            r.Location,
		YearsExperience:     r.YearsExperience,
		CanonicalSkills:     r.CanonicalSkills,
		InferredSkills:      inferred,
		SkillProficiency:    proficiency,
		Education:           education,
		Experience:          experience,
		Projects:            projects,
		ProfileKeywordsLine: r.ProfileKeywordsLine,
		ATSBoostLine:        r.ATSBoostLine,
		DomainTags:          r.DomainTags,
		SectionEmbeddings:   r.SectionEmbeddings,
		ExtractionStatus:    r.ExtractionStatus,
		ParsingStatus:       r.ParsingStatus,
		EmbeddingStatus:     r.EmbeddingStatus,
	}
}

func resumeFromPayload(p resumePayload) domain.Resume {
	inferred := make([]domain.InferredSkill, len(p.InferredSkills))
	for i, s := range p.InferredSkills {
		inferred[i] = domain.InferredSkill{Skill: s.Skill, Confidence: s.Confidence, Provenance: s.Provenance}
	}
	proficiency := make([]domain.SkillProficiency, len(p.SkillProficiency))
	for i, s := range p.SkillProficiency {
		proficiency[i] = domain.SkillProficiency{Skill: s.Skill, Level: s.Level}
	}
	education := make([]domain.Education, len(p.Education))
	for i, e := range p.Education {
		education[i] = domain.Education{Degree: e.Degree, FieldOfStudy: e.FieldOfStudy, Institution: e.Institution, Year: e.Year}
	}
	experience := make([]domain.Experience, len(p.Experience))
	for i, x := range p.Experience {
		experience[i] = domain.Experience{
			Title:                    x.Title,
			Company:                  x.Company,
			StartDate:                x.StartDate,
			EndDate:                  x.EndDate,
			DurationYears:            x.DurationYears,
			PrimaryTech:              x.PrimaryTech,
			ResponsibilitiesKeywords: x.ResponsibilitiesKeywords,
			Achievements:             x.Achievements,
			Description:              x.Description,
		}
	}
	projects := make([]domain.Project, len(p.Projects))
	for i, proj := range p.Projects {
		projects[i] = domain.Project{
			Name:          proj.Name,
			Approach:      proj.Approach,
			TechKeywords:  proj.TechKeywords,
			PrimarySkills: proj.PrimarySkills,
			Metrics: domain.ProjectMetrics{
				Difficulty:       proj.Metrics.Difficulty,
				Novelty:          proj.Metrics.Novelty,
				SkillRelevance:   proj.Metrics.SkillRelevance,
				Complexity:       proj.Metrics.Complexity,
				TechnicalDepth:   proj.Metrics.TechnicalDepth,
				DomainRelevance:  proj.Metrics.DomainRelevance,
				ExecutionQuality: proj.Metrics.ExecutionQuality,
			},
		}
	}

	return domain.Resume{
		ID:                  p.ID,
		GroupID:             p.GroupID,
		JobID:               p.JobID,
		Status:              p.Status,
		Filename:            p.Filename,
		MIME:                p.MIME,
		Size:                p.Size,
		ResumeContentHash:   p.ResumeContentHash,
		RawText:             p.RawText,
		CandidateID:         p.CandidateID,
		Name:                p.Name,
		Email:               p.Email,
		Phone:               p.Phone,
		Location:            p.Location,
		YearsExperience:     p.YearsExperience,
		CanonicalSkills:     p.CanonicalSkills,
		InferredSkills:      inferred,
		SkillProficiency:    proficiency,
		Education:           education,
		Experience:          experience,
		Projects:            projects,
		ProfileKeywordsLine: p.ProfileKeywordsLine,
		ATSBoostLine:        p.ATSBoostLine,
		DomainTags:          p.DomainTags,
		SectionEmbeddings:   p.SectionEmbeddings,
		ExtractionStatus:    p.ExtractionStatus,
		ParsingStatus:       p.ParsingStatus,
		EmbeddingStatus:     p.EmbeddingStatus,
	}
}

// ScoreClient adapts Client to domain.ScoreRepository.
type ScoreClient struct {
	*Client
}

// NewScoreClient builds a domain.ScoreRepository over an existing Client.
func NewScoreClient(c *Client) *ScoreClient {
	return &ScoreClient{Client: c}
}

// scorePayload is the wire mirror of domain.ScoreRecord, matching the
// POST /updates/score body.
type scorePayload struct {
	JobID                   string             `json:"job_id"`
	ResumeID                string             `json:"resume_id"`
	HardRequirementsMet     bool               `json:"hard_requirements_met"`
	HardRequirementsScore   float64            `json:"hard_requirements_score"`
	HardRequirementsMetList []string           `json:"hard_requirements_met_list"`
	HardRequirementsMissing []string           `json:"hard_requirements_missing"`
	KeywordScore            float64            `json:"keyword_score"`
	SemanticScore           float64            `json:"semantic_score"`
	ProjectScore            float64            `json:"project_score"`
	FinalScore              float64            `json:"final_score"`
	RankingTier             string             `json:"ranking_tier"`
	ConfidenceScore         float64            `json:"confidence_score"`
	ComponentScores         map[string]float64 `json:"component_scores"`
	ScoreBreakdown          map[string]any     `json:"score_breakdown"`
	DefaultedStages         []string           `json:"defaulted_stages"`
	ReRankScore             float64            `json:"re_rank_score"`
	ReRankApplied           bool               `json:"re_rank_applied"`
	RequirementsMet         []string           `json:"requirements_met"`
	RequirementsMissing     []string           `json:"requirements_missing"`
	ComplianceReport        string             `json:"compliance_report"`
}

func scoreToPayload(s domain.ScoreRecord) scorePayload {
	return scorePayload{
		JobID:                   s.JobID,
		ResumeID:                s.ResumeID,
		HardRequirementsMet:     s.HardRequirementsPassed,
		HardRequirementsScore:   s.HardRequirementsScore,
		HardRequirementsMetList: s.HardRequirementsMet,
		HardRequirementsMissing: s.HardRequirementsMissing,
		KeywordScore:            s.KeywordScore,
		SemanticScore:           s.SemanticScore,
		ProjectScore:            s.ProjectScore,
		FinalScore:              s.FinalScore,
		RankingTier:             s.RankingTier,
		ConfidenceScore:         s.ConfidenceScore,
		ComponentScores:         s.ComponentScores,
		ScoreBreakdown:          s.ScoreBreakdown,
		DefaultedStages:         s.DefaultedStages,
		ReRankScore:             s.ReRankScore,
		ReRankApplied:           s.ReRankApplied,
		RequirementsMet:         s.RequirementsMet,
		RequirementsMissing:     s.RequirementsMissing,
		ComplianceReport:        s.ComplianceReport,
	}
}

func scoreFromPayload(p scorePayload) domain.ScoreRecord {
	return domain.ScoreRecord{
		JobID:                   p.JobID,
		ResumeID:                p.ResumeID,
		HardRequirementsPassed:  p.HardRequirementsMet,
		HardRequirementsScore:   p.HardRequirementsScore,
		HardRequirementsMet:     p.HardRequirementsMetList,
		HardRequirementsMissing: p.HardRequirementsMissing,
		KeywordScore:            p.KeywordScore,
		SemanticScore:           p.SemanticScore,
		ProjectScore:            p.ProjectScore,
		FinalScore:              p.FinalScore,
		RankingTier:             p.RankingTier,
		ConfidenceScore:         p.ConfidenceScore,
		ComponentScores:         p.ComponentScores,
		ScoreBreakdown:          p.ScoreBreakdown,
		DefaultedStages:         p.DefaultedStages,
		ReRankScore:             p.ReRankScore,
		ReRankApplied:           p.ReRankApplied,
		RequirementsMet:         p.RequirementsMet,
		RequirementsMissing:     p.RequirementsMissing,
		ComplianceReport:        p.ComplianceReport,
	}
}

// Upsert writes or replaces the score record for (JobID, ResumeID)
// (POST /updates/score; the backend keys on job_id+resume_id so a
// repeat POST replaces rather than duplicates).
func (sc *ScoreClient) Upsert(ctx context.Context, s domain.ScoreRecord) error {
	return sc.do(ctx, "POST", "updates/score", scoreToPayload(s), nil)
}

// GetByJobID returns every score record computed for a job
// (GET /updates/scores/{job_id}).
func (sc *ScoreClient) GetByJobID(ctx context.Context, jobID string) ([]domain.ScoreRecord, error) {
	var payloads []scorePayload
	if err := sc.do(ctx, "GET", fmt.Sprintf("updates/scores/%s", jobID), nil, &payloads); err != nil {
		return nil, err
	}
	out := make([]domain.ScoreRecord, len(payloads))
	for i, p := range payloads {
		out[i] = scoreFromPayload(p)
	}
	return out, nil
}

// requirementSpecPayload is the wire mirror of domain.RequirementSpec.
type requirementSpecPayload struct {
	Type      string   `json:"type"`
	Specified bool     `json:"specified"`
	Min       float64  `json:"min,omitempty"`
	Max       float64  `json:"max,omitempty"`
	HasMax    bool     `json:"has_max,omitempty"`
	Required  []string `json:"required,omitempty"`
	Degree    string   `json:"degree,omitempty"`
	Location  string   `json:"location,omitempty"`
}

// complianceBlockPayload is the wire mirror of domain.ComplianceBlock.
type complianceBlockPayload struct {
	RawPrompt  string                            `json:"raw_prompt"`
	Structured map[string]requirementSpecPayload `json:"structured"`
}

// filterRequirementsValue is the wire mirror of domain.FilterRequirements,
// nested under filter_requirements in the compliance update body.
type filterRequirementsValue struct {
	MandatoryCompliances complianceBlockPayload `json:"mandatory_compliances"`
	SoftCompliances      complianceBlockPayload `json:"soft_compliances"`
}

// filterRequirementsPayload is the POST /updates/jd/compliance body:
// {job_id, filter_requirements}.
type filterRequirementsPayload struct {
	JobID              string                  `json:"job_id"`
	FilterRequirements filterRequirementsValue `json:"filter_requirements"`
}

func blockToPayload(b domain.ComplianceBlock) complianceBlockPayload {
	structured := make(map[string]requirementSpecPayload, len(b.Structured))
	for name, spec := range b.Structured {
		structured[name] = requirementSpecPayload{
			Type:      spec.Type,
			Specified: spec.Specified,
			Min:       spec.Min,
			Max:       spec.Max,
			HasMax:    spec.HasMax,
			Required:  spec.Required,
			Degree:    spec.Degree,
			Location:  spec.Location,
		}
	}
	return complianceBlockPayload{RawPrompt: b.RawPrompt, Structured: structured}
}

// UpdateCompliance persists the JD's parsed mandatory/soft filter
// requirements (POST /updates/jd/compliance).
func (c *Client) UpdateCompliance(ctx context.Context, jobID string, fr domain.FilterRequirements) error {
	body := filterRequirementsPayload{
		JobID: jobID,
		FilterRequirements: filterRequirementsValue{
			MandatoryCompliances: blockToPayload(fr.MandatoryCompliances),
			SoftCompliances:      blockToPayload(fr.SoftCompliances),
		},
	}
	return c.do(ctx, "POST", "updates/jd/compliance", body, nil)
}

// jdEmbeddingsPayload is the POST /updates/jd/embeddings body: one matrix
// per section (profile, skills, projects, responsibilities, education,
// overall), each row already L2-normalised.
type jdEmbeddingsPayload struct {
	JobID        string                            `json:"job_id"`
	JDEmbeddings map[string]domain.EmbeddingMatrix `json:"jd_embedding"`
}

// UpdateEmbeddings persists the JD's six section embedding matrices.
func (c *Client) UpdateEmbeddings(ctx context.Context, jobID string, embeddings map[string]domain.EmbeddingMatrix) error {
	body := jdEmbeddingsPayload{JobID: jobID, JDEmbeddings: embeddings}
	return c.do(ctx, "POST", "updates/jd/embeddings", body, nil)
}

// UpdateParsed persists the freshly AI-parsed JD analysis (POST
// /updates/jd/parsed): identity, skill lists, weighted keywords,
// weighting overrides. Embeddings and compliance are written back
// separately by UpdateEmbeddings/UpdateCompliance.
func (c *Client) UpdateParsed(ctx context.Context, jd domain.JobDescription) error {
	body := struct {
		JobID      string     `json:"job_id"`
		JDAnalysis jobPayload `json:"jd_analysis"`
	}{JobID: jd.ID, JDAnalysis: jobToPayload(jd)}
	return c.do(ctx, "POST", "updates/jd/parsed", body, nil)
}

var (
	_ domain.JobRepository    = (*Client)(nil)
	_ domain.ResumeRepository = (*ResumeClient)(nil)
	_ domain.ScoreRepository  = (*ScoreClient)(nil)
)
