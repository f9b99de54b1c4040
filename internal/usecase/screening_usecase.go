package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fadilmartias/resume-screener/internal/apperrors"
	"github.com/fadilmartias/resume-screener/internal/config"
	"github.com/fadilmartias/resume-screener/internal/model"
	"github.com/fadilmartias/resume-screener/internal/service"
)

// CandidateStore is the persistence collaborator consumed by screening.
type CandidateStore interface {
	GetCandidates(filter model.CandidateFilter) ([]model.Candidate, error)
	UpdateCandidate(id string, patch model.CandidatePatch) (*model.Candidate, error)
}

// ActivityLogStore records the job-level audit entry.
type ActivityLogStore interface {
	AppendActivityLog(entry *model.ActivityLog) error
}

// ScreeningJob describes one batch run. It is transient and not persisted
// beyond its execution.
type ScreeningJob struct {
	Department    string
	Prompt        string
	MatchKeywords string
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
}

// ScreeningResult is the outcome for exactly one submitted candidate.
type ScreeningResult struct {
	CandidateID string   `json:"candidate_id"`
	Score       int      `json:"score"`
	Tags        []string `json:"tags"`
	MatchScore  int      `json:"match_score"`
	Error       string   `json:"error,omitempty"`
}

// ScreeningReport aggregates per-candidate results. A report with both
// counts non-zero is a partial success, not a failure.
type ScreeningReport struct {
	ScreenedCount int               `json:"screened_count"`
	FailedCount   int               `json:"failed_count"`
	Results       []ScreeningResult `json:"per_candidate_results"`
}

type ScreeningUsecase struct {
	store    CandidateStore
	audit    ActivityLogStore
	ai       service.AIServiceInterface
	aiConfig *config.AIConfig
	logger   *zap.Logger
}

func NewScreeningUsecase(store CandidateStore, audit ActivityLogStore, ai service.AIServiceInterface, aiConfig *config.AIConfig, logger *zap.Logger) *ScreeningUsecase {
	return &ScreeningUsecase{store: store, audit: audit, ai: ai, aiConfig: aiConfig, logger: logger}
}

// Run executes a screening job: filter pending candidates, score each one,
// persist the patch and aggregate outcomes. A failure on one candidate is
// recorded in its result and never aborts the rest of the batch.
func (uc *ScreeningUsecase) Run(ctx context.Context, job ScreeningJob) (*ScreeningReport, error) {
	if !uc.aiConfig.Complete() {
		return nil, apperrors.Configuration("AI endpoint not configured (base URL, key, model required)")
	}

	filter := model.CandidateFilter{
		Status:        model.StatusPending,
		Department:    job.Department,
		SubmittedFrom: dayStart(job.SubmittedFrom),
		SubmittedTo:   dayEnd(job.SubmittedTo),
	}
	candidates, err := uc.store.GetCandidates(filter)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no pending candidates matched the filter")
	}

	report := &ScreeningReport{Results: make([]ScreeningResult, 0, len(candidates))}

	for i := range candidates {
		c := &candidates[i]
		result := uc.screenOne(ctx, c, job)
		if result.Error != "" {
			report.FailedCount++
		} else {
			report.ScreenedCount++
		}
		report.Results = append(report.Results, result)
	}

	uc.appendAudit(job, report)

	if report.ScreenedCount == 0 {
		return report, fmt.Errorf("all %d candidates failed screening", report.FailedCount)
	}
	return report, nil
}

func (uc *ScreeningUsecase) screenOne(ctx context.Context, c *model.Candidate, job ScreeningJob) ScreeningResult {
	result := ScreeningResult{CandidateID: c.ID.String()}

	score, err := uc.ai.ScoreCandidate(ctx, c, job.Prompt, job.MatchKeywords)
	if err != nil {
		uc.logger.Warn("candidate scoring failed",
			zap.String("candidate", result.CandidateID), zap.Error(err))
		result.Error = err.Error()
		return result
	}

	tags := model.StringList(score.Tags)
	if job.MatchKeywords != "" {
		tags = append(tags, fmt.Sprintf("匹配度: %d%%", score.MatchScore))
	}

	newStatus := model.StatusPending
	if score.Score >= 75 {
		newStatus = model.StatusPendingInterview
	}

	patch := model.CandidatePatch{
		AIScore: &score.Score,
		Status:  &newStatus,
		Tags:    &tags,
	}
	if _, err := uc.store.UpdateCandidate(result.CandidateID, patch); err != nil {
		uc.logger.Warn("candidate update failed",
			zap.String("candidate", result.CandidateID), zap.Error(err))
		result.Error = err.Error()
		return result
	}

	result.Score = score.Score
	result.Tags = tags
	result.MatchScore = score.MatchScore
	return result
}

func (uc *ScreeningUsecase) appendAudit(job ScreeningJob, report *ScreeningReport) {
	detail := fmt.Sprintf("department=%q screened=%d failed=%d keywords=%q",
		job.Department, report.ScreenedCount, report.FailedCount, job.MatchKeywords)
	entry := &model.ActivityLog{Action: "screening_job", Detail: detail}
	if err := uc.audit.AppendActivityLog(entry); err != nil {
		uc.logger.Warn("failed to append activity log", zap.Error(err))
	}
}

func dayStart(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return &d
}

func dayEnd(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
	return &d
}
