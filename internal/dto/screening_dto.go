package dto

import (
	"fmt"
	"time"

	"github.com/fadilmartias/resume-screener/internal/usecase"
)

// ScreeningRequest is the job submission payload. Dates are day-granular
// and inclusive on both ends.
type ScreeningRequest struct {
	Department    string `json:"department"`
	Prompt        string `json:"prompt"`
	MatchKeywords string `json:"match_keywords"`
	SubmittedFrom string `json:"submitted_from"` // "2006-01-02", optional
	SubmittedTo   string `json:"submitted_to"`   // "2006-01-02", optional
}

// ToJob validates the request and converts it into a screening job.
func (r ScreeningRequest) ToJob() (usecase.ScreeningJob, error) {
	job := usecase.ScreeningJob{
		Department:    r.Department,
		Prompt:        r.Prompt,
		MatchKeywords: r.MatchKeywords,
	}
	if r.SubmittedFrom != "" {
		t, err := time.Parse("2006-01-02", r.SubmittedFrom)
		if err != nil {
			return job, fmt.Errorf("invalid submitted_from: %w", err)
		}
		job.SubmittedFrom = &t
	}
	if r.SubmittedTo != "" {
		t, err := time.Parse("2006-01-02", r.SubmittedTo)
		if err != nil {
			return job, fmt.Errorf("invalid submitted_to: %w", err)
		}
		job.SubmittedTo = &t
	}
	return job, nil
}
