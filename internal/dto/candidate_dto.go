package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/fadilmartias/resume-screener/internal/model"
)

type SkillDTO struct {
	Name         string `json:"name"`
	Level        string `json:"level"`
	LevelDisplay string `json:"level_display"`
}

type CandidateDTO struct {
	ID             uuid.UUID            `json:"id"`
	Name           string               `json:"name"`
	Email          string               `json:"email"`
	Phone          string               `json:"phone"`
	Department     string               `json:"department"`
	Major          string               `json:"major"`
	ClassName      string               `json:"class_name"`
	GPA            float64              `json:"gpa"`
	GraduationYear int                  `json:"graduation_year"`
	Summary        string               `json:"summary"`
	Skills         []SkillDTO           `json:"skills"`
	Experiences    model.ExperienceList `json:"experiences"`
	Tags           model.StringList     `json:"tags"`
	AIScore        int                  `json:"ai_score"`
	Status         string               `json:"status"`
	Source         string               `json:"source"`
	SubmittedAt    time.Time            `json:"submitted_at"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func NewCandidateDTO(c *model.Candidate) CandidateDTO {
	skills := make([]SkillDTO, 0, len(c.Skills))
	for _, s := range c.Skills {
		skills = append(skills, SkillDTO{
			Name:         s.Name,
			Level:        string(s.Level),
			LevelDisplay: s.Level.Display(),
		})
	}
	return CandidateDTO{
		ID:             c.ID,
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		Department:     c.Department,
		Major:          c.Major,
		ClassName:      c.ClassName,
		GPA:            c.GPA,
		GraduationYear: c.GraduationYear,
		Summary:        c.Summary,
		Skills:         skills,
		Experiences:    c.Experiences,
		Tags:           c.Tags,
		AIScore:        c.AIScore,
		Status:         c.Status,
		Source:         c.Source,
		SubmittedAt:    c.SubmittedAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func NewCandidateDTOs(candidates []model.Candidate) []CandidateDTO {
	out := make([]CandidateDTO, 0, len(candidates))
	for i := range candidates {
		out = append(out, NewCandidateDTO(&candidates[i]))
	}
	return out
}
