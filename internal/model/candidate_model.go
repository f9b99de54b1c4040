package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Candidate statuses touched by this pipeline. Candidates enter as pending
// and screening may promote them to pending_interview; nothing here ever
// deletes a candidate.
const (
	StatusPending          = "pending"
	StatusPendingInterview = "pending_interview"
)

// SkillLevel is the closed proficiency vocabulary.
type SkillLevel string

const (
	LevelUnderstanding SkillLevel = "understanding"
	LevelFamiliar      SkillLevel = "familiar"
	LevelProficient    SkillLevel = "proficient"
	LevelSkilled       SkillLevel = "skilled"
	LevelMaster        SkillLevel = "master"
)

var skillLevelDisplay = map[SkillLevel]string{
	LevelUnderstanding: "了解",
	LevelFamiliar:      "熟悉",
	LevelProficient:    "熟练",
	LevelSkilled:       "擅长",
	LevelMaster:        "精通",
}

// Display returns the localized label for a level.
func (l SkillLevel) Display() string {
	if d, ok := skillLevelDisplay[l]; ok {
		return d
	}
	return skillLevelDisplay[LevelUnderstanding]
}

// ParseSkillLevel validates a free-form level at the parse boundary.
// Unrecognized values normalize to understanding instead of propagating.
func ParseSkillLevel(s string) SkillLevel {
	switch SkillLevel(s) {
	case LevelUnderstanding, LevelFamiliar, LevelProficient, LevelSkilled, LevelMaster:
		return SkillLevel(s)
	}
	for level, display := range skillLevelDisplay {
		if s == display {
			return level
		}
	}
	return LevelUnderstanding
}

type Skill struct {
	Name  string     `json:"name"`
	Level SkillLevel `json:"level"`
}

type Experience struct {
	Company     string `json:"company"`
	Role        string `json:"role"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description"`
}

type SkillList []Skill

type ExperienceList []Experience

type StringList []string

func (l SkillList) Value() (driver.Value, error)      { return jsonbValue(l) }
func (l *SkillList) Scan(src any) error               { return jsonbScan(src, l) }
func (l ExperienceList) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *ExperienceList) Scan(src any) error          { return jsonbScan(src, l) }
func (l StringList) Value() (driver.Value, error)     { return jsonbValue(l) }
func (l *StringList) Scan(src any) error              { return jsonbScan(src, l) }

func jsonbValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonbScan(src any, dst any) error {
	if src == nil {
		return nil
	}
	switch s := src.(type) {
	case []byte:
		return json.Unmarshal(s, dst)
	case string:
		return json.Unmarshal([]byte(s), dst)
	}
	return fmt.Errorf("unsupported jsonb source type %T", src)
}

type Candidate struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name           string           `gorm:"type:varchar(255)" json:"name"`
	Email          string           `gorm:"type:varchar(255)" json:"email"`
	Phone          string           `gorm:"type:varchar(50)" json:"phone"`
	Department     string           `gorm:"type:varchar(255);index" json:"department"`
	Major          string           `gorm:"type:varchar(255)" json:"major"`
	ClassName      string           `gorm:"type:varchar(255)" json:"class_name"`
	GPA            float64          `gorm:"type:float" json:"gpa"`
	GraduationYear int              `json:"graduation_year"`
	Summary        string           `gorm:"type:text" json:"summary"`
	Skills         SkillList        `gorm:"type:jsonb" json:"skills"`
	Experiences    ExperienceList   `gorm:"type:jsonb" json:"experiences"`
	Tags           StringList       `gorm:"type:jsonb" json:"tags"`
	AIScore        int              `json:"ai_score"` // 60-100 once scored, 0 before
	Status         string           `gorm:"type:varchar(50);index" json:"status"`
	Source         string           `gorm:"type:varchar(50)" json:"source"` // "mailbox" or "upload"
	SubmittedAt    time.Time        `gorm:"index" json:"submitted_at"`
	Embedding      *pgvector.Vector `gorm:"type:vector(3072)" json:"-"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CandidatePatch carries the fields screening writes back. Nil fields are
// left untouched.
type CandidatePatch struct {
	AIScore *int
	Status  *string
	Tags    *StringList
}

// CandidateFilter selects candidates for a screening run. The submission
// window is inclusive on both day boundaries.
type CandidateFilter struct {
	Status        string
	Department    string
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
}
