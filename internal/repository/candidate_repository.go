package repository

import (
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/fadilmartias/resume-screener/internal/model"
)

type CandidateRepository struct {
	db *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{db}
}

func (r *CandidateRepository) CreateCandidate(c *model.Candidate) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return r.db.Create(c).Error
}

func (r *CandidateRepository) FindCandidateByID(id string) (*model.Candidate, error) {
	var c model.Candidate
	err := r.db.First(&c, "id = ?", id).Error
	return &c, err
}

func (r *CandidateRepository) GetCandidates(filter model.CandidateFilter) ([]model.Candidate, error) {
	q := r.db.Model(&model.Candidate{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Department != "" {
		q = q.Where("department = ?", filter.Department)
	}
	if filter.SubmittedFrom != nil {
		q = q.Where("submitted_at >= ?", *filter.SubmittedFrom)
	}
	if filter.SubmittedTo != nil {
		q = q.Where("submitted_at <= ?", *filter.SubmittedTo)
	}

	var candidates []model.Candidate
	err := q.Order("submitted_at DESC").Find(&candidates).Error
	return candidates, err
}

func (r *CandidateRepository) GetCandidatesPage(page, pageSize int) ([]model.Candidate, int64, error) {
	var total int64
	if err := r.db.Model(&model.Candidate{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var candidates []model.Candidate
	err := r.db.Order("submitted_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&candidates).Error
	return candidates, total, err
}

// UpdateCandidate applies a partial patch and returns the updated row.
func (r *CandidateRepository) UpdateCandidate(id string, patch model.CandidatePatch) (*model.Candidate, error) {
	updates := map[string]any{}
	if patch.AIScore != nil {
		updates["ai_score"] = *patch.AIScore
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Tags != nil {
		updates["tags"] = *patch.Tags
	}
	if len(updates) > 0 {
		if err := r.db.Model(&model.Candidate{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return r.FindCandidateByID(id)
}

func (r *CandidateRepository) SetEmbedding(id string, embedding pgvector.Vector) error {
	return r.db.Model(&model.Candidate{}).Where("id = ?", id).
		Update("embedding", embedding).Error
}

// SearchSimilar orders candidates by vector distance to the given embedding.
func (r *CandidateRepository) SearchSimilar(embedding pgvector.Vector, topK int) ([]model.Candidate, error) {
	var candidates []model.Candidate

	err := r.db.Raw(`
        SELECT * FROM candidates
        WHERE embedding IS NOT NULL
        ORDER BY embedding <-> ?
        LIMIT ?
    `, embedding, topK).Scan(&candidates).Error

	return candidates, err
}
