package usecase

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/fadilmartias/resume-screener/internal/apperrors"
	"github.com/fadilmartias/resume-screener/internal/model"
	"github.com/fadilmartias/resume-screener/internal/service"
)

// CandidateQueryStore is the read side of the store collaborator.
type CandidateQueryStore interface {
	GetCandidatesPage(page, pageSize int) ([]model.Candidate, int64, error)
	FindCandidateByID(id string) (*model.Candidate, error)
	SearchSimilar(embedding pgvector.Vector, topK int) ([]model.Candidate, error)
}

type CandidateUsecase struct {
	store    CandidateQueryStore
	embedder service.EmbeddingServiceInterface // nil when not configured
}

func NewCandidateUsecase(store CandidateQueryStore, embedder service.EmbeddingServiceInterface) *CandidateUsecase {
	return &CandidateUsecase{store: store, embedder: embedder}
}

func (uc *CandidateUsecase) GetCandidates(page, pageSize int) ([]model.Candidate, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return uc.store.GetCandidatesPage(page, pageSize)
}

func (uc *CandidateUsecase) GetCandidate(id string) (*model.Candidate, error) {
	return uc.store.FindCandidateByID(id)
}

// SimilarCandidates returns the candidates closest in embedding space to
// the given one. The stored vector is reused when present; otherwise the
// summary is embedded on the fly.
func (uc *CandidateUsecase) SimilarCandidates(ctx context.Context, id string, topK int) ([]model.Candidate, error) {
	c, err := uc.store.FindCandidateByID(id)
	if err != nil {
		return nil, err
	}
	if topK < 1 || topK > 50 {
		topK = 5
	}

	var vec pgvector.Vector
	if c.Embedding != nil {
		vec = *c.Embedding
	} else {
		if uc.embedder == nil {
			return nil, apperrors.Configuration("similarity search requires an embedding provider (GEMINI_API_KEY)")
		}
		values, err := uc.embedder.GenerateEmbedding(ctx, c.Summary)
		if err != nil {
			return nil, err
		}
		vec = pgvector.NewVector(values)
	}

	similar, err := uc.store.SearchSimilar(vec, topK+1)
	if err != nil {
		return nil, err
	}
	// the candidate itself is its own nearest neighbor
	out := make([]model.Candidate, 0, topK)
	for _, s := range similar {
		if s.ID == c.ID {
			continue
		}
		out = append(out, s)
		if len(out) == topK {
			break
		}
	}
	return out, nil
}
