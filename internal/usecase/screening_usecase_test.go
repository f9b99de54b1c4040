package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/fadilmartias/resume-screener/internal/apperrors"
	"github.com/fadilmartias/resume-screener/internal/config"
	"github.com/fadilmartias/resume-screener/internal/model"
	"github.com/fadilmartias/resume-screener/internal/normalize"
	"github.com/fadilmartias/resume-screener/internal/service"
)

type fakeStore struct {
	candidates []model.Candidate
	updates    map[string]model.CandidatePatch
	logs       []model.ActivityLog
	getCalls   int
	updateErr  map[string]error
}

func newFakeStore(candidates ...model.Candidate) *fakeStore {
	return &fakeStore{
		candidates: candidates,
		updates:    map[string]model.CandidatePatch{},
		updateErr:  map[string]error{},
	}
}

func (s *fakeStore) GetCandidates(filter model.CandidateFilter) ([]model.Candidate, error) {
	s.getCalls++
	var out []model.Candidate
	for _, c := range s.candidates {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Department != "" && c.Department != filter.Department {
			continue
		}
		if filter.SubmittedFrom != nil && c.SubmittedAt.Before(*filter.SubmittedFrom) {
			continue
		}
		if filter.SubmittedTo != nil && c.SubmittedAt.After(*filter.SubmittedTo) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *fakeStore) UpdateCandidate(id string, patch model.CandidatePatch) (*model.Candidate, error) {
	if err := s.updateErr[id]; err != nil {
		return nil, err
	}
	s.updates[id] = patch
	for i := range s.candidates {
		if s.candidates[i].ID.String() == id {
			return &s.candidates[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (s *fakeStore) CreateCandidate(c *model.Candidate) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.candidates = append(s.candidates, *c)
	return nil
}

func (s *fakeStore) SetEmbedding(string, pgvector.Vector) error { return nil }

func (s *fakeStore) AppendActivityLog(entry *model.ActivityLog) error {
	s.logs = append(s.logs, *entry)
	return nil
}

type stubAI struct {
	scoreFn   func(c *model.Candidate) (*service.ScreeningScore, error)
	extractFn func(doc normalize.Document) (*model.Candidate, error)
}

func (a *stubAI) ScoreCandidate(_ context.Context, c *model.Candidate, _, _ string) (*service.ScreeningScore, error) {
	return a.scoreFn(c)
}

func (a *stubAI) ExtractProfile(_ context.Context, doc normalize.Document) (*model.Candidate, error) {
	return a.extractFn(doc)
}

func pendingCandidate(name, department string) model.Candidate {
	return model.Candidate{
		ID:          uuid.New(),
		Name:        name,
		Department:  department,
		Status:      model.StatusPending,
		SubmittedAt: time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC),
	}
}

func completeAIConfig() *config.AIConfig {
	return &config.AIConfig{BaseURL: "http://ai", APIKey: "k", Model: "m", CallTimeout: time.Second}
}

func TestScreeningRefusesWithoutAIConfig(t *testing.T) {
	store := newFakeStore(pendingCandidate("a", "eng"))
	uc := NewScreeningUsecase(store, store, &stubAI{}, &config.AIConfig{}, zap.NewNop())

	_, err := uc.Run(context.Background(), ScreeningJob{})
	if !apperrors.IsKind(err, apperrors.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if store.getCalls != 0 {
		t.Errorf("no candidate must be touched before the precondition check")
	}
}

// Every submitted candidate gets exactly one result; screened + failed
// always equals the number submitted, whatever mixture of failures the AI
// produces.
func TestScreeningCountsInvariant(t *testing.T) {
	var candidates []model.Candidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates, pendingCandidate(fmt.Sprintf("c%d", i), "eng"))
	}
	store := newFakeStore(candidates...)

	failFor := map[string]bool{candidates[1].Name: true, candidates[3].Name: true}
	ai := &stubAI{scoreFn: func(c *model.Candidate) (*service.ScreeningScore, error) {
		if failFor[c.Name] {
			return nil, apperrors.Timeout("scoring call exceeded deadline")
		}
		return &service.ScreeningScore{Score: 80, Tags: []string{"优秀"}, MatchScore: 50}, nil
	}}

	uc := NewScreeningUsecase(store, store, ai, completeAIConfig(), zap.NewNop())
	report, err := uc.Run(context.Background(), ScreeningJob{Prompt: "p", MatchKeywords: "go,python"})
	if err != nil {
		t.Fatal(err)
	}

	if report.ScreenedCount != 3 || report.FailedCount != 2 {
		t.Errorf("counts = %d/%d, want 3/2", report.ScreenedCount, report.FailedCount)
	}
	if report.ScreenedCount+report.FailedCount != len(candidates) {
		t.Errorf("screened+failed = %d, want %d", report.ScreenedCount+report.FailedCount, len(candidates))
	}
	if len(report.Results) != len(candidates) {
		t.Errorf("results = %d, want exactly one per candidate", len(report.Results))
	}

	failures := 0
	for _, r := range report.Results {
		if r.Error != "" {
			failures++
		}
	}
	if failures != 2 {
		t.Errorf("failed results = %d, want 2", failures)
	}
}

func TestScreeningAppliesScoreAndTags(t *testing.T) {
	high := pendingCandidate("high", "eng")
	low := pendingCandidate("low", "eng")
	store := newFakeStore(high, low)

	ai := &stubAI{scoreFn: func(c *model.Candidate) (*service.ScreeningScore, error) {
		if c.Name == "high" {
			return &service.ScreeningScore{Score: 90, Tags: []string{"优秀"}, MatchScore: 100}, nil
		}
		return &service.ScreeningScore{Score: 62, Tags: []string{"待考察"}, MatchScore: 0}, nil
	}}

	uc := NewScreeningUsecase(store, store, ai, completeAIConfig(), zap.NewNop())
	_, err := uc.Run(context.Background(), ScreeningJob{MatchKeywords: "go"})
	if err != nil {
		t.Fatal(err)
	}

	highPatch := store.updates[high.ID.String()]
	if *highPatch.Status != model.StatusPendingInterview || *highPatch.AIScore != 90 {
		t.Errorf("high patch = %+v", highPatch)
	}
	if got := (*highPatch.Tags)[len(*highPatch.Tags)-1]; got != "匹配度: 100%" {
		t.Errorf("match tag = %q", got)
	}

	lowPatch := store.updates[low.ID.String()]
	if *lowPatch.Status != model.StatusPending {
		t.Errorf("low status = %q, want pending", *lowPatch.Status)
	}
}

func TestScreeningNoMatchTagWithoutKeywords(t *testing.T) {
	c := pendingCandidate("a", "eng")
	store := newFakeStore(c)
	ai := &stubAI{scoreFn: func(*model.Candidate) (*service.ScreeningScore, error) {
		return &service.ScreeningScore{Score: 80, Tags: []string{"潜力"}}, nil
	}}

	uc := NewScreeningUsecase(store, store, ai, completeAIConfig(), zap.NewNop())
	if _, err := uc.Run(context.Background(), ScreeningJob{}); err != nil {
		t.Fatal(err)
	}
	for _, tag := range *store.updates[c.ID.String()].Tags {
		if tag == "匹配度: 0%" {
			t.Errorf("match tag must not be appended without keywords")
		}
	}
}

func TestScreeningStoreFailureIsolated(t *testing.T) {
	a := pendingCandidate("a", "eng")
	b := pendingCandidate("b", "eng")
	store := newFakeStore(a, b)
	store.updateErr[a.ID.String()] = errors.New("write refused")

	ai := &stubAI{scoreFn: func(*model.Candidate) (*service.ScreeningScore, error) {
		return &service.ScreeningScore{Score: 80, Tags: []string{"优秀"}}, nil
	}}

	uc := NewScreeningUsecase(store, store, ai, completeAIConfig(), zap.NewNop())
	report, err := uc.Run(context.Background(), ScreeningJob{})
	if err != nil {
		t.Fatal(err)
	}
	if report.ScreenedCount != 1 || report.FailedCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", report.ScreenedCount, report.FailedCount)
	}
}

func TestScreeningAllFailed(t *testing.T) {
	store := newFakeStore(pendingCandidate("a", "eng"), pendingCandidate("b", "eng"))
	ai := &stubAI{scoreFn: func(*model.Candidate) (*service.ScreeningScore, error) {
		return nil, errors.New("endpoint unreachable")
	}}

	uc := NewScreeningUsecase(store, store, ai, completeAIConfig(), zap.NewNop())
	report, err := uc.Run(context.Background(), ScreeningJob{})
	if err == nil {
		t.Fatal("expected job failure when every candidate failed")
	}
	if report == nil || report.FailedCount != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestScreeningEmptySelection(t *testing.T) {
	store := newFakeStore() // nothing pending
	uc := NewScreeningUsecase(store, store, &stubAI{}, completeAIConfig(), zap.NewNop())
	if _, err := uc.Run(context.Background(), ScreeningJob{}); err == nil {
		t.Fatal("expected error for empty selection")
	}
}

func TestScreeningFiltersAndAudit(t *testing.T) {
	eng := pendingCandidate("eng-person", "engineering")
	sales := pendingCandidate("sales-person", "sales")
	screened := pendingCandidate("done", "engineering")
	screened.Status = model.StatusPendingInterview
	store := newFakeStore(eng, sales, screened)

	var scored []string
	ai := &stubAI{scoreFn: func(c *model.Candidate) (*service.ScreeningScore, error) {
		scored = append(scored, c.Name)
		return &service.ScreeningScore{Score: 70, Tags: []string{"待考察"}}, nil
	}}

	uc := NewScreeningUsecase(store, store, ai, completeAIConfig(), zap.NewNop())
	_, err := uc.Run(context.Background(), ScreeningJob{Department: "engineering"})
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != 1 || scored[0] != "eng-person" {
		t.Errorf("scored = %v, want only the pending engineering candidate", scored)
	}
	if len(store.logs) != 1 || store.logs[0].Action != "screening_job" {
		t.Errorf("expected one audit entry, got %+v", store.logs)
	}
}

func TestScreeningDateWindowInclusive(t *testing.T) {
	inside := pendingCandidate("inside", "")
	inside.SubmittedAt = time.Date(2025, 4, 10, 23, 30, 0, 0, time.UTC)
	outside := pendingCandidate("outside", "")
	outside.SubmittedAt = time.Date(2025, 4, 11, 0, 30, 0, 0, time.UTC)
	store := newFakeStore(inside, outside)

	var scored []string
	ai := &stubAI{scoreFn: func(c *model.Candidate) (*service.ScreeningScore, error) {
		scored = append(scored, c.Name)
		return &service.ScreeningScore{Score: 70, Tags: []string{"待考察"}}, nil
	}}

	from := time.Date(2025, 4, 10, 15, 4, 5, 0, time.UTC) // any time that day
	to := from
	uc := NewScreeningUsecase(store, store, ai, completeAIConfig(), zap.NewNop())
	_, err := uc.Run(context.Background(), ScreeningJob{SubmittedFrom: &from, SubmittedTo: &to})
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != 1 || scored[0] != "inside" {
		t.Errorf("scored = %v, want only the candidate inside the day window", scored)
	}
}
