package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fadilmartias/resume-screener/internal/apperrors"
	"github.com/fadilmartias/resume-screener/internal/config"
	"github.com/fadilmartias/resume-screener/internal/model"
	"github.com/fadilmartias/resume-screener/internal/normalize"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testAIService(url string, timeout time.Duration) *AIService {
	return NewAIService(&config.AIConfig{
		BaseURL:     url,
		APIKey:      "test-key",
		Model:       "test-model",
		CallTimeout: timeout,
	}, zap.NewNop())
}

func TestScoreCandidateParsesResponse(t *testing.T) {
	srv := completionServer(t, "Here is my evaluation:\n{\"score\": 88, \"tags\": [\"优秀\", \"匹配度高\"], \"reason\": \"strong backend profile\"}")
	defer srv.Close()

	s := testAIService(srv.URL, time.Second)
	got, err := s.ScoreCandidate(context.Background(), matcherCandidate(), "backend role", "python,Java")
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 88 || got.Reason != "strong backend profile" {
		t.Errorf("unexpected result: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "优秀" {
		t.Errorf("unexpected tags: %v", got.Tags)
	}
	if got.MatchScore != 50 {
		t.Errorf("match score = %d, want 50", got.MatchScore)
	}
}

// A non-JSON model answer degrades to the documented fallback, not an error.
func TestScoreCandidateFallbackOnNonJSON(t *testing.T) {
	srv := completionServer(t, "I think the score is 85")
	defer srv.Close()

	s := testAIService(srv.URL, time.Second)
	got, err := s.ScoreCandidate(context.Background(), matcherCandidate(), "prompt", "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 75 || len(got.Tags) != 1 || got.Tags[0] != "待考察" {
		t.Errorf("expected fallback {75, [待考察]}, got %+v", got)
	}
	if got.Reason != FallbackReason {
		t.Errorf("reason = %q", got.Reason)
	}
}

func TestScoreCandidateFallbackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := testAIService(srv.URL, time.Second)
	got, err := s.ScoreCandidate(context.Background(), matcherCandidate(), "prompt", "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 75 {
		t.Errorf("expected fallback score 75, got %d", got.Score)
	}
}

func TestScoreCandidateClampsRange(t *testing.T) {
	srv := completionServer(t, `{"score": 240, "tags": ["优秀"], "reason": "x"}`)
	defer srv.Close()

	s := testAIService(srv.URL, time.Second)
	got, err := s.ScoreCandidate(context.Background(), matcherCandidate(), "prompt", "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 100 {
		t.Errorf("score = %d, want clamp to 100", got.Score)
	}
}

func TestScoreCandidateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	s := testAIService(srv.URL, 50*time.Millisecond)
	_, err := s.ScoreCandidate(context.Background(), matcherCandidate(), "prompt", "")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !apperrors.IsKind(err, apperrors.KindTimeout) {
		t.Errorf("expected timeout kind, got %v", err)
	}
}

func TestExtractProfileFromText(t *testing.T) {
	content := "```json\n" + `{
		"name": "Wang Fang", "email": "wf@example.com", "phone": "13800000000",
		"department": "Engineering", "major": "Software Engineering", "className": "SE-2101",
		"gpa": 3.7, "graduationYear": 2025, "aiScore": 82,
		"tags": ["潜力"],
		"experiences": [{"company": "Acme", "role": "Intern", "start": "2024-06", "end": "2024-09", "description": "built ETL jobs"}],
		"skills": [{"name": "Go", "level": "proficient"}, {"name": "Kubernetes", "level": "guru"}],
		"summary": "Solid junior backend engineer."
	}` + "\n```"
	srv := completionServer(t, content)
	defer srv.Close()

	s := testAIService(srv.URL, time.Second)
	got, err := s.ExtractProfile(context.Background(), normalize.TextDocument("resume text here"))
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a profile")
	}
	if got.Name != "Wang Fang" || got.GraduationYear != 2025 || got.AIScore != 82 {
		t.Errorf("unexpected profile: %+v", got)
	}
	if len(got.Skills) != 2 || got.Skills[0].Level != model.LevelProficient {
		t.Errorf("unexpected skills: %+v", got.Skills)
	}
	// unrecognized level normalizes instead of propagating
	if got.Skills[1].Level != model.LevelUnderstanding {
		t.Errorf("level = %q, want understanding", got.Skills[1].Level)
	}
	if len(got.Experiences) != 1 || got.Experiences[0].Company != "Acme" {
		t.Errorf("unexpected experiences: %+v", got.Experiences)
	}
}

// The extracted overall score obeys the same 60-100 bound as screening
// scores, whatever number the model puts in the answer.
func TestExtractProfileClampsAIScore(t *testing.T) {
	cases := []struct {
		raw, want int
	}{
		{300, 100},
		{10, 60},
		{82, 82},
	}
	for _, c := range cases {
		srv := completionServer(t, fmt.Sprintf(`{"name": "X", "aiScore": %d}`, c.raw))
		s := testAIService(srv.URL, time.Second)
		got, err := s.ExtractProfile(context.Background(), normalize.TextDocument("resume"))
		srv.Close()
		if err != nil {
			t.Fatal(err)
		}
		if got.AIScore != c.want {
			t.Errorf("aiScore %d extracted as %d, want %d", c.raw, got.AIScore, c.want)
		}
	}
}

// Oversized text documents are cut on a rune boundary, never mid-character.
func TestExtractProfileTruncatesOnRuneBoundary(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		resp := map[string]any{"choices": []map[string]any{
			{"message": map[string]any{"content": `{"name": "X"}`}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	s := testAIService(srv.URL, time.Second)
	long := strings.Repeat("简", maxPromptTextChars+7)
	if _, err := s.ExtractProfile(context.Background(), normalize.TextDocument(long)); err != nil {
		t.Fatal(err)
	}

	msgs := captured["messages"].([]any)
	content := msgs[1].(map[string]any)["content"].(string)
	if !utf8.ValidString(content) {
		t.Fatal("prompt contains a split rune")
	}
	resume := content[strings.Index(content, "Resume:\n")+len("Resume:\n"):]
	if got := utf8.RuneCountInString(resume); got != maxPromptTextChars {
		t.Errorf("resume text = %d runes, want %d", got, maxPromptTextChars)
	}
}

// An unusable model response means manual review, not a failure.
func TestExtractProfileReturnsNilOnGarbage(t *testing.T) {
	srv := completionServer(t, "I could not find any structured information, sorry.")
	defer srv.Close()

	s := testAIService(srv.URL, time.Second)
	got, err := s.ExtractProfile(context.Background(), normalize.TextDocument("resume text"))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil profile, got %+v", got)
	}
}

func TestExtractProfileFromImageUsesDataURI(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		resp := map[string]any{"choices": []map[string]any{
			{"message": map[string]any{"content": `{"name": "X"}`}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	s := testAIService(srv.URL, time.Second)
	_, err := s.ExtractProfile(context.Background(), normalize.ImageDocument([]byte{1, 2, 3}, "image/png"))
	if err != nil {
		t.Fatal(err)
	}

	msgs := captured["messages"].([]any)
	user := msgs[1].(map[string]any)
	parts := user["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected 2 content parts, got %d", len(parts))
	}
	imagePart := parts[1].(map[string]any)
	url := imagePart["image_url"].(map[string]any)["url"].(string)
	if want := "data:image/png;base64,AQID"; url != want {
		t.Errorf("data URI = %q, want %q", url, want)
	}
}
