package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/fadilmartias/resume-screener/internal/apperrors"
	"github.com/fadilmartias/resume-screener/internal/config"
	"github.com/fadilmartias/resume-screener/internal/model"
	"github.com/fadilmartias/resume-screener/internal/normalize"
	"github.com/fadilmartias/resume-screener/internal/util"
)

// Text documents are capped before being embedded in the extraction prompt.
const maxPromptTextChars = 16000

// Fallback returned when a scoring call fails for any reason other than a
// deadline expiry.
const (
	FallbackScore  = 75
	FallbackReason = "needs manual review"
)

var FallbackTags = []string{"待考察"}

// ScreeningScore is the result of scoring one candidate against a
// screening prompt.
type ScreeningScore struct {
	Score      int      `json:"score"`
	Tags       []string `json:"tags"`
	Reason     string   `json:"reason"`
	MatchScore int      `json:"match_score"` // deterministic keyword coverage, not model output
}

type AIServiceInterface interface {
	// ExtractProfile parses a structured candidate out of a normalized
	// document. A nil candidate with nil error means the model response
	// was unusable and the document needs manual review.
	ExtractProfile(ctx context.Context, doc normalize.Document) (*model.Candidate, error)
	// ScoreCandidate runs the screening completion for one candidate and
	// attaches the deterministic keyword match score.
	ScoreCandidate(ctx context.Context, c *model.Candidate, screeningPrompt, matchKeywords string) (*ScreeningScore, error)
}

type AIService struct {
	cfg    *config.AIConfig
	client *resty.Client
	logger *zap.Logger
}

func NewAIService(cfg *config.AIConfig, logger *zap.Logger) *AIService {
	return &AIService{
		cfg:    cfg,
		client: resty.New(),
		logger: logger,
	}
}

const extractionSystemPrompt = "You are an HR assistant that extracts structured candidate profiles from resumes."

func extractionPrompt() string {
	return `Extract the candidate profile from the resume below.

Return your answer STRICTLY as a single JSON object with exactly these keys:
{
	"name": "<candidate name>",
	"email": "<email or empty string>",
	"phone": "<phone or empty string>",
	"department": "<department / target department>",
	"major": "<major>",
	"className": "<class name>",
	"gpa": <number, 0 if unknown>,
	"graduationYear": <number, 0 if unknown>,
	"aiScore": <number 60-100, your overall impression of the resume>,
	"tags": ["<short tag>", ...],
	"experiences": [{"company": "", "role": "", "start": "", "end": "", "description": ""}, ...],
	"skills": [{"name": "", "level": "<one of: understanding, familiar, proficient, skilled, master>"}, ...],
	"summary": "<2-3 sentence summary>"
}

Sections labeled differently from "skills" (for example "技能", "专业能力", "tech stack", "competencies") must still be mapped onto the skills field by meaning. When a proficiency level is not stated, infer one, but only ever use the five allowed level values.`
}

func (s *AIService) ExtractProfile(ctx context.Context, doc normalize.Document) (*model.Candidate, error) {
	var userContent any
	switch doc.Kind {
	case normalize.KindImage:
		dataURI := fmt.Sprintf("data:%s;base64,%s", doc.MimeType, base64.StdEncoding.EncodeToString(doc.Image))
		userContent = []map[string]any{
			{"type": "text", "text": extractionPrompt()},
			{"type": "image_url", "image_url": map[string]string{"url": dataURI}},
		}
	case normalize.KindText:
		text := doc.Text
		if runes := []rune(text); len(runes) > maxPromptTextChars {
			text = string(runes[:maxPromptTextChars])
		}
		userContent = extractionPrompt() + "\n\nResume:\n" + text
	default:
		return nil, fmt.Errorf("document has no content")
	}

	content, err := s.complete(ctx, extractionSystemPrompt, userContent)
	if err != nil {
		return nil, err
	}

	obj, ok := util.FirstJSONObject(content)
	if !ok || !gjson.Valid(obj) {
		s.logger.Warn("unparseable extraction response", zap.String("content", truncate(content, 200)))
		return nil, nil
	}

	c := &model.Candidate{
		Name:           gjson.Get(obj, "name").String(),
		Email:          gjson.Get(obj, "email").String(),
		Phone:          gjson.Get(obj, "phone").String(),
		Department:     gjson.Get(obj, "department").String(),
		Major:          gjson.Get(obj, "major").String(),
		ClassName:      gjson.Get(obj, "className").String(),
		GPA:            gjson.Get(obj, "gpa").Float(),
		GraduationYear: int(gjson.Get(obj, "graduationYear").Int()),
		Summary:        gjson.Get(obj, "summary").String(),
		AIScore:        int(gjson.Get(obj, "aiScore").Int()),
	}
	if c.AIScore < 60 {
		c.AIScore = 60
	}
	if c.AIScore > 100 {
		c.AIScore = 100
	}
	for _, tag := range gjson.Get(obj, "tags").Array() {
		if t := tag.String(); t != "" {
			c.Tags = append(c.Tags, t)
		}
	}
	for _, exp := range gjson.Get(obj, "experiences").Array() {
		c.Experiences = append(c.Experiences, model.Experience{
			Company:     exp.Get("company").String(),
			Role:        exp.Get("role").String(),
			Start:       exp.Get("start").String(),
			End:         exp.Get("end").String(),
			Description: exp.Get("description").String(),
		})
	}
	for _, skill := range gjson.Get(obj, "skills").Array() {
		name := skill.Get("name").String()
		if name == "" {
			continue
		}
		c.Skills = append(c.Skills, model.Skill{
			Name:  name,
			Level: model.ParseSkillLevel(skill.Get("level").String()),
		})
	}
	return c, nil
}

const scoringSystemPrompt = `You are an HR screening assistant. Score the candidate between 60 and 100 against the screening requirements, pick at least one tag (suggested vocabulary: "优秀", "潜力", "有经验", "匹配度高", "待考察") and explain briefly.

Return your answer STRICTLY as a single JSON object:
{"score": <number 60-100>, "tags": ["<tag>", ...], "reason": "<brief explanation>"}`

// ScoreCandidate runs one scoring completion under a hard deadline. Expiry
// surfaces as a timeout for this invocation only; every other failure
// degrades to the documented fallback result. The heuristic match score is
// computed locally and never depends on the model call succeeding.
func (s *AIService) ScoreCandidate(ctx context.Context, c *model.Candidate, screeningPrompt, matchKeywords string) (*ScreeningScore, error) {
	matchScore := MatchScore(c, matchKeywords)

	profile := map[string]any{
		"name":           c.Name,
		"department":     c.Department,
		"major":          c.Major,
		"gpa":            c.GPA,
		"graduationYear": c.GraduationYear,
		"summary":        c.Summary,
		"skills":         c.Skills,
		"experiences":    c.Experiences,
		"tags":           c.Tags,
	}
	prompt := fmt.Sprintf(`Screening requirements:
%s

Candidate profile:
%v`, screeningPrompt, jsonish(profile))

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	content, err := s.complete(callCtx, scoringSystemPrompt, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, apperrors.Timeout("scoring call exceeded deadline")
		}
		s.logger.Warn("scoring call failed, using fallback", zap.Error(err))
		return fallbackScore(matchScore), nil
	}

	obj, ok := util.FirstJSONObject(content)
	if !ok || !gjson.Valid(obj) {
		s.logger.Warn("unparseable scoring response, using fallback", zap.String("content", truncate(content, 200)))
		return fallbackScore(matchScore), nil
	}

	result := &ScreeningScore{
		Score:      int(gjson.Get(obj, "score").Int()),
		Reason:     gjson.Get(obj, "reason").String(),
		MatchScore: matchScore,
	}
	for _, tag := range gjson.Get(obj, "tags").Array() {
		if t := tag.String(); t != "" {
			result.Tags = append(result.Tags, t)
		}
	}
	if result.Score < 60 {
		result.Score = 60
	}
	if result.Score > 100 {
		result.Score = 100
	}
	if len(result.Tags) == 0 {
		result.Tags = append(result.Tags, FallbackTags...)
	}
	return result, nil
}

func (s *AIService) complete(ctx context.Context, system string, user any) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"model": s.cfg.Model,
			"messages": []map[string]any{
				{"role": "system", "content": system},
				{"role": "user", "content": user},
			},
			"temperature": 0.1,
			"max_tokens":  2048,
		}).
		Post(strings.TrimSuffix(s.cfg.BaseURL, "/") + "/chat/completions")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	content := gjson.Get(resp.String(), "choices.0.message.content").String()
	if content == "" {
		return "", fmt.Errorf("empty completion response")
	}
	return content, nil
}

func fallbackScore(matchScore int) *ScreeningScore {
	return &ScreeningScore{
		Score:      FallbackScore,
		Tags:       append([]string(nil), FallbackTags...),
		Reason:     FallbackReason,
		MatchScore: matchScore,
	}
}

func jsonish(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
