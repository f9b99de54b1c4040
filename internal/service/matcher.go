package service

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/fadilmartias/resume-screener/internal/model"
)

// SplitKeywords splits a keyword string on commas and spaces, both ASCII
// and full-width, dropping empty entries.
func SplitKeywords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', '，', ' ', '　', '\t', '\n', '\r':
			return true
		}
		return false
	})
}

// MatchScore is the deterministic keyword-coverage percentage for a
// candidate, 0-100. Each keyword counts at most once no matter how often
// it occurs in the candidate's text. An empty keyword list scores 0.
func MatchScore(c *model.Candidate, keywords string) int {
	kws := SplitKeywords(keywords)
	if len(kws) == 0 {
		return 0
	}

	searchable := buildSearchableText(c)
	matches := 0
	for _, kw := range kws {
		if strings.Contains(searchable, strings.ToLower(kw)) {
			matches++
		}
	}
	return int(math.Round(float64(matches) / float64(len(kws)) * 100))
}

func buildSearchableText(c *model.Candidate) string {
	parts := []string{
		c.Name,
		c.Department,
		c.Major,
		c.Summary,
		jsonText(c.Experiences),
		jsonText(c.Skills),
		strings.Join(c.Tags, " "),
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
