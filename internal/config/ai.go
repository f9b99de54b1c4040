package config

import (
	"os"
	"sync"
	"time"
)

// AIConfig points at an OpenAI-compatible chat/completions endpoint.
type AIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	CallTimeout time.Duration
}

var (
	aiConfig *AIConfig
	aiOnce   sync.Once
)

func LoadAIConfig() *AIConfig {
	aiOnce.Do(func() {
		timeout := 30 * time.Second
		if v := os.Getenv("AI_CALL_TIMEOUT"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				timeout = d
			}
		}
		aiConfig = &AIConfig{
			BaseURL:     os.Getenv("AI_BASE_URL"),
			APIKey:      os.Getenv("AI_API_KEY"),
			Model:       os.Getenv("AI_MODEL"),
			CallTimeout: timeout,
		}
	})
	return aiConfig
}

// Complete reports whether the scoring precondition (base URL, key, model)
// holds. Screening jobs refuse to start without it.
func (c *AIConfig) Complete() bool {
	return c.BaseURL != "" && c.APIKey != "" && c.Model != ""
}
