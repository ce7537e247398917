package grading

import "time"

// Config holds grading settings.
type Config struct {
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns the grading defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   200,
		Temperature: 0,
		CacheTTL:    24 * time.Hour,
	}
}
