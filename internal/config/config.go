// Package config loads application configuration from defaults, an
// optional YAML file and LESSONSTREAM_ environment variables, in that order
// of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/lessonstream/internal/cache"
	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/grading"
	"github.com/abhisek/lessonstream/internal/llm"
	"github.com/abhisek/lessonstream/internal/session"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	LLM        llm.Config       `yaml:"llm"`
	Curriculum CurriculumConfig `yaml:"curriculum"`
	Grading    GradingConfig    `yaml:"grading"`
	Store      StoreConfig      `yaml:"store"`
	Cache      CacheConfig      `yaml:"cache"`
	Log        LogConfig        `yaml:"log"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CurriculumConfig holds curriculum generation settings.
type CurriculumConfig struct {
	Sections         int     `yaml:"sections"`
	TokensPerSection int     `yaml:"tokens_per_section"`
	Temperature      float64 `yaml:"temperature"`
}

// GradingConfig holds answer checking settings.
type GradingConfig struct {
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// StoreConfig holds the audit event store settings. An empty Path means
// the default location under the XDG data directory.
type StoreConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// CacheConfig holds Redis settings. Caching is off when URL is empty.
type CacheConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// TracingConfig holds OpenTelemetry settings. With no Endpoint spans are
// written to stdout.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cur := curriculum.DefaultConfig()
	gr := grading.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			AllowedOrigins:  []string{"http://localhost:3000"},
			SessionTTL:      time.Hour,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: llm.DefaultConfig(),
		Curriculum: CurriculumConfig{
			Sections:         curriculum.DefaultSections,
			TokensPerSection: cur.TokensPerSection,
			Temperature:      cur.Temperature,
		},
		Grading: GradingConfig{
			MaxTokens:   gr.MaxTokens,
			Temperature: gr.Temperature,
			Timeout:     session.DefaultConfig().GradeTimeout,
			CacheTTL:    gr.CacheTTL,
		},
		Cache: CacheConfig{Prefix: "lessonstream:"},
		Log:   LogConfig{Mode: "dev", Level: "info"},
		Tracing: TracingConfig{
			ServiceName: "lessonstream",
			SampleRatio: 1,
		},
	}
}

// Load builds the configuration. path may be empty to skip the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.LLM.Discover()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = envStr("LESSONSTREAM_HOST", c.Server.Host)
	c.Server.Port = envInt("LESSONSTREAM_PORT", c.Server.Port)
	if v := os.Getenv("LESSONSTREAM_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	c.Server.SessionTTL = envDuration("LESSONSTREAM_SESSION_TTL", c.Server.SessionTTL)

	c.LLM.ApplyEnv()

	c.Curriculum.Sections = envInt("LESSONSTREAM_SECTIONS", c.Curriculum.Sections)
	c.Curriculum.TokensPerSection = envInt("LESSONSTREAM_TOKENS_PER_SECTION", c.Curriculum.TokensPerSection)

	c.Grading.Timeout = envDuration("LESSONSTREAM_GRADE_TIMEOUT", c.Grading.Timeout)
	c.Grading.CacheTTL = envDuration("LESSONSTREAM_CACHE_TTL", c.Grading.CacheTTL)

	c.Store.Path = envStr("LESSONSTREAM_DB", c.Store.Path)
	c.Store.Disabled = envBool("LESSONSTREAM_STORE_DISABLED", c.Store.Disabled)

	c.Cache.URL = envStr("LESSONSTREAM_CACHE_URL", c.Cache.URL)

	c.Log.Mode = envStr("LESSONSTREAM_LOG_MODE", c.Log.Mode)
	c.Log.Level = envStr("LESSONSTREAM_LOG_LEVEL", c.Log.Level)

	c.Tracing.Enabled = envBool("LESSONSTREAM_TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.Endpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.ServiceName = envStr("OTEL_SERVICE_NAME", c.Tracing.ServiceName)
}

// Validate checks ranges and that the selected LLM provider is usable.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Curriculum.Sections < 1 || c.Curriculum.Sections > curriculum.MaxSections {
		return fmt.Errorf("curriculum sections must be between 1 and %d, got %d", curriculum.MaxSections, c.Curriculum.Sections)
	}
	if c.Curriculum.TokensPerSection < 1 {
		return fmt.Errorf("tokens per section must be positive, got %d", c.Curriculum.TokensPerSection)
	}
	if c.Grading.Timeout <= 0 {
		return fmt.Errorf("grading timeout must be positive, got %s", c.Grading.Timeout)
	}
	if c.Cache.URL != "" {
		if _, err := cache.ParseURL(c.Cache.URL); err != nil {
			return err
		}
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be within [0, 1], got %v", c.Tracing.SampleRatio)
	}
	return nil
}

// CurriculumDecoder returns the decoder settings.
func (c *Config) CurriculumDecoder() curriculum.Config {
	return curriculum.Config{
		TokensPerSection: c.Curriculum.TokensPerSection,
		Temperature:      c.Curriculum.Temperature,
	}
}

// GradingService returns the grading service settings.
func (c *Config) GradingService() grading.Config {
	return grading.Config{
		MaxTokens:   c.Grading.MaxTokens,
		Temperature: c.Grading.Temperature,
		CacheTTL:    c.Grading.CacheTTL,
	}
}

// Session returns controller settings for a curriculum of sections
// sections, or the configured default when sections is 0.
func (c *Config) Session(sections int) session.Config {
	if sections <= 0 {
		sections = c.Curriculum.Sections
	}
	return session.Config{
		TotalSections: sections,
		GradeTimeout:  c.Grading.Timeout,
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
