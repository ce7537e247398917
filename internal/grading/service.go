package grading

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/abhisek/lessonstream/internal/llm"
	"github.com/abhisek/lessonstream/internal/logger"
)

// ErrNoQuestion is returned for a request without a question.
var ErrNoQuestion = errors.New("grading: question is empty")

// Cache stores verdicts for repeated answers. Implementations report a miss
// with false and no error.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Service grades answers through an LLM provider.
type Service struct {
	provider llm.Provider
	cfg      Config
	cache    Cache
	log      *logger.Logger
	tracer   trace.Tracer
}

// NewService creates a grading service. log may be nil.
func NewService(provider llm.Provider, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	return &Service{
		provider: provider,
		cfg:      cfg,
		log:      log.Named("grading"),
		tracer:   otel.Tracer("github.com/abhisek/lessonstream/internal/grading"),
	}
}

// WithCache enables verdict caching. Cache failures are logged and
// otherwise ignored.
func (s *Service) WithCache(c Cache) *Service {
	s.cache = c
	return s
}

// Grade asks the model whether req.UserAnswer answers req.Question.
func (s *Service) Grade(ctx context.Context, req Request) (*Verdict, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrNoQuestion
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeGrading)
	ctx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(
		attribute.Bool("grading.multiple_choice", len(req.Choices) > 0),
	))
	defer span.End()

	key := CacheKey(req)
	if s.cache != nil {
		var cached Verdict
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		switch {
		case err != nil:
			s.log.Warn("verdict cache read failed", "error", err)
		case hit:
			span.SetAttributes(attribute.Bool("grading.cached", true), attribute.Bool("grading.correct", cached.IsCorrect))
			return &cached, nil
		}
	}

	resp, err := s.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Messages:    llm.UserMessage(userPrompt(req)),
		Schema:      VerdictSchema,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("grade answer: %w", err)
	}

	var v Verdict
	if err := json.Unmarshal(resp.Content, &v); err != nil {
		return nil, fmt.Errorf("parse verdict: %w", err)
	}
	v.Explanation = strings.TrimSpace(v.Explanation)
	span.SetAttributes(attribute.Bool("grading.cached", false), attribute.Bool("grading.correct", v.IsCorrect))

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, v, s.cfg.CacheTTL); err != nil {
			s.log.Warn("verdict cache write failed", "error", err)
		}
	}
	return &v, nil
}

// CacheKey identifies a grading request. Answers that differ only in case
// or surrounding space share a key.
func CacheKey(req Request) string {
	norm := Request{
		Question:       strings.TrimSpace(req.Question),
		UserAnswer:     strings.ToLower(strings.TrimSpace(req.UserAnswer)),
		ExpectedAnswer: strings.TrimSpace(req.ExpectedAnswer),
		Choices:        req.Choices,
	}
	data, _ := json.Marshal(norm)
	sum := sha256.Sum256(data)
	return "verdict:" + hex.EncodeToString(sum[:])
}
