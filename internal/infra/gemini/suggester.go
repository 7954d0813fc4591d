// Package gemini implements category suggestion with a Gemini model.
// Every failure degrades to domain.FallbackCategory.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/infra/resilience"
	"github.com/boddenberg/zenith-finance-go/internal/port"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

const (
	cacheName   = "suggestion"
	callTimeout = 10 * time.Second
)

var tracer = otel.Tracer("gemini")

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Recorder receives suggestion metrics.
type Recorder interface {
	IncrSuggestion(source string)
	IncrCacheHit(cache string)
	IncrCacheMiss(cache string)
}

type modelGenerator struct {
	client *genai.Client
	model  string
}

// NewGenerator builds a Gemini API client. An empty key returns a nil
// Generator, which makes the suggester answer the fallback every time.
func NewGenerator(ctx context.Context, apiKey, model string) (Generator, error) {
	if apiKey == "" {
		return nil, nil
	}
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &modelGenerator{client: client, model: model}, nil
}

func (g *modelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// Suggester implements port.CategorySuggester.
type Suggester struct {
	gen        Generator
	categories domain.Categories
	cache      port.Cache[string]
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
	metrics    Recorder
}

// NewSuggester wires a Suggester. gen may be nil.
func NewSuggester(gen Generator, categories domain.Categories, cache port.Cache[string], cb *gobreaker.CircuitBreaker, logger *zap.Logger, metrics Recorder) *Suggester {
	return &Suggester{
		gen:        gen,
		categories: categories,
		cache:      cache,
		cb:         cb,
		logger:     logger,
		metrics:    metrics,
	}
}

// Suggest returns one of the configured categories for description, or
// domain.FallbackCategory.
func (s *Suggester) Suggest(ctx context.Context, description string) string {
	description = strings.TrimSpace(description)
	if s.gen == nil || description == "" {
		s.record("fallback")
		return domain.FallbackCategory
	}

	key := strings.ToLower(description)
	if s.cache != nil {
		if cat, ok := s.cache.Get(key); ok {
			s.hit(true)
			s.record("cache")
			return cat
		}
		s.hit(false)
	}

	ctx, span := tracer.Start(ctx, "Gemini.Suggest")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var answer string
	err := resilience.Execute(s.cb, func() error {
		var err error
		answer, err = s.gen.Generate(ctx, s.prompt(description))
		return err
	})
	if err != nil {
		s.logger.Warn("category suggestion failed", zap.Error(err))
		span.RecordError(err)
		s.record("fallback")
		return domain.FallbackCategory
	}

	cat, ok := s.match(answer)
	span.SetAttributes(attribute.String("category", cat), attribute.Bool("matched", ok))
	if !ok {
		s.logger.Debug("model answer not in category list", zap.String("answer", answer))
		s.record("fallback")
		return domain.FallbackCategory
	}

	if s.cache != nil {
		s.cache.Set(key, cat)
	}
	s.record("model")
	return cat
}

func (s *Suggester) prompt(description string) string {
	return fmt.Sprintf(
		"Given the transaction description %q, which of the following categories is the most appropriate? "+
			"Please respond with only the category name. Categories: %s",
		description, strings.Join(s.categories.All(), ", "),
	)
}

// match maps the raw answer to a configured category, ignoring case,
// surrounding quotes and a trailing period.
func (s *Suggester) match(answer string) (string, bool) {
	a := strings.TrimSpace(answer)
	a = strings.Trim(a, "\"'`*")
	a = strings.TrimSuffix(a, ".")
	a = strings.TrimSpace(a)
	for _, cat := range s.categories.All() {
		if strings.EqualFold(cat, a) {
			return cat, true
		}
	}
	return "", false
}

func (s *Suggester) record(source string) {
	if s.metrics != nil {
		s.metrics.IncrSuggestion(source)
	}
}

func (s *Suggester) hit(ok bool) {
	if s.metrics == nil {
		return
	}
	if ok {
		s.metrics.IncrCacheHit(cacheName)
	} else {
		s.metrics.IncrCacheMiss(cacheName)
	}
}
