package gemini

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/cards-api/internal/config"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/generation"
	"github.com/phrazzld/cards-api/internal/platform/logger"
	"google.golang.org/genai"
)

//go:embed prompts/flashcards.tmpl
var promptFS embed.FS

// modelsAPI is the subset of genai.Models used by the generator.
type modelsAPI interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API.
type GeminiGenerator struct {
	logger         *slog.Logger
	config         config.LLMConfig
	promptTemplate *template.Template
	models         modelsAPI

	// wait blocks for the retry delay; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator backed by a genai client for the
// Gemini API backend.
func NewGeminiGenerator(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
) (*GeminiGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, cfg, client.Models)
}

func newGenerator(log *slog.Logger, cfg config.LLMConfig, models modelsAPI) (*GeminiGenerator, error) {
	if log == nil {
		log = slog.Default()
	}
	if models == nil {
		return nil, fmt.Errorf("%w: models client cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	tmpl, err := template.ParseFS(promptFS, "prompts/flashcards.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			generation.ErrInvalidConfig, err)
	}

	return &GeminiGenerator{
		logger:         log.With(slog.String("component", "gemini_generator")),
		config:         cfg,
		promptTemplate: tmpl,
		models:         models,
		wait:           sleepContext,
	}, nil
}

// Model returns the configured Gemini model name.
func (g *GeminiGenerator) Model() string {
	return g.config.ModelName
}

// GenerateCards asks Gemini for flashcards covering inputText.
func (g *GeminiGenerator) GenerateCards(ctx context.Context, inputText string) ([]domain.Suggestion, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	prompt, err := g.createPrompt(inputText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
	}

	response, err := g.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	suggestions, err := g.parseResponse(ctx, response)
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "generated flashcard suggestions",
		slog.Int("count", len(suggestions)),
		slog.String("model", g.config.ModelName))
	return suggestions, nil
}

func (g *GeminiGenerator) createPrompt(inputText string) (string, error) {
	if strings.TrimSpace(inputText) == "" {
		return "", ErrEmptyInputText
	}

	var buf bytes.Buffer
	data := promptData{InputText: inputText, MaxContentLength: domain.MaxFlashcardContentLength}
	if err := g.promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// callWithRetry calls the model up to MaxRetries+1 times. Only API errors are
// retried; blocked or malformed responses return immediately.
func (g *GeminiGenerator) callWithRetry(ctx context.Context, prompt string) (*ResponseSchema, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := g.config.RetryDelaySeconds
	if baseDelay < 1 {
		baseDelay = 1
	}

	genConfig := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := g.models.GenerateContent(ctx, g.config.ModelName, genai.Text(prompt), genConfig)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
			}
			lastErr = err
			log.WarnContext(ctx, "gemini API call failed",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", maxRetries+1),
				slog.String("error", err.Error()))
		} else {
			return decodeResponse(resp)
		}

		if attempt == maxRetries {
			break
		}

		delay := backoff(baseDelay, attempt)
		log.InfoContext(ctx, "retrying gemini API call",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay))
		if err := g.wait(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		}
	}

	return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
		generation.ErrTransientFailure, maxRetries, lastErr)
}

// backoff returns baseSeconds * 2^attempt scaled by a jitter factor in [0.5, 1).
func backoff(baseSeconds, attempt int) time.Duration {
	seconds := float64(baseSeconds) * math.Pow(2, float64(attempt))
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(seconds * jitter * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func decodeResponse(resp *genai.GenerateContentResponse) (*ResponseSchema, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: prompt blocked (%s)",
				generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	var parsed ResponseSchema
	if err := json.Unmarshal([]byte(stripCodeFence(text.String())), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}
	return &parsed, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseResponse converts the model output into suggestions. Cards that fail
// flashcard content validation are dropped; a response with no usable cards
// is an error.
func (g *GeminiGenerator) parseResponse(ctx context.Context, response *ResponseSchema) ([]domain.Suggestion, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	if response == nil || len(response.Cards) == 0 {
		return nil, fmt.Errorf("%w: no cards in response", generation.ErrInvalidResponse)
	}

	suggestions := make([]domain.Suggestion, 0, len(response.Cards))
	for i, card := range response.Cards {
		front := strings.TrimSpace(card.Front)
		back := strings.TrimSpace(card.Back)
		if err := errors.Join(
			domain.ValidateFlashcardContent("front", front),
			domain.ValidateFlashcardContent("back", back),
		); err != nil {
			log.WarnContext(ctx, "dropping generated card",
				slog.Int("index", i),
				slog.String("reason", err.Error()))
			continue
		}
		suggestions = append(suggestions, domain.NewSuggestion(front, back))
	}

	if len(suggestions) == 0 {
		return nil, fmt.Errorf("%w: no valid cards in response", generation.ErrInvalidResponse)
	}
	return suggestions, nil
}
