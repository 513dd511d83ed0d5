// Package gemini implements the generation.Generator interface using
// Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"google.golang.org/genai"

	"github.com/cognivers/pipeline/internal/config"
	"github.com/cognivers/pipeline/internal/generation"
)

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API to turn rendered prompts into text.
type GeminiGenerator struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the default model when a processor does not override it
	model string
}

// Ensure GeminiGenerator implements generation.Generator
var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a new GeminiGenerator with the provided
// dependencies, validating the configuration and initializing the API
// client.
func NewGeminiGenerator(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &GeminiGenerator{
		logger: logger.With("component", "gemini_generator"),
		config: cfg,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Generate sends the prompt to the Gemini API with the given parameters
// and returns the generated text. Transient API failures are retried with
// exponential backoff and jitter up to the configured retry budget;
// permanent errors (safety block, empty response) are returned
// immediately.
func (g *GeminiGenerator) Generate(
	ctx context.Context,
	prompt string,
	params generation.Params,
) (string, error) {
	if prompt == "" {
		return "", generation.ErrEmptyPrompt
	}

	model := g.model
	if params.Model != "" {
		model = params.Model
	}

	maxRetries := g.config.MaxRetries
	baseDelaySeconds := g.config.RetryDelaySeconds
	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}
	if baseDelaySeconds < 1 {
		g.logger.WarnContext(ctx, "invalid retry delay value, using default", "base_delay_seconds", 2)
		baseDelaySeconds = 2
	}

	genConfig := buildGenerateConfig(params)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		g.logger.InfoContext(ctx, "making Gemini API call",
			"model", model,
			"attempt", attemptNum,
			"max_attempts", maxRetries+1)

		callCtx := ctx
		var cancel context.CancelFunc
		if g.config.RequestTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.config.RequestTimeout)
		}

		resp, err := g.client.Models.GenerateContent(callCtx, model, genai.Text(prompt), genConfig)
		if cancel != nil {
			cancel()
		}

		text, err := extractText(resp, err)
		if err == nil {
			g.logger.InfoContext(ctx, "Gemini API call successful",
				"attempt", attemptNum,
				"output_length", len(text))
			return text, nil
		}

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attemptNum,
			"error", err)

		// Permanent errors repeat identically; return without retrying.
		if errors.Is(err, generation.ErrContentBlocked) || errors.Is(err, generation.ErrInvalidResponse) {
			return "", err
		}

		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		delay := backoffDelay(baseDelaySeconds, attempt, rng.Float64())
		g.logger.InfoContext(ctx, "retrying after delay",
			"attempt", attemptNum,
			"delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// buildGenerateConfig maps generation.Params onto the genai request
// configuration.
func buildGenerateConfig(params generation.Params) *genai.GenerateContentConfig {
	temperature := float32(params.Temperature)
	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(params.MaxTokens),
	}

	if len(params.StopSequences) > 0 {
		genConfig.StopSequences = params.StopSequences
	}

	if params.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(params.SystemPrompt, genai.RoleUser)
	}

	return genConfig
}

// extractText classifies the API outcome: a usable text result, a
// permanent error (safety block, empty or malformed response), or the
// original transient error.
func extractText(resp *genai.GenerateContentResponse, callErr error) (string, error) {
	if callErr != nil {
		return "", callErr
	}

	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}

	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	text := ""
	for _, part := range candidate.Content.Parts {
		text += part.Text
	}

	if text == "" {
		return "", fmt.Errorf("%w: no text parts in response", generation.ErrInvalidResponse)
	}

	return text, nil
}

// backoffDelay computes the exponential backoff with jitter:
// baseDelay * 2^attempt * (0.5 + jitter/2) for jitter in [0, 1).
func backoffDelay(baseDelaySeconds, attempt int, jitter float64) time.Duration {
	backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
	jitterFactor := 0.5 + jitter*0.5
	return time.Duration(backoffSeconds * jitterFactor * float64(time.Second))
}
