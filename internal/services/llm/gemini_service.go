package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"google.golang.org/genai"
)

// GeminiService implements the AIProvider interface using the Google
// Gemini API.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiService creates a new Gemini provider instance.
func NewGeminiService(geminiConfig *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required for Gemini provider (set via GEMINI_API_KEY or gemini.api_key in config)")
	}

	if geminiConfig.Model == "" {
		geminiConfig.Model = "gemini-2.5-flash"
	}

	timeout, err := time.ParseDuration(geminiConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", geminiConfig.Timeout, err)
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	service := &GeminiService{
		config:  geminiConfig,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}

	logger.Debug().
		Str("model", geminiConfig.Model).
		Dur("timeout", timeout).
		Float32("temperature", geminiConfig.Temperature).
		Msg("Gemini provider initialized")

	return service, nil
}

// GenerateContent generates a completion from a single prompt plus an
// optional system instruction.
func (s *GeminiService) GenerateContent(ctx context.Context, request *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	if request == nil || strings.TrimSpace(request.Prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	temperature := request.Temperature
	if temperature <= 0 {
		temperature = s.config.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}
	if request.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(request.SystemInstruction, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(request.Prompt, genai.RoleUser),
	}

	start := time.Now()
	resp, err := s.client.Models.GenerateContent(ctx, s.config.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	var text strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				text.WriteString(part.Text)
			}
		}
	}

	if text.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Gemini API")
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int("response_chars", text.Len()).
		Dur("duration", time.Since(start)).
		Msg("Gemini completion generated")

	return &interfaces.ContentResponse{
		Text:     text.String(),
		Provider: string(common.LLMProviderGemini),
		Model:    s.config.Model,
	}, nil
}

// GetProviderType returns the provider identifier.
func (s *GeminiService) GetProviderType() string {
	return string(common.LLMProviderGemini)
}

// Close clears the client reference. The genai.Client does not require
// explicit shutdown.
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}
