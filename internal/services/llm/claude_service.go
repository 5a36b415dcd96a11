package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
)

// ClaudeService implements the AIProvider interface using the Anthropic
// Claude API.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// NewClaudeService creates a new Claude provider instance.
func NewClaudeService(claudeConfig *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for Claude provider (set via ANTHROPIC_API_KEY or claude.api_key in config)")
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-haiku-3-5-20241022"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", claudeConfig.Timeout, err)
	}

	maxTokens := claudeConfig.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(claudeConfig.APIKey),
	)

	service := &ClaudeService{
		config:    claudeConfig,
		logger:    logger,
		client:    client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", claudeConfig.Model).
		Dur("timeout", timeout).
		Float32("temperature", claudeConfig.Temperature).
		Int("max_tokens", maxTokens).
		Msg("Claude provider initialized")

	return service, nil
}

// GenerateContent generates a completion from a single prompt plus an
// optional system instruction.
func (s *ClaudeService) GenerateContent(ctx context.Context, request *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	if request == nil || strings.TrimSpace(request.Prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(request.Prompt)),
		},
	}

	temperature := request.Temperature
	if temperature <= 0 {
		temperature = s.config.Temperature
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(float64(temperature))
	}

	if request.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: request.SystemInstruction},
		}
	}

	start := time.Now()
	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Claude API")
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int("response_chars", text.Len()).
		Dur("duration", time.Since(start)).
		Msg("Claude completion generated")

	return &interfaces.ContentResponse{
		Text:     text.String(),
		Provider: string(common.LLMProviderClaude),
		Model:    s.config.Model,
	}, nil
}

// GetProviderType returns the provider identifier.
func (s *ClaudeService) GetProviderType() string {
	return string(common.LLMProviderClaude)
}

// Close releases provider resources. The Anthropic client does not
// require explicit shutdown.
func (s *ClaudeService) Close() error {
	return nil
}
