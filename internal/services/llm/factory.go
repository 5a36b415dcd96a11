package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
)

// NewProvider creates the AI provider selected by llm.default_provider.
func NewProvider(cfg *common.Config, logger arbor.ILogger) (interfaces.AIProvider, error) {
	switch cfg.LLM.DefaultProvider {
	case common.LLMProviderClaude:
		return NewClaudeService(&cfg.Claude, logger)
	case common.LLMProviderGemini:
		return NewGeminiService(&cfg.Gemini, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider '%s' (expected 'claude' or 'gemini')", cfg.LLM.DefaultProvider)
	}
}
