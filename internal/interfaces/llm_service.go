package interfaces

import (
	"context"
)

// ContentRequest represents a provider-agnostic content generation request
type ContentRequest struct {
	Prompt            string
	SystemInstruction string
	Temperature       float32
	MaxTokens         int
}

// ContentResponse represents a provider-agnostic content generation response
type ContentResponse struct {
	Text     string
	Provider string
	Model    string
}

// AIProvider defines the interface for AI content generation. The provider
// may return an error or malformed content; callers must handle both.
type AIProvider interface {
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)
	GetProviderType() string
	Close() error
}
