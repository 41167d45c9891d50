package ai

import (
	"context"

	emaildomain "zenith-backend/internal/email/domain"
)

// AnalyzerService is the interface for AI email analysis
// Implement this interface to add new AI providers (Gemini, Ollama, OpenAI, etc.)
type AnalyzerService interface {
	AnalyzeEmail(ctx context.Context, from, subject, body string) (*emaildomain.EmailAnalysis, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
