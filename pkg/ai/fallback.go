package ai

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"

	emaildomain "zenith-backend/internal/email/domain"
)

// FallbackService implements smart AI provider routing with fallback
// - Gemini first (better quality), fallback to Ollama on quota exhaustion
// - If both fail with rate limiting, the error is surfaced as a
//   RateLimitError so the caller can defer the message
type FallbackService struct {
	gemini AnalyzerService
	ollama *OllamaService
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(gemini AnalyzerService, ollama *OllamaService) *FallbackService {
	return &FallbackService{
		gemini: gemini,
		ollama: ollama,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// Check for network errors
	if _, ok := err.(net.Error); ok {
		return true
	}

	// Check for common connection error messages
	errStr := err.Error()
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"EOF",
	}

	for _, indicator := range connectionIndicators {
		if strings.Contains(strings.ToLower(errStr), strings.ToLower(indicator)) {
			return true
		}
	}

	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if emaildomain.IsRateLimitError(err) {
		return true
	}

	errStr := err.Error()
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"RESOURCE_EXHAUSTED",
	}

	for _, indicator := range quotaIndicators {
		if strings.Contains(strings.ToLower(errStr), strings.ToLower(indicator)) {
			return true
		}
	}

	return false
}

// AnalyzeEmail tries Gemini first (better quality), falls back to Ollama
// on quota or connection errors
func (f *FallbackService) AnalyzeEmail(ctx context.Context, from, subject, body string) (*emaildomain.EmailAnalysis, error) {
	var geminiErr error

	if f.gemini != nil {
		result, err := f.gemini.AnalyzeEmail(ctx, from, subject, body)
		if err == nil {
			return result, nil
		}
		geminiErr = err

		if isQuotaError(err) {
			log.Printf("[AI] Gemini quota exhausted: %v, falling back to Ollama", err)
		} else {
			log.Printf("[AI] Gemini error: %v, falling back to Ollama", err)
		}
	}

	if f.ollama != nil {
		result, err := f.ollama.AnalyzeEmail(ctx, from, subject, body)
		if err == nil {
			return result, nil
		}

		if isConnectionError(err) {
			log.Printf("[AI] Ollama connection failed: %v", err)
		}

		// When the primary was rate limited and the fallback is down,
		// report the rate limit so processing can be deferred
		if isQuotaError(geminiErr) {
			return nil, &emaildomain.RateLimitError{Service: "gemini", Err: geminiErr}
		}
		return nil, fmt.Errorf("ollama analysis failed: %w", err)
	}

	if geminiErr != nil {
		if isQuotaError(geminiErr) {
			return nil, &emaildomain.RateLimitError{Service: "gemini", Err: geminiErr}
		}
		return nil, fmt.Errorf("gemini analysis failed: %w", geminiErr)
	}

	return nil, fmt.Errorf("no AI provider available for analysis")
}
