package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	emaildomain "zenith-backend/internal/email/domain"
)

// OllamaService implements AnalyzerService using Ollama local LLM
type OllamaService struct {
	getBaseURL func() string // Dynamic getter for BaseURL
	getModel   func() string // Dynamic getter for Model
}

// NewOllamaService creates a new Ollama service
func NewOllamaService(baseURL, model string) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &OllamaService{
		getBaseURL: func() string { return baseURL },
		getModel:   func() string { return model },
	}
}

// NewOllamaServiceWithGetters creates a new Ollama service with dynamic getters
func NewOllamaServiceWithGetters(getBaseURL, getModel func() string) *OllamaService {
	return &OllamaService{
		getBaseURL: getBaseURL,
		getModel:   getModel,
	}
}

// AnalyzeEmail implements AnalyzerService
func (o *OllamaService) AnalyzeEmail(ctx context.Context, from, subject, body string) (*emaildomain.EmailAnalysis, error) {
	url := o.getBaseURL() + "/api/generate"

	// Same prompt as Gemini for consistency across providers
	prompt := buildAnalysisPrompt(from, subject, body)

	payload := map[string]interface{}{
		"model":  o.getModel(),
		"prompt": prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": 0.2,
			"num_predict": 300,
		},
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return parseAnalysisJSON(result.Response)
}

// buildAnalysisPrompt asks the model for a strict JSON object so the
// response can be unmarshalled without heuristics.
func buildAnalysisPrompt(from, subject, body string) string {
	return fmt.Sprintf(`You are an email triage assistant. Analyze the email below and respond with ONLY a JSON object, no other text.

JSON fields:
- "importance": integer 1-10 (10 = urgent action required, 1 = ignorable)
- "categories": array of strings from: work, personal, finance, travel, shopping, newsletter, notification, spam
- "sender_valid": boolean, false if the sender address looks spoofed or suspicious
- "summary": one sentence summary of what the email is about

FROM: %s
SUBJECT: %s

BODY:
%s

JSON OUTPUT:`, from, subject, body)
}

// parseAnalysisJSON extracts the JSON object from a model response,
// tolerating markdown fences and surrounding prose.
func parseAnalysisJSON(text string) (*emaildomain.EmailAnalysis, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}

	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart == -1 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("no JSON object in model response")
	}
	text = text[jsonStart : jsonEnd+1]

	var raw struct {
		Importance  int      `json:"importance"`
		Categories  []string `json:"categories"`
		SenderValid bool     `json:"sender_valid"`
		Summary     string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse analysis JSON: %v", err)
	}

	if raw.Importance < 1 {
		raw.Importance = 1
	}
	if raw.Importance > 10 {
		raw.Importance = 10
	}

	return &emaildomain.EmailAnalysis{
		Importance:  raw.Importance,
		Categories:  strings.Join(raw.Categories, ","),
		SenderValid: raw.SenderValid,
		Summary:     strings.TrimSpace(raw.Summary),
	}, nil
}
