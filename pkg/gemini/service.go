package gemini

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

type GeminiService struct {
	ApiKey string
}

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{ApiKey: apiKey}
}

// AnalyzeEmail scores an email for importance and categorizes it.
// A 429 from the API is surfaced as a RateLimitError so callers can
// defer the message instead of discarding it.
func (g *GeminiService) AnalyzeEmail(ctx context.Context, from, subject, body string) (*emaildomain.EmailAnalysis, error) {
	// gemini-2.5-flash is fast and cheap enough to run per message
	url := "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent?key=" + g.ApiKey

	// Same prompt as the Ollama provider for consistency
	prompt := fmt.Sprintf(`You are an email triage assistant. Analyze the email below and respond with ONLY a JSON object, no other text.

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

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":      0.2,
			"responseMimeType": "application/json",
		},
	}

	reqBody, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &emaildomain.RateLimitError{
			Service: "gemini",
			Err:     fmt.Errorf("Gemini API error: %s", string(respBody)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Gemini API error: %s", string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}

	text, ok := extractCandidateText(result)
	if !ok {
		return nil, fmt.Errorf("no analysis returned")
	}

	return parseAnalysis(text)
}

func extractCandidateText(result map[string]interface{}) (string, bool) {
	if c, ok := result["candidates"].([]interface{}); ok && len(c) > 0 {
		if cand, ok := c[0].(map[string]interface{}); ok {
			if content, ok := cand["content"].(map[string]interface{}); ok {
				if parts, ok := content["parts"].([]interface{}); ok && len(parts) > 0 {
					if part, ok := parts[0].(map[string]interface{}); ok {
						if text, ok := part["text"].(string); ok {
							return text, true
						}
					}
				}
			}
		}
	}
	return "", false
}

func parseAnalysis(text string) (*emaildomain.EmailAnalysis, error) {
	text = strings.TrimSpace(text)
	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart == -1 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var raw struct {
		Importance  int      `json:"importance"`
		Categories  []string `json:"categories"`
		SenderValid bool     `json:"sender_valid"`
		Summary     string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd+1]), &raw); err != nil {
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
