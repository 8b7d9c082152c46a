package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	zaiCodingEndpoint = "https://api.z.ai/api/coding/paas/v4"
	zaiDefaultModel   = "glm-5"
)

// ZAIProvider completes prompts via Z.AI's OpenAI-compatible API, narrowed
// from internal/ai/zai.go.
type ZAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewZAI(apiKey, model, baseURL string) *ZAIProvider {
	if model == "" {
		model = zaiDefaultModel
	}
	if baseURL == "" {
		baseURL = zaiCodingEndpoint
	}
	return &ZAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (z *ZAIProvider) Name() string { return "zai" }

func (z *ZAIProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, z.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+z.apiKey)
	resp, err := z.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type zaiRequest struct {
	Model       string   `json:"model"`
	Messages    []zaiMsg `json:"messages"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
}

type zaiMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type zaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (z *ZAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	payload := zaiRequest{
		Model: z.model,
		Messages: []zaiMsg{
			{Role: "system", Content: "You are an automation agent synthesizing coding task directives."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   2048,
		Temperature: 0.7,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling Z.AI request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+z.apiKey)

	resp, err := z.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Z.AI API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading Z.AI response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("zai /chat/completions returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var apiResp zaiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing Z.AI response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("zai error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("zai returned no choices")
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}
