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
	defaultOpenCodeBase  = "https://opencode.ai/zen/v1"
	defaultOpenCodeModel = "glm-4.7-free"
)

// OpenCodeProvider completes prompts via the OpenCode Zen gateway, an
// OpenAI-compatible endpoint fronting free and paid community models. This
// is the provider named by the default model id "opencode/glm-4.7-free"
// and has no teacher counterpart; its request/response shape is adapted
// from OpenAIProvider's chat-completions call (see DESIGN.md's
// internal/llm entry for why it's grounded that way rather than on stdlib
// alone).
type OpenCodeProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewOpenCode(apiKey, model, baseURL string) *OpenCodeProvider {
	if model == "" {
		model = defaultOpenCodeModel
	}
	if baseURL == "" {
		baseURL = defaultOpenCodeBase
	}
	return &OpenCodeProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OpenCodeProvider) Name() string { return "opencode" }

func (o *OpenCodeProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (o *OpenCodeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	payload := openAIRequest{
		Model: o.model,
		Messages: []openAIMsg{
			{Role: "system", Content: "You are an automation agent synthesizing coding task directives."},
			{Role: "user", Content: prompt},
		},
		MaxTokens: openAIMaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling OpenCode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling OpenCode API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading OpenCode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("opencode /chat/completions returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing OpenCode response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("opencode returned no choices")
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}
