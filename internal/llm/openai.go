package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

// OpenAIProvider completes prompts via the OpenAI chat completions API,
// narrowed from internal/ai/openai.go's TriageFindings/GenerateFix/
// GeneratePRDescription trio down to a single Complete call.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAI builds an OpenAIProvider. An empty baseURL defaults to
// defaultOpenAIBase and an empty model to "gpt-4o"; environment variables
// are not read here.
func NewOpenAI(apiKey, model, baseURL string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = defaultOpenAIBase
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid OpenAI base URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("invalid OpenAI base URL scheme %q", u.Scheme)
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	// #nosec G107,G704 -- baseURL is loaded from trusted local config.
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type openAIRequest struct {
	Model               string      `json:"model"`
	Messages            []openAIMsg `json:"messages"`
	MaxTokens           int         `json:"max_tokens,omitempty"`
	MaxCompletionTokens int         `json:"max_completion_tokens,omitempty"`
}

type openAIMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const openAIMaxTokens = 2048

func (o *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	payload := openAIRequest{
		Model: o.model,
		Messages: []openAIMsg{
			{Role: "system", Content: "You are an automation agent synthesizing coding task directives."},
			{Role: "user", Content: prompt},
		},
	}
	if usesMaxCompletionTokensParam(o.model) {
		payload.MaxCompletionTokens = openAIMaxTokens
	} else {
		payload.MaxTokens = openAIMaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling OpenAI request: %w", err)
	}

	const maxAttempts = 6
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+o.apiKey)

		// #nosec G107,G704 -- baseURL is loaded from trusted local config.
		resp, err := o.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("calling OpenAI API: %w", err)
		}
		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return "", fmt.Errorf("reading OpenAI response: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxAttempts {
			wait := openAIRetryDelay(resp.Header.Get("Retry-After"), string(respBody), attempt)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("openai /chat/completions returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}

		var apiResp openAIResponse
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return "", fmt.Errorf("parsing OpenAI response: %w", err)
		}
		if len(apiResp.Choices) == 0 {
			return "", fmt.Errorf("openai returned no choices")
		}
		return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
	}
	return "", fmt.Errorf("openai: exceeded retry attempts")
}

func usesMaxCompletionTokensParam(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.Contains(m, "gpt-5"):
		return true
	case strings.Contains(m, "codex"):
		return true
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return true
	}
	return false
}

func openAIRetryDelay(retryAfterHeader, _ string, attempt int) time.Duration {
	if ra := strings.TrimSpace(retryAfterHeader); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(attempt) * time.Second
}
