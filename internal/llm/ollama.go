package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

// OllamaProvider completes prompts against a local Ollama server, narrowed
// from internal/ai/ollama.go.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama builds an OllamaProvider, restricted (like its teacher) to
// localhost/loopback addresses.
func NewOllama(baseURL, model string) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	base, err := normalizeLocalOllamaBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaProvider{
		baseURL: base,
		model:   model,
		client:  &http.Client{Timeout: 180 * time.Second},
	}, nil
}

func (o *OllamaProvider) Name() string { return "ollama" }

func (o *OllamaProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	// #nosec G704 -- o.baseURL is restricted to localhost/loopback by normalizeLocalOllamaBaseURL.
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (o *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	payload := ollamaRequest{Model: o.model, Prompt: prompt, Stream: false}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	// #nosec G704 -- o.baseURL is restricted to localhost/loopback by normalizeLocalOllamaBaseURL.
	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("ollama /api/generate returned %d: %s", resp.StatusCode, msg)
	}

	var apiResp ollamaResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return "", fmt.Errorf("parsing ollama response: %w", err)
	}
	return strings.TrimSpace(apiResp.Response), nil
}

func normalizeLocalOllamaBaseURL(raw string) (string, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(raw), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid Ollama URL scheme %q", u.Scheme)
	}
	if u.Host == "" || u.Hostname() == "" {
		return "", fmt.Errorf("invalid Ollama URL: missing host")
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return strings.TrimRight(u.String(), "/"), nil
	}
	if ip, err := netip.ParseAddr(host); err == nil && ip.IsLoopback() {
		return strings.TrimRight(u.String(), "/"), nil
	}
	return "", fmt.Errorf("Ollama URL must point to localhost or a loopback address")
}
