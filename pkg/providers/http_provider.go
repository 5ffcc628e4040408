// Package providers implements the remote completion client: an
// OpenAI-style chat-completions HTTP provider plus a retrying decorator
// with exponential backoff.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultModel = "openai/gpt-5.2"

// HTTPProvider talks to an OpenAI-compatible chat completions endpoint.
type HTTPProvider struct {
	apiKey     string
	apiBase    string
	httpClient *http.Client
}

func NewHTTPProvider(apiKey, apiBase, proxy string) *HTTPProvider {
	client := &http.Client{Timeout: 120 * time.Second}

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &HTTPProvider{
		apiKey:     apiKey,
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: client,
	}
}

func (p *HTTPProvider) Complete(ctx context.Context, messages []Message, opts Options) (Message, error) {
	if p.apiBase == "" {
		return Message{}, fmt.Errorf("completion API base not configured")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	requestBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}
	if opts.MaxTokens > 0 {
		requestBody["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		requestBody["temperature"] = opts.Temperature
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return Message{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Message{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Message{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Message{}, fmt.Errorf("completion API request failed:\n  Status: %d\n  Body:   %s", resp.StatusCode, string(body))
	}

	return parseResponse(body)
}

func parseResponse(body []byte) (Message, error) {
	var apiResponse struct {
		Choices []struct {
			Message *struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(apiResponse.Choices) == 0 || apiResponse.Choices[0].Message == nil {
		return Message{}, ErrMalformedResponse
	}

	msg := apiResponse.Choices[0].Message
	role := msg.Role
	if role == "" {
		role = "assistant"
	}
	return Message{Role: role, Content: msg.Content}, nil
}
