package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// VLLMClient talks to an OpenAI-compatible vLLM server. Generation uses the
// streaming completions endpoint so the first token can be timestamped;
// token counting uses the server's /tokenize endpoint.
type VLLMClient struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *slog.Logger
}

// VLLMOption configures a VLLMClient.
type VLLMOption func(*VLLMClient)

// WithHTTPClient overrides the HTTP client. The default carries no timeout;
// per-sample deadlines come from the caller's context.
func WithHTTPClient(c *http.Client) VLLMOption {
	return func(v *VLLMClient) {
		v.client = c
	}
}

// WithVLLMLogger sets the client logger.
func WithVLLMLogger(logger *slog.Logger) VLLMOption {
	return func(v *VLLMClient) {
		v.logger = logger
	}
}

// NewVLLMClient creates a client for the given endpoint and model.
func NewVLLMClient(endpoint, model string, opts ...VLLMOption) *VLLMClient {
	c := &VLLMClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type completionChunk struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate streams a greedy completion and records wall-clock timestamps at
// submission, first token, and completion.
func (c *VLLMClient) Generate(ctx context.Context, prompt string, maxTokens int) (*Result, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: 0,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	submittedAt := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyHTTPError(resp)
	}

	result := &Result{SubmittedAt: submittedAt}
	var text strings.Builder

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read completion stream: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk completionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("%w: bad stream chunk: %v", ErrMalformedResponse, err)
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Text != "" {
			if result.FirstTokenAt.IsZero() {
				result.FirstTokenAt = time.Now()
			}
			text.WriteString(chunk.Choices[0].Text)
			result.OutputTokens++
		}
		if chunk.Usage != nil && chunk.Usage.CompletionTokens > 0 {
			// The server's own count wins over chunk counting.
			result.OutputTokens = chunk.Usage.CompletionTokens
		}
	}

	result.CompletedAt = time.Now()
	result.Text = text.String()

	if result.FirstTokenAt.IsZero() {
		return nil, fmt.Errorf("%w: no tokens received", ErrMalformedResponse)
	}
	c.logger.Debug("completion stream finished",
		slog.Int("output_tokens", result.OutputTokens),
		slog.Float64("ttft_s", result.TTFT()))
	return result, nil
}

type tokenizeRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type tokenizeResponse struct {
	Count int `json:"count"`
}

// CountTokens asks the server to tokenize text and returns the token count.
func (c *VLLMClient) CountTokens(ctx context.Context, text string) (int, error) {
	body, err := json.Marshal(tokenizeRequest{Model: c.model, Prompt: text})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal tokenize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/tokenize", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build tokenize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("tokenize request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, c.classifyHTTPError(resp)
	}

	var parsed tokenizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("%w: bad tokenize response: %v", ErrMalformedResponse, err)
	}
	return parsed.Count, nil
}

// classifyHTTPError maps an error response onto the engine error taxonomy.
func (c *VLLMClient) classifyHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w (status %d): %s (verify the model is accessible and the engine host has valid credentials, e.g. HF_TOKEN for gated models)",
			ErrAccessDenied, resp.StatusCode, msg)
	case isOutOfMemory(msg):
		return fmt.Errorf("%w (status %d): %s (lower gpu_memory_utilization or shorten the context and re-run)",
			ErrResourceExhausted, resp.StatusCode, msg)
	default:
		return fmt.Errorf("engine returned status %d: %s", resp.StatusCode, msg)
	}
}

func isOutOfMemory(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "out of memory") || strings.Contains(lower, "oom")
}
