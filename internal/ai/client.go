// Package ai wraps a local Ollama instance for analytic assistance:
// structured extraction from source text, reliability suggestions, and
// analyst-mode reviews. Every call is recorded in the case audit trail by
// the callers, successes and failures alike.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds one generation call. Local models on modest
// hardware can take minutes on long prompts.
const DefaultTimeout = 120 * time.Second

// ExternalError reports a failure talking to the model backend. Timeout
// distinguishes slow-model timeouts, which are worth retrying, from hard
// failures like connection refused.
type ExternalError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *ExternalError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("ai: %s: timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ai: %s: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// IsExternal reports whether err is (or wraps) an ExternalError.
func IsExternal(err error) bool {
	var ee *ExternalError
	return errors.As(err, &ee)
}

// Client talks to an Ollama server.
type Client struct {
	baseURL string
	model   string
	httpc   *http.Client
	logger  *slog.Logger
}

// NewClient returns a Client for the Ollama server at baseURL using the
// named model.
func NewClient(baseURL, model string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpc:   &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends one prompt and returns the full completion.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, "")
}

// GenerateJSON sends one prompt with JSON output forced on.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, "json")
}

func (c *Client) generate(ctx context.Context, prompt, format string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: format,
	})
	if err != nil {
		return "", fmt.Errorf("ai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", &ExternalError{Op: "generate", Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &ExternalError{
			Op:  "generate",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(data)),
		}
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", &ExternalError{Op: "generate", Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.Debug("model call complete", "model", c.model,
		"prompt_len", len(prompt), "response_len", len(gr.Response),
		"elapsed", time.Since(start))
	return gr.Response, nil
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Ping checks that the Ollama server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ai: build ping: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &ExternalError{Op: "ping", Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &ExternalError{Op: "ping", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}
