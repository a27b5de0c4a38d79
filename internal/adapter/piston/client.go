// Package piston talks to a Piston compatible code execution engine.
package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/static/errs"
)

// maxErrorBody bounds how much of a rejected response is kept
const maxErrorBody = 4 << 10

type executeRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Files    []file `json:"files"`
	Stdin    string `json:"stdin"`
}

type file struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

type stage struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Output string  `json:"output"`
	Code   *int    `json:"code"`
	Signal *string `json:"signal"`
}

type executeResponse struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Compile  *stage `json:"compile"`
	Run      *stage `json:"run"`
}

// Client is a thin HTTP client of the engine. It never retries.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     primary.Logger
}

var _ secondary.Sandbox = &Client{}

func NewClient(cfg *config.SandboxConfig, logger primary.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.Url, "/"),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Execute runs a single program with the given stdin.
func (c *Client) Execute(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	body := executeRequest{
		Language: req.Language,
		Version:  req.Version,
		Files:    []file{{Name: req.Filename, Content: req.Code}},
		Stdin:    req.Stdin,
	}

	var resp executeResponse
	if err := c.do(ctx, http.MethodPost, "/execute", body, &resp); err != nil {
		return nil, err
	}

	result := &domain.ExecutionResult{
		Language: resp.Language,
		Version:  resp.Version,
	}

	// a failed compile stage reports through stderr like a runtime error
	if resp.Compile != nil && resp.Compile.Code != nil && *resp.Compile.Code != 0 {
		result.Stderr = resp.Compile.Stderr
		if strings.TrimSpace(result.Stderr) == "" {
			result.Stderr = resp.Compile.Output
		}
		result.ExitCode = resp.Compile.Code
		result.Signal = resp.Compile.Signal
		return result, nil
	}

	if resp.Run == nil {
		return nil, fmt.Errorf("%w: response has no run stage", errs.ErrSandboxProtocol)
	}

	result.Stdout = resp.Run.Stdout
	result.Stderr = resp.Run.Stderr
	result.ExitCode = resp.Run.Code
	result.Signal = resp.Run.Signal
	return result, nil
}

// ListRuntimes lists the runtimes installed in the engine
func (c *Client) ListRuntimes(ctx context.Context) ([]domain.Runtime, error) {
	var runtimes []domain.Runtime
	if err := c.do(ctx, http.MethodGet, "/runtimes", nil, &runtimes); err != nil {
		return nil, err
	}
	if runtimes == nil {
		c.logger.Warn("Sandbox returned null runtimes list")
		runtimes = []domain.Runtime{}
	}
	c.logger.Debug("Retrieved runtimes from sandbox", "count", len(runtimes))
	return runtimes, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: failed to encode request: %v", errs.ErrSandboxProtocol, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %v", errs.ErrSandboxUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Sandbox request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", errs.ErrSandboxUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("Sandbox rejected request", "method", method, "path", path, "status", resp.StatusCode, "body", string(raw))
		return &errs.SandboxRejectedError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", errs.ErrSandboxUnavailable, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Error("Failed to decode sandbox response", "path", path, "error", err)
		return fmt.Errorf("%w: %v", errs.ErrSandboxProtocol, err)
	}
	return nil
}
