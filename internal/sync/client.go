package sync

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

// DefaultTimeout bounds every remote call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// HTTPClient talks to the central knowledge authority over its HTTP contract.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a client for the authority at baseURL. The API key is
// optional; when empty, requests are sent unauthenticated. A timeout <= 0
// selects DefaultTimeout.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Health issues the lightweight connectivity probe.
func (c *HTTPClient) Health(ctx context.Context) error {
	if c.baseURL == "" {
		return fmt.Errorf("remote URL not configured")
	}

	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}

	return nil
}

// SubmitPattern submits one pattern and returns the central identifier: the
// newly minted id, or the existing one when the authority already holds an
// equivalent pattern.
func (c *HTTPClient) SubmitPattern(ctx context.Context, sub PatternSubmission) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/patterns/submit", sub)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("pattern submit rejected: status %d", resp.StatusCode)
	}

	var result patternSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode pattern submit response: %w", err)
	}

	centralID := result.ID
	if centralID == "" {
		centralID = result.ExistingPatternID
	}
	if centralID == "" {
		return "", fmt.Errorf("pattern submit response carried no identifier")
	}

	return centralID, nil
}

// SubmitSolutions submits a batch of solutions in one request and returns
// the authority's accept/reject counts.
func (c *HTTPClient) SubmitSolutions(ctx context.Context, batch []SolutionSubmission) (*BatchResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/sync/solutions", batch)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("solution batch rejected: status %d", resp.StatusCode)
	}

	var result BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode solution batch response: %w", err)
	}

	return &result, nil
}

// do sends a request to the authority, attaching the bearer key when one is
// configured.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.client.Do(req)
}
