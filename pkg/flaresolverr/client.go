// Package flaresolverr provides a client for the FlareSolverr API, a
// headless-browser service that returns the rendered HTML of a page.
package flaresolverr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"embed-resolver/pkg/interfaces"
	"embed-resolver/pkg/logging"
)

// Solution contains the result of a successful request.get.
type Solution struct {
	URL       string `json:"url"`
	Status    int    `json:"status"`
	Response  string `json:"response"`
	UserAgent string `json:"userAgent"`
}

// Response is the full response from FlareSolverr API.
type Response struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Session   string   `json:"session,omitempty"`
	StartTime int64    `json:"startTimestamp"`
	EndTime   int64    `json:"endTimestamp"`
	Version   string   `json:"version"`
	Solution  Solution `json:"solution"`
}

// Request is the request body for FlareSolverr API.
type Request struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url,omitempty"`
	MaxTimeout int    `json:"maxTimeout,omitempty"`
	Session    string `json:"session,omitempty"`
}

// Client is a FlareSolverr API client.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient interfaces.HTTPClient
	log        *logging.Logger
}

// NewClient creates a new FlareSolverr client.
func NewClient(baseURL string, timeout time.Duration, log *logging.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout + 10*time.Second, // Add buffer for network overhead
		},
		log: log.WithComponent("flaresolverr"),
	}
}

// CreateSession starts a dedicated browser instance on the FlareSolverr side.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, Request{Cmd: "sessions.create"})
	if err != nil {
		return "", err
	}
	if resp.Session == "" {
		return "", fmt.Errorf("FlareSolverr returned no session id")
	}
	c.log.Debug("session created", "session", resp.Session)
	return resp.Session, nil
}

// DestroySession shuts down the browser instance behind session.
func (c *Client) DestroySession(ctx context.Context, session string) error {
	if _, err := c.call(ctx, Request{Cmd: "sessions.destroy", Session: session}); err != nil {
		return err
	}
	c.log.Debug("session destroyed", "session", session)
	return nil
}

// Get loads targetURL in FlareSolverr's browser and returns the rendered page.
// An empty session uses a throwaway browser for this one request.
func (c *Client) Get(ctx context.Context, targetURL, session string) (*Response, error) {
	c.log.Debug("fetching URL via FlareSolverr", "url", targetURL, "session", session)

	resp, err := c.call(ctx, Request{
		Cmd:        "request.get",
		URL:        targetURL,
		MaxTimeout: int(c.timeout.Milliseconds()),
		Session:    session,
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug("FlareSolverr request successful",
		"url", targetURL,
		"status", resp.Solution.Status,
		"response_length", len(resp.Solution.Response))

	return resp, nil
}

func (c *Client) call(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FlareSolverr returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var fsResp Response
	if err := json.Unmarshal(respBody, &fsResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if fsResp.Status != "ok" {
		return nil, fmt.Errorf("FlareSolverr %s error: %s", req.Cmd, fsResp.Message)
	}

	return &fsResp, nil
}

// IsConfigured returns true if the client is properly configured.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}
