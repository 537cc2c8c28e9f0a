// Package upstream is the external HTTP client collaborator: it knows how to
// reach the single configured backend on its two endpoints (Responses,
// ChatCompletions) and nothing about dialect translation. Single-provider,
// single-API-key client with no multi-provider auth/refresh machinery.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/copilotgw/gateway/internal/config"
	"github.com/copilotgw/gateway/internal/util"
)

// Options carries the request-side flags derived by routing that the
// external HTTP client surfaces as headers.
type Options struct {
	Vision    bool
	Initiator string
}

// Chunk is one raw SSE line read from the upstream stream, or a terminal
// error. Lines keep their "data:"/"event:" framing; translators strip it.
type Chunk struct {
	Line []byte
	Err  error
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream request failed: status %d: %s", e.Code, e.Body)
}

// Client talks to the single configured upstream backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient builds a Client from the active config, wiring the shared proxy
// dialer used everywhere else in the gateway.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: util.SetProxy(cfg, &http.Client{Timeout: 0}),
		baseURL:    strings.TrimSuffix(cfg.Upstream.BaseURL, "/"),
		apiKey:     cfg.Upstream.APIKey,
	}
}

func (c *Client) newRequest(ctx context.Context, path string, payload []byte, stream bool, opts Options) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if opts.Vision {
		req.Header.Set("X-Request-Vision", "true")
	}
	if opts.Initiator != "" {
		req.Header.Set("X-Request-Initiator", opts.Initiator)
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Connection", "keep-alive")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, path string, payload []byte, stream bool, opts Options) (*http.Response, error) {
	req, err := c.newRequest(ctx, path, payload, stream, opts)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// CreateResponses issues payload to the Responses endpoint. If stream is
// false it returns the full body as a single chunk; otherwise it streams
// lines on the returned channel until the body closes or ctx is cancelled.
func (c *Client) CreateResponses(ctx context.Context, payload []byte, stream bool, opts Options) ([]byte, <-chan Chunk, error) {
	return c.create(ctx, "/responses", payload, stream, opts)
}

// CreateChatCompletions issues payload to the ChatCompletions endpoint, with
// the same non-stream/stream contract as CreateResponses.
func (c *Client) CreateChatCompletions(ctx context.Context, payload []byte, stream bool, opts Options) ([]byte, <-chan Chunk, error) {
	return c.create(ctx, "/chat/completions", payload, stream, opts)
}

func (c *Client) create(ctx context.Context, path string, payload []byte, stream bool, opts Options) ([]byte, <-chan Chunk, error) {
	resp, err := c.do(ctx, path, payload, stream, opts)
	if err != nil {
		return nil, nil, err
	}
	if !stream {
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, nil, err
		}
		return body, nil, nil
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer func() { _ = resp.Body.Close() }()
		scanner := bufio.NewScanner(resp.Body)
		buf := make([]byte, 1024*1024)
		scanner.Buffer(buf, 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			select {
			case out <- Chunk{Line: bytes.Clone(line)}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Debugf("upstream stream read error: %v", err)
			select {
			case out <- Chunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return nil, out, nil
}
