// Package api is the HTTP client for the event-scheduler service. It speaks
// bearer-authenticated JSON and transparently refreshes an expired access
// token once per request through the session manager.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eventcal/internal/auth"
)

// Client talks to the API at a fixed base URL. All methods are safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	auth    *auth.Manager
	log     zerolog.Logger
}

// New builds a Client. httpClient may be nil; the default has a 15-second
// timeout. The bearer token is injected per attempt, so a refreshed token is
// picked up by the retry of the same request.
func New(baseURL string, mgr *auth.Manager, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		auth:    mgr,
		log:     log,
	}
}

// do sends one JSON request. On a 401 it asks the session manager for fresh
// access and retries exactly once; a second 401 is terminal. Every other
// failure is surfaced unmodified: transport problems as *NetworkError,
// non-2xx responses as *APIError with the server's payload.
func (c *Client) do(ctx context.Context, method, url string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	op := method + " " + url
	requestID := uuid.NewString()

	resp, err := c.send(ctx, method, url, payload, requestID)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if _, err := c.auth.EnsureFreshAccess(ctx); err != nil {
			return err
		}
		c.log.Debug().Str("request_id", requestID).Msg("retrying after token refresh")
		resp, err = c.send(ctx, method, url, payload, requestID)
		if err != nil {
			return &NetworkError{Op: op, Err: err}
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return auth.ErrSessionExpired
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: serverMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte, requestID string) (*http.Response, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.auth.Store().AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-ID", requestID)
	return c.http.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// serverMessage extracts the application error payload, preferring the
// fields the backend actually uses.
func serverMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err == nil {
		for _, key := range []string{"detail", "error", "message"} {
			if v, ok := body[key].(string); ok {
				return v
			}
		}
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(string(data))
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}
