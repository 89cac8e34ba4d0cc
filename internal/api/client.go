package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenSource supplies the bearer token for every call. The client never
// stores or refreshes tokens itself.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("no bearer token configured")
	}
	return string(s), nil
}

// Client talks to the exam backend REST API.
type Client struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
}

// New constructs a client for the given base URL. A zero timeout means
// requests are bounded only by their context.
func New(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

func examPath(examID, action string) string {
	p := "/exam/" + url.PathEscape(examID)
	if action != "" {
		p += "/" + action
	}
	return p
}

// do sends a JSON request and returns the raw body and status. Bodies of
// non-2xx responses are returned unchanged so callers can inspect them.
func (c *Client) do(ctx context.Context, method, path string, in interface{}, auth bool) ([]byte, int, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("get token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

type errorResponse struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// decodeHTTPError understands {"message":"..."}, {"error":"..."} and the
// enveloped {"error":{"code":"...","message":"..."}} shapes.
func decodeHTTPError(status int, body []byte) error {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &HTTPError{Status: status}
	}
	if resp.Message != "" {
		return &HTTPError{Status: status, Message: resp.Message}
	}
	if len(resp.Error) > 0 {
		var s string
		if json.Unmarshal(resp.Error, &s) == nil && s != "" {
			return &HTTPError{Status: status, Message: s}
		}
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(resp.Error, &nested) == nil {
			msg := nested.Message
			if msg == "" {
				msg = nested.Code
			}
			return &HTTPError{Status: status, Message: msg}
		}
	}
	return &HTTPError{Status: status}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
