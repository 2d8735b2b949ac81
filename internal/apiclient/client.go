package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
)

const (
	// maxErrorMessage bounds how much of an error body ends up in an error message
	maxErrorMessage = 512
	// maxErrorBody bounds how much of a non-2xx body is read
	maxErrorBody = 64 << 10
	// MaxResponseBody bounds a successful response body
	MaxResponseBody = 8 << 20
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Observer is told about every completed request. status is 0 on transport failure.
type Observer func(method string, status int, elapsed time.Duration)

// Client performs bearer authenticated JSON requests against one base URL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	Observer   Observer
}

// New creates a Client. A nil httpClient gets a client with a 10 second timeout.
func New(baseURL string, httpClient *http.Client, tokens TokenSource) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: httpClient,
		Tokens:     tokens,
	}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps well known statuses onto the shared sentinels
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return portalerrors.ErrUnauthenticated
	case http.StatusForbidden:
		return portalerrors.ErrForbidden
	case http.StatusNotFound:
		return portalerrors.ErrNotFound
	}
	return nil
}

// URL builds an absolute URL for path
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.BaseURL + path
}

// Do sends body (JSON encoded when non-nil) and decodes a 2xx response into
// target (when non-nil). The token is read from Tokens on every call.
func (c *Client) Do(ctx context.Context, method, path string, body, target any) error {
	token, err := c.Tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.observe(method, 0, start)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	c.observe(method, resp.StatusCode, start)

	failed := resp.StatusCode < 200 || resp.StatusCode >= 300
	limit := int64(MaxResponseBody)
	if failed {
		limit = maxErrorBody
	}
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if failed {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Message:    ErrorMessage(bodyBytes),
		}
	}
	if int64(len(bodyBytes)) > limit {
		return fmt.Errorf("response body exceeds %d bytes", limit)
	}

	if target == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) observe(method string, status int, start time.Time) {
	if c.Observer != nil {
		c.Observer(method, status, time.Since(start))
	}
}

// ErrorMessage extracts a human readable message from an error body.
// It understands Spring style {"message": ...}, OAuth2 {"error_description": ...}
// and falls back to the raw text.
func ErrorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            any    `json:"error"`
		Detail           string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.ErrorDescription != "":
			return payload.ErrorDescription
		case payload.Detail != "":
			return payload.Detail
		}
		if s, ok := payload.Error.(string); ok && s != "" {
			return s
		}
		return ""
	}

	msg := string(body)
	if len(msg) > maxErrorMessage {
		cut := maxErrorMessage
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return strings.ToValidUTF8(msg, "")
}

// IsStatus reports whether err carries a StatusError and stores it in target.
func IsStatus(err error, target **StatusError) bool {
	return portalerrors.As(err, target)
}
