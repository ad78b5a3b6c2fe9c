// Package anthropic provides a minimal client for the Anthropic Messages
// API, including incremental parsing of its streaming wire format.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// apiVersion is sent in the anthropic-version header on every request.
	apiVersion = "2023-06-01"

	messagesPath = "/v1/messages"

	// maxErrorBody limits how much of an error response body is read.
	maxErrorBody = 64 * 1024

	// requestTimeout bounds a complete non-streaming exchange.
	requestTimeout = 120 * time.Second
)

// Message roles accepted by the API.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Sentinel errors for remote status classes. Use errors.Is to check.
var (
	// ErrNoAPIKey indicates the client was built without a credential.
	ErrNoAPIKey = errors.New("ANTHROPIC_API_KEY not set")

	// ErrAuthFailed indicates an invalid or expired API key (401/403).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests (429).
	ErrRateLimited = errors.New("rate limited")

	// ErrServerError indicates a 5xx response.
	ErrServerError = errors.New("server error")
)

// APIError carries the HTTP status of a non-2xx response that does not map
// to one of the sentinel errors.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error (HTTP %d)", e.Status)
}

// ChatMessage is one role/content pair of a conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnRequest describes one conversation turn to send.
type TurnRequest struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []ChatMessage
}

// messageRequest is the JSON body of a Messages API call.
type messageRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []ChatMessage `json:"messages"`
	Stream    bool          `json:"stream,omitempty"`
}

// contentBlock is one block of a non-streaming response.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// messageResponse is the non-streaming response document.
type messageResponse struct {
	Content []contentBlock `json:"content"`
}

// apiErrorResponse is the structured error body the API returns.
type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the Anthropic Messages API.
type Client struct {
	apiKey  string
	baseURL string

	// httpClient has an overall timeout and serves non-streaming calls.
	httpClient *http.Client

	// streamClient has no overall timeout; a streaming response may stay
	// open for the full length of a generated reply. Connect, TLS and
	// response-header timeouts stay finite so an abandoned exchange cannot
	// hang forever.
	streamClient *http.Client
}

// NewClient creates a client for the given API key. An empty key is allowed;
// requests will then fail with ErrNoAPIKey.
func NewClient(apiKey string) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
		streamClient: &http.Client{
			Transport: transport,
		},
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Send performs a non-streaming exchange and returns the first text block.
func (c *Client) Send(ctx context.Context, turn TurnRequest) (string, error) {
	resp, err := c.post(ctx, c.httpClient, turn, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var msg messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("no text in response")
}

// Stream performs a streaming exchange, calling emit for every chunk the
// wire format yields, in order. It returns nil once a terminal chunk has
// been emitted (synthesizing Done when the connection closes without one)
// and an error only when no terminal chunk was delivered: a non-2xx status
// (classified by status class) or a transport failure. Callers own turning
// that error into the stream's single terminal chunk.
func (c *Client) Stream(ctx context.Context, turn TurnRequest, emit func(Chunk)) error {
	resp, err := c.post(ctx, c.streamClient, turn, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	parser := NewStreamParser()
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, chunk := range parser.Feed(buf[:n]) {
				emit(chunk)
				if chunk.Kind != ChunkText {
					return nil
				}
			}
		}
		if err == io.EOF {
			for _, chunk := range parser.Close() {
				emit(chunk)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
	}
}

// post sends the Messages API request and classifies non-2xx responses.
func (c *Client) post(ctx context.Context, hc *http.Client, turn TurnRequest, stream bool) (*http.Response, error) {
	if !c.IsConfigured() {
		return nil, ErrNoAPIKey
	}

	body := messageRequest{
		Model:     turn.Model,
		MaxTokens: turn.MaxTokens,
		System:    turn.System,
		Messages:  turn.Messages,
		Stream:    stream,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("content-type", "application/json")
	if stream {
		req.Header.Set("accept", "text/event-stream")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(resp.StatusCode, raw)
	}

	return resp, nil
}

// statusError maps a non-2xx response to the error taxonomy. The API's
// structured error message is preserved when the body parses.
func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case status >= 500:
		return fmt.Errorf("%w (HTTP %d): %s", ErrServerError, status, msg)
	default:
		return &APIError{Status: status, Message: msg}
	}
}
