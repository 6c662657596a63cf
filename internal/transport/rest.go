package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Envelope is the {status, message, data} wrapper every BoardMate REST response uses.
type Envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// StatusError is returned for non-2xx REST responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
}

// GetJSON fetches path and decodes the envelope's data into out. A null or
// missing data field leaves out untouched.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	env, err := c.do(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) || out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, path string, query url.Values) error {
	_, err := c.do(ctx, http.MethodDelete, path, query)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values) (*Envelope, error) {
	target := buildURL(c.baseURL, path, query)
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = c.headers("application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	env := &Envelope{}
	if len(bytes.TrimSpace(body)) > 0 {
		if jsonErr := json.Unmarshal(body, env); jsonErr != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("decode %s response: %w", path, jsonErr)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Message:    env.Message,
		}
	}
	return env, nil
}
