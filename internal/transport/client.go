package transport

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenSource supplies the bearer credential for each request. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed credential.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

type Options struct {
	// HTTPClient defaults to a client without a timeout; streams can be long-lived.
	HTTPClient *http.Client
	// IdleTimeout ends a stream that receives no bytes for this long. Zero disables it.
	IdleTimeout time.Duration
}

// Client talks to the BoardMate API: streaming chat plus the small JSON endpoints
// around it.
type Client struct {
	baseURL     string
	tokens      TokenSource
	http        *http.Client
	idleTimeout time.Duration
}

func NewClient(baseURL string, tokens TokenSource, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: 0,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &Client{
		baseURL:     baseURL,
		tokens:      tokens,
		http:        hc,
		idleTimeout: opts.IdleTimeout,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) headers(accept string) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", accept)
	if tok := c.tokens.Token(); tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
	return h
}

func buildURL(baseURL, path string, query url.Values) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		u = &url.URL{Scheme: "http", Host: "localhost:8080", Path: "/api"}
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}
