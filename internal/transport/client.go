// Package transport is the authenticated JSON-over-HTTP client the registry
// clients are built on.
package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/errors"
)

// UserAgent is sent with every request.
const UserAgent = "mirrorsync"

// Client performs authenticated requests against one registry.
type Client struct {
	source     string
	credential string
	auth       Authenticator
	http       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New returns a client for source that authenticates with credential using auth.
func New(source, credential string, auth Authenticator, opts ...Option) *Client {
	if auth == nil {
		auth = NoAuth{}
	}
	c := &Client{
		source:     source,
		credential: credential,
		auth:       auth,
		http:       &http.Client{Timeout: constants.DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns the registry name used in errors.
func (c *Client) Source() string {
	return c.source
}

// Do sends req with authentication and JSON headers applied.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.credential != "" {
		c.auth.Apply(req, c.credential)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, errors.WrapAPI(c.source, 0, ctxErr)
		}
		return nil, errors.WrapAPI(c.source, 0, err)
	}
	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapResource("create", "request", "GET "+url, err)
	}
	return c.Do(req)
}

// GetJSON performs a GET request and decodes a 200 response into target.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	return DecodeResponse(resp, c.source, target)
}
