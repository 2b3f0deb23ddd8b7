package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxErrorBody = 64 << 10

// Observer receives one call per completed request. status is 0 when no
// response was received.
type Observer func(path string, status int, elapsed time.Duration, err error)

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Transport is wrapped with otelhttp. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
	Jar       *Jar
	Logger    logr.Logger
	Observer  Observer
}

// Client issues JSON requests against one base URL with a shared cookie jar.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	jar       *Jar
	log       logr.Logger
	observe   Observer
}

// RequestOptions are merged over the client defaults.
type RequestOptions struct {
	// Method defaults to POST when Body is set, otherwise GET.
	Method string
	Body   any
	// BearerToken sets the Authorization header.
	BearerToken string
	Header      http.Header
}

// New creates a Client. BaseURL is required.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("apiclient: base URL required")
	}
	jar := opts.Jar
	if jar == nil {
		jar = NewJar()
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:   base,
		userAgent: opts.UserAgent,
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Jar:       jar,
			Timeout:   timeout,
		},
		jar:     jar,
		log:     opts.Logger,
		observe: opts.Observer,
	}, nil
}

// BaseURL returns the resolved base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Jar returns the cookie jar shared by every request.
func (c *Client) Jar() *Jar {
	return c.jar
}

// ClearCookies empties the cookie jar.
func (c *Client) ClearCookies() {
	c.jar.Reset()
}

// Request sends one request to path and decodes a 2xx JSON body into out
// when out is non-nil.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions, out any) error {
	start := time.Now()
	status, err := c.do(ctx, path, opts, out)
	if c.observe != nil {
		c.observe(path, status, time.Since(start), err)
	}
	return err
}

func (c *Client) do(ctx context.Context, path string, opts RequestOptions, out any) (int, error) {
	var body io.Reader
	if opts.Body != nil {
		raw, err := json.Marshal(opts.Body)
		if err != nil {
			return 0, fmt.Errorf("apiclient: encode body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
		if opts.Body != nil {
			method = http.MethodPost
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if opts.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+opts.BearerToken)
	}
	for k, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		c.log.V(1).Info("request transport failure", "path", path, "error", err.Error())
		return 0, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &RequestFailed{
			Status:  resp.StatusCode,
			Path:    path,
			Message: serverMessage(raw),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return resp.StatusCode, nil
}

func serverMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
