package sdk4me

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// Version is reported in the default User-Agent.
const Version = "1.0.0"

// MaxPageSize is the largest page the API serves; Each always asks for it.
const MaxPageSize = 100

var versionedPath = regexp.MustCompile(`^/v[\d.]+/`)

// Client is a 4me REST API client. It holds no per-request state, so a single
// Client may be shared between goroutines.
type Client struct {
	cfg        Config
	httpClient *http.Client
	core       Transport
	transport  Transport
	fs         afero.Fs
	clock      Clock
	logger     *slog.Logger
}

// WithHTTPClient sends requests through hc instead of a client built from the
// proxy and TLS settings.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTransport replaces the innermost transport. Retry and throttle
// handling still wrap it.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.core = t }
}

// WithFs sets the filesystem attachments and import files are read from.
func WithFs(fs afero.Fs) Option {
	return func(c *Client) { c.fs = fs }
}

// WithClock replaces the wall clock used for backoff and polling.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// New creates a Client from DefaultConfig with opts applied in order.
func New(opts ...Option) (*Client, error) {
	c := &Client{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg.Host = strings.TrimSuffix(c.cfg.Host, "/")
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	c.logger = c.cfg.logger()
	if c.cfg.AccessToken == "" {
		c.logger.Info("DEPRECATED: Use of api_token is deprecated, switch to using access_token instead. -- https://developer.4me.com/v1/#authentication")
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.core == nil {
		core, err := NewHTTPTransport(c.cfg, c.httpClient)
		if err != nil {
			return nil, err
		}
		c.core = core
	}

	c.transport = &throttleTransport{
		next: &retryTransport{
			next:   c.core,
			budget: c.cfg.MaxRetryTime,
			clock:  c.clock,
			logger: c.logger,
		},
		enabled: c.cfg.BlockAtRateLimit,
		budget:  c.cfg.MaxThrottleTime,
		clock:   c.clock,
		logger:  c.logger,
	}
	return c, nil
}

// Config returns a copy of the resolved configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Logger returns the logger the client reports to.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Get sends a GET request. The returned Response may be invalid.
func (c *Client) Get(ctx context.Context, path string, params Params, header http.Header) *Response {
	return c.transport.Send(ctx, &Request{
		Method: http.MethodGet,
		URL:    c.url(c.expandPath(path, params)),
		Header: c.expandHeader(header),
	})
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, params Params, header http.Header) *Response {
	return c.transport.Send(ctx, &Request{
		Method: http.MethodDelete,
		URL:    c.url(c.expandPath(path, params)),
		Header: c.expandHeader(header),
	})
}

// Post sends data as a JSON body. Attachments referenced in data are uploaded
// first; an error is only returned when that upload fails.
func (c *Client) Post(ctx context.Context, path string, data Data, header http.Header) (*Response, error) {
	return c.write(ctx, http.MethodPost, path, data, header)
}

func (c *Client) Patch(ctx context.Context, path string, data Data, header http.Header) (*Response, error) {
	return c.write(ctx, http.MethodPatch, path, data, header)
}

func (c *Client) Put(ctx context.Context, path string, data Data, header http.Header) (*Response, error) {
	return c.write(ctx, http.MethodPut, path, data, header)
}

func (c *Client) write(ctx context.Context, method, path string, data Data, header http.Header) (*Response, error) {
	data = data.clone()
	if err := c.uploadAttachments(ctx, path, data); err != nil {
		return nil, err
	}
	body, err := json.Marshal(data.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.transport.Send(ctx, &Request{
		Method: method,
		URL:    c.url(c.expandPath(path, nil)),
		Header: c.expandHeader(header),
		Body:   body,
	}), nil
}

// expandPath makes path absolute and versioned and appends params in order.
func (c *Client) expandPath(path string, params Params) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !versionedPath.MatchString(path) {
		path = "/" + c.cfg.APIVersion + path
	}

	if len(params) == 0 {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + params.Encode()
	}
	return path + "?" + params.Encode()
}

func (c *Client) url(path string) string {
	return c.cfg.Host + path
}

// expandHeader returns the default headers with overrides applied per key.
func (c *Client) expandHeader(overrides http.Header) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", "sdk4me-go/"+Version)
	if c.cfg.Account != "" {
		h.Set("X-4me-Account", c.cfg.Account)
	}
	h.Set("Authorization", c.authorization())
	if c.cfg.Source != "" {
		h.Set("X-4me-Source", c.cfg.Source)
	}
	if c.cfg.UserAgent != "" {
		h.Set("User-Agent", c.cfg.UserAgent)
	}
	for key, values := range overrides {
		h[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}
	return h
}

func (c *Client) authorization() string {
	if c.cfg.AccessToken != "" {
		return "Bearer " + c.cfg.AccessToken
	}
	credentials := c.cfg.APIToken
	if !strings.Contains(credentials, ":") {
		credentials += ":x"
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
}
