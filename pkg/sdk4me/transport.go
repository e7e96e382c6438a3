package sdk4me

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var xmlBodyPattern = regexp.MustCompile(`(?i)^\s*<\?xml`)

// Transport sends a single request and always returns a Response. Failures
// to reach the server are reported as a synthetic 500 response.
type Transport interface {
	Send(ctx context.Context, req *Request) *Response
}

// Request is a fully expanded HTTP request: absolute URL and final headers.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Compile-time interface implementation checks
var (
	_ Transport = (*HTTPTransport)(nil)
	_ Transport = (*retryTransport)(nil)
	_ Transport = (*throttleTransport)(nil)
)

// HTTPTransport is the innermost Transport. It performs exactly one HTTP
// exchange per Send.
type HTTPTransport struct {
	client      *http.Client
	logger      *slog.Logger
	readTimeout time.Duration
}

// NewHTTPTransport builds the transport for cfg. A non-nil client is used as
// is, which lets tests point the transport at an httptest server.
func NewHTTPTransport(cfg Config, client *http.Client) (*HTTPTransport, error) {
	if client == nil {
		rt, err := newRoundTripper(cfg)
		if err != nil {
			return nil, err
		}
		client = &http.Client{
			Transport: rt,
			// redirects are reported to the caller, not followed
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &HTTPTransport{client: client, logger: cfg.logger(), readTimeout: cfg.ReadTimeout}, nil
}

func newRoundTripper(cfg Config) (*http.Transport, error) {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		baseTransport = &http.Transport{}
	}
	transport := baseTransport.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12
	transport.TLSClientConfig.InsecureSkipVerify = cfg.InsecureSkipVerify

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("unable to read ca_file %s", cfg.CAFile), Err: err}
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("no certificates found in ca_file %s", cfg.CAFile)}
		}
		transport.TLSClientConfig.RootCAs = pool
	}

	transport.ResponseHeaderTimeout = cfg.ReadTimeout

	if cfg.ProxyHost != "" {
		proxy := &url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%d", cfg.ProxyHost, cfg.ProxyPort)}
		if strings.Contains(cfg.ProxyHost, "://") {
			parsed, err := url.Parse(cfg.ProxyHost)
			if err != nil {
				return nil, &ConfigurationError{Reason: "invalid proxy_host", Err: err}
			}
			proxy = parsed
			if proxy.Port() == "" {
				proxy.Host = fmt.Sprintf("%s:%d", proxy.Hostname(), cfg.ProxyPort)
			}
		}
		if cfg.ProxyUser != "" {
			proxy.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}
	return transport, nil
}

// Send performs the request. It never returns nil.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) *Response {
	target := describeTarget(req.URL)
	t.logger.DebugContext(ctx, fmt.Sprintf("Sending %s request to %s", req.Method, target))

	resp := t.exchange(ctx, req, target)

	switch {
	case resp.Valid():
		if t.logger.Enabled(ctx, slog.LevelDebug) {
			pretty, err := json.MarshalIndent(resp.JSON(), "", "  ")
			if err == nil {
				t.logger.DebugContext(ctx, "Response:\n"+string(pretty))
			}
		}
	case xmlBodyPattern.Match(resp.Body):
		t.logger.DebugContext(ctx, "XML response:\n"+string(resp.Body))
	case resp.StatusCode == http.StatusSeeOther:
		t.logger.DebugContext(ctx, "Redirect: "+resp.Header.Get("Location"))
	default:
		t.logger.ErrorContext(ctx, fmt.Sprintf("%s request to %s failed: %s", req.Method, target, resp.Message()))
	}
	return resp
}

func (t *HTTPTransport) exchange(ctx context.Context, req *Request, target string) *Response {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return noResponse(err, target)
	}
	for key, values := range req.Header {
		httpReq.Header[key] = append([]string(nil), values...)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return noResponse(err, target)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := readBody(httpResp.Body, t.readTimeout, cancel)
	if err != nil {
		return noResponse(err, target)
	}
	return newResponse(httpResp.StatusCode, reasonPhrase(httpResp), httpResp.Header, respBody)
}

// readBody drains body, cancelling the request once no data has arrived for
// timeout. A zero timeout waits forever.
func readBody(body io.Reader, timeout time.Duration, cancel context.CancelFunc) ([]byte, error) {
	if timeout <= 0 {
		return io.ReadAll(body)
	}
	var expired atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		expired.Store(true)
		cancel()
	})
	defer timer.Stop()

	data, err := io.ReadAll(&idleReader{r: body, timer: timer, timeout: timeout})
	if err != nil && expired.Load() {
		return nil, fmt.Errorf("read timeout after %s", timeout)
	}
	return data, err
}

// idleReader pushes the read deadline back whenever data arrives.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

func noResponse(err error, target string) *Response {
	reason := fmt.Sprintf("No Response from Server - %s for '%s'", err, target)
	return newResponse(http.StatusInternalServerError, reason, nil, nil)
}

// reasonPhrase extracts "Not Found" from a status line like "404 Not Found".
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	return strings.TrimSpace(reason)
}

// describeTarget renders a URL as host:port/path for log and error messages.
func describeTarget(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if strings.EqualFold(u.Scheme, "https") {
			port = "443"
		}
	}
	return fmt.Sprintf("%s:%s%s", u.Hostname(), port, u.RequestURI())
}
