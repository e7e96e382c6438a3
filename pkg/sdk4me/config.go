package sdk4me

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Default configuration values
const (
	DefaultHost            = "https://api.4me.com"
	DefaultAPIVersion      = "v1"
	DefaultReadTimeout     = 25 * time.Second
	DefaultMaxRetryTime    = 5400 * time.Second
	DefaultMaxThrottleTime = 3660 * time.Second
	DefaultProxyPort       = 8080
)

var apiVersionPattern = regexp.MustCompile(`^v[\d.]+$`)

// Config holds the settings of a single Client. A Client copies its Config at
// construction time; later changes to the original value have no effect.
type Config struct {
	// Host is the 4me REST API host including the scheme.
	Host string
	// APIVersion is inserted in front of every path that is not yet versioned.
	APIVersion string

	// AccessToken is sent as a Bearer token. Preferred over APIToken.
	AccessToken string
	// APIToken is sent with Basic authentication. Deprecated by 4me.
	APIToken string

	// Account selects a different (trusted) account via X-4me-Account.
	Account string
	// Source is sent as X-4me-Source and stored on created records.
	Source string
	// UserAgent replaces the default User-Agent header.
	UserAgent string

	ReadTimeout time.Duration

	// MaxRetryTime is the budget for retrying failed requests. Zero or
	// negative disables retries; one attempt is always made.
	MaxRetryTime time.Duration

	// BlockAtRateLimit makes requests wait and retry when throttled, for at
	// most MaxThrottleTime.
	BlockAtRateLimit bool
	MaxThrottleTime  time.Duration

	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string

	// CAFile is a PEM bundle used instead of the system roots.
	CAFile string
	// InsecureSkipVerify disables TLS verification. Diagnostics only.
	InsecureSkipVerify bool

	// RaiseAttachmentErrors aborts a write when a single attachment fails to
	// upload. Otherwise the failed attachment is logged and left out.
	RaiseAttachmentErrors bool

	Logger *slog.Logger
}

// DefaultConfig returns the process-wide defaults every client starts from.
func DefaultConfig() Config {
	return Config{
		Host:            DefaultHost,
		APIVersion:      DefaultAPIVersion,
		ReadTimeout:     DefaultReadTimeout,
		MaxRetryTime:    DefaultMaxRetryTime,
		MaxThrottleTime: DefaultMaxThrottleTime,
		ProxyPort:       DefaultProxyPort,
	}
}

// Validate checks the required options and the credential pair.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required, validation.By(httpURL)),
		validation.Field(&c.APIVersion, validation.Required, validation.Match(apiVersionPattern)),
		validation.Field(&c.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ProxyPort, validation.Min(0), validation.Max(65535)),
	)
	if err != nil {
		return &ConfigurationError{Reason: err.Error(), Err: err}
	}

	hasAccess := strings.TrimSpace(c.AccessToken) != ""
	hasAPI := strings.TrimSpace(c.APIToken) != ""
	switch {
	case hasAccess && hasAPI:
		return &ConfigurationError{Reason: "access_token and api_token are mutually exclusive"}
	case !hasAccess && !hasAPI:
		return &ConfigurationError{Reason: "missing required configuration option access_token"}
	}
	return nil
}

func httpURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Option customizes a Client during construction. Later options override
// earlier ones.
type Option func(*Client)

// WithConfig replaces the whole configuration. Options given after it still
// apply on top.
func WithConfig(cfg Config) Option {
	return func(c *Client) { c.cfg = cfg }
}

func WithHost(host string) Option {
	return func(c *Client) { c.cfg.Host = strings.TrimSuffix(host, "/") }
}

func WithAPIVersion(version string) Option {
	return func(c *Client) { c.cfg.APIVersion = version }
}

// WithAccessToken sets the bearer credential and clears any API token.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.cfg.AccessToken = token
		c.cfg.APIToken = ""
	}
}

// WithAPIToken sets the basic-auth credential and clears any access token.
func WithAPIToken(token string) Option {
	return func(c *Client) {
		c.cfg.APIToken = token
		c.cfg.AccessToken = ""
	}
}

func WithAccount(account string) Option {
	return func(c *Client) { c.cfg.Account = account }
}

func WithSource(source string) Option {
	return func(c *Client) { c.cfg.Source = source }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.cfg.UserAgent = ua }
}

func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.cfg.ReadTimeout = d }
}

// WithMaxRetryTime sets the retry budget. A negative value disables retries.
func WithMaxRetryTime(d time.Duration) Option {
	return func(c *Client) { c.cfg.MaxRetryTime = d }
}

// WithBlockAtRateLimit enables waiting on HTTP 429 for at most maxWait.
// A zero maxWait keeps the configured MaxThrottleTime.
func WithBlockAtRateLimit(block bool, maxWait time.Duration) Option {
	return func(c *Client) {
		c.cfg.BlockAtRateLimit = block
		if maxWait != 0 {
			c.cfg.MaxThrottleTime = maxWait
		}
	}
}

func WithProxy(host string, port int, user, password string) Option {
	return func(c *Client) {
		c.cfg.ProxyHost = host
		if port > 0 {
			c.cfg.ProxyPort = port
		}
		c.cfg.ProxyUser = user
		c.cfg.ProxyPassword = password
	}
}

func WithCAFile(path string) Option {
	return func(c *Client) { c.cfg.CAFile = path }
}

// WithInsecureSkipVerify disables certificate verification.
func WithInsecureSkipVerify() Option {
	return func(c *Client) { c.cfg.InsecureSkipVerify = true }
}

func WithRaiseAttachmentErrors(raise bool) Option {
	return func(c *Client) { c.cfg.RaiseAttachmentErrors = raise }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.cfg.Logger = logger }
}
