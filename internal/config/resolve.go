package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

// Environment variables that override the stored profile.
const (
	EnvProfile          = "SDK4ME_PROFILE"
	EnvHost             = "SDK4ME_HOST"
	EnvAPIVersion       = "SDK4ME_API_VERSION"
	EnvAccessToken      = "SDK4ME_ACCESS_TOKEN"
	EnvAPIToken         = "SDK4ME_API_TOKEN"
	EnvAccount          = "SDK4ME_ACCOUNT"
	EnvSource           = "SDK4ME_SOURCE"
	EnvMaxRetryTime     = "SDK4ME_MAX_RETRY_TIME"
	EnvBlockAtRateLimit = "SDK4ME_BLOCK_AT_RATE_LIMIT"
	EnvMaxThrottleTime  = "SDK4ME_MAX_THROTTLE_TIME"
	EnvProxyHost        = "SDK4ME_PROXY_HOST"
	EnvProxyPort        = "SDK4ME_PROXY_PORT"
	EnvProxyUser        = "SDK4ME_PROXY_USER"
	EnvProxyPassword    = "SDK4ME_PROXY_PASSWORD"
	EnvCAFile           = "SDK4ME_CA_FILE"
)

// Settings is a profile merged with its credentials and the environment.
type Settings struct {
	Name        string
	Source      string
	Profile     Profile
	Credentials Credentials
}

// Resolve loads the named profile (or $SDK4ME_PROFILE, or the current one)
// and applies SDK4ME_* overrides. With a token in the environment no stored
// profile is needed.
func Resolve(name string) (Settings, error) {
	if name == "" {
		name = strings.TrimSpace(os.Getenv(EnvProfile))
	}

	s := Settings{Name: name, Source: "profile"}
	profile, creds, err := LoadProfile(name)
	switch {
	case err == nil:
		s.Profile = profile
		s.Credentials = creds
	case errors.Is(err, ErrNotConfigured) && (os.Getenv(EnvAccessToken) != "" || os.Getenv(EnvAPIToken) != ""):
		s.Source = "env"
	default:
		return Settings{}, err
	}
	if s.Name == "" {
		if f, err := Load(); err == nil {
			s.Name = f.CurrentName()
		}
	}

	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	if s.Credentials.AccessToken == "" && s.Credentials.APIToken == "" {
		return Settings{}, ErrNotConfigured
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	setString(&s.Profile.Host, EnvHost)
	setString(&s.Profile.APIVersion, EnvAPIVersion)
	setString(&s.Profile.Account, EnvAccount)
	setString(&s.Profile.Source, EnvSource)
	setString(&s.Profile.ProxyHost, EnvProxyHost)
	setString(&s.Profile.ProxyUser, EnvProxyUser)
	setString(&s.Profile.CAFile, EnvCAFile)
	setString(&s.Credentials.ProxyPassword, EnvProxyPassword)

	if token := strings.TrimSpace(os.Getenv(EnvAccessToken)); token != "" {
		s.Credentials = Credentials{AccessToken: token, ProxyPassword: s.Credentials.ProxyPassword}
	} else if token := strings.TrimSpace(os.Getenv(EnvAPIToken)); token != "" {
		s.Credentials = Credentials{APIToken: token, ProxyPassword: s.Credentials.ProxyPassword}
	}

	if err := setDuration(&s.Profile.MaxRetryTime, EnvMaxRetryTime); err != nil {
		return err
	}
	if err := setDuration(&s.Profile.MaxThrottleTime, EnvMaxThrottleTime); err != nil {
		return err
	}
	if v := strings.TrimSpace(os.Getenv(EnvBlockAtRateLimit)); v != "" {
		block, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s must be a boolean: %w", EnvBlockAtRateLimit, err)
		}
		s.Profile.BlockAtRateLimit = block
	}
	if v := strings.TrimSpace(os.Getenv(EnvProxyPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", EnvProxyPort, err)
		}
		s.Profile.ProxyPort = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// setDuration accepts Go durations ("90m") and plain seconds ("5400").
func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(seconds) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s must be a duration or a number of seconds: %w", key, err)
	}
	*dst = d
	return nil
}

// Options converts the settings into client options. Zero values keep the
// client defaults.
func (s Settings) Options() []sdk4me.Option {
	p := s.Profile
	var opts []sdk4me.Option
	if p.Host != "" {
		opts = append(opts, sdk4me.WithHost(p.Host))
	}
	if p.APIVersion != "" {
		opts = append(opts, sdk4me.WithAPIVersion(p.APIVersion))
	}
	if s.Credentials.AccessToken != "" {
		opts = append(opts, sdk4me.WithAccessToken(s.Credentials.AccessToken))
	} else if s.Credentials.APIToken != "" {
		opts = append(opts, sdk4me.WithAPIToken(s.Credentials.APIToken))
	}
	if p.Account != "" {
		opts = append(opts, sdk4me.WithAccount(p.Account))
	}
	if p.Source != "" {
		opts = append(opts, sdk4me.WithSource(p.Source))
	}
	if p.MaxRetryTime != 0 {
		opts = append(opts, sdk4me.WithMaxRetryTime(p.MaxRetryTime))
	}
	if p.BlockAtRateLimit {
		opts = append(opts, sdk4me.WithBlockAtRateLimit(true, p.MaxThrottleTime))
	}
	if p.ProxyHost != "" {
		opts = append(opts, sdk4me.WithProxy(p.ProxyHost, p.ProxyPort, p.ProxyUser, s.Credentials.ProxyPassword))
	}
	if p.CAFile != "" {
		opts = append(opts, sdk4me.WithCAFile(p.CAFile))
	}
	if p.RaiseAttachmentErrors {
		opts = append(opts, sdk4me.WithRaiseAttachmentErrors(true))
	}
	return opts
}
