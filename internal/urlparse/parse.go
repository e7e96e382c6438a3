// Package urlparse turns links to 4me records into REST API paths.
package urlparse

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ParsedURL is a 4me link broken into the parts the API client needs.
type ParsedURL struct {
	// APIHost is the REST API host of the environment the link points to.
	APIHost string
	// Account is the account id taken from the host name, empty for API links.
	Account string
	// Path is the API path, e.g. "requests/70453". API links keep their
	// version prefix and query string.
	Path string
	// ResourceType is the first path segment, e.g. "requests".
	ResourceType string
	// ResourceID is the record id, empty for collection links.
	ResourceID string
}

// uiPrefixes are path prefixes of the web UI that have no API equivalent.
var uiPrefixes = []string{"/self-service", "/inbox", "/settings"}

var (
	versionPattern  = regexp.MustCompile(`^/v\d+(\.\d+)*(/|$)`)
	resourcePattern = regexp.MustCompile(`^([a-z][a-z_]*)(?:/([^/]+))?(?:/.*)?$`)
)

// IsURL reports whether s looks like an absolute http(s) link rather than an
// API path.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// Parse extracts the API path from a 4me link. It accepts web UI links such
// as https://wdc.4me.com/requests/70453 (account "wdc", API host
// https://api.4me.com) and API links such as
// https://api.4me.com/v1/people/12?fields=name.
func Parse(rawURL string) (*ParsedURL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("invalid URL: missing scheme (expected https://...)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %q: expected http or https", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}

	result := &ParsedURL{}
	host := parsed.Hostname()
	labels := strings.Split(host, ".")

	path := parsed.Path
	if labels[0] == "api" || versionPattern.MatchString(path) {
		result.APIHost = parsed.Scheme + "://" + parsed.Host
		result.Path = strings.TrimPrefix(path, "/")
		if parsed.RawQuery != "" {
			result.Path += "?" + parsed.RawQuery
		}
		path = versionPattern.ReplaceAllString(path, "/")
	} else {
		if len(labels) < 3 {
			return nil, fmt.Errorf("invalid 4me URL %q: expected an account host such as wdc.4me.com", rawURL)
		}
		result.Account = labels[0]
		apiHost := "api." + strings.Join(labels[1:], ".")
		if port := parsed.Port(); port != "" {
			apiHost += ":" + port
		}
		result.APIHost = parsed.Scheme + "://" + apiHost
		for _, prefix := range uiPrefixes {
			if rest, ok := strings.CutPrefix(path, prefix); ok && (rest == "" || rest[0] == '/') {
				path = rest
				break
			}
		}
		result.Path = strings.Trim(path, "/")
	}

	matches := resourcePattern.FindStringSubmatch(strings.Trim(path, "/"))
	if matches == nil {
		return nil, fmt.Errorf("invalid 4me URL %q: no record type in path", rawURL)
	}
	result.ResourceType = matches[1]
	result.ResourceID = matches[2]
	return result, nil
}

// HasResourceID reports whether the link points to a single record.
func (p *ParsedURL) HasResourceID() bool {
	return p.ResourceID != ""
}
