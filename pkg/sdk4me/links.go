package sdk4me

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// unixTimestampThreshold is used to distinguish Unix timestamps from relative seconds.
// Values above this (1 billion) are interpreted as Unix timestamps (dates after 2001-09-09).
// Values below are interpreted as seconds from now.
const unixTimestampThreshold = 1_000_000_000

var (
	linkSeparator   = regexp.MustCompile(`,\s*<`)
	linkRelPattern  = regexp.MustCompile(`rel="?([^";]+)"?`)
	absoluteURLHost = regexp.MustCompile(`^https?://[^/]*`)
)

// parseLinkHeader maps each rel of an RFC 8288 Link header to its target.
// The first target wins when a relation is repeated.
func parseLinkHeader(values []string) map[string]string {
	links := map[string]string{}
	for _, value := range values {
		// targets may contain commas themselves, so only split in front of "<"
		for _, part := range linkSeparator.Split(value, -1) {
			segments := strings.Split(part, ";")
			if len(segments) < 2 {
				continue
			}
			target := strings.TrimSpace(segments[0])
			target = strings.TrimSuffix(strings.TrimPrefix(target, "<"), ">")
			if target == "" {
				continue
			}
			for _, param := range segments[1:] {
				m := linkRelPattern.FindStringSubmatch(strings.TrimSpace(param))
				if m == nil {
					continue
				}
				for _, rel := range strings.Fields(m[1]) {
					if _, seen := links[rel]; !seen {
						links[rel] = target
					}
				}
			}
		}
	}
	return links
}

// relativeLink strips the scheme and host from an absolute URL.
func relativeLink(link string) string {
	if link == "" {
		return ""
	}
	return absoluteURLHost.ReplaceAllString(link, "")
}

// RateLimitInfo holds parsed rate limit header values.
type RateLimitInfo struct {
	Limit     *int
	Remaining *int
	ResetAt   *time.Time
	ResetRaw  string
}

// Meta returns a JSON-ready map for CLI output metadata.
func (r *RateLimitInfo) Meta() map[string]any {
	if r == nil {
		return nil
	}
	meta := map[string]any{}
	if r.Limit != nil {
		meta["limit"] = *r.Limit
	}
	if r.Remaining != nil {
		meta["remaining"] = *r.Remaining
	}
	if r.ResetAt != nil {
		meta["reset_at"] = r.ResetAt.UTC().Format(time.RFC3339)
	} else if r.ResetRaw != "" {
		meta["reset"] = r.ResetRaw
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func parseRateLimitInfo(h http.Header, now time.Time) *RateLimitInfo {
	if h == nil {
		return nil
	}
	limitVal := firstHeader(h, "X-RateLimit-Limit", "RateLimit-Limit")
	remainingVal := firstHeader(h, "X-RateLimit-Remaining", "RateLimit-Remaining")
	resetVal := firstHeader(h, "X-RateLimit-Reset", "RateLimit-Reset")
	if limitVal == "" && remainingVal == "" && resetVal == "" {
		return nil
	}

	info := &RateLimitInfo{}
	if v, err := strconv.Atoi(limitVal); err == nil {
		info.Limit = &v
	}
	if v, err := strconv.Atoi(remainingVal); err == nil {
		info.Remaining = &v
	}
	if resetVal != "" {
		info.ResetRaw = resetVal
		if t, ok := parseRateLimitReset(resetVal, now); ok {
			info.ResetAt = &t
		}
	}
	if info.Limit == nil && info.Remaining == nil && info.ResetRaw == "" {
		return nil
	}
	return info
}

func firstHeader(h http.Header, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(h.Get(key)); value != "" {
			return value
		}
	}
	return ""
}

func parseRateLimitReset(value string, now time.Time) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if secs, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		switch {
		case secs > unixTimestampThreshold:
			return time.Unix(secs, 0).UTC(), true
		case secs >= 0:
			return now.Add(time.Duration(secs) * time.Second).UTC(), true
		}
	}
	if t, err := http.ParseTime(trimmed); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// retryAfterDuration parses Retry-After header values (seconds or HTTP date).
func retryAfterDuration(h http.Header, now time.Time) (time.Duration, bool) {
	value := strings.TrimSpace(h.Get("Retry-After"))
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(value); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
