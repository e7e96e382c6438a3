package sdk4me

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const tooManyRequests = "Too Many Requests"

// Object is a single JSON record returned by the API.
type Object map[string]any

// Get drills into nested objects. It returns nil as soon as a key is missing
// or an intermediate value is not an object.
func (o Object) Get(keys ...string) any {
	return drill(o, keys)
}

// Text returns the value at the key path as text, or "" when absent.
func (o Object) Text(keys ...string) string {
	return text(o.Get(keys...))
}

func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprint(v)
}

// lookup finds key in a JSON object, matching exactly first and then without
// regard to case.
func lookup(value any, key string) any {
	var m map[string]any
	switch v := value.(type) {
	case map[string]any:
		m = v
	case Object:
		m = v
	default:
		return nil
	}
	if found, ok := m[key]; ok {
		return found
	}
	for k, found := range m {
		if strings.EqualFold(k, key) {
			return found
		}
	}
	return nil
}

// Response is the normalized result of a single HTTP exchange. It is never
// nil and is not modified after construction.
type Response struct {
	StatusCode int
	Reason     string
	Header     http.Header
	Body       []byte

	// data is either Object or []any
	data any
}

func newResponse(status int, reason string, header http.Header, body []byte) *Response {
	if header == nil {
		header = http.Header{}
	}
	r := &Response{
		StatusCode: status,
		Reason:     strings.TrimSpace(reason),
		Header:     header,
		Body:       body,
	}
	r.data = r.parse()
	return r
}

func (r *Response) parse() any {
	var data any
	switch {
	case r.StatusCode == http.StatusNoContent:
		data = Object{}
	case r.Empty():
		reason := r.Reason
		if reason == "" {
			reason = "empty body"
		}
		data = Object{"message": reason}
	default:
		var parsed any
		if err := json.Unmarshal(r.Body, &parsed); err != nil {
			data = Object{"message": fmt.Sprintf("Invalid JSON - %s for:\n%s", err, r.Body)}
		} else {
			data = normalizeJSON(parsed)
		}
	}

	if obj, ok := data.(Object); ok && len(obj) == 1 && obj["message"] == "OK" {
		data = Object{}
	}

	if !r.success() {
		obj, ok := data.(Object)
		if !ok {
			obj = Object{}
		}
		msg := ""
		if m, ok := obj["message"]; ok && m != nil {
			msg = fmt.Sprint(m)
		}
		obj["message"] = fmt.Sprintf("%d: %s", r.StatusCode, msg)
		data = obj
	}
	return data
}

func normalizeJSON(parsed any) any {
	switch v := parsed.(type) {
	case map[string]any:
		return Object(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			if m, ok := item.(map[string]any); ok {
				items[i] = Object(m)
			} else {
				items[i] = item
			}
		}
		return items
	default:
		return v
	}
}

func (r *Response) success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON returns the parsed body: an Object for a single record or a []any of
// Objects for a collection.
func (r *Response) JSON() any {
	return r.data
}

// Message is the error message of an invalid response, or "" when valid.
func (r *Response) Message() string {
	obj, ok := r.data.(Object)
	if !ok {
		return ""
	}
	m, ok := obj["message"]
	if !ok || m == nil {
		return ""
	}
	return fmt.Sprint(m)
}

// Valid reports whether the body parsed cleanly and carries no message.
func (r *Response) Valid() bool {
	obj, ok := r.data.(Object)
	if !ok {
		return true
	}
	m, ok := obj["message"]
	return !ok || m == nil
}

// Failure reports whether the server did not respond or answered with a 5xx.
// Only failures are retried.
func (r *Response) Failure() bool {
	if r.Valid() {
		return false
	}
	return r.StatusCode == 0 || (r.StatusCode >= 500 && r.StatusCode < 600)
}

// Throttled reports whether the request was rejected by the rate limiter.
func (r *Response) Throttled() bool {
	return r.StatusCode == http.StatusTooManyRequests || strings.Contains(r.Message(), tooManyRequests)
}

// Empty reports whether the server sent no body at all.
func (r *Response) Empty() bool {
	return len(strings.TrimSpace(string(r.Body))) == 0
}

// RetryAfter returns the Retry-After header as a duration.
func (r *Response) RetryAfter() (time.Duration, bool) {
	return retryAfterDuration(r.Header, time.Now())
}

// RateLimit returns the X-RateLimit-* headers, or nil when absent.
func (r *Response) RateLimit() *RateLimitInfo {
	return parseRateLimitInfo(r.Header, time.Now())
}

// Get retrieves a value by key path. For a collection the result is a []any
// holding the value of every record.
func (r *Response) Get(keys ...string) any {
	if items, ok := r.data.([]any); ok {
		values := make([]any, len(items))
		for i, item := range items {
			values[i] = drill(item, keys)
		}
		return values
	}
	return drill(r.data, keys)
}

// Text returns the value at the key path of a single record as text.
func (r *Response) Text(keys ...string) string {
	if _, ok := r.data.([]any); ok {
		return ""
	}
	return text(drill(r.data, keys))
}

func drill(value any, keys []string) any {
	for _, key := range keys {
		value = lookup(value, key)
		if value == nil {
			return nil
		}
	}
	return value
}

// Records returns the records of the response: the list items of a
// collection, or the single object. Invalid responses have no records.
func (r *Response) Records() []Object {
	if !r.Valid() {
		return nil
	}
	switch v := r.data.(type) {
	case []any:
		records := make([]Object, 0, len(v))
		for _, item := range v {
			if obj, ok := item.(Object); ok {
				records = append(records, obj)
			}
		}
		return records
	case Object:
		return []Object{v}
	}
	return nil
}

// Size is the number of records found: 0 when invalid, the length of a
// collection, 1 otherwise.
func (r *Response) Size() int {
	if !r.Valid() {
		return 0
	}
	if items, ok := r.data.([]any); ok {
		return len(items)
	}
	return 1
}

func (r *Response) Count() int { return r.Size() }

func (r *Response) PerPage() int      { return r.intHeader("X-Pagination-Per-Page") }
func (r *Response) CurrentPage() int  { return r.intHeader("X-Pagination-Current-Page") }
func (r *Response) TotalPages() int   { return r.intHeader("X-Pagination-Total-Pages") }
func (r *Response) TotalEntries() int { return r.intHeader("X-Pagination-Total-Entries") }

func (r *Response) intHeader(name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.Header.Get(name)))
	if err != nil {
		return 0
	}
	return n
}

// PaginationLink returns the absolute URL of the given Link relation
// ("first", "prev", "next", "last"), or "".
func (r *Response) PaginationLink(rel string) string {
	return parseLinkHeader(r.Header.Values("Link"))[rel]
}

// PaginationRelativeLink returns the Link relation with scheme and host
// removed, ready to be requested through the same client.
func (r *Response) PaginationRelativeLink(rel string) string {
	return relativeLink(r.PaginationLink(rel))
}

// String renders the JSON of a valid response, or the message otherwise.
func (r *Response) String() string {
	if !r.Valid() {
		return r.Message()
	}
	return jsonString(r.data)
}
