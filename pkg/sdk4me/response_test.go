package sdk4me

import (
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestResponseParsing(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		reason    string
		body      string
		wantValid bool
		wantMsg   string
		wantSize  int
	}{
		{name: "no content", status: 204, reason: "No Content", wantValid: true, wantSize: 1},
		{name: "empty body with reason", status: 404, reason: "Not Found", wantMsg: "404: Not Found"},
		{name: "empty body without reason", status: 200, wantMsg: "empty body"},
		{name: "whitespace body", status: 502, reason: "Bad Gateway", body: "  \n", wantMsg: "502: Bad Gateway"},
		{name: "message OK", status: 200, body: `{"message":"OK"}`, wantValid: true, wantSize: 1},
		{name: "object", status: 200, body: `{"id":1}`, wantValid: true, wantSize: 1},
		{name: "list", status: 200, body: `[{"id":1},{"id":2}]`, wantValid: true, wantSize: 2},
		{name: "api error", status: 422, body: `{"message":"Validation failed","errors":[["subject","is missing"]]}`, wantMsg: "422: Validation failed"},
		{name: "error without message", status: 403, body: `{"id":1}`, wantMsg: "403: "},
		{name: "success with message", status: 200, body: `{"message":"Something odd"}`, wantMsg: "Something odd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := newResponse(tt.status, tt.reason, nil, []byte(tt.body))
			if resp.Valid() != tt.wantValid {
				t.Errorf("Valid() = %v, want %v", resp.Valid(), tt.wantValid)
			}
			if resp.Message() != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", resp.Message(), tt.wantMsg)
			}
			if resp.Size() != tt.wantSize {
				t.Errorf("Size() = %d, want %d", resp.Size(), tt.wantSize)
			}
		})
	}
}

func TestResponseInvalidJSON(t *testing.T) {
	resp := newResponse(200, "OK", nil, []byte("<html>oops</html>"))
	if resp.Valid() {
		t.Fatal("expected invalid response")
	}
	if !strings.HasPrefix(resp.Message(), "Invalid JSON - ") {
		t.Errorf("Message() = %q", resp.Message())
	}
	if !strings.HasSuffix(resp.Message(), "for:\n<html>oops</html>") {
		t.Errorf("Message() should end with the raw body, got %q", resp.Message())
	}
}

func TestResponseNoContentIsEmptyObject(t *testing.T) {
	resp := newResponse(204, "No Content", nil, nil)
	obj, ok := resp.JSON().(Object)
	if !ok || len(obj) != 0 {
		t.Errorf("JSON() = %#v, want empty Object", resp.JSON())
	}
	if resp.String() != "{}" {
		t.Errorf("String() = %q", resp.String())
	}
}

func TestResponseFailureAndThrottled(t *testing.T) {
	tests := []struct {
		name          string
		resp          *Response
		wantFailure   bool
		wantThrottled bool
	}{
		{"ok", jsonResponse(200, `{}`), false, false},
		{"server error", jsonResponse(500, `{"message":"boom"}`), true, false},
		{"bad gateway", jsonResponse(503, ``), true, false},
		{"not found", jsonResponse(404, `{"message":"Not Found"}`), false, false},
		{"unknown status", jsonResponse(0, ``), true, false},
		{"throttled", jsonResponse(429, `{"message":"Too Many Requests"}`), false, true},
		{"throttled by message", jsonResponse(503, `{"message":"Too Many Requests, slow down"}`), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.Failure(); got != tt.wantFailure {
				t.Errorf("Failure() = %v, want %v", got, tt.wantFailure)
			}
			if got := tt.resp.Throttled(); got != tt.wantThrottled {
				t.Errorf("Throttled() = %v, want %v", got, tt.wantThrottled)
			}
		})
	}
}

func TestResponseGet(t *testing.T) {
	single := jsonResponse(200, `{"id":5,"Team":{"name":"Ops","lead":{"name":"Ann"}}}`)
	if got := single.Get("team", "name"); got != "Ops" {
		t.Errorf("Get(team, name) = %#v, want Ops", got)
	}
	if got := single.Get("team", "lead", "name"); got != "Ann" {
		t.Errorf("Get(team, lead, name) = %#v", got)
	}
	if got := single.Get("team", "missing", "name"); got != nil {
		t.Errorf("Get on missing intermediate = %#v, want nil", got)
	}
	if got := single.Text("id"); got != "5" {
		t.Errorf("Text(id) = %q", got)
	}

	list := jsonResponse(200, `[{"id":1,"team":{"name":"A"}},{"id":2},{"id":3,"team":{"name":"C"}}]`)
	want := []any{"A", nil, "C"}
	if got := list.Get("team", "name"); !reflect.DeepEqual(got, want) {
		t.Errorf("Get on list = %#v, want %#v", got, want)
	}
	if n := len(list.Records()); n != 3 {
		t.Errorf("Records() len = %d", n)
	}
}

func TestResponseExactKeyBeforeCaseInsensitive(t *testing.T) {
	resp := jsonResponse(200, `{"Name":"upper","name":"lower"}`)
	if got := resp.Get("name"); got != "lower" {
		t.Errorf("Get(name) = %#v, want lower", got)
	}
	if got := resp.Get("NAME"); got == nil {
		t.Error("Get(NAME) should match case-insensitively")
	}
}

func TestResponseInvalidHasNoRecords(t *testing.T) {
	resp := jsonResponse(500, `{"message":"boom"}`)
	if resp.Size() != 0 || resp.Count() != 0 {
		t.Errorf("Size() = %d, want 0", resp.Size())
	}
	if resp.Records() != nil {
		t.Errorf("Records() = %#v, want nil", resp.Records())
	}
	if resp.String() != "500: boom" {
		t.Errorf("String() = %q", resp.String())
	}
}

func TestResponsePaginationHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-Pagination-Per-Page", "25")
	h.Set("X-Pagination-Current-Page", "2")
	h.Set("X-Pagination-Total-Pages", "4")
	h.Set("X-Pagination-Total-Entries", "80")
	h.Set("Link", `<https://api.4me.com/v1/requests?page=1&per_page=25>; rel="first", <https://api.4me.com/v1/requests?page=1&per_page=25>; rel="prev", <https://api.4me.com/v1/requests?page=3&per_page=25&fields=id,subject>; rel="next", <https://api.4me.com/v1/requests?page=4&per_page=25>; rel="last"`)
	resp := newResponse(200, "OK", h, []byte(`[]`))

	if resp.PerPage() != 25 || resp.CurrentPage() != 2 || resp.TotalPages() != 4 || resp.TotalEntries() != 80 {
		t.Errorf("pagination = %d/%d/%d/%d", resp.PerPage(), resp.CurrentPage(), resp.TotalPages(), resp.TotalEntries())
	}
	if got := resp.PaginationLink("next"); got != "https://api.4me.com/v1/requests?page=3&per_page=25&fields=id,subject" {
		t.Errorf("PaginationLink(next) = %q", got)
	}
	if got := resp.PaginationRelativeLink("next"); got != "/v1/requests?page=3&per_page=25&fields=id,subject" {
		t.Errorf("PaginationRelativeLink(next) = %q", got)
	}
	if got := resp.PaginationRelativeLink("last"); got != "/v1/requests?page=4&per_page=25" {
		t.Errorf("PaginationRelativeLink(last) = %q", got)
	}
	if got := resp.PaginationLink("unknown"); got != "" {
		t.Errorf("PaginationLink(unknown) = %q", got)
	}
}

func TestResponseMissingPaginationHeaders(t *testing.T) {
	resp := jsonResponse(200, `[]`)
	if resp.PerPage() != 0 || resp.TotalEntries() != 0 {
		t.Error("missing headers should read as 0")
	}
	if resp.PaginationRelativeLink("next") != "" {
		t.Error("no Link header should give no next page")
	}
}

func TestRetryAfterDuration(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	h := http.Header{}
	if _, ok := retryAfterDuration(h, now); ok {
		t.Error("missing header should not be ok")
	}

	h.Set("Retry-After", "7")
	if d, ok := retryAfterDuration(h, now); !ok || d != 7*time.Second {
		t.Errorf("seconds: got %v, %v", d, ok)
	}

	h.Set("Retry-After", now.Add(90*time.Second).Format(http.TimeFormat))
	if d, ok := retryAfterDuration(h, now); !ok || d != 90*time.Second {
		t.Errorf("http date: got %v, %v", d, ok)
	}

	h.Set("Retry-After", "soon")
	if _, ok := retryAfterDuration(h, now); ok {
		t.Error("garbage should not be ok")
	}
}

func TestResponseRateLimit(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Limit", "3600")
	h.Set("X-RateLimit-Remaining", "12")
	h.Set("X-RateLimit-Reset", "1700000000")
	info := newResponse(200, "OK", h, []byte(`{}`)).RateLimit()
	if info == nil {
		t.Fatal("RateLimit() = nil")
	}
	if *info.Limit != 3600 || *info.Remaining != 12 {
		t.Errorf("limit/remaining = %d/%d", *info.Limit, *info.Remaining)
	}
	if info.ResetAt == nil || !info.ResetAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("ResetAt = %v", info.ResetAt)
	}
	meta := info.Meta()
	if meta["limit"] != 3600 || meta["remaining"] != 12 {
		t.Errorf("Meta() = %#v", meta)
	}

	if jsonResponse(200, `{}`).RateLimit() != nil {
		t.Error("RateLimit() without headers should be nil")
	}
}
