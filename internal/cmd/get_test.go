package cmd

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func TestGetRecordJSON(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v1/people/me", jsonResponse(200, `{"id": 6, "name": "Howard Tanner", "primary_email": "howard.tanner@widget.com"}`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"get", "people/me", "-o", "json"}); err != nil {
			t.Fatalf("get failed: %v", err)
		}
	})

	var got map[string]any
	decodeJSON(t, output, &got)
	if got["name"] != "Howard Tanner" || got["id"] != float64(6) {
		t.Errorf("record = %v", got)
	}
	req := handler.last()
	if auth := req.Header.Get("Authorization"); auth != "Bearer test-token" {
		t.Errorf("Authorization = %q", auth)
	}
	if ua := req.Header.Get("User-Agent"); !strings.HasPrefix(ua, "sdk4me-cli/") {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestGetRecordText(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v1/requests/70453", jsonResponse(200, `{"id": 70453, "subject": "Printer jammed", "team": {"id": 12, "name": "Service Desk"}}`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"get", "requests/70453"}); err != nil {
			t.Fatalf("get failed: %v", err)
		}
	})

	for _, want := range []string{"FIELD", "subject", "Printer jammed", "70453", "Service Desk"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestGetCollectionTable(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v1/requests", jsonResponse(200, `[{"id": 1, "subject": "Printer jammed", "status": "assigned"}, {"id": 2, "subject": "New laptop", "status": "in_progress"}]`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"get", "requests"}); err != nil {
			t.Fatalf("get failed: %v", err)
		}
	})

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got:\n%s", output)
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "SUBJECT") || !strings.Contains(lines[0], "STATUS") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], "New laptop") {
		t.Errorf("row = %q", lines[2])
	}
}

func TestGetTypedParams(t *testing.T) {
	handler := newRouteHandler().On("GET", "/v1/requests", jsonResponse(200, `[]`))
	setupTestEnv(t, handler)

	_ = captureStderr(t, func() {
		_ = captureStdout(t, func() {
			err := Execute(context.Background(), []string{
				"get", "requests",
				"-p", "status=assigned,waiting_for",
				"-p", "created_at=>2024-01-01",
				"--raw-param", "subject=true",
			})
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
		})
	})

	query := handler.last().Query
	for _, want := range []string{"status=assigned,waiting_for", "created_at=%3E2024-01-01", "subject=true"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}
}

func TestGetJQInTextMode(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v1/people/me", jsonResponse(200, `{"id": 6, "name": "Howard Tanner"}`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"get", "people/me", "--jq", ".name"}); err != nil {
			t.Fatalf("get failed: %v", err)
		}
	})
	if output != "Howard Tanner\n" {
		t.Errorf("output = %q", output)
	}
}

func TestGetTemplate(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v1/people/me", jsonResponse(200, `{"id": 6, "name": "Howard Tanner"}`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"get", "people/me", "--template", "{{.name}} ({{cell .id}})"}); err != nil {
			t.Fatalf("get failed: %v", err)
		}
	})
	if !strings.HasPrefix(output, "Howard Tanner (6)") {
		t.Errorf("output = %q", output)
	}
}

func TestGetSeveralPathsKeepsOrder(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v1/teams/1", jsonResponse(200, `{"id": 1, "name": "Service Desk"}`)).
		On("GET", "/v1/teams/2", jsonResponse(200, `{"id": 2, "name": "Network"}`)).
		On("GET", "/v1/teams/3", jsonResponse(200, `{"id": 3, "name": "Workplace"}`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"get", "teams/1", "teams/2", "teams/3", "-c", "2", "-o", "json"})
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
	})

	var got []map[string]any
	decodeJSON(t, output, &got)
	if len(got) != 3 {
		t.Fatalf("got %d results", len(got))
	}
	for i, name := range []string{"Service Desk", "Network", "Workplace"} {
		if got[i]["name"] != name {
			t.Errorf("result %d = %v, want %s", i, got[i], name)
		}
	}
}

func TestGetSeveralPathsFailure(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v1/teams/1", jsonResponse(200, `{"id": 1}`)).
		On("GET", "/v1/teams/2", jsonResponse(404, `{"message": "Not Found"}`))
	setupTestEnv(t, handler)

	var err error
	stderr := captureStderr(t, func() {
		_ = captureStdout(t, func() {
			err = Execute(context.Background(), []string{"get", "teams/1", "teams/2"})
		})
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if ExitCode(err) != exitNotFound {
		t.Errorf("exit code = %d", ExitCode(err))
	}
	if !strings.Contains(stderr, "teams/2: 404: Not Found") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestGetInclude(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v1/sites", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Pagination-Per-Page", "25")
			w.Header().Set("X-Pagination-Current-Page", "1")
			w.Header().Set("X-Pagination-Total-Pages", "2")
			w.Header().Set("X-Pagination-Total-Entries", "30")
			w.Header().Set("X-RateLimit-Limit", "3600")
			w.Header().Set("X-RateLimit-Remaining", "3599")
			jsonResponse(200, `[{"id": 1, "name": "Widget HQ"}]`)(w, r)
		})
	setupTestEnv(t, handler)

	stderr := captureStderr(t, func() {
		_ = captureStdout(t, func() {
			if err := Execute(context.Background(), []string{"get", "sites", "--include"}); err != nil {
				t.Fatalf("get failed: %v", err)
			}
		})
	})
	for _, want := range []string{"HTTP 200", "Page 1 of 2, 25 per page, 30 entries", "Rate limit remaining: 3599"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestGetNotFound(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v1/requests/1", jsonResponse(404, `{"message": "Not Found"}`))
	setupTestEnv(t, handler)

	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"get", "requests/1"})
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if ExitCode(err) != exitNotFound {
		t.Errorf("exit code = %d, want %d", ExitCode(err), exitNotFound)
	}
	if !strings.Contains(stderr, "Error: 404: Not Found") || !strings.Contains(stderr, "doesn't exist") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestGetErrorJSON(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v1/requests", jsonResponse(403, `{"message": "Access denied"}`))
	setupTestEnv(t, handler)

	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"get", "requests", "-o", "json", "--compact-json"})
	})
	if ExitCode(err) != exitForbidden {
		t.Errorf("exit code = %d", ExitCode(err))
	}

	var payload struct {
		Error struct {
			Message  string `json:"message"`
			ExitCode int    `json:"exit_code"`
			Status   int    `json:"status"`
		} `json:"error"`
	}
	// The failed request is also logged; the payload is the last line.
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	decodeJSON(t, lines[len(lines)-1], &payload)
	if payload.Error.Status != 403 || payload.Error.ExitCode != exitForbidden || payload.Error.Message != "403: Access denied" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestGetNotConfigured(t *testing.T) {
	isolateConfig(t)

	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"get", "people/me"})
	})
	if ExitCode(err) != exitAuth {
		t.Errorf("exit code = %d, want %d", ExitCode(err), exitAuth)
	}
	if !strings.Contains(stderr, "sdk4me auth login") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestGetServerUnreachable(t *testing.T) {
	server := setupTestEnv(t, newRouteHandler())
	server.Close()

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"get", "people/me"})
	})
	if ExitCode(err) != exitNetwork {
		t.Errorf("exit code = %d, want %d (err: %v)", ExitCode(err), exitNetwork, err)
	}
}
