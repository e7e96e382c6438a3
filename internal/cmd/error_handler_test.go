package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sdk4me/sdk4me-go/internal/config"
	"github.com/sdk4me/sdk4me-go/internal/resolve"
	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"nil", nil, nil},
		{"not configured", config.ErrNotConfigured, []string{"No 4me credentials found.", "sdk4me auth login", "SDK4ME_ACCESS_TOKEN"}},
		{"configuration", &sdk4me.ConfigurationError{Reason: "access_token and api_token are mutually exclusive"}, []string{"Configuration error: access_token and api_token", "sdk4me auth status"}},
		{"monitoring", &sdk4me.MonitoringError{Token: "tok", Message: "Unable to monitor progress for 'people' export. 502: gateway"}, []string{"may still be running", "sdk4me get export/tok"}},
		{"upload", &sdk4me.UploadFailedError{Message: "Failed to queue people import. file does not exist: a.csv"}, []string{"file does not exist: a.csv", "--debug"}},
		{"unknown type", &resolve.UnknownError{Kind: "export", Type: "peple", Suggestions: []string{"people"}}, []string{`Error: unknown export type "peple", did you mean: people`}},
		{"plain", errors.New("boom"), []string{"Error: boom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HandleError(tt.err)
			if tt.want == nil && got != "" {
				t.Errorf("HandleError(nil) = %q", got)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("HandleError() missing %q:\n%s", want, got)
				}
			}
		})
	}
}

func TestHandleErrorForStatus(t *testing.T) {
	tests := map[int]string{
		401: "access token may be invalid",
		403: "lacks the scope",
		404: "doesn't exist",
		422: "Check the parameters",
		429: "--block-at-rate-limit",
		500: "Server error",
		409: "--debug",
	}
	for status, want := range tests {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			err := checkResponse(responseFor(t, status, `{"message": "nope"}`))
			got := HandleError(err)
			if !strings.HasPrefix(got, fmt.Sprintf("Error: %d: nope", status)) {
				t.Errorf("message = %q", got)
			}
			if !strings.Contains(got, want) {
				t.Errorf("suggestions missing %q:\n%s", want, got)
			}
		})
	}
}

func TestErrorPayload(t *testing.T) {
	resp := responseFor(t, 429, `{"message": "Too Many Requests"}`)
	payload := errorPayload(fmt.Errorf("list: %w", checkResponse(resp)))

	inner, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("payload = %v", payload)
	}
	if inner["status"] != 429 || inner["exit_code"] != exitRateLimited {
		t.Errorf("payload = %v", inner)
	}
	if inner["message"] != "list: 429: Too Many Requests" {
		t.Errorf("message = %v", inner["message"])
	}

	plain := errorPayload(errors.New("boom"))["error"].(map[string]any)
	if _, ok := plain["status"]; ok {
		t.Errorf("plain errors carry no status: %v", plain)
	}
}
