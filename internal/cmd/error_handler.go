package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sdk4me/sdk4me-go/internal/config"
	"github.com/sdk4me/sdk4me-go/internal/resolve"
	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

// HandleError processes an error and returns a user-friendly message with suggestions
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder

	var (
		configErr  *sdk4me.ConfigurationError
		uploadErr  *sdk4me.UploadFailedError
		monitorErr *sdk4me.MonitoringError
		unknownErr *resolve.UnknownError
	)

	switch {
	case errors.Is(err, config.ErrNotConfigured):
		msg.WriteString("No 4me credentials found.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: sdk4me auth login --host https://api.4me.com --access-token TOKEN\n")
		msg.WriteString("  - Or export SDK4ME_ACCESS_TOKEN (and SDK4ME_HOST)\n")

	case errors.As(err, &configErr):
		fmt.Fprintf(&msg, "Configuration error: %s\n\n", configErr.Reason)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the profile: sdk4me auth status\n")
		msg.WriteString("  - Set exactly one of access_token and api_token\n")

	case errors.As(err, &monitorErr):
		fmt.Fprintf(&msg, "%s\n\n", monitorErr.Message)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - The job may still be running in 4me\n")
		if monitorErr.Token != "" {
			fmt.Fprintf(&msg, "  - Check its progress later with: sdk4me get %s\n", jobPath(monitorErr))
		}

	case errors.As(err, &uploadErr):
		fmt.Fprintf(&msg, "%s\n\n", uploadErr.Message)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check that the file exists and is readable\n")
		msg.WriteString("  - Use --debug to see the upload requests\n")

	case errors.As(err, &unknownErr):
		fmt.Fprintf(&msg, "Error: %s\n", unknownErr.Error())

	default:
		if status := statusOf(err); status >= 0 {
			fmt.Fprintf(&msg, "Error: %s\n\n", err.Error())
			msg.WriteString(suggestionsForStatusCode(status))
			break
		}
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
	}

	return msg.String()
}

func jobPath(e *sdk4me.MonitoringError) string {
	kind := "import"
	if strings.Contains(e.Message, "export") {
		kind = "export"
	}
	return kind + "/" + e.Token
}

func suggestionsForStatusCode(code int) string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggestions:\n")

	switch code {
	case 0:
		suggestions.WriteString("  - Check the host: sdk4me auth status\n")
		suggestions.WriteString("  - Check your network connection and proxy settings\n")

	case 400, 422:
		suggestions.WriteString("  - Check the parameters and field values\n")
		suggestions.WriteString("  - Use --debug to see the full request\n")

	case 401:
		suggestions.WriteString("  - Your access token may be invalid or expired\n")
		suggestions.WriteString("  - Run: sdk4me auth login\n")

	case 403:
		suggestions.WriteString("  - The token lacks the scope for this action\n")
		suggestions.WriteString("  - Check the --account you act in\n")

	case 404:
		suggestions.WriteString("  - The record or path doesn't exist\n")
		suggestions.WriteString("  - Check the id and the api version\n")

	case 429:
		suggestions.WriteString("  - The rate limit was reached\n")
		suggestions.WriteString("  - Use --block-at-rate-limit to wait and retry\n")

	default:
		if code >= 500 {
			suggestions.WriteString("  - Server error, retry later\n")
			suggestions.WriteString("  - Increase --max-retry-time for long running scripts\n")
		} else {
			suggestions.WriteString("  - Use --debug for more details\n")
		}
	}

	return suggestions.String()
}

// errorPayload is the JSON written to stderr in JSON output modes.
func errorPayload(err error) map[string]any {
	payload := map[string]any{
		"message":   err.Error(),
		"exit_code": ExitCode(err),
	}
	if resp, ok := failedResponse(err); ok {
		payload["status"] = resp.StatusCode
		if info := resp.RateLimit().Meta(); info != nil {
			payload["rate_limit"] = info
		}
	}
	return map[string]any{"error": payload}
}
