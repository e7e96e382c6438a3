package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/spf13/pflag"

	"github.com/sdk4me/sdk4me-go/internal/config"
	"github.com/sdk4me/sdk4me-go/internal/resolve"
	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

const (
	exitOK          = 0
	exitGeneric     = 1
	exitUsage       = 2
	exitAuth        = 3
	exitNotFound    = 4
	exitForbidden   = 5
	exitRateLimited = 6
	exitServer      = 7
	exitNetwork     = 8
)

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	var handled *handledError
	if errors.As(err, &handled) {
		if handled.exitCode != 0 {
			return handled.exitCode
		}
		err = handled.err
	}

	switch {
	case sdk4me.IsMonitoringError(err):
		return exitServer
	case sdk4me.IsConfigurationError(err):
		return exitUsage
	case errors.Is(err, config.ErrNotConfigured):
		return exitAuth
	}
	var unknownType *resolve.UnknownError
	if errors.As(err, &unknownType) {
		return exitUsage
	}
	if status := statusOf(err); status >= 0 {
		return exitCodeForStatus(status)
	}
	if sdk4me.IsUploadFailedError(err) {
		return exitGeneric
	}
	if isNetworkError(err) {
		return exitNetwork
	}
	if isUsageError(err) {
		return exitUsage
	}
	return exitGeneric
}

func exitCodeForStatus(status int) int {
	switch {
	case status == 0:
		return exitNetwork
	case status == http.StatusUnauthorized:
		return exitAuth
	case status == http.StatusForbidden:
		return exitForbidden
	case status == http.StatusNotFound:
		return exitNotFound
	case status == http.StatusTooManyRequests:
		return exitRateLimited
	case status >= 500:
		return exitServer
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return exitUsage
	default:
		return exitGeneric
	}
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "i/o timeout")
}

func isUsageError(err error) bool {
	msg := strings.ToLower(err.Error())
	indicators := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid output format",
		"invalid json body",
		"invalid time expression",
		"invalid filter expression",
		"invalid url",
		"invalid 4me url",
		"point to different accounts",
		"must be",
		"is required",
	}
	for _, indicator := range indicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
