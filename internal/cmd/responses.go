package cmd

import (
	"errors"
	"strings"

	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

const noResponse = "No Response from Server"

// responseError reports a response that is not valid.
type responseError struct {
	resp *sdk4me.Response
}

func (e *responseError) Error() string {
	return e.resp.Message()
}

// StatusCode is the HTTP status, or 0 when the server never answered.
func (e *responseError) StatusCode() int {
	if strings.Contains(e.resp.Message(), noResponse) {
		return 0
	}
	return e.resp.StatusCode
}

// checkResponse turns an invalid response into an error.
func checkResponse(resp *sdk4me.Response) error {
	if resp.Valid() {
		return nil
	}
	return &responseError{resp: resp}
}

// failedResponse returns the invalid response carried by err, if any.
func failedResponse(err error) (*sdk4me.Response, bool) {
	var respErr *responseError
	if errors.As(err, &respErr) {
		return respErr.resp, true
	}
	var pageErr *sdk4me.PaginationError
	if errors.As(err, &pageErr) && pageErr.Response != nil {
		return pageErr.Response, true
	}
	var monitorErr *sdk4me.MonitoringError
	if errors.As(err, &monitorErr) && monitorErr.Response != nil {
		return monitorErr.Response, true
	}
	return nil, false
}

// statusOf is the HTTP status behind err, 0 for no response, -1 when err
// did not come from a response.
func statusOf(err error) int {
	resp, ok := failedResponse(err)
	if !ok {
		return -1
	}
	return (&responseError{resp: resp}).StatusCode()
}
