package sdk4me

import (
	"errors"
	"fmt"
)

// ConfigurationError is returned by New when a required option is missing or
// the credentials are inconsistent.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// PaginationError aborts Each when one of the pages is not valid. Records of
// earlier pages have already been visited.
type PaginationError struct {
	Path     string
	Response *Response
}

func (e *PaginationError) Error() string {
	msg := ""
	if e.Response != nil {
		msg = e.Response.Message()
	}
	return fmt.Sprintf("failed to retrieve %s: %s", e.Path, msg)
}

// UploadFailedError means an attachment or CSV file could not be uploaded and
// the write it belonged to was not sent.
type UploadFailedError struct {
	Message string
	Err     error
}

func (e *UploadFailedError) Error() string {
	return e.Message
}

func (e *UploadFailedError) Unwrap() error {
	return e.Err
}

// MonitoringError means the progress of an import or export could not be
// retrieved twice in a row. The job itself may still be running.
type MonitoringError struct {
	Token    string
	Message  string
	Response *Response
}

func (e *MonitoringError) Error() string {
	return e.Message
}

// IsConfigurationError checks if the error is a configuration error.
func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

// IsPaginationError checks if the error is a pagination error.
func IsPaginationError(err error) bool {
	var e *PaginationError
	return errors.As(err, &e)
}

// IsUploadFailedError checks if the error is an upload failure.
func IsUploadFailedError(err error) bool {
	var e *UploadFailedError
	return errors.As(err, &e)
}

// IsMonitoringError checks if the error is a monitoring error.
func IsMonitoringError(err error) bool {
	var e *MonitoringError
	return errors.As(err, &e)
}
