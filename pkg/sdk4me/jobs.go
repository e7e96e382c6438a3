package sdk4me

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
)

const (
	// PollInterval is the wait between progress checks of a running job.
	PollInterval = 30 * time.Second
	// PollRecoveryDelay is the wait before the single re-check after a
	// failed progress check.
	PollRecoveryDelay = 5 * time.Second
)

// Job states reported by the import and export endpoints.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobDone       = "done"
	JobError      = "error"
)

// ExportRequest selects the records to export.
type ExportRequest struct {
	// Types are export types such as "people" or "PeopleContactDetails";
	// they are normalized to snake_case.
	Types []string
	// From limits the export to records changed since this moment.
	From time.Time
	// Locale is required for translation exports.
	Locale string
}

// Import uploads a CSV file. file is a path on the client filesystem or an
// open handle. Without wait the submission response is returned as is, even
// when invalid. With wait the job is monitored until it leaves the queued and
// processing states; a job that ends in the error state is returned as a
// response, not as an error.
func (c *Client) Import(ctx context.Context, file any, importType string, wait bool) (*Response, error) {
	importType = strcase.ToSnake(importType)
	subject := importType + " import"

	filename, content, err := c.readFile(file)
	if err != nil {
		uploadErr := &UploadFailedError{Message: fmt.Sprintf("Failed to queue %s. %s", subject, err), Err: err}
		c.logger.ErrorContext(ctx, uploadErr.Error())
		return nil, uploadErr
	}
	body, contentType, err := buildMultipart(
		[]formField{{name: "type", value: importType}},
		&formFile{field: "file", filename: filename, content: content},
	)
	if err != nil {
		return nil, &UploadFailedError{Message: fmt.Sprintf("Failed to queue %s. %s", subject, err), Err: err}
	}

	resp := c.transport.Send(ctx, &Request{
		Method: http.MethodPost,
		URL:    c.url(c.expandPath("/import", nil)),
		Header: c.expandHeader(http.Header{"Content-Type": {contentType}}),
		Body:   body,
	})
	if resp.Valid() {
		c.logger.InfoContext(ctx, fmt.Sprintf("Import file '%s' successfully uploaded with token '%s'.", filename, resp.Text("token")))
	}
	if !wait {
		return resp, nil
	}
	if !resp.Valid() {
		uploadErr := &UploadFailedError{Message: fmt.Sprintf("Failed to queue %s. %s", subject, resp.Message())}
		c.logger.ErrorContext(ctx, uploadErr.Error())
		return resp, uploadErr
	}
	return c.monitor(ctx, "import", resp.Text("token"), subject)
}

// Export queues an export. A 204 answer means nothing changed since From and
// is returned immediately. Waiting behaves as for Import.
func (c *Client) Export(ctx context.Context, export ExportRequest, wait bool) (*Response, error) {
	types := make([]string, 0, len(export.Types))
	for _, t := range export.Types {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, strcase.ToSnake(t))
		}
	}
	typeList := strings.Join(types, ",")
	subject := fmt.Sprintf("'%s' export", typeList)

	data := Data{"type": typeList}
	if !export.From.IsZero() {
		data["from"] = DateTime(export.From)
	}
	if export.Locale != "" {
		data["locale"] = export.Locale
	}

	resp, err := c.Post(ctx, "/export", data, nil)
	if err != nil {
		return nil, err
	}
	if resp.Valid() {
		if resp.StatusCode == http.StatusNoContent {
			c.logger.InfoContext(ctx, fmt.Sprintf("No changed records for '%s' since %s.", typeList, text(ValueOf(data["from"]).Body())))
			return resp, nil
		}
		c.logger.InfoContext(ctx, fmt.Sprintf("Export for '%s' successfully queued with token '%s'.", typeList, resp.Text("token")))
	}
	if !wait {
		return resp, nil
	}
	if !resp.Valid() {
		uploadErr := &UploadFailedError{Message: fmt.Sprintf("Failed to queue %s. %s", subject, resp.Message())}
		c.logger.ErrorContext(ctx, uploadErr.Error())
		return resp, uploadErr
	}
	return c.monitor(ctx, "export", resp.Text("token"), subject)
}

// monitor polls /{kind}/{token} until the job is no longer queued or
// processing. One failed check is retried after PollRecoveryDelay; a second
// consecutive failure is a *MonitoringError.
func (c *Client) monitor(ctx context.Context, kind, token, subject string) (*Response, error) {
	path := "/" + kind + "/" + token
	for {
		resp := c.Get(ctx, path, nil, nil)
		if resp.Text("state") == JobError {
			return resp, nil
		}
		if !resp.Valid() {
			if err := c.clock.Sleep(ctx, PollRecoveryDelay); err != nil {
				return resp, err
			}
			resp = c.Get(ctx, path, nil, nil)
			if resp.Text("state") == JobError {
				return resp, nil
			}
			if !resp.Valid() {
				err := &MonitoringError{
					Token:    token,
					Message:  fmt.Sprintf("Unable to monitor progress for %s. %s", subject, resp.Message()),
					Response: resp,
				}
				c.logger.ErrorContext(ctx, err.Error())
				return resp, err
			}
		}

		state := resp.Text("state")
		if state != JobQueued && state != JobProcessing {
			return resp, nil
		}
		c.logger.DebugContext(ctx, fmt.Sprintf("%s is %s. Checking again in %s.", subject, state, PollInterval))
		if err := c.clock.Sleep(ctx, PollInterval); err != nil {
			return resp, err
		}
	}
}
