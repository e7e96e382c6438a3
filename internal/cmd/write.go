package cmd

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdk4me/sdk4me-go/internal/cli"
	"github.com/sdk4me/sdk4me-go/internal/dryrun"
	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

type writeFunc func(c *sdk4me.Client, ctx context.Context, path string, data sdk4me.Data, header http.Header) (*sdk4me.Response, error)

var writeMethods = map[string]struct {
	short  string
	call   writeFunc
	action string
}{
	"post":  {"Create a record", (*sdk4me.Client).Post, "Created"},
	"patch": {"Update a record", (*sdk4me.Client).Patch, "Updated"},
	"put":   {"Replace a record", (*sdk4me.Client).Put, "Replaced"},
}

// newWriteCmd builds the post, patch and put commands. They only differ in
// the HTTP method.
func newWriteCmd(method string) *cobra.Command {
	m, ok := writeMethods[method]
	if !ok {
		panic(fmt.Sprintf("newWriteCmd: unsupported method %q", method))
	}

	var (
		fields      []string
		rawFields   []string
		body        string
		input       string
		attachments []string
		raiseErrors bool
	)

	cmd := &cobra.Command{
		Use:   method + " <path>",
		Short: m.short,
		Long: strings.TrimSpace(`
Send a JSON body built from --data or --input and the -F/-f fields. Fields
override keys of the body.

Files listed with --attach are uploaded to the 4me attachment storage first.
A note can reference them inline with ![alt](N), N being the position of the
file in the attachment list of the field, starting at 0.`),
		Example: strings.TrimSpace(`
  # Create a request
  sdk4me post requests -F subject='Printer jammed' -F category=incident -F requested_by_id=6

  # Add a note with an inline screenshot
  sdk4me patch requests/70453 -f note='See ![screenshot](0)' -a note=./screen.png

  # Body from a file, one field overridden
  sdk4me post people -i person.json -F site_id=12

  # Check the body before sending it
  sdk4me patch requests/70453 -F status=in_progress --dry-run`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if body != "" && input != "" {
				return fmt.Errorf("--data and --input cannot be combined")
			}
			if input != "" {
				content, err := readInput(cmd, input)
				if err != nil {
					return err
				}
				body = content
			}
			data, err := cli.ParseData(body, fields, rawFields, attachments, time.Local)
			if err != nil {
				return err
			}

			paths, account, err := apiPaths(args)
			if err != nil {
				return err
			}
			path := paths[0]
			if dryrun.IsEnabled(cmd.Context()) {
				return printPreview(cmd, writePreview(method, path, account, data))
			}

			extra := accountOptions(account)
			if raiseErrors {
				extra = append(extra, sdk4me.WithRaiseAttachmentErrors(true))
			}
			client, err := getClient(cmd.Context(), extra...)
			if err != nil {
				return err
			}

			resp, err := m.call(client, cmd.Context(), path, data, nil)
			if err != nil {
				return err
			}
			if err := checkResponse(resp); err != nil {
				return err
			}
			if resp.Empty() {
				printAction(cmd, "%s %s", m.action, path)
				return nil
			}
			return printResult(cmd, resp.JSON())
		}),
	}

	cmd.Flags().StringArrayVarP(&fields, "field", "F", nil, "Field key=value, typed: numbers, booleans, null, dates, lists (repeatable)")
	cmd.Flags().StringArrayVarP(&rawFields, "raw-field", "f", nil, "Field key=value, sent as a string (repeatable)")
	cmd.Flags().StringVarP(&body, "data", "d", "", "JSON object used as the request body")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Read the JSON body from a file, - for stdin")
	cmd.Flags().StringArrayVarP(&attachments, "attach", "a", nil, "Attach a file to a field, field=path (repeatable)")
	cmd.Flags().BoolVar(&raiseErrors, "raise-attachment-errors", false, "Fail when an attachment cannot be uploaded instead of skipping it")

	return cmd
}

// writePreview describes a write in dry-run mode. Attachments are listed as
// files; nothing is uploaded.
func writePreview(method, path, account string, data sdk4me.Data) *dryrun.Preview {
	p := &dryrun.Preview{
		Method:  strings.ToUpper(method),
		Path:    path,
		Account: account,
		Body:    data.Body(),
	}
	for key, value := range data {
		if !strings.HasSuffix(key, sdk4me.AttachmentsSuffix) {
			continue
		}
		switch files := value.(type) {
		case []string:
			p.Files = append(p.Files, files...)
		case []any:
			for _, f := range files {
				p.Files = append(p.Files, fmt.Sprint(f))
			}
		}
	}
	if len(p.Files) > 0 {
		sort.Strings(p.Files)
		p.Warnings = append(p.Warnings, fmt.Sprintf("%d attachment(s) would be uploaded before the request", len(p.Files)))
	}
	return p
}
