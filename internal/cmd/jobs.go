package cmd

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sdk4me/sdk4me-go/internal/cli"
	"github.com/sdk4me/sdk4me-go/internal/dryrun"
	"github.com/sdk4me/sdk4me-go/internal/iocontext"
	"github.com/sdk4me/sdk4me-go/internal/resolve"
	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

// jobFailedError is an import or export that ran and ended in the error
// state.
type jobFailedError struct {
	kind    string
	message string
}

func (e *jobFailedError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("%s failed", e.kind)
	}
	return fmt.Sprintf("%s failed: %s", e.kind, e.message)
}

// stdinFile gives stdin the file name the import form needs.
type stdinFile struct {
	io.Reader
	name string
}

func (f stdinFile) Name() string { return f.name }

func newImportCmd() *cobra.Command {
	var (
		importType string
		filename   string
		wait       bool
		anyType    bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Upload a CSV file to the 4me import API",
		Long: strings.TrimSpace(`
Queue an import. Without --wait the token of the import job is printed; with
--wait the job is checked every 2 seconds until it is done and the results
are printed.

Use - to read the CSV from stdin.`),
		Example: strings.TrimSpace(`
  sdk4me import people.csv --type people --wait
  cat cis.csv | sdk4me import - --type ConfigurationItems`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			typ, err := jobType("import", importType, resolve.ImportTypes, anyType)
			if err != nil {
				return err
			}
			if dryrun.IsEnabled(cmd.Context()) {
				return printPreview(cmd, importPreview(cmd, args[0], filename, typ))
			}
			client, err := getClient(cmd.Context())
			if err != nil {
				return err
			}

			var file any = args[0]
			if args[0] == "-" {
				file = stdinFile{Reader: iocontext.GetIO(cmd.Context()).In, name: filename}
			}
			resp, err := client.Import(cmd.Context(), file, typ, wait)
			if err != nil {
				return err
			}
			return printJob(cmd, "import", resp, wait)
		}),
	}

	cmd.Flags().StringVarP(&importType, "type", "t", "", "Import type, e.g. people or configuration_items (required)")
	cmd.Flags().StringVar(&filename, "filename", "import.csv", "File name sent when reading from stdin")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the import is done")
	cmd.Flags().BoolVar(&anyType, "any-type", false, "Skip the check against the known import types")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		types   []string
		from    string
		locale  string
		wait    bool
		anyType bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Queue an export of one or more record types",
		Long: strings.TrimSpace(`
Queue an export. --from limits it to records changed since that moment and
accepts dates, date-times and relative expressions such as "yesterday",
"monday" or "2d ago".

With --wait the job is checked every 2 seconds and the download location of
the export file is printed when it is done.`),
		Example: strings.TrimSpace(`
  sdk4me export --type people,teams --wait
  sdk4me export --type requests --from yesterday -o json
  sdk4me export --type translations --locale nl`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			req := sdk4me.ExportRequest{Locale: strings.TrimSpace(locale)}
			for _, t := range types {
				typ, err := jobType("export", t, resolve.ExportTypes, anyType)
				if err != nil {
					return err
				}
				req.Types = append(req.Types, typ)
			}
			if len(req.Types) == 0 {
				return fmt.Errorf("--type is required")
			}
			if from != "" {
				t, err := cli.ParseTime(from, time.Now())
				if err != nil {
					return err
				}
				req.From = t
			}
			if dryrun.IsEnabled(cmd.Context()) {
				return printPreview(cmd, exportPreview(req))
			}

			client, err := getClient(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := client.Export(cmd.Context(), req, wait)
			if err != nil {
				return err
			}
			if resp.Valid() && resp.StatusCode == http.StatusNoContent {
				if isJSON(cmd) {
					return printResult(cmd, map[string]any{"state": "no_changes", "type": strings.Join(req.Types, ",")})
				}
				printAction(cmd, "No changes for %s since %s", strings.Join(req.Types, ","), req.From.Format(time.RFC3339))
				return nil
			}
			return printJob(cmd, "export", resp, wait)
		}),
	}

	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Export types, comma separated (required)")
	cmd.Flags().StringVar(&from, "from", "", "Only export records changed since this moment")
	cmd.Flags().StringVar(&locale, "locale", "", "Locale of translation exports")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the export file is ready")
	cmd.Flags().BoolVar(&anyType, "any-type", false, "Skip the check against the known export types")

	return cmd
}

func importPreview(cmd *cobra.Command, path, filename, typ string) *dryrun.Preview {
	p := &dryrun.Preview{
		Method: http.MethodPost,
		Path:   "import",
		Body:   map[string]any{"type": typ},
		Files:  []string{path},
	}
	if path == "-" {
		p.Files = []string{filename + " (stdin)"}
		return p
	}
	if ok, _ := afero.Exists(iocontext.GetIO(cmd.Context()).Fs, path); !ok {
		p.Warnings = append(p.Warnings, fmt.Sprintf("file does not exist: %s", path))
	}
	return p
}

func exportPreview(req sdk4me.ExportRequest) *dryrun.Preview {
	body := map[string]any{"type": strings.Join(req.Types, ",")}
	if !req.From.IsZero() {
		body["from"] = sdk4me.DateTime(req.From).Body()
	}
	if req.Locale != "" {
		body["locale"] = req.Locale
	}
	return &dryrun.Preview{Method: http.MethodPost, Path: "export", Body: body}
}

func jobType(kind, typ string, known []string, anyType bool) (string, error) {
	if anyType {
		if typ = strings.TrimSpace(typ); typ == "" {
			return "", fmt.Errorf("--type is required")
		}
		return typ, nil
	}
	return resolve.Type(kind, typ, known)
}

// printJob prints the job and turns a job that ended in the error state
// into an error.
// A finished job in the error state carries a message, so it is checked
// before the response itself.
func printJob(cmd *cobra.Command, kind string, resp *sdk4me.Response, waited bool) error {
	if waited && resp.Text("state") == sdk4me.JobError {
		if err := printResult(cmd, resp.JSON()); err != nil {
			return err
		}
		return &jobFailedError{kind: kind, message: resp.Text("message")}
	}
	if err := checkResponse(resp); err != nil {
		return err
	}
	return printResult(cmd, resp.JSON())
}
