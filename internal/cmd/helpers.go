package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sdk4me/sdk4me-go/internal/cli"
	"github.com/sdk4me/sdk4me-go/internal/dryrun"
	"github.com/sdk4me/sdk4me-go/internal/iocontext"
	"github.com/sdk4me/sdk4me-go/internal/outfmt"
	"github.com/sdk4me/sdk4me-go/internal/urlparse"
	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

// isJSON checks if the command context wants JSON output
func isJSON(cmd *cobra.Command) bool {
	return outfmt.IsJSON(cmd.Context())
}

// newFormatter returns a formatter writing to the command streams.
func newFormatter(cmd *cobra.Command) *outfmt.Formatter {
	ioStreams := iocontext.GetIO(cmd.Context())
	return outfmt.NewFormatter(cmd.Context(), ioStreams.Out, ioStreams.ErrOut)
}

// printResult renders the parsed body of a response in the output mode of
// the command.
func printResult(cmd *cobra.Command, v any) error {
	return newFormatter(cmd).Output(v)
}

// printAction reports a completed write in text mode, where there is no
// record to show.
func printAction(cmd *cobra.Command, format string, args ...any) {
	if isJSON(cmd) || flags.Quiet {
		return
	}
	ioStreams := iocontext.GetIO(cmd.Context())
	_, _ = fmt.Fprintf(ioStreams.Out, format+"\n", args...)
}

// paramFlags are the query parameter flags shared by get, list and delete.
type paramFlags struct {
	typed []string
	raw   []string
}

func (p *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&p.typed, "param", "p", nil, "Query parameter key=value, typed (repeatable)")
	cmd.Flags().StringArrayVar(&p.raw, "raw-param", nil, "Query parameter key=value, sent as a string (repeatable)")
}

func (p *paramFlags) params() (sdk4me.Params, error) {
	return cli.ParseParams(p.typed, p.raw, time.Local)
}

// apiPaths accepts API paths and links to 4me records. The account of the
// links is returned so it can be selected for the request.
func apiPaths(args []string) ([]string, string, error) {
	paths := make([]string, len(args))
	account := ""
	for i, arg := range args {
		if !urlparse.IsURL(arg) {
			paths[i] = arg
			continue
		}
		parsed, err := urlparse.Parse(arg)
		if err != nil {
			return nil, "", err
		}
		paths[i] = parsed.Path
		if parsed.Account == "" {
			continue
		}
		if account != "" && account != parsed.Account {
			return nil, "", fmt.Errorf("links point to different accounts: %s and %s", account, parsed.Account)
		}
		account = parsed.Account
	}
	return paths, account, nil
}

// accountOptions selects the account of a link unless --account is given.
func accountOptions(account string) []sdk4me.Option {
	if account == "" || flags.Account != "" {
		return nil
	}
	return []sdk4me.Option{sdk4me.WithAccount(account)}
}

// printPreview shows the request a command would send in dry-run mode.
func printPreview(cmd *cobra.Command, p *dryrun.Preview) error {
	if flags.Account != "" {
		p.Account = flags.Account
	}
	if isJSON(cmd) {
		return printResult(cmd, p.Payload())
	}
	p.Write(iocontext.GetIO(cmd.Context()).Out)
	return nil
}

// readInput reads a request body from a file, or from stdin for "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	ioStreams := iocontext.GetIO(cmd.Context())
	if path == "-" {
		data, err := io.ReadAll(ioStreams.In)
		if err != nil {
			return "", fmt.Errorf("failed to read body from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := afero.ReadFile(ioStreams.Fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read --input %q: %w", path, err)
	}
	return string(data), nil
}

// flagAlias registers a hidden alias for an existing flag. Both flags share
// the same underlying Value, so setting either one sets both.
type aliasBridgeValue struct {
	pflag.Value
	canonical *pflag.Flag
}

func (v *aliasBridgeValue) Set(s string) error {
	if err := v.Value.Set(s); err != nil {
		return err
	}
	v.canonical.Changed = true
	return nil
}

func flagAlias(fs *pflag.FlagSet, name, alias string) {
	f := fs.Lookup(name)
	if f == nil {
		panic(fmt.Sprintf("flagAlias: flag %q not found", name))
	}
	a := *f
	a.Name = alias
	a.Shorthand = ""
	a.Usage = ""
	a.Hidden = true
	a.Value = &aliasBridgeValue{Value: f.Value, canonical: f}
	a.Annotations = map[string][]string{"alias-of": {name}}
	fs.AddFlag(&a)
}

// flagOrAliasChanged returns true if the named flag or any of its
// hidden aliases was explicitly set by the user.
func flagOrAliasChanged(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Changed(name) || cmd.InheritedFlags().Changed(name) {
		return true
	}
	aliasChanged := func(fs *pflag.FlagSet) bool {
		found := false
		fs.VisitAll(func(f *pflag.Flag) {
			if ann, ok := f.Annotations["alias-of"]; ok && len(ann) > 0 && ann[0] == name && f.Changed {
				found = true
			}
		})
		return found
	}
	return aliasChanged(cmd.Flags()) || aliasChanged(cmd.InheritedFlags())
}

// maskToken shows only the ends of a secret.
func maskToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", 8) + token[len(token)-4:]
}

// errAlreadyHandled is a sentinel error indicating the error was already
// printed to stderr. Cobra still sees an error (for the exit code) but does
// not print it again.
var errAlreadyHandled = errors.New("error already handled")

type handledError struct {
	err      error
	exitCode int
}

func (e *handledError) Error() string {
	return e.err.Error()
}

func (e *handledError) Unwrap() []error {
	return []error{errAlreadyHandled, e.err}
}

func (e *handledError) ExitCode() int {
	return e.exitCode
}

// RunE wraps a command function with enhanced error handling
func RunE(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}
		if isJSON(cmd) {
			ioStreams := iocontext.GetIO(cmd.Context())
			_ = outfmt.WriteJSON(ioStreams.ErrOut, errorPayload(err), outfmt.IsCompact(cmd.Context()))
		} else {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), HandleError(err))
		}
		return &handledError{err: err, exitCode: ExitCode(err)}
	}
}
