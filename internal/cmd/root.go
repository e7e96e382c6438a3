package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sdk4me/sdk4me-go/internal/debug"
	"github.com/sdk4me/sdk4me-go/internal/dryrun"
	"github.com/sdk4me/sdk4me-go/internal/iocontext"
	"github.com/sdk4me/sdk4me-go/internal/outfmt"
	"github.com/sdk4me/sdk4me-go/internal/resolve"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Output           string
	JQ               string
	Template         string
	Compact          bool
	Debug            bool
	Quiet            bool
	Profile          string
	Account          string
	BlockAtRateLimit bool
	MaxThrottleTime  time.Duration
	MaxRetryTime     time.Duration
	Timeout          time.Duration
	NoDotenv         bool
	DryRun           bool

	MaxRetryTimeSet bool
}

// flags holds the global command flags. It is reset at the start of every
// Execute() call; reading it outside a command's RunE sees stale values.
var flags = rootFlags{Output: defaultOutput()}

func defaultOutput() string {
	if value := strings.TrimSpace(os.Getenv("SDK4ME_OUTPUT")); value != "" {
		return value
	}
	return "text"
}

// loadDotenv loads .env from the working directory. Variables already set in
// the environment are not overwritten, so explicit exports always win.
func loadDotenv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load(".env")
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	if !hasArg(args, "--no-dotenv") {
		loadDotenv()
	}

	flags = rootFlags{Output: defaultOutput()}

	root := &cobra.Command{
		Use:                "sdk4me",
		Short:              "Command line client for the 4me REST API",
		Long:               "Read, write, import and export 4me records from the command line.",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true, // suggestions come from enhanceUnknownError
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			mode, err := outfmt.Parse(strings.TrimSpace(flags.Output))
			if err != nil {
				return err
			}
			ctx = outfmt.WithMode(ctx, mode)
			ctx = outfmt.WithCompact(ctx, flags.Compact)

			ioStreams := iocontext.DefaultIO()
			ctx = iocontext.WithIO(ctx, ioStreams)
			cmd.SetOut(ioStreams.Out)
			cmd.SetErr(ioStreams.ErrOut)

			debug.SetupLogger(ioStreams.ErrOut, flags.Debug, flags.Quiet)
			ctx = debug.WithDebug(ctx, flags.Debug)
			ctx = dryrun.WithDryRun(ctx, flags.DryRun)

			if q := strings.TrimSpace(flags.JQ); q != "" {
				ctx = outfmt.WithQuery(ctx, q)
			}
			if flags.Template != "" {
				tmpl, err := loadTemplate(flags.Template)
				if err != nil {
					return err
				}
				ctx = outfmt.WithTemplate(ctx, tmpl)
			}

			flags.MaxRetryTimeSet = flagOrAliasChanged(cmd, "max-retry-time")
			if flags.MaxThrottleTime < 0 {
				return fmt.Errorf("--max-throttle-time must be >= 0")
			}
			if flags.Timeout < 0 {
				return fmt.Errorf("--timeout must be >= 0")
			}

			cmd.SetContext(ctx)
			return nil
		},
	}

	root.SetContext(ctx)
	root.SetArgs(args)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|jsonl|ndjson (env SDK4ME_OUTPUT)")
	pf.StringVarP(&flags.JQ, "jq", "q", "", "jq expression applied to the result")
	pf.StringVar(&flags.Template, "template", "", "Go template string (or @path) to render the result")
	pf.BoolVar(&flags.Compact, "compact-json", false, "Compact JSON output (no indentation)")
	pf.BoolVar(&flags.Debug, "debug", false, "Log every request and response")
	pf.BoolVarP(&flags.Quiet, "quiet", "Q", false, "Only log warnings and errors")
	pf.StringVar(&flags.Profile, "profile", "", "Profile to use (env SDK4ME_PROFILE)")
	pf.StringVar(&flags.Account, "account", "", "Account to act in (X-4me-Account)")
	pf.BoolVar(&flags.BlockAtRateLimit, "block-at-rate-limit", false, "Wait and retry when the rate limit is reached")
	pf.DurationVar(&flags.MaxThrottleTime, "max-throttle-time", 0, "Longest total wait at the rate limit (default 1h1m)")
	pf.DurationVar(&flags.MaxRetryTime, "max-retry-time", 0, "Budget for retrying failed requests, negative disables retries (default 1h30m)")
	pf.DurationVar(&flags.Timeout, "timeout", 0, "Read timeout per request (default 25s)")
	pf.BoolVar(&flags.NoDotenv, "no-dotenv", false, "Do not load .env from the working directory")
	pf.BoolVar(&flags.DryRun, "dry-run", false, "Show the write, delete, import or export request instead of sending it")

	flagAlias(pf, "output", "out")
	flagAlias(pf, "jq", "query")
	flagAlias(pf, "template", "tpl")
	flagAlias(pf, "compact-json", "cj")
	flagAlias(pf, "block-at-rate-limit", "block")
	flagAlias(pf, "max-retry-time", "retry")

	root.AddCommand(newAuthCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newWriteCmd("post"))
	root.AddCommand(newWriteCmd("patch"))
	root.AddCommand(newWriteCmd("put"))
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newVersionCmd())
	registerCompletions(root)

	targetCmd, err := root.ExecuteC()
	if err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			_, _ = fmt.Fprintln(root.ErrOrStderr(), enhanceUnknownError(err, root, targetCmd))
		}
		return err
	}
	return nil
}

func hasArg(args []string, name string) bool {
	for _, a := range args {
		if a == "--" {
			return false
		}
		if a == name || strings.HasPrefix(a, name+"=") {
			return true
		}
	}
	return false
}

// enhanceUnknownError adds "did you mean?" suggestions to unknown command
// and flag errors. targetCmd is the command Cobra resolved before the error.
func enhanceUnknownError(err error, root *cobra.Command, targetCmd *cobra.Command) string {
	msg := err.Error()

	if strings.Contains(msg, "unknown command") {
		if unknown := extractQuoted(msg); unknown != "" {
			var names []string
			for _, c := range root.Commands() {
				if c.IsAvailableCommand() {
					names = append(names, c.Name())
					names = append(names, c.Aliases...)
				}
			}
			if suggestions := resolve.Suggest(unknown, names, 1); len(suggestions) > 0 {
				return fmt.Sprintf("%s\n\nDid you mean %q?", msg, suggestions[0])
			}
		}
		return msg
	}

	if strings.Contains(msg, "unknown flag") || strings.Contains(msg, "unknown shorthand flag") {
		if targetCmd == nil {
			targetCmd = root
		}
		helpCmd := strings.TrimSpace(targetCmd.CommandPath()) + " --help"
		unknown := extractFlag(msg)
		if unknown != "" {
			var names []string
			collect := func(f *pflag.Flag) {
				if !f.Hidden {
					names = append(names, "--"+f.Name)
				}
			}
			targetCmd.Flags().VisitAll(collect)
			targetCmd.InheritedFlags().VisitAll(collect)
			if suggestions := resolve.Suggest(strings.TrimLeft(unknown, "-"), names, 1); len(suggestions) > 0 {
				return fmt.Sprintf("%s\n\nDid you mean %q?\nRun %q to see supported flags.", msg, suggestions[0], helpCmd)
			}
		}
		return fmt.Sprintf("%s\n\nRun %q to see supported flags.", msg, helpCmd)
	}

	return msg
}

// extractQuoted extracts the first double-quoted substring from s.
func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// extractFlag extracts a flag name such as "--foo" or "-x" from an error
// message.
func extractFlag(s string) string {
	idx := strings.Index(s, "--")
	if idx < 0 {
		// "unknown shorthand flag: 'a' in -a"
		idx = strings.LastIndex(s, " -")
		if idx < 0 {
			return ""
		}
		idx++
	}
	rest := s[idx:]
	if end := strings.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimRight(rest, ".,;:!?\"'")
	if len(rest) < 2 {
		return ""
	}
	return rest
}

func loadTemplate(value string) (string, error) {
	if path, ok := strings.CutPrefix(value, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read template file: %w", err)
		}
		return string(data), nil
	}
	return value, nil
}
