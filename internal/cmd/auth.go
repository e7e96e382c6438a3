package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sdk4me/sdk4me-go/internal/config"
	"github.com/sdk4me/sdk4me-go/internal/iocontext"
	"github.com/sdk4me/sdk4me-go/internal/outfmt"
	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

// newAuthCmd returns the auth command with subcommands
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage 4me connection profiles",
		Long:  "Configure 4me hosts and tokens. Tokens are stored in your OS keychain, the other settings in a profile file.",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthProfilesCmd())
	cmd.AddCommand(newAuthUseCmd())

	return cmd
}

type loginOptions struct {
	host                  string
	apiVersion            string
	accessToken           string
	apiToken              string
	source                string
	envFile               string
	caFile                string
	proxyHost             string
	proxyPort             int
	proxyUser             string
	proxyPassword         string
	raiseAttachmentErrors bool
	noVerify              bool
}

// newAuthLoginCmd creates the auth login command
func newAuthLoginCmd() *cobra.Command {
	var opts loginOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a host and token as a profile",
		Long: strings.TrimSpace(`
Save 4me connection settings under a profile (--profile, default "default")
and make it the current profile.

The token is checked with a request for the authenticated person before it
is saved, unless --no-verify is given. Personal access tokens are preferred;
API tokens are deprecated by 4me.

Global flags such as --account, --block-at-rate-limit and --max-retry-time
are stored with the profile.`),
		Example: strings.TrimSpace(`
  # Production
  sdk4me auth login --access-token TOKEN --account wdc

  # A QA environment under its own profile
  sdk4me --profile qa auth login --host https://api.4me.qa --access-token TOKEN --account wdc

  # Settings from a .env file (SDK4ME_HOST, SDK4ME_ACCESS_TOKEN, ...)
  sdk4me auth login --env-file .env.qa`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			profileName := flags.Profile
			if opts.envFile != "" {
				envVars, err := loadAuthEnvFile(opts.envFile)
				if err != nil {
					return err
				}
				applyAuthEnvFileRuntimeVars(envVars)
				if err := opts.fillFromEnvFile(cmd, envVars); err != nil {
					return err
				}
				if profileName == "" {
					profileName = strings.TrimSpace(envVars[config.EnvProfile])
				}
			}
			if profileName == "" {
				profileName = "default"
			}

			settings := opts.settings(profileName)
			if settings.Credentials.AccessToken == "" && settings.Credentials.APIToken == "" {
				return fmt.Errorf("--access-token is required")
			}

			client, err := sdk4me.New(newClientFactory().options(cmd.Context(), settings)...)
			if err != nil {
				return err
			}

			var me sdk4me.Object
			if !opts.noVerify {
				resp := client.Get(cmd.Context(), "me", nil, nil)
				if err := checkResponse(resp); err != nil {
					return fmt.Errorf("token verification failed: %w", err)
				}
				me, _ = resp.JSON().(sdk4me.Object)
			}

			if err := config.SaveProfile(profileName, settings.Profile, settings.Credentials); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			cfg := client.Config()
			if isJSON(cmd) {
				payload := map[string]any{
					"profile": profileName,
					"host":    cfg.Host,
					"account": cfg.Account,
				}
				if me != nil {
					payload["me"] = map[string]any{"id": me["id"], "name": me["name"], "primary_email": me["primary_email"]}
				}
				return printResult(cmd, payload)
			}

			out := iocontext.GetIO(cmd.Context()).Out
			_, _ = fmt.Fprintln(out, "Credentials saved successfully!")
			_, _ = fmt.Fprintf(out, "  Profile: %s\n", profileName)
			_, _ = fmt.Fprintf(out, "  Host: %s\n", cfg.Host)
			if cfg.Account != "" {
				_, _ = fmt.Fprintf(out, "  Account: %s\n", cfg.Account)
			}
			if me != nil {
				_, _ = fmt.Fprintf(out, "  Person: %s <%s>\n", outfmt.Cell(me["name"]), outfmt.Cell(me["primary_email"]))
			}
			return nil
		}),
	}

	f := cmd.Flags()
	f.StringVar(&opts.host, "host", sdk4me.DefaultHost, "4me REST API host")
	f.StringVar(&opts.apiVersion, "api-version", "", "API version (default v1)")
	f.StringVar(&opts.accessToken, "access-token", "", "Personal access token")
	f.StringVar(&opts.apiToken, "api-token", "", "API token (deprecated)")
	f.StringVar(&opts.source, "source", "", "Source recorded with created and updated records")
	f.StringVar(&opts.envFile, "env-file", "", "Load SDK4ME_* values from a .env file")
	f.StringVar(&opts.caFile, "ca-file", "", "PEM file with additional trusted CA certificates")
	f.StringVar(&opts.proxyHost, "proxy-host", "", "HTTP proxy host")
	f.IntVar(&opts.proxyPort, "proxy-port", sdk4me.DefaultProxyPort, "HTTP proxy port")
	f.StringVar(&opts.proxyUser, "proxy-user", "", "HTTP proxy user")
	f.StringVar(&opts.proxyPassword, "proxy-password", "", "HTTP proxy password, stored in the keychain")
	f.BoolVar(&opts.raiseAttachmentErrors, "raise-attachment-errors", false, "Fail writes when an attachment cannot be uploaded")
	f.BoolVar(&opts.noVerify, "no-verify", false, "Save without checking the token")
	flagAlias(f, "access-token", "token")
	flagAlias(f, "env-file", "env")

	return cmd
}

// fillFromEnvFile takes values from the .env file for flags that were not
// given.
func (o *loginOptions) fillFromEnvFile(cmd *cobra.Command, envVars map[string]string) error {
	set := func(dst *string, flag, key string) {
		if flagOrAliasChanged(cmd, flag) {
			return
		}
		if v := strings.TrimSpace(envVars[key]); v != "" {
			*dst = v
		}
	}
	set(&o.host, "host", config.EnvHost)
	set(&o.apiVersion, "api-version", config.EnvAPIVersion)
	set(&o.accessToken, "access-token", config.EnvAccessToken)
	set(&o.apiToken, "api-token", config.EnvAPIToken)
	set(&o.source, "source", config.EnvSource)
	set(&o.caFile, "ca-file", config.EnvCAFile)
	set(&o.proxyHost, "proxy-host", config.EnvProxyHost)
	set(&o.proxyUser, "proxy-user", config.EnvProxyUser)
	set(&o.proxyPassword, "proxy-password", config.EnvProxyPassword)
	if flags.Account == "" {
		flags.Account = strings.TrimSpace(envVars[config.EnvAccount])
	}
	if raw := strings.TrimSpace(envVars[config.EnvProxyPort]); raw != "" && !cmd.Flags().Changed("proxy-port") {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s in %q: must be an integer", config.EnvProxyPort, o.envFile)
		}
		o.proxyPort = port
	}
	return nil
}

func (o *loginOptions) settings(name string) config.Settings {
	profile := config.Profile{
		Host:                  strings.TrimSuffix(strings.TrimSpace(o.host), "/"),
		APIVersion:            strings.TrimSpace(o.apiVersion),
		Account:               flags.Account,
		Source:                o.source,
		BlockAtRateLimit:      flags.BlockAtRateLimit || flags.MaxThrottleTime > 0,
		MaxThrottleTime:       flags.MaxThrottleTime,
		CAFile:                o.caFile,
		RaiseAttachmentErrors: o.raiseAttachmentErrors,
	}
	if flags.MaxRetryTimeSet {
		profile.MaxRetryTime = flags.MaxRetryTime
	}
	if o.proxyHost != "" {
		profile.ProxyHost = o.proxyHost
		profile.ProxyPort = o.proxyPort
		profile.ProxyUser = o.proxyUser
	}
	return config.Settings{
		Name:    name,
		Source:  "profile",
		Profile: profile,
		Credentials: config.Credentials{
			AccessToken:   strings.TrimSpace(o.accessToken),
			APIToken:      strings.TrimSpace(o.apiToken),
			ProxyPassword: o.proxyPassword,
		},
	}
}

func loadAuthEnvFile(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--env-file requires a file path")
	}

	envVars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read --env-file %q: %w", path, err)
	}

	return envVars, nil
}

// applyAuthEnvFileRuntimeVars copies keyring settings from --env-file into
// the process environment when they are not already exported.
func applyAuthEnvFileRuntimeVars(envVars map[string]string) {
	keys := []string{
		"SDK4ME_KEYRING_BACKEND",
		"SDK4ME_KEYRING_PASSWORD",
		"SDK4ME_CREDENTIALS_DIR",
		"SDK4ME_CONFIG_DIR",
	}

	for _, key := range keys {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		value := strings.TrimSpace(envVars[key])
		if value == "" {
			continue
		}
		_ = os.Setenv(key, value)
	}
}

// newAuthStatusCmd creates the auth status command
func newAuthStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active connection settings",
		Long:  "Display the settings requests are sent with, after applying SDK4ME_* environment variables. Tokens are masked.",
		Example: strings.TrimSpace(`
  sdk4me auth status
  sdk4me auth status -o json`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			out := iocontext.GetIO(cmd.Context()).Out
			settings, err := config.Resolve(flags.Profile)
			if err != nil {
				if !errors.Is(err, config.ErrNotConfigured) {
					return err
				}
				if isJSON(cmd) {
					return printResult(cmd, map[string]any{
						"authenticated": false,
						"message":       "Not authenticated. Run 'sdk4me auth login' to configure credentials.",
					})
				}
				_, _ = fmt.Fprintln(out, "Not authenticated.")
				_, _ = fmt.Fprintln(out, "Run 'sdk4me auth login' to configure credentials.")
				return nil
			}

			client, err := sdk4me.New(newClientFactory().options(cmd.Context(), settings)...)
			if err != nil {
				return err
			}
			cfg := client.Config()
			tokenKind, token := "access_token", cfg.AccessToken
			if token == "" {
				tokenKind, token = "api_token", cfg.APIToken
			}

			if isJSON(cmd) {
				return printResult(cmd, map[string]any{
					"authenticated":       true,
					"profile":             settings.Name,
					"source":              settings.Source,
					"host":                cfg.Host,
					"api_version":         cfg.APIVersion,
					"account":             cfg.Account,
					tokenKind:             maskToken(token),
					"max_retry_time":      cfg.MaxRetryTime.String(),
					"block_at_rate_limit": cfg.BlockAtRateLimit,
					"max_throttle_time":   cfg.MaxThrottleTime.String(),
				})
			}

			_, _ = fmt.Fprintln(out, "Authenticated")
			_, _ = fmt.Fprintf(out, "  Profile: %s (%s)\n", settings.Name, settings.Source)
			_, _ = fmt.Fprintf(out, "  Host: %s/%s\n", cfg.Host, cfg.APIVersion)
			if cfg.Account != "" {
				_, _ = fmt.Fprintf(out, "  Account: %s\n", cfg.Account)
			}
			if tokenKind == "api_token" {
				_, _ = fmt.Fprintf(out, "  API Token: %s (deprecated)\n", maskToken(token))
			} else {
				_, _ = fmt.Fprintf(out, "  Access Token: %s\n", maskToken(token))
			}
			if cfg.BlockAtRateLimit {
				_, _ = fmt.Fprintf(out, "  Block at rate limit: up to %s\n", cfg.MaxThrottleTime)
			}
			_, _ = fmt.Fprintf(out, "  Max retry time: %s\n", cfg.MaxRetryTime)
			return nil
		}),
	}

	return cmd
}

// newAuthLogoutCmd creates the auth logout command
func newAuthLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove a profile and its tokens",
		Long:  "Delete the profile (--profile, default the current one) and its tokens from your OS keychain.",
		Example: strings.TrimSpace(`
  sdk4me auth logout
  sdk4me --profile qa auth logout`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			out := iocontext.GetIO(cmd.Context()).Out
			if err := config.DeleteProfile(flags.Profile); err != nil {
				if errors.Is(err, config.ErrNotConfigured) {
					_, _ = fmt.Fprintln(out, "No credentials found.")
					return nil
				}
				return fmt.Errorf("failed to remove credentials: %w", err)
			}

			if flags.Profile == "" {
				_, _ = fmt.Fprintln(out, "Credentials removed successfully.")
			} else {
				_, _ = fmt.Fprintf(out, "Profile %s removed successfully.\n", flags.Profile)
			}
			return nil
		}),
	}

	return cmd
}

func newAuthProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"ls"},
		Short:   "List saved profiles",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			f, err := config.Load()
			if err != nil {
				return err
			}

			rows := make([]map[string]any, 0, len(f.Profiles))
			for _, name := range f.Names() {
				p := f.Profiles[name]
				rows = append(rows, map[string]any{
					"name":    name,
					"current": name == f.CurrentName(),
					"host":    p.Host,
					"account": p.Account,
				})
			}
			if isJSON(cmd) || outfmt.GetQuery(cmd.Context()) != "" || outfmt.GetTemplate(cmd.Context()) != "" {
				return printResult(cmd, rows)
			}
			return newFormatter(cmd).Records(rows, []string{"name", "current", "host", "account"})
		}),
	}
}

func newAuthUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <profile>",
		Short: "Switch the current profile",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if err := config.UseProfile(args[0]); err != nil {
				return err
			}
			printAction(cmd, "Switched to profile %s", args[0])
			return nil
		}),
	}
}
