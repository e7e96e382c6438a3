package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sdk4me/sdk4me-go/internal/config"
	"github.com/sdk4me/sdk4me-go/internal/iocontext"
	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

type clientFactory struct {
	userAgent string
}

func newClientFactory() *clientFactory {
	return &clientFactory{
		userAgent: fmt.Sprintf("sdk4me-cli/%s (sdk4me-go/%s)", version, sdk4me.Version),
	}
}

// getClient builds a client from the active profile, the environment and
// the global flags, in increasing order of precedence. extra options are
// applied last.
func getClient(ctx context.Context, extra ...sdk4me.Option) (*sdk4me.Client, error) {
	return newClientFactory().client(ctx, extra...)
}

func (f *clientFactory) client(ctx context.Context, extra ...sdk4me.Option) (*sdk4me.Client, error) {
	settings, err := config.Resolve(flags.Profile)
	if err != nil {
		return nil, err
	}
	return sdk4me.New(append(f.options(ctx, settings), extra...)...)
}

func (f *clientFactory) options(ctx context.Context, settings config.Settings) []sdk4me.Option {
	opts := settings.Options()
	opts = append(opts,
		sdk4me.WithUserAgent(f.userAgent),
		sdk4me.WithLogger(slog.Default()),
		sdk4me.WithFs(iocontext.GetIO(ctx).Fs),
	)
	if flags.Account != "" {
		opts = append(opts, sdk4me.WithAccount(flags.Account))
	}
	if flags.Timeout > 0 {
		opts = append(opts, sdk4me.WithReadTimeout(flags.Timeout))
	}
	if flags.MaxRetryTimeSet {
		opts = append(opts, sdk4me.WithMaxRetryTime(flags.MaxRetryTime))
	}
	if flags.BlockAtRateLimit || flags.MaxThrottleTime > 0 {
		opts = append(opts, sdk4me.WithBlockAtRateLimit(true, flags.MaxThrottleTime))
	}
	return opts
}
