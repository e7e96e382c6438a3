package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sdk4me/sdk4me-go/internal/iocontext"
	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

const defaultConcurrency = 4

func newGetCmd() *cobra.Command {
	var (
		params      paramFlags
		concurrency int
		include     bool
	)

	cmd := &cobra.Command{
		Use:   "get <path>...",
		Short: "Retrieve records",
		Long: strings.TrimSpace(`
Retrieve a record or a single page of a collection. The api version is added
to paths that do not start with one. Links copied from 4me, such as
https://wdc.4me.com/requests/70453, are accepted in place of a path.

Several paths are fetched concurrently and printed in the order given.`),
		Example: strings.TrimSpace(`
  # A single request
  sdk4me get requests/70453

  # Filter a collection, values are typed (dates, booleans, lists)
  sdk4me get requests -p status=assigned,in_progress -p 'created_at=>2024-01-01'

  # Several records at once
  sdk4me get people/me teams/12 sites/3 -o json

  # A link from the browser
  sdk4me get https://wdc.4me.com/requests/70453`),
		Args: cobra.MinimumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1")
			}
			query, err := params.params()
			if err != nil {
				return err
			}
			paths, account, err := apiPaths(args)
			if err != nil {
				return err
			}
			client, err := getClient(cmd.Context(), accountOptions(account)...)
			if err != nil {
				return err
			}

			if len(paths) == 1 {
				resp := client.Get(cmd.Context(), paths[0], query, nil)
				if include {
					printResponseInfo(cmd, resp)
				}
				if err := checkResponse(resp); err != nil {
					return err
				}
				return printResult(cmd, resp.JSON())
			}

			results, err := getAll(cmd, client, paths, query, concurrency)
			if err != nil {
				return err
			}
			return printResult(cmd, results)
		}),
	}

	params.register(cmd)
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", defaultConcurrency, "Requests in flight when several paths are given")
	cmd.Flags().BoolVarP(&include, "include", "i", false, "Print the status, pagination and rate limit headers to stderr")

	return cmd
}

// getAll fetches paths concurrently with at most limit requests in flight.
// The first invalid response cancels the remaining requests.
func getAll(cmd *cobra.Command, client *sdk4me.Client, paths []string, query sdk4me.Params, limit int) ([]any, error) {
	results := make([]any, len(paths))
	sem := semaphore.NewWeighted(int64(limit))
	g, ctx := errgroup.WithContext(cmd.Context())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			resp := client.Get(ctx, path, query, nil)
			if err := checkResponse(resp); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = resp.JSON()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printResponseInfo(cmd *cobra.Command, resp *sdk4me.Response) {
	errOut := iocontext.GetIO(cmd.Context()).ErrOut
	_, _ = fmt.Fprintf(errOut, "HTTP %d %s\n", resp.StatusCode, resp.Reason)
	if total := resp.TotalEntries(); total > 0 {
		_, _ = fmt.Fprintf(errOut, "Page %d of %d, %d per page, %d entries\n", resp.CurrentPage(), resp.TotalPages(), resp.PerPage(), total)
	}
	if next := resp.PaginationRelativeLink("next"); next != "" {
		_, _ = fmt.Fprintf(errOut, "Next: %s\n", next)
	}
	if info := resp.RateLimit(); info != nil && info.Remaining != nil {
		_, _ = fmt.Fprintf(errOut, "Rate limit remaining: %d\n", *info.Remaining)
	}
}
