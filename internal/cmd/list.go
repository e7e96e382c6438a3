package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdk4me/sdk4me-go/internal/outfmt"
	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

var errLimitReached = errors.New("limit reached")

func newListCmd() *cobra.Command {
	var (
		params  paramFlags
		limit   int
		columns []string
		count   bool
	)

	cmd := &cobra.Command{
		Use:     "list <path>",
		Aliases: []string{"ls", "each"},
		Short:   "Retrieve every record of a collection",
		Long: strings.TrimSpace(`
Walk all pages of a collection, 100 records per page, following the Link
header. With --output jsonl records are written as soon as their page
arrives.`),
		Example: strings.TrimSpace(`
  # All open requests of a team
  sdk4me list requests/open -p team=12

  # Only names and emails, one JSON record per line
  sdk4me list people -p fields=name,primary_email -o jsonl

  # The first 10 records
  sdk4me list sites --limit 10 --columns id,name`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
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

			f := newFormatter(cmd)
			stream := !count && outfmt.IsJSONL(cmd.Context()) && outfmt.GetTemplate(cmd.Context()) == ""
			var records []sdk4me.Object
			_, err = client.Each(cmd.Context(), paths[0], query, nil, func(record sdk4me.Object) error {
				if stream {
					if err := f.Stream(record); err != nil {
						return err
					}
				}
				records = append(records, record)
				if limit > 0 && len(records) >= limit {
					return errLimitReached
				}
				return nil
			})
			if err != nil && !errors.Is(err, errLimitReached) {
				return err
			}

			if count {
				return printResult(cmd, map[string]any{"count": len(records)})
			}
			if stream {
				return nil
			}
			if len(columns) > 0 && !isJSON(cmd) && outfmt.GetTemplate(cmd.Context()) == "" && outfmt.GetQuery(cmd.Context()) == "" {
				rows := make([]map[string]any, len(records))
				for i, r := range records {
					rows[i] = r
				}
				return f.Records(rows, columns)
			}
			if records == nil {
				records = []sdk4me.Object{}
			}
			return f.Output(records)
		}),
	}

	params.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Stop after this many records (0 for all)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Table columns in text output (default: picked from the records)")
	cmd.Flags().BoolVar(&count, "count", false, "Print the number of records instead of the records")

	return cmd
}
