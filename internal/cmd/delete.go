package cmd

import (
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdk4me/sdk4me-go/internal/dryrun"
)

func newDeleteCmd() *cobra.Command {
	var params paramFlags

	cmd := &cobra.Command{
		Use:     "delete <path>",
		Aliases: []string{"rm"},
		Short:   "Delete a record",
		Example: strings.TrimSpace(`
  # Remove a team member
  sdk4me delete teams/12/members/6

  # Remove a tag from a request
  sdk4me delete requests/70453/tags -p tag=urgent

  # Show the request without sending it
  sdk4me delete sites/3 --dry-run`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			query, err := params.params()
			if err != nil {
				return err
			}
			paths, account, err := apiPaths(args)
			if err != nil {
				return err
			}
			path := paths[0]
			if dryrun.IsEnabled(cmd.Context()) {
				return printPreview(cmd, &dryrun.Preview{
					Method:  http.MethodDelete,
					Path:    path,
					Account: account,
					Query:   query.Encode(),
				})
			}

			client, err := getClient(cmd.Context(), accountOptions(account)...)
			if err != nil {
				return err
			}

			resp := client.Delete(cmd.Context(), path, query, nil)
			if err := checkResponse(resp); err != nil {
				return err
			}
			if resp.Empty() {
				printAction(cmd, "Deleted %s", path)
				return nil
			}
			return printResult(cmd, resp.JSON())
		}),
	}

	params.register(cmd)
	return cmd
}
