package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdk4me/sdk4me-go/internal/resolve"
)

var outputModes = []string{"text", "json", "jsonl", "ndjson"}

// completeFrom completes a flag value from a fixed list. Comma separated
// flags complete the last element.
func completeFrom(values []string, commaSeparated bool) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		prefix, current := "", toComplete
		if commaSeparated {
			if i := strings.LastIndexByte(toComplete, ','); i >= 0 {
				prefix, current = toComplete[:i+1], toComplete[i+1:]
			}
		}
		var matches []string
		for _, v := range values {
			if strings.HasPrefix(v, strings.ToLower(current)) {
				matches = append(matches, prefix+v)
			}
		}
		return matches, cobra.ShellCompDirectiveNoFileComp
	}
}

func registerCompletions(root *cobra.Command) {
	_ = root.RegisterFlagCompletionFunc("output", completeFrom(outputModes, false))
	for _, c := range root.Commands() {
		switch c.Name() {
		case "import":
			_ = c.RegisterFlagCompletionFunc("type", completeFrom(resolve.ImportTypes, false))
		case "export":
			_ = c.RegisterFlagCompletionFunc("type", completeFrom(resolve.ExportTypes, true))
		}
	}
}
