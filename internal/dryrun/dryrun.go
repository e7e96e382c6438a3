// Package dryrun previews write requests without sending them.
package dryrun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

type contextKey string

const dryRunKey contextKey = "dry_run_enabled"

// WithDryRun returns a context with dry-run mode enabled/disabled.
func WithDryRun(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, dryRunKey, enabled)
}

// IsEnabled returns true if dry-run mode is enabled.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(dryRunKey).(bool); ok {
		return v
	}
	return false
}

// Preview describes the request a command would send.
type Preview struct {
	Method   string
	Path     string
	Account  string
	Query    string
	Body     map[string]any
	Files    []string
	Warnings []string
}

// Payload is the preview as JSON output, marked as a dry run.
func (p *Preview) Payload() map[string]any {
	out := map[string]any{"dry_run": true, "method": p.Method, "path": p.Path}
	if p.Account != "" {
		out["account"] = p.Account
	}
	if p.Query != "" {
		out["query"] = p.Query
	}
	if len(p.Body) > 0 {
		out["body"] = p.Body
	}
	if len(p.Files) > 0 {
		out["files"] = p.Files
	}
	if len(p.Warnings) > 0 {
		out["warnings"] = p.Warnings
	}
	return out
}

// Write outputs the preview to the writer
func (p *Preview) Write(w io.Writer) {
	target := p.Path
	if p.Query != "" {
		target += "?" + p.Query
	}
	_, _ = fmt.Fprintf(w, "\n[DRY-RUN] Would %s %s\n", p.Method, target)
	_, _ = fmt.Fprintf(w, "───────────────────────────────────────\n")

	if p.Account != "" {
		_, _ = fmt.Fprintf(w, "  account: %s\n", p.Account)
	}
	if len(p.Body) > 0 {
		keys := make([]string, 0, len(p.Body))
		for k := range p.Body {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", k, render(p.Body[k]))
		}
	}
	for _, file := range p.Files {
		_, _ = fmt.Fprintf(w, "  file: %s\n", file)
	}
	_, _ = fmt.Fprintln(w)

	if len(p.Warnings) > 0 {
		_, _ = fmt.Fprintln(w, "Warnings:")
		for _, warning := range p.Warnings {
			_, _ = fmt.Fprintf(w, "  ! %s\n", warning)
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintf(w, "───────────────────────────────────────\n")
	_, _ = fmt.Fprintln(w, "No changes made (dry-run mode)")
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
