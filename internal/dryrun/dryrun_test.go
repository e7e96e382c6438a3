package dryrun

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestWithDryRun(t *testing.T) {
	ctx := WithDryRun(context.Background(), true)
	if !IsEnabled(ctx) {
		t.Error("IsEnabled should return true when dry-run is enabled")
	}
}

func TestIsEnabled_DefaultFalse(t *testing.T) {
	if IsEnabled(context.Background()) {
		t.Error("IsEnabled should return false by default")
	}
}

func TestWithDryRun_Disabled(t *testing.T) {
	ctx := WithDryRun(context.Background(), false)
	if IsEnabled(ctx) {
		t.Error("IsEnabled should return false when dry-run is explicitly disabled")
	}
}

func TestPreview_Write(t *testing.T) {
	p := &Preview{
		Method:  "POST",
		Path:    "requests",
		Account: "wdc",
		Body: map[string]any{
			"subject":          "Printer jammed",
			"requested_by_id":  6,
			"note_attachments": []any{"./screen.png"},
		},
		Warnings: []string{"1 attachment would be uploaded first"},
	}

	var buf bytes.Buffer
	p.Write(&buf)
	out := buf.String()

	for _, want := range []string{
		"[DRY-RUN] Would POST requests",
		"account: wdc",
		"subject: Printer jammed",
		"requested_by_id: 6",
		`note_attachments: ["./screen.png"]`,
		"! 1 attachment would be uploaded first",
		"No changes made (dry-run mode)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "requested_by_id") > strings.Index(out, "subject") {
		t.Error("body keys should be sorted")
	}
}

func TestPreview_WriteQuery(t *testing.T) {
	p := &Preview{Method: "DELETE", Path: "requests/1/tags", Query: "tag=urgent"}

	var buf bytes.Buffer
	p.Write(&buf)
	if !strings.Contains(buf.String(), "Would DELETE requests/1/tags?tag=urgent") {
		t.Errorf("output = %s", buf.String())
	}
	if strings.Contains(buf.String(), "Warnings:") {
		t.Error("no warnings section expected")
	}
}

func TestPreview_Payload(t *testing.T) {
	p := &Preview{Method: "POST", Path: "import", Files: []string{"people.csv"}}
	got := p.Payload()

	if got["dry_run"] != true || got["method"] != "POST" || got["path"] != "import" {
		t.Errorf("payload = %v", got)
	}
	if files, ok := got["files"].([]string); !ok || len(files) != 1 {
		t.Errorf("files = %v", got["files"])
	}
	for _, key := range []string{"account", "query", "body", "warnings"} {
		if _, ok := got[key]; ok {
			t.Errorf("unexpected key %q", key)
		}
	}
}
