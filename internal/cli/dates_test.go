package cli

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	now := time.Date(2026, 1, 28, 15, 4, 5, 0, time.UTC) // Wednesday

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"now", "now", now},
		{"hours ago", "2h ago", now.Add(-2 * time.Hour)},
		{"minutes ago", "30m ago", now.Add(-30 * time.Minute)},
		{"days ago", "1d ago", time.Date(2026, 1, 27, 15, 4, 5, 0, time.UTC)},
		{"weeks ago", "2w ago", time.Date(2026, 1, 14, 15, 4, 5, 0, time.UTC)},
		{"months ago", "1mo ago", time.Date(2025, 12, 28, 15, 4, 5, 0, time.UTC)},
		{"today", "Today", time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)},
		{"yesterday", "yesterday", time.Date(2026, 1, 27, 0, 0, 0, 0, time.UTC)},
		{"weekday", "monday", time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)},
		{"same weekday", "wed", time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)},
		{"last same weekday", "last wednesday", time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC)},
		{"last weekday", "last friday", time.Date(2026, 1, 23, 0, 0, 0, 0, time.UTC)},
		{"date only", "2026-01-27", time.Date(2026, 1, 27, 0, 0, 0, 0, time.UTC)},
		{"date and time", "2026-01-27 08:30", time.Date(2026, 1, 27, 8, 30, 0, 0, time.UTC)},
		{"rfc3339", "2026-01-27T10:00:00Z", time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)},
		{"offset", "2026-01-27T10:00:00+02:00", time.Date(2026, 1, 27, 8, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.input, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("expected %s, got %s", tt.want.Format(time.RFC3339Nano), got.Format(time.RFC3339Nano))
			}
		})
	}
}

func TestParseTimeInvalid(t *testing.T) {
	for _, input := range []string{"", "not-a-date", "0d ago"} {
		if _, err := ParseTime(input, time.Now()); err == nil {
			t.Errorf("ParseTime(%q) expected error", input)
		}
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	sample := time.Date(2026, 1, 28, 15, 4, 5, 0, loc)
	if got := startOfDay(sample); !got.Equal(time.Date(2026, 1, 28, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected start of day: %s", got.Format(time.RFC3339Nano))
	}
}
