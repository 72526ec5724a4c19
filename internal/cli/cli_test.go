package cli

import (
	"strings"
	"testing"
	"time"
)

func TestPruneCutoff(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := pruneCutoff("", 48*time.Hour, now)
	if err != nil || !got.Equal(now.Add(-48*time.Hour)) {
		t.Fatalf("older-than: got %v, %v", got, err)
	}

	got, err = pruneCutoff("2025-02-01T00:00:00Z", 0, now)
	if err != nil || got.Month() != time.February {
		t.Fatalf("before: got %v, %v", got, err)
	}

	cases := map[string]struct {
		before    string
		olderThan time.Duration
		want      string
	}{
		"none":      {want: "must be provided"},
		"both":      {before: "2025-02-01T00:00:00Z", olderThan: time.Hour, want: "mutually exclusive"},
		"malformed": {before: "yesterday", want: "invalid --before"},
		"future":    {before: "2026-01-01T00:00:00Z", want: "future"},
	}
	for name, tc := range cases {
		if _, err := pruneCutoff(tc.before, tc.olderThan, now); err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected %q, got %v", name, tc.want, err)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"run", "once", "lookup", "show", "prune", "version", "simulate-alert"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered: %v", name, err)
		}
	}
}
