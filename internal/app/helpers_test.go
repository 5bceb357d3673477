package app

import "testing"

func TestParseOutputFormat(t *testing.T) {
	t.Parallel()

	if got, err := parseOutputFormat(" JSON ", outputFormatTable); err != nil || got != outputFormatJSON {
		t.Fatalf("parseOutputFormat(JSON) = %q, %v", got, err)
	}
	if got, err := parseOutputFormat("", outputFormatTable); err != nil || got != outputFormatTable {
		t.Fatalf("expected empty format to fall back to the default, got %q, %v", got, err)
	}
	if _, err := parseOutputFormat("xml", outputFormatTable); err == nil {
		t.Fatalf("expected unsupported format to be rejected")
	}
}

func TestRunUsage(t *testing.T) {
	t.Parallel()

	if code := Run(nil); code != 2 {
		t.Fatalf("exit code without a command = %d, want 2", code)
	}
	if code := Run([]string{"no-such-command"}); code != 2 {
		t.Fatalf("exit code for unknown command = %d, want 2", code)
	}
	if code := Run([]string{"help"}); code != 0 {
		t.Fatalf("exit code for help = %d, want 0", code)
	}
}
