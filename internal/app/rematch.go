package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/movements/internal/cli"
	"horse.fit/movements/internal/ingest"
	"horse.fit/movements/internal/match"
)

func runRematch(args []string) int {
	fs := flag.NewFlagSet("rematch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Minute, "Command timeout")
	minScore := fs.Int("min-score", match.DefaultMinScore, "Fuzzy match threshold (0-100)")
	batchSize := fs.Int("batch-size", 200, "Rows fetched per sweep batch")
	dryRun := fs.Bool("dry-run", false, "Report what would change without writing")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *minScore < 0 || *minScore > 100 {
		fmt.Fprintln(os.Stderr, "--min-score must be between 0 and 100")
		return 2
	}
	if *batchSize <= 0 {
		fmt.Fprintln(os.Stderr, "--batch-size must be positive")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	env, err := connect(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer env.close()

	matcher := match.NewMatcher(nil)
	if err := matcher.LoadFromStore(env.ctx, env.pool); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load candidates: %v\n", err)
		return 1
	}

	stats, err := ingest.Rematch(env.ctx, env.pool, matcher, *minScore, *batchSize, *dryRun, env.logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rematch failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		rows := [][]string{
			{"scanned", fmt.Sprintf("%d", stats.Scanned)},
			{"assigned", fmt.Sprintf("%d", stats.Assigned)},
			{"reassigned", fmt.Sprintf("%d", stats.Reassigned)},
			{"unchanged", fmt.Sprintf("%d", stats.Unchanged)},
			{"unmatched", fmt.Sprintf("%d", stats.Unmatched)},
			{"errors", fmt.Sprintf("%d", stats.Errors)},
		}
		if err := writeTable([]string{"outcome", "count"}, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
			return 1
		}
	}

	if stats.Errors > 0 {
		return 1
	}
	return 0
}
