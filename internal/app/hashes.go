package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/movements/internal/cli"
	"horse.fit/movements/internal/contentdedup"
)

func runHashes(args []string) int {
	fs := flag.NewFlagSet("hashes", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	batchSize := fs.Int("batch-size", 200, "Rows fetched per sweep batch")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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

	dedup := contentdedup.NewDeduplicator(env.pool, env.logger)
	stats, err := dedup.UpdateContentHashes(env.ctx, *batchSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hash backfill failed: %v\n", err)
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
			{"updated", fmt.Sprintf("%d", stats.Updated)},
			{"skipped blank", fmt.Sprintf("%d", stats.SkippedBlank)},
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
