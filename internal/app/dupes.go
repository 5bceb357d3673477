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

func runDupes(args []string) int {
	fs := flag.NewFlagSet("dupes", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	remove := fs.Bool("remove", false, "Delete duplicates instead of reporting them")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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

	var stats contentdedup.RemovalStats
	if *remove {
		stats, err = dedup.RemoveDuplicates(env.ctx, false)
	} else {
		stats, err = dedup.DuplicateStats(env.ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Duplicate sweep failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		rows := [][]string{
			{"groups", fmt.Sprintf("%d", stats.Groups)},
			{"kept", fmt.Sprintf("%d", stats.Kept)},
			{"removed", fmt.Sprintf("%d", stats.Removed)},
			{"errors", fmt.Sprintf("%d", stats.Errors)},
			{"dry run", fmt.Sprintf("%t", stats.DryRun)},
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
