package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/movements/internal/canonical"
	"horse.fit/movements/internal/cli"
	"horse.fit/movements/internal/known"
)

func runMigrate(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	configPath := fs.String("config", "", "Known-movement config path (default: MOVEMENTS_CONFIG)")
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

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = env.cfg.MovementsConfig
	}
	cfg := known.LoadOrEmpty(path, env.logger)

	migrator := canonical.NewMigrator(env.pool, cfg, env.logger)
	stats, err := migrator.Migrate(env.ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
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
			{"unchanged", fmt.Sprintf("%d", stats.Unchanged)},
			{"display backfilled", fmt.Sprintf("%d", stats.DisplayBackfilled)},
			{"rewritten", fmt.Sprintf("%d", stats.Rewritten)},
			{"unmatched", fmt.Sprintf("%d", stats.Unmatched)},
			{"slug conflicts", fmt.Sprintf("%d", stats.SlugConflicts)},
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
