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

func runSeed(args []string) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
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
	if strings.TrimSpace(path) == "" {
		fmt.Fprintln(os.Stderr, "No config: set --config or MOVEMENTS_CONFIG")
		return 2
	}

	cfg, err := known.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load movements config: %v\n", err)
		return 1
	}
	if cfg.Dropped > 0 {
		env.logger.Warn().Int("dropped", cfg.Dropped).Msg("config entries rejected during validation")
	}

	migrator := canonical.NewMigrator(env.pool, cfg, env.logger)
	stats, err := migrator.Seed(env.ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seeding failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		rows := [][]string{
			{"movements created", fmt.Sprintf("%d", stats.MovementsCreated)},
			{"movements existing", fmt.Sprintf("%d", stats.MovementsExisting)},
			{"aliases created", fmt.Sprintf("%d", stats.AliasesCreated)},
			{"aliases existing", fmt.Sprintf("%d", stats.AliasesExisting)},
			{"aliases orphaned", fmt.Sprintf("%d", stats.AliasesOrphaned)},
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
