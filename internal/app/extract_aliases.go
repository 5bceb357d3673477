package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/movements/internal/aliases"
	"horse.fit/movements/internal/cli"
	"horse.fit/movements/internal/nlp"
)

func runExtractAliases(args []string) int {
	fs := flag.NewFlagSet("extract-aliases", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Minute, "Command timeout")
	minScore := fs.Int("min-score", aliases.DefaultMinScore, "Entity-to-movement similarity threshold (0-100)")
	batchSize := fs.Int("batch-size", 200, "Rows fetched per sweep batch")
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

	if strings.TrimSpace(env.cfg.NLPEndpoint) == "" {
		fmt.Fprintln(os.Stderr, "Alias extraction needs entity recognition: set NLP_ENDPOINT")
		return 2
	}

	provider := nlp.FromEndpoint(env.cfg.NLPEndpoint)
	extractor := aliases.NewExtractor(env.pool, provider, nil, env.logger)
	stats, err := extractor.Extract(env.ctx, *minScore, *batchSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Alias extraction failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		rows := [][]string{
			{"sources scanned", fmt.Sprintf("%d", stats.SourcesScanned)},
			{"sources skipped", fmt.Sprintf("%d", stats.SourcesSkipped)},
			{"entities seen", fmt.Sprintf("%d", stats.EntitiesSeen)},
			{"aliases created", fmt.Sprintf("%d", stats.AliasesCreated)},
			{"aliases existing", fmt.Sprintf("%d", stats.AliasesExisting)},
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
