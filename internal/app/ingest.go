package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/movements/internal/cli"
	"horse.fit/movements/internal/contentdedup"
	"horse.fit/movements/internal/ingest"
	"horse.fit/movements/internal/match"
	"horse.fit/movements/internal/nlp"
)

type ingestOutcome struct {
	File   string         `json:"file"`
	Result *ingest.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	fetch := fs.Bool("fetch", false, "Fetch article text for payloads without a body")
	minScore := fs.Int("min-score", match.DefaultMinScore, "Fuzzy match threshold (0-100)")
	format := fs.String("format", outputFormatJSON, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Provide one or more mention payload files")
		return 2
	}
	if *minScore < 0 || *minScore > 100 {
		fmt.Fprintln(os.Stderr, "--min-score must be between 0 and 100")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatJSON)
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

	// A broken catalog must not block intake; documents land unassigned and
	// a later rematch picks them up.
	matcher := match.NewFromStore(env.ctx, env.pool, nil, env.logger)

	opts := ingest.Options{MinScore: *minScore}
	if *fetch {
		opts.Fetcher = ingest.ReaderFetcher()
	}

	dedup := contentdedup.NewDeduplicator(env.pool, env.logger)
	provider := nlp.FromEndpoint(env.cfg.NLPEndpoint)
	service := ingest.NewService(dedup, matcher, provider, opts, env.logger)

	outcomes := make([]ingestOutcome, 0, fs.NArg())
	failed := 0
	for _, path := range fs.Args() {
		payload, err := os.ReadFile(path)
		if err != nil {
			failed++
			outcomes = append(outcomes, ingestOutcome{File: path, Error: err.Error()})
			continue
		}
		result, err := service.Ingest(env.ctx, json.RawMessage(payload))
		if err != nil {
			failed++
			outcomes = append(outcomes, ingestOutcome{File: path, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, ingestOutcome{File: path, Result: &result})
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(outcomes); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		rows := make([][]string, 0, len(outcomes))
		for _, outcome := range outcomes {
			if outcome.Error != "" {
				rows = append(rows, []string{outcome.File, "error", outcome.Error})
				continue
			}
			status := string(outcome.Result.Reason)
			detail := fmt.Sprintf("source %d", outcome.Result.SourceID)
			if outcome.Result.MovementID != nil {
				detail = fmt.Sprintf("%s, movement %d (%s)", detail, *outcome.Result.MovementID, outcome.Result.MatchMethod)
			}
			rows = append(rows, []string{outcome.File, status, detail})
		}
		if err := writeTable([]string{"file", "status", "detail"}, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
			return 1
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}
