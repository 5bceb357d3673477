package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/movements/internal/cli"
	"horse.fit/movements/internal/match"
)

func runMatch(args []string) int {
	fs := flag.NewFlagSet("match", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	file := fs.String("file", "", "Read the text to match from this file instead of arguments")
	minScore := fs.Int("min-score", match.DefaultMinScore, "Fuzzy match threshold (0-100)")
	format := fs.String("format", outputFormatJSON, "Output format: table or json")

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

	outputFormat, err := parseOutputFormat(*format, outputFormatJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	var text string
	switch {
	case strings.TrimSpace(*file) != "":
		payload, err := os.ReadFile(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *file, err)
			return 1
		}
		text = string(payload)
	case fs.NArg() > 0:
		text = strings.Join(fs.Args(), " ")
	default:
		fmt.Fprintln(os.Stderr, "Provide the text to match as arguments or via --file")
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

	result, ok := matcher.Match(text, *minScore)
	if !ok {
		fmt.Fprintln(os.Stderr, "No movement matched")
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := [][]string{{
		fmt.Sprintf("%d", result.MovementID),
		result.MovementName,
		result.MatchedText,
		string(result.Method),
		fmt.Sprintf("%d", result.Score),
	}}
	if err := writeTable([]string{"movement_id", "name", "matched", "method", "score"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
