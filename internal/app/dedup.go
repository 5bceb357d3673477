package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/movements/internal/cli"
	"horse.fit/movements/internal/merge"
)

func runDedup(args []string) int {
	fs := flag.NewFlagSet("dedup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	threshold := fs.Float64("threshold", merge.DefaultThreshold, "Name similarity threshold (0-1)")
	doMerge := fs.Bool("merge", false, "Apply merges instead of the default dry run")
	showGroups := fs.Bool("groups", false, "Print each duplicate group")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *threshold <= 0 || *threshold > 1 {
		fmt.Fprintln(os.Stderr, "--threshold must be in (0, 1]")
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

	merger := merge.NewMerger(env.pool, nil, env.logger)
	stats, groups, err := merger.Merge(env.ctx, *threshold, !*doMerge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Movement dedup failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		payload := struct {
			Stats  merge.Stats   `json:"stats"`
			Groups []merge.Group `json:"groups,omitempty"`
		}{Stats: stats}
		if *showGroups {
			payload.Groups = groups
		}
		if err := printJSON(payload); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		if stats.GroupsFailed > 0 {
			return 1
		}
		return 0
	}

	if *showGroups {
		for _, group := range groups {
			fmt.Printf("canonical %d %q\n", group.Canonical.ID, group.Canonical.Name)
			for _, dup := range group.Duplicates {
				fmt.Printf("  duplicate %d %q\n", dup.ID, dup.Name)
			}
		}
		if len(groups) > 0 {
			fmt.Println()
		}
	}

	rows := [][]string{
		{"groups", fmt.Sprintf("%d", stats.Groups)},
		{"groups merged", fmt.Sprintf("%d", stats.GroupsMerged)},
		{"groups skipped", fmt.Sprintf("%d", stats.GroupsSkipped)},
		{"groups failed", fmt.Sprintf("%d", stats.GroupsFailed)},
		{"aliases created", fmt.Sprintf("%d", stats.AliasesCreated)},
		{"sources reassigned", fmt.Sprintf("%d", stats.SourcesReassigned)},
		{"movements deleted", fmt.Sprintf("%d", stats.MovementsDeleted)},
		{"dry run", fmt.Sprintf("%t", stats.DryRun)},
	}
	if err := writeTable([]string{"outcome", "count"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	if stats.GroupsFailed > 0 {
		return 1
	}
	return 0
}
