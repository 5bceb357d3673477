package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "seed":
		return runSeed(args[1:])
	case "migrate":
		return runMigrate(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "match":
		return runMatch(args[1:])
	case "rematch":
		return runRematch(args[1:])
	case "dedup":
		return runDedup(args[1:])
	case "hashes":
		return runHashes(args[1:])
	case "dupes":
		return runDupes(args[1:])
	case "extract-aliases":
		return runExtractAliases(args[1:])
	case "stats":
		return runStats(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "movements CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  movements <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health           Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  seed             Insert configured movements and aliases")
	fmt.Fprintln(os.Stderr, "  migrate          Reconcile legacy movement names into slug + display name")
	fmt.Fprintln(os.Stderr, "  ingest           Ingest mention documents from JSON files")
	fmt.Fprintln(os.Stderr, "  match            Resolve a text against the movement catalog")
	fmt.Fprintln(os.Stderr, "  rematch          Re-run matching over all stored sources")
	fmt.Fprintln(os.Stderr, "  dedup            Find and merge duplicate movements")
	fmt.Fprintln(os.Stderr, "  hashes           Backfill missing content hashes")
	fmt.Fprintln(os.Stderr, "  dupes            Report or remove duplicate source documents")
	fmt.Fprintln(os.Stderr, "  extract-aliases  Mine stored texts for new movement aliases")
	fmt.Fprintln(os.Stderr, "  stats            Show registry counters")
	fmt.Fprintln(os.Stderr, "  serve            Start the registry API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"movements <command> -h\" for command-specific flags.")
}
