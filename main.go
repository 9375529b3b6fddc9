package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		showHelp()
		os.Exit(0)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd != "upgrade" {
		startUpdateCheck()
		defer printUpdateNotice()
	}

	switch cmd {
	case "-h", "--help", "help":
		showHelp()
	case "-v", "--version", "version":
		fmt.Printf("autospec v%s\n", version)
	case "init":
		cmdInit(args)
	case "generate":
		cmdGenerate(args)
	case "interpret":
		cmdInterpret(args)
	case "mine":
		cmdMine(args)
	case "doctor":
		cmdDoctor(args)
	case "upgrade":
		cmdUpgrade(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprintln(os.Stderr, "Run 'autospec --help' for usage.")
		os.Exit(1)
	}
}

func showHelp() {
	fmt.Printf(`autospec v%s - Observation-driven e2e test synthesis

Usage: autospec <command> [options]

Commands:
  init [--force]       Initialize autospec (creates autospec.config.json)
  generate             Synthesize and publish a test from acceptance criteria
  interpret            Show the ordered intent for criteria without a browser
  mine                 Show the mined page-object catalog
  doctor               Check the autospec environment
  upgrade              Upgrade autospec to the latest version

Options:
  -h, --help           Show this help message
  -v, --version        Show version number

Examples:
  autospec init
  autospec generate --ticket SHOP-123 --title "Invoice from past orders" \
      --criteria "Given the user is on the orders hub ..."
  autospec generate --ticket SHOP-123 --criteria-file criteria.txt --dry-run
  autospec interpret --criteria "When the user clicks Load More ..."
  autospec mine

File Structure:
  autospec.config.json          # Project configuration (required)
  .env                          # Secrets (tokens, passwords), never committed
  .autospec/
    logs/                       # One JSONL event stream per run
    locks/                      # Per-ticket run locks
`, version)
}
