// Command obs is the CineSwipe debugging CLI.
//
// Usage:
//
//	obs                     Show help
//	obs events              JSONL event log viewer
//	obs stats               Stream and feed statistics from the event log
//	obs stats --prefs       Statistics plus the stored preferences
package main

import (
	"fmt"
	"os"
)

const usage = `obs - CineSwipe debug CLI

Usage:
  obs <command> [flags]

Commands:
  events      JSONL event log viewer
  stats       Stream, feed and provider statistics from the event log

Environment:
  CINESWIPE_CONFIG      Config file (default: ~/.cineswipe/config.yaml)
  CINESWIPE_LOG__DIR    Log directory holding cineswipe.events.jsonl

The event log is written when log.events is enabled.
Run 'obs <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "events":
		runEvents()
	case "stats":
		runStats()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "obs: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
