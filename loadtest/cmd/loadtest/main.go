// Package main is the entry point for the moderation load test binary.
// It provides subcommands for different load testing scenarios:
//
//   - listings: listing checks only
//   - messages: message checks only
//   - mixed:    listings and messages interleaved
//
// Usage:
//
//	loadtest <command> [options]
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "listings", "messages", "mixed":
		runChecks(os.Args[1], os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: loadtest <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  listings    POST listing checks at a fixed rate")
	fmt.Println("  messages    POST message checks at a fixed rate")
	fmt.Println("  mixed       Interleave listing and message checks")
	fmt.Println()
	fmt.Println("Run 'loadtest <command> -h' for command-specific options.")
}
