package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pevans/propfinder"
)

// printRunText prints a run summary in human-readable form
func printRunText(result *propfinder.RunResult, verbose bool) {
	if result == nil {
		return
	}

	fmt.Println("Run completed:")
	fmt.Printf("  Run ID: %s\n", result.RunID)
	fmt.Printf("  Duration: %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	fmt.Printf("  Queries crawled: %d\n", len(result.Queries))
	fmt.Printf("  Queries failed: %d\n", result.QueriesFailed)
	fmt.Printf("  Unseen ads: %d\n", result.Unseen)

	if len(result.Queries) > 0 {
		fmt.Println()
		fmt.Printf("%-60s %6s %6s %6s  %s\n", "QUERY", "PAGES", "SEEN", "UNSEEN", "STOP")
		for _, q := range result.Queries {
			stop := q.StopReason
			if q.Err != nil {
				stop = "error"
			}
			fmt.Printf("%-60s %6d %6d %6d  %s\n", truncate(q.Query, 60), q.Pages, q.Seen, q.Unseen, stop)
		}
	}

	// Show errors if any
	if len(result.Errors) > 0 && verbose {
		fmt.Println()
		fmt.Println("Errors:")
		for _, err := range result.Errors {
			fmt.Printf("  - %v\n", err)
		}
	}
}

// runJSON is RunResult with errors rendered as strings
type runJSON struct {
	*propfinder.RunResult
	Errors []string `json:"errors,omitempty"`
}

// printRunJSON prints a run summary in JSON format
func printRunJSON(result *propfinder.RunResult) {
	if result == nil {
		return
	}

	out := runJSON{RunResult: result}
	for _, err := range result.Errors {
		out.Errors = append(out.Errors, err.Error())
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
