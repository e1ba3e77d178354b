package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"

	"github.com/pevans/propfinder/ads"
	"github.com/pevans/propfinder/history"
)

// idPattern matches a derived ad identifier
var idPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

func handleHistoryCommand(action, configPath string, args []string) {
	switch action {
	case "count":
		handleHistoryCount(configPath, args)
	case "has":
		handleHistoryHas(configPath, args)
	case "help", "--help", "-h":
		printHistoryUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown history command: %s\n\n", action)
		printHistoryUsage()
		os.Exit(1)
	}
}

func printHistoryUsage() {
	fmt.Println("propfinder history - Inspect the seen-ads history")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  propfinder history <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  count            Number of recorded ads")
	fmt.Println("  has <href|id>    Whether an ad has been recorded")
	fmt.Println("  help             Show this help message")
}

// loadHistory opens the configured history and reads it fully.
func loadHistory(configPath string) (ads.Set, error) {
	cfg := mustLoadConfig(configPath)

	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := history.Open(history.Options{
		Type: cfg.History.Type,
		DSN:  cfg.History.DSN,
		Key:  cfg.History.Key,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	return store.Load()
}

func handleHistoryCount(configPath string, args []string) {
	fs := flag.NewFlagSet("history count", flag.ExitOnError)
	configFlag := fs.String("config", configPath, "Path to config file")
	fs.Parse(args)

	seen, err := loadHistory(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(len(seen))
}

func handleHistoryHas(configPath string, args []string) {
	fs := flag.NewFlagSet("history has", flag.ExitOnError)
	configFlag := fs.String("config", configPath, "Path to config file")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: history has requires exactly one href or id")
		os.Exit(1)
	}

	seen, err := loadHistory(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	id := lookupID(fs.Arg(0))
	if seen.Contains(id) {
		fmt.Printf("yes %s\n", id)
		return
	}

	fmt.Printf("no %s\n", id)
	os.Exit(1)
}

// lookupID accepts either a raw href or an identifier already derived from
// one.
func lookupID(arg string) string {
	if idPattern.MatchString(arg) {
		return arg
	}
	return ads.DeriveID(arg)
}

func handleID(args []string) {
	fs := flag.NewFlagSet("id", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: id requires at least one href")
		os.Exit(1)
	}

	for _, href := range fs.Args() {
		fmt.Printf("%s  %s\n", ads.DeriveID(href), href)
	}
}
