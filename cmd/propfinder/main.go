package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pevans/propfinder/config"
)

func main() {
	// A .env file is optional; variables already set win
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	configPath := getEnv("PROPFINDER_CONFIG", config.DefaultPath)

	// Get subcommand
	subcommand := os.Args[1]

	switch subcommand {
	case "run":
		handleRun(configPath, os.Args[2:])
	case "sites":
		handleSites(configPath, os.Args[2:])
	case "history":
		if len(os.Args) < 3 {
			printHistoryUsage()
			os.Exit(1)
		}
		handleHistoryCommand(os.Args[2], configPath, os.Args[3:])
	case "id":
		handleID(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("propfinder - Real-estate ad watcher")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  propfinder <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Crawl every configured query and notify about new ads")
	fmt.Println("  sites      List configured site rules")
	fmt.Println("  history    Inspect the seen-ads history")
	fmt.Println("  id         Print the identifier derived from an ad href")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  PROPFINDER_CONFIG        Path to config file (default: propfinder.yaml)")
	fmt.Println("  PROPFINDER_HISTORY_TYPE  Override history.type")
	fmt.Println("  PROPFINDER_HISTORY_DSN   Override history.dsn")
	fmt.Println("  PROPFINDER_LOG_LEVEL     Override log.level")
	fmt.Println()
	fmt.Println("Variables may also be set in a .env file in the working directory.")
}
