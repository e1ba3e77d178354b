package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pevans/propfinder/config"
	"github.com/pevans/propfinder/sites"
)

func handleSites(configPath string, args []string) {
	// Parse flags for sites command
	fs := flag.NewFlagSet("sites", flag.ExitOnError)
	configFlag := fs.String("config", configPath, "Path to config file")
	sitesFlag := fs.String("file", "", "Sites file to read instead of the configured one")
	fs.Parse(args)

	sitesFile := *sitesFlag
	if sitesFile == "" {
		sitesFile = mustLoadConfig(*configFlag).SitesFile
	}

	selectors, err := config.LoadSites(sitesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	registry, err := sites.NewRegistry(selectors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid sites file %s: %v\n", sitesFile, err)
		os.Exit(1)
	}

	// Print table header
	fmt.Printf("%-30s %-40s %s\n", "HOST", "SITE", "SELECTOR")
	fmt.Println("----------------------------------------------------------------------------------------------------")

	for _, rule := range registry.Rules() {
		fmt.Printf("%-30s %-40s %s\n", truncate(rule.Host, 30), truncate(rule.Site, 40), rule.Selector)
	}

	fmt.Printf("\nTotal: %d sites\n", registry.Len())
}
