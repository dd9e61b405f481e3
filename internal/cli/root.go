// Package cli provides the command-line interface for eventcrawl.
package cli

import (
	"fmt"
	"os"

	"github.com/law-makers/eventcrawl/internal/app"
	"github.com/law-makers/eventcrawl/internal/config"
	"github.com/spf13/cobra"
)

// Global reference set by PersistentPreRunE, cleared on shutdown
var globalApp *app.Application

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "eventcrawl",
	Short:   "A scraper for public event listings",
	Long:    `Eventcrawl extracts structured event records (title, venue, dates, prices, lineup) from event listing sites, falling back from embedded structured data to microdata to configured CSS selectors.`,
	Version: "0.1.0",
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Initialize the application lazily so -h/help stays cheap
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if globalApp != nil {
			return nil
		}
		cfg, err := config.Load(rootCmd)
		if err != nil {
			return err
		}
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		globalApp = a
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if globalApp == nil {
			return
		}
		_ = globalApp.Close()
		globalApp = nil
	}
}

// getApp returns the initialized Application
func getApp() (*app.Application, error) {
	if globalApp == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return globalApp, nil
}

// loadSite resolves the site configuration for a command: the --site YAML
// when given, otherwise a minimal HTTP-backed default for the target URL.
func loadSite(cmd *cobra.Command, targetURL string) (*config.Site, error) {
	if f := cmd.Flags().Lookup("site"); f != nil && f.Value.String() != "" {
		return config.LoadSite(f.Value.String())
	}
	site := &config.Site{
		Name:       "ad-hoc",
		ListingURL: targetURL,
	}
	site.ApplyDefaults()
	return site, nil
}
