package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/law-makers/eventcrawl/internal/extract"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event <url>",
	Short: "Scrape one event detail page into a structured record",
	Long: `Fetches a single event page and extracts a normalized record, trying
embedded structured data first, then microdata, then the selector catalog
from the site configuration.`,
	Example: `  # Scrape one event page
  eventcrawl event https://example.com/events/closing-party

  # Use a site configuration with selectors and a browser backend
  eventcrawl event https://example.com/events/closing-party --site=site.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runEvent,
}

func init() {
	rootCmd.AddCommand(eventCmd)
}

func runEvent(cmd *cobra.Command, args []string) error {
	pageURL := args[0]
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return fmt.Errorf("invalid URL: must start with http:// or https://")
	}

	a, err := getApp()
	if err != nil {
		return err
	}
	site, err := loadSite(cmd, pageURL)
	if err != nil {
		return err
	}
	s, err := a.NewScraper(site)
	if err != nil {
		return err
	}
	defer s.Close()

	record, err := s.ScrapeEvent(cmd.Context(), pageURL)
	if err != nil {
		// Surface partial extraction state so selector catalogs can be fixed
		var miss *extract.NoStrategyError
		if errors.As(err, &miss) {
			diag, _ := json.MarshalIndent(miss.Diagnostic, "", "  ")
			fmt.Fprintln(os.Stderr, string(diag))
		}
		return err
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
