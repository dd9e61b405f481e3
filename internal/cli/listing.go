package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/law-makers/eventcrawl/internal/scraper"
	"github.com/law-makers/eventcrawl/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	listingPaginate bool
	listingDetails  bool
	listingOutput   string
)

var listingCmd = &cobra.Command{
	Use:   "listing [url]",
	Short: "Crawl a listing page and collect event links or full records",
	Long: `Fetches a listing or calendar page, clears consent overlays, harvests
event detail links, and optionally pages through the listing. With --details
every harvested link is scraped into a full record; one failing page is
logged and skipped, never aborting the batch.`,
	Example: `  # Collect detail links from a listing page
  eventcrawl listing https://example.com/events --site=site.yaml

  # Page through the calendar and scrape every event found
  eventcrawl listing --site=site.yaml --paginate --details --output=events.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runListing,
}

func init() {
	rootCmd.AddCommand(listingCmd)

	listingCmd.Flags().BoolVar(&listingPaginate, "paginate", false, "Advance through listing pages (browser backend only)")
	listingCmd.Flags().BoolVar(&listingDetails, "details", false, "Scrape every harvested link into a full record")
	listingCmd.Flags().StringVarP(&listingOutput, "output", "o", "", "File path for JSON output (default stdout)")
}

func runListing(cmd *cobra.Command, args []string) error {
	var listingURL string
	if len(args) > 0 {
		listingURL = args[0]
		if !strings.HasPrefix(listingURL, "http://") && !strings.HasPrefix(listingURL, "https://") {
			return fmt.Errorf("invalid URL: must start with http:// or https://")
		}
	}

	a, err := getApp()
	if err != nil {
		return err
	}
	site, err := loadSite(cmd, listingURL)
	if err != nil {
		return err
	}
	s, err := a.NewScraper(site)
	if err != nil {
		return err
	}
	defer s.Close()

	links, err := s.CrawlListing(cmd.Context(), scraper.CrawlParams{
		URL:      listingURL,
		Paginate: listingPaginate,
	})
	if err != nil {
		if len(links) == 0 {
			return err
		}
		// Partial crawl: keep what we have and say so
		log.Warn().Err(err).Int("links", len(links)).Msg("Crawl ended early, continuing with collected links")
	}

	if !listingDetails {
		return writeJSON(links)
	}

	bar := progressbar.NewOptions(len(links),
		progressbar.OptionSetDescription("Scraping events"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var records []*models.EventRecord
	for _, link := range links {
		record, serr := s.ScrapeEvent(cmd.Context(), link)
		if serr != nil {
			log.Warn().Err(serr).Str("url", link).Msg("Skipping event page")
		} else {
			records = append(records, record)
		}
		_ = bar.Add(1)
		if cmd.Context().Err() != nil {
			return cmd.Context().Err()
		}
	}

	log.Info().Int("records", len(records)).Int("links", len(links)).Msg("Listing scrape finished")
	return writeJSON(records)
}

// writeJSON emits v to the --output file or stdout
func writeJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if listingOutput == "" {
		fmt.Println(string(out))
		return nil
	}
	if err := os.WriteFile(listingOutput, append(out, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
