package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/law-makers/eventcrawl/internal/auth"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored cookie sessions",
	Long: `Some event sites gate listings behind a login or age wall. A stored
session's cookies are replayed on every fetch so those pages resolve like a
logged-in visit.`,
}

var sessionsImportURL string

var sessionsImportCmd = &cobra.Command{
	Use:   "import <name> <cookies.json>",
	Short: "Import cookies exported from a browser",
	Example: `  # Import cookies exported via a browser extension
  eventcrawl sessions import ra-login cookies.json --url=https://ra.co`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, path := args[0], args[1]

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read cookie file: %w", err)
		}
		var cookies []auth.Cookie
		if err := json.Unmarshal(data, &cookies); err != nil {
			return fmt.Errorf("failed to parse cookie file: %w", err)
		}
		if len(cookies) == 0 {
			return fmt.Errorf("cookie file contains no cookies")
		}

		session := &auth.Session{
			Name:      name,
			URL:       sessionsImportURL,
			Cookies:   cookies,
			CreatedAt: time.Now(),
		}

		// Stamp the session with the earliest cookie expiry so Load can
		// reject it once the login has lapsed
		for _, c := range cookies {
			if c.Expires <= 0 {
				continue
			}
			expiry := time.Unix(int64(c.Expires), 0)
			if session.ExpiresAt.IsZero() || expiry.Before(session.ExpiresAt) {
				session.ExpiresAt = expiry
			}
		}

		if err := auth.Save(session); err != nil {
			return err
		}
		fmt.Printf("Imported session %q (%d cookies)\n", name, len(cookies))
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a stored session's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := auth.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Session:  %s\n", session.Name)
		fmt.Printf("Cookies:  %d\n", len(session.Cookies))
		fmt.Printf("Created:  %s\n", session.CreatedAt.Format(time.RFC3339))
		if !session.ExpiresAt.IsZero() {
			fmt.Printf("Expires:  %s\n", session.ExpiresAt.Format(time.RFC3339))
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted session %q\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsImportCmd)
	sessionsImportCmd.Flags().StringVar(&sessionsImportURL, "url", "", "Site URL the cookies belong to (required)")
	sessionsImportCmd.MarkFlagRequired("url")
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
