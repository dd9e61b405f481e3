package config

import "github.com/spf13/cobra"

// RegisterFlags registers the shared persistent flags on the root command
func RegisterFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.Bool("json", false, "Emit logs as JSON")
	pf.String("user-agent", "", "Default user agent string")
	pf.String("timeout", "", "Fetch timeout (e.g. 30s)")
	pf.Bool("headed", false, "Run the browser with a visible window")
	pf.StringP("site", "s", "", "Path to the site configuration YAML")
}
