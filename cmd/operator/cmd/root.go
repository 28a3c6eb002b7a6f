// Package cmd provides the operator CLI commands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	sdk "blackroad.io/operator/client"
)

var (
	// Version information (set at build time via ldflags)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	serverURLs string
	adminToken string
	jsonOutput bool
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "operator",
	Short: "Operator - BlackRoad routing, policy and scaffold control plane",
	Long: `Operator routes task intents to BlackRoad organizations, enforces
security policy rules, and drives tasks through the ten-step scaffold with a
tamper-evident witnessing ledger.

It consists of:
  - serve: the HTTP API server
  - client commands that talk to a running server (route, policy, task, ledger)
  - local maintenance commands (db, token, catalog)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURLs, "server", getEnv("OPERATOR_SERVER", "http://localhost:8080"),
		"Comma-separated operator URLs, tried in order")
	rootCmd.PersistentFlags().StringVar(&adminToken, "token", getEnv("OPERATOR_TOKEN", ""),
		"Admin token for policy and task mutations")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// newClient builds an SDK client from the global flags.
func newClient() (*sdk.Client, error) {
	var urls []string
	for _, u := range strings.Split(serverURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return sdk.NewClient(sdk.ClientConfig{
		BaseURLs:   urls,
		AdminToken: adminToken,
		UserAgent:  "operator-cli/" + Version,
	})
}

// versionString returns formatted version information
func versionString() string {
	return fmt.Sprintf("Operator %s (commit: %s, built: %s)",
		Version, Commit, BuildDate)
}

// getEnv retrieves an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
