// ABOUTME: Root command for the carshop CLI
// ABOUTME: Handles global flags and configuration

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hiu1412/carshop/internal/config"
)

var (
	apiURL     string
	jsonOutput bool
	configDir  string
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "carshop",
	Short: "Command-line storefront for the car shop",
	Long: `carshop browses the car catalogue, manages your cart, places orders and
follows payments against the car shop REST API.

Exit codes:
  0 - Success
  1 - Rejected by the shop (not enough stock, not in cart, payment not completed)
  2 - Error (connectivity, authentication, invalid input)

Environment Variables:
  CARSHOP_API_URL                API root (default: http://localhost:8000/api)
  CARSHOP_CONFIG_DIR             Where the session and cookies are kept
  CARSHOP_REQUEST_TIMEOUT        Per-request timeout in seconds (default: 30)
  CARSHOP_CART_DEBOUNCE_MS       Quantity edit debounce window (default: 500)
  CARSHOP_CART_CACHE_TTL         Cart cache lifetime in seconds (default: 30)
  CARSHOP_PAYMENT_POLL_INTERVAL  Seconds between payment checks (default: 5)
  CARSHOP_PAYMENT_POLL_TIMEOUT   Seconds before giving up on a payment (default: 600)
  LOG_LEVEL, LOG_FORMAT          Logging (debug|info|warn|error, text|json)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API root URL (overrides CARSHOP_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Session directory (overrides CARSHOP_CONFIG_DIR)")
}

// GetAPIURL returns the API URL from flag, env, or default (in priority order)
func GetAPIURL() string {
	if apiURL != "" {
		return apiURL
	}
	if envURL := os.Getenv("CARSHOP_API_URL"); envURL != "" {
		return envURL
	}
	return config.DefaultAPIURL
}

// GetConfigDir returns the session directory from flag, env, or default
func GetConfigDir() string {
	if configDir != "" {
		return configDir
	}
	if envDir := os.Getenv("CARSHOP_CONFIG_DIR"); envDir != "" {
		return envDir
	}
	return config.DefaultConfigDir()
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}
