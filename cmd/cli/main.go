package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	apiBase string
	apiKey  string
)

var rootCmd = &cobra.Command{
	Use:           "uptimesweep",
	Short:         "Manage monitored sites through the uptimesweep API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiBase, "api", envOr("API_BASE", "http://localhost:8080"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "key", os.Getenv("API_KEY"), "API key (admin key for write commands)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func client() *apiClient {
	return newAPIClient(apiBase, apiKey)
}
