// Package main provides the cvsync command line client and reference sync server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cvsync",
	Short: "Offline-first CV editor and sync server",
	Long: `cvsync keeps a locally editable CV in step with a remote server.

Edits are saved to the local data directory first and pushed when the server
is reachable; while offline they wait in a durable queue that is drained on
the next successful connection. Use "cvsync serve" to run the reference server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	rootConfigPath string
	rootServerURL  string
	rootDataDir    string
	rootVerbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	rootCmd.PersistentFlags().StringVar(&rootServerURL, "server", "", "Base URL of the sync server (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&rootDataDir, "data-dir", "", "Directory for the local document cache and pending queue (default ~/.cvsync)")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Print detailed debug information")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
