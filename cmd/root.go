// Package cmd contains the imgproxy CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	envFile string
	port    int
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "imgproxy",
	Short: "Allowlisted image proxy with resizing and caching",
	Long: `imgproxy fetches images from allowlisted hosts, optionally resizes and
re-encodes them, and serves the result from an in-memory cache.

Example usage:
  imgproxy                     # Same as "imgproxy serve"
  imgproxy serve --port 8080   # Listen on a different port
  imgproxy version             # Print build information`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string reported by the CLI.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 0, "listen port (overrides PORT)")
}
