package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// rootCmd runs the server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "murmur",
	Short: "Murmur one-to-one chat server",
	Long: `Murmur serves the chat HTTP API and the realtime websocket endpoint.
Configuration comes from config.yaml, .env and the environment.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
