// Package main provides the entry point for the Media Screener HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "screener_agent",
	Short: "Media Screener HTTP API Server",
	Long:  "Media Screener evaluates uploaded video payloads against a quality rubric via the Gemini API and gates YouTube publishing on the resulting score.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
