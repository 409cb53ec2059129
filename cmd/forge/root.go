package main

import (
	"github.com/spf13/cobra"

	"github.com/dataforge-ai/forge/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Training data pipeline: scrape, chunk, generate, score, export",
	Long: `Forge turns web pages into LLM training datasets.

The pipeline runs five stages per job:
  - spider:    fetch pages politely (robots.txt, per-domain rate limits)
  - refiner:   extract article text, chunk it, drop near-duplicates
  - factory:   generate examples from each chunk with an LLM template
  - inspector: score every example against configurable quality checks
  - shipper:   export passing examples as JSON, JSONL, or CSV with a
               dataset card`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.forge/config.yaml)",
	)

	rootCmd.AddCommand(versionCmd)
}
