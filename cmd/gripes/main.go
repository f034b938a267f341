package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/gripes/internal/config"
	"github.com/steveyegge/gripes/internal/logging"
)

// version is stamped into store locks
var version = "dev"

var (
	cfg        *config.Config
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "gripes",
	Short: "Find the most common complaints about a product",
	Long: `gripes collects product feedback from Reddit, YouTube, Twitter and RSS feeds,
classifies each post by feature and sentiment, and merges near-duplicate complaints
into clusters using text embeddings.

Configuration is read from gripes.yaml (or --config), then GRIPES_* environment
variables, then command-line flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(os.Stderr, logLevel); err != nil {
			return err
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./gripes.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $GRIPES_LOG_LEVEL or info)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
