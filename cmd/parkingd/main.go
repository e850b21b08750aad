package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"parking-scheduler-backend/config"
	"parking-scheduler-backend/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "parkingd",
	Short: "Tiered parking slot scheduler",
	Long: "parkingd assigns occupants to parking slots across tiers, times their stays, " +
		"queues overflow on queueing tiers and hands freed slots to whoever waits.",
	SilenceUsage: true,
}

func init() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "Path to the YAML configuration file")
}

// loadConfig reads --config. A missing default file falls back to built-in
// defaults; a missing file that was asked for explicitly is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		log := logging.Component("config")
		log.Warn().Str("path", configPath).Msg("configuration file not found, using defaults")
		return config.Default(), nil
	}
	return nil, err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
