package main

import (
	"fmt"
	"os"

	"globule-detector/internal/logger"
	"globule-detector/internal/params"

	"github.com/spf13/cobra"
)

const AppVersion = "1.0.0"

var (
	logLevel   string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "globule-detector",
	Short:         "Detect and separate fat globules in binary tissue masks",
	Version:       AppVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newDemoCmd())
}

func newLogger() (logger.Logger, error) {
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return logger.NewConsoleLogger(level), nil
}

// loadConfig returns the defaults when no --config was given.
func loadConfig() (*params.Config, error) {
	if configPath == "" {
		cfg := params.DefaultConfig()
		return &cfg, nil
	}
	return params.LoadConfig(configPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
