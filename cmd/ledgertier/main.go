package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/config"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "ledgertier",
		Short: "Tiered expense categorization engine",
		Long: `ledgertier: the categorization core of an expense-management platform.

It normalizes statement descriptions, suggests GL codes and departments
through a cache / similarity / inference tier chain, and learns recurring
vendor patterns from approved reports and user corrections.`,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/ledgertier/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add commands
	rootCmd.AddCommand(normalizeCmd())
	rootCmd.AddCommand(categorizeCmd())
	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(patternsCmd())
	rootCmd.AddCommand(aliasesCmd())
	rootCmd.AddCommand(embeddingsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(reportsCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel() // Always cleanup

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	// Set up config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		for _, dir := range config.SearchDirs() {
			viper.AddConfigPath(dir)
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("LEDGERTIER")
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Tunable defaults
	viper.SetDefault("similarity.threshold", 0.92)
	viper.SetDefault("similarity.top_k", 5)
	viper.SetDefault("confidence.high_accuracy", 0.85)
	viper.SetDefault("confidence.medium_accuracy", 0.6)
	viper.SetDefault("confidence.high_occurrences", 5)
	viper.SetDefault("learning.reinforcement_rate", 0.1)
	viper.SetDefault("learning.rejection_penalty", 0.15)
	viper.SetDefault("learning.fuzzy_floor", 0.8)
	viper.SetDefault("embeddings.retention_hours", 24)
	viper.SetDefault("inference.timeout_seconds", 15)
	viper.SetDefault("aliases.promotion_min_count", 3)

	// Set up logging
	return common.SetupLogger(viper.GetString("logging.level"), viper.GetString("logging.format"))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("ledgertier %s\n", version)
		},
	}
}
