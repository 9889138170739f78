// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the citation-engine CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citation-engine/internal/config"
	"github.com/pdiddy/citation-engine/internal/secrets"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the resolved configuration, set before any subcommand runs.
	cfg types.Config
	// logger writes structured diagnostics to stderr.
	logger *slog.Logger
)

// rootCmd is the base command for the citation-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "citation-engine",
	Short: "Suggest and format citations for academic paragraphs",
	Long: `citation-engine reads a paragraph of academic prose, asks a language model
which papers support it, confirms them against a search index, widens the
pool with other work by the same authors, ranks everything against the
paragraph and returns the paragraph with \cite{} markers plus BibTeX.

Every run writes its phase checkpoints to a run directory under the results
directory; failed runs can be resumed with "cite --resume DIR".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		s, err := secrets.Load(secrets.DefaultDir, nil)
		if err != nil {
			return err
		}
		if names := s.Names(); len(names) > 0 {
			sort.Strings(names)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", names)
		}
		cfg, err = config.Load(viper.GetViper(), s)
		if err != nil {
			return err
		}
		logger, err = config.NewLogger(cfg.Log, os.Stderr)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./citation-engine.yaml or ~/.config/citation-engine/citation-engine.yaml)")
	pf.String("results-dir", "", "directory for run directories and the cumulative bibliography")
	pf.String("provider", "", "language model provider: claude or openai")
	pf.String("model", "", "language model identifier")
	pf.String("backend", "", "search index: arxiv, semantic_scholar or openalex")
	pf.String("log-level", "", "log level: debug, info, warn or error")

	for key, flag := range map[string]string{
		"pipeline.results_dir": "results-dir",
		"llm.provider":         "provider",
		"llm.model":            "model",
		"search.backend":       "backend",
		"log.level":            "log-level",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
}

func initConfig() {
	config.Setup(viper.GetViper())

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(config.Name)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", config.Name))
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
