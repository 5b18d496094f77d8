// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Command go-autodiff applies unified-diff edits produced by language
// models to a repository, with git snapshots around every apply.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.1.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "go-autodiff",
		Short:         "Apply model-written unified diffs to a repository",
		Long:          "go-autodiff asks one or more models for unified-diff edits, picks the candidate that applies best, and merges it between git snapshot commits.",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if viper.GetBool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	// Global flags.
	flags := rootCmd.PersistentFlags()
	flags.String("workdir", ".", "Repository root directory")
	flags.Float64("fuzzy-threshold", 0, "Fuzzy match similarity in (0, 1]; 0 disables fuzzy matching")
	flags.Bool("no-git", false, "Apply without snapshot commits")
	flags.BoolP("verbose", "v", false, "Debug logging")

	for _, name := range []string{"workdir", "fuzzy-threshold", "no-git", "verbose"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}

	// Env vars: GO_AUTODIFF_MODELS, GO_AUTODIFF_REGION, etc.
	viper.SetEnvPrefix("GO_AUTODIFF")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	// Config file.
	viper.SetConfigName(".go-autodiff")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.ReadInConfig() // Ignore error; config file is optional.

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newUndoCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// newVersionCmd creates the "version" command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print go-autodiff version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "go-autodiff %s\n", version)
		},
	}
}
