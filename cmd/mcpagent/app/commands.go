// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the mcpagent command-line application.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
	"github.com/wanquanY/Plan-A-sub001/pkg/versions"
)

// NewRootCmd creates a new root command for the mcpagent CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "mcpagent",
		DisableAutoGenTag: true,
		Short:             "MCP agent gateway - chat with a model that uses tools from many MCP servers",
		Long: `mcpagent connects to a set of MCP (Model Context Protocol) tool servers,
aggregates their tools into one namespaced catalog and runs a chat agent on
top of it. It provides:

- Connection management with handshake, retries and health degradation
- A tool catalog namespaced by server, plus built-in tools
- Per-session conversation memory in Redis
- A REST API for chat, sessions, servers and tools
- An optional MCP endpoint re-exporting the aggregated catalog`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize(logger.Options{})
		},
		// Silence printing the usage on error
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file (defaults to the XDG config dir)")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newServersCmd())
	rootCmd.AddCommand(newToolServerCmd())

	return rootCmd
}

// loadConfig reads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	logger.Debugf("Loading configuration from: %q", path)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			if asJSON {
				return printJSON(cmd.OutOrStdout(), info)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "mcpagent %s\nCommit: %s\nBuilt: %s\nGo: %s\nPlatform: %s\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Validate the configuration file for syntax and semantic errors.

This command checks:
- YAML syntax validity and unknown fields
- Environment overrides
- Server entries (transport, command or address, names)
- Tunables (timeouts, bounds, separator)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "✓ Configuration is valid")
			_, _ = fmt.Fprintf(out, "  Name: %s\n", cfg.Name)
			_, _ = fmt.Fprintf(out, "  Servers: %d\n", len(cfg.Servers))
			memoryAddr := cfg.Memory.RedisAddr
			if memoryAddr == "" {
				memoryAddr = "disabled"
			}
			_, _ = fmt.Fprintf(out, "  Memory: %s\n", memoryAddr)
			_, _ = fmt.Fprintf(out, "  Model: %s (%s)\n", cfg.LLM.Model, cfg.LLM.BaseURL)
			return nil
		},
	}
}
