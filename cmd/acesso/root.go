// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/codelab/acesso/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the acesso CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acesso",
		Short: "acesso - authentication and password recovery",
		Long: `acesso authenticates users, issues gateway-bound session tokens,
and runs the password recovery flow.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/acesso/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewCertsCmd())

	return cmd
}

// loadConfig loads and validates configuration using the command's flags.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
