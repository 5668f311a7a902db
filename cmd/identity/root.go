package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the identity CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "User authentication service",
		Long: `A user authentication service providing registration, login,
opaque session tokens, and single-use password reset tokens over HTTP.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
