package main

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "agenthub",
		Short: "agenthub - intent-based agent routing",
		Long: `agenthub routes user requests through a master agent briefed with the
specialist agents most relevant to each request.

Configuration is read from config.yaml (or --config). AGENTHUB_* environment
variables override file settings, and a .env file in the working directory
is loaded first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultPath := os.Getenv("AGENTHUB_CONFIG")
	if defaultPath == "" {
		defaultPath = defaultConfigPath
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultPath, "path to config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newSearchCmd(opts),
		newRouteCmd(opts),
		newChatCmd(opts),
		newAgentsCmd(opts),
		newConfigCmd(opts),
		newDoctorCmd(opts),
	)
	return cmd
}
