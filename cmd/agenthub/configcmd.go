package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"agenthub/internal/infra/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(newConfigEncryptCmd(), newConfigValidateCmd(opts))
	return cmd
}

// newConfigEncryptCmd prints an "enc:" value for pasting into config.yaml.
// The passphrase is AGENTHUB_CONFIG_KEY, the same key Load decrypts with.
func newConfigEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [value]",
		Short: "Encrypt a secret for config.yaml",
		Long: `Encrypt prints an enc: value that Load decrypts with AGENTHUB_CONFIG_KEY.
The value is read from stdin when no argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase := os.Getenv("AGENTHUB_CONFIG_KEY")
			if passphrase == "" {
				return errors.New("AGENTHUB_CONFIG_KEY is not set")
			}

			var value string
			if len(args) == 1 {
				value = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read value: %w", err)
				}
				value = strings.TrimRight(line, "\r\n")
			}
			if value == "" {
				return errors.New("nothing to encrypt")
			}

			enc, err := config.EncryptValue(value, passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "enc:"+enc)
			return nil
		},
	}
}

func newConfigValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (catalog: %s, providers: %d, primary model: %s)\n",
				styleSuccess.Render("valid"), opts.configPath,
				cfg.Catalog.Backend, len(cfg.LLM.Providers), cfg.Routing.PrimaryModel)
			return nil
		},
	}
}
