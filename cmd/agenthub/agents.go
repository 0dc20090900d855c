package main

import (
	"fmt"
	"io"
	"os/user"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"agenthub/internal/adapter/catalog"
	"agenthub/internal/domain"
)

func newAgentsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect and load the agent catalog",
	}
	cmd.AddCommand(newAgentsListCmd(opts), newAgentsImportCmd(opts))
	return cmd
}

func newAgentsListCmd(opts *rootOptions) *cobra.Command {
	var (
		all    bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.catalog(ctx)
			if err != nil {
				return err
			}
			agents, err := store.List(ctx, !all)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), agents)
			}
			printAgents(cmd.OutOrStdout(), agents)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include inactive agents")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print agents as JSON")
	return cmd
}

func printAgents(w io.Writer, agents []domain.Agent) {
	if len(agents) == 0 {
		fmt.Fprintln(w, "The catalog is empty.")
		return
	}
	for _, a := range agents {
		var tags []string
		if a.IsMaster {
			tags = append(tags, styleAccent.Render("master"))
		}
		if !a.IsActive {
			tags = append(tags, styleWarning.Render("inactive"))
		}
		line := fmt.Sprintf("%s  %s", styleDim.Render(a.ID), styleBold.Render(a.Name))
		if len(tags) > 0 {
			line += "  [" + strings.Join(tags, ", ") + "]"
		}
		fmt.Fprintln(w, line)
		if len(a.Capabilities) > 0 {
			fmt.Fprintf(w, "    capabilities: %s\n", strings.Join(a.Capabilities, ", "))
		}
	}
}

func newAgentsImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml|file.json>",
		Short: "Import agent definitions into the catalog",
		Long: `Import creates every agent defined in the file. Agents whose ID is already
in the catalog are skipped, so importing the same file twice is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			agents, err := catalog.LoadAgentsFile(args[0])
			if err != nil {
				return err
			}
			store, err := a.catalog(ctx)
			if err != nil {
				return err
			}
			audits, err := a.auditLog()
			if err != nil {
				return err
			}
			n, err := catalog.Import(ctx, store, agents)
			event := domain.AuditEvent{
				Type:     domain.AuditAgentImport,
				Actor:    currentUser(),
				Resource: args[0],
				Outcome:  "success",
				Detail:   map[string]string{"created": strconv.Itoa(n), "total": strconv.Itoa(len(agents))},
			}
			if err != nil {
				event.Outcome = "failed"
			}
			if auditErr := audits.Log(ctx, event); auditErr != nil {
				a.logger.Error("audit write failed", "error", auditErr)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s imported %d of %d agents from %s\n",
				styleSuccess.Render("ok"), n, len(agents), args[0])
			return nil
		},
	}
}

// currentUser names the local operator for audit records.
func currentUser() string {
	if u, err := user.Current(); err == nil {
		return "local:" + u.Username
	}
	return "local"
}
