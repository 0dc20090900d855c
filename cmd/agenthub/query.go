package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"agenthub/internal/domain"
	"agenthub/internal/usecase"
	"agenthub/internal/usecase/multiagent"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		limit      int
		asJSON     bool
		onlyRouted bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Score catalog agents against a query",
		Long: `Search ranks active agents by how well their intent keywords, capabilities,
description and name match the query. With --specialists only the agents the
master agent could be briefed with are considered.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			var agents []domain.Agent
			if onlyRouted {
				agents, err = store.Specialists(ctx)
			} else {
				agents, err = store.List(ctx, true)
			}
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			results := multiagent.Search(agents, query)
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, results)
			}
			printSearchResults(out, query, results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&onlyRouted, "specialists", false, "consider only routable specialists")
	return cmd
}

func printSearchResults(w io.Writer, query string, results []domain.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintf(w, "No agents match %q.\n", query)
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s %s\n", i+1, styleBold.Render(r.Agent.Name), styleAccent.Render(fmt.Sprintf("(score %d)", r.RelevanceScore)))
		if r.Agent.Description != "" {
			fmt.Fprintf(w, "   %s\n", r.Agent.Description)
		}
		if len(r.MatchedKeywords) > 0 {
			fmt.Fprintf(w, "   %s %s\n", styleDim.Render("matched:"), strings.Join(r.MatchedKeywords, ", "))
		}
	}
}

func newRouteCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON bool
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "route <message>",
		Short: "Answer a message through the master agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			orch, err := a.orchestrator(ctx)
			if err != nil {
				return err
			}
			res, err := orch.Route(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, res)
			}
			routed := "none"
			if len(res.RoutedAgents) > 0 {
				routed = strings.Join(res.RoutedAgents, ", ")
			}
			fmt.Fprintf(out, "%s %s  %s %s\n\n",
				styleDim.Render("model:"), res.ModelUsed,
				styleDim.Render("specialists:"), routed)
			fmt.Fprint(out, answer(res.Response, raw))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the answer without markdown rendering")
	return cmd
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var (
		req    usecase.ChatRequest
		asJSON bool
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a message to a single agent",
		Long: `Chat sends one message to a catalog agent (--agent) or to an ad-hoc
persona given by --system. No routing or model fallback takes place.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.chatService(ctx)
			if err != nil {
				return err
			}
			req.Message = strings.Join(args, " ")
			res, err := svc.Chat(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "%s %s\n\n", styleDim.Render("model:"), res.ModelUsed)
			fmt.Fprint(out, answer(res.Response, raw))
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.AgentID, "agent", "a", "", "catalog agent ID")
	cmd.Flags().StringVarP(&req.SystemPrompt, "system", "s", "", "system prompt when no agent is given")
	cmd.Flags().StringVarP(&req.Model, "model", "m", "", "model override")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the answer without markdown rendering")
	return cmd
}

func answer(text string, raw bool) string {
	if raw {
		return strings.TrimRight(text, "\n") + "\n"
	}
	return renderMarkdown(text, 100)
}
