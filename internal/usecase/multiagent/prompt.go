package multiagent

import (
	"strconv"
	"strings"

	"agenthub/internal/domain"
)

// composeSystemPrompt builds the master agent's system instruction for one
// request: its own prompt, the selected specialists, the user query and the
// closing guidance.
func composeSystemPrompt(master *domain.Agent, selected []domain.SearchResult, query, guidance string) string {
	var b strings.Builder
	b.WriteString(master.SystemPrompt)
	b.WriteString("\n\nAvailable Specialist Agents:\n")
	for _, r := range selected {
		b.WriteString("\n- ")
		b.WriteString(r.Agent.Name)
		b.WriteString(": ")
		b.WriteString(r.Agent.Description)
		b.WriteString("\n  Capabilities: ")
		b.WriteString(strings.Join(r.Agent.Capabilities, ", "))
		b.WriteString("\n  Relevance Score: ")
		b.WriteString(strconv.Itoa(r.RelevanceScore))
		b.WriteString("\n")
	}
	b.WriteString("\n\nCurrent user request: \"")
	b.WriteString(query)
	b.WriteString("\"\n\n")
	b.WriteString(guidance)
	return b.String()
}
