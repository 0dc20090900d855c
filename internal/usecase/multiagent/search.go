// Package multiagent scores specialist agents against a user query and
// routes the query through the master agent with the best matches attached.
package multiagent

import (
	"slices"
	"strings"
	"unicode/utf8"

	"agenthub/internal/domain"
)

// Score weights.
const (
	intentKeywordWeight = 3
	capabilityWeight    = 2
	nameWeight          = 2
	descriptionWeight   = 1
)

// minTokenRunes is the length a token must exceed to take part in scoring.
const minTokenRunes = 2

// Search ranks agents by relevance to query. Only agents with a positive score
// are returned, ordered by descending score; ties keep the order of agents.
// Search never fails and does not modify agents. Empty intent keywords and
// capabilities are ignored rather than matching every token.
func Search(agents []domain.Agent, query string) []domain.SearchResult {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []domain.SearchResult{}
	}

	results := make([]domain.SearchResult, 0, len(agents))
	for i := range agents {
		if r, ok := score(&agents[i], tokens); ok {
			results = append(results, r)
		}
	}

	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		return b.RelevanceScore - a.RelevanceScore
	})
	return results
}

// tokenize lower-cases query, splits it on whitespace and drops short tokens.
func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > minTokenRunes {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func score(agent *domain.Agent, tokens []string) (domain.SearchResult, bool) {
	keywords := lowerAll(agent.IntentKeywords)
	capabilities := lowerAll(agent.Capabilities)
	description := strings.ToLower(agent.Description)
	name := strings.ToLower(agent.Name)

	total := 0
	var matched []string
	record := func(term string) {
		if !slices.Contains(matched, term) {
			matched = append(matched, term)
		}
	}

	// Matched terms are recorded in declaration order: intent keywords first,
	// then capabilities.
	for i, kw := range keywords {
		for _, tok := range tokens {
			if overlaps(tok, kw) {
				total += intentKeywordWeight
				record(agent.IntentKeywords[i])
			}
		}
	}
	for i, c := range capabilities {
		for _, tok := range tokens {
			if overlaps(tok, c) {
				total += capabilityWeight
				record(agent.Capabilities[i])
			}
		}
	}
	for _, tok := range tokens {
		if strings.Contains(description, tok) {
			total += descriptionWeight
		}
		if strings.Contains(name, tok) {
			total += nameWeight
		}
	}

	if total == 0 {
		return domain.SearchResult{}, false
	}
	if matched == nil {
		matched = []string{}
	}
	return domain.SearchResult{Agent: agent, RelevanceScore: total, MatchedKeywords: matched}, true
}

// overlaps reports whether either term contains the other. term is already
// lower-cased; an empty term never matches.
func overlaps(token, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(term, token) || strings.Contains(token, term)
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
