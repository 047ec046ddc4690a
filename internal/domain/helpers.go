package domain

import "strings"

// MatchLabel is advertised as the match label of a roster match.
type MatchLabel struct {
	Kind       string `json:"kind"`
	Population int    `json:"population"`
	Ranking    bool   `json:"ranking"`
}

// ComputeLabel derives the advertised label from the connected population.
func ComputeLabel(population int, rankingEnabled bool) MatchLabel {
	return MatchLabel{Kind: "roster", Population: population, Ranking: rankingEnabled}
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
