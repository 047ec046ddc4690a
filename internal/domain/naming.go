package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// RankGroupPrefix starts the name of every rank group: rankgroup-000, rankgroup-001, ...
	RankGroupPrefix = "rankgroup-"
	// SentinelGroup is the marker group the watchdog keeps alive on every board.
	SentinelGroup = "rankgroup-sentinel"
	// IdentityGroupPrefix starts the per-entity groups owned by the identity-label subsystem.
	IdentityGroupPrefix = "nt_"
)

// RankGroupName returns the zero padded group name for a rank index.
func RankGroupName(rank int) string {
	return fmt.Sprintf("%s%03d", RankGroupPrefix, rank)
}

// RankIndex parses the rank index out of a rank group name.
func RankIndex(name string) (int, bool) {
	if name == SentinelGroup || !strings.HasPrefix(name, RankGroupPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, RankGroupPrefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsRankingGroup reports whether the group belongs to the ranking engine (rank groups and sentinel).
func IsRankingGroup(name string) bool {
	return name == SentinelGroup || strings.HasPrefix(name, RankGroupPrefix)
}

// IsIdentityGroup reports whether the group is owned by the identity-label subsystem.
func IsIdentityGroup(name string) bool {
	return strings.HasPrefix(name, IdentityGroupPrefix)
}

// IsRankGroup reports whether the group is a numbered rank group.
func IsRankGroup(name string) bool {
	_, ok := RankIndex(name)
	return ok
}
