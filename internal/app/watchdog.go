package app

import (
	"rosterd/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Watchdog re-creates the sentinel group on boards where another actor removed it.
type Watchdog struct {
	logger runtime.Logger
	log    bool
}

// NewWatchdog returns a watchdog that warns about repairs when log is set.
func NewWatchdog(logger runtime.Logger, log bool) *Watchdog {
	return &Watchdog{logger: logger, log: log}
}

// Check ensures the sentinel on every board and returns the ids of repaired boards.
func (w *Watchdog) Check(boards []*domain.Board) []string {
	var repaired []string
	for _, b := range boards {
		if _, created := b.EnsureGroup(domain.SentinelGroup, domain.RankingGroupOptions); created {
			repaired = append(repaired, b.ID())
		}
	}
	if len(repaired) > 0 && w.log && w.logger != nil {
		w.logger.Warn("watchdog re-created %s on %d boards: %v", domain.SentinelGroup, len(repaired), repaired)
	}
	return repaired
}
