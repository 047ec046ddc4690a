package app

import (
	"errors"
	"strings"
)

// BoardMode selects which boards the engine maintains.
type BoardMode string

const (
	// BoardsPerViewer keeps one board per connected viewer.
	BoardsPerViewer BoardMode = "per_viewer"
	// BoardsShared keeps a single board visible to everyone.
	BoardsShared BoardMode = "shared"
)

// ParseBoardMode accepts per_viewer and shared (case-insensitive).
func ParseBoardMode(raw string) (BoardMode, bool) {
	switch BoardMode(strings.ToLower(strings.TrimSpace(raw))) {
	case BoardsPerViewer, "":
		return BoardsPerViewer, true
	case BoardsShared:
		return BoardsShared, true
	default:
		return BoardsPerViewer, false
	}
}

// DefaultWatchdogEvery is the default watchdog period in ticks.
const DefaultWatchdogEvery = 20

var (
	ErrNotRunning   = errors.New("engine not running")
	ErrInvalidToken = errors.New("invalid admin token")
)
