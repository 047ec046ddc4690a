package app

// EventKind identifies engine events for host dispatch.
type EventKind string

const (
	EventPassApplied      EventKind = "pass_applied"
	EventLabelsRefreshed  EventKind = "labels_refreshed"
	EventWatchdogRepaired EventKind = "watchdog_repaired"
	EventRankingEnabled   EventKind = "ranking_enabled"
	EventRankingDisabled  EventKind = "ranking_disabled"
	EventEntityRemoved    EventKind = "entity_removed"
)

// Event is an engine event with an optional payload.
type Event struct {
	Kind    EventKind
	Payload any
}

type PassAppliedPayload struct {
	Population int
	Excluded   int
	Moves      int
	Forced     bool
}

type WatchdogRepairedPayload struct {
	Boards []string
}

type EntityRemovedPayload struct {
	EntityID string
	Pruned   int
}
