package ports

import (
	"context"
	"errors"

	"rosterd/internal/domain"
)

// ErrUnresolved is returned by a MetricProvider that has no value for a key.
var ErrUnresolved = errors.New("metric unresolved")

// MetricProvider resolves a named attribute (group, prefix, suffix, a numeric or
// string metric) for an entity. Values may be stale; lookups may fail or panic.
type MetricProvider interface {
	Resolve(ctx context.Context, entityID, key string) (string, error)
}

// GateFilter decides whether ranking and decoration are permitted for an entity
// in its current context.
type GateFilter interface {
	IsAllowed(e domain.Entity) bool
}

// Admits applies gate to e. A nil gate admits everyone; a gate that panics
// admits no one.
func Admits(gate GateFilter, e domain.Entity) (ok bool) {
	if gate == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return gate.IsAllowed(e)
}

// IdentityLabeler is the identity-label subsystem. Redecorate synchronously
// reapplies identity decoration to whatever group currently holds the entity.
type IdentityLabeler interface {
	Redecorate(ctx context.Context, entityID string)
}

// Roster lists the currently connected entities.
type Roster interface {
	Entities() []domain.Entity
	Entity(id string) (domain.Entity, bool)
}

// BoardHost owns the viewer boards. The engine only mutates their contents.
type BoardHost interface {
	// ViewerBoards returns one board per connected viewer.
	ViewerBoards() []*domain.Board
	// SharedBoard returns the single board used in shared mode.
	SharedBoard() *domain.Board
}

// LabelSink delivers the visible list label of an entity.
type LabelSink interface {
	// SetLabel overrides the entity's label with formatted text.
	SetLabel(entityID, label string) error
	// ResetLabel removes the override so the host default applies.
	ResetLabel(entityID string) error
}

// HeaderFooterSink delivers the text shown above and below a viewer's list.
// Empty strings clear it.
type HeaderFooterSink interface {
	SetHeaderFooter(viewerID, header, footer string) error
}

// SidebarSink delivers the sidebar panel of a viewer.
type SidebarSink interface {
	SetSidebar(viewerID string, panel domain.Sidebar) error
	ClearSidebar(viewerID string) error
}
