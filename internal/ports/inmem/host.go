// Package inmem is an in-process host: roster, boards, labels and metrics kept
// in memory. It backs the simulator and the engine tests.
package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rosterd/internal/domain"
	"rosterd/internal/ports"
)

const sharedBoardID = "shared"

// Host implements ports.Roster, ports.BoardHost, ports.LabelSink,
// ports.HeaderFooterSink and ports.SidebarSink.
type Host struct {
	mu       sync.Mutex
	order    []string
	entities map[string]domain.Entity
	boards   map[string]*domain.Board
	shared   *domain.Board
	labels   map[string]string
	failSet  map[string]error
	headers  map[string]HeaderFooter
	sidebars map[string]domain.Sidebar
}

// HeaderFooter is the text delivered above and below a viewer's list.
type HeaderFooter struct {
	Header string
	Footer string
}

// NewHost returns an empty host.
func NewHost() *Host {
	return &Host{
		entities: make(map[string]domain.Entity),
		boards:   make(map[string]*domain.Board),
		shared:   domain.NewBoard(sharedBoardID),
		labels:   make(map[string]string),
		failSet:  make(map[string]error),
		headers:  make(map[string]HeaderFooter),
		sidebars: make(map[string]domain.Sidebar),
	}
}

// Join connects e and gives it a viewer board. Re-joining updates name and zone.
func (h *Host) Join(e domain.Entity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.entities[e.ID]; !ok {
		h.order = append(h.order, e.ID)
		h.boards[e.ID] = domain.NewBoard(e.ID)
	}
	h.entities[e.ID] = e
}

// Leave disconnects an entity and drops its board, label, header and sidebar.
func (h *Host) Leave(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entities, id)
	delete(h.boards, id)
	delete(h.labels, id)
	delete(h.headers, id)
	delete(h.sidebars, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// SetZone moves an entity to another zone.
func (h *Host) SetZone(id, zone string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entities[id]
	if !ok {
		return false
	}
	e.Zone = zone
	h.entities[id] = e
	return true
}

// Entities returns the connected entities in join order.
func (h *Host) Entities() []domain.Entity {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Entity, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.entities[id])
	}
	return out
}

// Entity looks up a connected entity.
func (h *Host) Entity(id string) (domain.Entity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entities[id]
	return e, ok
}

// ViewerBoards returns the viewer boards in join order.
func (h *Host) ViewerBoards() []*domain.Board {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*domain.Board, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.boards[id])
	}
	return out
}

// Board returns the viewer board of id.
func (h *Host) Board(id string) (*domain.Board, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.boards[id]
	return b, ok
}

// SharedBoard returns the shared board.
func (h *Host) SharedBoard() *domain.Board {
	return h.shared
}

// SetLabel stores an override label.
func (h *Host) SetLabel(entityID, label string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.failSet[entityID]; err != nil {
		return err
	}
	if _, ok := h.entities[entityID]; !ok {
		return fmt.Errorf("entity %s not connected", entityID)
	}
	h.labels[entityID] = label
	return nil
}

// ResetLabel removes the override.
func (h *Host) ResetLabel(entityID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.labels, entityID)
	return nil
}

// Label returns the override label of an entity, if any.
func (h *Host) Label(entityID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.labels[entityID]
	return l, ok
}

// FailLabels makes SetLabel for entityID return err; nil clears it.
func (h *Host) FailLabels(entityID string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.failSet, entityID)
		return
	}
	h.failSet[entityID] = err
}

// SetHeaderFooter stores the header and footer of a viewer; two empty strings
// clear them.
func (h *Host) SetHeaderFooter(viewerID, header, footer string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.entities[viewerID]; !ok {
		return fmt.Errorf("viewer %s not connected", viewerID)
	}
	if header == "" && footer == "" {
		delete(h.headers, viewerID)
		return nil
	}
	h.headers[viewerID] = HeaderFooter{Header: header, Footer: footer}
	return nil
}

// HeaderFooter returns the header and footer of a viewer, if any.
func (h *Host) HeaderFooter(viewerID string) (HeaderFooter, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hf, ok := h.headers[viewerID]
	return hf, ok
}

// SetSidebar stores the sidebar panel of a viewer.
func (h *Host) SetSidebar(viewerID string, panel domain.Sidebar) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.entities[viewerID]; !ok {
		return fmt.Errorf("viewer %s not connected", viewerID)
	}
	panel.Lines = append([]string(nil), panel.Lines...)
	h.sidebars[viewerID] = panel
	return nil
}

// ClearSidebar removes the sidebar panel of a viewer.
func (h *Host) ClearSidebar(viewerID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sidebars, viewerID)
	return nil
}

// Sidebar returns the sidebar panel of a viewer, if any.
func (h *Host) Sidebar(viewerID string) (domain.Sidebar, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	panel, ok := h.sidebars[viewerID]
	return panel, ok
}

// Metrics is a static MetricProvider: entity id -> key -> value.
type Metrics struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

// NewMetrics returns an empty provider.
func NewMetrics() *Metrics {
	return &Metrics{values: make(map[string]map[string]string)}
}

// Set stores one value.
func (m *Metrics) Set(entityID, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[entityID] == nil {
		m.values[entityID] = make(map[string]string)
	}
	m.values[entityID][key] = value
}

// SetAll replaces every value of an entity.
func (m *Metrics) SetAll(entityID string, values map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	m.values[entityID] = cp
}

// Delete forgets every value of an entity.
func (m *Metrics) Delete(entityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, entityID)
}

// Keys returns the sorted keys known for an entity.
func (m *Metrics) Keys(entityID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values[entityID]))
	for k := range m.values[entityID] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve implements ports.MetricProvider.
func (m *Metrics) Resolve(ctx context.Context, entityID, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[entityID][key]
	if !ok {
		return "", fmt.Errorf("%s/%s: %w", entityID, key, ports.ErrUnresolved)
	}
	return v, nil
}
