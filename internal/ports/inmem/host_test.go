package inmem

import (
	"context"
	"errors"
	"testing"

	"rosterd/internal/domain"
	"rosterd/internal/ports"

	"github.com/google/go-cmp/cmp"
)

func ids(entities []domain.Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ID)
	}
	return out
}

func TestHostJoinLeave(t *testing.T) {
	h := NewHost()
	h.Join(domain.Entity{ID: "a", Name: "Ann"})
	h.Join(domain.Entity{ID: "b", Name: "Bea"})
	h.Join(domain.Entity{ID: "a", Name: "Ann", Zone: "arena"})

	if diff := cmp.Diff([]string{"a", "b"}, ids(h.Entities())); diff != "" {
		t.Fatalf("entities mismatch (-want +got):\n%s", diff)
	}
	if e, _ := h.Entity("a"); e.Zone != "arena" {
		t.Fatalf("rejoin zone = %q, want arena", e.Zone)
	}
	if got := len(h.ViewerBoards()); got != 2 {
		t.Fatalf("viewer boards = %d, want 2", got)
	}

	if err := h.SetLabel("a", "Ann!"); err != nil {
		t.Fatalf("SetLabel error: %v", err)
	}
	h.Leave("a")
	if _, ok := h.Entity("a"); ok {
		t.Fatal("entity still connected")
	}
	if _, ok := h.Board("a"); ok {
		t.Fatal("board kept after leave")
	}
	if _, ok := h.Label("a"); ok {
		t.Fatal("label kept after leave")
	}
	if diff := cmp.Diff([]string{"b"}, ids(h.Entities())); diff != "" {
		t.Fatalf("entities mismatch (-want +got):\n%s", diff)
	}
}

func TestHostLabels(t *testing.T) {
	h := NewHost()
	h.Join(domain.Entity{ID: "a", Name: "Ann"})

	if err := h.SetLabel("ghost", "x"); err == nil {
		t.Fatal("expected error for unknown entity")
	}

	boom := errors.New("boom")
	h.FailLabels("a", boom)
	if err := h.SetLabel("a", "x"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	h.FailLabels("a", nil)
	if err := h.SetLabel("a", "x"); err != nil {
		t.Fatalf("SetLabel error: %v", err)
	}
	if l, ok := h.Label("a"); !ok || l != "x" {
		t.Fatalf("label = %q/%v, want x", l, ok)
	}
	if err := h.ResetLabel("a"); err != nil {
		t.Fatalf("ResetLabel error: %v", err)
	}
	if _, ok := h.Label("a"); ok {
		t.Fatal("label kept after reset")
	}
}

func TestHostSetZone(t *testing.T) {
	h := NewHost()
	h.Join(domain.Entity{ID: "a", Name: "Ann"})
	if !h.SetZone("a", "jail") {
		t.Fatal("SetZone returned false for a known entity")
	}
	if e, _ := h.Entity("a"); e.Zone != "jail" {
		t.Fatalf("zone = %q, want jail", e.Zone)
	}
	if h.SetZone("ghost", "jail") {
		t.Fatal("SetZone returned true for an unknown entity")
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.SetAll("a", map[string]string{"group": "admin", "coins": "5"})
	m.Set("a", "prefix", "&c")

	if diff := cmp.Diff([]string{"coins", "group", "prefix"}, m.Keys("a")); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	v, err := m.Resolve(context.Background(), "a", "group")
	if err != nil || v != "admin" {
		t.Fatalf("Resolve = %q, %v; want admin", v, err)
	}
	m.Delete("a")
	if _, err := m.Resolve(context.Background(), "a", "group"); !errors.Is(err, ports.ErrUnresolved) {
		t.Fatalf("err = %v, want ErrUnresolved", err)
	}
}

func TestHostDisplays(t *testing.T) {
	var (
		_ ports.HeaderFooterSink = (*Host)(nil)
		_ ports.SidebarSink      = (*Host)(nil)
	)
	h := NewHost()
	h.Join(domain.Entity{ID: "a", Name: "Ann"})

	if err := h.SetHeaderFooter("ghost", "x", "y"); err == nil {
		t.Fatal("SetHeaderFooter on unknown viewer returned nil error")
	}
	if err := h.SetSidebar("ghost", domain.Sidebar{Title: "x"}); err == nil {
		t.Fatal("SetSidebar on unknown viewer returned nil error")
	}

	if err := h.SetHeaderFooter("a", "top", ""); err != nil {
		t.Fatalf("SetHeaderFooter error: %v", err)
	}
	if hf, ok := h.HeaderFooter("a"); !ok || hf.Header != "top" {
		t.Fatalf("HeaderFooter = %+v,%v, want top", hf, ok)
	}
	if err := h.SetHeaderFooter("a", "", ""); err != nil {
		t.Fatalf("SetHeaderFooter clear error: %v", err)
	}
	if _, ok := h.HeaderFooter("a"); ok {
		t.Fatal("empty header and footer kept")
	}

	lines := []string{"one", "two"}
	if err := h.SetSidebar("a", domain.Sidebar{Title: "T", Lines: lines}); err != nil {
		t.Fatalf("SetSidebar error: %v", err)
	}
	lines[0] = "changed"
	if panel, _ := h.Sidebar("a"); panel.Lines[0] != "one" {
		t.Fatalf("stored sidebar aliases caller lines: %q", panel.Lines[0])
	}

	h.SetHeaderFooter("a", "top", "bottom")
	h.Leave("a")
	if _, ok := h.HeaderFooter("a"); ok {
		t.Fatal("header kept after leave")
	}
	if _, ok := h.Sidebar("a"); ok {
		t.Fatal("sidebar kept after leave")
	}
	if err := h.ClearSidebar("a"); err != nil {
		t.Fatalf("ClearSidebar error: %v", err)
	}
}
