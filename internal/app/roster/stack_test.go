package roster

import (
	"context"
	"testing"

	"rosterd/internal/config"
	"rosterd/internal/domain"
	"rosterd/internal/ports/inmem"

	"github.com/google/go-cmp/cmp"
	"github.com/heroiclabs/nakama-common/runtime"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{})                     {}
func (noopLogger) Info(string, ...interface{})                      {}
func (noopLogger) Warn(string, ...interface{})                      {}
func (noopLogger) Error(string, ...interface{})                     {}
func (noopLogger) WithField(string, interface{}) runtime.Logger     { return noopLogger{} }
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger { return noopLogger{} }
func (noopLogger) Fields() map[string]interface{}                   { return nil }

func newStack(t *testing.T, mutate func(*config.Config)) (*Stack, *inmem.Metrics) {
	t.Helper()
	cfg := config.Default()
	cfg.Ranking.Stages = []config.StageConfig{
		{Type: "GROUP_ORDER", Order: []string{"admin", "mod", "default"}},
		{Type: "NAME"},
	}
	if mutate != nil {
		mutate(cfg)
	}
	metrics := inmem.NewMetrics()
	metrics.Set("a", "group", "default")
	metrics.Set("b", "group", "admin")
	metrics.Set("c", "group", "mod")
	metrics.Set("b", "prefix", "&c[Admin] ")
	return New(context.Background(), cfg, metrics, noopLogger{}), metrics
}

func ranks(b *domain.Board) []string {
	var out []string
	for i := 0; ; i++ {
		g, ok := b.Group(domain.RankGroupName(i))
		if !ok {
			return out
		}
		out = append(out, g.Members()...)
	}
}

func admitAll(s *Stack) {
	s.Admit(context.Background(),
		domain.Entity{ID: "a", Name: "Ann"},
		domain.Entity{ID: "b", Name: "Bea"},
		domain.Entity{ID: "c", Name: "Cid"},
	)
}

func TestAdmitRanksImmediately(t *testing.T) {
	s, _ := newStack(t, nil)
	admitAll(s)

	for _, id := range []string{"a", "b", "c"} {
		board, ok := s.ViewBoard(id)
		if !ok {
			t.Fatalf("no board for %s", id)
		}
		if diff := cmp.Diff([]string{"b", "c", "a"}, ranks(board)); diff != "" {
			t.Fatalf("ranks of %s mismatch (-want +got):\n%s", id, diff)
		}
	}

	board, _ := s.ViewBoard("a")
	g, _ := board.Group(domain.RankGroupName(0))
	if got := g.Decoration().Prefix; got != "&c[Admin] &r" {
		t.Fatalf("rank 0 prefix = %q, want %q", got, "&c[Admin] &r")
	}
}

func TestSetZoneSweepsGatedEntity(t *testing.T) {
	s, _ := newStack(t, func(cfg *config.Config) { cfg.Zones.List = []string{"jail"} })
	admitAll(s)

	if !s.SetZone(context.Background(), "b", "jail") {
		t.Fatal("SetZone returned false for a known entity")
	}
	board, _ := s.ViewBoard("a")
	if diff := cmp.Diff([]string{"c", "a"}, ranks(board)); diff != "" {
		t.Fatalf("ranks mismatch (-want +got):\n%s", diff)
	}
	if s.SetZone(context.Background(), "nobody", "jail") {
		t.Fatal("SetZone returned true for an unknown entity")
	}
}

func TestRemoveForgetsEntity(t *testing.T) {
	s, _ := newStack(t, nil)
	admitAll(s)

	s.Remove(context.Background(), "b")
	if _, ok := s.Host.Entity("b"); ok {
		t.Fatal("entity still connected")
	}
	board, _ := s.ViewBoard("a")
	for _, name := range board.GroupNames() {
		if g, _ := board.Group(name); g.HasMember("b") {
			t.Fatalf("removed entity still in %s", name)
		}
	}
}

func TestApplyConfigSharedBoard(t *testing.T) {
	s, _ := newStack(t, nil)
	admitAll(s)

	cfg := config.Default()
	cfg.Ranking.BoardMode = "shared"
	cfg.Ranking.Stages = s.Config.Ranking.Stages
	s.ApplyConfig(context.Background(), cfg)

	board, _ := s.ViewBoard("a")
	if board != s.Host.SharedBoard() {
		t.Fatal("shared mode does not view the shared board")
	}
	if diff := cmp.Diff([]string{"b", "c", "a"}, ranks(board)); diff != "" {
		t.Fatalf("shared ranks mismatch (-want +got):\n%s", diff)
	}
	own, _ := s.Host.Board("a")
	for _, name := range own.GroupNames() {
		if domain.IsRankingGroup(name) {
			t.Fatalf("viewer board keeps %s after switching to shared", name)
		}
	}
}

func TestIdentityTaskFollowsConfig(t *testing.T) {
	s, _ := newStack(t, nil)
	if s.identityTask == nil {
		t.Fatal("identity task not scheduled")
	}

	cfg := config.Default()
	cfg.IdentityLabels.Enabled = false
	s.ApplyConfig(context.Background(), cfg)
	if s.identityTask != nil {
		t.Fatal("identity task kept after disabling identity labels")
	}
}

func TestStopClearsGroupsAndLabels(t *testing.T) {
	s, _ := newStack(t, func(cfg *config.Config) { cfg.Zones.List = []string{"jail"} })
	admitAll(s)
	s.Admit(context.Background(), domain.Entity{ID: "d", Name: "Dan", Zone: "jail"})

	s.Stop(context.Background())
	for _, b := range s.Host.ViewerBoards() {
		for _, name := range b.GroupNames() {
			if domain.IsRankingGroup(name) || domain.IsIdentityGroup(name) {
				t.Fatalf("board %s keeps %s", b.ID(), name)
			}
		}
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		if _, ok := s.Host.Label(id); ok {
			t.Fatalf("label of %s not reset", id)
		}
	}
}

func displayConfig(cfg *config.Config) {
	cfg.Tablist.Enabled = true
	cfg.Tablist.Header = "&e%player_name%"
	cfg.Tablist.Footer = "%online%"
	cfg.Tablist.UpdateSeconds = 1
	cfg.Tablist.PlaceholderCacheSeconds = 0
	cfg.Tablist.Effects.Pulse.Header = true
	cfg.Sidebar.Enabled = true
	cfg.Sidebar.Items = []string{"%group%"}
	cfg.Sidebar.UpdateSeconds = 1
	cfg.Sidebar.Top.Enabled = true
	cfg.Sidebar.Top.ShowSeconds = 1
	cfg.Sidebar.Top.HideSeconds = 2
}

func TestDisplayTasks(t *testing.T) {
	s, metrics := newStack(t, displayConfig)
	metrics.Set("b", "kills", "9")
	ctx := context.Background()
	admitAll(s)
	if got := len(s.displayTasks); got != 4 {
		t.Fatalf("display tasks = %d, want 4", got)
	}

	if hf, _ := s.Host.HeaderFooter("a"); hf.Header != "&7&eAnn" || hf.Footer != "3" {
		t.Fatalf("header on admit = %+v", hf)
	}
	if panel, _ := s.Host.Sidebar("a"); panel.Title != "&b&lRoster" || len(panel.Lines) != 1 || panel.Lines[0] != "default" {
		t.Fatalf("sidebar on admit = %+v", panel)
	}

	steps := []struct {
		tick   int64
		header string
		title  string
	}{
		{tick: 1, header: "&7&eAnn", title: "&a&lTop"},
		{tick: 20, header: "&f&eAnn", title: "&a&lTop"},
		{tick: 21, header: "&f&eAnn", title: "&b&lRoster"},
		{tick: 40, header: "&7&eAnn", title: "&b&lRoster"},
		{tick: 61, header: "&f&eAnn", title: "&a&lTop"},
	}
	for _, step := range steps {
		s.Tick(ctx, step.tick)
		if hf, _ := s.Host.HeaderFooter("a"); hf.Header != step.header {
			t.Fatalf("tick %d header = %q, want %q", step.tick, hf.Header, step.header)
		}
		panel, _ := s.Host.Sidebar("a")
		if panel.Title != step.title {
			t.Fatalf("tick %d sidebar title = %q, want %q", step.tick, panel.Title, step.title)
		}
		if step.title == "&a&lTop" && panel.Lines[0] != "&7#1 &fBea &8- &69" {
			t.Fatalf("tick %d top line = %q", step.tick, panel.Lines[0])
		}
	}

	s.Stop(ctx)
	if _, ok := s.Host.HeaderFooter("a"); ok {
		t.Fatal("header kept after Stop")
	}
	if _, ok := s.Host.Sidebar("a"); ok {
		t.Fatal("sidebar kept after Stop")
	}
}

func TestApplyConfigDisablesDisplays(t *testing.T) {
	s, _ := newStack(t, displayConfig)
	admitAll(s)

	cfg := config.Default()
	cfg.Ranking.Stages = s.Config.Ranking.Stages
	s.ApplyConfig(context.Background(), cfg)
	if len(s.displayTasks) != 0 {
		t.Fatalf("display tasks = %d after disabling, want 0", len(s.displayTasks))
	}
	for _, id := range []string{"a", "b", "c"} {
		if _, ok := s.Host.HeaderFooter(id); ok {
			t.Fatalf("%s keeps a header", id)
		}
		if _, ok := s.Host.Sidebar(id); ok {
			t.Fatalf("%s keeps a sidebar", id)
		}
	}
}
