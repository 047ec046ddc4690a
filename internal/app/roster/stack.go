// Package roster wires the ordering engine, identity labels, decoration
// pipeline, header/footer and sidebar around an in-memory host. The Nakama match handler and the
// simulator both drive a Stack.
package roster

import (
	"context"

	"rosterd/internal/app"
	"rosterd/internal/app/nametag"
	"rosterd/internal/app/sidebar"
	"rosterd/internal/app/tablist"
	"rosterd/internal/config"
	"rosterd/internal/decor"
	"rosterd/internal/domain"
	"rosterd/internal/metric"
	"rosterd/internal/ports"
	"rosterd/internal/ports/inmem"
	"rosterd/internal/ranking"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Stack is one running roster: entities, boards, labels and the services
// maintaining them.
type Stack struct {
	Config  *config.Config
	Host    *inmem.Host
	Metrics *metric.Cached
	Decor   *decor.Pipeline
	Tags    *nametag.Service
	Header  *tablist.Service
	Sidebar *sidebar.Service
	Engine  *app.Engine
	Gate    domain.ZoneGate

	logger       runtime.Logger
	identityTask *app.Task
	displayTasks []*app.Task
}

// New builds a stack reading metrics from source and starts the engine.
func New(ctx context.Context, cfg *config.Config, source ports.MetricProvider, logger runtime.Logger) *Stack {
	host := inmem.NewHost()
	metrics := metric.NewCached(source, cfg.Metrics.CacheSize, cfg.CacheTTL())
	pipeline := decor.New(metrics, cfg.DecorOptions())

	s := &Stack{
		Config:  cfg,
		Host:    host,
		Metrics: metrics,
		Decor:   pipeline,
		Gate:    cfg.Gate(),
		logger:  logger,
	}

	chain := s.chain(cfg)
	s.Tags = nametag.New(host, func() []*domain.Board { return s.Engine.Boards() }, s.Gate, pipeline, cfg.NametagOptions(), logger)
	s.Engine = app.NewEngine(app.Deps{
		Roster:   host,
		Boards:   host,
		Labels:   host,
		Metrics:  metrics,
		Gate:     s.Gate,
		Identity: s.Tags,
		Decor:    pipeline,
		Logger:   logger,
	}, chain, cfg.EngineOptions())

	expand := metric.NewExpander(metrics, cfg.PlaceholderTTL())
	s.Header = tablist.New(host, host, expand, s.Gate, cfg.TablistOptions(), logger)
	s.Sidebar = sidebar.New(host, host, metrics, expand, cfg.SidebarOptions(), logger)

	s.Engine.Start(ctx)
	s.scheduleIdentity()
	s.scheduleDisplays()
	return s
}

func (s *Stack) chain(cfg *config.Config) *ranking.Chain {
	chain, errs := cfg.Chain()
	for _, err := range errs {
		s.logger.Warn("roster config: %v", err)
	}
	return chain
}

func (s *Stack) scheduleIdentity() {
	s.identityTask.Cancel()
	s.identityTask = nil
	if !s.Tags.Enabled() {
		return
	}
	every := domain.TicksCeil(s.Config.IdentityPeriod(), domain.TickDuration(s.Config.TickRate))
	s.identityTask = s.Engine.Scheduler().Every("identity-labels", every, every, s.Tags.ApplyAll)
}

func (s *Stack) scheduleDisplays() {
	for _, t := range s.displayTasks {
		t.Cancel()
	}
	s.displayTasks = nil

	sched := s.Engine.Scheduler()
	tick := domain.TickDuration(s.Config.TickRate)
	if s.Header.Enabled() {
		every := domain.TicksCeil(s.Header.Options().Period, tick)
		s.displayTasks = append(s.displayTasks, sched.Every("tablist", every, every, s.Header.Update))
	}
	if !s.Sidebar.Enabled() {
		return
	}
	opts := s.Sidebar.Options()
	every := domain.TicksCeil(opts.Period, tick)
	s.displayTasks = append(s.displayTasks, sched.Every("sidebar", every, every, s.Sidebar.Refresh))
	if opts.TopActive() {
		show := domain.TicksCeil(opts.Top.Show, tick)
		cycle := show + domain.TicksCeil(opts.Top.Hide, tick)
		s.displayTasks = append(s.displayTasks,
			sched.Every("sidebar-top-show", cycle, 1, s.Sidebar.ShowTop),
			sched.Every("sidebar-top-hide", cycle, 1+show, s.Sidebar.HideTop),
		)
	}
}

// ApplyConfig swaps the configuration of the running stack.
func (s *Stack) ApplyConfig(ctx context.Context, cfg *config.Config) {
	s.Config = cfg
	chain := s.chain(cfg)
	s.Metrics.Purge()
	s.Decor.SetOptions(cfg.DecorOptions())
	s.Gate = cfg.Gate()
	s.Engine.SetGate(s.Gate)
	s.Tags.SetGate(s.Gate)
	s.Tags.SetOptions(cfg.NametagOptions())
	s.Engine.ApplyConfig(ctx, chain, cfg.EngineOptions())
	s.scheduleIdentity()
	s.Tags.ApplyAll(ctx)
	s.Header.SetGate(s.Gate)
	s.Header.ApplyOptions(ctx, cfg.TablistOptions())
	s.Sidebar.ApplyOptions(ctx, cfg.SidebarOptions())
	s.scheduleDisplays()
}

// Admit connects entities and ranks them without waiting for the next period.
func (s *Stack) Admit(ctx context.Context, entities ...domain.Entity) {
	for _, e := range entities {
		s.Host.Join(e)
	}
	if _, err := s.Engine.ForceReorderNow(ctx); err != nil {
		s.logger.Warn("admit: reorder failed: %v", err)
	}
	for _, e := range entities {
		s.Tags.Redecorate(ctx, e.ID)
		s.Header.Join(ctx, e.ID)
		s.Sidebar.Show(ctx, e.ID)
	}
}

// SetZone moves an entity to zone. An entity the gate now rejects is swept
// from the rank groups immediately. Returns false for an unknown entity.
func (s *Stack) SetZone(ctx context.Context, id, zone string) bool {
	if !s.Host.SetZone(id, zone) {
		return false
	}
	e, _ := s.Host.Entity(id)
	if !ports.Admits(s.Gate, e) {
		if _, err := s.Engine.ForceReorderNow(ctx); err != nil {
			s.logger.Warn("zone change of %s: reorder failed: %v", id, err)
		}
	}
	s.Tags.Redecorate(ctx, id)
	s.Header.PushTo(ctx, id)
	return true
}

// Remove drops every trace of an entity.
func (s *Stack) Remove(ctx context.Context, id string) {
	s.Metrics.Forget(id)
	s.Engine.RemoveEntity(ctx, id)
	s.Tags.ClearFor(id)
	s.Header.Forget(id)
	s.Sidebar.Forget(id)
	s.Host.Leave(id)
}

// Tick advances the scheduler.
func (s *Stack) Tick(ctx context.Context, tick int64) []app.Event {
	return s.Engine.Tick(ctx, tick)
}

// Stop tears down every group and label the stack created.
func (s *Stack) Stop(ctx context.Context) {
	s.identityTask.Cancel()
	s.identityTask = nil
	s.Engine.Stop(ctx)
	s.displayTasks = nil
	s.Tags.ClearAll()
	s.Header.ClearAll()
	s.Sidebar.ClearAll()
}

// ViewBoard returns the board shown to viewer under the active board mode.
func (s *Stack) ViewBoard(viewer string) (*domain.Board, bool) {
	if s.Engine.Options().BoardMode == app.BoardsShared {
		return s.Host.SharedBoard(), true
	}
	return s.Host.Board(viewer)
}
