package app

import (
	"context"
	"fmt"
	"time"

	"rosterd/internal/decor"
	"rosterd/internal/domain"
	"rosterd/internal/ports"
	"rosterd/internal/ranking"

	"github.com/heroiclabs/nakama-common/runtime"
)

// WatchdogOptions configure the sentinel watchdog.
type WatchdogOptions struct {
	Enforce    bool
	EveryTicks int64
	Log        bool
}

// Options configure the engine.
type Options struct {
	Enabled     bool
	BoardMode   BoardMode
	Period      time.Duration
	TickRate    int
	SortKeyHint bool
	Watchdog    WatchdogOptions
}

func (o Options) normalized() Options {
	if o.BoardMode == "" {
		o.BoardMode = BoardsPerViewer
	}
	if o.Period <= 0 {
		o.Period = time.Second
	}
	if o.Watchdog.EveryTicks <= 0 {
		o.Watchdog.EveryTicks = DefaultWatchdogEvery
	}
	return o
}

// Deps are the collaborators of the engine.
type Deps struct {
	Roster   ports.Roster
	Boards   ports.BoardHost
	Labels   ports.LabelSink
	Metrics  ports.MetricProvider
	Gate     ports.GateFilter
	Identity ports.IdentityLabeler
	Decor    *decor.Pipeline
	Logger   runtime.Logger
}

// Engine drives ordering, reconciliation, labels and the watchdog from the
// host tick. All methods must be called from the tick goroutine.
type Engine struct {
	deps       Deps
	opts       Options
	order      *ranking.OrderEngine
	reconciler *Reconciler
	watchdog   *Watchdog
	sched      *Scheduler

	running      bool
	refreshTask  *Task
	watchdogTask *Task
	last         ranking.Snapshot
	events       []Event
}

// NewEngine wires an engine. It does nothing until Start.
func NewEngine(deps Deps, chain *ranking.Chain, opts Options) *Engine {
	opts = opts.normalized()
	if deps.Decor == nil {
		deps.Decor = decor.New(deps.Metrics, decor.Options{})
	}
	return &Engine{
		deps:       deps,
		opts:       opts,
		order:      ranking.NewOrderEngine(deps.Roster, deps.Metrics, deps.Gate, chain, opts.Period, deps.Logger),
		reconciler: NewReconciler(deps.Identity, deps.Logger),
		watchdog:   NewWatchdog(deps.Logger, opts.Watchdog.Log),
		sched:      NewScheduler(),
	}
}

// SetClock replaces the wall clock used by the throttle. The time of the last
// pass is forgotten since it was read from the previous clock.
func (e *Engine) SetClock(now func() time.Time) {
	e.order.SetClock(now)
	e.order.ResetThrottle()
}

// Running reports whether Start was called without a matching Stop.
func (e *Engine) Running() bool { return e.running }

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Chain returns the active criterion chain.
func (e *Engine) Chain() *ranking.Chain { return e.order.Chain() }

// LastSnapshot returns the snapshot of the most recent applied pass.
func (e *Engine) LastSnapshot() ranking.Snapshot { return e.last }

// Scheduler exposes the tick scheduler so that cooperating subsystems share it.
func (e *Engine) Scheduler() *Scheduler { return e.sched }

// SetGate swaps the gate filter used by subsequent passes.
func (e *Engine) SetGate(gate ports.GateFilter) {
	e.deps.Gate = gate
	e.order.SetGate(gate)
}

// Boards returns the boards maintained in the current mode.
func (e *Engine) Boards() []*domain.Board {
	return e.boardsFor(e.opts.BoardMode)
}

func (e *Engine) boardsFor(mode BoardMode) []*domain.Board {
	if e.deps.Boards == nil {
		return nil
	}
	if mode == BoardsShared {
		if b := e.deps.Boards.SharedBoard(); b != nil {
			return []*domain.Board{b}
		}
		return nil
	}
	return e.deps.Boards.ViewerBoards()
}

func (e *Engine) allBoards() []*domain.Board {
	seen := make(map[*domain.Board]struct{})
	var out []*domain.Board
	for _, b := range append(e.boardsFor(BoardsPerViewer), e.boardsFor(BoardsShared)...) {
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}

// Start schedules the periodic tasks and runs a first pass immediately.
func (e *Engine) Start(ctx context.Context) []Event {
	if e.running {
		return nil
	}
	e.running = true
	e.schedule()
	e.order.ResetThrottle()
	e.logInfo("roster engine started: enabled=%v mode=%s period=%s", e.opts.Enabled, e.opts.BoardMode, e.opts.Period)
	e.refresh(ctx, true)
	return e.drain()
}

// Stop cancels all tasks and removes every ranking group and label override
// before returning.
func (e *Engine) Stop(ctx context.Context) []Event {
	e.sched.CancelAll()
	e.refreshTask, e.watchdogTask = nil, nil
	wasRunning := e.running
	e.running = false
	e.teardown()
	if wasRunning {
		e.logInfo("roster engine stopped")
	}
	return e.drain()
}

// Tick advances the scheduler; due tasks run synchronously.
func (e *Engine) Tick(ctx context.Context, tick int64) []Event {
	if !e.running {
		return nil
	}
	e.sched.Advance(ctx, tick)
	return e.drain()
}

// ForceReorderNow bypasses the throttle and runs one full pass.
func (e *Engine) ForceReorderNow(ctx context.Context) ([]Event, error) {
	if !e.running {
		return nil, ErrNotRunning
	}
	e.refresh(ctx, true)
	return e.drain(), nil
}

// ApplyConfig swaps the chain and options at runtime. Turning ranking off tears
// down all ranking groups; turning it on runs a forced pass.
func (e *Engine) ApplyConfig(ctx context.Context, chain *ranking.Chain, opts Options) []Event {
	opts = opts.normalized()
	prev := e.opts
	e.opts = opts
	e.order.SetChain(chain)
	e.order.SetPeriod(opts.Period)
	e.watchdog = NewWatchdog(e.deps.Logger, opts.Watchdog.Log)

	if !e.running {
		return nil
	}
	e.schedule()

	if prev.BoardMode != opts.BoardMode {
		for _, b := range e.boardsFor(prev.BoardMode) {
			e.reconciler.Teardown(b)
		}
	}

	switch {
	case prev.Enabled && !opts.Enabled:
		e.teardown()
		e.emit(Event{Kind: EventRankingDisabled})
		e.logInfo("ranking disabled")
	case !prev.Enabled && opts.Enabled:
		e.emit(Event{Kind: EventRankingEnabled})
		e.logInfo("ranking enabled")
	}
	e.order.ResetThrottle()
	e.refresh(ctx, true)
	return e.drain()
}

// RemoveEntity drops id from every ranking group, prunes the rank groups left
// empty at the tail and restores its label.
func (e *Engine) RemoveEntity(ctx context.Context, id string) []Event {
	population := 0
	if e.deps.Roster != nil {
		for _, ent := range e.deps.Roster.Entities() {
			if ent.ID != id && e.order.Allowed(ent) {
				population++
			}
		}
	}

	pruned := 0
	for _, b := range e.Boards() {
		pruned += e.reconciler.Remove(b, id, population)
	}

	e.clearLabel(ctx, id)
	e.emit(Event{Kind: EventEntityRemoved, Payload: EntityRemovedPayload{EntityID: id, Pruned: pruned}})
	return e.drain()
}

func (e *Engine) clearLabel(ctx context.Context, id string) {
	if e.deps.Labels == nil {
		return
	}
	var err error
	ent, known := e.lookup(id)
	if !e.opts.Enabled && known && e.order.Allowed(ent) {
		err = e.deps.Labels.SetLabel(id, e.deps.Decor.BaseLabel(ctx, ent))
	} else {
		err = e.deps.Labels.ResetLabel(id)
	}
	if err != nil {
		e.logWarn("clear label for %s: %v", id, err)
	}
}

func (e *Engine) lookup(id string) (domain.Entity, bool) {
	if e.deps.Roster == nil {
		return domain.Entity{}, false
	}
	return e.deps.Roster.Entity(id)
}

func (e *Engine) schedule() {
	e.refreshTask.Cancel()
	e.watchdogTask.Cancel()
	e.refreshTask, e.watchdogTask = nil, nil

	every := domain.TicksCeil(e.opts.Period, domain.TickDuration(e.opts.TickRate))
	e.refreshTask = e.sched.Every("ranking-refresh", every, every, func(ctx context.Context) {
		e.refresh(ctx, false)
	})
	if e.opts.Enabled && e.opts.Watchdog.Enforce {
		e.watchdogTask = e.sched.Every("ranking-watchdog", e.opts.Watchdog.EveryTicks, e.opts.Watchdog.EveryTicks, e.checkSentinel)
	}
}

// sentinelBoards are the boards the watchdog guards. In shared mode the
// viewer boards carry the sentinel too.
func (e *Engine) sentinelBoards() []*domain.Board {
	if e.opts.BoardMode == BoardsShared {
		return e.allBoards()
	}
	return e.Boards()
}

func (e *Engine) checkSentinel(ctx context.Context) {
	if repaired := e.watchdog.Check(e.sentinelBoards()); len(repaired) > 0 {
		e.emit(Event{Kind: EventWatchdogRepaired, Payload: WatchdogRepairedPayload{Boards: repaired}})
	}
}

func (e *Engine) refresh(ctx context.Context, forced bool) {
	if !e.opts.Enabled {
		e.refreshLabels(ctx)
		return
	}

	var snap ranking.Snapshot
	if forced {
		snap = e.order.Force(ctx)
	} else {
		var ok bool
		if snap, ok = e.order.Compute(ctx); !ok {
			return
		}
	}
	e.apply(ctx, snap, forced)
}

func (e *Engine) apply(ctx context.Context, snap ranking.Snapshot, forced bool) {
	moves := e.reconciler.Reconcile(ctx, e.Boards(), snap)
	e.last = snap

	if e.deps.Labels != nil {
		for i, r := range snap.Ranked {
			label := e.deps.Decor.Label(ctx, r.Entity)
			if e.opts.SortKeyHint {
				label = SortKeyHint(i) + label
			}
			if err := e.deps.Labels.SetLabel(r.Entity.ID, label); err != nil {
				e.logWarn("set label for %s: %v", r.Entity.ID, err)
			}
		}
		for _, ent := range snap.Excluded {
			if err := e.deps.Labels.SetLabel(ent.ID, ent.Name); err != nil {
				e.logWarn("set label for %s: %v", ent.ID, err)
			}
		}
	}

	e.emit(Event{Kind: EventPassApplied, Payload: PassAppliedPayload{
		Population: len(snap.Ranked),
		Excluded:   len(snap.Excluded),
		Moves:      moves,
		Forced:     forced,
	}})
}

// refreshLabels writes base labels while ranking is disabled.
func (e *Engine) refreshLabels(ctx context.Context) {
	if e.deps.Labels == nil || e.deps.Roster == nil {
		return
	}
	for _, ent := range e.deps.Roster.Entities() {
		var err error
		if e.order.Allowed(ent) {
			err = e.deps.Labels.SetLabel(ent.ID, e.deps.Decor.Label(ctx, ent))
		} else {
			err = e.deps.Labels.ResetLabel(ent.ID)
		}
		if err != nil {
			e.logWarn("set label for %s: %v", ent.ID, err)
		}
	}
	e.emit(Event{Kind: EventLabelsRefreshed})
}

func (e *Engine) teardown() {
	for _, b := range e.allBoards() {
		e.reconciler.Teardown(b)
	}
	e.last = ranking.Snapshot{}
	if e.deps.Labels == nil || e.deps.Roster == nil {
		return
	}
	for _, ent := range e.deps.Roster.Entities() {
		if err := e.deps.Labels.ResetLabel(ent.ID); err != nil {
			e.logWarn("reset label for %s: %v", ent.ID, err)
		}
	}
}

func (e *Engine) emit(ev Event) {
	e.events = append(e.events, ev)
}

func (e *Engine) drain() []Event {
	out := e.events
	e.events = nil
	return out
}

func (e *Engine) logInfo(format string, args ...interface{}) {
	if e.deps.Logger != nil {
		e.deps.Logger.Info(format, args...)
	}
}

func (e *Engine) logWarn(format string, args ...interface{}) {
	if e.deps.Logger != nil {
		e.deps.Logger.Warn(format, args...)
	}
}

// SortKeyHint returns an invisible colour-code prefix encoding min(rank, 255),
// for clients that sort the list by label text.
func SortKeyHint(rank int) string {
	v := min(max(rank, 0), 255)
	return fmt.Sprintf("&%x&%x&r", v>>4, v&0xf)
}
