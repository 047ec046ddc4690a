package sim

import (
	"context"
	"time"

	"rosterd/internal/app"
	"rosterd/internal/app/roster"
	"rosterd/internal/config"
	"rosterd/internal/domain"
	"rosterd/internal/ports/inmem"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

// EntityID derives a stable id from an entity name.
func EntityID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("rostersim/"+name)).String()
}

// Frame is what one tick produced.
type Frame struct {
	Tick   int64
	Events []app.Event
	Render bool
}

// Runner owns a roster stack and its simulated clock.
type Runner struct {
	Stack   *roster.Stack
	Metrics *inmem.Metrics

	logger runtime.Logger
	step   time.Duration
	now    time.Time
	tick   int64
}

// NewRunner starts a stack on an empty in-memory host.
func NewRunner(ctx context.Context, cfg *config.Config, logger runtime.Logger) *Runner {
	r := &Runner{
		Metrics: inmem.NewMetrics(),
		logger:  logger,
		step:    domain.TickDuration(cfg.TickRate),
		now:     time.Unix(0, 0),
	}
	r.Stack = roster.New(ctx, cfg, r.Metrics, logger)
	r.Stack.Engine.SetClock(func() time.Time { return r.now })
	return r
}

// Tick returns the last tick run.
func (r *Runner) Tick() int64 { return r.tick }

// Join connects entities, seeding their metrics first.
func (r *Runner) Join(ctx context.Context, specs ...EntitySpec) {
	entities := make([]domain.Entity, 0, len(specs))
	for _, s := range specs {
		id := EntityID(s.Name)
		r.Metrics.SetAll(id, s.Metrics)
		r.Stack.Metrics.Forget(id)
		entities = append(entities, domain.Entity{ID: id, Name: s.Name, Zone: s.Zone})
	}
	r.Stack.Admit(ctx, entities...)
}

// Leave disconnects an entity by name.
func (r *Runner) Leave(ctx context.Context, name string) {
	id := EntityID(name)
	r.Stack.Remove(ctx, id)
	r.Metrics.Delete(id)
}

// SetMetric changes a metric and drops its cached value.
func (r *Runner) SetMetric(name, key, value string) {
	id := EntityID(name)
	r.Metrics.Set(id, key, value)
	r.Stack.Metrics.Forget(id)
}

// SetRanking toggles ranking without touching the rest of the configuration.
func (r *Runner) SetRanking(ctx context.Context, enabled bool) {
	cfg := *r.Stack.Config
	cfg.Ranking.Enabled = enabled
	r.Stack.ApplyConfig(ctx, &cfg)
}

// Advance runs one tick.
func (r *Runner) Advance(ctx context.Context) []app.Event {
	r.tick++
	r.now = r.now.Add(r.step)
	return r.Stack.Tick(ctx, r.tick)
}

func (r *Runner) apply(ctx context.Context, st Step) {
	if len(st.Join) > 0 {
		r.Join(ctx, st.Join...)
	}
	for _, name := range st.Leave {
		r.Leave(ctx, name)
	}
	for name, zone := range st.Zone {
		if !r.Stack.SetZone(ctx, EntityID(name), zone) {
			r.logger.Warn("tick %d: zone change for unknown entity %s", r.tick, name)
		}
	}
	for name, values := range st.Set {
		for k, v := range values {
			r.SetMetric(name, k, v)
		}
	}
	if st.Ranking != nil {
		r.SetRanking(ctx, *st.Ranking)
	}
	if st.Force {
		if _, err := r.Stack.Engine.ForceReorderNow(ctx); err != nil {
			r.logger.Warn("tick %d: force failed: %v", r.tick, err)
		}
	}
}

// Run plays sc to the end, calling observe after every tick.
func (r *Runner) Run(ctx context.Context, sc *Scenario, observe func(Frame)) {
	r.Join(ctx, sc.Entities...)

	steps := make(map[int64][]Step, len(sc.Steps))
	for _, st := range sc.Steps {
		steps[st.At] = append(steps[st.At], st)
	}

	for r.tick < sc.Ticks {
		if ctx.Err() != nil {
			return
		}
		render := false
		for _, st := range steps[r.tick+1] {
			r.apply(ctx, st)
			render = render || st.Render
		}
		events := r.Advance(ctx)
		if observe != nil {
			observe(Frame{Tick: r.tick, Events: events, Render: render})
		}
	}
}
