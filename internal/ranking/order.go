package ranking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rosterd/internal/domain"
	"rosterd/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// MinGap is the floor of the throttle between two full passes.
const MinGap = 250 * time.Millisecond

// Snapshot is the full result of one ordering pass. Ranked holds the gated-in
// entities in rank order (rank = index); Excluded holds the entities the gate
// rejected, which the reconciler must clean up.
type Snapshot struct {
	Ranked   []Ranked
	Excluded []domain.Entity
	TakenAt  time.Time
}

// IDs returns the ranked entity ids in rank order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s.Ranked))
	for i, r := range s.Ranked {
		ids[i] = r.Entity.ID
	}
	return ids
}

// Entities returns the ranked entities in rank order.
func (s Snapshot) Entities() []domain.Entity {
	out := make([]domain.Entity, len(s.Ranked))
	for i, r := range s.Ranked {
		out[i] = r.Entity
	}
	return out
}

// OrderEngine produces snapshots from the connected roster. Full passes are
// throttled by wall clock: a call within the minimum gap of the previous pass is
// a no-op, Force bypasses the gap.
type OrderEngine struct {
	roster  ports.Roster
	metrics ports.MetricProvider
	gate    ports.GateFilter
	chain   *Chain
	logger  runtime.Logger

	minGap time.Duration
	last   time.Time
	now    func() time.Time
}

// NewOrderEngine wires an order engine. period is the configured refresh period;
// the throttle gap is max(MinGap, period).
func NewOrderEngine(roster ports.Roster, metrics ports.MetricProvider, gate ports.GateFilter, chain *Chain, period time.Duration, logger runtime.Logger) *OrderEngine {
	if chain == nil {
		chain = NewChain()
	}
	o := &OrderEngine{
		roster:  roster,
		metrics: metrics,
		gate:    gate,
		chain:   chain,
		logger:  logger,
		now:     time.Now,
	}
	o.SetPeriod(period)
	return o
}

// SetClock replaces the wall clock, for tests and simulations.
func (o *OrderEngine) SetClock(now func() time.Time) {
	o.now = now
}

// SetPeriod updates the throttle gap.
func (o *OrderEngine) SetPeriod(period time.Duration) {
	o.minGap = max(MinGap, period)
}

// MinGapDuration reports the effective throttle gap.
func (o *OrderEngine) MinGapDuration() time.Duration {
	return o.minGap
}

// SetChain swaps the criterion chain used by subsequent passes.
func (o *OrderEngine) SetChain(chain *Chain) {
	if chain == nil {
		chain = NewChain()
	}
	o.chain = chain
}

// Chain returns the active chain.
func (o *OrderEngine) Chain() *Chain {
	return o.chain
}

// SetGate swaps the gate filter. A nil gate admits everyone.
func (o *OrderEngine) SetGate(gate ports.GateFilter) {
	o.gate = gate
}

// Allowed applies the gate to one entity.
func (o *OrderEngine) Allowed(e domain.Entity) bool {
	return ports.Admits(o.gate, e)
}

// ResetThrottle makes the next Compute run regardless of the gap.
func (o *OrderEngine) ResetThrottle() {
	o.last = time.Time{}
}

// Compute runs a pass unless the previous one is younger than the throttle gap.
// ok is false when the call was dropped.
func (o *OrderEngine) Compute(ctx context.Context) (snap Snapshot, ok bool) {
	now := o.now()
	if !o.last.IsZero() && now.Sub(o.last) < o.minGap {
		return Snapshot{}, false
	}
	return o.pass(ctx, now), true
}

// Force runs a pass immediately and restarts the throttle window.
func (o *OrderEngine) Force(ctx context.Context) Snapshot {
	return o.pass(ctx, o.now())
}

func (o *OrderEngine) pass(ctx context.Context, now time.Time) Snapshot {
	o.last = now

	var admitted, excluded []domain.Entity
	for _, e := range o.roster.Entities() {
		if o.Allowed(e) {
			admitted = append(admitted, e)
		} else {
			excluded = append(excluded, e)
		}
	}

	snap := Snapshot{
		Ranked:   o.chain.Sort(ctx, admitted, o.metrics),
		Excluded: excluded,
		TakenAt:  now,
	}
	if o.logger != nil && len(snap.Ranked) > 0 {
		o.logger.Debug("ranking order: %s", o.describe(snap))
	}
	return snap
}

func (o *OrderEngine) describe(snap Snapshot) string {
	var b strings.Builder
	for i, r := range snap.Ranked {
		fmt.Fprintf(&b, "%03d:%s { %s } ", i, r.Entity.Name, o.chain.Explain(r))
	}
	return strings.TrimSpace(b.String())
}
