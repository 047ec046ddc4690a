package app

import (
	"context"

	"rosterd/internal/domain"
	"rosterd/internal/ports"
	"rosterd/internal/ranking"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Reconciler projects a snapshot onto boards: entity i ends up as the only
// member of rank group i. Repeated application of the same snapshot performs
// no mutation.
type Reconciler struct {
	identity ports.IdentityLabeler
	logger   runtime.Logger
	// shrunk holds boards that lost an entity since their last placement.
	shrunk map[*domain.Board]struct{}
}

// NewReconciler returns a reconciler that hands moved entities to identity.
func NewReconciler(identity ports.IdentityLabeler, logger runtime.Logger) *Reconciler {
	return &Reconciler{identity: identity, logger: logger, shrunk: make(map[*domain.Board]struct{})}
}

// Reconcile applies snap to every board and returns the number of entities moved.
// Gated-out entities are swept from all boards before any placement happens.
func (r *Reconciler) Reconcile(ctx context.Context, boards []*domain.Board, snap ranking.Snapshot) int {
	excluded := make(map[string]struct{}, len(snap.Excluded))
	for _, e := range snap.Excluded {
		excluded[e.ID] = struct{}{}
	}
	for _, b := range boards {
		r.Sweep(b, excluded)
	}

	moves := 0
	live := make(map[*domain.Board]struct{}, len(boards))
	for _, b := range boards {
		live[b] = struct{}{}
		moves += r.Place(ctx, b, snap.Ranked)
	}
	for b := range r.shrunk {
		if _, ok := live[b]; !ok {
			delete(r.shrunk, b)
		}
	}
	return moves
}

// Sweep removes the given entries from every ranking group of b.
func (r *Reconciler) Sweep(b *domain.Board, entries map[string]struct{}) int {
	removed := 0
	for _, name := range b.GroupNames() {
		if !domain.IsRankingGroup(name) {
			continue
		}
		g, _ := b.Group(name)
		for _, m := range g.Members() {
			if _, ok := entries[m]; ok && b.RemoveMember(name, m) {
				removed++
			}
		}
	}
	return removed
}

// Place puts ranked[i] alone into rank group i on b. Rank groups past the end
// of ranked lose their stale members; after a removal they are deleted.
func (r *Reconciler) Place(ctx context.Context, b *domain.Board, ranked []ranking.Ranked) int {
	b.EnsureGroup(domain.SentinelGroup, domain.RankingGroupOptions)

	moves := 0
	for i, rk := range ranked {
		id := rk.Entity.ID
		target := domain.RankGroupName(i)
		g, _ := b.EnsureGroup(target, domain.RankingGroupOptions)
		if g.HasMember(id) && g.Size() == 1 {
			continue
		}

		for _, name := range b.GroupNames() {
			if name == target || !(domain.IsRankingGroup(name) || domain.IsIdentityGroup(name)) {
				continue
			}
			b.RemoveMember(name, id)
		}
		b.ClearMembers(target)
		// Neutral first so the entry never shows another entity's decoration.
		b.Decorate(target, domain.NeutralDecoration)
		b.AddMember(target, id)
		if r.identity != nil {
			r.identity.Redecorate(ctx, id)
		}
		moves++
	}

	_, prune := r.shrunk[b]
	delete(r.shrunk, b)
	for _, name := range b.GroupNames() {
		idx, ok := domain.RankIndex(name)
		if !ok || idx < len(ranked) {
			continue
		}
		b.ClearMembers(name)
		if prune {
			b.RemoveGroup(name)
		}
	}

	if moves > 0 && r.logger != nil {
		r.logger.Debug("board %s: moved %d entities", b.ID(), moves)
	}
	return moves
}

// Remove takes id out of every ranking group on b, then deletes the empty rank
// groups at or past population. Groups that only empty out once the next pass
// closes the gap are deleted by that pass. It returns the number of pruned groups.
func (r *Reconciler) Remove(b *domain.Board, id string, population int) int {
	if r.Sweep(b, map[string]struct{}{id: {}}) > 0 {
		r.shrunk[b] = struct{}{}
	}

	pruned := 0
	for _, name := range b.GroupNames() {
		idx, ok := domain.RankIndex(name)
		if !ok || idx < population {
			continue
		}
		if g, _ := b.Group(name); g.Size() == 0 && b.RemoveGroup(name) {
			pruned++
		}
	}
	return pruned
}

// Teardown removes every ranking group from b, sentinel included.
func (r *Reconciler) Teardown(b *domain.Board) int {
	delete(r.shrunk, b)
	removed := 0
	for _, name := range b.GroupNames() {
		if domain.IsRankingGroup(name) && b.RemoveGroup(name) {
			removed++
		}
	}
	return removed
}
