// Package nametag maintains identity decoration: the prefix, suffix and name
// colour shown above an entity, painted on whichever group holds it.
package nametag

import (
	"context"
	"encoding/hex"
	"strconv"

	"rosterd/internal/decor"
	"rosterd/internal/domain"
	"rosterd/internal/ports"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

const idHexLen = 10

// Options configure the identity-label subsystem.
type Options struct {
	Enabled      bool
	ApplyOverlay bool
	Visibility   domain.Visibility
}

// BoardSource returns the boards to decorate.
type BoardSource func() []*domain.Board

// Service implements ports.IdentityLabeler.
type Service struct {
	roster ports.Roster
	boards BoardSource
	gate   ports.GateFilter
	decor  *decor.Pipeline
	opts   Options
	logger runtime.Logger
}

// New returns an identity-label service.
func New(roster ports.Roster, boards BoardSource, gate ports.GateFilter, pipeline *decor.Pipeline, opts Options, logger runtime.Logger) *Service {
	if opts.Visibility == "" {
		opts.Visibility = domain.VisibilityAlways
	}
	return &Service{
		roster: roster,
		boards: boards,
		gate:   gate,
		decor:  pipeline,
		opts:   opts,
		logger: logger,
	}
}

// SetOptions replaces the options. Disabling removes every identity group.
func (s *Service) SetOptions(opts Options) {
	if opts.Visibility == "" {
		opts.Visibility = domain.VisibilityAlways
	}
	wasEnabled := s.opts.Enabled
	s.opts = opts
	if wasEnabled && !opts.Enabled {
		s.ClearAll()
	}
}

// SetGate swaps the gate filter.
func (s *Service) SetGate(gate ports.GateFilter) {
	s.gate = gate
}

// Enabled reports whether identity labels are maintained.
func (s *Service) Enabled() bool { return s.opts.Enabled }

// GroupName returns the identity group of an entity: nt_ followed by ten hex
// characters derived from its id.
func GroupName(entityID string) string {
	if u, err := uuid.Parse(entityID); err == nil {
		return domain.IdentityGroupPrefix + hex.EncodeToString(u[:])[:idHexLen]
	}
	h := strconv.FormatUint(xxhash.Sum64String(entityID), 16)
	for len(h) < idHexLen {
		h = "0" + h
	}
	return domain.IdentityGroupPrefix + h[:idHexLen]
}

// Redecorate paints the identity decoration of entityID on the group that holds
// it on every board. An entity outside any rank group gets its own identity group.
func (s *Service) Redecorate(ctx context.Context, entityID string) {
	if !s.opts.Enabled || s.roster == nil {
		return
	}
	e, ok := s.roster.Entity(entityID)
	if !ok {
		return
	}
	allowed := ports.Admits(s.gate, e)
	var deco domain.Decoration
	if allowed && s.decor != nil {
		deco = s.decor.Decorate(ctx, e, s.opts.ApplyOverlay).Group(s.opts.Visibility)
	}

	own := GroupName(entityID)
	for _, b := range s.boardList() {
		if g, ok := b.GroupOf(entityID, domain.IsRankingGroup); ok {
			b.RemoveGroup(own)
			if allowed {
				b.Decorate(g.Name(), deco)
			} else {
				b.Decorate(g.Name(), domain.NeutralDecoration)
			}
			continue
		}
		if !allowed {
			b.RemoveGroup(own)
			continue
		}
		b.EnsureGroup(own, domain.HostDefaultOptions)
		b.AddMember(own, entityID)
		b.Decorate(own, deco)
	}
}

// ApplyAll redecorates every connected entity.
func (s *Service) ApplyAll(ctx context.Context) {
	if !s.opts.Enabled || s.roster == nil {
		return
	}
	for _, e := range s.roster.Entities() {
		s.Redecorate(ctx, e.ID)
	}
}

// ClearFor removes the identity group of entityID from every board and resets
// the decoration of the rank group holding it.
func (s *Service) ClearFor(entityID string) {
	own := GroupName(entityID)
	for _, b := range s.boardList() {
		b.RemoveGroup(own)
		if g, ok := b.GroupOf(entityID, domain.IsRankingGroup); ok {
			b.Decorate(g.Name(), domain.NeutralDecoration)
		}
	}
}

// ClearAll removes every identity group from every board.
func (s *Service) ClearAll() {
	removed := 0
	for _, b := range s.boardList() {
		for _, name := range b.GroupNames() {
			if domain.IsIdentityGroup(name) && b.RemoveGroup(name) {
				removed++
			}
		}
	}
	if removed > 0 && s.logger != nil {
		s.logger.Debug("removed %d identity groups", removed)
	}
}

func (s *Service) boardList() []*domain.Board {
	if s.boards == nil {
		return nil
	}
	return s.boards()
}
